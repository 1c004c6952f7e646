package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ayush-jadaun/livekitagent/internal/livekit"
	"github.com/ayush-jadaun/livekitagent/internal/models"
	"github.com/ayush-jadaun/livekitagent/internal/repository"
)

type sessionUserStore interface {
	EnsureUser(ctx context.Context, userID string, name string, age *int) (models.User, models.Room, error)
	GetRoom(ctx context.Context, userID string) (models.Room, error)
}

type sessionStore interface {
	Create(ctx context.Context, userID string, roomID string, paymentID *string) (models.Session, error)
	End(ctx context.Context, sessionID string, userID string) (repository.EndResult, error)
	ListActive(ctx context.Context, userID string) ([]models.ActiveSession, error)
	CloseStale(ctx context.Context, maxAge time.Duration) ([]string, error)
}

type agentRunner interface {
	Start(roomName string) error
	Stop(roomName string)
}

// EntitlementDeniedError carries the evaluator's decision to the HTTP
// layer, where it turns into a 403.
type EntitlementDeniedError struct {
	Decision Decision
}

func (e *EntitlementDeniedError) Error() string {
	return fmt.Sprintf("entitlement denied: %s", e.Decision.Reason)
}

type StartResult struct {
	SessionID  string
	RoomID     string
	RoomName   string
	Token      string
	LiveKitURL string
	Mode       EntitlementMode
}

// SessionService orchestrates session start/end: entitlement check,
// transactional state change, join-token minting and the agent process.
type SessionService struct {
	users     sessionUserStore
	sessions  sessionStore
	evaluator *Evaluator
	tokens    *livekit.TokenIssuer
	agents    agentRunner
	log       zerolog.Logger
}

func NewSessionService(
	users sessionUserStore,
	sessions sessionStore,
	evaluator *Evaluator,
	tokens *livekit.TokenIssuer,
	agents agentRunner,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		users:     users,
		sessions:  sessions,
		evaluator: evaluator,
		tokens:    tokens,
		agents:    agents,
		log:       log,
	}
}

func (s *SessionService) Start(ctx context.Context, userID string, profileName string) (StartResult, error) {
	user, room, err := s.users.EnsureUser(ctx, userID, profileName, nil)
	if err != nil {
		return StartResult{}, fmt.Errorf("ensure user: %w", err)
	}

	decision, err := s.evaluator.CanStartSession(ctx, userID)
	if err != nil {
		return StartResult{}, err
	}
	if !decision.Allowed {
		return StartResult{}, &EntitlementDeniedError{Decision: decision}
	}

	// Paid starts consume quota inside the same transaction that
	// creates the session row.
	var paymentID *string
	if decision.Mode == ModePaid && decision.Payment != nil {
		paymentID = &decision.Payment.ID
	}

	session, err := s.sessions.Create(ctx, userID, room.ID, paymentID)
	if errors.Is(err, repository.ErrQuotaExceeded) {
		// The store's in-transaction re-check lost a race for the last
		// quota slot; report it the same way as an upfront denial.
		return StartResult{}, &EntitlementDeniedError{Decision: Decision{
			Mode:   ModePaid,
			Reason: ReasonQuotaExceeded,
		}}
	}
	if err != nil {
		return StartResult{}, fmt.Errorf("create session: %w", err)
	}

	displayName := user.Name
	if displayName == "" {
		displayName = fmt.Sprintf("user_%s", userID)
	}
	token, err := s.tokens.Mint(userID, displayName, room.RoomName)
	if err != nil {
		return StartResult{}, err
	}

	// Best effort: a session is usable without the agent, and the media
	// webhook will retry the stop side independently.
	if err := s.agents.Start(room.RoomName); err != nil {
		s.log.Error().Err(err).Str("room", room.RoomName).Msg("agent start failed")
	}

	s.log.Info().
		Str("session_id", session.ID).
		Str("user_id", userID).
		Str("mode", string(decision.Mode)).
		Msg("session started")

	return StartResult{
		SessionID:  session.ID,
		RoomID:     room.ID,
		RoomName:   room.RoomName,
		Token:      token,
		LiveKitURL: s.tokens.URL(),
		Mode:       decision.Mode,
	}, nil
}

func (s *SessionService) End(ctx context.Context, sessionID string, userID string) error {
	result, err := s.sessions.End(ctx, sessionID, userID)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	if !result.Found {
		s.log.Warn().
			Str("session_id", sessionID).
			Str("user_id", userID).
			Msg("end requested for session that is not open for this user")
	} else {
		s.log.Info().
			Str("session_id", sessionID).
			Str("user_id", userID).
			Int64("elapsed_seconds", result.ElapsedSeconds).
			Bool("trial_accrued", result.TrialAccrued).
			Msg("session ended")
	}

	room, err := s.users.GetRoom(ctx, userID)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("room lookup for agent stop failed")
		return nil
	}
	s.agents.Stop(room.RoomName)
	return nil
}

func (s *SessionService) Active(ctx context.Context, userID string) ([]models.ActiveSession, error) {
	return s.sessions.ListActive(ctx, userID)
}

// StopAgentForRoom reacts to media-server room lifecycle events.
func (s *SessionService) StopAgentForRoom(roomName string) {
	s.agents.Stop(roomName)
}

// SweepStale force-closes sessions left open past maxAge and reaps their
// agents. Used by the scheduler.
func (s *SessionService) SweepStale(ctx context.Context, maxAge time.Duration) (int, error) {
	roomNames, err := s.sessions.CloseStale(ctx, maxAge)
	if err != nil {
		return 0, fmt.Errorf("close stale sessions: %w", err)
	}
	for _, roomName := range roomNames {
		s.agents.Stop(roomName)
	}
	return len(roomNames), nil
}
