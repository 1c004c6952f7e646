package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ayush-jadaun/livekitagent/internal/ids"
	"github.com/ayush-jadaun/livekitagent/internal/models"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrQuotaExceeded   = errors.New("session quota exceeded")
)

type SessionRepository struct {
	pool *pgxpool.Pool
}

func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// Create inserts the session row and flips the room condition on in one
// transaction. When paymentID is set the start was approved in paid mode
// and the subscription's usage counter is incremented in the same
// transaction, so the quota check and its decrement can never be split
// by a crash or a concurrent request.
func (r *SessionRepository) Create(ctx context.Context, userID string, roomID string, paymentID *string) (models.Session, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return models.Session{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	session := models.Session{
		ID:     ids.New(),
		UserID: userID,
		RoomID: roomID,
	}

	const insertSession = `
		INSERT INTO sessions (id, user_id, room_id, started_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING started_at
	`
	if err := tx.QueryRow(ctx, insertSession, session.ID, userID, roomID).Scan(&session.StartedAt); err != nil {
		return models.Session{}, fmt.Errorf("insert session: %w", err)
	}

	const flipRoomOn = `
		UPDATE room SET room_condition = 'on', updated_at = NOW() WHERE id = $1
	`
	if _, err := tx.Exec(ctx, flipRoomOn, roomID); err != nil {
		return models.Session{}, fmt.Errorf("flip room on: %w", err)
	}

	if paymentID != nil {
		// The entitlement read happens outside this transaction, so the
		// limit is re-checked here; of two concurrent starts racing for
		// the last slot only one commits, the other rolls back with
		// ErrQuotaExceeded.
		const consumeQuota = `
			UPDATE payments
			SET session_used = session_used + 1, updated_at = NOW()
			WHERE id = $1 AND session_used < session_limit
		`
		cmd, err := tx.Exec(ctx, consumeQuota, *paymentID)
		if err != nil {
			return models.Session{}, fmt.Errorf("consume quota: %w", err)
		}
		if cmd.RowsAffected() == 0 {
			return models.Session{}, ErrQuotaExceeded
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return models.Session{}, fmt.Errorf("commit: %w", err)
	}
	return session, nil
}

// EndResult reports what actually happened when closing a session.
type EndResult struct {
	Found          bool
	ElapsedSeconds int64
	TrialAccrued   bool
}

// End closes the session in one transaction: the end timestamp is set
// only when the session is still open and owned by the caller, elapsed
// wall-clock seconds (floor) are added to the user's trial counter
// unless an active paid subscription exists, and the room flips off.
// A session that is already closed, missing or foreign yields
// Found=false; the room is still flipped off so state converges.
func (r *SessionRepository) End(ctx context.Context, sessionID string, userID string) (EndResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return EndResult{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var result EndResult

	const closeSession = `
		UPDATE sessions
		SET finished_at = NOW()
		WHERE id = $1 AND user_id = $2 AND finished_at IS NULL
		RETURNING started_at, finished_at
	`
	var startedAt, finishedAt time.Time
	err = tx.QueryRow(ctx, closeSession, sessionID, userID).Scan(&startedAt, &finishedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		result.Found = false
	case err != nil:
		return EndResult{}, fmt.Errorf("close session: %w", err)
	default:
		result.Found = true
		result.ElapsedSeconds = elapsedSeconds(startedAt, finishedAt)

		// Trial time accrues only while no paid subscription is active.
		const accrueTrial = `
			UPDATE users
			SET trial_seconds_used = trial_seconds_used + $2, updated_at = NOW()
			WHERE id = $1
			  AND NOT EXISTS (
				SELECT 1 FROM payments WHERE user_id = $1 AND status = 'active'
			  )
		`
		cmd, err := tx.Exec(ctx, accrueTrial, userID, result.ElapsedSeconds)
		if err != nil {
			return EndResult{}, fmt.Errorf("accrue trial: %w", err)
		}
		result.TrialAccrued = cmd.RowsAffected() > 0
	}

	const flipRoomOff = `
		UPDATE room SET room_condition = 'off', updated_at = NOW() WHERE user_id = $1
	`
	if _, err := tx.Exec(ctx, flipRoomOff, userID); err != nil {
		return EndResult{}, fmt.Errorf("flip room off: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return EndResult{}, fmt.Errorf("commit: %w", err)
	}
	return result, nil
}

func (r *SessionRepository) ListActive(ctx context.Context, userID string) ([]models.ActiveSession, error) {
	const query = `
		SELECT s.id, s.started_at, r.room_name, r.room_condition
		FROM sessions s
		JOIN room r ON s.room_id = r.id
		WHERE s.user_id = $1 AND s.finished_at IS NULL
		ORDER BY s.started_at DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.ActiveSession
	for rows.Next() {
		var s models.ActiveSession
		if err := rows.Scan(&s.ID, &s.StartedAt, &s.RoomName, &s.RoomCondition); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// elapsedSeconds is the whole seconds between start and finish, rounded
// down.
func elapsedSeconds(startedAt, finishedAt time.Time) int64 {
	return int64(finishedAt.Sub(startedAt).Seconds())
}

// CloseStale force-closes sessions left open past maxAge and flips their
// rooms off. Returns the affected room names so callers can reap agents.
func (r *SessionRepository) CloseStale(ctx context.Context, maxAge time.Duration) ([]string, error) {
	const query = `
		WITH closed AS (
			UPDATE sessions
			SET finished_at = NOW()
			WHERE finished_at IS NULL AND started_at < NOW() - make_interval(secs => $1)
			RETURNING room_id
		)
		UPDATE room
		SET room_condition = 'off', updated_at = NOW()
		WHERE id IN (SELECT room_id FROM closed)
		RETURNING room_name
	`

	rows, err := r.pool.Query(ctx, query, maxAge.Seconds())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roomNames []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		roomNames = append(roomNames, name)
	}
	return roomNames, rows.Err()
}
