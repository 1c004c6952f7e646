package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/ayush-jadaun/livekitagent/internal/config"
)

type staleSweeper interface {
	SweepStale(ctx context.Context, maxAge time.Duration) (int, error)
}

// Scheduler runs periodic housekeeping: sessions left open past the
// configured ceiling are force-closed and their agents reaped, so a
// client that vanished mid-call cannot pin a room "on" forever.
type Scheduler struct {
	cron     *cron.Cron
	sessions staleSweeper
	cfg      config.JobsConfig
	log      zerolog.Logger
}

func NewScheduler(sessions staleSweeper, cfg config.JobsConfig, log zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds())
	return &Scheduler{
		cron:     c,
		sessions: sessions,
		cfg:      cfg,
		log:      log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("0 */10 * * * *", s.sweepStale); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop halts scheduling and waits for an in-flight sweep to finish,
// bounded by a timeout.
func (s *Scheduler) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.log.Warn().Msg("scheduler stop timed out waiting for running jobs")
	}
}

func (s *Scheduler) sweepStale() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	closed, err := s.sessions.SweepStale(ctx, s.cfg.StaleSessionAge)
	if err != nil {
		s.log.Error().Err(err).Msg("stale session sweep failed")
		return
	}
	if closed > 0 {
		s.log.Info().Int("closed", closed).Msg("stale sessions closed")
	}
}
