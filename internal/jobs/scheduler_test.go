package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ayush-jadaun/livekitagent/internal/config"
)

type fakeSweeper struct {
	ages []time.Duration
	n    int
	err  error
}

func (f *fakeSweeper) SweepStale(ctx context.Context, maxAge time.Duration) (int, error) {
	f.ages = append(f.ages, maxAge)
	return f.n, f.err
}

func newTestScheduler(sweeper *fakeSweeper) *Scheduler {
	return NewScheduler(sweeper, config.JobsConfig{StaleSessionAge: 6 * time.Hour}, zerolog.Nop())
}

func TestSweepStaleUsesConfiguredAge(t *testing.T) {
	sweeper := &fakeSweeper{n: 2}
	s := newTestScheduler(sweeper)

	s.sweepStale()
	require.Equal(t, []time.Duration{6 * time.Hour}, sweeper.ages)
}

func TestSweepStaleSurvivesStoreError(t *testing.T) {
	sweeper := &fakeSweeper{err: errors.New("connection refused")}
	s := newTestScheduler(sweeper)

	s.sweepStale()
	require.Len(t, sweeper.ages, 1)
}

func TestStopWaitsForScheduler(t *testing.T) {
	s := newTestScheduler(&fakeSweeper{})
	require.NoError(t, s.Start())

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("stop did not return")
	}
}
