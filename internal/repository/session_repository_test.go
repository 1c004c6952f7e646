package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestElapsedSecondsRoundsDown(t *testing.T) {
	start := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	cases := []struct {
		name   string
		finish time.Time
		want   int64
	}{
		{"whole seconds", start.Add(42 * time.Second), 42},
		{"fraction dropped", start.Add(10*time.Second + 900*time.Millisecond), 10},
		{"sub-second session", start.Add(400 * time.Millisecond), 0},
		{"long session", start.Add(2*time.Hour + 59*time.Second + 999*time.Millisecond), 7259},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, elapsedSeconds(start, tc.finish))
		})
	}
}
