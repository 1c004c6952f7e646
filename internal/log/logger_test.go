package log

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNewSetsLevelByEnvironment(t *testing.T) {
	New("production")
	require.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())

	New("development")
	require.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}
