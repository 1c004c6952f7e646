package agent

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ayush-jadaun/livekitagent/internal/config"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	cfg := config.AgentConfig{
		// sleep ignores the connect/--room arguments; only the process
		// lifecycle matters here.
		Command:     "sleep",
		Args:        []string{"60"},
		StopTimeout: 2 * time.Second,
	}
	m := NewManager(cfg, zerolog.Nop())
	t.Cleanup(m.StopAll)
	return m
}

func TestStartTracksHandle(t *testing.T) {
	m := newTestManager(t)

	require.NoError(t, m.Start("room_a"))
	require.True(t, m.Running("room_a"))
	require.False(t, m.Running("room_b"))
}

func TestStartReplacesExistingHandle(t *testing.T) {
	m := newTestManager(t)

	require.NoError(t, m.Start("room_a"))
	require.NoError(t, m.Start("room_a"))
	require.True(t, m.Running("room_a"))

	m.Stop("room_a")
	require.False(t, m.Running("room_a"))
}

func TestStopRemovesHandle(t *testing.T) {
	m := newTestManager(t)

	require.NoError(t, m.Start("room_a"))
	m.Stop("room_a")
	require.False(t, m.Running("room_a"))
}

func TestStopWithoutHandleIsNoop(t *testing.T) {
	m := newTestManager(t)

	m.Stop("room_missing")
	require.False(t, m.Running("room_missing"))
}

func TestStopAllClearsTable(t *testing.T) {
	m := newTestManager(t)

	require.NoError(t, m.Start("room_a"))
	require.NoError(t, m.Start("room_b"))

	m.StopAll()
	require.False(t, m.Running("room_a"))
	require.False(t, m.Running("room_b"))
}

func TestStartUnknownCommandFails(t *testing.T) {
	cfg := config.AgentConfig{
		Command:     "/nonexistent/agent-binary",
		StopTimeout: time.Second,
	}
	m := NewManager(cfg, zerolog.Nop())

	require.Error(t, m.Start("room_a"))
	require.False(t, m.Running("room_a"))
}
