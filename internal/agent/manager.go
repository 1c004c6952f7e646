package agent

import (
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ayush-jadaun/livekitagent/internal/config"
)

type handle struct {
	cmd  *exec.Cmd
	done chan struct{}
}

// Manager spawns and tracks one external agent process per room name.
// The table is process-local; a restart of this service loses track of
// agents that are still running.
type Manager struct {
	cfg config.AgentConfig
	log zerolog.Logger

	mu     sync.Mutex
	agents map[string]*handle
	locks  map[string]*sync.Mutex
}

func NewManager(cfg config.AgentConfig, log zerolog.Logger) *Manager {
	return &Manager{
		cfg:    cfg,
		log:    log,
		agents: make(map[string]*handle),
		locks:  make(map[string]*sync.Mutex),
	}
}

// roomLock serializes start/stop for a single room so concurrent calls
// cannot leak a process handle.
func (m *Manager) roomLock(roomName string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[roomName]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[roomName] = lock
	}
	return lock
}

// Start launches the agent process for the room. An agent already
// tracked for the room is stopped first, so at most one handle exists
// per room.
func (m *Manager) Start(roomName string) error {
	lock := m.roomLock(roomName)
	lock.Lock()
	defer lock.Unlock()

	if old := m.take(roomName); old != nil {
		m.terminate(roomName, old)
	}

	args := append(append([]string{}, m.cfg.Args...), "connect", "--room", roomName)
	cmd := exec.Command(m.cfg.Command, args...)
	if err := cmd.Start(); err != nil {
		return err
	}

	h := &handle{cmd: cmd, done: make(chan struct{})}
	go func() {
		_ = cmd.Wait()
		close(h.done)
	}()

	m.mu.Lock()
	m.agents[roomName] = h
	m.mu.Unlock()

	m.log.Info().
		Str("room", roomName).
		Int("pid", cmd.Process.Pid).
		Msg("agent started")
	return nil
}

// Stop terminates the agent for the room: graceful signal first, forced
// kill after the configured wait. The handle is dropped regardless of
// how the process went down. A stop with nothing tracked is a no-op.
func (m *Manager) Stop(roomName string) {
	lock := m.roomLock(roomName)
	lock.Lock()
	defer lock.Unlock()

	h := m.take(roomName)
	if h == nil {
		m.log.Warn().Str("room", roomName).Msg("no active agent for room")
		return
	}
	m.terminate(roomName, h)
}

// StopAll is a best-effort shutdown of every tracked agent.
func (m *Manager) StopAll() {
	m.mu.Lock()
	agents := m.agents
	m.agents = make(map[string]*handle)
	m.mu.Unlock()

	for room, h := range agents {
		m.log.Info().
			Str("room", room).
			Int("pid", h.cmd.Process.Pid).
			Msg("shutting down agent")
		_ = h.cmd.Process.Signal(syscall.SIGTERM)
	}
}

// Running reports whether an agent is currently tracked for the room.
func (m *Manager) Running(roomName string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.agents[roomName]
	return ok
}

func (m *Manager) take(roomName string) *handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.agents[roomName]
	if !ok {
		return nil
	}
	delete(m.agents, roomName)
	return h
}

func (m *Manager) terminate(roomName string, h *handle) {
	pid := h.cmd.Process.Pid
	m.log.Info().Str("room", roomName).Int("pid", pid).Msg("terminating agent")

	_ = h.cmd.Process.Signal(syscall.SIGTERM)

	select {
	case <-h.done:
		m.log.Info().Str("room", roomName).Msg("agent terminated")
	case <-time.After(m.cfg.StopTimeout):
		m.log.Warn().Str("room", roomName).Msg("agent did not terminate in time, killing")
		_ = h.cmd.Process.Kill()
		<-h.done
	}
}
