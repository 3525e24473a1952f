package pty

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/creack/pty"
	"go.uber.org/zap"

	"github.com/aiterminal/backend/internal/events"
	"github.com/aiterminal/backend/internal/infrastructure/config"
	"github.com/aiterminal/backend/internal/infrastructure/logging"
	"github.com/aiterminal/backend/internal/infrastructure/monitoring"
)

const ptyReadBufSize = 4096

// ErrNotFound reports an unknown pty session id.
var ErrNotFound = errors.New("pty session not found")

// Session is one live shell under a PTY master.
type Session struct {
	id   string
	ptmx *os.File
	cmd  *exec.Cmd

	// killMu serializes teardown between Close and the exit watcher. A
	// TryLock that fails means teardown is already in progress; the loser
	// walks away instead of blocking.
	killMu sync.Mutex
}

// kill closes the master and terminates the shell. Safe to race with the
// exit watcher.
func (s *Session) kill() {
	if !s.killMu.TryLock() {
		return
	}
	defer s.killMu.Unlock()
	s.ptmx.Close()
	if s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
}

// Manager owns all PTY sessions.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	sink    events.Sink
	log     *logging.Logger
	metrics *monitoring.Metrics
	shell   config.ShellConfig
}

// NewManager creates a PTY session manager.
func NewManager(sink events.Sink, log *logging.Logger, shell config.ShellConfig) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		sink:     sink,
		log:      log,
		shell:    shell,
	}
}

// WithMetrics attaches a metrics collector.
func (m *Manager) WithMetrics(metrics *monitoring.Metrics) *Manager {
	m.metrics = metrics
	return m
}

// pickShell chooses the shell binary and its interactive flags. The
// preferred shell is skipped with --noprofile/--norc (or -f for zsh) so user
// rc files cannot inject prompt hooks that garble the stream.
func (m *Manager) pickShell() (string, []string) {
	shell := m.shell.Preferred
	if _, err := os.Stat(shell); err != nil {
		if env := os.Getenv("SHELL"); env != "" {
			shell = env
		} else {
			shell = m.shell.Fallback
		}
	}

	switch filepath.Base(shell) {
	case "bash":
		return shell, []string{"--noprofile", "--norc", "-i"}
	case "zsh":
		return shell, []string{"-f", "-i"}
	default:
		return shell, []string{"-i"}
	}
}

// Create starts a new interactive shell under a PTY with the given initial
// window size. The session id must not already be in use.
func (m *Manager) Create(sessionID string, cols, rows uint16) error {
	m.mu.Lock()
	if _, exists := m.sessions[sessionID]; exists {
		m.mu.Unlock()
		return fmt.Errorf("pty session already exists: %s", sessionID)
	}
	m.mu.Unlock()

	shell, args := m.pickShell()
	cmd := exec.Command(shell, args...)
	cmd.Env = append(os.Environ(),
		"TERM=xterm-256color",
		"COLORTERM=truecolor",
		// A neutral prompt: rc files are skipped, so set one explicitly.
		`PS1=\u@\h:\w\$ `,
		"PROMPT_COMMAND=",
	)

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: rows, Cols: cols})
	if err != nil {
		return fmt.Errorf("failed to start pty shell %s: %w", shell, err)
	}

	s := &Session{id: sessionID, ptmx: ptmx, cmd: cmd}

	m.mu.Lock()
	if _, exists := m.sessions[sessionID]; exists {
		m.mu.Unlock()
		s.kill()
		return fmt.Errorf("pty session already exists: %s", sessionID)
	}
	m.sessions[sessionID] = s
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.PTYSessionsTotal.Inc()
		m.metrics.PTYSessionsActive.Inc()
	}
	m.log.Info("pty session created",
		zap.String("session_id", sessionID),
		zap.String("shell", shell),
		zap.Uint16("cols", cols),
		zap.Uint16("rows", rows),
	)

	go m.runReader(s)
	return nil
}

// runReader streams master output until the shell exits, then tears the
// session down. EOF (or EIO, which Linux PTYs return once the slave side
// closes) is the exit signal.
func (m *Manager) runReader(s *Session) {
	splitter := &utf8Splitter{}
	buf := make([]byte, ptyReadBufSize)

	for {
		n, err := s.ptmx.Read(buf)
		if n > 0 {
			if m.metrics != nil {
				m.metrics.PTYBytesRead.Add(float64(n))
			}
			if chunk := splitter.push(buf[:n]); len(chunk) > 0 {
				m.emitOutput(s.id, string(chunk))
			}
		}
		if err != nil {
			break
		}
	}
	if tail := splitter.flush(); len(tail) > 0 {
		m.emitOutput(s.id, string(tail))
	}

	s.kill()
	waitErr := s.cmd.Wait()

	m.mu.Lock()
	// Only deregister if this session still owns the id; a replacement
	// created after an explicit Close must not be removed.
	if cur, ok := m.sessions[s.id]; ok && cur == s {
		delete(m.sessions, s.id)
	}
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.PTYSessionsActive.Dec()
	}
	m.log.Info("pty session exited",
		zap.String("session_id", s.id),
		zap.Bool("clean", waitErr == nil),
	)
	m.sink.Emit(events.New(events.PTYExit, s.id, map[string]interface{}{
		"success": waitErr == nil,
	}))
}

func (m *Manager) emitOutput(sessionID, data string) {
	m.sink.Emit(events.New(events.PTYOutput, sessionID, map[string]interface{}{
		"data": data,
	}))
}

func (m *Manager) get(sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	return s, nil
}

// Write sends keystrokes to the shell.
func (m *Manager) Write(sessionID, data string) error {
	s, err := m.get(sessionID)
	if err != nil {
		return err
	}
	if _, err := s.ptmx.Write([]byte(data)); err != nil {
		return fmt.Errorf("pty write failed: %w", err)
	}
	return nil
}

// Resize updates the PTY window size; the kernel delivers SIGWINCH to the
// shell's process group.
func (m *Manager) Resize(sessionID string, cols, rows uint16) error {
	s, err := m.get(sessionID)
	if err != nil {
		return err
	}
	if err := pty.Setsize(s.ptmx, &pty.Winsize{Rows: rows, Cols: cols}); err != nil {
		return fmt.Errorf("pty resize failed: %w", err)
	}
	return nil
}

// Close terminates a session. Closing an unknown session is a no-op: the
// exit watcher may have already deregistered it.
func (m *Manager) Close(sessionID string) {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
	}
	m.mu.Unlock()

	if ok {
		s.kill()
	}
}

// CloseAll terminates every session, for shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range all {
		s.kill()
	}
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
