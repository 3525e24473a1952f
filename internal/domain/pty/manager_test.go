package pty

import (
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiterminal/backend/internal/events"
	"github.com/aiterminal/backend/internal/infrastructure/config"
	"github.com/aiterminal/backend/internal/infrastructure/logging"
)

type captureSink struct {
	mu  sync.Mutex
	evs []events.Event
}

func (c *captureSink) Emit(ev events.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evs = append(c.evs, ev)
}

func (c *captureSink) outputFor(sessionID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var b strings.Builder
	for _, ev := range c.evs {
		if ev.Type == events.PTYOutput && ev.SessionID == sessionID {
			if s, ok := ev.Data["data"].(string); ok {
				b.WriteString(s)
			}
		}
	}
	return b.String()
}

func (c *captureSink) exited(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ev := range c.evs {
		if ev.Type == events.PTYExit && ev.SessionID == sessionID {
			return true
		}
	}
	return false
}

func newTestManager(t *testing.T) (*Manager, *captureSink) {
	t.Helper()
	if _, err := os.Stat("/bin/bash"); err != nil {
		t.Skip("no /bin/bash available")
	}
	sink := &captureSink{}
	m := NewManager(sink, logging.NewNop(), config.Default().Shell)
	t.Cleanup(m.CloseAll)
	return m, sink
}

func TestCreateWriteClose(t *testing.T) {
	m, sink := newTestManager(t)

	require.NoError(t, m.Create("pty-1", 80, 24))
	assert.Equal(t, 1, m.Count())

	require.NoError(t, m.Write("pty-1", "echo pty-roundtrip\r"))
	require.Eventually(t, func() bool {
		return strings.Contains(sink.outputFor("pty-1"), "pty-roundtrip")
	}, 5*time.Second, 20*time.Millisecond)

	m.Close("pty-1")
	require.Eventually(t, func() bool {
		return m.Count() == 0 && sink.exited("pty-1")
	}, 5*time.Second, 20*time.Millisecond)
}

func TestCreateDuplicateFails(t *testing.T) {
	m, _ := newTestManager(t)

	require.NoError(t, m.Create("pty-1", 80, 24))
	err := m.Create("pty-1", 80, 24)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
	assert.Equal(t, 1, m.Count())
}

func TestShellExitDeregisters(t *testing.T) {
	m, sink := newTestManager(t)

	require.NoError(t, m.Create("pty-1", 80, 24))
	require.NoError(t, m.Write("pty-1", "exit\r"))

	require.Eventually(t, func() bool {
		return m.Count() == 0 && sink.exited("pty-1")
	}, 5*time.Second, 20*time.Millisecond)
}

func TestResize(t *testing.T) {
	m, _ := newTestManager(t)

	require.NoError(t, m.Create("pty-1", 80, 24))
	assert.NoError(t, m.Resize("pty-1", 120, 40))
}

func TestOperationsOnMissingSession(t *testing.T) {
	m, _ := newTestManager(t)

	assert.ErrorIs(t, m.Write("ghost", "x"), ErrNotFound)
	assert.ErrorIs(t, m.Resize("ghost", 80, 24), ErrNotFound)
	m.Close("ghost") // no-op, must not panic
}

func TestCloseIsIdempotent(t *testing.T) {
	m, _ := newTestManager(t)

	require.NoError(t, m.Create("pty-1", 80, 24))
	m.Close("pty-1")
	m.Close("pty-1")
	assert.Equal(t, 0, m.Count())
}
