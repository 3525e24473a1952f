package exec

import (
	osexec "os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiterminal/backend/internal/domain/session"
	"github.com/aiterminal/backend/internal/events"
	"github.com/aiterminal/backend/internal/infrastructure/logging"
)

// captureSink records emitted events for assertions.
type captureSink struct {
	mu  sync.Mutex
	evs []events.Event
}

func (c *captureSink) Emit(ev events.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evs = append(c.evs, ev)
}

func (c *captureSink) byType(t events.Type) []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []events.Event
	for _, ev := range c.evs {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func (c *captureSink) output() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var b strings.Builder
	for _, ev := range c.evs {
		if ev.Type == events.CommandOutput {
			if s, ok := ev.Data["output"].(string); ok {
				b.WriteString(s)
			}
		}
	}
	return b.String()
}

// recordWriter is an in-memory WriteCloser standing in for a remote shell's
// stdin pipe.
type recordWriter struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (w *recordWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.WriteString(string(p))
}

func (w *recordWriter) Close() error { return nil }

func (w *recordWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

func newTestEngine() (*Engine, *session.Registry, *captureSink) {
	reg := session.NewRegistry()
	sink := &captureSink{}
	return NewEngine(reg, sink, logging.NewNop()), reg, sink
}

func waitForEnd(t *testing.T, sink *captureSink) events.Event {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(sink.byType(events.CommandEnd)) > 0
	}, 5*time.Second, 10*time.Millisecond, "command_end never arrived")
	return sink.byType(events.CommandEnd)[0]
}

func TestExecuteStreamsOutput(t *testing.T) {
	e, _, sink := newTestEngine()

	res, err := e.Execute("echo hello", "tab-1", nil)
	require.NoError(t, err)
	assert.Equal(t, ResultStarted, res)

	end := waitForEnd(t, sink)
	assert.Equal(t, true, end.Data["success"])
	assert.Contains(t, sink.output(), "hello")
}

func TestExecuteReportsFailure(t *testing.T) {
	e, _, sink := newTestEngine()

	res, err := e.Execute("false", "tab-1", nil)
	require.NoError(t, err)
	assert.Equal(t, ResultStarted, res)

	end := waitForEnd(t, sink)
	assert.Equal(t, false, end.Data["success"])
}

func TestExecuteRunsInSessionDir(t *testing.T) {
	e, reg, sink := newTestEngine()
	dir := t.TempDir()
	reg.SetCurrentDir("tab-1", dir)

	_, err := e.Execute("pwd", "tab-1", nil)
	require.NoError(t, err)

	waitForEnd(t, sink)
	assert.Contains(t, sink.output(), dir)
}

func TestExecuteLocalCD(t *testing.T) {
	e, reg, sink := newTestEngine()
	dir := t.TempDir()

	res, err := e.Execute("cd "+dir, "tab-1", nil)
	require.NoError(t, err)
	assert.Equal(t, Result("Changed directory to "+dir), res)
	assert.Equal(t, dir, reg.CurrentDir("tab-1"))

	// cd never spawns: the completion event is synchronous.
	ends := sink.byType(events.CommandEnd)
	require.Len(t, ends, 1)
	assert.Equal(t, true, ends[0].Data["success"])
}

func TestExecuteCDFailureKeepsDir(t *testing.T) {
	e, reg, sink := newTestEngine()
	before := reg.CurrentDir("tab-1")

	_, err := e.Execute("cd /no/such/dir/anywhere", "tab-1", nil)
	require.Error(t, err)
	assert.Equal(t, before, reg.CurrentDir("tab-1"))

	ends := sink.byType(events.CommandEnd)
	require.Len(t, ends, 1)
	assert.Equal(t, false, ends[0].Data["success"])
}

func TestExecuteSSHWithoutPasswordRequestsIt(t *testing.T) {
	e, reg, sink := newTestEngine()

	res, err := e.Execute("ssh user@host", "tab-1", nil)
	require.NoError(t, err)
	assert.Equal(t, ResultNeedsPassword, res)

	reqs := sink.byType(events.SSHPasswordRequest)
	require.Len(t, reqs, 1)
	assert.Equal(t, "ssh user@host", reqs[0].Data["command"])

	// Nothing was spawned.
	assert.Equal(t, 0, reg.Snapshot("tab-1").PID)
}

func TestExecuteForwardsToActiveRemote(t *testing.T) {
	e, reg, sink := newTestEngine()
	w := &recordWriter{}
	reg.Update("tab-1", func(s *session.State) {
		s.PID = 4242
		s.RemoteActive = true
		s.Stdin = session.NewStdinHandle(w)
	})

	res, err := e.Execute("ls -la", "tab-1", nil)
	require.NoError(t, err)
	assert.Equal(t, ResultForwarded, res)

	require.Eventually(t, func() bool {
		return w.String() == "ls -la\n"
	}, 2*time.Second, 5*time.Millisecond)

	fwd := sink.byType(events.CommandForwarded)
	require.Len(t, fwd, 1)
	assert.Equal(t, "ls -la", fwd[0].Data["command"])
}

func TestExecuteForwardsRemoteCDWithProbe(t *testing.T) {
	e, reg, _ := newTestEngine()
	w := &recordWriter{}
	reg.Update("tab-1", func(s *session.State) {
		s.PID = 4242
		s.RemoteActive = true
		s.Stdin = session.NewStdinHandle(w)
	})

	res, err := e.Execute("cd /var/log", "tab-1", nil)
	require.NoError(t, err)
	assert.Equal(t, ResultForwarded, res)

	require.Eventually(t, func() bool {
		payload := w.String()
		return strings.Contains(payload, "cd /var/log &&") &&
			strings.Contains(payload, markerCDPrefix) &&
			strings.Contains(payload, "pwd")
	}, 2*time.Second, 5*time.Millisecond)
}

func TestExecuteBrokenRemoteStateResets(t *testing.T) {
	e, reg, sink := newTestEngine()
	reg.Update("tab-1", func(s *session.State) {
		s.PID = 777
		s.RemoteActive = true
		// Stdin deliberately nil: inconsistent state.
	})

	_, err := e.Execute("ls", "tab-1", nil)
	require.Error(t, err)

	s := reg.Snapshot("tab-1")
	assert.False(t, s.RemoteActive)
	assert.Equal(t, 0, s.PID)

	ended := sink.byType(events.SSHSessionEnded)
	require.Len(t, ended, 1)
	assert.Equal(t, 777, ended[0].PID)
}

func TestStdoutWorkerUpdatesRemoteDir(t *testing.T) {
	e, reg, sink := newTestEngine()
	reg.Update("tab-1", func(s *session.State) {
		s.PID = 900
		s.RemoteActive = true
		s.Stdin = session.NewStdinHandle(&recordWriter{})
		s.RemoteDir = "remote:~"
	})

	parser := newMarkerParser()
	marker := newCDMarker()
	e.handleStdoutLine(parser, marker+"\n", "tab-1", 900)
	e.handleStdoutLine(parser, "/home/user\n", "tab-1", 900)
	e.handleStdoutLine(parser, marker+"\n", "tab-1", 900)
	e.handleStdoutLine(parser, "hello\n", "tab-1", 900)

	assert.Equal(t, "/home/user", reg.Snapshot("tab-1").RemoteDir)
	updates := sink.byType(events.RemoteDirUpdated)
	require.Len(t, updates, 1)
	assert.Equal(t, "/home/user", updates[0].Data["path"])

	// Marker plumbing never reaches the output stream; the trailing
	// ordinary line does, exactly once.
	outs := sink.byType(events.CommandOutput)
	require.Len(t, outs, 1)
	assert.Equal(t, "hello\n", outs[0].Data["output"])
}

func TestStdoutWorkerDropsStaleProbeValue(t *testing.T) {
	e, reg, sink := newTestEngine()
	reg.Update("tab-1", func(s *session.State) {
		s.PID = 901 // a newer process owns the session
		s.RemoteActive = true
		s.Stdin = session.NewStdinHandle(&recordWriter{})
		s.RemoteDir = "remote:~"
	})

	parser := newMarkerParser()
	marker := newCDMarker()
	e.handleStdoutLine(parser, marker+"\n", "tab-1", 900)
	e.handleStdoutLine(parser, "/stale\n", "tab-1", 900)

	assert.Equal(t, "remote:~", reg.Snapshot("tab-1").RemoteDir)
	assert.Empty(t, sink.byType(events.RemoteDirUpdated))
}

func TestWaiterClearsRemoteSessionState(t *testing.T) {
	e, reg, sink := newTestEngine()

	res, err := e.Execute("sleep 0.05", "tab-1", nil)
	require.NoError(t, err)
	assert.Equal(t, ResultStarted, res)

	pid := reg.Snapshot("tab-1").PID
	require.NotZero(t, pid)

	waitForEnd(t, sink)
	s := reg.Snapshot("tab-1")
	assert.Equal(t, 0, s.PID)
	assert.Nil(t, s.Proc)
}

func TestSpawnFailureRecordsNoState(t *testing.T) {
	if _, err := osexec.LookPath("sshpass"); err == nil {
		t.Skip("sshpass installed; spawn would succeed")
	}
	e, reg, _ := newTestEngine()

	pw := "secret"
	_, err := e.Execute("ssh user@host", "tab-1", &pw)
	require.Error(t, err)

	s := reg.Snapshot("tab-1")
	assert.Equal(t, 0, s.PID)
	assert.Nil(t, s.Proc)
	assert.False(t, s.RemoteActive)
}

func TestStderrSuppressesSudoPrompt(t *testing.T) {
	e, _, sink := newTestEngine()

	r := strings.NewReader("[sudo] password for user: ")
	e.runStderrWorker(nopCloser{r}, "tab-1")
	assert.Empty(t, sink.byType(events.CommandError))

	r = strings.NewReader("permission denied")
	e.runStderrWorker(nopCloser{r}, "tab-1")
	errs := sink.byType(events.CommandError)
	require.Len(t, errs, 1)
	assert.Equal(t, "permission denied", errs[0].Data["error"])
}

type nopCloser struct{ r *strings.Reader }

func (n nopCloser) Read(p []byte) (int, error) { return n.r.Read(p) }
func (n nopCloser) Close() error               { return nil }
