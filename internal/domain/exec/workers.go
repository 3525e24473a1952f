package exec

import (
	"io"
	osexec "os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aiterminal/backend/internal/domain/session"
	"github.com/aiterminal/backend/internal/events"
)

const readBufSize = 2048

// runStdoutWorker streams the child's stdout as command_output events,
// buffering into lines so the marker parser sees whole marker lines. The
// trailing partial line is flushed at EOF.
func (e *Engine) runStdoutWorker(r io.ReadCloser, sessionID string, pid int) {
	defer r.Close()

	parser := newMarkerParser()
	buf := make([]byte, readBufSize)
	pending := ""

	for {
		n, err := r.Read(buf)
		if n > 0 {
			pending += string(buf[:n])
			for {
				i := strings.IndexByte(pending, '\n')
				if i < 0 {
					break
				}
				line := pending[:i+1]
				pending = pending[i+1:]
				e.handleStdoutLine(parser, line, sessionID, pid)
			}
		}
		if err != nil {
			if pending != "" {
				e.emitOutput(sessionID, pending)
			}
			return
		}
	}
}

// handleStdoutLine routes one newline-terminated line: ordinary output is
// forwarded verbatim (terminator included), marker plumbing is swallowed,
// and a captured pwd value updates the session's remote directory.
func (e *Engine) handleStdoutLine(p *markerParser, line, sessionID string, pid int) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		if p.idle() {
			e.emitOutput(sessionID, line)
		}
		return
	}

	action, value := p.feed(trimmed)
	switch action {
	case actionForward:
		e.emitOutput(sessionID, line)
	case actionConsume:
		// marker plumbing
	case actionValue:
		updated := false
		e.registry.UpdateIfPID(sessionID, pid, func(s *session.State) {
			if s.RemoteActive {
				s.RemoteDir = value
				updated = true
			}
		})
		if updated {
			e.sink.Emit(events.New(events.RemoteDirUpdated, sessionID, map[string]interface{}{
				"path": value,
			}))
		} else {
			// The probe answered after the session moved on; the value
			// belongs to a dead shell. Drop it.
			e.log.Debug("discarding stale remote pwd",
				zap.String("session_id", sessionID),
				zap.Int("pid", pid),
			)
		}
	}
}

func (e *Engine) emitOutput(sessionID, chunk string) {
	e.sink.Emit(events.New(events.CommandOutput, sessionID, map[string]interface{}{
		"output": chunk,
	}))
}

// runStderrWorker streams the child's stderr as command_error events in raw
// chunks. sudo's password prompt is suppressed: the password was already
// supplied on stdin and the prompt would only confuse the client.
func (e *Engine) runStderrWorker(r io.ReadCloser, sessionID string) {
	defer r.Close()

	buf := make([]byte, readBufSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := string(buf[:n])
			if !strings.Contains(chunk, "[sudo] password") {
				e.sink.Emit(events.New(events.CommandError, sessionID, map[string]interface{}{
					"error": chunk,
				}))
			}
		}
		if err != nil {
			return
		}
	}
}

// runWaiter blocks on child exit, then clears session state and emits the
// terminal command_end event. All registry mutation goes through the
// stale-pid guard: if a newer command already replaced this pid, the state
// belongs to that command and is left alone.
func (e *Engine) runWaiter(proc *session.ProcHandle, sessionID string, pid int, sshStarter bool, started time.Time) {
	waitErr := proc.Wait()

	endedNormally := false
	e.registry.UpdateIfPID(sessionID, pid, func(s *session.State) {
		s.PID = 0
		s.Proc = nil
		if sshStarter {
			if s.RemoteActive {
				endedNormally = true
			}
			s.RemoteActive = false
			s.Stdin = nil
			s.RemoteDir = ""
		}
	})

	if endedNormally {
		e.sink.Emit(events.NewWithPID(events.SSHSessionEnded, sessionID, pid, map[string]interface{}{
			"reason": "SSH session ended normally.",
		}))
	}

	if e.metrics != nil {
		e.metrics.CommandsActive.Dec()
		e.metrics.CommandDuration.Observe(time.Since(started).Seconds())
	}

	switch err := waitErr.(type) {
	case nil:
		e.sink.Emit(events.New(events.CommandEnd, sessionID, map[string]interface{}{
			"message": "Command completed successfully.",
			"success": true,
		}))
	case *osexec.ExitError:
		e.sink.Emit(events.New(events.CommandEnd, sessionID, map[string]interface{}{
			"message": "Command failed.",
			"success": false,
			"code":    err.ExitCode(),
		}))
	default:
		e.sink.Emit(events.New(events.CommandError, sessionID, map[string]interface{}{
			"error": "Failed to wait for command: " + err.Error(),
		}))
		e.sink.Emit(events.New(events.CommandEnd, sessionID, map[string]interface{}{
			"message": "Command failed.",
			"success": false,
		}))
	}
}
