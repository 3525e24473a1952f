package exec

import (
	"fmt"
	osexec "os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aiterminal/backend/internal/domain/session"
	"github.com/aiterminal/backend/internal/events"
)

// ExecuteSudo runs a sudo command non-interactively: `sudo -S` reads the
// password from stdin, so the client collects it once and no tty prompt ever
// appears. The leading "sudo" token is stripped and the remainder runs under
// `bash -c` with the session's working directory.
func (e *Engine) ExecuteSudo(command, sessionID, password string) (Result, error) {
	parts := strings.Fields(command)
	if len(parts) == 0 || parts[0] != "sudo" {
		return "", fmt.Errorf("not a sudo command: %s", command)
	}
	inner := strings.Join(parts[1:], " ")

	cmd := osexec.Command("sudo", "-S", "bash", "-c", inner)
	cmd.Dir = e.registry.CurrentDir(sessionID)
	cmd.Env = envWithPath()

	pipes, err := newStdioPipes(cmd)
	if err != nil {
		return "", fmt.Errorf("failed to allocate pipes: %w", err)
	}

	if err := cmd.Start(); err != nil {
		pipes.closeAll()
		return "", fmt.Errorf("failed to start sudo command: %w", err)
	}
	pipes.closeChildEnds()

	pid := cmd.Process.Pid
	proc := session.NewProcHandle(cmd)

	e.registry.Update(sessionID, func(s *session.State) {
		s.PID = pid
		s.Proc = proc
	})

	if e.metrics != nil {
		e.metrics.CommandsActive.Inc()
		e.metrics.RecordCommand("started")
	}

	e.log.Debug("sudo command spawned",
		zap.String("session_id", sessionID),
		zap.Int("pid", pid),
	)

	// Feed the password, then close stdin so sudo cannot re-prompt.
	stdin := session.NewStdinHandle(pipes.stdinW)
	go func() {
		if err := stdin.WriteString(password + "\n"); err != nil {
			e.sink.Emit(events.New(events.CommandError, sessionID, map[string]interface{}{
				"error": fmt.Sprintf("Failed to send password to sudo: %v", err),
			}))
		}
		stdin.Close()
	}()

	go e.runStdoutWorker(pipes.stdoutR, sessionID, pid)
	go e.runStderrWorker(pipes.stderrR, sessionID)
	go e.runWaiter(proc, sessionID, pid, false, time.Now())

	return ResultStarted, nil
}
