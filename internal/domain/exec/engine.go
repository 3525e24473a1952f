package exec

import (
	"fmt"
	"os"
	osexec "os/exec"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/aiterminal/backend/internal/domain/session"
	"github.com/aiterminal/backend/internal/events"
	"github.com/aiterminal/backend/internal/infrastructure/logging"
	"github.com/aiterminal/backend/internal/infrastructure/monitoring"
)

// Result is the synchronous acknowledgment of an Execute call. Output and
// completion arrive later on the event stream.
type Result string

const (
	// ResultStarted acknowledges a spawned process.
	ResultStarted Result = "Command started. Output will stream in real-time."

	// ResultForwarded marks a command written to an active SSH session.
	ResultForwarded Result = "COMMAND_FORWARDED_TO_ACTIVE_SSH"

	// ResultNeedsPassword asks the caller to re-invoke with a password.
	ResultNeedsPassword Result = "SSH_INTERACTIVE_PASSWORD_PROMPT_REQUESTED"
)

// Engine executes commands on behalf of terminal sessions.
type Engine struct {
	registry *session.Registry
	sink     events.Sink
	log      *logging.Logger
	metrics  *monitoring.Metrics
}

// NewEngine creates a command execution engine.
func NewEngine(registry *session.Registry, sink events.Sink, log *logging.Logger) *Engine {
	return &Engine{
		registry: registry,
		sink:     sink,
		log:      log,
	}
}

// WithMetrics attaches a metrics collector.
func (e *Engine) WithMetrics(m *monitoring.Metrics) *Engine {
	e.metrics = m
	return e
}

// Execute runs command for the given session. password is only consulted for
// plain ssh invocations. The call returns as soon as the command has been
// dispatched; it never blocks on command completion.
func (e *Engine) Execute(command, sessionID string, password *string) (Result, error) {
	// Phase 1: an active remote session forwards instead of spawning.
	snap := e.registry.Snapshot(sessionID)
	if snap.RemoteActive {
		if snap.Stdin != nil {
			e.sink.Emit(events.New(events.CommandForwarded, sessionID, map[string]interface{}{
				"command": command,
			}))
			if e.metrics != nil {
				e.metrics.SSHForwarded.Inc()
			}
			go e.forwardToRemote(command, sessionID, snap.PID, snap.Stdin)
			return ResultForwarded, nil
		}

		// Active but no stdin: the session state is broken. Clear it and
		// make the caller retry.
		pid := snap.PID
		e.registry.Update(sessionID, func(s *session.State) {
			s.RemoteActive = false
			s.PID = 0
			s.Proc = nil
			s.RemoteDir = ""
		})
		e.sink.Emit(events.NewWithPID(events.SSHSessionEnded, sessionID, pid, map[string]interface{}{
			"reason": "SSH session inconsistency: active but no stdin.",
		}))
		return "", fmt.Errorf("SSH session conflict: active but no stdin, please retry")
	}

	// Phase 2: a local cd never spawns a process.
	if command == "cd" || strings.HasPrefix(command, "cd ") {
		return e.changeDir(command, sessionID)
	}

	// Phase 3: spawn a new process (local command or new SSH session).
	return e.spawn(command, sessionID, password)
}

// forwardToRemote writes the command to the remote shell's stdin on a
// background goroutine. A write failure tears down the remote-session state.
func (e *Engine) forwardToRemote(command, sessionID string, pid int, stdin *session.StdinHandle) {
	payload := command + "\n"
	if strings.HasPrefix(strings.TrimSpace(command), "cd ") {
		payload = wrapRemoteCD(command)
	}

	if err := stdin.WriteString(payload); err != nil {
		e.log.Warn("ssh forward failed",
			zap.String("session_id", sessionID),
			zap.Int("pid", pid),
			zap.Error(err),
		)
		e.registry.ClearRemote(sessionID, pid)
		e.sink.Emit(events.NewWithPID(events.SSHSessionEnded, sessionID, pid, map[string]interface{}{
			"reason": fmt.Sprintf("SSH session ended (stdin write error): %v", err),
		}))
		e.sink.Emit(events.New(events.CommandError, sessionID, map[string]interface{}{
			"error": fmt.Sprintf("Failed to send to SSH (%q): %v", command, err),
		}))
		e.sink.Emit(events.New(events.CommandEnd, sessionID, map[string]interface{}{
			"message": "Command failed.",
			"success": false,
		}))
	}
}

// spawn starts a new process for the session and wires its workers.
func (e *Engine) spawn(command, sessionID string, password *string) (Result, error) {
	currentDir := e.registry.CurrentDir(sessionID)

	plainSSH := isPlainSSH(command)
	trimmed := strings.TrimLeft(command, " \t")
	sudoCmd := strings.HasPrefix(trimmed, "sudo ")
	sudoSSH := strings.HasPrefix(trimmed, "sudo ssh ")

	// A new interactive SSH session needs a password up front; ask the
	// caller out-of-band rather than letting ssh prompt into a dead pipe.
	if plainSSH && password == nil {
		e.sink.Emit(events.New(events.SSHPasswordRequest, sessionID, map[string]interface{}{
			"command": command,
		}))
		if e.metrics != nil {
			e.metrics.RecordCommand("password_required")
		}
		return ResultNeedsPassword, nil
	}

	commandToRun := command
	if plainSSH && !sudoSSH {
		commandToRun = rewriteSSH(command)
	}

	var cmd *osexec.Cmd
	if plainSSH && !sudoCmd {
		var argv []string
		if password != nil {
			argv = append([]string{"sshpass", "-p", *password}, strings.Fields(commandToRun)...)
		} else {
			argv = strings.Fields(commandToRun)
			if len(argv) == 0 || argv[0] != "ssh" {
				return "", fmt.Errorf("failed to parse ssh command for direct execution: %s", commandToRun)
			}
		}
		cmd = osexec.Command(argv[0], argv[1:]...)
	} else {
		// exec replaces the shell so no parent sh lingers between us and
		// the command. Plain sudo keeps the shell: sudo -S needs it.
		shellCommand := commandToRun
		if !sudoCmd || sudoSSH {
			shellCommand = "exec " + commandToRun
		}
		cmd = osexec.Command("sh", "-c", shellCommand)
		cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	}

	cmd.Dir = currentDir
	cmd.Env = envWithPath()

	pipes, err := newStdioPipes(cmd)
	if err != nil {
		return "", fmt.Errorf("failed to allocate pipes: %w", err)
	}

	if err := cmd.Start(); err != nil {
		pipes.closeAll()
		return "", fmt.Errorf("failed to start command: %w", err)
	}
	pipes.closeChildEnds()

	pid := cmd.Process.Pid
	proc := session.NewProcHandle(cmd)

	var stdinHandle *session.StdinHandle
	if plainSSH {
		stdinHandle = session.NewStdinHandle(pipes.stdinW)
	}

	e.registry.Update(sessionID, func(s *session.State) {
		s.PID = pid
		s.Proc = proc
		if plainSSH {
			s.Stdin = stdinHandle
			s.RemoteActive = true
			s.RemoteDir = "remote:~"
		} else {
			s.Stdin = nil
			s.RemoteActive = false
			s.RemoteDir = ""
		}
	})

	if plainSSH {
		e.sink.Emit(events.NewWithPID(events.SSHSessionStarted, sessionID, pid, nil))
		if e.metrics != nil {
			e.metrics.SSHSessionsTotal.Inc()
		}
		go e.sendInitialPwdProbe(sessionID, pid, stdinHandle)
	} else {
		// Non-interactive children get no input.
		pipes.stdinW.Close()
	}

	if e.metrics != nil {
		e.metrics.CommandsActive.Inc()
		e.metrics.RecordCommand("started")
	}

	e.log.Debug("command spawned",
		zap.String("session_id", sessionID),
		zap.Int("pid", pid),
		zap.Bool("ssh", plainSSH),
	)

	go e.runStdoutWorker(pipes.stdoutR, sessionID, pid)
	go e.runStderrWorker(pipes.stderrR, sessionID)
	go e.runWaiter(proc, sessionID, pid, plainSSH, time.Now())

	return ResultStarted, nil
}

// sendInitialPwdProbe asks a freshly started remote shell for its working
// directory. Failure here means the session is unusable for forwarding.
func (e *Engine) sendInitialPwdProbe(sessionID string, pid int, stdin *session.StdinHandle) {
	if err := stdin.WriteString(initialPwdProbe()); err != nil {
		if e.registry.ClearRemote(sessionID, pid) {
			e.sink.Emit(events.NewWithPID(events.SSHSessionEnded, sessionID, pid, map[string]interface{}{
				"reason": fmt.Sprintf("SSH session error (initial PWD send for pid %d): %v", pid, err),
			}))
		}
	}
}

// stdioPipes holds both ends of the child's stdio. The parent keeps the
// write end of stdin and the read ends of stdout/stderr; the child ends are
// closed after Start so readers see EOF exactly when the child exits.
type stdioPipes struct {
	stdinR, stdinW   *os.File
	stdoutR, stdoutW *os.File
	stderrR, stderrW *os.File
}

func newStdioPipes(cmd *osexec.Cmd) (*stdioPipes, error) {
	p := &stdioPipes{}
	var err error
	if p.stdinR, p.stdinW, err = os.Pipe(); err != nil {
		return nil, err
	}
	if p.stdoutR, p.stdoutW, err = os.Pipe(); err != nil {
		p.closeAll()
		return nil, err
	}
	if p.stderrR, p.stderrW, err = os.Pipe(); err != nil {
		p.closeAll()
		return nil, err
	}
	cmd.Stdin = p.stdinR
	cmd.Stdout = p.stdoutW
	cmd.Stderr = p.stderrW
	return p, nil
}

func (p *stdioPipes) closeChildEnds() {
	p.stdinR.Close()
	p.stdoutW.Close()
	p.stderrW.Close()
}

func (p *stdioPipes) closeAll() {
	for _, f := range []*os.File{p.stdinR, p.stdinW, p.stdoutR, p.stdoutW, p.stderrR, p.stderrW} {
		if f != nil {
			f.Close()
		}
	}
}

// envWithPath returns the inherited environment, appending a conservative
// PATH when the process was launched without one (GUI-launched processes
// often miss the login shell's PATH).
func envWithPath() []string {
	env := os.Environ()
	for _, kv := range env {
		if strings.HasPrefix(kv, "PATH=") {
			return env
		}
	}
	return append(env, "PATH=/usr/local/bin:/usr/bin:/bin:/usr/sbin:/sbin")
}
