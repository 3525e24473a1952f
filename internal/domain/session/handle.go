package session

import (
	"io"
	"os/exec"
	"sync"
)

// ProcHandle is a shared, lock-guarded handle to a spawned child process.
// The spawning engine and its waiter goroutine share one handle; the mutex
// guarantees Wait and Kill never race.
type ProcHandle struct {
	mu  sync.Mutex
	cmd *exec.Cmd
}

// NewProcHandle wraps a started command.
func NewProcHandle(cmd *exec.Cmd) *ProcHandle {
	return &ProcHandle{cmd: cmd}
}

// Wait blocks until the child exits. Returns nil on a zero exit status.
func (h *ProcHandle) Wait() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cmd.Wait()
}

// Kill terminates the child if it is still running.
func (h *ProcHandle) Kill() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cmd.Process == nil {
		return nil
	}
	return h.cmd.Process.Kill()
}

// Pid returns the child's pid.
func (h *ProcHandle) Pid() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cmd.Process == nil {
		return 0
	}
	return h.cmd.Process.Pid
}

// StdinHandle is a shared, lock-guarded writer to a foreground process's
// input stream. Present only while the foreground process is an interactive
// remote shell accepting forwarded commands.
type StdinHandle struct {
	mu sync.Mutex
	w  io.WriteCloser
}

// NewStdinHandle wraps a child stdin pipe.
func NewStdinHandle(w io.WriteCloser) *StdinHandle {
	return &StdinHandle{w: w}
}

// WriteString writes s to the child's stdin. Pipe writes are unbuffered, so
// a successful write is fully delivered.
func (h *StdinHandle) WriteString(s string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, s)
	return err
}

// Close closes the underlying pipe end.
func (h *StdinHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.w.Close()
}
