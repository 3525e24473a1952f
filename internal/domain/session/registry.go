package session

import (
	"os"
	"sync"
)

// State holds the execution state of one terminal session.
//
// Invariants, maintained by every mutation path:
//   - RemoteActive == true implies Stdin != nil; whenever one must be
//     cleared, RemoteActive, Stdin and RemoteDir are cleared together.
//   - PID and Proc are set together at spawn and cleared together, only by
//     the waiter whose captured pid still matches PID (stale-waiter guard).
type State struct {
	// CurrentDir is the session's local working directory, absolute.
	CurrentDir string

	// PID is the pid of the running foreground process, 0 when none.
	PID int

	// Proc allows the waiter goroutine to block on exit.
	Proc *ProcHandle

	// Stdin is the forwardable input of an interactive remote shell.
	Stdin *StdinHandle

	// RemoteActive marks Stdin as a live, forwardable SSH session.
	RemoteActive bool

	// RemoteDir is the best-known remote working directory, maintained
	// asynchronously by the marker protocol. Empty when not remote.
	RemoteDir string
}

// Registry is a process-wide, lock-protected map from session id to State.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*State

	// initialDir seeds CurrentDir on first reference to a session.
	initialDir string
}

// NewRegistry creates a registry. New sessions start in the process's
// working directory.
func NewRegistry() *Registry {
	wd, err := os.Getwd()
	if err != nil {
		wd = "/"
	}
	return &Registry{
		sessions:   make(map[string]*State),
		initialDir: wd,
	}
}

func (r *Registry) getOrCreate(id string) *State {
	s, ok := r.sessions[id]
	if !ok {
		s = &State{CurrentDir: r.initialDir}
		r.sessions[id] = s
	}
	return s
}

// Snapshot returns a copy of the session's state, default-initializing the
// session on first access. Handle pointers in the copy remain shared.
func (r *Registry) Snapshot(id string) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.getOrCreate(id)
}

// Update runs fn on the session's state under the registry lock,
// default-initializing the session on first access. fn must not perform I/O.
func (r *Registry) Update(id string, fn func(s *State)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.getOrCreate(id))
}

// UpdateIfPID runs fn only if the session exists and its recorded PID still
// equals pid. Returns whether fn ran. This is the stale-waiter guard: a
// delayed cleanup goroutine must not clobber state belonging to a newer
// command.
func (r *Registry) UpdateIfPID(id string, pid int, fn func(s *State)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.PID != pid {
		return false
	}
	fn(s)
	return true
}

// CurrentDir returns the session's working directory, default-initializing
// the session on first access.
func (r *Registry) CurrentDir(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getOrCreate(id).CurrentDir
}

// SetCurrentDir updates the session's working directory.
func (r *Registry) SetCurrentDir(id, dir string) {
	r.Update(id, func(s *State) { s.CurrentDir = dir })
}

// ClearRemote atomically clears the remote-session trio if the session's
// recorded PID still equals pid and a remote session is flagged. Returns
// whether anything was cleared.
func (r *Registry) ClearRemote(id string, pid int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.PID != pid || !s.RemoteActive {
		return false
	}
	s.RemoteActive = false
	s.Stdin = nil
	s.RemoteDir = ""
	return true
}

// InitialDir returns the directory new sessions start in.
func (r *Registry) InitialDir() string {
	return r.initialDir
}
