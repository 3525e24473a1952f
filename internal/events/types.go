package events

import (
	"time"

	"github.com/google/uuid"
)

// Type identifies an event kind on the session event stream.
type Type string

const (
	CommandOutput      Type = "command_output"
	CommandError       Type = "command_error"
	CommandEnd         Type = "command_end"
	CommandForwarded   Type = "command_forwarded_to_ssh"
	SSHPasswordRequest Type = "ssh_pre_exec_password_request"
	SSHSessionStarted  Type = "ssh_session_started"
	SSHSessionEnded    Type = "ssh_session_ended"
	RemoteDirUpdated   Type = "remote_directory_updated"
	PTYOutput          Type = "pty_output"
	PTYExit            Type = "pty_exit"
)

// Event is the envelope delivered to subscribers. Every event is tagged with
// the session it belongs to; process-scoped events carry the pid as well.
type Event struct {
	ID        string                 `json:"id"`
	Type      Type                   `json:"type"`
	SessionID string                 `json:"session_id"`
	PID       int                    `json:"pid,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// New constructs an event envelope for a session.
func New(t Type, sessionID string, data map[string]interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		SessionID: sessionID,
		Data:      data,
		Timestamp: time.Now(),
	}
}

// NewWithPID constructs a process-scoped event envelope.
func NewWithPID(t Type, sessionID string, pid int, data map[string]interface{}) Event {
	e := New(t, sessionID, data)
	e.PID = pid
	return e
}

// Sink receives events from the execution engines. Implementations must not
// block: engine workers publish from stream-reader goroutines.
type Sink interface {
	Emit(Event)
}
