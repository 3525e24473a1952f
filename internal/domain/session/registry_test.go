package session

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotDefaultsToProcessWorkingDir(t *testing.T) {
	r := NewRegistry()
	wd, err := os.Getwd()
	require.NoError(t, err)

	s := r.Snapshot("tab-1")
	assert.Equal(t, wd, s.CurrentDir)
	assert.Equal(t, 0, s.PID)
	assert.Nil(t, s.Proc)
	assert.Nil(t, s.Stdin)
	assert.False(t, s.RemoteActive)
	assert.Empty(t, s.RemoteDir)
}

func TestUpdatePersists(t *testing.T) {
	r := NewRegistry()
	r.Update("tab-1", func(s *State) {
		s.CurrentDir = "/tmp"
		s.PID = 123
	})

	s := r.Snapshot("tab-1")
	assert.Equal(t, "/tmp", s.CurrentDir)
	assert.Equal(t, 123, s.PID)
}

func TestSessionsAreIndependent(t *testing.T) {
	r := NewRegistry()
	r.SetCurrentDir("tab-1", "/tmp")

	assert.Equal(t, "/tmp", r.CurrentDir("tab-1"))
	assert.Equal(t, r.InitialDir(), r.CurrentDir("tab-2"))
}

func TestUpdateIfPIDGuardsStaleWaiter(t *testing.T) {
	r := NewRegistry()
	r.Update("tab-1", func(s *State) { s.PID = 100 })

	// Waiter for a stale pid must not run.
	ran := r.UpdateIfPID("tab-1", 99, func(s *State) { s.PID = 0 })
	assert.False(t, ran)
	assert.Equal(t, 100, r.Snapshot("tab-1").PID)

	// Matching pid runs and clears.
	ran = r.UpdateIfPID("tab-1", 100, func(s *State) {
		s.PID = 0
		s.Proc = nil
	})
	assert.True(t, ran)
	assert.Equal(t, 0, r.Snapshot("tab-1").PID)
}

func TestUpdateIfPIDUnknownSession(t *testing.T) {
	r := NewRegistry()
	ran := r.UpdateIfPID("missing", 1, func(s *State) {})
	assert.False(t, ran)
}

func TestClearRemoteRequiresMatchingPIDAndFlag(t *testing.T) {
	r := NewRegistry()
	r.Update("tab-1", func(s *State) {
		s.PID = 50
		s.RemoteActive = true
		s.Stdin = &StdinHandle{}
		s.RemoteDir = "/home/u"
	})

	assert.False(t, r.ClearRemote("tab-1", 49), "wrong pid must not clear")
	assert.True(t, r.Snapshot("tab-1").RemoteActive)

	assert.True(t, r.ClearRemote("tab-1", 50))
	s := r.Snapshot("tab-1")
	assert.False(t, s.RemoteActive)
	assert.Nil(t, s.Stdin)
	assert.Empty(t, s.RemoteDir)

	// Already cleared: nothing to do.
	assert.False(t, r.ClearRemote("tab-1", 50))
}
