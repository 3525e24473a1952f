package exec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteSudoRejectsNonSudo(t *testing.T) {
	e, reg, _ := newTestEngine()

	_, err := e.ExecuteSudo("ls -la", "tab-1", "pw")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a sudo command")

	// Nothing was spawned.
	assert.Equal(t, 0, reg.Snapshot("tab-1").PID)
}

func TestExecuteSudoRejectsEmpty(t *testing.T) {
	e, _, _ := newTestEngine()
	_, err := e.ExecuteSudo("", "tab-1", "pw")
	require.Error(t, err)
}
