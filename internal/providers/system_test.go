package providers

import (
	"context"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemInfo(t *testing.T) {
	s := NewSystem()

	res, err := s.Execute(context.Background(), "system.info", nil, nil)
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, runtime.GOOS, res.Data["os"])
	assert.NotZero(t, res.Data["pid"])
}

func TestSystemEnv(t *testing.T) {
	s := NewSystem()
	t.Setenv("AITERM_TEST_VAR", "hello")

	res, err := s.Execute(context.Background(), "system.env",
		map[string]interface{}{"name": "AITERM_TEST_VAR"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", res.Data["value"])
	assert.Equal(t, true, res.Data["found"])

	res, err = s.Execute(context.Background(), "system.env",
		map[string]interface{}{"name": "AITERM_DEFINITELY_UNSET"}, nil)
	require.NoError(t, err)
	assert.Equal(t, false, res.Data["found"])
}

func TestSystemEnvRequiresName(t *testing.T) {
	s := NewSystem()
	res, err := s.Execute(context.Background(), "system.env", nil, nil)
	require.Error(t, err)
	assert.False(t, res.Success)
}

func TestSystemPing(t *testing.T) {
	s := NewSystem()
	res, err := s.Execute(context.Background(), "system.ping", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, true, res.Data["pong"])
}

func TestSystemUnknownTool(t *testing.T) {
	s := NewSystem()
	_, err := s.Execute(context.Background(), "system.nope", nil, nil)
	assert.Error(t, err)
}
