package providers

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/aiterminal/backend/internal/shared/types"
)

// System exposes host information to the terminal client.
type System struct {
	startTime time.Time
}

// NewSystem creates a system provider.
func NewSystem() *System {
	return &System{startTime: time.Now()}
}

// Definition returns service metadata.
func (s *System) Definition() types.Service {
	return types.Service{
		ID:          "system",
		Name:        "System Service",
		Description: "Host and process information",
		Category:    types.CategorySystem,
		Capabilities: []string{
			"info",
			"environment",
		},
		Tools: []types.Tool{
			{
				ID:          "system.info",
				Name:        "System Info",
				Description: "Get OS, architecture and process information",
				Parameters:  []types.Parameter{},
				Returns:     "object",
			},
			{
				ID:          "system.env",
				Name:        "Environment Variable",
				Description: "Read an environment variable",
				Parameters: []types.Parameter{
					{Name: "name", Type: "string", Description: "Variable name", Required: true},
				},
				Returns: "object",
			},
			{
				ID:          "system.time",
				Name:        "Current Time",
				Description: "Get current server time",
				Parameters:  []types.Parameter{},
				Returns:     "object",
			},
			{
				ID:          "system.ping",
				Name:        "Ping",
				Description: "Test service availability",
				Parameters:  []types.Parameter{},
				Returns:     "object",
			},
		},
	}
}

// Execute runs a system operation.
func (s *System) Execute(ctx context.Context, toolID string, params map[string]interface{}, tctx *types.Context) (*types.Result, error) {
	switch toolID {
	case "system.info":
		return s.info()
	case "system.env":
		return s.env(params)
	case "system.time":
		return types.OK(map[string]interface{}{
			"now":  time.Now().Format(time.RFC3339),
			"unix": time.Now().Unix(),
		}), nil
	case "system.ping":
		return types.OK(map[string]interface{}{"pong": true}), nil
	default:
		return types.Failure("unknown tool: " + toolID), fmt.Errorf("unknown tool: %s", toolID)
	}
}

func (s *System) info() (*types.Result, error) {
	home, _ := os.UserHomeDir()
	wd, _ := os.Getwd()
	hostname, _ := os.Hostname()

	return types.OK(map[string]interface{}{
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"go_version": runtime.Version(),
		"num_cpu":    runtime.NumCPU(),
		"pid":        os.Getpid(),
		"hostname":   hostname,
		"home_dir":   home,
		"work_dir":   wd,
		"uptime_sec": int(time.Since(s.startTime).Seconds()),
	}), nil
}

func (s *System) env(params map[string]interface{}) (*types.Result, error) {
	name, ok := params["name"].(string)
	if !ok || name == "" {
		return types.Failure("name parameter required"), fmt.Errorf("name parameter required")
	}
	value, found := os.LookupEnv(name)
	return types.OK(map[string]interface{}{
		"name":  name,
		"value": value,
		"found": found,
	}), nil
}
