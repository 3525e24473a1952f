package exec

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aiterminal/backend/internal/events"
)

// changeDir handles a local cd in-process. It never spawns a shell: the
// session's working directory is state we own, not the child's.
func (e *Engine) changeDir(command, sessionID string) (Result, error) {
	arg := strings.TrimSpace(strings.TrimPrefix(command, "cd"))
	current := e.registry.CurrentDir(sessionID)

	target, err := ResolveDir(current, arg)
	if err != nil {
		if e.metrics != nil {
			e.metrics.RecordCommand("error")
		}
		e.sink.Emit(events.New(events.CommandEnd, sessionID, map[string]interface{}{
			"message": "Command failed.",
			"success": false,
		}))
		return "", err
	}

	e.registry.SetCurrentDir(sessionID, target)
	if e.metrics != nil {
		e.metrics.RecordCommand("cd")
	}
	e.sink.Emit(events.New(events.CommandEnd, sessionID, map[string]interface{}{
		"message": "Command completed successfully.",
		"success": true,
	}))
	return Result("Changed directory to " + target), nil
}

// ResolveDir resolves a cd argument against the given working directory and
// verifies the target exists. Supported forms: empty or "~" (home), "~/sub",
// absolute paths, and relative paths where ".." climbs one component at a
// time and refuses to climb past the filesystem root.
//
// Error messages are user-facing terminal output, hence the casing.
func ResolveDir(currentDir, arg string) (string, error) {
	var target string
	switch {
	case arg == "" || arg == "~":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.New("Could not determine home directory")
		}
		target = home

	case strings.HasPrefix(arg, "~/"):
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.New("Could not determine home directory")
		}
		target = filepath.Join(home, arg[2:])

	case strings.HasPrefix(arg, "/"):
		target = arg

	default:
		p := currentDir
		for _, comp := range strings.Split(arg, "/") {
			switch comp {
			case "", ".":
				// skip
			case "..":
				parent := filepath.Dir(p)
				if parent == p {
					return "", errors.New("Already at root directory")
				}
				p = parent
			default:
				p = filepath.Join(p, comp)
			}
		}
		target = p
	}

	info, err := os.Stat(target)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("Directory not found: %s", arg)
	}
	return filepath.Clean(target), nil
}
