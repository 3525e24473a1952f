package providers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"

	"github.com/aiterminal/backend/internal/domain/session"
	"github.com/aiterminal/backend/internal/shared/types"
)

// commonCommands seed the completion table so frequent commands rank ahead
// of obscure PATH entries.
var commonCommands = []string{
	"cat", "cd", "chmod", "chown", "clear", "cp", "curl", "df", "du",
	"echo", "env", "exit", "export", "find", "git", "grep", "head",
	"history", "htop", "kill", "less", "ln", "ls", "make", "man",
	"mkdir", "mv", "ping", "ps", "pwd", "rm", "rmdir", "scp", "sed",
	"sort", "ssh", "sudo", "tail", "tar", "top", "touch", "uname",
	"uniq", "wc", "wget", "which",
}

// Autocomplete suggests command names and filesystem paths for a partially
// typed command line.
type Autocomplete struct {
	registry *session.Registry

	scanOnce sync.Once
	mu       sync.RWMutex
	pathCmds []string
}

// NewAutocomplete creates an autocomplete provider bound to the session
// registry (for per-session working directories).
func NewAutocomplete(registry *session.Registry) *Autocomplete {
	return &Autocomplete{registry: registry}
}

// Definition returns service metadata.
func (a *Autocomplete) Definition() types.Service {
	return types.Service{
		ID:          "autocomplete",
		Name:        "Autocomplete Service",
		Description: "Command and path completion for the input line",
		Category:    types.CategoryFilesystem,
		Capabilities: []string{
			"commands",
			"paths",
		},
		Tools: []types.Tool{
			{
				ID:          "autocomplete.suggest",
				Name:        "Suggest",
				Description: "Complete a partial command line",
				Parameters: []types.Parameter{
					{Name: "input", Type: "string", Description: "Partial command line", Required: true},
					{Name: "limit", Type: "number", Description: "Maximum suggestions", Required: false},
				},
				Returns: "array",
			},
		},
	}
}

// Execute runs a completion query.
func (a *Autocomplete) Execute(ctx context.Context, toolID string, params map[string]interface{}, tctx *types.Context) (*types.Result, error) {
	if toolID != "autocomplete.suggest" {
		return types.Failure("unknown tool: " + toolID), fmt.Errorf("unknown tool: %s", toolID)
	}

	input, ok := params["input"].(string)
	if !ok {
		return types.Failure("input parameter required"), fmt.Errorf("input parameter required")
	}

	limit := 20
	if l, ok := params["limit"].(float64); ok && l > 0 {
		limit = int(l)
	}

	dir := a.registry.InitialDir()
	if tctx != nil && tctx.SessionID != nil {
		dir = a.registry.CurrentDir(*tctx.SessionID)
	}

	suggestions := a.Suggest(input, dir, limit)
	return types.OK(map[string]interface{}{
		"suggestions": suggestions,
		"count":       len(suggestions),
	}), nil
}

// Suggest completes input against the working directory dir. The first token
// completes as a command name; later tokens complete as paths. A `cd` line
// completes to directories only.
func (a *Autocomplete) Suggest(input, dir string, limit int) []string {
	if strings.TrimSpace(input) == "" {
		return nil
	}

	if !strings.Contains(strings.TrimLeft(input, " "), " ") {
		return a.suggestCommands(strings.TrimLeft(input, " "), limit)
	}

	fields := strings.Fields(input)
	partial := ""
	if !strings.HasSuffix(input, " ") && len(fields) > 1 {
		partial = fields[len(fields)-1]
	}
	dirsOnly := fields[0] == "cd"
	return suggestPaths(partial, dir, dirsOnly, limit)
}

func (a *Autocomplete) suggestCommands(prefix string, limit int) []string {
	a.scanOnce.Do(a.scanPath)

	lower := strings.ToLower(prefix)
	seen := make(map[string]bool)
	var out []string

	add := func(name string) {
		if len(out) >= limit || seen[name] {
			return
		}
		if strings.HasPrefix(strings.ToLower(name), lower) {
			seen[name] = true
			out = append(out, name)
		}
	}

	for _, c := range commonCommands {
		add(c)
	}

	a.mu.RLock()
	cmds := a.pathCmds
	a.mu.RUnlock()
	for _, c := range cmds {
		if len(out) >= limit {
			break
		}
		add(c)
	}
	return out
}

// scanPath collects executable names from every PATH directory, once. PATH
// directories are scanned flat: subdirectories are not on the search path.
func (a *Autocomplete) scanPath() {
	seen := make(map[string]bool)
	conf := fastwalk.Config{Follow: false}

	for _, root := range filepath.SplitList(os.Getenv("PATH")) {
		if root == "" {
			continue
		}
		fastwalk.Walk(&conf, root, func(p string, d os.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				if p != root {
					return filepath.SkipDir
				}
				return nil
			}
			seen[d.Name()] = true
			return nil
		})
	}

	cmds := make([]string, 0, len(seen))
	for name := range seen {
		cmds = append(cmds, name)
	}
	sort.Strings(cmds)

	a.mu.Lock()
	a.pathCmds = cmds
	a.mu.Unlock()
}

// suggestPaths completes the partial path argument against dir. Directory
// suggestions carry a trailing slash so the client can keep completing.
func suggestPaths(partial, dir string, dirsOnly bool, limit int) []string {
	searchDir := dir
	prefix := partial

	if i := strings.LastIndexByte(partial, '/'); i >= 0 {
		base := partial[:i+1]
		prefix = partial[i+1:]
		switch {
		case strings.HasPrefix(base, "/"):
			searchDir = base
		case strings.HasPrefix(base, "~/"):
			home, err := os.UserHomeDir()
			if err != nil {
				return nil
			}
			searchDir = filepath.Join(home, base[2:])
		default:
			searchDir = filepath.Join(dir, base)
		}
	}

	entries, err := os.ReadDir(searchDir)
	if err != nil {
		return nil
	}

	lower := strings.ToLower(prefix)
	var out []string
	for _, e := range entries {
		if len(out) >= limit {
			break
		}
		name := e.Name()
		// Hidden entries only complete when explicitly asked for.
		if strings.HasPrefix(name, ".") && !strings.HasPrefix(prefix, ".") {
			continue
		}
		if !strings.HasPrefix(strings.ToLower(name), lower) {
			continue
		}
		if e.IsDir() {
			out = append(out, name+"/")
		} else if !dirsOnly {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
