package providers

import (
	"context"
	"fmt"
	osexec "os/exec"
	"strings"

	"github.com/aiterminal/backend/internal/domain/session"
	"github.com/aiterminal/backend/internal/shared/types"
)

// Git reports repository state for the session's working directory, used by
// the client to decorate the prompt.
type Git struct {
	registry *session.Registry
}

// NewGit creates a git provider bound to the session registry.
func NewGit(registry *session.Registry) *Git {
	return &Git{registry: registry}
}

// Definition returns service metadata.
func (g *Git) Definition() types.Service {
	return types.Service{
		ID:          "git",
		Name:        "Git Service",
		Description: "Repository state for the current session directory",
		Category:    types.CategoryVCS,
		Capabilities: []string{
			"branch",
			"status",
		},
		Tools: []types.Tool{
			{
				ID:          "git.branch",
				Name:        "Current Branch",
				Description: "Get the checked-out branch of the session's directory",
				Parameters: []types.Parameter{
					{Name: "dir", Type: "string", Description: "Directory override", Required: false},
				},
				Returns: "object",
			},
			{
				ID:          "git.status",
				Name:        "Working Tree Status",
				Description: "Whether the working tree has uncommitted changes",
				Parameters: []types.Parameter{
					{Name: "dir", Type: "string", Description: "Directory override", Required: false},
				},
				Returns: "object",
			},
		},
	}
}

// Execute runs a git query.
func (g *Git) Execute(ctx context.Context, toolID string, params map[string]interface{}, tctx *types.Context) (*types.Result, error) {
	dir := g.resolveDir(params, tctx)

	switch toolID {
	case "git.branch":
		// Not a repository is a normal state, not an error: the prompt
		// just shows no branch segment.
		return types.OK(map[string]interface{}{
			"branch": g.branch(ctx, dir),
			"dir":    dir,
		}), nil
	case "git.status":
		dirty, inRepo := g.dirty(ctx, dir)
		return types.OK(map[string]interface{}{
			"in_repo": inRepo,
			"dirty":   dirty,
		}), nil
	default:
		return types.Failure("unknown tool: " + toolID), fmt.Errorf("unknown tool: %s", toolID)
	}
}

func (g *Git) resolveDir(params map[string]interface{}, tctx *types.Context) string {
	if dir, ok := params["dir"].(string); ok && dir != "" {
		return dir
	}
	if tctx != nil && tctx.SessionID != nil {
		return g.registry.CurrentDir(*tctx.SessionID)
	}
	return g.registry.InitialDir()
}

// branch returns the current branch name, or "" outside a repository or on
// a detached HEAD ("HEAD" is mapped to "" as well, matching prompt needs).
func (g *Git) branch(ctx context.Context, dir string) string {
	cmd := osexec.CommandContext(ctx, "git", "rev-parse", "--abbrev-ref", "HEAD")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	name := strings.TrimSpace(string(out))
	if name == "HEAD" {
		return ""
	}
	return name
}

func (g *Git) dirty(ctx context.Context, dir string) (dirty, inRepo bool) {
	cmd := osexec.CommandContext(ctx, "git", "status", "--porcelain")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return false, false
	}
	return strings.TrimSpace(string(out)) != "", true
}
