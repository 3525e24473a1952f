package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/aiterminal/backend/internal/infrastructure/monitoring"
	"github.com/aiterminal/backend/internal/shared/types"
)

// Provider is a pluggable terminal capability: a bundle of tools the client
// (or the AI layer) can discover and invoke by id.
type Provider interface {
	Definition() types.Service
	Execute(ctx context.Context, toolID string, params map[string]interface{}, tctx *types.Context) (*types.Result, error)
}

// Registry manages provider discovery and execution.
type Registry struct {
	providers sync.Map
	metrics   *monitoring.Metrics
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// WithMetrics attaches a metrics collector.
func (r *Registry) WithMetrics(m *monitoring.Metrics) *Registry {
	r.metrics = m
	return r
}

// Register adds a provider under its definition id.
func (r *Registry) Register(p Provider) error {
	def := p.Definition()
	if def.ID == "" {
		return fmt.Errorf("provider ID cannot be empty")
	}
	r.providers.Store(def.ID, p)
	return nil
}

// Unregister removes a provider.
func (r *Registry) Unregister(id string) {
	r.providers.Delete(id)
}

// Get retrieves a provider by id.
func (r *Registry) Get(id string) (Provider, bool) {
	val, ok := r.providers.Load(id)
	if !ok {
		return nil, false
	}
	return val.(Provider), true
}

// List returns all provider definitions, optionally filtered by category.
func (r *Registry) List(category *types.Category) []types.Service {
	var defs []types.Service
	r.providers.Range(func(_, value interface{}) bool {
		def := value.(Provider).Definition()
		if category == nil || def.Category == *category {
			defs = append(defs, def)
		}
		return true
	})
	sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
	return defs
}

// Discover ranks providers against a free-text intent and returns the top
// limit matches. Scoring is plain keyword overlap; good enough for routing
// tool catalogs to a model prompt.
func (r *Registry) Discover(intent string, limit int) []types.Service {
	type scored struct {
		service types.Service
		score   float64
	}

	intentLower := strings.ToLower(intent)
	var results []scored

	r.providers.Range(func(_, value interface{}) bool {
		def := value.(Provider).Definition()
		if s := relevance(intentLower, def); s > 0 {
			results = append(results, scored{service: def, score: s})
		}
		return true
	})

	sort.Slice(results, func(i, j int) bool {
		return results[i].score > results[j].score
	})

	out := make([]types.Service, 0, limit)
	for i := 0; i < len(results) && i < limit; i++ {
		out = append(out, results[i].service)
	}
	return out
}

// Execute runs a tool. toolID has the form "<provider>.<tool>"; routing only
// looks at the provider half, the provider dispatches on the full id.
func (r *Registry) Execute(ctx context.Context, toolID string, params map[string]interface{}, tctx *types.Context) (*types.Result, error) {
	parts := strings.SplitN(toolID, ".", 2)
	if len(parts) < 2 {
		return types.Failure("invalid tool ID format"), fmt.Errorf("invalid tool ID format: %s", toolID)
	}

	provider, ok := r.Get(parts[0])
	if !ok {
		msg := fmt.Sprintf("provider not found: %s", parts[0])
		return types.Failure(msg), fmt.Errorf("%s", msg)
	}

	res, err := provider.Execute(ctx, toolID, params, tctx)
	if r.metrics != nil {
		r.metrics.RecordServiceCall(toolID, err)
	}
	return res, err
}

// Stats summarizes the registry for the health endpoint.
func (r *Registry) Stats() map[string]interface{} {
	var total, totalTools int
	categories := make(map[string]int)

	r.providers.Range(func(_, value interface{}) bool {
		def := value.(Provider).Definition()
		total++
		totalTools += len(def.Tools)
		categories[string(def.Category)]++
		return true
	})

	return map[string]interface{}{
		"total_providers": total,
		"total_tools":     totalTools,
		"categories":      categories,
	}
}

func relevance(intent string, def types.Service) float64 {
	score := 0.0

	if strings.Contains(intent, def.ID) || strings.Contains(intent, strings.ToLower(def.Name)) {
		score += 10.0
	}

	for _, word := range strings.Fields(strings.ToLower(def.Description)) {
		if strings.Contains(intent, word) {
			score += 5.0
		}
	}

	for _, cap := range def.Capabilities {
		if strings.Contains(intent, strings.ReplaceAll(strings.ToLower(cap), "_", " ")) {
			score += 3.0
		}
	}

	if strings.Contains(intent, string(def.Category)) {
		score += 2.0
	}

	return score
}
