package providers

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/aiterminal/backend/internal/infrastructure/config"
	"github.com/aiterminal/backend/internal/infrastructure/resilience"
	"github.com/aiterminal/backend/internal/shared/types"
)

// AI turns natural-language requests into shell commands through a local
// Ollama instance. Calls are rate limited and wrapped in a circuit breaker
// so a wedged model server cannot pile up requests.
type AI struct {
	mu    sync.RWMutex
	host  string
	model string

	client  *resty.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	System string `json:"system"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// NewAI creates an AI provider for the configured Ollama endpoint.
func NewAI(cfg config.AIConfig) *AI {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 2
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.Logger = nil

	client := resty.New().
		SetTimeout(120 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetTransport(retryClient.HTTPClient.Transport)

	return &AI{
		host:    cfg.Host,
		model:   cfg.Model,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(2), 4),
		breaker: resilience.New("ollama", resilience.Settings{
			Timeout: 30 * time.Second,
			ReadyToTrip: func(c resilience.Counts) bool {
				return c.ConsecutiveFailures > 3
			},
		}),
	}
}

// Definition returns service metadata.
func (a *AI) Definition() types.Service {
	return types.Service{
		ID:          "ai",
		Name:        "AI Service",
		Description: "Natural language to shell command generation via Ollama",
		Category:    types.CategoryAI,
		Capabilities: []string{
			"generate",
			"models",
		},
		Tools: []types.Tool{
			{
				ID:          "ai.generate",
				Name:        "Generate Command",
				Description: "Turn a natural-language request into a shell command",
				Parameters: []types.Parameter{
					{Name: "prompt", Type: "string", Description: "What the user wants to do", Required: true},
				},
				Returns: "object",
			},
			{
				ID:          "ai.models",
				Name:        "List Models",
				Description: "List models available on the Ollama host",
				Parameters:  []types.Parameter{},
				Returns:     "array",
			},
			{
				ID:          "ai.set_model",
				Name:        "Set Model",
				Description: "Switch the active model",
				Parameters: []types.Parameter{
					{Name: "model", Type: "string", Description: "Model name", Required: true},
				},
				Returns: "object",
			},
			{
				ID:          "ai.set_host",
				Name:        "Set Host",
				Description: "Point at a different Ollama host",
				Parameters: []types.Parameter{
					{Name: "host", Type: "string", Description: "Base URL", Required: true},
				},
				Returns: "object",
			},
			{
				ID:          "ai.get_config",
				Name:        "Get Config",
				Description: "Current host and model",
				Parameters:  []types.Parameter{},
				Returns:     "object",
			},
		},
	}
}

// Execute runs an AI operation.
func (a *AI) Execute(ctx context.Context, toolID string, params map[string]interface{}, tctx *types.Context) (*types.Result, error) {
	switch toolID {
	case "ai.generate":
		return a.generate(ctx, params)
	case "ai.models":
		return a.models(ctx)
	case "ai.set_model":
		return a.setString(params, "model", &a.model)
	case "ai.set_host":
		return a.setString(params, "host", &a.host)
	case "ai.get_config":
		host, model := a.Config()
		return types.OK(map[string]interface{}{"host": host, "model": model}), nil
	default:
		return types.Failure("unknown tool: " + toolID), fmt.Errorf("unknown tool: %s", toolID)
	}
}

// Config returns the current host and model.
func (a *AI) Config() (host, model string) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.host, a.model
}

func (a *AI) setString(params map[string]interface{}, key string, dst *string) (*types.Result, error) {
	value, ok := params[key].(string)
	if !ok || value == "" {
		msg := key + " parameter required"
		return types.Failure(msg), fmt.Errorf("%s", msg)
	}
	a.mu.Lock()
	*dst = value
	a.mu.Unlock()
	return types.OK(map[string]interface{}{key: value}), nil
}

// systemPrompt steers the model toward bare, host-appropriate commands.
func systemPrompt() string {
	return fmt.Sprintf(
		"You are a terminal assistant on %s. Reply with a single shell command "+
			"that accomplishes the user's request. Output only the command, "+
			"no explanation, no code fences.", runtime.GOOS)
}

func (a *AI) generate(ctx context.Context, params map[string]interface{}) (*types.Result, error) {
	prompt, ok := params["prompt"].(string)
	if !ok || prompt == "" {
		return types.Failure("prompt parameter required"), fmt.Errorf("prompt parameter required")
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return types.Failure(err.Error()), err
	}

	host, model := a.Config()
	var body generateResponse
	err := a.breaker.Do(func() error {
		resp, err := a.client.R().
			SetContext(ctx).
			SetBody(generateRequest{
				Model:  model,
				Prompt: prompt,
				System: systemPrompt(),
				Stream: false,
			}).
			SetResult(&body).
			Post(host + "/api/generate")
		if err != nil {
			return fmt.Errorf("ollama request failed: %w", err)
		}
		if resp.IsError() {
			return fmt.Errorf("ollama returned %s", resp.Status())
		}
		return nil
	})
	if err != nil {
		return types.Failure(err.Error()), err
	}

	return types.OK(map[string]interface{}{
		"command": body.Response,
		"model":   model,
	}), nil
}

func (a *AI) models(ctx context.Context) (*types.Result, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return types.Failure(err.Error()), err
	}

	host, _ := a.Config()
	var body tagsResponse
	err := a.breaker.Do(func() error {
		resp, err := a.client.R().
			SetContext(ctx).
			SetResult(&body).
			Get(host + "/api/tags")
		if err != nil {
			return fmt.Errorf("ollama request failed: %w", err)
		}
		if resp.IsError() {
			return fmt.Errorf("ollama returned %s", resp.Status())
		}
		return nil
	})
	if err != nil {
		return types.Failure(err.Error()), err
	}

	names := make([]string, 0, len(body.Models))
	for _, m := range body.Models {
		names = append(names, m.Name)
	}
	return types.OK(map[string]interface{}{
		"models": names,
	}), nil
}
