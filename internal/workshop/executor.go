package workshop

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dschwags/Prompt-Lab-sub000/internal/cost"
	"github.com/dschwags/Prompt-Lab-sub000/internal/logging"
	"github.com/dschwags/Prompt-Lab-sub000/internal/metrics"
	"github.com/dschwags/Prompt-Lab-sub000/internal/provider"
	"github.com/dschwags/Prompt-Lab-sub000/internal/session"
	"github.com/dschwags/Prompt-Lab-sub000/pkg/models"
)

// PricingTable maps model ids to token rates. *cost.Table satisfies it.
type PricingTable interface {
	Price(modelID string) (cost.TokenPrice, bool)
}

// KeyResolver returns "" when no key is configured. *keys.Resolver satisfies it.
type KeyResolver interface {
	Lookup(p models.ProviderType) string
}

// ProviderLookup is satisfied by *provider.Factory.
type ProviderLookup interface {
	Get(p models.ProviderType) (provider.Provider, error)
}

type Prompt struct {
	System string
	User   string
}

type ExecutorOptions struct {
	// StaggerDelay delays call i by i*StaggerDelay.
	StaggerDelay time.Duration
	// MaxParallel bounds in-flight calls; 0 means unbounded.
	MaxParallel int
	// MaxTokens overrides the per-request completion cap when positive.
	MaxTokens int
}

// Executor dispatches one round of calls and assembles the responses.
type Executor struct {
	registry  *models.ModelRegistry
	providers ProviderLookup
	calc      *cost.Calculator
	keys      KeyResolver
	opts      ExecutorOptions
	newID     func() string
}

func NewExecutor(registry *models.ModelRegistry, providers ProviderLookup, prices PricingTable, keys KeyResolver, opts ExecutorOptions) *Executor {
	return &Executor{
		registry:  registry,
		providers: providers,
		calc:      cost.NewCalculator(prices),
		keys:      keys,
		opts:      opts,
		newID:     uuid.NewString,
	}
}

func (e *Executor) Registry() *models.ModelRegistry {
	return e.registry
}

// ExecuteRound calls every model concurrently and returns one response per
// model id in request order. It returns only after every call has settled.
// Colours are allocated into colors before any call is made.
func (e *Executor) ExecuteRound(ctx context.Context, modelIDs []string, prompt Prompt, colors map[string]string) []session.Response {
	responses := make([]session.Response, len(modelIDs))
	for i, id := range modelIDs {
		responses[i] = session.Response{
			ID:      e.newID(),
			ModelID: id,
			Model:   e.registry.DisplayName(id),
			Status:  session.StatusLoading,
			Color:   AssignColor(colors, id),
		}
	}

	logging.Log("workshop", "dispatching round", "models", len(modelIDs), "prompt_len", len(prompt.User))

	var g errgroup.Group
	if e.opts.MaxParallel > 0 {
		g.SetLimit(e.opts.MaxParallel)
	}
	for i := range responses {
		g.Go(func() error {
			if delay := time.Duration(i) * e.opts.StaggerDelay; delay > 0 {
				select {
				case <-ctx.Done():
				case <-time.After(delay):
				}
			}
			e.dispatch(ctx, &responses[i], prompt)
			return nil
		})
	}
	_ = g.Wait()

	return responses
}

// Dispatch runs a single-model round.
func (e *Executor) Dispatch(ctx context.Context, modelID string, prompt Prompt, colors map[string]string) session.Response {
	return e.ExecuteRound(ctx, []string{modelID}, prompt, colors)[0]
}

func (e *Executor) dispatch(ctx context.Context, resp *session.Response, prompt Prompt) {
	p, providerType, key, err := e.resolve(resp.ModelID)
	resp.Provider = string(providerType)
	if err != nil {
		resp.Status = session.StatusError
		resp.Error = err.Error()
		logging.Log("workshop", "model not dispatched", "model", resp.ModelID, "error", err)
		return
	}

	req := models.NewPromptRequest(resp.ModelID, prompt.System, prompt.User)
	req.APIKey = key
	if e.opts.MaxTokens > 0 {
		req.MaxTokens = e.opts.MaxTokens
	}

	start := time.Now()
	c, err := p.SendPrompt(ctx, req)
	elapsed := time.Since(start)
	resp.Metrics.Time = elapsed.Seconds()

	if err != nil {
		resp.Status = session.StatusError
		resp.Error = err.Error()
		metrics.ObserveCall(resp.Provider, resp.ModelID, "error", elapsed, 0, 0, 0)
		logging.Log("workshop", "model call failed", "model", resp.ModelID, "elapsed", elapsed, "error", err)
		return
	}

	b := e.calc.Calculate(resp.ModelID, c.InputTokens, c.OutputTokens)
	resp.Status = session.StatusSuccess
	resp.Text = c.Text
	resp.Metrics.Cost = b.Total
	resp.Metrics.InputTokens = c.InputTokens
	resp.Metrics.OutputTokens = c.OutputTokens
	resp.Metrics.Tokens = c.TotalTokens()

	metrics.ObserveCall(resp.Provider, resp.ModelID, "success", elapsed, c.InputTokens, c.OutputTokens, b.Total)
	logging.Trace("workshop", "model call succeeded", "model", resp.ModelID, "elapsed", elapsed,
		"tokens", c.TotalTokens(), "cost", b.Total, "text", logging.Truncate(c.Text, 200))
}

// Complete issues one raw call outside any round.
func (e *Executor) Complete(ctx context.Context, modelID string, prompt Prompt) (*models.Completion, session.Metrics, error) {
	var m session.Metrics

	p, providerType, key, err := e.resolve(modelID)
	if err != nil {
		return nil, m, err
	}

	req := models.NewPromptRequest(modelID, prompt.System, prompt.User)
	req.APIKey = key
	if e.opts.MaxTokens > 0 {
		req.MaxTokens = e.opts.MaxTokens
	}

	start := time.Now()
	c, err := p.SendPrompt(ctx, req)
	elapsed := time.Since(start)
	m.Time = elapsed.Seconds()
	if err != nil {
		metrics.ObserveCall(string(providerType), modelID, "error", elapsed, 0, 0, 0)
		return nil, m, err
	}

	b := e.calc.Calculate(modelID, c.InputTokens, c.OutputTokens)
	m.Cost = b.Total
	m.InputTokens = c.InputTokens
	m.OutputTokens = c.OutputTokens
	m.Tokens = c.TotalTokens()
	metrics.ObserveCall(string(providerType), modelID, "success", elapsed, c.InputTokens, c.OutputTokens, b.Total)
	return c, m, nil
}

func (e *Executor) resolve(modelID string) (provider.Provider, models.ProviderType, string, error) {
	providerType, ok := e.registry.ProviderFor(modelID)
	if !ok {
		return nil, "", "", fmt.Errorf("%w: %s", ErrUnknownModel, modelID)
	}

	key := e.keys.Lookup(providerType)
	if key == "" {
		return nil, providerType, "", fmt.Errorf("%w for %s (set %s or run 'promptlab keys set %s')",
			ErrMissingAPIKey, providerType, providerType.EnvVar(), providerType)
	}

	p, err := e.providers.Get(providerType)
	if err != nil {
		return nil, providerType, "", err
	}
	return p, providerType, key, nil
}
