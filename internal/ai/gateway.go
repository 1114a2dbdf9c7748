package ai

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/brody/brody-back/internal/logging"
)

var ErrGatewayUnavailable = errors.New("ai gateway unavailable")

// Observer receives per-attempt and per-call outcomes. It must be safe for
// concurrent use.
type Observer interface {
	ObserveAttempt(task Task, model string, hasContent bool, duration time.Duration)
	ObserveCompletion(task Task, attempts int, hasContent bool)
}

type GatewayDependencies struct {
	// Invoker is nil when no upstream client could be built; the gateway is
	// then unavailable.
	Invoker  ChatInvoker
	Models   ModelConfig
	Policy   FreeTierPolicy
	Logger   *slog.Logger
	Observer Observer
}

// Gateway tries the requested model, then the fallback model, then every
// other allow-list entry, and returns the first non-empty result.
type Gateway struct {
	invoker  ChatInvoker
	models   ModelConfig
	policy   FreeTierPolicy
	selector ModelSelector
	logger   *slog.Logger
	observer Observer
}

func NewGateway(deps GatewayDependencies) *Gateway {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	return &Gateway{
		invoker:  deps.Invoker,
		models:   deps.Models,
		policy:   deps.Policy,
		selector: NewModelSelector(deps.Models, deps.Policy),
		logger:   deps.Logger,
		observer: deps.Observer,
	}
}

// NewOpenRouterGateway builds a gateway backed by OpenRouter. Without an API
// key the returned gateway reports itself unavailable.
func NewOpenRouterGateway(
	client OpenRouterClientConfig,
	models ModelConfig,
	policy FreeTierPolicy,
	observer Observer,
) *Gateway {
	deps := GatewayDependencies{
		Models:   models,
		Policy:   policy,
		Logger:   client.Logger,
		Observer: observer,
	}
	if client.APIKey != "" {
		deps.Invoker = NewOpenRouterClient(client)
	}
	return NewGateway(deps)
}

func (g *Gateway) Available() bool {
	return g != nil && g.invoker != nil
}

func (g *Gateway) Models() ModelConfig {
	return g.models
}

func (g *Gateway) Policy() FreeTierPolicy {
	return g.policy
}

func (g *Gateway) Selector() ModelSelector {
	return g.selector
}

// Plan returns the models Complete would try, in order, without duplicates.
func (g *Gateway) Plan(task Task, requested string) []string {
	allowlist := g.policy.Allowlist()
	plan := make([]string, 0, 2+len(allowlist))
	tried := make(map[string]struct{}, cap(plan))
	add := func(model string) {
		if model == "" {
			return
		}
		if _, exists := tried[model]; exists {
			return
		}
		tried[model] = struct{}{}
		plan = append(plan, model)
	}

	if primary, ok := g.selector.Resolve(task, requested); ok {
		add(primary)
	}
	if fallback, ok := g.selector.Resolve(task, g.models.FallbackModel()); ok {
		add(fallback)
	}
	for _, model := range allowlist {
		add(model)
	}
	return plan
}

// Complete runs request against the models returned by Plan until one of them
// produces text. The returned result names the model that answered.
func (g *Gateway) Complete(ctx context.Context, task Task, requested string, request ChatRequest) ChatResult {
	if !g.Available() {
		g.logger.Debug("ai gateway unavailable, skipping call", logging.Task(string(task)))
		return NoContent()
	}

	plan := g.Plan(task, requested)
	if len(plan) == 0 {
		g.logger.Warn("no allowed model available for request", logging.Task(string(task)))
		g.observeCompletion(task, 0, false)
		return NoContent()
	}

	attempts := 0
	for index, model := range plan {
		if ctx.Err() != nil {
			g.logger.Warn("ai call cancelled", logging.Task(string(task)), logging.Err(ctx.Err()))
			break
		}
		attempts++

		start := time.Now()
		result := g.invoker.Invoke(ctx, model, request)
		hasContent := result.HasContent()
		if g.observer != nil {
			g.observer.ObserveAttempt(task, model, hasContent, time.Since(start))
		}

		if hasContent {
			if index > 0 {
				g.logger.Info("succeeded with alternate model", logging.Task(string(task)), logging.Model(model), slog.Int("attempt", attempts))
			}
			result.Model = model
			g.observeCompletion(task, attempts, true)
			return result
		}
		g.logger.Info("model returned empty content, trying next", logging.Task(string(task)), logging.Model(model), slog.Int("attempt", attempts))
	}

	g.logger.Warn("all models returned empty content", logging.Task(string(task)), slog.Int("attempts", attempts))
	g.observeCompletion(task, attempts, false)
	return NoContent()
}

func (g *Gateway) observeCompletion(task Task, attempts int, hasContent bool) {
	if g.observer != nil {
		g.observer.ObserveCompletion(task, attempts, hasContent)
	}
}
