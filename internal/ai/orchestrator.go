package ai

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/michaeltmk/portfolio/internal/observability/metrics"
	"github.com/michaeltmk/portfolio/pkg/logging"
)

var tracer = otel.Tracer("portfolio.internal.ai")

// GenerateOptions selects where a generation attempt starts.
type GenerateOptions struct {
	// Provider, when set, becomes the head of the fallback chain instead of
	// the registry's primary. Used by clients escalating through the
	// fallback order.
	Provider ProviderID
	// Model overrides the provider's default model. Only applied to the
	// provider it was requested for; fallback attempts use each provider's
	// own default.
	Model string
}

// Orchestrator runs generation requests across the provider fallback chain:
// try each provider in order, return the first stream that opens, surface a
// classified error when every provider fails.
type Orchestrator struct {
	registry *Registry
	logger   *logging.Logger
	metrics  *metrics.ChatMetrics
	backends backendFactory
}

type backendFactory func(id ProviderID, cfg ProviderConfig, modelOverride, siteURL string) (backend, error)

func NewOrchestrator(registry *Registry, logger *logging.Logger, m *metrics.ChatMetrics) *Orchestrator {
	if logger == nil {
		logger = logging.Default()
	}
	return &Orchestrator{registry: registry, logger: logger, metrics: m, backends: newBackend}
}

// Registry exposes the provider catalog backing this orchestrator.
func (o *Orchestrator) Registry() *Registry { return o.registry }

// Generate tries providers sequentially until one produces a stream. A
// returned Result holds a live stream; failures mid-stream are the caller's
// to surface, the chain is not re-entered. Non-retryable failures (bad
// credentials, malformed conversation) abort the chain immediately.
func (o *Orchestrator) Generate(ctx context.Context, messages []Message, tools []Tool, opts GenerateOptions) (*Result, error) {
	ctx, span := tracer.Start(ctx, "ai.generate")
	defer span.End()

	start := opts.Provider
	if start == "" {
		primary, err := o.registry.Primary()
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		start = primary.ID
	}

	chain := o.registry.ResolveChain(start)
	if len(chain) == 0 {
		err := newError(KindNoProviderConfigured, "", "no AI providers available; configure at least one API key")
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("ai.start_provider", string(start)),
		attribute.Int("ai.chain_length", len(chain)),
	)

	began := time.Now()
	var lastErr error
	for depth, entry := range chain {
		model := ""
		if entry.ID == start {
			model = opts.Model
		}
		result, err := o.attempt(ctx, entry, model, messages, tools)
		if err == nil {
			o.metrics.ObserveFallbackDepth("success", depth)
			o.metrics.ObserveLatency(string(entry.ID), "success", time.Since(began).Seconds())
			if depth > 0 {
				o.logger.Info("provider fallback succeeded",
					"provider", entry.ID,
					"requested", start,
					"depth", depth,
				)
			}
			return result, nil
		}
		lastErr = err
		if !KindOf(err).Retryable() {
			span.RecordError(err)
			o.metrics.ObserveFallbackDepth("aborted", depth)
			o.metrics.ObserveLatency(string(entry.ID), "aborted", time.Since(began).Seconds())
			return nil, err
		}
		o.logger.Warn("provider attempt failed, trying next",
			"provider", entry.ID,
			"kind", KindOf(err).String(),
			"error", err,
		)
	}

	err := &Error{
		Kind:     KindAllProvidersExhausted,
		Provider: ProviderOf(lastErr),
		Message:  "all AI providers failed",
		Err:      lastErr,
	}
	span.RecordError(err)
	o.metrics.ObserveFallbackDepth("exhausted", len(chain))
	o.metrics.ObserveLatency(string(ProviderOf(lastErr)), "exhausted", time.Since(began).Seconds())
	return nil, err
}

func (o *Orchestrator) attempt(ctx context.Context, entry ChainEntry, model string, messages []Message, tools []Tool) (*Result, error) {
	ctx, span := tracer.Start(ctx, "ai.attempt")
	defer span.End()
	span.SetAttributes(attribute.String("ai.provider", string(entry.ID)))

	b, err := o.backends(entry.ID, entry.Config, model, o.registry.siteURL)
	if err != nil {
		span.RecordError(err)
		o.metrics.ObserveAttempt(string(entry.ID), "misconfigured")
		return nil, err
	}

	resolved := model
	if resolved == "" {
		resolved = entry.Config.DefaultModel()
	}
	span.SetAttributes(attribute.String("ai.model", resolved))

	stream, err := b.generate(ctx, request{
		Messages:    messages,
		Tools:       tools,
		MaxTokens:   entry.Config.MaxTokens,
		Temperature: entry.Config.Temperature,
	})
	if err != nil {
		span.RecordError(err)
		o.metrics.ObserveAttempt(string(entry.ID), "error")
		return nil, err
	}

	o.metrics.ObserveAttempt(string(entry.ID), "success")
	return &Result{
		Provider:     entry.ID,
		ProviderName: entry.Config.Name,
		Model:        resolved,
		Stream:       stream,
	}, nil
}

// RecordUsage reports a completed stream's token usage. Called by the handler
// after the stream is drained since usage arrives with the final fragment.
func (o *Orchestrator) RecordUsage(provider ProviderID, usage Usage) {
	o.metrics.ObserveTokens(string(provider), usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens)
}
