package ai

import "context"

// request carries one generation attempt's inputs to a backend.
type request struct {
	Messages    []Message
	Tools       []Tool
	MaxTokens   int
	Temperature float32
}

// backend executes generation requests against one concrete provider API.
// Construction is pure configuration; no network I/O happens until generate.
type backend interface {
	generate(ctx context.Context, req request) (Stream, error)
}

// invocationMode selects how a backend's transport is consumed.
type invocationMode int

const (
	// modeStreaming consumes the provider's incremental chunk stream.
	modeStreaming invocationMode = iota
	// modeSingleShot issues one blocking request and wraps the complete
	// response as a one-fragment stream. Used for backends whose streaming
	// framing is known to be unreliable.
	modeSingleShot
)

// modeFor is the static per-provider invocation policy. Gemini's chunked
// transport has produced framing the rest of the pipeline cannot parse, so
// it is pinned to single-shot; everything else streams.
func modeFor(id ProviderID) invocationMode {
	if id == ProviderGoogle {
		return modeSingleShot
	}
	return modeStreaming
}

// newBackend binds a provider and model to a callable generation backend.
// The switch is exhaustive over the catalog's provider identifiers; an
// unknown id is a misconfiguration, not a silent default.
func newBackend(id ProviderID, cfg ProviderConfig, modelOverride, siteURL string) (backend, error) {
	model := modelOverride
	if model == "" {
		model = cfg.DefaultModel()
	}
	if model == "" {
		return nil, newError(KindMisconfiguredProvider, id, "no model configured")
	}

	switch id {
	case ProviderOpenAI, ProviderMistral, ProviderOpenRouter:
		return newOpenAIBackend(id, cfg, model, siteURL)
	case ProviderOpenAICompat, ProviderCustom:
		if cfg.BaseURL == "" {
			return nil, newError(KindMisconfiguredProvider, id, "provider requires a base URL")
		}
		return newOpenAIBackend(id, cfg, model, siteURL)
	case ProviderAnthropic:
		return newAnthropicBackend(cfg, model), nil
	case ProviderGoogle:
		return newGeminiBackend(cfg, model), nil
	default:
		return nil, newError(KindMisconfiguredProvider, id, "unsupported provider")
	}
}
