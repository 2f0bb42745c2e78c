package ai

// ProviderID identifies one backend in the static catalog.
type ProviderID string

const (
	ProviderMistral      ProviderID = "mistral"
	ProviderOpenAI       ProviderID = "openai"
	ProviderGoogle       ProviderID = "google"
	ProviderOpenRouter   ProviderID = "openrouter"
	ProviderAnthropic    ProviderID = "anthropic"
	ProviderOpenAICompat ProviderID = "openai-compatible"
	ProviderCustom       ProviderID = "custom"
)

// catalogOrder fixes the iteration order of the catalog. It doubles as the
// preference order when no primary is configured.
var catalogOrder = []ProviderID{
	ProviderMistral,
	ProviderOpenAI,
	ProviderGoogle,
	ProviderOpenRouter,
	ProviderAnthropic,
	ProviderOpenAICompat,
	ProviderCustom,
}

// ProviderConfig describes one backend. Constructed once at process start and
// never mutated per-request.
type ProviderConfig struct {
	Name        string
	APIKey      string
	BaseURL     string
	Models      []string
	MaxTokens   int
	Temperature float32
	// Fallback is the provider's declared single successor. The successor
	// graph may contain cycles; traversal is visited-set guarded.
	Fallback ProviderID
}

// Available reports whether the provider has a credential.
func (c ProviderConfig) Available() bool { return c.APIKey != "" }

// DefaultModel returns the first configured model.
func (c ProviderConfig) DefaultModel() string {
	if len(c.Models) == 0 {
		return ""
	}
	return c.Models[0]
}

// CatalogConfig carries the environment-sourced values the catalog is built
// from: per-provider credentials plus the operator's provider selection.
type CatalogConfig struct {
	MistralAPIKey    string
	OpenAIAPIKey     string
	GoogleAPIKey     string
	OpenRouterAPIKey string
	AnthropicAPIKey  string

	OpenAICompatBaseURL string
	OpenAICompatAPIKey  string
	OpenAICompatModel   string
	CustomBaseURL       string
	CustomAPIKey        string
	CustomModel         string

	// Primary is the operator-designated starting provider.
	Primary string
	// FallbackOrder is the operator's ordered override list. It takes
	// precedence over the built-in successor graph during chain resolution.
	FallbackOrder []string

	// SiteURL is forwarded as the referer on OpenRouter requests.
	SiteURL string
}

// ChainEntry pairs a provider identifier with its configuration.
type ChainEntry struct {
	ID     ProviderID
	Config ProviderConfig
}

// Registry is the static provider catalog. It is immutable after
// construction; a configuration reload means building a new Registry.
type Registry struct {
	catalog       map[ProviderID]ProviderConfig
	primary       ProviderID
	fallbackOrder []ProviderID
	siteURL       string
}

// NewRegistry builds the catalog from environment-sourced configuration.
func NewRegistry(cfg CatalogConfig) *Registry {
	orDefault := func(model, fallback string) []string {
		if model != "" {
			return []string{model}
		}
		return []string{fallback}
	}

	catalog := map[ProviderID]ProviderConfig{
		ProviderMistral: {
			Name:        "Mistral AI",
			APIKey:      cfg.MistralAPIKey,
			Models:      []string{"mistral-large-latest", "mistral-medium", "mistral-small"},
			MaxTokens:   4000,
			Temperature: 0.7,
			Fallback:    ProviderOpenAI,
		},
		ProviderOpenAI: {
			Name:        "OpenAI",
			APIKey:      cfg.OpenAIAPIKey,
			Models:      []string{"gpt-4o", "gpt-4o-mini", "gpt-4-turbo", "gpt-3.5-turbo"},
			MaxTokens:   4000,
			Temperature: 0.7,
			Fallback:    ProviderGoogle,
		},
		ProviderGoogle: {
			Name:        "Google Gemini",
			APIKey:      cfg.GoogleAPIKey,
			Models:      []string{"gemini-1.5-pro", "gemini-1.5-flash", "gemini-pro"},
			MaxTokens:   4000,
			Temperature: 0.7,
			Fallback:    ProviderOpenRouter,
		},
		ProviderOpenRouter: {
			Name:        "OpenRouter",
			APIKey:      cfg.OpenRouterAPIKey,
			BaseURL:     "https://openrouter.ai/api/v1",
			Models:      []string{"anthropic/claude-3.5-sonnet", "openai/gpt-4o", "google/gemini-pro-1.5", "meta-llama/llama-3.2-90b-instruct", "mistralai/mistral-large"},
			MaxTokens:   4000,
			Temperature: 0.7,
			Fallback:    ProviderAnthropic,
		},
		ProviderAnthropic: {
			Name:        "Anthropic Claude",
			APIKey:      cfg.AnthropicAPIKey,
			Models:      []string{"claude-3-5-sonnet-20241022", "claude-3-haiku-20240307"},
			MaxTokens:   4000,
			Temperature: 0.7,
			Fallback:    ProviderMistral,
		},
		ProviderOpenAICompat: {
			Name:        "OpenAI-Compatible API",
			APIKey:      cfg.OpenAICompatAPIKey,
			BaseURL:     cfg.OpenAICompatBaseURL,
			Models:      orDefault(cfg.OpenAICompatModel, "gpt-3.5-turbo"),
			MaxTokens:   4000,
			Temperature: 0.7,
			Fallback:    ProviderOpenAI,
		},
		ProviderCustom: {
			Name:        "Custom OpenAI-Compatible",
			APIKey:      cfg.CustomAPIKey,
			BaseURL:     cfg.CustomBaseURL,
			Models:      orDefault(cfg.CustomModel, "gpt-3.5-turbo"),
			MaxTokens:   4000,
			Temperature: 0.7,
			Fallback:    ProviderOpenAI,
		},
	}

	fallbackOrder := make([]ProviderID, 0, len(cfg.FallbackOrder))
	for _, id := range cfg.FallbackOrder {
		fallbackOrder = append(fallbackOrder, ProviderID(id))
	}

	return &Registry{
		catalog:       catalog,
		primary:       ProviderID(cfg.Primary),
		fallbackOrder: fallbackOrder,
		siteURL:       cfg.SiteURL,
	}
}

// Lookup returns the configuration for id, whether or not it is available.
func (r *Registry) Lookup(id ProviderID) (ProviderConfig, bool) {
	cfg, ok := r.catalog[id]
	return cfg, ok
}

// Available returns the credentialed subset of the catalog in catalog order.
func (r *Registry) Available() []ChainEntry {
	out := make([]ChainEntry, 0, len(catalogOrder))
	for _, id := range catalogOrder {
		if cfg := r.catalog[id]; cfg.Available() {
			out = append(out, ChainEntry{ID: id, Config: cfg})
		}
	}
	return out
}

// FallbackOrder returns the operator's ordered override list. Index n-1 of
// this list is what a client's fallback index n refers to.
func (r *Registry) FallbackOrder() []ProviderID {
	return r.fallbackOrder
}

// Primary resolves the starting provider: the operator-designated primary if
// it is available, otherwise the first available provider in preference
// order. Fails with KindNoProviderConfigured when nothing has a credential.
func (r *Registry) Primary() (ChainEntry, error) {
	if cfg, ok := r.catalog[r.primary]; ok && cfg.Available() {
		return ChainEntry{ID: r.primary, Config: cfg}, nil
	}
	for _, id := range catalogOrder {
		if cfg := r.catalog[id]; cfg.Available() {
			return ChainEntry{ID: id, Config: cfg}, nil
		}
	}
	return ChainEntry{}, newError(KindNoProviderConfigured, "", "no AI providers available; configure at least one API key")
}

// ResolveChain builds the ordered fallback chain for a generation attempt
// starting at start. Precedence: the start provider, then the operator's
// override list, then the successor graph from start (cycle-guarded), then
// any remaining available providers in catalog order. Every available
// provider appears at most once; unavailable providers never appear.
func (r *Registry) ResolveChain(start ProviderID) []ChainEntry {
	visited := make(map[ProviderID]bool, len(r.catalog))
	chain := make([]ChainEntry, 0, len(r.catalog))

	push := func(id ProviderID) {
		cfg, ok := r.catalog[id]
		if !ok || !cfg.Available() || visited[id] {
			return
		}
		visited[id] = true
		chain = append(chain, ChainEntry{ID: id, Config: cfg})
	}

	push(start)
	for _, id := range r.fallbackOrder {
		push(id)
	}

	// Walk the declared successor links from the start provider. Providers
	// already in the chain are skipped but the walk continues through them;
	// it stops on a cycle, an unknown id, or an unavailable successor.
	walked := map[ProviderID]bool{}
	for current := start; ; {
		cfg, ok := r.catalog[current]
		if !ok || walked[current] {
			break
		}
		walked[current] = true
		if !cfg.Available() {
			break
		}
		push(current)
		current = cfg.Fallback
	}

	for _, id := range catalogOrder {
		push(id)
	}
	return chain
}

// Status summarizes provider availability for the health endpoint.
type Status struct {
	Primary        *StatusEntry  `json:"primary"`
	AvailableCount int           `json:"availableCount"`
	FallbackChain  []StatusEntry `json:"fallbackChain"`
}

// StatusEntry is one provider in the health report. Credentials themselves
// are never exposed, only their presence.
type StatusEntry struct {
	Key       string `json:"key"`
	Name      string `json:"name"`
	HasAPIKey bool   `json:"hasApiKey"`
}

// ProviderStatus reports the resolved primary and full fallback chain.
func (r *Registry) ProviderStatus() Status {
	status := Status{FallbackChain: []StatusEntry{}}

	primary, err := r.Primary()
	if err == nil {
		status.Primary = &StatusEntry{
			Key:       string(primary.ID),
			Name:      primary.Config.Name,
			HasAPIKey: primary.Config.Available(),
		}
		for _, entry := range r.ResolveChain(primary.ID) {
			status.FallbackChain = append(status.FallbackChain, StatusEntry{
				Key:       string(entry.ID),
				Name:      entry.Config.Name,
				HasAPIKey: entry.Config.Available(),
			})
		}
	}
	status.AvailableCount = len(status.FallbackChain)
	return status
}
