package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	SiteURL       string
	PortfolioPath string

	// AI provider credentials. An empty key marks the provider unavailable.
	MistralAPIKey    string
	OpenAIAPIKey     string
	GoogleAPIKey     string
	OpenRouterAPIKey string
	AnthropicAPIKey  string

	// Generic OpenAI-compatible backends require an explicit base URL.
	OpenAICompatBaseURL string
	OpenAICompatAPIKey  string
	OpenAICompatModel   string
	CustomAIBaseURL     string
	CustomAIAPIKey      string
	CustomAIModel       string

	// Provider selection. AIFallbackProviders is the operator's ordered
	// override list; the registry's successor graph applies after it.
	AIPrimaryProvider   string
	AIFallbackProviders []string

	GitHubToken       string
	GitHubRepo        string
	GoogleAnalyticsID string

	CORSAllowedOrigins []string

	// MaxConcurrentChats caps simultaneous streaming completions; zero
	// disables the cap.
	MaxConcurrentChats int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		SiteURL:       getEnv("SITE_URL", "http://localhost:8080"),
		PortfolioPath: getEnv("PORTFOLIO_CONFIG", "config/portfolio.yaml"),

		MistralAPIKey:    getEnv("MISTRAL_API_KEY", ""),
		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
		GoogleAPIKey:     getEnv("GOOGLE_API_KEY", ""),
		OpenRouterAPIKey: getEnv("OPENROUTER_API_KEY", ""),
		AnthropicAPIKey:  getEnv("ANTHROPIC_API_KEY", ""),

		OpenAICompatBaseURL: getEnv("OPENAI_COMPATIBLE_BASE_URL", ""),
		OpenAICompatAPIKey:  getEnv("OPENAI_COMPATIBLE_API_KEY", ""),
		OpenAICompatModel:   getEnv("OPENAI_COMPATIBLE_MODEL", ""),
		CustomAIBaseURL:     getEnv("CUSTOM_AI_BASE_URL", ""),
		CustomAIAPIKey:      getEnv("CUSTOM_AI_API_KEY", ""),
		CustomAIModel:       getEnv("CUSTOM_AI_MODEL", ""),

		AIPrimaryProvider:   getEnv("AI_PRIMARY_PROVIDER", "mistral"),
		AIFallbackProviders: getEnvAsList("AI_FALLBACK_PROVIDERS", []string{"openai", "anthropic"}),

		GitHubToken:       getEnv("GITHUB_TOKEN", ""),
		GitHubRepo:        getEnv("GITHUB_REPO", "michaeltmk/portfolio"),
		GoogleAnalyticsID: getEnv("GA_ID", ""),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", nil),

		MaxConcurrentChats: getEnvAsInt("CHAT_MAX_CONCURRENT_STREAMS", 32),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated environment variable, trimming
// whitespace and dropping empty entries.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
