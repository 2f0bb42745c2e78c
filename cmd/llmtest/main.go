// Command llmtest sends a prompt through the provider fallback chain from
// the command line. Useful for verifying API keys and fallback behavior
// without starting the server.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/michaeltmk/portfolio/internal/ai"
	appconfig "github.com/michaeltmk/portfolio/internal/config"
	"github.com/michaeltmk/portfolio/pkg/logging"
)

func main() {
	prompt := flag.String("prompt", "Introduce yourself in one sentence.", "prompt to send")
	provider := flag.String("provider", "", "start from this provider instead of the primary")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := appconfig.Load()
	registry := ai.NewRegistry(ai.CatalogConfig{
		MistralAPIKey:    cfg.MistralAPIKey,
		OpenAIAPIKey:     cfg.OpenAIAPIKey,
		GoogleAPIKey:     cfg.GoogleAPIKey,
		OpenRouterAPIKey: cfg.OpenRouterAPIKey,
		AnthropicAPIKey:  cfg.AnthropicAPIKey,

		OpenAICompatBaseURL: cfg.OpenAICompatBaseURL,
		OpenAICompatAPIKey:  cfg.OpenAICompatAPIKey,
		OpenAICompatModel:   cfg.OpenAICompatModel,
		CustomBaseURL:       cfg.CustomAIBaseURL,
		CustomAPIKey:        cfg.CustomAIAPIKey,
		CustomModel:         cfg.CustomAIModel,

		Primary:       cfg.AIPrimaryProvider,
		FallbackOrder: cfg.AIFallbackProviders,
		SiteURL:       cfg.SiteURL,
	})

	status := registry.ProviderStatus()
	if status.Primary != nil {
		fmt.Printf("Primary: %s (%s)\n", status.Primary.Name, status.Primary.Key)
	}
	fmt.Print("Fallback chain:")
	for _, entry := range status.FallbackChain {
		fmt.Printf(" %s", entry.Key)
	}
	fmt.Println()

	orchestrator := ai.NewOrchestrator(registry, logging.New(cfg.LogLevel), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	started := time.Now()
	result, err := orchestrator.Generate(ctx, []ai.Message{
		{Role: ai.RoleUser, Content: *prompt},
	}, nil, ai.GenerateOptions{Provider: ai.ProviderID(*provider)})
	if err != nil {
		fmt.Fprintf(os.Stderr, "generation failed: %v\n", err)
		os.Exit(1)
	}
	defer result.Stream.Close()

	fmt.Printf("Answered by %s (%s):\n\n", result.ProviderName, result.Model)
	for {
		fragment, err := result.Stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "\nstream error: %v\n", err)
			os.Exit(1)
		}
		fmt.Print(fragment)
	}
	meta := result.Stream.Meta()
	fmt.Printf("\n\nfinish=%s tokens=%d elapsed=%s\n",
		meta.FinishReason, meta.Usage.TotalTokens, time.Since(started).Round(time.Millisecond))
}
