package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/michaeltmk/portfolio/internal/ai"
	"github.com/michaeltmk/portfolio/internal/api/router"
	"github.com/michaeltmk/portfolio/internal/chat"
	appconfig "github.com/michaeltmk/portfolio/internal/config"
	"github.com/michaeltmk/portfolio/internal/github"
	"github.com/michaeltmk/portfolio/internal/observability/metrics"
	"github.com/michaeltmk/portfolio/internal/portfolio"
	"github.com/michaeltmk/portfolio/pkg/logging"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting portfolio API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	portfolioCfg, err := portfolio.Load(cfg.PortfolioPath)
	if err != nil {
		logger.Error("failed to load portfolio config", "path", cfg.PortfolioPath, "error", err)
		os.Exit(1)
	}

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
	if status.AvailableCount == 0 {
		logger.Warn("no AI providers configured; chat will be unavailable")
	} else {
		logger.Info("AI providers ready",
			"primary", status.Primary.Key,
			"available", status.AvailableCount,
		)
	}

	promRegistry := prometheus.NewRegistry()
	chatMetrics := metrics.NewChatMetrics(promRegistry)

	orchestrator := ai.NewOrchestrator(registry, logger, chatMetrics)
	tools := chat.Tools(portfolioCfg, nil)
	chatHandler := chat.NewHandler(orchestrator, portfolioCfg, tools, logger)
	starsHandler := github.NewStarsHandler(cfg.GitHubToken, cfg.GitHubRepo, nil, logger)

	r := router.New(&router.Config{
		Logger:             logger,
		ChatHandler:        chatHandler,
		StarsHandler:       starsHandler,
		MetricsHandler:     promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		MaxConcurrentChats: cfg.MaxConcurrentChats,
	})

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		// Streaming responses can outlive a normal write timeout; bound the
		// whole response generously instead.
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
