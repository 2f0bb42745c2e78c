// Package router wires the portfolio API's routes and middleware stack.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/michaeltmk/portfolio/internal/chat"
	"github.com/michaeltmk/portfolio/internal/github"
	httpmiddleware "github.com/michaeltmk/portfolio/internal/http/middleware"
	"github.com/michaeltmk/portfolio/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger             *logging.Logger
	ChatHandler        *chat.Handler
	StarsHandler       *github.StarsHandler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// MaxConcurrentChats caps how many chat completions stream at once;
	// excess requests are shed with 429. Zero disables the cap.
	MaxConcurrentChats int
}

// New creates a chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Route("/api", func(api chi.Router) {
		if cfg.ChatHandler != nil {
			chatRoute := api.With()
			if cfg.MaxConcurrentChats > 0 {
				chatRoute = api.With(httpmiddleware.LimitStreams(cfg.MaxConcurrentChats))
			}
			chatRoute.Post("/chat", cfg.ChatHandler.HandleChat)
			api.Get("/health", cfg.ChatHandler.HandleHealth)
		}
		if cfg.StarsHandler != nil {
			api.Get("/github-stars", cfg.StarsHandler.HandleStars)
		}
	})

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	return r
}
