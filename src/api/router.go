package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"plaid-mcp-server/src/handlers"
	"plaid-mcp-server/src/middleware"
)

type Config struct {
	Server         handlers.MessageHandler
	Sessions       *handlers.Sessions
	Dispatcher     handlers.WebhookDispatcher
	Verifier       middleware.WebhookVerifier
	AllowedOrigins []string
	WebhookTimeout time.Duration
}

func NewRouter(cfg Config) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RecoveryMiddleware)
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.LoggingMiddleware)
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.Get("/health", handlers.Health(cfg.Sessions))
	r.Handle("/metrics", promhttp.Handler())

	// MCP transports
	r.Get("/sse", handlers.SSE(cfg.Sessions))
	r.Post("/message", handlers.Message(cfg.Server, cfg.Sessions))
	r.Get("/ws", handlers.WebSocket(cfg.Server, cfg.Sessions, cfg.AllowedOrigins))

	// Plaid
	r.Group(func(r chi.Router) {
		if cfg.Verifier != nil {
			r.Use(middleware.WebhookAuthMiddleware(cfg.Verifier))
		}
		r.Post("/webhook/plaid", handlers.PlaidWebhook(cfg.Dispatcher, cfg.WebhookTimeout))
	})

	return r
}
