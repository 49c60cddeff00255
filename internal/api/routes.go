package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mochikko/diary-server/internal/config"
	"github.com/mochikko/diary-server/internal/engine"
	"github.com/mochikko/diary-server/internal/llm"
	"github.com/mochikko/diary-server/internal/plan"
	"github.com/mochikko/diary-server/internal/store"
)

func NewRouter(cfg *config.Config, eng *engine.Engine, st *store.Store, gw *llm.Gateway, plans *plan.Manager) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)

	handlers := NewHandlers(cfg, eng, st, gw, plans)

	// Public endpoints
	r.Get("/health", handlers.Health)

	// API v1 routes (authenticated)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(AuthMiddleware(cfg))
		r.Use(JSONContentType)

		r.Post("/events", handlers.SubmitEvent)
		r.Get("/entries", handlers.Entries)
		r.Get("/status", handlers.Status)
		r.Post("/backup", handlers.Backup)
		r.Get("/backups", handlers.Backups)
		r.Post("/restore", handlers.Restore)
	})

	return r
}
