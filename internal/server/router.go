package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/loreworks/mwassist/internal/api"
	"github.com/loreworks/mwassist/internal/api/handlers"
	"github.com/loreworks/mwassist/internal/api/middleware"
	"github.com/loreworks/mwassist/internal/domain"
)

type RouterConfig struct {
	AuthValidator    middleware.IdentityValidator
	ChatHandler      *handlers.ChatHandler
	SearchHandler    *handlers.SearchHandler
	EmbeddingHandler *handlers.EmbeddingHandler
	UsageHandler     *handlers.UsageHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 5 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.BearerAuth(cfg.AuthValidator))

		r.Route("/chat", func(r chi.Router) {
			r.Use(middleware.RequireScope(domain.ScopeChatCompletion))

			r.Post("/", cfg.ChatHandler.Converse)
			r.Get("/sessions", cfg.ChatHandler.ListSessions)
			r.Get("/sessions/{id}", cfg.ChatHandler.GetSession)
			r.Delete("/sessions/{id}", cfg.ChatHandler.DeleteSession)
		})

		r.With(middleware.RequireScope(domain.ScopeSearch)).
			Post("/search", cfg.SearchHandler.Search)

		r.Route("/embeddings", func(r chi.Router) {
			r.Use(middleware.RequireScope(domain.ScopeEmbeddings))

			r.Post("/page", cfg.EmbeddingHandler.UpsertPage)
			r.Delete("/page", cfg.EmbeddingHandler.DeletePage)
			r.Get("/stats", cfg.EmbeddingHandler.Stats)
		})

		r.With(middleware.RequireScope(domain.ScopeAdmin)).
			Get("/usage", cfg.UsageHandler.Usage)
	})

	return r
}
