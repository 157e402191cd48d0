package api

import (
	"encoding/json"
	"net/http"

	"github.com/botarena/botarena/internal/api/handlers"
	"github.com/botarena/botarena/internal/api/middleware"
	"github.com/botarena/botarena/internal/config"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates the HTTP router with all API routes.
func NewRouter(cfg *config.Config, h *handlers.Handlers) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.UserExtractor)
	r.Use(middleware.Telemetry)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-Id", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id", "X-Session-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health & info
	r.Get("/health", healthHandler)
	r.Get("/version", versionHandler(cfg))

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Bot presets
		r.Route("/bots", func(r chi.Router) {
			r.Get("/", h.ListBots)
			r.Post("/", h.CreateBot)
			r.Route("/{botID}", func(r chi.Router) {
				r.Get("/", h.GetBot)
				r.Put("/", h.UpdateBot)
				r.Delete("/", h.DeleteBot)
				r.Post("/chat", h.Chat)
				r.Post("/sessions", h.CreateSession)
			})
		})

		// Conversation sessions
		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", h.ListSessions)
			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", h.GetSession)
				r.Delete("/", h.DeleteSession)
				r.Post("/messages/{messageID}/variant", h.SelectVariant)
			})
		})

		// Arenas (saved workspaces)
		r.Route("/arenas", func(r chi.Router) {
			r.Get("/", h.ListArenas)
			r.Post("/", h.CreateArena)
			r.Route("/{arenaID}", func(r chi.Router) {
				r.Get("/", h.GetArena)
				r.Put("/", h.UpdateArena)
				r.Delete("/", h.DeleteArena)
			})
		})

		// Knowledge assets
		r.Route("/knowledge", func(r chi.Router) {
			r.Get("/", h.ListAssets)
			r.Post("/", h.CreateAsset)
			r.Route("/{assetID}", func(r chi.Router) {
				r.Post("/settle", h.SettleAsset)
				r.Delete("/", h.DeleteAsset)
			})
		})

		// Wallet & entitlements (simulated)
		r.Route("/wallet", func(r chi.Router) {
			r.Get("/", h.GetWallet)
			r.Post("/connect", h.ConnectWallet)
			r.Delete("/", h.DisconnectWallet)
			r.Get("/entitlements", h.ListEntitlements)
			r.Post("/entitlements", h.GrantEntitlement)
		})

		// Usage accounting
		r.Get("/usage", h.ListUsage)

		// API snippets
		r.Route("/snippets", func(r chi.Router) {
			r.Get("/", h.ListSnippets)
			r.Post("/", h.CreateSnippet)
			r.Delete("/{snippetID}", h.DeleteSnippet)
		})

		// Model catalog
		r.Route("/models", func(r chi.Router) {
			r.Get("/", h.ListTextModels)
			r.Get("/image-families", h.ListImageFamilies)
		})

		// Helpers
		r.Post("/enhance", h.Enhance)
		r.Post("/themes", h.GenerateTheme)
	})

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "botarena-backend",
	})
}

func versionHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"version": cfg.Version,
			"service": "botarena-backend",
		})
	}
}
