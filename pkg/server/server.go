// Package server provides the public entry point for initializing the
// BotArena backend.
//
// Usage:
//
//	srv, err := server.New(ctx)
//	http.ListenAndServe(":8080", srv.Handler)
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/botarena/botarena/internal/api"
	"github.com/botarena/botarena/internal/api/handlers"
	"github.com/botarena/botarena/internal/catalog"
	"github.com/botarena/botarena/internal/config"
	"github.com/botarena/botarena/internal/gemini"
	"github.com/botarena/botarena/internal/sessions"
	"github.com/botarena/botarena/internal/store"
	"github.com/botarena/botarena/internal/telemetry"

	"github.com/rs/zerolog/log"
)

// Server holds the initialized BotArena backend.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Store is the bucket store; exposed so main can close it on shutdown.
	Store store.Store

	// Port is the port the server should listen on.
	Port int

	// ShutdownFunc should be called on graceful shutdown to flush telemetry.
	ShutdownFunc func(context.Context) error
}

// New initializes all components from the environment and returns a ready
// Server.
func New(ctx context.Context) (*Server, error) {
	return NewWithConfig(ctx, config.Load())
}

// NewWithConfig initializes the backend with an explicit configuration.
func NewWithConfig(_ context.Context, cfg *config.Config) (*Server, error) {
	shutdown, err := telemetry.Init(cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	dataStore := store.NewMemoryStore(cfg.DataDir)
	log.Info().Msg("Bucket store initialized")

	cat := catalog.New()
	client := gemini.NewClient(cfg.Gemini)
	log.Info().Str("base_url", cfg.Gemini.BaseURL).Msg("Gemini client initialized")

	h := handlers.New(dataStore, cat, sessions.NewMemorySessionStore(), client, client)
	router := api.NewRouter(cfg, h)

	return &Server{
		Handler:      router,
		Store:        dataStore,
		Port:         cfg.Port,
		ShutdownFunc: shutdown,
	}, nil
}
