// Package handlers implements the HTTP handlers for the BotArena backend.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/botarena/botarena/internal/api/middleware"
	"github.com/botarena/botarena/internal/catalog"
	"github.com/botarena/botarena/internal/chat"
	"github.com/botarena/botarena/internal/knowledge"
	"github.com/botarena/botarena/internal/sessions"
	"github.com/botarena/botarena/internal/store"
	"github.com/botarena/botarena/internal/wallet"
	"github.com/botarena/botarena/pkg/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Handlers holds all handler dependencies.
type Handlers struct {
	Store     store.Store
	Catalog   *catalog.Catalog
	Sessions  *sessions.MemorySessionStore
	Processor *chat.Processor
	Enhancer  *chat.Enhancer
	Themes    *chat.ThemeGenerator
	Knowledge *knowledge.Service
	Wallet    *wallet.Service
}

// New creates a Handlers instance with all dependencies.
func New(s store.Store, cat *catalog.Catalog, sess *sessions.MemorySessionStore, text chat.TextGenerator, img chat.ImageGenerator) *Handlers {
	return &Handlers{
		Store:     s,
		Catalog:   cat,
		Sessions:  sess,
		Processor: chat.NewProcessor(text, chat.NewCascade(img, cat), s),
		Enhancer:  chat.NewEnhancer(text),
		Themes:    chat.NewThemeGenerator(text),
		Knowledge: knowledge.NewService(s),
		Wallet:    wallet.NewService(s),
	}
}

// ── Bot Handlers ─────────────────────────────────────────────

func (h *Handlers) ListBots(w http.ResponseWriter, r *http.Request) {
	owner := middleware.GetUser(r.Context())
	bots, err := h.Store.ListBots(r.Context(), owner)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if bots == nil {
		bots = []models.BotConfig{}
	}
	respondJSON(w, http.StatusOK, bots)
}

func (h *Handlers) CreateBot(w http.ResponseWriter, r *http.Request) {
	var req models.BotConfig
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "Bot name is required")
		return
	}

	req.ID = uuid.New().String()
	req.Owner = middleware.GetUser(r.Context())
	req.CreatedAt = time.Now().UTC()
	req.UpdatedAt = req.CreatedAt
	applyBotDefaults(&req, h.Catalog)

	if err := h.Store.CreateBot(r.Context(), &req); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	log.Info().Str("bot", req.Name).Str("id", req.ID).Str("owner", req.Owner).Msg("Bot created")
	respondJSON(w, http.StatusCreated, req)
}

func (h *Handlers) GetBot(w http.ResponseWriter, r *http.Request) {
	bot, err := h.Store.GetBot(r.Context(), chi.URLParam(r, "botID"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, bot)
}

func (h *Handlers) UpdateBot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "botID")
	existing, err := h.Store.GetBot(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	var req models.BotConfig
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.ID = existing.ID
	req.Owner = existing.Owner
	req.CreatedAt = existing.CreatedAt
	applyBotDefaults(&req, h.Catalog)

	if err := h.Store.UpdateBot(r.Context(), &req); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, req)
}

func (h *Handlers) DeleteBot(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteBot(r.Context(), chi.URLParam(r, "botID")); err != nil {
		respondStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// applyBotDefaults fills routing parameters a creation payload may omit.
func applyBotDefaults(bot *models.BotConfig, cat *catalog.Catalog) {
	if bot.Model == "" {
		bot.Model = catalog.DefaultTextModel
	}
	if bot.ContextBudget <= 0 {
		if m := cat.LookupText(bot.Model); m != nil {
			bot.ContextBudget = m.ContextWindow
		} else {
			bot.ContextBudget = 32768
		}
	}
	if bot.Temperature == 0 {
		bot.Temperature = 0.7
	}
	if bot.TopP == 0 {
		bot.TopP = 0.95
	}
	bot.UpdatedAt = time.Now().UTC()
}

// ── Arena Handlers ───────────────────────────────────────────

func (h *Handlers) ListArenas(w http.ResponseWriter, r *http.Request) {
	arenas, err := h.Store.ListArenas(r.Context(), middleware.GetUser(r.Context()))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if arenas == nil {
		arenas = []models.Arena{}
	}
	respondJSON(w, http.StatusOK, arenas)
}

func (h *Handlers) CreateArena(w http.ResponseWriter, r *http.Request) {
	var req models.Arena
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.BotID == "" {
		respondError(w, http.StatusBadRequest, "Arena needs a bot")
		return
	}
	if _, err := h.Store.GetBot(r.Context(), req.BotID); err != nil {
		respondStoreError(w, err)
		return
	}

	req.ID = uuid.New().String()
	req.Owner = middleware.GetUser(r.Context())
	req.CreatedAt = time.Now().UTC()
	req.UpdatedAt = req.CreatedAt

	if err := h.Store.CreateArena(r.Context(), &req); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, req)
}

func (h *Handlers) GetArena(w http.ResponseWriter, r *http.Request) {
	arena, err := h.Store.GetArena(r.Context(), chi.URLParam(r, "arenaID"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, arena)
}

func (h *Handlers) UpdateArena(w http.ResponseWriter, r *http.Request) {
	existing, err := h.Store.GetArena(r.Context(), chi.URLParam(r, "arenaID"))
	if err != nil {
		respondStoreError(w, err)
		return
	}

	var req models.Arena
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.ID = existing.ID
	req.Owner = existing.Owner
	req.CreatedAt = existing.CreatedAt
	req.UpdatedAt = time.Now().UTC()

	if err := h.Store.UpdateArena(r.Context(), &req); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, req)
}

func (h *Handlers) DeleteArena(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteArena(r.Context(), chi.URLParam(r, "arenaID")); err != nil {
		respondStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Model Catalog Handlers ───────────────────────────────────

func (h *Handlers) ListTextModels(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.Catalog.ListText())
}

func (h *Handlers) ListImageFamilies(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.Catalog.ImageFamilies())
}

// ── Helpers ──────────────────────────────────────────────────

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func respondStoreError(w http.ResponseWriter, err error) {
	var notFound *store.ErrNotFound
	if errors.As(err, &notFound) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondError(w, http.StatusInternalServerError, err.Error())
}
