package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/botarena/botarena/internal/api/middleware"
	"github.com/botarena/botarena/internal/chat"
	"github.com/botarena/botarena/pkg/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// ── Knowledge Handlers ───────────────────────────────────────

func (h *Handlers) ListAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := h.Knowledge.ListAssets(r.Context(), middleware.GetUser(r.Context()))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if assets == nil {
		assets = []models.KnowledgeAsset{}
	}
	respondJSON(w, http.StatusOK, assets)
}

func (h *Handlers) CreateAsset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name      string                 `json:"name"`
		Source    models.AssetSourceType `json:"source"`
		Ref       string                 `json:"ref"`
		SizeBytes int64                  `json:"size_bytes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	asset, err := h.Knowledge.CreateAsset(r.Context(), middleware.GetUser(r.Context()),
		req.Name, req.Source, req.Ref, req.SizeBytes)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, asset)
}

// SettleAsset marks a pending asset indexed or failed.
func (h *Handlers) SettleAsset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	asset, err := h.Knowledge.MarkIndexed(r.Context(), chi.URLParam(r, "assetID"), req.OK)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, asset)
}

func (h *Handlers) DeleteAsset(w http.ResponseWriter, r *http.Request) {
	if err := h.Knowledge.DeleteAsset(r.Context(), chi.URLParam(r, "assetID")); err != nil {
		respondStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Wallet Handlers ──────────────────────────────────────────

func (h *Handlers) ConnectWallet(w http.ResponseWriter, r *http.Request) {
	link, err := h.Wallet.Connect(r.Context(), middleware.GetUser(r.Context()))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, link)
}

func (h *Handlers) GetWallet(w http.ResponseWriter, r *http.Request) {
	link, err := h.Wallet.Link(r.Context(), middleware.GetUser(r.Context()))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, link)
}

func (h *Handlers) DisconnectWallet(w http.ResponseWriter, r *http.Request) {
	if err := h.Wallet.Disconnect(r.Context(), middleware.GetUser(r.Context())); err != nil {
		respondStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) GrantEntitlement(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Feature   string    `json:"feature"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Feature == "" {
		respondError(w, http.StatusBadRequest, "Feature is required")
		return
	}

	ent, err := h.Wallet.Grant(r.Context(), middleware.GetUser(r.Context()), req.Feature, req.ExpiresAt)
	if err != nil {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, ent)
}

func (h *Handlers) ListEntitlements(w http.ResponseWriter, r *http.Request) {
	ents, err := h.Wallet.Entitlements(r.Context(), middleware.GetUser(r.Context()))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if ents == nil {
		ents = []models.Entitlement{}
	}
	respondJSON(w, http.StatusOK, ents)
}

// ── Usage Handlers ───────────────────────────────────────────

func (h *Handlers) ListUsage(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			limit = n
		}
	}
	events, err := h.Store.ListUsageEvents(r.Context(), middleware.GetUser(r.Context()), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if events == nil {
		events = []models.UsageEvent{}
	}
	respondJSON(w, http.StatusOK, events)
}

// ── Snippet Handlers ─────────────────────────────────────────

func (h *Handlers) ListSnippets(w http.ResponseWriter, r *http.Request) {
	snippets, err := h.Store.ListSnippets(r.Context(), middleware.GetUser(r.Context()))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if snippets == nil {
		snippets = []models.APISnippet{}
	}
	respondJSON(w, http.StatusOK, snippets)
}

func (h *Handlers) CreateSnippet(w http.ResponseWriter, r *http.Request) {
	var req models.APISnippet
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.ID = uuid.New().String()
	req.Owner = middleware.GetUser(r.Context())
	req.CreatedAt = time.Now().UTC()

	if err := h.Store.CreateSnippet(r.Context(), &req); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, req)
}

func (h *Handlers) DeleteSnippet(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteSnippet(r.Context(), chi.URLParam(r, "snippetID")); err != nil {
		respondStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Enhance & Theme Handlers ─────────────────────────────────

// Enhance polishes draft instruction text. It always answers 200; a model
// failure hands the original draft back unchanged.
func (h *Handlers) Enhance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"text": h.Enhancer.Enhance(r.Context(), req.Text),
	})
}

func (h *Handlers) GenerateTheme(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mood string `json:"mood"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Mood == "" {
		respondError(w, http.StatusBadRequest, "Mood is required")
		return
	}

	theme, err := h.Themes.Generate(r.Context(), req.Mood)
	if err != nil {
		var malformed *chat.MalformedThemeError
		if errors.As(err, &malformed) {
			respondError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, theme)
}
