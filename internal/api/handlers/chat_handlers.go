package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/botarena/botarena/internal/api/middleware"
	"github.com/botarena/botarena/internal/chat"
	"github.com/botarena/botarena/internal/store"
	"github.com/botarena/botarena/pkg/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ChatRequest is the body of a chat turn.
type ChatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Input     string `json:"input"`
}

// ── Session Handlers ─────────────────────────────────────────

func (h *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	botID := chi.URLParam(r, "botID")
	if _, err := h.Store.GetBot(r.Context(), botID); err != nil {
		respondStoreError(w, err)
		return
	}
	sess, err := h.Sessions.CreateSession(r.Context(), botID, middleware.GetUser(r.Context()))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, sess)
}

func (h *Handlers) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.Sessions.ListSessions(r.Context(), r.URL.Query().Get("bot"), middleware.GetUser(r.Context()))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if sessions == nil {
		sessions = []models.Session{}
	}
	respondJSON(w, http.StatusOK, sessions)
}

func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Sessions.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

func (h *Handlers) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.DeleteSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		respondStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SelectVariant pins one side of a dual-content message.
func (h *Handlers) SelectVariant(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Variant string `json:"variant"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	msg, err := h.Sessions.SelectVariant(r.Context(),
		chi.URLParam(r, "sessionID"), chi.URLParam(r, "messageID"), req.Variant)
	if err != nil {
		var notFound *store.ErrNotFound
		if errors.As(err, &notFound) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, msg)
}

// ── Chat Handler ─────────────────────────────────────────────

// Chat runs one conversation turn, streaming progress as server-sent
// events: "delta" frames carry the cumulative visible text, "thought"
// frames the cumulative reasoning trace, and one final "turn" frame the
// settled message with telemetry, artifacts and any image.
func (h *Handlers) Chat(w http.ResponseWriter, r *http.Request) {
	botID := chi.URLParam(r, "botID")
	bot, err := h.Store.GetBot(r.Context(), botID)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Input == "" {
		respondError(w, http.StatusBadRequest, "Input is required")
		return
	}

	owner := middleware.GetUser(r.Context())
	sess, err := h.resolveSession(r, req.SessionID, botID, owner)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Session-Id", sess.ID)
	w.WriteHeader(http.StatusOK)

	emit := func(event string, payload interface{}) {
		writeSSE(w, event, payload)
		flusher.Flush()
	}

	result := h.Processor.ProcessTurn(r.Context(), chat.TurnRequest{
		Bot:       bot,
		History:   sess.Messages,
		Assets:    h.Knowledge.ResolveRefs(r.Context(), bot),
		Input:     req.Input,
		Owner:     owner,
		OnPartial: func(cumulative string) { emit("delta", map[string]string{"text": cumulative}) },
		OnThought: func(cumulative string) { emit("thought", map[string]string{"text": cumulative}) },
	})

	switch result.State {
	case chat.TurnCancelled:
		// Client went away; nothing to persist, nowhere to write.
		log.Info().Str("session", sess.ID).Msg("Chat turn cancelled by client")
		return
	case chat.TurnCompleted, chat.TurnFailed:
		userTurn := models.Message{
			ID:        uuid.NewString(),
			Role:      models.RoleUser,
			Content:   req.Input,
			CreatedAt: time.Now().UTC(),
		}
		if err := h.Sessions.AppendMessages(r.Context(), sess.ID, userTurn, result.Message); err != nil {
			log.Warn().Err(err).Str("session", sess.ID).Msg("Cannot append settled turn")
		}
		emit("turn", map[string]interface{}{
			"state":      result.State,
			"session_id": sess.ID,
			"message":    result.Message,
		})
	}
}

func (h *Handlers) resolveSession(r *http.Request, sessionID, botID, owner string) (*models.Session, error) {
	if sessionID == "" {
		return h.Sessions.CreateSession(r.Context(), botID, owner)
	}
	return h.Sessions.GetSession(r.Context(), sessionID)
}

// writeSSE frames one event in text/event-stream format.
func writeSSE(w http.ResponseWriter, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	w.Write([]byte("event: " + event + "\n"))
	w.Write([]byte("data: "))
	w.Write(data)
	w.Write([]byte("\n\n"))
}
