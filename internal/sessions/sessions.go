// Package sessions provides in-memory session management for multi-turn
// conversations with bots. History is mutated only after a turn settles.
package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/botarena/botarena/internal/store"
	"github.com/botarena/botarena/pkg/models"
	"github.com/google/uuid"
)

// MemorySessionStore is a thread-safe in-memory session store.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session // key: session ID
}

// NewMemorySessionStore creates a new in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]*models.Session),
	}
}

// CreateSession opens a new session for a bot.
func (s *MemorySessionStore) CreateSession(_ context.Context, botID, owner string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	session := &models.Session{
		ID:        uuid.NewString(),
		BotID:     botID,
		Owner:     owner,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.sessions[session.ID] = session
	return session, nil
}

// GetSession retrieves a session by ID.
func (s *MemorySessionStore) GetSession(_ context.Context, sessionID string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, &store.ErrNotFound{Entity: "session", Key: sessionID}
	}
	return session, nil
}

// AppendMessages appends settled turns to the session history.
func (s *MemorySessionStore) AppendMessages(_ context.Context, sessionID string, msgs ...models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return &store.ErrNotFound{Entity: "session", Key: sessionID}
	}
	session.Messages = append(session.Messages, msgs...)
	session.UpdatedAt = time.Now().UTC()
	return nil
}

// SelectVariant marks one side of a dual-content message as the visible
// variant. The unselected text is kept so the choice can be revised.
func (s *MemorySessionStore) SelectVariant(_ context.Context, sessionID, messageID, tag string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, &store.ErrNotFound{Entity: "session", Key: sessionID}
	}
	for i := range session.Messages {
		if session.Messages[i].ID != messageID {
			continue
		}
		if err := session.Messages[i].SelectVariant(tag); err != nil {
			return nil, err
		}
		session.UpdatedAt = time.Now().UTC()
		return &session.Messages[i], nil
	}
	return nil, &store.ErrNotFound{Entity: "message", Key: messageID}
}

// ListSessions lists sessions for a bot and owner, or all of the owner's
// sessions when botID is empty.
func (s *MemorySessionStore) ListSessions(_ context.Context, botID, owner string) ([]models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.Session
	for _, sess := range s.sessions {
		if sess.Owner != owner {
			continue
		}
		if botID != "" && sess.BotID != botID {
			continue
		}
		result = append(result, *sess)
	}
	return result, nil
}

// DeleteSession removes a session and its history.
func (s *MemorySessionStore) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[sessionID]; !exists {
		return &store.ErrNotFound{Entity: "session", Key: sessionID}
	}
	delete(s.sessions, sessionID)
	return nil
}
