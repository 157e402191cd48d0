// Package store — in-memory Store implementation.
// Buckets live in maps guarded by one RWMutex and are serialized as whole
// JSON arrays to a snapshot file so data survives restarts. Concurrent
// processes sharing the same snapshot are last-write-wins; the domain has no
// multi-writer consistency requirement.
package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/botarena/botarena/pkg/models"
	"github.com/rs/zerolog/log"
)

// snapshot is the JSON-serializable shape written to disk. Each field is one
// bucket; a missing field unmarshals to nil and reads as an empty bucket.
type snapshot struct {
	Bots         map[string]*models.BotConfig      `json:"bots"`
	Assets       map[string]*models.KnowledgeAsset `json:"knowledge_assets"`
	Arenas       map[string]*models.Arena          `json:"arenas"`
	Wallets      map[string]*models.WalletLink     `json:"wallet_links"` // key: owner
	Entitlements map[string]*models.Entitlement    `json:"entitlements"`
	UsageEvents  []*models.UsageEvent              `json:"usage_events"`
	Snippets     map[string]*models.APISnippet     `json:"api_snippets"`
	Users        map[string]*models.User           `json:"users"`
}

// MemoryStore implements Store with in-memory maps.
type MemoryStore struct {
	mu           sync.RWMutex
	bots         map[string]*models.BotConfig      // key: id
	assets       map[string]*models.KnowledgeAsset // key: id
	arenas       map[string]*models.Arena          // key: id
	wallets      map[string]*models.WalletLink     // key: owner
	entitlements map[string]*models.Entitlement    // key: id
	usageEvents  []*models.UsageEvent              // append-only log
	snippets     map[string]*models.APISnippet     // key: id
	users        map[string]*models.User           // key: id

	// Persistence
	snapshotPath string        // empty = no persistence
	saveMu       sync.Mutex    // guards file writes
	saveCh       chan struct{} // debounce channel
	doneCh       chan struct{} // signals the save goroutine to stop
	closeOnce    sync.Once
}

// NewMemoryStore creates a new in-memory store. If dataDir is non-empty,
// buckets are persisted to a JSON snapshot file in that directory.
func NewMemoryStore(dataDir string) *MemoryStore {
	m := &MemoryStore{
		bots:         make(map[string]*models.BotConfig),
		assets:       make(map[string]*models.KnowledgeAsset),
		arenas:       make(map[string]*models.Arena),
		wallets:      make(map[string]*models.WalletLink),
		entitlements: make(map[string]*models.Entitlement),
		usageEvents:  make([]*models.UsageEvent, 0),
		snippets:     make(map[string]*models.APISnippet),
		users:        make(map[string]*models.User),
		saveCh:       make(chan struct{}, 1),
		doneCh:       make(chan struct{}),
	}

	if dataDir != "" {
		m.snapshotPath = filepath.Join(dataDir, "data.json")
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			log.Warn().Err(err).Str("dir", dataDir).Msg("Cannot create data dir, persistence disabled")
			m.snapshotPath = ""
		}
	}

	if m.snapshotPath != "" {
		m.loadSnapshot()
		go m.saveLoop()
	}

	log.Info().Str("snapshot", m.snapshotPath).Msg("Memory store configured")
	return m
}

// requestSave signals the background goroutine to persist data.
// Non-blocking: coalesces multiple rapid writes into one disk flush.
func (m *MemoryStore) requestSave() {
	if m.snapshotPath == "" {
		return
	}
	select {
	case m.saveCh <- struct{}{}:
	default:
		// Already pending
	}
}

// saveLoop runs in a goroutine, debouncing save requests (max 1 write per 500ms).
func (m *MemoryStore) saveLoop() {
	for {
		select {
		case <-m.doneCh:
			return
		case <-m.saveCh:
			time.Sleep(500 * time.Millisecond) // debounce
			m.saveSnapshot()
		}
	}
}

func (m *MemoryStore) loadSnapshot() {
	data, err := os.ReadFile(m.snapshotPath)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", m.snapshotPath).Msg("Cannot read snapshot")
		}
		return
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Warn().Err(err).Str("path", m.snapshotPath).Msg("Corrupt snapshot, starting empty")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if snap.Bots != nil {
		m.bots = snap.Bots
	}
	if snap.Assets != nil {
		m.assets = snap.Assets
	}
	if snap.Arenas != nil {
		m.arenas = snap.Arenas
	}
	if snap.Wallets != nil {
		m.wallets = snap.Wallets
	}
	if snap.Entitlements != nil {
		m.entitlements = snap.Entitlements
	}
	if snap.UsageEvents != nil {
		m.usageEvents = snap.UsageEvents
	}
	if snap.Snippets != nil {
		m.snippets = snap.Snippets
	}
	if snap.Users != nil {
		m.users = snap.Users
	}

	log.Info().
		Int("bots", len(m.bots)).
		Int("assets", len(m.assets)).
		Int("arenas", len(m.arenas)).
		Msg("Snapshot loaded")
}

func (m *MemoryStore) saveSnapshot() {
	m.mu.RLock()
	snap := snapshot{
		Bots:         m.bots,
		Assets:       m.assets,
		Arenas:       m.arenas,
		Wallets:      m.wallets,
		Entitlements: m.entitlements,
		UsageEvents:  m.usageEvents,
		Snippets:     m.snippets,
		Users:        m.users,
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	m.mu.RUnlock()
	if err != nil {
		log.Error().Err(err).Msg("Cannot marshal snapshot")
		return
	}

	m.saveMu.Lock()
	defer m.saveMu.Unlock()
	tmp := m.snapshotPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		log.Error().Err(err).Msg("Cannot write snapshot")
		return
	}
	if err := os.Rename(tmp, m.snapshotPath); err != nil {
		log.Error().Err(err).Msg("Cannot replace snapshot")
	}
}

// Ping checks the snapshot directory is reachable. Always succeeds for a
// store without persistence.
func (m *MemoryStore) Ping(_ context.Context) error {
	if m.snapshotPath == "" {
		return nil
	}
	_, err := os.Stat(filepath.Dir(m.snapshotPath))
	return err
}

// Close stops the save goroutine and flushes a final snapshot.
func (m *MemoryStore) Close() error {
	m.closeOnce.Do(func() {
		close(m.doneCh)
		if m.snapshotPath != "" {
			m.saveSnapshot()
		}
	})
	return nil
}

// ── Bot Store ────────────────────────────────────────────────

func (m *MemoryStore) ListBots(_ context.Context, owner string) ([]models.BotConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []models.BotConfig
	for _, b := range m.bots {
		if owner == "" || b.Owner == owner {
			result = append(result, *b)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (m *MemoryStore) GetBot(_ context.Context, id string) (*models.BotConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.bots[id]
	if !ok {
		return nil, &ErrNotFound{Entity: "bot", Key: id}
	}
	cp := *b
	return &cp, nil
}

func (m *MemoryStore) CreateBot(_ context.Context, bot *models.BotConfig) error {
	m.mu.Lock()
	m.bots[bot.ID] = bot
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) UpdateBot(_ context.Context, bot *models.BotConfig) error {
	m.mu.Lock()
	defer m.requestSave()
	defer m.mu.Unlock()

	if _, ok := m.bots[bot.ID]; !ok {
		return &ErrNotFound{Entity: "bot", Key: bot.ID}
	}
	bot.UpdatedAt = time.Now().UTC()
	m.bots[bot.ID] = bot
	return nil
}

func (m *MemoryStore) DeleteBot(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.requestSave()
	defer m.mu.Unlock()

	if _, ok := m.bots[id]; !ok {
		return &ErrNotFound{Entity: "bot", Key: id}
	}
	delete(m.bots, id)
	return nil
}

// ── Knowledge Store ──────────────────────────────────────────

func (m *MemoryStore) ListAssets(_ context.Context, owner string) ([]models.KnowledgeAsset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []models.KnowledgeAsset
	for _, a := range m.assets {
		if owner == "" || a.Owner == owner {
			result = append(result, *a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (m *MemoryStore) GetAsset(_ context.Context, id string) (*models.KnowledgeAsset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.assets[id]
	if !ok {
		return nil, &ErrNotFound{Entity: "knowledge asset", Key: id}
	}
	cp := *a
	return &cp, nil
}

func (m *MemoryStore) CreateAsset(_ context.Context, asset *models.KnowledgeAsset) error {
	m.mu.Lock()
	m.assets[asset.ID] = asset
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) UpdateAsset(_ context.Context, asset *models.KnowledgeAsset) error {
	m.mu.Lock()
	defer m.requestSave()
	defer m.mu.Unlock()

	if _, ok := m.assets[asset.ID]; !ok {
		return &ErrNotFound{Entity: "knowledge asset", Key: asset.ID}
	}
	m.assets[asset.ID] = asset
	return nil
}

func (m *MemoryStore) DeleteAsset(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.requestSave()
	defer m.mu.Unlock()

	if _, ok := m.assets[id]; !ok {
		return &ErrNotFound{Entity: "knowledge asset", Key: id}
	}
	delete(m.assets, id)
	return nil
}

// ── Arena Store ──────────────────────────────────────────────

func (m *MemoryStore) ListArenas(_ context.Context, owner string) ([]models.Arena, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []models.Arena
	for _, a := range m.arenas {
		if owner == "" || a.Owner == owner {
			result = append(result, *a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (m *MemoryStore) GetArena(_ context.Context, id string) (*models.Arena, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.arenas[id]
	if !ok {
		return nil, &ErrNotFound{Entity: "arena", Key: id}
	}
	cp := *a
	return &cp, nil
}

func (m *MemoryStore) CreateArena(_ context.Context, arena *models.Arena) error {
	m.mu.Lock()
	m.arenas[arena.ID] = arena
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) UpdateArena(_ context.Context, arena *models.Arena) error {
	m.mu.Lock()
	defer m.requestSave()
	defer m.mu.Unlock()

	if _, ok := m.arenas[arena.ID]; !ok {
		return &ErrNotFound{Entity: "arena", Key: arena.ID}
	}
	arena.UpdatedAt = time.Now().UTC()
	m.arenas[arena.ID] = arena
	return nil
}

func (m *MemoryStore) DeleteArena(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.requestSave()
	defer m.mu.Unlock()

	if _, ok := m.arenas[id]; !ok {
		return &ErrNotFound{Entity: "arena", Key: id}
	}
	delete(m.arenas, id)
	return nil
}

// ── Wallet Store ─────────────────────────────────────────────

func (m *MemoryStore) GetWalletLink(_ context.Context, owner string) (*models.WalletLink, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	w, ok := m.wallets[owner]
	if !ok {
		return nil, &ErrNotFound{Entity: "wallet link", Key: owner}
	}
	cp := *w
	return &cp, nil
}

func (m *MemoryStore) UpsertWalletLink(_ context.Context, link *models.WalletLink) error {
	m.mu.Lock()
	m.wallets[link.Owner] = link
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) DeleteWalletLink(_ context.Context, owner string) error {
	m.mu.Lock()
	defer m.requestSave()
	defer m.mu.Unlock()

	if _, ok := m.wallets[owner]; !ok {
		return &ErrNotFound{Entity: "wallet link", Key: owner}
	}
	delete(m.wallets, owner)
	return nil
}

// ── Entitlement Store ────────────────────────────────────────

func (m *MemoryStore) ListEntitlements(_ context.Context, owner string) ([]models.Entitlement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []models.Entitlement
	for _, e := range m.entitlements {
		if owner == "" || e.Owner == owner {
			result = append(result, *e)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].GrantedAt.Before(result[j].GrantedAt) })
	return result, nil
}

func (m *MemoryStore) CreateEntitlement(_ context.Context, ent *models.Entitlement) error {
	m.mu.Lock()
	m.entitlements[ent.ID] = ent
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) DeleteEntitlement(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.requestSave()
	defer m.mu.Unlock()

	if _, ok := m.entitlements[id]; !ok {
		return &ErrNotFound{Entity: "entitlement", Key: id}
	}
	delete(m.entitlements, id)
	return nil
}

// ── Usage Store ──────────────────────────────────────────────

func (m *MemoryStore) ListUsageEvents(_ context.Context, owner string, limit int) ([]models.UsageEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []models.UsageEvent
	// Newest first
	for i := len(m.usageEvents) - 1; i >= 0; i-- {
		e := m.usageEvents[i]
		if owner != "" && e.Owner != owner {
			continue
		}
		result = append(result, *e)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (m *MemoryStore) CreateUsageEvent(_ context.Context, event *models.UsageEvent) error {
	m.mu.Lock()
	m.usageEvents = append(m.usageEvents, event)
	m.mu.Unlock()
	m.requestSave()
	return nil
}

// ── Snippet Store ────────────────────────────────────────────

func (m *MemoryStore) ListSnippets(_ context.Context, owner string) ([]models.APISnippet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []models.APISnippet
	for _, s := range m.snippets {
		if owner == "" || s.Owner == owner {
			result = append(result, *s)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (m *MemoryStore) CreateSnippet(_ context.Context, snippet *models.APISnippet) error {
	m.mu.Lock()
	m.snippets[snippet.ID] = snippet
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) DeleteSnippet(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.requestSave()
	defer m.mu.Unlock()

	if _, ok := m.snippets[id]; !ok {
		return &ErrNotFound{Entity: "snippet", Key: id}
	}
	delete(m.snippets, id)
	return nil
}

// ── User Store ───────────────────────────────────────────────

func (m *MemoryStore) GetUser(_ context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, &ErrNotFound{Entity: "user", Key: id}
	}
	cp := *u
	return &cp, nil
}

func (m *MemoryStore) UpsertUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	m.users[user.ID] = user
	m.mu.Unlock()
	m.requestSave()
	return nil
}
