// Package store provides the persistence interface and implementations for
// the BotArena backend. The persistence collaborator is a flat set of
// namespaced buckets; every mutation rewrites the owning bucket as a whole
// (no partial updates, no transactions, no migration versioning). Consumers
// must tolerate an absent bucket, which reads as empty.
package store

import (
	"context"

	"github.com/botarena/botarena/pkg/models"
)

// Store is the primary storage interface. All handler and service code
// depends on this interface, making it easy to swap the in-memory
// implementation (tests) for the snapshot-backed one (production).
type Store interface {
	BotStore
	KnowledgeStore
	ArenaStore
	WalletStore
	EntitlementStore
	UsageStore
	SnippetStore
	UserStore

	// Ping checks that the backing bucket file (if any) is reachable.
	Ping(ctx context.Context) error

	// Close releases all resources held by the store.
	Close() error
}

// ── Bot Store ────────────────────────────────────────────────

type BotStore interface {
	ListBots(ctx context.Context, owner string) ([]models.BotConfig, error)
	GetBot(ctx context.Context, id string) (*models.BotConfig, error)
	CreateBot(ctx context.Context, bot *models.BotConfig) error
	UpdateBot(ctx context.Context, bot *models.BotConfig) error
	DeleteBot(ctx context.Context, id string) error
}

// ── Knowledge Store ──────────────────────────────────────────

type KnowledgeStore interface {
	ListAssets(ctx context.Context, owner string) ([]models.KnowledgeAsset, error)
	GetAsset(ctx context.Context, id string) (*models.KnowledgeAsset, error)
	CreateAsset(ctx context.Context, asset *models.KnowledgeAsset) error
	UpdateAsset(ctx context.Context, asset *models.KnowledgeAsset) error
	DeleteAsset(ctx context.Context, id string) error
}

// ── Arena Store ──────────────────────────────────────────────

type ArenaStore interface {
	ListArenas(ctx context.Context, owner string) ([]models.Arena, error)
	GetArena(ctx context.Context, id string) (*models.Arena, error)
	CreateArena(ctx context.Context, arena *models.Arena) error
	UpdateArena(ctx context.Context, arena *models.Arena) error
	DeleteArena(ctx context.Context, id string) error
}

// ── Wallet Store ─────────────────────────────────────────────

type WalletStore interface {
	GetWalletLink(ctx context.Context, owner string) (*models.WalletLink, error)
	UpsertWalletLink(ctx context.Context, link *models.WalletLink) error
	DeleteWalletLink(ctx context.Context, owner string) error
}

// ── Entitlement Store ────────────────────────────────────────

type EntitlementStore interface {
	ListEntitlements(ctx context.Context, owner string) ([]models.Entitlement, error)
	CreateEntitlement(ctx context.Context, ent *models.Entitlement) error
	DeleteEntitlement(ctx context.Context, id string) error
}

// ── Usage Store ──────────────────────────────────────────────

// UsageStore is an append-only log of model invocations.
type UsageStore interface {
	ListUsageEvents(ctx context.Context, owner string, limit int) ([]models.UsageEvent, error)
	CreateUsageEvent(ctx context.Context, event *models.UsageEvent) error
}

// ── Snippet Store ────────────────────────────────────────────

type SnippetStore interface {
	ListSnippets(ctx context.Context, owner string) ([]models.APISnippet, error)
	CreateSnippet(ctx context.Context, snippet *models.APISnippet) error
	DeleteSnippet(ctx context.Context, id string) error
}

// ── User Store ───────────────────────────────────────────────

type UserStore interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	UpsertUser(ctx context.Context, user *models.User) error
}

// ── Errors ──────────────────────────────────────────────────

// ErrNotFound is returned when a requested entity does not exist.
type ErrNotFound struct {
	Entity string
	Key    string
}

func (e *ErrNotFound) Error() string {
	return e.Entity + " not found: " + e.Key
}
