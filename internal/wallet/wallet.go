// Package wallet simulates a wallet connection flow. The address is
// deterministic per owner and the connect delay is fixed; no real chain
// protocol is involved.
package wallet

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/botarena/botarena/internal/store"
	"github.com/botarena/botarena/pkg/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DefaultNetwork is the pretend chain every simulated link lands on.
const DefaultNetwork = "basecamp-testnet"

// connectDelay mimics the latency of a real wallet handshake.
const connectDelay = 1200 * time.Millisecond

// Service runs the simulated connect flow and entitlement grants.
type Service struct {
	store store.Store
	delay time.Duration
}

func NewService(st store.Store) *Service {
	return &Service{store: st, delay: connectDelay}
}

// NewServiceWithDelay is used by tests to skip the handshake pause.
func NewServiceWithDelay(st store.Store, delay time.Duration) *Service {
	return &Service{store: st, delay: delay}
}

// Connect links a wallet for the owner. The address is derived from the
// owner id so reconnecting yields the same address.
func (s *Service) Connect(ctx context.Context, owner string) (*models.WalletLink, error) {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	link := &models.WalletLink{
		Owner:    owner,
		Address:  deriveAddress(owner),
		Network:  DefaultNetwork,
		LinkedAt: time.Now().UTC(),
	}
	if err := s.store.UpsertWalletLink(ctx, link); err != nil {
		return nil, fmt.Errorf("store wallet link: %w", err)
	}
	log.Info().Str("owner", owner).Str("address", link.Address).Msg("Wallet linked")
	return link, nil
}

// Disconnect removes the owner's wallet link.
func (s *Service) Disconnect(ctx context.Context, owner string) error {
	return s.store.DeleteWalletLink(ctx, owner)
}

// Link returns the current wallet link, if any.
func (s *Service) Link(ctx context.Context, owner string) (*models.WalletLink, error) {
	return s.store.GetWalletLink(ctx, owner)
}

// Grant records a feature entitlement for the owner. A linked wallet is
// required; expires zero means no expiry.
func (s *Service) Grant(ctx context.Context, owner, feature string, expires time.Time) (*models.Entitlement, error) {
	if _, err := s.store.GetWalletLink(ctx, owner); err != nil {
		return nil, fmt.Errorf("entitlements need a linked wallet: %w", err)
	}
	ent := &models.Entitlement{
		ID:        uuid.NewString(),
		Owner:     owner,
		Feature:   feature,
		GrantedAt: time.Now().UTC(),
		ExpiresAt: expires,
	}
	if err := s.store.CreateEntitlement(ctx, ent); err != nil {
		return nil, fmt.Errorf("store entitlement: %w", err)
	}
	return ent, nil
}

// Entitlements lists grants for the owner, dropping expired ones.
func (s *Service) Entitlements(ctx context.Context, owner string) ([]models.Entitlement, error) {
	all, err := s.store.ListEntitlements(ctx, owner)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	active := all[:0]
	for _, e := range all {
		if !e.ExpiresAt.IsZero() && e.ExpiresAt.Before(now) {
			continue
		}
		active = append(active, e)
	}
	return active, nil
}

// deriveAddress fabricates a stable 0x address from the owner id.
func deriveAddress(owner string) string {
	sum := sha256.Sum256([]byte("botarena-wallet:" + owner))
	return "0x" + hex.EncodeToString(sum[:20])
}
