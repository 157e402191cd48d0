package wallet

import (
	"context"
	"testing"
	"time"

	"github.com/botarena/botarena/internal/store"
)

func newService(t *testing.T) *Service {
	t.Helper()
	st := store.NewMemoryStore(t.TempDir())
	t.Cleanup(func() { st.Close() })
	return NewServiceWithDelay(st, 0)
}

func TestConnectIsDeterministic(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	first, err := svc.Connect(ctx, "alice")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if len(first.Address) != 42 || first.Address[:2] != "0x" {
		t.Errorf("address = %q, want 0x + 40 hex chars", first.Address)
	}
	if first.Network != DefaultNetwork {
		t.Errorf("network = %q", first.Network)
	}

	second, err := svc.Connect(ctx, "alice")
	if err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if second.Address != first.Address {
		t.Errorf("reconnect changed address: %q vs %q", second.Address, first.Address)
	}

	other, _ := svc.Connect(ctx, "bob")
	if other.Address == first.Address {
		t.Error("different owners share an address")
	}
}

func TestGrantNeedsLinkedWallet(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	if _, err := svc.Grant(ctx, "alice", "pro-models", time.Time{}); err == nil {
		t.Fatal("expected grant to fail without a wallet link")
	}

	if _, err := svc.Connect(ctx, "alice"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	ent, err := svc.Grant(ctx, "alice", "pro-models", time.Time{})
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	if ent.Feature != "pro-models" || ent.Owner != "alice" {
		t.Errorf("entitlement = %+v", ent)
	}
}

func TestEntitlementsDropExpired(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	svc.Connect(ctx, "alice")

	svc.Grant(ctx, "alice", "expired", time.Now().Add(-time.Hour))
	svc.Grant(ctx, "alice", "active", time.Now().Add(time.Hour))
	svc.Grant(ctx, "alice", "forever", time.Time{})

	ents, err := svc.Entitlements(ctx, "alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ents) != 2 {
		t.Fatalf("entitlements = %d, want 2", len(ents))
	}
	for _, e := range ents {
		if e.Feature == "expired" {
			t.Error("expired grant still listed")
		}
	}
}

func TestConnectHonorsCancellation(t *testing.T) {
	st := store.NewMemoryStore(t.TempDir())
	t.Cleanup(func() { st.Close() })
	svc := NewServiceWithDelay(st, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := svc.Connect(ctx, "alice"); err == nil {
		t.Fatal("expected cancellation error")
	}
}
