package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"gamification-service/internal/domain"
)

func TestAccountStoreVersioning(t *testing.T) {
	ctx := context.Background()
	store := NewAccountStore()

	if _, err := store.Get(ctx, "u1"); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}

	account := domain.NewPointsAccount("u1", "Alice", time.Now())
	account.Version = 1
	if err := store.Save(ctx, account, 0); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Save(ctx, account, 0); !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected conflict on second create, got %v", err)
	}

	account.Version = 2
	account.LifetimePoints = 10
	if err := store.Save(ctx, account, 1); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := store.Save(ctx, account, 1); !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected stale update to conflict, got %v", err)
	}

	got, err := store.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.LifetimePoints != 10 || got.Version != 2 {
		t.Fatalf("unexpected stored account %+v", got)
	}
}

func TestAccountStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewAccountStore()
	account := domain.NewPointsAccount("u1", "Alice", time.Now())
	account.Version = 1
	account.RecentActions = append(account.RecentActions, domain.ActionRecord{ID: "r1"})
	if err := store.Save(ctx, account, 0); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, _ := store.Get(ctx, "u1")
	got.RecentActions[0].ID = "mutated"

	again, _ := store.Get(ctx, "u1")
	if again.RecentActions[0].ID != "r1" {
		t.Fatalf("store leaked its internal slice")
	}
}
