package memory

import (
	"context"
	"errors"
	"testing"

	"spl-rewards-token/internal/domain"
	"spl-rewards-token/internal/storage"
)

func TestHolderBalanceStoreUpsert(t *testing.T) {
	s := NewHolderBalanceStore()
	ctx := context.Background()

	err := s.Upsert(ctx, &domain.HolderBalanceRecord{Holder: "bob", Balance: 100, UpdatedAt: 1})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// Second write wins.
	err = s.Upsert(ctx, &domain.HolderBalanceRecord{Holder: "bob", Balance: 250, UpdatedAt: 2})
	if err != nil {
		t.Fatalf("upsert again: %v", err)
	}

	got, err := s.GetByHolder(ctx, "bob")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Balance != 250 || got.UpdatedAt != 2 {
		t.Errorf("got = %+v, want latest snapshot", got)
	}
}

func TestHolderBalanceStoreNotFound(t *testing.T) {
	s := NewHolderBalanceStore()

	_, err := s.GetByHolder(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestHolderBalanceStoreInvalidInput(t *testing.T) {
	s := NewHolderBalanceStore()
	ctx := context.Background()

	if err := s.Upsert(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("nil upsert err = %v, want ErrInvalidInput", err)
	}
	if err := s.Upsert(ctx, &domain.HolderBalanceRecord{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("empty holder upsert err = %v, want ErrInvalidInput", err)
	}
}

func TestHolderBalanceStoreGetAllOrdered(t *testing.T) {
	s := NewHolderBalanceStore()
	ctx := context.Background()

	for _, h := range []string{"carol", "alice", "bob"} {
		if err := s.Upsert(ctx, &domain.HolderBalanceRecord{Holder: h, Balance: 1}); err != nil {
			t.Fatalf("upsert %s: %v", h, err)
		}
	}

	got, err := s.GetAll(ctx)
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("count = %d, want 3", len(got))
	}
	want := []string{"alice", "bob", "carol"}
	for i, b := range got {
		if b.Holder != want[i] {
			t.Errorf("holder %d = %s, want %s", i, b.Holder, want[i])
		}
	}
}
