package memory

import (
	"context"
	"errors"
	"testing"

	"spl-rewards-token/internal/domain"
	"spl-rewards-token/internal/storage"
)

func TestLiquidityEventStoreInsertAndGet(t *testing.T) {
	s := NewLiquidityEventStore()
	ctx := context.Background()

	for _, at := range []int64{3600, 0, 1800} {
		err := s.Insert(ctx, &domain.LiquidityRecord{Pool: "pool1", ReserveWallet: "rw", RequestedAt: at})
		if err != nil {
			t.Fatalf("insert at %d: %v", at, err)
		}
	}

	got, err := s.GetByPool(ctx, "pool1")
	if err != nil {
		t.Fatalf("get by pool: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("count = %d, want 3", len(got))
	}
	for i, want := range []int64{0, 1800, 3600} {
		if got[i].RequestedAt != want {
			t.Errorf("event %d requested_at = %d, want %d", i, got[i].RequestedAt, want)
		}
	}
}

func TestLiquidityEventStoreDuplicate(t *testing.T) {
	s := NewLiquidityEventStore()
	ctx := context.Background()

	e := &domain.LiquidityRecord{Pool: "pool1", ReserveWallet: "rw", RequestedAt: 100}
	if err := s.Insert(ctx, e); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.Insert(ctx, e); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("err = %v, want ErrDuplicateKey", err)
	}
}

func TestLiquidityEventStoreInvalidInput(t *testing.T) {
	s := NewLiquidityEventStore()

	err := s.Insert(context.Background(), &domain.LiquidityRecord{RequestedAt: 1})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}
