package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func seededStore(t *testing.T) *InventoryStore {
	t.Helper()

	store := NewInventoryStore()
	store.Seed(domain.Product{
		ID:           "tee-classic",
		Title:        "Classic Tee",
		PriceMinor:   450000,
		AvailableQty: 6,
		Colors: []domain.ColorVariant{
			{
				Key: "black", Qty: 6,
				Sizes: []domain.SizeVariant{
					{Label: "M", Qty: 4},
					{Label: "L", Qty: 2},
				},
			},
		},
	})
	return store
}

func TestInventoryStore_GetProduct(t *testing.T) {
	store := seededStore(t)
	ctx := context.Background()

	product, err := store.GetProduct(ctx, "tee-classic")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if product.AvailableQty != 6 {
		t.Errorf("expected qty 6, got %d", product.AvailableQty)
	}

	if _, err := store.GetProduct(ctx, "missing"); !errors.Is(err, domain.ErrProductNotFound) {
		t.Errorf("expected ErrProductNotFound, got %v", err)
	}
}

func TestInventoryStore_GetProductReturnsCopy(t *testing.T) {
	store := seededStore(t)
	ctx := context.Background()

	first, _ := store.GetProduct(ctx, "tee-classic")
	first.Colors[0].Qty = 0
	first.Colors[0].Sizes[0].Qty = 0

	second, _ := store.GetProduct(ctx, "tee-classic")
	if second.Colors[0].Qty != 6 || second.Colors[0].Sizes[0].Qty != 4 {
		t.Error("mutation of returned product leaked into store")
	}
}

func TestInventoryStore_CommitProducts(t *testing.T) {
	store := seededStore(t)
	ctx := context.Background()

	product, _ := store.GetProduct(ctx, "tee-classic")
	product.Colors[0].Qty -= 2
	product.Colors[0].Sizes[0].Qty -= 2
	product.AvailableQty -= 2

	if err := store.CommitProducts(ctx, []domain.Product{product}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fresh, _ := store.GetProduct(ctx, "tee-classic")
	if fresh.AvailableQty != 4 {
		t.Errorf("expected qty 4, got %d", fresh.AvailableQty)
	}
	if fresh.Version != product.Version+1 {
		t.Errorf("expected version bump to %d, got %d", product.Version+1, fresh.Version)
	}
}

func TestInventoryStore_CommitVersionConflict(t *testing.T) {
	store := seededStore(t)
	ctx := context.Background()

	stale, _ := store.GetProduct(ctx, "tee-classic")

	current, _ := store.GetProduct(ctx, "tee-classic")
	if err := store.CommitProducts(ctx, []domain.Product{current}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// У stale устаревшая версия: коммит должен отбиться.
	if err := store.CommitProducts(ctx, []domain.Product{stale}); !errors.Is(err, domain.ErrVersionConflict) {
		t.Errorf("expected ErrVersionConflict, got %v", err)
	}
}

func TestInventoryStore_CommitAllOrNothing(t *testing.T) {
	store := seededStore(t)
	store.Seed(domain.Product{
		ID:           "mug-enamel",
		Title:        "Enamel Mug",
		PriceMinor:   180000,
		AvailableQty: 3,
		Colors:       []domain.ColorVariant{{Key: "navy", Qty: 3}},
	})
	ctx := context.Background()

	tee, _ := store.GetProduct(ctx, "tee-classic")
	mug, _ := store.GetProduct(ctx, "mug-enamel")
	tee.AvailableQty--
	tee.Colors[0].Qty--
	tee.Colors[0].Sizes[0].Qty--
	mug.Version = 99 // заведомо чужая версия

	err := store.CommitProducts(ctx, []domain.Product{tee, mug})
	if !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}

	// Первый документ не должен был записаться.
	fresh, _ := store.GetProduct(ctx, "tee-classic")
	if fresh.AvailableQty != 6 {
		t.Errorf("partial write detected: qty %d", fresh.AvailableQty)
	}
}

func TestInventoryStore_CommitRejectsBrokenAggregates(t *testing.T) {
	store := seededStore(t)
	ctx := context.Background()

	product, _ := store.GetProduct(ctx, "tee-classic")
	product.AvailableQty = 99

	if err := store.CommitProducts(ctx, []domain.Product{product}); !errors.Is(err, domain.ErrProductAggregateMismatch) {
		t.Errorf("expected aggregate mismatch, got %v", err)
	}
}
