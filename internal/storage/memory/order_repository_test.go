package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func testOrder(id string) domain.Order {
	now := time.Now().UTC()
	return domain.Order{
		ID:            id,
		Status:        domain.OrderStatusPending,
		PaymentMethod: domain.PaymentMethodCOD,
		SubtotalMinor: 450000,
		ShippingMinor: 35000,
		TotalMinor:    485000,
		Items: []domain.OrderItem{
			{ProductID: "tee-classic", Title: "Classic Tee", ColorKey: "black", Size: "M", Qty: 1, UnitPriceMinor: 450000},
		},
		Customer:  domain.Customer{Email: "nimal@example.com"},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestOrderRepository_CreateAndGet(t *testing.T) {
	repo := NewOrderRepository()
	ctx := context.Background()

	if err := repo.Create(ctx, testOrder("order-1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := repo.Get(ctx, "order-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.TotalMinor != 485000 {
		t.Errorf("expected total 485000, got %d", got.TotalMinor)
	}

	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Errorf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestOrderRepository_CreateDuplicate(t *testing.T) {
	repo := NewOrderRepository()
	ctx := context.Background()

	if err := repo.Create(ctx, testOrder("order-1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.Create(ctx, testOrder("order-1")); !errors.Is(err, domain.ErrOrderExists) {
		t.Errorf("expected ErrOrderExists, got %v", err)
	}
}

func TestOrderRepository_CreateValidatesInvariants(t *testing.T) {
	repo := NewOrderRepository()
	ctx := context.Background()

	broken := testOrder("order-1")
	broken.Items = nil
	if err := repo.Create(ctx, broken); !errors.Is(err, domain.ErrItemsRequired) {
		t.Errorf("expected ErrItemsRequired, got %v", err)
	}
}

func TestOrderRepository_PatchMerge(t *testing.T) {
	repo := NewOrderRepository()
	ctx := context.Background()

	if err := repo.Create(ctx, testOrder("order-1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	status := domain.OrderStatusPaid
	paymentID := "pay-42"
	amount := int64(485000)
	patched, err := repo.Patch(ctx, "order-1", domain.OrderPatch{
		Status:             &status,
		PaymentID:          &paymentID,
		PaymentAmountMinor: &amount,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if patched.Status != domain.OrderStatusPaid {
		t.Errorf("expected paid, got %s", patched.Status)
	}
	if patched.PaymentID != "pay-42" || patched.PaymentAmountMinor != 485000 {
		t.Errorf("payment fields not merged: %+v", patched)
	}
	if patched.Version != 1 {
		t.Errorf("expected version 1, got %d", patched.Version)
	}
	// Не названные в patch поля не тронуты.
	if patched.TotalMinor != 485000 || len(patched.Items) != 1 {
		t.Error("patch must not clobber unrelated fields")
	}
}

func TestOrderRepository_PatchGuardsTransitions(t *testing.T) {
	repo := NewOrderRepository()
	ctx := context.Background()

	if err := repo.Create(ctx, testOrder("order-1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	paid := domain.OrderStatusPaid
	if _, err := repo.Patch(ctx, "order-1", domain.OrderPatch{Status: &paid}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// paid -> pending запрещён.
	pending := domain.OrderStatusPending
	if _, err := repo.Patch(ctx, "order-1", domain.OrderPatch{Status: &pending}); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}

	// Повтор текущего статуса — no-op, не ошибка.
	if _, err := repo.Patch(ctx, "order-1", domain.OrderPatch{Status: &paid}); err != nil {
		t.Errorf("same-status patch should be a no-op, got %v", err)
	}
}

func TestOrderRepository_PatchMissingOrder(t *testing.T) {
	repo := NewOrderRepository()

	status := domain.OrderStatusPaid
	if _, err := repo.Patch(context.Background(), "missing", domain.OrderPatch{Status: &status}); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Errorf("expected ErrOrderNotFound, got %v", err)
	}
}
