package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func sampleOrder(id string, createdAt time.Time) domain.Order {
	return domain.Order{
		ID:            id,
		Status:        domain.OrderStatusPending,
		PaymentMethod: domain.PaymentMethodGateway,
		SubtotalMinor: 900000,
		ShippingMinor: 35000,
		TotalMinor:    935000,
		Items: []domain.OrderItem{
			{ProductID: "tee-classic", Title: "Classic Tee", ColorKey: "black", Size: "M", Qty: 2, UnitPriceMinor: 450000},
		},
		Customer: domain.Customer{
			FirstName: "Nimal",
			Email:     "nimal@example.com",
			City:      "Colombo",
			Country:   "Sri Lanka",
		},
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestOrderRepository_PostgresCreateGetAndPatch(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)
	ctx := context.Background()

	now := time.Now().UTC().Round(time.Microsecond)
	order := sampleOrder("order-1", now)

	if err := repo.Create(ctx, order); err != nil {
		t.Fatalf("create order: %v", err)
	}

	got, err := repo.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if got.ID != order.ID || got.Status != order.Status || got.TotalMinor != order.TotalMinor {
		t.Fatalf("unexpected order payload: %+v", got)
	}
	if len(got.Items) != 1 || got.Items[0].ProductID != "tee-classic" {
		t.Fatalf("unexpected items: %+v", got.Items)
	}
	if got.Customer.Email != "nimal@example.com" {
		t.Fatalf("unexpected customer: %+v", got.Customer)
	}

	processing := domain.OrderStatusProcessing
	patched, err := repo.Patch(ctx, order.ID, domain.OrderPatch{Status: &processing})
	if err != nil {
		t.Fatalf("patch to processing: %v", err)
	}
	if patched.Status != domain.OrderStatusProcessing {
		t.Fatalf("unexpected status after patch: %s", patched.Status)
	}
	if patched.Version != got.Version+1 {
		t.Fatalf("unexpected version after patch: got=%d want=%d", patched.Version, got.Version+1)
	}

	paid := domain.OrderStatusPaid
	paymentID := "pay-42"
	amount := int64(935000)
	patched, err = repo.Patch(ctx, order.ID, domain.OrderPatch{
		Status:             &paid,
		PaymentID:          &paymentID,
		PaymentAmountMinor: &amount,
	})
	if err != nil {
		t.Fatalf("patch to paid: %v", err)
	}
	if patched.PaymentID != "pay-42" || patched.PaymentAmountMinor != 935000 {
		t.Fatalf("payment fields not merged: %+v", patched)
	}

	// Позиции и контакт переживают частичные обновления
	if len(patched.Items) != 1 || patched.Customer.Email == "" {
		t.Fatalf("patch must not drop unrelated fields: %+v", patched)
	}
}

func TestOrderRepository_PostgresErrors(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)
	ctx := context.Background()

	now := time.Now().UTC().Round(time.Microsecond)
	base := sampleOrder("order-errors", now)

	if _, err := repo.Get(ctx, "missing-order"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}

	if err := repo.Create(ctx, base); err != nil {
		t.Fatalf("create base order: %v", err)
	}
	if err := repo.Create(ctx, base); !errors.Is(err, domain.ErrOrderExists) {
		t.Fatalf("expected ErrOrderExists on duplicate create, got %v", err)
	}

	// Переход мимо таблицы статусов отклоняется
	delivered := domain.OrderStatusDelivered
	if _, err := repo.Patch(ctx, base.ID, domain.OrderPatch{Status: &delivered}); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for pending->delivered, got %v", err)
	}

	// Переход в тот же статус — no-op, но не ошибка
	pending := domain.OrderStatusPending
	if _, err := repo.Patch(ctx, base.ID, domain.OrderPatch{Status: &pending}); err != nil {
		t.Fatalf("same-status patch must succeed: %v", err)
	}
}
