package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestNotificationLedger_PostgresSeenAndRecord(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	ledger := NewNotificationLedger(store)
	ctx := context.Background()

	rec := domain.NotificationRecord{
		OrderID:    "order-ntf-1",
		PaymentID:  "pay-100",
		StatusCode: "2",
		ReceivedAt: time.Now().UTC(),
	}

	seen, err := ledger.Seen(ctx, rec)
	if err != nil {
		t.Fatalf("seen before record: %v", err)
	}
	if seen {
		t.Fatal("notification must be unseen before record")
	}

	if err := ledger.Record(ctx, rec); err != nil {
		t.Fatalf("record notification: %v", err)
	}

	seen, err = ledger.Seen(ctx, rec)
	if err != nil {
		t.Fatalf("seen after record: %v", err)
	}
	if !seen {
		t.Fatal("notification must be seen after record")
	}

	if err := ledger.Record(ctx, rec); !errors.Is(err, domain.ErrDuplicateNotification) {
		t.Fatalf("expected ErrDuplicateNotification, got %v", err)
	}
}

func TestNotificationLedger_PostgresKeyIncludesStatusCode(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	ledger := NewNotificationLedger(store)
	ctx := context.Background()

	base := domain.NotificationRecord{
		OrderID:    "order-ntf-2",
		PaymentID:  "pay-200",
		StatusCode: "0",
		ReceivedAt: time.Now().UTC(),
	}
	if err := ledger.Record(ctx, base); err != nil {
		t.Fatalf("record pending notification: %v", err)
	}

	// Тот же платёж с другим статусом — отдельное уведомление
	final := base
	final.StatusCode = "2"
	seen, err := ledger.Seen(ctx, final)
	if err != nil {
		t.Fatalf("seen final: %v", err)
	}
	if seen {
		t.Fatal("different status code must not be seen")
	}
	if err := ledger.Record(ctx, final); err != nil {
		t.Fatalf("record final notification: %v", err)
	}
}
