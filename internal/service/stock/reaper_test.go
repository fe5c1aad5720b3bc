package stock

import (
	"context"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestReaper_RunOnceReleasesStale(t *testing.T) {
	svc, inventory, ledger := newTestService(t)
	ctx := context.Background()

	// Брошенный чекаут: резерв есть, заказа нет.
	if _, err := svc.Reserve(ctx, "order-stale", []domain.CartLine{
		{ProductID: "tee-classic", ColorKey: "black", Size: "M", Qty: 2},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Живой чекаут: резерв привязан к заказу.
	if _, err := svc.Reserve(ctx, "order-live", []domain.CartLine{
		{ProductID: "tee-classic", ColorKey: "black", Size: "L", Qty: 1},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.Bind(ctx, "order-live"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// TTL=0: всё, что создано раньше текущего момента, считается просроченным.
	reaper := NewReaper(svc, ledger, WithTTL(-time.Second), WithBatchSize(10))
	reaper.RunOnce(ctx)

	stale, _ := ledger.Get(ctx, "order-stale")
	if stale.Status != domain.ReservationStatusReleased {
		t.Errorf("expected stale reservation released, got %s", stale.Status)
	}
	live, _ := ledger.Get(ctx, "order-live")
	if live.Status != domain.ReservationStatusBound {
		t.Errorf("bound reservation must not be reaped, got %s", live.Status)
	}

	product, _ := inventory.GetProduct(ctx, "tee-classic")
	// Вернулись 2 единицы брошенного резерва, 1 живого осталась списанной.
	if product.AvailableQty != 6 {
		t.Errorf("expected qty 6 after reap, got %d", product.AvailableQty)
	}
}

func TestReaper_RunOnceLeavesFreshHeld(t *testing.T) {
	svc, _, ledger := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Reserve(ctx, "order-fresh", []domain.CartLine{
		{ProductID: "tee-classic", ColorKey: "white", Qty: 1},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reaper := NewReaper(svc, ledger, WithTTL(time.Hour))
	reaper.RunOnce(ctx)

	res, _ := ledger.Get(ctx, "order-fresh")
	if res.Status != domain.ReservationStatusHeld {
		t.Errorf("fresh held reservation must survive, got %s", res.Status)
	}
}

func TestReaper_RunStopsOnContextCancel(t *testing.T) {
	svc, _, ledger := newTestService(t)

	reaper := NewReaper(svc, ledger, WithInterval(10*time.Millisecond), WithTTL(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reaper.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop after context cancel")
	}
}
