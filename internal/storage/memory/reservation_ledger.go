package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// reservationLedgerInMemory хранит резервы по order_id.
type reservationLedgerInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Reservation
}

// NewReservationLedger возвращает in-memory леджер резервов.
func NewReservationLedger() domain.ReservationLedger {
	return &reservationLedgerInMemory{
		items: make(map[string]domain.Reservation),
	}
}

// Record сохраняет резерв; повтор по тому же заказу возвращает ErrReservationExists.
func (l *reservationLedgerInMemory) Record(ctx context.Context, res domain.Reservation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if errs := res.Validate(); len(errs) > 0 {
		return errs[0]
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.items[res.OrderID]; exists {
		return domain.ErrReservationExists
	}
	l.items[res.OrderID] = cloneReservation(res)
	return nil
}

// Get возвращает резерв по заказу или ErrReservationNotFound.
func (l *reservationLedgerInMemory) Get(ctx context.Context, orderID string) (domain.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return domain.Reservation{}, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	res, ok := l.items[orderID]
	if !ok {
		return domain.Reservation{}, domain.ErrReservationNotFound
	}
	return cloneReservation(res), nil
}

// SetStatus переводит резерв из from в to; несовпадение текущего статуса — конфликт.
func (l *reservationLedgerInMemory) SetStatus(ctx context.Context, orderID string, from, to domain.ReservationStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	res, ok := l.items[orderID]
	if !ok {
		return domain.ErrReservationNotFound
	}
	if res.Status != from {
		return domain.ErrVersionConflict
	}
	res.Status = to
	res.UpdatedAt = time.Now().UTC()
	l.items[orderID] = res
	return nil
}

// ListHeldBefore возвращает не привязанные к заказу резервы старше cutoff.
func (l *reservationLedgerInMemory) ListHeldBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]domain.Reservation, 0)
	for _, res := range l.items {
		if res.Status != domain.ReservationStatusHeld {
			continue
		}
		if !res.CreatedAt.Before(cutoff) {
			continue
		}
		result = append(result, cloneReservation(res))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

func cloneReservation(res domain.Reservation) domain.Reservation {
	out := res
	out.Lines = append([]domain.ReservationLine(nil), res.Lines...)
	return out
}

var _ domain.ReservationLedger = (*reservationLedgerInMemory)(nil)
