package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type notificationLedger struct {
	db *sql.DB
}

// NewNotificationLedger создаёт PostgreSQL-реализацию NotificationLedger.
// Первичный ключ (order_id, payment_id, status_code) делает повторную
// фиксацию уведомления невозможной на уровне схемы.
func NewNotificationLedger(store *Store) domain.NotificationLedger {
	return &notificationLedger{db: store.DB()}
}

func (l *notificationLedger) Seen(ctx context.Context, rec domain.NotificationRecord) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var seen bool
	err := l.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM payment_notifications
			WHERE order_id = $1 AND payment_id = $2 AND status_code = $3
		)
	`, rec.OrderID, rec.PaymentID, rec.StatusCode).Scan(&seen)
	if err != nil {
		return false, fmt.Errorf("check notification: %w", err)
	}
	return seen, nil
}

func (l *notificationLedger) Record(ctx context.Context, rec domain.NotificationRecord) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO payment_notifications (order_id, payment_id, status_code, received_at)
		VALUES ($1, $2, $3, $4)
	`, rec.OrderID, rec.PaymentID, rec.StatusCode, rec.ReceivedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateNotification
		}
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

var _ domain.NotificationLedger = (*notificationLedger)(nil)
