package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// notificationLedgerInMemory хранит ключи применённых уведомлений шлюза.
type notificationLedgerInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.NotificationRecord
}

// NewNotificationLedger возвращает in-memory леджер уведомлений для дедупликации вебхука.
func NewNotificationLedger() domain.NotificationLedger {
	return &notificationLedgerInMemory{
		items: make(map[string]domain.NotificationRecord),
	}
}

func notificationKey(rec domain.NotificationRecord) string {
	return fmt.Sprintf("%s|%s|%s", rec.OrderID, rec.PaymentID, rec.StatusCode)
}

// Seen сообщает, было ли уведомление уже применено.
func (l *notificationLedgerInMemory) Seen(ctx context.Context, rec domain.NotificationRecord) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	_, ok := l.items[notificationKey(rec)]
	return ok, nil
}

// Record фиксирует применённое уведомление; ErrDuplicateNotification при повторе.
func (l *notificationLedgerInMemory) Record(ctx context.Context, rec domain.NotificationRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.OrderID == "" {
		return domain.ErrOrderIDRequired
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := notificationKey(rec)
	if _, exists := l.items[key]; exists {
		return domain.ErrDuplicateNotification
	}
	l.items[key] = rec
	return nil
}

var _ domain.NotificationLedger = (*notificationLedgerInMemory)(nil)
