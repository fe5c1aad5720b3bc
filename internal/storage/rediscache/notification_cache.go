package rediscache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	// keyNotification — ключ применённого уведомления шлюза.
	keyNotification = "storefront:notify:%s:%s:%s"

	defaultTTL = 24 * time.Hour
)

// New создаёт Redis-клиент с разумным таймаутом команд.
func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// NotificationCache — быстрый кэш дублей вебхука перед долговечным леджером.
// Кэш не является источником истины: промах просто ведёт к проверке в леджере.
type NotificationCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewNotificationCache создаёт кэш на готовом клиенте.
func NewNotificationCache(rdb *redis.Client) *NotificationCache {
	return &NotificationCache{rdb: rdb, ttl: defaultTTL}
}

func notificationKey(rec domain.NotificationRecord) string {
	return fmt.Sprintf(keyNotification, rec.OrderID, rec.PaymentID, rec.StatusCode)
}

// Seen сообщает, встречалось ли уведомление. Ошибки Redis трактуются как
// промах: дедупликацию добьёт долговечный леджер.
func (c *NotificationCache) Seen(ctx context.Context, rec domain.NotificationRecord) bool {
	n, err := c.rdb.Exists(ctx, notificationKey(rec)).Result()
	if err != nil {
		return false
	}
	return n > 0
}

// Mark помечает уведомление применённым с TTL.
func (c *NotificationCache) Mark(ctx context.Context, rec domain.NotificationRecord) {
	_ = c.rdb.Set(ctx, notificationKey(rec), "1", c.ttl).Err()
}
