package domain

import (
	"context"
	"time"
)

// InventoryStore — документное хранилище остатков; источник истины о доступности.
// Это единственные операции, которые ядру нужны от склада: чтение по id и
// conditional commit с проверкой версии каждого документа.
type InventoryStore interface {
	// GetProduct возвращает товар или ErrProductNotFound.
	GetProduct(ctx context.Context, id string) (Product, error)
	// CommitProducts атомарно записывает все документы, сверяя Version каждого
	// с текущим. При любом несовпадении ничего не записывается и возвращается
	// ErrVersionConflict; вызывающий перечитывает и повторяет.
	CommitProducts(ctx context.Context, products []Product) error
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет новый заказ. Возвращает ErrOrderExists, если ID занят,
	// и ошибки инвариантов, если заказ пуст или сумма некорректна.
	Create(ctx context.Context, order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound.
	Get(ctx context.Context, id string) (Order, error)
	// Patch применяет частичный merge: незаполненные поля patch не трогаются.
	// Смена статуса проходит через таблицу переходов; запрещённый переход
	// отклоняется с ErrInvalidTransition без записи.
	Patch(ctx context.Context, id string, patch OrderPatch) (Order, error)
}

// ReservationLedger хранит резервы по заказам ради идемпотентности и TTL-освобождения.
type ReservationLedger interface {
	// Record сохраняет новый резерв; ErrReservationExists, если по заказу уже есть запись.
	Record(ctx context.Context, res Reservation) error
	// Get возвращает резерв по заказу или ErrReservationNotFound.
	Get(ctx context.Context, orderID string) (Reservation, error)
	// SetStatus переводит резерв из статуса from в статус to. Если текущий
	// статус не равен from, возвращается ErrVersionConflict и ничего не
	// меняется: конкурирующие освобождения сериализуются здесь.
	SetStatus(ctx context.Context, orderID string, from, to ReservationStatus) error
	// ListHeldBefore возвращает резервы в статусе held, созданные до cutoff.
	// Используется reaper-воркером брошенных чекаутов.
	ListHeldBefore(ctx context.Context, cutoff time.Time, limit int) ([]Reservation, error)
}

// NotificationLedger хранит применённые уведомления шлюза для дедупликации вебхука.
type NotificationLedger interface {
	// Seen сообщает, было ли уведомление с таким ключом уже применено.
	Seen(ctx context.Context, rec NotificationRecord) (bool, error)
	// Record фиксирует применённое уведомление; ErrDuplicateNotification при повторе.
	Record(ctx context.Context, rec NotificationRecord) error
}
