package domain

import "time"

// PaymentOutcome — доменный исход платежа, в который отображаются числовые
// коды статуса шлюза.
type PaymentOutcome string

const (
	// PaymentOutcomePaid — оплата подтверждена.
	PaymentOutcomePaid PaymentOutcome = "paid"
	// PaymentOutcomePending — шлюз ещё обрабатывает платёж; статус заказа не меняется.
	PaymentOutcomePending PaymentOutcome = "pending"
	// PaymentOutcomeCancelled — покупатель отменил оплату на стороне шлюза.
	PaymentOutcomeCancelled PaymentOutcome = "cancelled"
	// PaymentOutcomeFailed — шлюз отклонил платёж.
	PaymentOutcomeFailed PaymentOutcome = "failed"
	// PaymentOutcomeChargedBack — по платежу инициирован chargeback.
	PaymentOutcomeChargedBack PaymentOutcome = "charged_back"
)

// OrderStatus возвращает статус заказа для исхода платежа.
// Для PaymentOutcomePending второй результат false: статус трогать не нужно.
func (o PaymentOutcome) OrderStatus() (OrderStatus, bool) {
	switch o {
	case PaymentOutcomePaid:
		return OrderStatusPaid, true
	case PaymentOutcomeCancelled:
		return OrderStatusCancelled, true
	case PaymentOutcomeFailed:
		return OrderStatusPaymentFailed, true
	case PaymentOutcomeChargedBack:
		return OrderStatusChargedBack, true
	default:
		return "", false
	}
}

// ReleasesStock сообщает, должен ли исход вернуть зарезервированный остаток на склад.
func (o PaymentOutcome) ReleasesStock() bool {
	switch o {
	case PaymentOutcomeCancelled, PaymentOutcomeFailed, PaymentOutcomeChargedBack:
		return true
	default:
		return false
	}
}

// NotificationRecord — ключ идемпотентности вебхука: одно и то же уведомление
// шлюз может доставить несколько раз, применяется оно ровно один раз.
type NotificationRecord struct {
	OrderID    string
	PaymentID  string
	StatusCode string
	ReceivedAt time.Time
}
