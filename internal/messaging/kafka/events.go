package kafka

import "time"

// EventType определяет тип события пайплайна расчётов.
type EventType string

const (
	// События чекаута
	EventTypeCheckoutStarted  EventType = "checkout.started"
	EventTypeStockReserved    EventType = "checkout.stock_reserved"
	EventTypeOrderCreated     EventType = "checkout.order_created"
	EventTypePaymentInitiated EventType = "checkout.payment_initiated"
	EventTypeCheckoutFailed   EventType = "checkout.failed"

	// События расчёта по вебхуку
	EventTypePaymentSettled EventType = "settlement.settled"
	EventTypeStockReleased  EventType = "settlement.stock_released"
)

// Topics для Kafka
const (
	TopicSettlementEvents = "storefront.settlement.events"
)

// SettlementEvent представляет событие пайплайна по конкретному заказу.
type SettlementEvent struct {
	EventType EventType              `json:"event_type"`
	OrderID   string                 `json:"order_id"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewSettlementEvent создает новое событие пайплайна.
func NewSettlementEvent(eventType EventType, orderID string, metadata map[string]interface{}) *SettlementEvent {
	return &SettlementEvent{
		EventType: eventType,
		OrderID:   orderID,
		Timestamp: time.Now(),
		Metadata:  metadata,
	}
}
