package domain

import "time"

// OrderStatus описывает жизненный цикл заказа в пайплайне расчётов.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан, исход оплаты ещё не известен.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusProcessing — заказ передан платёжному шлюзу, ждём уведомление.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusPaid — шлюз подтвердил оплату.
	OrderStatusPaid OrderStatus = "paid"
	// OrderStatusPaymentFailed — шлюз отклонил оплату; остаток возвращается на склад.
	OrderStatusPaymentFailed OrderStatus = "payment_failed"
	// OrderStatusCancelled — заказ отменён; терминальный статус.
	OrderStatusCancelled OrderStatus = "cancelled"
	// OrderStatusChargedBack — по оплате инициирован chargeback.
	OrderStatusChargedBack OrderStatus = "charged_back"
	// OrderStatusDelivered — заказ исполнен; терминальный статус.
	OrderStatusDelivered OrderStatus = "delivered"
)

// allowedTransitions — закрытая таблица переходов статусов.
// Всё, чего здесь нет, отклоняется с ErrInvalidTransition: вебхук не может
// перезаписать оплаченный заказ обратно в pending.
var allowedTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:       {OrderStatusProcessing, OrderStatusPaid, OrderStatusPaymentFailed, OrderStatusCancelled, OrderStatusChargedBack},
	OrderStatusProcessing:    {OrderStatusPaid, OrderStatusPaymentFailed, OrderStatusCancelled, OrderStatusChargedBack},
	OrderStatusPaid:          {OrderStatusDelivered, OrderStatusChargedBack},
	OrderStatusPaymentFailed: {OrderStatusCancelled},
}

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusPaid,
		OrderStatusPaymentFailed, OrderStatusCancelled, OrderStatusChargedBack,
		OrderStatusDelivered:
		return true
	default:
		return false
	}
}

// Terminal сообщает, является ли статус конечным (дальнейшие переходы запрещены).
func (s OrderStatus) Terminal() bool {
	return len(allowedTransitions[s]) == 0 && s.Valid()
}

// CanTransitionTo проверяет переход по таблице. Переход в текущий статус
// разрешён как no-op: повторная доставка вебхука не должна падать.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s == next {
		return true
	}
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PaymentMethod — способ оплаты, выбранный на чекауте.
type PaymentMethod string

const (
	// PaymentMethodGateway — оплата картой через внешний платёжный шлюз.
	PaymentMethodGateway PaymentMethod = "gateway"
	// PaymentMethodCOD — оплата при доставке; автоматизация заканчивается созданием заказа.
	PaymentMethodCOD PaymentMethod = "cod"
	// PaymentMethodBank — банковский перевод; требует слип и ждёт ручной сверки.
	PaymentMethodBank PaymentMethod = "bank"
)

// Valid проверяет, что способ оплаты поддерживается.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodGateway, PaymentMethodCOD, PaymentMethodBank:
		return true
	default:
		return false
	}
}

// OrderItem — позиция заказа: снимок строки корзины с замороженными
// названием и авторитетной ценой на момент создания заказа.
type OrderItem struct {
	ProductID      string
	Title          string
	ColorKey       string
	Size           string
	Qty            int32
	UnitPriceMinor int64
}

// Customer — контактный блок покупателя, сохраняемый вместе с заказом.
type Customer struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Address   string
	City      string
	Country   string
}

// Order агрегирует состояние заказа. Запись никогда не удаляется;
// терминальные статусы неизменяемы.
type Order struct {
	ID            string
	Status        OrderStatus
	PaymentMethod PaymentMethod
	SubtotalMinor int64
	ShippingMinor int64
	TotalMinor    int64
	Items         []OrderItem
	Customer      Customer
	// SlipReference и SlipNumber заполняются только для банковского перевода.
	SlipReference string
	SlipNumber    string
	// PaymentID — ссылка шлюза, появляется из верифицированного уведомления.
	PaymentID string
	// PaymentAmountMinor — сумма, которую шлюз отчитал в уведомлении.
	PaymentAmountMinor int64
	// Version используется репозиторием для optimistic locking.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if o.TotalMinor <= 0 {
		errs = append(errs, ErrTotalInvalid)
	}
	if o.Customer.Email == "" && o.Customer.Phone == "" {
		errs = append(errs, ErrCustomerRequired)
	}
	if o.PaymentMethod == PaymentMethodBank && (o.SlipReference == "" || o.SlipNumber == "") {
		errs = append(errs, ErrSlipRequired)
	}

	// Сверяем сумму заказа с суммой позиций плюс доставка.
	var calc int64
	for _, item := range o.Items {
		if item.Qty <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.UnitPriceMinor < 0 {
			errs = append(errs, ErrItemPriceInvalid)
		}
		calc += int64(item.Qty) * item.UnitPriceMinor
	}
	if calc != o.SubtotalMinor || calc+o.ShippingMinor != o.TotalMinor {
		errs = append(errs, ErrTotalMismatch)
	}

	return errs
}

// OrderPatch — частичное обновление заказа. Незаполненные поля не трогаются:
// patch всегда merge, никогда не перезапись.
type OrderPatch struct {
	Status             *OrderStatus
	PaymentID          *string
	PaymentAmountMinor *int64
	SlipReference      *string
	SlipNumber         *string
}

// Empty сообщает, что patch не содержит изменений.
func (p OrderPatch) Empty() bool {
	return p.Status == nil && p.PaymentID == nil && p.PaymentAmountMinor == nil &&
		p.SlipReference == nil && p.SlipNumber == nil
}
