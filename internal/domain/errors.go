package domain

import "errors"

var (
	// Ошибка пустой корзины при оформлении заказа.
	ErrCartEmpty = errors.New("cart must contain at least one line")
	// Ошибка некорректного количества в строке корзины (<= 0).
	ErrLineQtyInvalid = errors.New("cart line qty must be greater than zero")
	// Ошибка отсутствующего идентификатора товара в строке корзины.
	ErrLineProductRequired = errors.New("cart line product_id is required")
	// Ошибка отсутствующего ключа цвета в строке корзины.
	ErrLineColorRequired = errors.New("cart line color_key is required")
	// Ошибка отсутствующих реквизитов банковского перевода: нужны и ссылка на слип, и его номер.
	ErrSlipRequired = errors.New("bank transfer order requires slip reference and slip number")
	// Ошибка неподдерживаемого способа оплаты.
	ErrPaymentMethodInvalid = errors.New("unsupported payment method")
	// Ошибка отсутствия контактных данных покупателя.
	ErrCustomerRequired = errors.New("customer contact is required")
	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка неположительной суммы заказа.
	ErrTotalInvalid = errors.New("order total must be greater than zero")
	// Ошибка несоответствия суммы заказа и сумм позиций плюс доставка.
	ErrTotalMismatch = errors.New("order total does not match items sum plus shipping")
	// Ошибка при некорректном количестве в позиции заказа (<= 0).
	ErrItemQtyInvalid = errors.New("order item qty must be greater than zero")
	// Ошибка отрицательной цены позиции.
	ErrItemPriceInvalid = errors.New("order item price must be non-negative")

	// Ошибка отсутствующего идентификатора заказа в резервах и уведомлениях.
	ErrOrderIDRequired = errors.New("order_id is required")

	// ErrProductNotFound возвращается, если товар отсутствует в инвентаре.
	ErrProductNotFound = errors.New("product not found")
	// ErrColorNotFound возвращается, если цветовой вариант товара исчез (товар отредактирован конкурентно).
	ErrColorNotFound = errors.New("color variant not found")
	// ErrSizeNotFound возвращается, если размер внутри цветового варианта исчез.
	ErrSizeNotFound = errors.New("size variant not found")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrReservationNotFound возвращается, если резерв по заказу отсутствует.
	ErrReservationNotFound = errors.New("stock reservation not found")

	// ErrInsufficientStock — бизнес-ошибка: запрошенное количество превышает остаток.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvalidSignature — подпись уведомления платёжного шлюза не сошлась; событие не применяется.
	ErrInvalidSignature = errors.New("invalid notification signature")
	// ErrInvalidTransition — запрошенный переход статуса заказа не входит в таблицу переходов.
	ErrInvalidTransition = errors.New("invalid order status transition")
	// ErrVersionConflict сигнализирует о конфликте версий при compare-and-swap записи.
	ErrVersionConflict = errors.New("document version conflict")
	// ErrOrderExists возвращается при попытке создать заказ с занятым идентификатором.
	ErrOrderExists = errors.New("order already exists")
	// ErrReservationExists возвращается леджером, если резерв по заказу уже записан.
	ErrReservationExists = errors.New("stock reservation already recorded")
	// ErrDuplicateNotification — уведомление с таким (order, payment, status) уже применено; no-op.
	ErrDuplicateNotification = errors.New("notification already applied")
	// ErrStoreUnavailable — временная ошибка хранилища, допускает повтор.
	ErrStoreUnavailable = errors.New("store temporarily unavailable")
)

// IsValidationError проверяет, относится ли ошибка к нарушениям входных данных (без побочных эффектов).
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrCartEmpty, ErrLineQtyInvalid, ErrLineProductRequired, ErrLineColorRequired,
		ErrSlipRequired, ErrCustomerRequired, ErrItemsRequired, ErrTotalInvalid,
		ErrPaymentMethodInvalid,
		ErrTotalMismatch, ErrItemQtyInvalid, ErrItemPriceInvalid,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsNotFound проверяет, ссылается ли ошибка на исчезнувший товар, вариант или заказ.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrColorNotFound) ||
		errors.Is(err, ErrSizeNotFound) ||
		errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrReservationNotFound)
}

// IsInsufficientStock проверяет, является ли ошибка нехваткой остатка.
func IsInsufficientStock(err error) bool {
	return errors.Is(err, ErrInsufficientStock)
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

// IsTransient проверяет, допускает ли ошибка bounded-retry на границе оркестратора.
func IsTransient(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
