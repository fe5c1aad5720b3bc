package domain

import "time"

// ReservationStatus отражает жизненный цикл складского резерва.
type ReservationStatus string

const (
	// ReservationStatusHeld — остаток списан, но заказ ещё не создан.
	// Такие резервы подлежат TTL-освобождению, если заказ так и не появился.
	ReservationStatusHeld ReservationStatus = "held"
	// ReservationStatusBound — резерв привязан к долговечно созданному заказу.
	ReservationStatusBound ReservationStatus = "bound"
	// ReservationStatusReleased — остаток возвращён на склад (компенсация или мёртвый заказ).
	ReservationStatusReleased ReservationStatus = "released"
)

// ReservationLine — атомарная дельта по конкретному варианту товара.
type ReservationLine struct {
	ProductID string
	ColorKey  string
	// Size пустой для безразмерных товаров.
	Size string
	Qty  int32
}

// Reservation — применённое списание остатков одного чекаута.
// Идемпотентна по OrderID: повтор Reserve того же заказа не списывает повторно.
type Reservation struct {
	ID        string
	OrderID   string
	Lines     []ReservationLine
	Status    ReservationStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate проверяет, корректно ли заполнены ключевые поля резерва.
func (r *Reservation) Validate() []error {
	var errs []error

	if r.OrderID == "" {
		errs = append(errs, ErrOrderIDRequired)
	}
	if len(r.Lines) == 0 {
		errs = append(errs, ErrCartEmpty)
	}
	for _, line := range r.Lines {
		if line.ProductID == "" {
			errs = append(errs, ErrLineProductRequired)
		}
		if line.Qty <= 0 {
			errs = append(errs, ErrLineQtyInvalid)
		}
	}

	return errs
}
