package domain

// CartLine — строка корзины, сформированная на клиенте.
// UnitPriceMinor зафиксирован в момент добавления в корзину и может отличаться
// от живой цены; при создании заказа он игнорируется в пользу цены из инвентаря.
type CartLine struct {
	ProductID string
	ColorKey  string
	// Size пустой для безразмерных товаров.
	Size string
	Qty  int32
	// UnitPriceMinor — цена, которую заявил клиент; только для отображения.
	UnitPriceMinor int64
}

// Validate проверяет строку корзины до каких-либо побочных эффектов.
func (l *CartLine) Validate() []error {
	var errs []error

	if l.ProductID == "" {
		errs = append(errs, ErrLineProductRequired)
	}
	if l.ColorKey == "" {
		errs = append(errs, ErrLineColorRequired)
	}
	if l.Qty <= 0 {
		errs = append(errs, ErrLineQtyInvalid)
	}

	return errs
}

// ValidateCart проверяет корзину целиком: непустая и каждая строка корректна.
func ValidateCart(lines []CartLine) []error {
	if len(lines) == 0 {
		return []error{ErrCartEmpty}
	}

	var errs []error
	for i := range lines {
		errs = append(errs, lines[i].Validate()...)
	}
	return errs
}
