package domain

import (
	"errors"
	"time"
)

var (
	// Ошибка расхождения агрегата товара с суммой остатков по цветам.
	ErrProductAggregateMismatch = errors.New("product available_qty does not match sum of color quantities")
	// Ошибка расхождения остатка цвета с суммой остатков по размерам.
	ErrColorAggregateMismatch = errors.New("color qty does not match sum of size quantities")
)

// SizeVariant — остаток по конкретному размеру внутри цветового варианта.
type SizeVariant struct {
	// Label — ярлык размера ("S", "M", "XL").
	Label string
	// Qty — доступное количество для этого размера.
	Qty int32
}

// ColorVariant — покупаемое подразделение товара по цвету.
type ColorVariant struct {
	// Key — стабильный ключ варианта, используется в строках корзины.
	Key string
	// Name — человекочитаемое имя цвета.
	Name string
	// Color — значение цвета для витрины (hex/имя), на корректность не влияет.
	Color string
	// Qty — суммарный остаток по цвету.
	Qty int32
	// Sizes — разбивка остатка по размерам; может быть пустой для безразмерных товаров.
	Sizes []SizeVariant
}

// Product агрегирует складскую запись товара со всеми вариантами.
type Product struct {
	ID string
	// Title замораживается в позициях заказа на момент создания.
	Title string
	// PriceMinor — базовая цена за единицу в минимальных денежных единицах.
	PriceMinor int64
	// DiscountPct — скидка в процентах (0..100).
	DiscountPct int32
	// AvailableQty — денормализованный суммарный остаток по всем цветам.
	AvailableQty int32
	Colors       []ColorVariant
	// Version используется хранилищем для compare-and-swap записи.
	Version   int64
	UpdatedAt time.Time
}

// Color возвращает цветовой вариант по ключу.
func (p *Product) Color(key string) (*ColorVariant, bool) {
	for i := range p.Colors {
		if p.Colors[i].Key == key {
			return &p.Colors[i], true
		}
	}
	return nil, false
}

// Size возвращает размер по ярлыку.
func (c *ColorVariant) Size(label string) (*SizeVariant, bool) {
	for i := range c.Sizes {
		if c.Sizes[i].Label == label {
			return &c.Sizes[i], true
		}
	}
	return nil, false
}

// EffectivePriceMinor возвращает цену за единицу с учётом скидки.
// Источник истины для цены позиции заказа: клиентская цена из корзины не используется.
func (p *Product) EffectivePriceMinor() int64 {
	if p.DiscountPct <= 0 {
		return p.PriceMinor
	}
	return p.PriceMinor * int64(100-p.DiscountPct) / 100
}

// ValidateInvariants проверяет согласованность агрегатов остатков.
// Хранилище обязано коммитить только состояния, проходящие эту проверку.
func (p *Product) ValidateInvariants() []error {
	var errs []error

	var colorSum int32
	for i := range p.Colors {
		color := &p.Colors[i]
		colorSum += color.Qty

		if len(color.Sizes) == 0 {
			continue
		}
		var sizeSum int32
		for _, size := range color.Sizes {
			sizeSum += size.Qty
		}
		if sizeSum != color.Qty {
			errs = append(errs, ErrColorAggregateMismatch)
		}
	}
	if colorSum != p.AvailableQty {
		errs = append(errs, ErrProductAggregateMismatch)
	}

	return errs
}

// Clone возвращает глубокую копию товара: вариантные срезы не разделяются с оригиналом.
func (p Product) Clone() Product {
	out := p
	out.Colors = make([]ColorVariant, len(p.Colors))
	for i, color := range p.Colors {
		out.Colors[i] = color
		out.Colors[i].Sizes = append([]SizeVariant(nil), color.Sizes...)
	}
	return out
}
