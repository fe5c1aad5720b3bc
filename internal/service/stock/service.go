package stock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

const (
	defaultMaxAttempts = 5
	defaultRetryDelay  = 10 * time.Millisecond
)

// Service резервирует остатки под чекаут: проверяет доступность по точному
// кортежу товар/цвет/[размер] и применяет все списания одного чекаута как
// единый compare-and-swap коммит. Точка сериализации конкурентных чекаутов.
type Service struct {
	inventory   domain.InventoryStore
	ledger      domain.ReservationLedger
	logger      *log.Entry
	metrics     *metrics.SettlementMetrics
	maxAttempts int
	retryDelay  time.Duration
}

// NewService создаёт сервис резервирования.
func NewService(inventory domain.InventoryStore, ledger domain.ReservationLedger, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "stock")
	}
	return &Service{
		inventory:   inventory,
		ledger:      ledger,
		logger:      logger,
		maxAttempts: defaultMaxAttempts,
		retryDelay:  defaultRetryDelay,
	}
}

// AttachMetrics подключает счётчики пайплайна; без вызова метрики не пишутся.
func (s *Service) AttachMetrics(m *metrics.SettlementMetrics) {
	s.metrics = m
}

// Reserve списывает остатки под заказ. Идемпотентен по orderID: повторный
// вызов для того же заказа возвращает уже записанный резерв без списания.
// Все строки применяются целиком или не применяются вовсе; конфликт версий
// перечитывается и повторяется ограниченное число раз.
func (s *Service) Reserve(ctx context.Context, orderID string, lines []domain.CartLine) (domain.Reservation, error) {
	if orderID == "" {
		return domain.Reservation{}, domain.ErrOrderIDRequired
	}
	if errs := domain.ValidateCart(lines); len(errs) > 0 {
		return domain.Reservation{}, errs[0]
	}

	existing, err := s.ledger.Get(ctx, orderID)
	if err == nil {
		s.logger.WithField("order_id", orderID).Debug("reservation already recorded, skipping decrement")
		return existing, nil
	}
	if !errors.Is(err, domain.ErrReservationNotFound) {
		return domain.Reservation{}, err
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		products, err := s.loadProducts(ctx, lines)
		if err != nil {
			return domain.Reservation{}, err
		}
		if err := applyDecrements(products, lines); err != nil {
			return domain.Reservation{}, err
		}

		commit := make([]domain.Product, 0, len(products))
		for _, product := range products {
			commit = append(commit, *product)
		}

		if err := s.inventory.CommitProducts(ctx, commit); err != nil {
			if domain.IsVersionConflict(err) {
				if s.metrics != nil {
					s.metrics.RecordReserveConflict()
				}
				if attempt < s.maxAttempts {
					s.logger.WithFields(log.Fields{
						"order_id": orderID,
						"attempt":  attempt,
					}).Warn("inventory version conflict, retrying")
					if err := sleepCtx(ctx, s.retryDelay*time.Duration(attempt)); err != nil {
						return domain.Reservation{}, err
					}
					continue
				}
			}
			return domain.Reservation{}, err
		}

		now := time.Now().UTC()
		res := domain.Reservation{
			ID:        uuid.NewString(),
			OrderID:   orderID,
			Lines:     reservationLines(lines),
			Status:    domain.ReservationStatusHeld,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.ledger.Record(ctx, res); err != nil {
			if errors.Is(err, domain.ErrReservationExists) {
				// Конкурентный Reserve того же заказа успел первым: наш
				// коммит лишний, возвращаем остатки и отдаём его резерв.
				s.restore(context.WithoutCancel(ctx), res.Lines, orderID)
				return s.ledger.Get(ctx, orderID)
			}
			// Остатки уже списаны, а резерв не записан — компенсируем сразу,
			// иначе инвентарь потерян навсегда.
			s.restore(context.WithoutCancel(ctx), res.Lines, orderID)
			return domain.Reservation{}, err
		}
		return res, nil
	}

	return domain.Reservation{}, fmt.Errorf("reserve order %s: %w", orderID, domain.ErrVersionConflict)
}

// Bind привязывает резерв к долговечно созданному заказу: TTL-жнец такие
// резервы больше не трогает.
func (s *Service) Bind(ctx context.Context, orderID string) error {
	return s.ledger.SetStatus(ctx, orderID, domain.ReservationStatusHeld, domain.ReservationStatusBound)
}

// Release возвращает списанный резерв на склад. Идемпотентен: повторный
// вызов для уже освобождённого резерва — no-op.
func (s *Service) Release(ctx context.Context, orderID string) error {
	res, err := s.ledger.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if res.Status == domain.ReservationStatusReleased {
		return nil
	}

	// Сначала заявляем освобождение условным переходом статуса: из двух
	// конкурирующих освобождений остатки вернёт ровно одно.
	if err := s.ledger.SetStatus(ctx, orderID, res.Status, domain.ReservationStatusReleased); err != nil {
		if domain.IsVersionConflict(err) {
			fresh, getErr := s.ledger.Get(ctx, orderID)
			if getErr == nil && fresh.Status == domain.ReservationStatusReleased {
				return nil
			}
			return err
		}
		return err
	}

	s.restore(ctx, res.Lines, orderID)
	return nil
}

// restore добавляет количества строк резерва обратно в инвентарь.
func (s *Service) restore(ctx context.Context, lines []domain.ReservationLine, orderID string) {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		products := make(map[string]*domain.Product)
		for _, line := range lines {
			product, ok := products[line.ProductID]
			if !ok {
				loaded, err := s.inventory.GetProduct(ctx, line.ProductID)
				if err != nil {
					// Товар удалён — возвращать некуда, пропускаем строку.
					s.logger.WithError(err).WithFields(log.Fields{
						"order_id":   orderID,
						"product_id": line.ProductID,
					}).Warn("restore skipped, product gone")
					continue
				}
				product = &loaded
				products[line.ProductID] = product
			}

			color, ok := product.Color(line.ColorKey)
			if !ok {
				s.logger.WithFields(log.Fields{
					"order_id":  orderID,
					"color_key": line.ColorKey,
				}).Warn("restore skipped, color variant gone")
				continue
			}
			if line.Size != "" {
				if size, ok := color.Size(line.Size); ok {
					size.Qty += line.Qty
				} else {
					s.logger.WithFields(log.Fields{
						"order_id": orderID,
						"size":     line.Size,
					}).Warn("restore skipped, size variant gone")
					continue
				}
			}
			color.Qty += line.Qty
			product.AvailableQty += line.Qty
		}

		if len(products) == 0 {
			return
		}
		commit := make([]domain.Product, 0, len(products))
		for _, product := range products {
			commit = append(commit, *product)
		}
		if err := s.inventory.CommitProducts(ctx, commit); err != nil {
			if domain.IsVersionConflict(err) && attempt < s.maxAttempts {
				if sleepErr := sleepCtx(ctx, s.retryDelay*time.Duration(attempt)); sleepErr != nil {
					s.logger.WithError(sleepErr).WithField("order_id", orderID).Error("restore aborted")
					return
				}
				continue
			}
			s.logger.WithError(err).WithField("order_id", orderID).Error("failed to restore reserved stock")
			return
		}
		return
	}
	s.logger.WithField("order_id", orderID).Error("restore exhausted retries")
}

// loadProducts читает каждый затронутый товар ровно один раз.
func (s *Service) loadProducts(ctx context.Context, lines []domain.CartLine) (map[string]*domain.Product, error) {
	products := make(map[string]*domain.Product)
	for _, line := range lines {
		if _, ok := products[line.ProductID]; ok {
			continue
		}
		product, err := s.inventory.GetProduct(ctx, line.ProductID)
		if err != nil {
			return nil, fmt.Errorf("load product %s: %w", line.ProductID, err)
		}
		products[line.ProductID] = &product
	}
	return products, nil
}

// applyDecrements проверяет и применяет списания к копиям документов.
// Проверка — основной заслон от over-ordering; кламп на нуле ниже — только
// защитный дублёр и на успешном пути недостижим.
func applyDecrements(products map[string]*domain.Product, lines []domain.CartLine) error {
	for _, line := range lines {
		product := products[line.ProductID]

		color, ok := product.Color(line.ColorKey)
		if !ok {
			return fmt.Errorf("product %s color %s: %w", line.ProductID, line.ColorKey, domain.ErrColorNotFound)
		}

		var size *domain.SizeVariant
		if line.Size != "" {
			size, ok = color.Size(line.Size)
			if !ok {
				return fmt.Errorf("product %s color %s size %s: %w", line.ProductID, line.ColorKey, line.Size, domain.ErrSizeNotFound)
			}
			// Оба уровня должны пройти независимо; нехватка на уровне размера
			// репортится даже при достаточном агрегате цвета.
			if size.Qty < line.Qty {
				return fmt.Errorf("product %s color %s size %s has %d of %d: %w",
					line.ProductID, line.ColorKey, line.Size, size.Qty, line.Qty, domain.ErrInsufficientStock)
			}
		}
		if color.Qty < line.Qty {
			return fmt.Errorf("product %s color %s has %d of %d: %w",
				line.ProductID, line.ColorKey, color.Qty, line.Qty, domain.ErrInsufficientStock)
		}

		if size != nil {
			size.Qty = clampZero(size.Qty - line.Qty)
		}
		color.Qty = clampZero(color.Qty - line.Qty)
		product.AvailableQty = clampZero(product.AvailableQty - line.Qty)
	}
	return nil
}

func clampZero(v int32) int32 {
	if v < 0 {
		return 0
	}
	return v
}

func reservationLines(lines []domain.CartLine) []domain.ReservationLine {
	out := make([]domain.ReservationLine, len(lines))
	for i, line := range lines {
		out[i] = domain.ReservationLine{
			ProductID: line.ProductID,
			ColorKey:  line.ColorKey,
			Size:      line.Size,
			Qty:       line.Qty,
		}
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
