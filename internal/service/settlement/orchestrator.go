package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/payhere"
	"github.com/vladislavdragonenkov/storefront/internal/service/stock"
)

const (
	defaultStepTimeout = 5 * time.Second
	defaultMaxRetries  = 3
	defaultRetryDelay  = 100 * time.Millisecond
)

// CheckoutRequest — вход чекаута: корзина, контакты и способ оплаты.
type CheckoutRequest struct {
	Lines         []domain.CartLine
	Customer      domain.Customer
	PaymentMethod domain.PaymentMethod
	ShippingMinor int64
	// SlipReference и SlipNumber обязательны для банковского перевода.
	SlipReference string
	SlipNumber    string
}

// CheckoutResult — результат успешного чекаута. Payment заполнен только для
// оплаты через шлюз; для cod/bank заказ остаётся pending без автоматизации.
type CheckoutResult struct {
	Order   domain.Order
	Payment *payhere.PaymentRequest
}

// NotificationCache — опциональный быстрый фильтр дублей уведомлений перед
// долговечным леджером. Промах или ошибка кэша ведут к обычной проверке.
type NotificationCache interface {
	Seen(ctx context.Context, rec domain.NotificationRecord) bool
	Mark(ctx context.Context, rec domain.NotificationRecord)
}

// Orchestrator ведёт заказ по конвейеру: валидация → резерв остатков →
// создание заказа → передача шлюзу → (асинхронно) финализация по вебхуку.
type Orchestrator struct {
	inventory     domain.InventoryStore
	stock         *stock.Service
	orders        domain.OrderRepository
	notifications domain.NotificationLedger
	gateway       *payhere.Adapter
	kafkaProducer *kafka.Producer // опциональный Kafka producer для event-driven архитектуры
	cache         NotificationCache
	logger        *log.Entry
	metrics       *metrics.SettlementMetrics
	stepTimeout   time.Duration
	maxRetries    int
	retryDelay    time.Duration
}

// NewOrchestrator создаёт рабочий экземпляр оркестратора.
func NewOrchestrator(
	inventory domain.InventoryStore,
	stockSvc *stock.Service,
	orders domain.OrderRepository,
	notifications domain.NotificationLedger,
	gateway *payhere.Adapter,
	logger *log.Entry,
) *Orchestrator {
	o := newOrchestrator(inventory, stockSvc, orders, notifications, gateway, logger)
	o.metrics = metrics.NewSettlementMetrics()
	return o
}

// NewOrchestratorWithKafka создаёт оркестратор с Kafka producer для публикации событий.
func NewOrchestratorWithKafka(
	inventory domain.InventoryStore,
	stockSvc *stock.Service,
	orders domain.OrderRepository,
	notifications domain.NotificationLedger,
	gateway *payhere.Adapter,
	kafkaProducer *kafka.Producer,
	logger *log.Entry,
) *Orchestrator {
	o := NewOrchestrator(inventory, stockSvc, orders, notifications, gateway, logger)
	o.kafkaProducer = kafkaProducer
	return o
}

// AttachNotificationCache подключает быстрый фильтр дублей уведомлений.
// Кэш опрашивается только после проверки подписи: неподписанный запрос не
// должен получать ответ по ключу из кэша.
func (o *Orchestrator) AttachNotificationCache(cache NotificationCache) {
	o.cache = cache
}

// NewOrchestratorWithoutMetrics создаёт оркестратор без метрик (для тестов).
func NewOrchestratorWithoutMetrics(
	inventory domain.InventoryStore,
	stockSvc *stock.Service,
	orders domain.OrderRepository,
	notifications domain.NotificationLedger,
	gateway *payhere.Adapter,
	logger *log.Entry,
) *Orchestrator {
	return newOrchestrator(inventory, stockSvc, orders, notifications, gateway, logger)
}

func newOrchestrator(
	inventory domain.InventoryStore,
	stockSvc *stock.Service,
	orders domain.OrderRepository,
	notifications domain.NotificationLedger,
	gateway *payhere.Adapter,
	logger *log.Entry,
) *Orchestrator {
	if logger == nil {
		logger = log.New().WithField("component", "settlement")
	}
	return &Orchestrator{
		inventory:     inventory,
		stock:         stockSvc,
		orders:        orders,
		notifications: notifications,
		gateway:       gateway,
		logger:        logger,
		stepTimeout:   defaultStepTimeout,
		maxRetries:    defaultMaxRetries,
		retryDelay:    defaultRetryDelay,
	}
}

// Checkout проводит корзину через резерв, создание заказа и инициацию оплаты.
// До успешного резерва побочных эффектов нет; если создание заказа падает
// после резерва, резерв компенсируется освобождением.
func (o *Orchestrator) Checkout(ctx context.Context, req CheckoutRequest) (CheckoutResult, error) {
	start := time.Now()
	if o.metrics != nil {
		o.metrics.RecordCheckoutStarted()
	}
	defer func() {
		if o.metrics != nil {
			o.metrics.RecordCheckoutDuration(time.Since(start))
		}
	}()

	if err := validateRequest(req); err != nil {
		o.recordFailure("", "validation")
		return CheckoutResult{}, err
	}

	orderID := uuid.NewString()
	logger := o.logger.WithField("order_id", orderID)

	o.publishEvent(kafka.EventTypeCheckoutStarted, orderID, map[string]interface{}{
		"payment_method": string(req.PaymentMethod),
		"lines":          len(req.Lines),
	})

	// Цена и название позиций берутся из инвентаря, а не из корзины клиента.
	items, err := o.snapshotItems(ctx, req.Lines)
	if err != nil {
		o.recordFailure(orderID, failureReason(err))
		return CheckoutResult{}, err
	}

	reserveCtx, cancel := context.WithTimeout(ctx, o.stepTimeout)
	defer cancel()
	if _, err := o.stock.Reserve(reserveCtx, orderID, req.Lines); err != nil {
		logger.WithError(err).Warn("stock reservation failed")
		o.recordFailure(orderID, failureReason(err))
		return CheckoutResult{}, err
	}
	o.publishEvent(kafka.EventTypeStockReserved, orderID, map[string]interface{}{
		"lines": len(req.Lines),
	})

	order := buildOrder(orderID, req, items)
	if err := o.createOrder(ctx, order); err != nil {
		logger.WithError(err).Error("order creation failed, compensating reservation")
		// Остатки уже списаны: возвращаем их, иначе инвентарь потерян.
		o.compensateReservation(ctx, orderID)
		o.recordFailure(orderID, failureReason(err))
		return CheckoutResult{}, err
	}

	if err := o.stock.Bind(ctx, orderID); err != nil {
		// Заказ создан; резерв останется held и попадёт под TTL-жнеца.
		logger.WithError(err).Warn("failed to bind reservation to order")
	}
	o.publishEvent(kafka.EventTypeOrderCreated, orderID, map[string]interface{}{
		"total_minor": order.TotalMinor,
	})

	result := CheckoutResult{Order: order}
	if req.PaymentMethod == domain.PaymentMethodGateway {
		payment := o.gateway.BuildPaymentRequest(order)
		status := domain.OrderStatusProcessing
		patched, err := o.orders.Patch(ctx, orderID, domain.OrderPatch{Status: &status})
		if err != nil {
			logger.WithError(err).Error("failed to mark order processing")
		} else {
			result.Order = patched
		}
		result.Payment = &payment
		o.publishEvent(kafka.EventTypePaymentInitiated, orderID, map[string]interface{}{
			"amount": payment.Amount,
		})
	}

	if o.metrics != nil {
		o.metrics.RecordCheckoutCompleted()
	}
	logger.WithFields(log.Fields{
		"payment_method": req.PaymentMethod,
		"total_minor":    order.TotalMinor,
	}).Info("checkout completed")

	return result, nil
}

// HandleNotification применяет верифицированное уведомление шлюза к заказу.
// Безопасен при повторной доставке: дубликат по (order, payment, status) —
// no-op, переходы статусов охраняются таблицей, возврат остатков идемпотентен.
func (o *Orchestrator) HandleNotification(ctx context.Context, n payhere.Notification) error {
	start := time.Now()
	defer func() {
		if o.metrics != nil {
			o.metrics.RecordWebhookDuration(time.Since(start))
		}
	}()

	event, err := o.gateway.VerifyNotification(n)
	if err != nil {
		if o.metrics != nil {
			o.metrics.RecordWebhookRejected()
		}
		return err
	}
	if o.metrics != nil {
		o.metrics.RecordWebhookVerified()
	}

	logger := o.logger.WithFields(log.Fields{
		"order_id":    event.OrderID,
		"payment_id":  event.PaymentID,
		"status_code": event.StatusCode,
	})

	rec := domain.NotificationRecord{
		OrderID:    event.OrderID,
		PaymentID:  event.PaymentID,
		StatusCode: event.StatusCode,
		ReceivedAt: time.Now().UTC(),
	}
	if o.cache != nil && o.cache.Seen(ctx, rec) {
		if o.metrics != nil {
			o.metrics.RecordWebhookDuplicate()
		}
		logger.Debug("duplicate notification served from cache")
		return nil
	}
	seen, err := o.notifications.Seen(ctx, rec)
	if err != nil {
		return fmt.Errorf("check notification ledger: %w", err)
	}
	if seen {
		if o.metrics != nil {
			o.metrics.RecordWebhookDuplicate()
		}
		if o.cache != nil {
			o.cache.Mark(ctx, rec)
		}
		logger.Debug("duplicate notification skipped")
		return nil
	}

	order, err := o.orders.Get(ctx, event.OrderID)
	if err != nil {
		logger.WithError(err).Warn("notification for unknown order")
		return err
	}

	patch := domain.OrderPatch{
		PaymentID:          &event.PaymentID,
		PaymentAmountMinor: &event.AmountMinor,
	}
	if status, ok := event.Outcome.OrderStatus(); ok {
		patch.Status = &status
	}
	if _, err := o.orders.Patch(ctx, order.ID, patch); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			// Запоздавшее или переупорядоченное уведомление: заказ уже в
			// дальнем статусе. Логируем и не применяем; ретраить бессмысленно.
			logger.WithFields(log.Fields{
				"from":    order.Status,
				"outcome": event.Outcome,
			}).Warn("notification rejected by transition table")
			return err
		}
		return fmt.Errorf("patch order %s: %w", order.ID, err)
	}

	if event.Outcome.ReleasesStock() {
		if err := o.stock.Release(ctx, order.ID); err != nil && !errors.Is(err, domain.ErrReservationNotFound) {
			logger.WithError(err).Error("failed to release stock for dead order")
		} else if err == nil {
			if o.metrics != nil {
				o.metrics.RecordStockReleased()
			}
			o.publishEvent(kafka.EventTypeStockReleased, order.ID, map[string]interface{}{
				"outcome": string(event.Outcome),
			})
		}
	}

	if err := o.notifications.Record(ctx, rec); err != nil && !errors.Is(err, domain.ErrDuplicateNotification) {
		// Мутации уже применены и сами по себе идемпотентны; потеря записи
		// в леджере означает лишь лишний no-op проход при повторной доставке.
		logger.WithError(err).Warn("failed to record applied notification")
	}
	if o.cache != nil {
		o.cache.Mark(ctx, rec)
	}

	o.publishEvent(kafka.EventTypePaymentSettled, order.ID, map[string]interface{}{
		"outcome":      string(event.Outcome),
		"payment_id":   event.PaymentID,
		"amount_minor": event.AmountMinor,
	})
	logger.WithField("outcome", event.Outcome).Info("notification applied")

	return nil
}

// createOrder пишет заказ с ограниченным числом повторов при временных
// ошибках хранилища. Повторы живут только на этой границе: вебхук ретраит
// сам шлюз.
func (o *Orchestrator) createOrder(ctx context.Context, order domain.Order) error {
	delay := o.retryDelay
	var lastErr error
	for attempt := 1; attempt <= o.maxRetries; attempt++ {
		createCtx, cancel := context.WithTimeout(ctx, o.stepTimeout)
		err := o.orders.Create(createCtx, order)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		if !domain.IsTransient(err) {
			return err
		}
		o.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"attempt":  attempt,
		}).Warn("transient store error on order create, retrying")
		if attempt < o.maxRetries {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			delay *= 2
		}
	}
	return lastErr
}

// compensateReservation освобождает резерв после сбоя создания заказа.
// Выполняется на неотменяемом контексте: клиент мог уже отвалиться.
func (o *Orchestrator) compensateReservation(ctx context.Context, orderID string) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.stepTimeout)
	defer cancel()
	if err := o.stock.Release(releaseCtx, orderID); err != nil {
		// Резерв останется held; TTL-жнец доберёт его позже.
		o.logger.WithError(err).WithField("order_id", orderID).Error("reservation compensation failed")
	}
}

// snapshotItems собирает позиции заказа с авторитетными ценами и названиями.
func (o *Orchestrator) snapshotItems(ctx context.Context, lines []domain.CartLine) ([]domain.OrderItem, error) {
	loadCtx, cancel := context.WithTimeout(ctx, o.stepTimeout)
	defer cancel()

	products := make(map[string]domain.Product)
	items := make([]domain.OrderItem, 0, len(lines))
	for _, line := range lines {
		product, ok := products[line.ProductID]
		if !ok {
			loaded, err := o.inventory.GetProduct(loadCtx, line.ProductID)
			if err != nil {
				return nil, fmt.Errorf("resolve product %s: %w", line.ProductID, err)
			}
			product = loaded
			products[line.ProductID] = product
		}

		color, ok := product.Color(line.ColorKey)
		if !ok {
			return nil, fmt.Errorf("product %s color %s: %w", line.ProductID, line.ColorKey, domain.ErrColorNotFound)
		}
		if line.Size != "" {
			if _, ok := color.Size(line.Size); !ok {
				return nil, fmt.Errorf("product %s size %s: %w", line.ProductID, line.Size, domain.ErrSizeNotFound)
			}
		}

		items = append(items, domain.OrderItem{
			ProductID:      product.ID,
			Title:          product.Title,
			ColorKey:       line.ColorKey,
			Size:           line.Size,
			Qty:            line.Qty,
			UnitPriceMinor: product.EffectivePriceMinor(),
		})
	}
	return items, nil
}

func buildOrder(orderID string, req CheckoutRequest, items []domain.OrderItem) domain.Order {
	var subtotal int64
	for _, item := range items {
		subtotal += int64(item.Qty) * item.UnitPriceMinor
	}
	now := time.Now().UTC()
	return domain.Order{
		ID:            orderID,
		Status:        domain.OrderStatusPending,
		PaymentMethod: req.PaymentMethod,
		SubtotalMinor: subtotal,
		ShippingMinor: req.ShippingMinor,
		TotalMinor:    subtotal + req.ShippingMinor,
		Items:         items,
		Customer:      req.Customer,
		SlipReference: req.SlipReference,
		SlipNumber:    req.SlipNumber,
		Version:       0,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// validateRequest — все проверки до первого побочного эффекта.
func validateRequest(req CheckoutRequest) error {
	if errs := domain.ValidateCart(req.Lines); len(errs) > 0 {
		return errs[0]
	}
	if !req.PaymentMethod.Valid() {
		return fmt.Errorf("payment method %q: %w", req.PaymentMethod, domain.ErrPaymentMethodInvalid)
	}
	if req.Customer.Email == "" && req.Customer.Phone == "" {
		return domain.ErrCustomerRequired
	}
	if req.PaymentMethod == domain.PaymentMethodBank && (req.SlipReference == "" || req.SlipNumber == "") {
		return domain.ErrSlipRequired
	}
	return nil
}

func failureReason(err error) string {
	switch {
	case domain.IsValidationError(err):
		return "validation"
	case domain.IsInsufficientStock(err):
		return "insufficient_stock"
	case domain.IsNotFound(err):
		return "not_found"
	case domain.IsVersionConflict(err):
		return "version_conflict"
	case domain.IsTransient(err):
		return "store_unavailable"
	default:
		return "internal"
	}
}

// recordFailure фиксирует неудачный чекаут в метриках и, когда заказ уже
// получил идентификатор, публикует событие checkout.failed.
func (o *Orchestrator) recordFailure(orderID, reason string) {
	if o.metrics != nil {
		o.metrics.RecordCheckoutFailed(reason)
	}
	if orderID != "" {
		o.publishEvent(kafka.EventTypeCheckoutFailed, orderID, map[string]interface{}{
			"reason": reason,
		})
	}
}

// publishEvent публикует событие пайплайна в Kafka (если producer настроен)
func (o *Orchestrator) publishEvent(eventType kafka.EventType, orderID string, metadata map[string]interface{}) {
	if o.kafkaProducer == nil {
		return // Kafka не настроен, пропускаем
	}

	event := kafka.NewSettlementEvent(eventType, orderID, metadata)
	if err := o.kafkaProducer.PublishEvent(kafka.TopicSettlementEvents, orderID, event); err != nil {
		o.logger.WithError(err).WithFields(log.Fields{
			"event_type": eventType,
			"order_id":   orderID,
		}).Warn("failed to publish settlement event to kafka")
	}
}
