package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SettlementMetrics содержит метрики пайплайна расчётов.
type SettlementMetrics struct {
	// Счётчики чекаутов
	checkoutStarted   prometheus.Counter
	checkoutCompleted prometheus.Counter
	checkoutFailed    *prometheus.CounterVec

	// Счётчики резервирования
	reserveConflicts prometheus.Counter
	stockReleased    prometheus.Counter

	// Счётчики вебхука
	webhookVerified  prometheus.Counter
	webhookRejected  prometheus.Counter
	webhookDuplicate prometheus.Counter

	// Гистограммы времени выполнения
	checkoutDuration prometheus.Histogram
	webhookDuration  prometheus.Histogram
}

// NewSettlementMetrics создаёт метрики пайплайна на дефолтном registerer.
func NewSettlementMetrics() *SettlementMetrics {
	return NewSettlementMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewSettlementMetricsWithRegisterer создаёт метрики на заданном registerer.
// Повторная регистрация возвращает уже существующие коллекторы.
func NewSettlementMetricsWithRegisterer(registerer prometheus.Registerer) *SettlementMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &SettlementMetrics{
		checkoutStarted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_checkout_started_total",
			Help: "Total number of checkout attempts started",
		}),
		checkoutCompleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_checkout_completed_total",
			Help: "Total number of checkouts that created an order",
		}),
		checkoutFailed: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_checkout_failed_total",
			Help: "Total number of failed checkouts grouped by reason",
		}, []string{"reason"}),
		reserveConflicts: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_reserve_conflicts_total",
			Help: "Total number of inventory version conflicts during reservation",
		}),
		stockReleased: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_stock_released_total",
			Help: "Total number of reservations released back to stock",
		}),
		webhookVerified: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_webhook_verified_total",
			Help: "Total number of gateway notifications with a valid signature",
		}),
		webhookRejected: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_webhook_rejected_total",
			Help: "Total number of gateway notifications rejected on signature",
		}),
		webhookDuplicate: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_webhook_duplicate_total",
			Help: "Total number of duplicate gateway notifications skipped",
		}),
		checkoutDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "storefront_checkout_duration_seconds",
			Help:    "Duration of checkout orchestration in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		webhookDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "storefront_webhook_duration_seconds",
			Help:    "Duration of webhook settlement handling in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
	}
}

// RecordCheckoutStarted увеличивает счётчик начатых чекаутов.
func (m *SettlementMetrics) RecordCheckoutStarted() {
	m.checkoutStarted.Inc()
}

// RecordCheckoutCompleted увеличивает счётчик успешных чекаутов.
func (m *SettlementMetrics) RecordCheckoutCompleted() {
	m.checkoutCompleted.Inc()
}

// RecordCheckoutFailed увеличивает счётчик неудачных чекаутов с причиной.
func (m *SettlementMetrics) RecordCheckoutFailed(reason string) {
	m.checkoutFailed.WithLabelValues(reason).Inc()
}

// RecordReserveConflict увеличивает счётчик конфликтов версий инвентаря.
func (m *SettlementMetrics) RecordReserveConflict() {
	m.reserveConflicts.Inc()
}

// RecordStockReleased увеличивает счётчик возвратов остатков.
func (m *SettlementMetrics) RecordStockReleased() {
	m.stockReleased.Inc()
}

// RecordWebhookVerified увеличивает счётчик верифицированных уведомлений.
func (m *SettlementMetrics) RecordWebhookVerified() {
	m.webhookVerified.Inc()
}

// RecordWebhookRejected увеличивает счётчик отклонённых по подписи уведомлений.
func (m *SettlementMetrics) RecordWebhookRejected() {
	m.webhookRejected.Inc()
}

// RecordWebhookDuplicate увеличивает счётчик пропущенных дублей.
func (m *SettlementMetrics) RecordWebhookDuplicate() {
	m.webhookDuplicate.Inc()
}

// RecordCheckoutDuration записывает длительность чекаута.
func (m *SettlementMetrics) RecordCheckoutDuration(d time.Duration) {
	m.checkoutDuration.Observe(d.Seconds())
}

// RecordWebhookDuration записывает длительность обработки вебхука.
func (m *SettlementMetrics) RecordWebhookDuration(d time.Duration) {
	m.webhookDuration.Observe(d.Seconds())
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}
