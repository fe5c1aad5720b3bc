package stock

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	defaultReapInterval   = time.Minute
	defaultReservationTTL = 15 * time.Minute
	defaultReapBatchSize  = 100
)

var (
	reaperRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_reservation_reaper_runs_total",
		Help: "Total number of reservation reaper runs grouped by result.",
	}, []string{"result"})
	reaperReleasedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_reservation_reaper_released_total",
		Help: "Total number of abandoned reservations released back to stock.",
	})
)

// ReaperOptions задаёт параметры воркера освобождения брошенных резервов.
type ReaperOptions struct {
	Logger    *log.Entry
	Interval  time.Duration
	TTL       time.Duration
	BatchSize int
}

// ReaperOption настраивает Reaper.
type ReaperOption func(*ReaperOptions)

// WithLogger задаёт logger для воркера.
func WithLogger(logger *log.Entry) ReaperOption {
	return func(opts *ReaperOptions) {
		opts.Logger = logger
	}
}

// WithInterval задаёт интервал между проходами.
func WithInterval(interval time.Duration) ReaperOption {
	return func(opts *ReaperOptions) {
		opts.Interval = interval
	}
}

// WithTTL задаёт возраст, после которого held-резерв считается брошенным.
func WithTTL(ttl time.Duration) ReaperOption {
	return func(opts *ReaperOptions) {
		opts.TTL = ttl
	}
}

// WithBatchSize задаёт размер выборки за один проход.
func WithBatchSize(batchSize int) ReaperOption {
	return func(opts *ReaperOptions) {
		opts.BatchSize = batchSize
	}
}

// Reaper периодически возвращает на склад резервы, которые так и не были
// привязаны к созданному заказу: клиент отвалился между списанием остатков
// и созданием заказа, либо бросил чекаут.
type Reaper struct {
	stock     *Service
	ledger    domain.ReservationLedger
	logger    *log.Entry
	interval  time.Duration
	ttl       time.Duration
	batchSize int
}

// NewReaper создаёт воркер освобождения брошенных резервов.
func NewReaper(stock *Service, ledger domain.ReservationLedger, options ...ReaperOption) *Reaper {
	opts := ReaperOptions{
		Interval:  defaultReapInterval,
		TTL:       defaultReservationTTL,
		BatchSize: defaultReapBatchSize,
	}
	for _, option := range options {
		option(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = log.New().WithField("component", "reservation-reaper")
	}

	return &Reaper{
		stock:     stock,
		ledger:    ledger,
		logger:    opts.Logger,
		interval:  opts.Interval,
		ttl:       opts.TTL,
		batchSize: opts.BatchSize,
	}
}

// Run крутит проходы до отмены контекста.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.WithFields(log.Fields{
		"interval": r.interval,
		"ttl":      r.ttl,
	}).Info("reservation reaper started")

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reservation reaper stopped")
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce выполняет один проход: находит просроченные held-резервы и освобождает их.
func (r *Reaper) RunOnce(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-r.ttl)

	stale, err := r.ledger.ListHeldBefore(ctx, cutoff, r.batchSize)
	if err != nil {
		reaperRunsTotal.WithLabelValues("error").Inc()
		r.logger.WithError(err).Error("failed to list stale reservations")
		return
	}

	released := 0
	for _, res := range stale {
		if err := r.stock.Release(ctx, res.OrderID); err != nil {
			r.logger.WithError(err).WithField("order_id", res.OrderID).Warn("failed to release stale reservation")
			continue
		}
		released++
		reaperReleasedTotal.Inc()
	}

	reaperRunsTotal.WithLabelValues("ok").Inc()
	if released > 0 {
		r.logger.WithField("released", released).Info("released abandoned reservations")
	}
}
