package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNewSettlementMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSettlementMetricsWithRegisterer(reg)

	if m == nil {
		t.Fatal("NewSettlementMetricsWithRegisterer should not return nil")
	}

	if m.checkoutStarted == nil {
		t.Error("checkoutStarted counter should not be nil")
	}

	if m.checkoutCompleted == nil {
		t.Error("checkoutCompleted counter should not be nil")
	}

	if m.checkoutFailed == nil {
		t.Error("checkoutFailed counter vec should not be nil")
	}

	if m.reserveConflicts == nil {
		t.Error("reserveConflicts counter should not be nil")
	}

	if m.stockReleased == nil {
		t.Error("stockReleased counter should not be nil")
	}

	if m.webhookVerified == nil {
		t.Error("webhookVerified counter should not be nil")
	}

	if m.webhookRejected == nil {
		t.Error("webhookRejected counter should not be nil")
	}

	if m.webhookDuplicate == nil {
		t.Error("webhookDuplicate counter should not be nil")
	}

	if m.checkoutDuration == nil {
		t.Error("checkoutDuration histogram should not be nil")
	}

	if m.webhookDuration == nil {
		t.Error("webhookDuration histogram should not be nil")
	}
}

func TestRegisterTwiceReturnsExisting(t *testing.T) {
	reg := prometheus.NewRegistry()

	first := NewSettlementMetricsWithRegisterer(reg)
	second := NewSettlementMetricsWithRegisterer(reg)

	first.RecordCheckoutStarted()
	second.RecordCheckoutStarted()

	if got := counterValue(t, first.checkoutStarted); got != 2.0 {
		t.Errorf("expected shared counter value 2.0, got %f", got)
	}
}

func TestRecordCheckoutCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSettlementMetricsWithRegisterer(reg)

	m.RecordCheckoutStarted()
	m.RecordCheckoutStarted()
	m.RecordCheckoutCompleted()
	m.RecordCheckoutFailed("insufficient_stock")
	m.RecordCheckoutFailed("insufficient_stock")
	m.RecordCheckoutFailed("validation")

	if got := counterValue(t, m.checkoutStarted); got != 2.0 {
		t.Errorf("expected 2 started checkouts, got %f", got)
	}
	if got := counterValue(t, m.checkoutCompleted); got != 1.0 {
		t.Errorf("expected 1 completed checkout, got %f", got)
	}
	if got := counterValue(t, m.checkoutFailed.WithLabelValues("insufficient_stock")); got != 2.0 {
		t.Errorf("expected 2 stock failures, got %f", got)
	}
	if got := counterValue(t, m.checkoutFailed.WithLabelValues("validation")); got != 1.0 {
		t.Errorf("expected 1 validation failure, got %f", got)
	}
}

func TestRecordWebhookCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSettlementMetricsWithRegisterer(reg)

	m.RecordWebhookVerified()
	m.RecordWebhookRejected()
	m.RecordWebhookDuplicate()
	m.RecordReserveConflict()
	m.RecordStockReleased()

	if got := counterValue(t, m.webhookVerified); got != 1.0 {
		t.Errorf("expected 1 verified webhook, got %f", got)
	}
	if got := counterValue(t, m.webhookRejected); got != 1.0 {
		t.Errorf("expected 1 rejected webhook, got %f", got)
	}
	if got := counterValue(t, m.webhookDuplicate); got != 1.0 {
		t.Errorf("expected 1 duplicate webhook, got %f", got)
	}
	if got := counterValue(t, m.reserveConflicts); got != 1.0 {
		t.Errorf("expected 1 reserve conflict, got %f", got)
	}
	if got := counterValue(t, m.stockReleased); got != 1.0 {
		t.Errorf("expected 1 stock release, got %f", got)
	}
}

func TestRecordDurations(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSettlementMetricsWithRegisterer(reg)

	m.RecordCheckoutDuration(120 * time.Millisecond)
	m.RecordWebhookDuration(5 * time.Millisecond)

	if got := histogramSampleCount(t, m.checkoutDuration); got != 1 {
		t.Errorf("expected 1 checkout duration sample, got %d", got)
	}
	if got := histogramSampleCount(t, m.webhookDuration); got != 1 {
		t.Errorf("expected 1 webhook duration sample, got %d", got)
	}
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()

	metric := &dto.Metric{}
	if err := c.Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	return metric.Counter.GetValue()
}

func histogramSampleCount(t *testing.T, h prometheus.Histogram) uint64 {
	t.Helper()

	metric := &dto.Metric{}
	if err := h.Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	return metric.Histogram.GetSampleCount()
}
