package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/service/payhere"
)

const (
	defaultQty   = int32(1)
	codeOK       = "201"
	codeInternal = "internal"
)

type loadMode string

const (
	modeCheckout       loadMode = "checkout"
	modeCheckoutSettle loadMode = "checkout-settle"
)

type config struct {
	baseURL        string
	total          int
	totalSet       bool
	duration       time.Duration
	concurrency    int
	timeout        time.Duration
	mode           loadMode
	failRate       int
	productID      string
	colorKey       string
	size           string
	qty            int
	merchantID     string
	merchantSecret string
	customerTag    string
	outputPath     string
}

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type methodReport struct {
	Calls     int64            `json:"calls"`
	Success   int64            `json:"success"`
	Failed    int64            `json:"failed"`
	ErrorRate float64          `json:"error_rate"`
	Codes     map[string]int64 `json:"codes"`
	LatencyMs latencySummary   `json:"latency_ms"`
}

type report struct {
	StartedAt         time.Time               `json:"started_at"`
	DurationSeconds   float64                 `json:"duration_seconds"`
	TotalScenarios    int64                   `json:"total_scenarios"`
	SuccessScenarios  int64                   `json:"success_scenarios"`
	FailedScenarios   int64                   `json:"failed_scenarios"`
	ErrorRate         float64                 `json:"error_rate"`
	RPS               float64                 `json:"rps"`
	ScenarioLatencyMs latencySummary          `json:"scenario_latency_ms"`
	Methods           map[string]methodReport `json:"methods"`
}

type methodStats struct {
	calls     int64
	success   int64
	failed    int64
	codes     map[string]int64
	latencies []float64
}

type collector struct {
	mu      sync.Mutex
	methods map[string]*methodStats
}

func newCollector() *collector {
	return &collector{
		methods: make(map[string]*methodStats),
	}
}

func (c *collector) record(method string, latency time.Duration, code string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, found := c.methods[method]
	if !found {
		stats = &methodStats{
			codes: make(map[string]int64),
		}
		c.methods[method] = stats
	}

	stats.calls++
	if ok {
		stats.success++
	} else {
		stats.failed++
	}
	stats.codes[code]++
	stats.latencies = append(stats.latencies, float64(latency.Microseconds())/1000.0)
}

func (c *collector) snapshot(name string) (methodReport, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, ok := c.methods[name]
	if !ok {
		return methodReport{}, false
	}

	codesCopy := make(map[string]int64, len(stats.codes))
	for code, count := range stats.codes {
		codesCopy[code] = count
	}

	return methodReport{
		Calls:     stats.calls,
		Success:   stats.success,
		Failed:    stats.failed,
		ErrorRate: ratio(stats.failed, stats.calls),
		Codes:     codesCopy,
		LatencyMs: buildLatencySummary(stats.latencies),
	}, true
}

func (c *collector) buildReport(startedAt time.Time, duration time.Duration) report {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := report{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: duration.Seconds(),
		Methods:         make(map[string]methodReport, len(c.methods)),
	}

	scenarioStats := c.methods["scenario"]
	if scenarioStats != nil {
		result.TotalScenarios = scenarioStats.calls
		result.SuccessScenarios = scenarioStats.success
		result.FailedScenarios = scenarioStats.failed
		result.ErrorRate = ratio(scenarioStats.failed, scenarioStats.calls)
		result.ScenarioLatencyMs = buildLatencySummary(scenarioStats.latencies)
	}
	if duration > 0 {
		result.RPS = float64(result.TotalScenarios) / duration.Seconds()
	}

	for name, stats := range c.methods {
		codesCopy := make(map[string]int64, len(stats.codes))
		for code, count := range stats.codes {
			codesCopy[code] = count
		}
		result.Methods[name] = methodReport{
			Calls:     stats.calls,
			Success:   stats.success,
			Failed:    stats.failed,
			ErrorRate: ratio(stats.failed, stats.calls),
			Codes:     codesCopy,
			LatencyMs: buildLatencySummary(stats.latencies),
		}
	}

	return result
}

func parseConfig() (config, error) {
	var cfg config
	var modeValue string
	var timeoutValue string
	var durationValue string

	flag.StringVar(&cfg.baseURL, "addr", "http://localhost:8080", "checkout service base URL")
	flag.IntVar(&cfg.total, "total", 400, "total scenarios to execute in count mode; in duration mode only used when explicitly set")
	flag.StringVar(&durationValue, "duration", "0s", "optional time-based run duration (e.g. 10m, 15m)")
	flag.IntVar(&cfg.concurrency, "concurrency", 40, "number of concurrent workers")
	flag.StringVar(&timeoutValue, "timeout", "5s", "per-request timeout")
	flag.StringVar(&modeValue, "mode", string(modeCheckout), "load mode: checkout | checkout-settle")
	flag.IntVar(&cfg.failRate, "fail-rate", 0, "declined payment probability in percent for checkout-settle mode (0..100)")
	flag.StringVar(&cfg.productID, "product", "tee-classic", "product id to order")
	flag.StringVar(&cfg.colorKey, "color", "black", "color variant key")
	flag.StringVar(&cfg.size, "size", "M", "size label, empty for sizeless products")
	flag.IntVar(&cfg.qty, "qty", int(defaultQty), "quantity per order line")
	flag.StringVar(&cfg.merchantID, "merchant-id", "", "gateway merchant id, required for checkout-settle mode")
	flag.StringVar(&cfg.merchantSecret, "merchant-secret", "", "gateway merchant secret, required for checkout-settle mode")
	flag.StringVar(&cfg.customerTag, "customer-tag", "load", "customer email prefix")
	flag.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	flag.Parse()

	timeout, err := time.ParseDuration(strings.TrimSpace(timeoutValue))
	if err != nil {
		return cfg, fmt.Errorf("parse timeout: %w", err)
	}
	cfg.timeout = timeout

	duration, err := time.ParseDuration(strings.TrimSpace(durationValue))
	if err != nil {
		return cfg, fmt.Errorf("parse duration: %w", err)
	}
	cfg.duration = duration

	flag.CommandLine.Visit(func(f *flag.Flag) {
		if f.Name == "total" {
			cfg.totalSet = true
		}
	})

	mode, err := parseMode(modeValue)
	if err != nil {
		return cfg, err
	}
	cfg.mode = mode

	if cfg.duration < 0 {
		return cfg, errors.New("duration must be >= 0")
	}
	if cfg.duration == 0 && cfg.total <= 0 {
		return cfg, errors.New("total must be > 0 when duration is not set")
	}
	if cfg.duration > 0 && cfg.totalSet && cfg.total <= 0 {
		return cfg, errors.New("total must be > 0 when explicitly set with duration")
	}
	if cfg.concurrency <= 0 {
		return cfg, errors.New("concurrency must be > 0")
	}
	if cfg.timeout <= 0 {
		return cfg, errors.New("timeout must be > 0")
	}
	if cfg.qty <= 0 {
		return cfg, errors.New("qty must be > 0")
	}
	if cfg.failRate < 0 || cfg.failRate > 100 {
		return cfg, errors.New("fail-rate must be between 0 and 100")
	}
	if strings.TrimSpace(cfg.baseURL) == "" {
		return cfg, errors.New("addr is required")
	}
	if strings.TrimSpace(cfg.productID) == "" {
		return cfg, errors.New("product is required")
	}
	if strings.TrimSpace(cfg.colorKey) == "" {
		return cfg, errors.New("color is required")
	}
	if strings.TrimSpace(cfg.customerTag) == "" {
		return cfg, errors.New("customer-tag is required")
	}
	if cfg.mode == modeCheckoutSettle {
		if strings.TrimSpace(cfg.merchantID) == "" || strings.TrimSpace(cfg.merchantSecret) == "" {
			return cfg, errors.New("merchant-id and merchant-secret are required for checkout-settle mode")
		}
	}

	return cfg, nil
}

func parseMode(value string) (loadMode, error) {
	switch loadMode(strings.TrimSpace(value)) {
	case modeCheckout:
		return modeCheckout, nil
	case modeCheckoutSettle:
		return modeCheckoutSettle, nil
	default:
		return "", fmt.Errorf("unsupported mode: %s", value)
	}
}

func main() {
	cfg, err := parseConfig()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	client := &http.Client{
		Timeout: cfg.timeout,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.concurrency,
			MaxIdleConnsPerHost: cfg.concurrency,
		},
	}

	var gateway *payhere.Adapter
	if cfg.mode == modeCheckoutSettle {
		gateway = payhere.NewAdapter(payhere.Config{
			MerchantID:     cfg.merchantID,
			MerchantSecret: cfg.merchantSecret,
		}, nil)
	}

	startedAt := time.Now()
	runID := fmt.Sprintf("%d-%d", startedAt.UnixNano(), os.Getpid())
	col := newCollector()

	jobs := make(chan int, cfg.concurrency*2)
	var failures int64
	var wg sync.WaitGroup

	for workerID := 0; workerID < cfg.concurrency; workerID++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				if runErr := runScenario(client, gateway, cfg, id, runID, col); runErr != nil {
					atomic.AddInt64(&failures, 1)
				}
			}
		}()
	}

	dispatchJobs(jobs, cfg)
	wg.Wait()

	duration := time.Since(startedAt)
	result := col.buildReport(startedAt, duration)
	if result.FailedScenarios == 0 && failures > 0 {
		result.FailedScenarios = failures
		result.ErrorRate = ratio(result.FailedScenarios, result.TotalScenarios)
	}

	printReport(result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			os.Exit(1)
		}
	}

	if result.FailedScenarios > 0 {
		os.Exit(1)
	}
}

func dispatchJobs(jobs chan<- int, cfg config) {
	defer close(jobs)

	if cfg.duration <= 0 {
		for i := 0; i < cfg.total; i++ {
			jobs <- i
		}
		return
	}

	timer := time.NewTimer(cfg.duration)
	defer timer.Stop()

	for i := 0; ; i++ {
		if cfg.totalSet && i >= cfg.total {
			return
		}

		select {
		case <-timer.C:
			return
		case jobs <- i:
		}
	}
}

type checkoutResult struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Payment *struct {
		MerchantID string `json:"merchant_id"`
		OrderID    string `json:"order_id"`
		Amount     string `json:"amount"`
		Currency   string `json:"currency"`
	} `json:"payment"`
}

func runScenario(
	client *http.Client,
	gateway *payhere.Adapter,
	cfg config,
	index int,
	runID string,
	col *collector,
) error {
	scenarioStart := time.Now()
	scenarioCode := codeOK
	scenarioOK := true
	defer func() {
		col.record("scenario", time.Since(scenarioStart), scenarioCode, scenarioOK)
	}()

	checkout, code, err := callCheckout(client, cfg, index, runID, col)
	if err != nil {
		scenarioCode = code
		scenarioOK = false
		return err
	}
	if checkout.OrderID == "" {
		scenarioCode = codeInternal
		scenarioOK = false
		return errors.New("checkout response returned empty order id")
	}

	if cfg.mode == modeCheckout {
		return nil
	}

	if checkout.Payment == nil {
		scenarioCode = codeInternal
		scenarioOK = false
		return errors.New("checkout response has no payment block")
	}

	statusCode := "2"
	if shouldFailScenario(index, cfg.failRate) {
		statusCode = "-2"
	}
	paymentID := fmt.Sprintf("lt-pay-%s-%d", runID, index)
	if code, err := callNotify(client, gateway, cfg, checkout, paymentID, statusCode, col); err != nil {
		scenarioCode = code
		scenarioOK = false
		return err
	}

	return nil
}

func callCheckout(
	client *http.Client,
	cfg config,
	index int,
	runID string,
	col *collector,
) (checkoutResult, string, error) {
	payload := map[string]any{
		"lines": []map[string]any{
			{
				"product_id": cfg.productID,
				"color_key":  cfg.colorKey,
				"size":       cfg.size,
				"qty":        cfg.qty,
			},
		},
		"customer": map[string]any{
			"first_name": "Load",
			"email":      fmt.Sprintf("%s-%s-%d@example.com", cfg.customerTag, runID, index),
		},
		"payment_method": paymentMethodFor(cfg.mode),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return checkoutResult{}, codeInternal, err
	}

	start := time.Now()
	resp, err := client.Post(cfg.baseURL+"/api/checkout", "application/json", bytes.NewReader(body))
	if err != nil {
		col.record("Checkout", time.Since(start), "transport_error", false)
		return checkoutResult{}, "transport_error", err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	code := strconv.Itoa(resp.StatusCode)
	ok := resp.StatusCode == http.StatusCreated
	var result checkoutResult
	if ok {
		if decodeErr := json.NewDecoder(resp.Body).Decode(&result); decodeErr != nil {
			col.record("Checkout", time.Since(start), codeInternal, false)
			return checkoutResult{}, codeInternal, decodeErr
		}
	}
	col.record("Checkout", time.Since(start), code, ok)
	if !ok {
		return checkoutResult{}, code, fmt.Errorf("checkout returned status %d", resp.StatusCode)
	}
	return result, code, nil
}

func callNotify(
	client *http.Client,
	gateway *payhere.Adapter,
	cfg config,
	checkout checkoutResult,
	paymentID, statusCode string,
	col *collector,
) (string, error) {
	notification := gateway.AsNotification(payhere.PaymentRequest{
		MerchantID: checkout.Payment.MerchantID,
		OrderID:    checkout.Payment.OrderID,
		Amount:     checkout.Payment.Amount,
		Currency:   checkout.Payment.Currency,
	}, paymentID, statusCode)

	form := url.Values{}
	form.Set("merchant_id", notification.MerchantID)
	form.Set("order_id", notification.OrderID)
	form.Set("payment_id", notification.PaymentID)
	form.Set("payhere_amount", notification.Amount)
	form.Set("payhere_currency", notification.Currency)
	form.Set("status_code", notification.StatusCode)
	form.Set("md5sig", notification.MD5Sig)

	start := time.Now()
	resp, err := client.Post(
		cfg.baseURL+"/api/payments/notify",
		"application/x-www-form-urlencoded",
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		col.record("Notify", time.Since(start), "transport_error", false)
		return "transport_error", err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	code := strconv.Itoa(resp.StatusCode)
	ok := resp.StatusCode == http.StatusOK
	col.record("Notify", time.Since(start), code, ok)
	if !ok {
		return code, fmt.Errorf("notify returned status %d", resp.StatusCode)
	}
	return code, nil
}

// paymentMethodFor: режим settle требует gateway-заказа, голый checkout
// гоняет наложенный платёж, чтобы не оставлять заказы в processing.
func paymentMethodFor(mode loadMode) string {
	if mode == modeCheckoutSettle {
		return "gateway"
	}
	return "cod"
}

func shouldFailScenario(index, failRate int) bool {
	if failRate <= 0 {
		return false
	}
	if failRate >= 100 {
		return true
	}
	return index%100 < failRate
}

func writeJSONReport(path string, result report) error {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == string(filepath.Separator) {
		return errors.New("output path must point to a file")
	}
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("output path must be inside current directory: %s", path)
	}

	// #nosec G304 -- path is an explicit CLI output parameter for local load-test reports.
	file, err := os.Create(cleanPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func printReport(result report, cfg config) {
	fmt.Println("Load test summary")
	fmt.Printf("mode=%s run=%s total=%d success=%d failed=%d error_rate=%.4f\n",
		cfg.mode,
		runTarget(cfg),
		result.TotalScenarios,
		result.SuccessScenarios,
		result.FailedScenarios,
		result.ErrorRate,
	)
	fmt.Printf("duration=%.2fs rps=%.2f\n", result.DurationSeconds, result.RPS)
	fmt.Printf("scenario latency ms: min=%.2f avg=%.2f p50=%.2f p95=%.2f p99=%.2f max=%.2f\n",
		result.ScenarioLatencyMs.Min,
		result.ScenarioLatencyMs.Avg,
		result.ScenarioLatencyMs.P50,
		result.ScenarioLatencyMs.P95,
		result.ScenarioLatencyMs.P99,
		result.ScenarioLatencyMs.Max,
	)

	methodNames := make([]string, 0, len(result.Methods))
	for name := range result.Methods {
		if name == "scenario" {
			continue
		}
		methodNames = append(methodNames, name)
	}
	sort.Strings(methodNames)
	for _, name := range methodNames {
		stats := result.Methods[name]
		fmt.Printf(
			"%s: calls=%d success=%d failed=%d error_rate=%.4f p95=%.2fms\n",
			name,
			stats.Calls,
			stats.Success,
			stats.Failed,
			stats.ErrorRate,
			stats.LatencyMs.P95,
		)
	}
}

func runTarget(cfg config) string {
	if cfg.duration <= 0 {
		return fmt.Sprintf("count:%d", cfg.total)
	}
	if cfg.totalSet {
		return fmt.Sprintf("duration:%s,max-total:%d", cfg.duration, cfg.total)
	}
	return fmt.Sprintf("duration:%s", cfg.duration)
}

func buildLatencySummary(values []float64) latencySummary {
	if len(values) == 0 {
		return latencySummary{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, value := range sorted {
		sum += value
	}

	return latencySummary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}

	weight := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight
}

func ratio(failed, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(failed) / float64(total)
}
