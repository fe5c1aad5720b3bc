package main

import (
	"encoding/json"
	"flag"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/service/payhere"
)

func withCLIArgs(t *testing.T, args []string, fn func()) {
	t.Helper()

	oldArgs := os.Args
	oldCommandLine := flag.CommandLine

	os.Args = append([]string{"loadtest"}, args...)
	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	flag.CommandLine = fs

	defer func() {
		os.Args = oldArgs
		flag.CommandLine = oldCommandLine
	}()

	fn()
}

// newCheckoutStub поднимает httptest-сервер, изображающий чекаут-сервис:
// принимает чекаут и подписанные уведомления шлюза.
func newCheckoutStub(t *testing.T) (*httptest.Server, *int64, *int64) {
	t.Helper()

	var checkouts, notifies int64

	mux := http.NewServeMux()
	mux.HandleFunc("/api/checkout", func(w http.ResponseWriter, r *http.Request) {
		id := atomic.AddInt64(&checkouts, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"order_id": "order-" + strconv.FormatInt(id, 10),
			"status":   "processing",
			"payment": map[string]any{
				"merchant_id": "1210001",
				"order_id":    "order-1",
				"amount":      "4500.00",
				"currency":    "LKR",
			},
		})
	})
	mux.HandleFunc("/api/payments/notify", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&notifies, 1)
		if r.PostFormValue("md5sig") == "" {
			http.Error(w, "missing signature", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "OK"})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &checkouts, &notifies
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    loadMode
		wantErr string
	}{
		{name: "checkout", input: "checkout", want: modeCheckout},
		{name: "checkout-settle", input: "checkout-settle", want: modeCheckoutSettle},
		{name: "unsupported", input: "bad", wantErr: "unsupported mode"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseMode(tc.input)
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("unexpected mode: got %q want %q", got, tc.want)
			}
		})
	}
}

func TestParseConfig(t *testing.T) {
	t.Run("count mode", func(t *testing.T) {
		withCLIArgs(t, []string{
			"-addr=http://127.0.0.1:8080",
			"-mode=checkout-settle",
			"-total=12",
			"-concurrency=3",
			"-timeout=2s",
			"-fail-rate=10",
			"-product=mug-enamel",
			"-color=navy",
			"-size=",
			"-qty=2",
			"-merchant-id=1210001",
			"-merchant-secret=testsecret",
			"-customer-tag=stage",
			"-output=/tmp/out.json",
		}, func() {
			cfg, err := parseConfig()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !cfg.totalSet {
				t.Fatalf("expected totalSet=true")
			}
			if cfg.duration != 0 {
				t.Fatalf("expected zero duration, got %s", cfg.duration)
			}
			if cfg.mode != modeCheckoutSettle {
				t.Fatalf("unexpected mode: %s", cfg.mode)
			}
			if cfg.total != 12 || cfg.concurrency != 3 || cfg.qty != 2 {
				t.Fatalf("unexpected numeric config: %+v", cfg)
			}
			if cfg.timeout != 2*time.Second {
				t.Fatalf("unexpected timeout: %s", cfg.timeout)
			}
			if cfg.productID != "mug-enamel" || cfg.colorKey != "navy" || cfg.size != "" {
				t.Fatalf("unexpected product config: %+v", cfg)
			}
		})
	})

	t.Run("duration mode", func(t *testing.T) {
		withCLIArgs(t, []string{
			"-duration=3s",
			"-concurrency=2",
		}, func() {
			cfg, err := parseConfig()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.duration != 3*time.Second {
				t.Fatalf("unexpected duration: %s", cfg.duration)
			}
			if cfg.totalSet {
				t.Fatalf("expected totalSet=false when -total was not provided")
			}
		})
	})

	t.Run("validation errors", func(t *testing.T) {
		tests := []struct {
			name    string
			args    []string
			wantErr string
		}{
			{name: "invalid duration", args: []string{"-duration=bad"}, wantErr: "parse duration"},
			{name: "negative duration", args: []string{"-duration=-1s"}, wantErr: "duration must be >= 0"},
			{name: "invalid fail rate", args: []string{"-fail-rate=101"}, wantErr: "fail-rate must be between 0 and 100"},
			{name: "empty total", args: []string{"-duration=0s", "-total=0"}, wantErr: "total must be > 0"},
			{name: "settle without secret", args: []string{"-mode=checkout-settle"}, wantErr: "merchant-id and merchant-secret are required"},
		}

		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				withCLIArgs(t, tc.args, func() {
					_, err := parseConfig()
					if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
						t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
					}
				})
			})
		}
	})
}

func TestDispatchJobs(t *testing.T) {
	t.Run("count mode", func(t *testing.T) {
		jobs := make(chan int, 16)
		dispatchJobs(jobs, config{total: 5})

		var got []int
		for v := range jobs {
			got = append(got, v)
		}
		if !slices.Equal(got, []int{0, 1, 2, 3, 4}) {
			t.Fatalf("unexpected jobs sequence: %v", got)
		}
	})

	t.Run("duration mode", func(t *testing.T) {
		jobs := make(chan int, 32)
		done := make(chan struct{})
		go func() {
			dispatchJobs(jobs, config{duration: 20 * time.Millisecond})
			close(done)
		}()

		count := 0
		for range jobs {
			count++
		}
		<-done
		if count == 0 {
			t.Fatalf("expected non-zero jobs for duration mode")
		}
	})

	t.Run("duration with explicit max total", func(t *testing.T) {
		jobs := make(chan int, 16)
		dispatchJobs(jobs, config{duration: time.Second, total: 3, totalSet: true})
		count := 0
		for range jobs {
			count++
		}
		if count != 3 {
			t.Fatalf("expected 3 jobs, got %d", count)
		}
	})
}

func TestCollectorAndReport(t *testing.T) {
	c := newCollector()
	c.record("scenario", 10*time.Millisecond, "201", true)
	c.record("scenario", 20*time.Millisecond, "500", false)
	c.record("Checkout", 15*time.Millisecond, "201", true)

	snap, ok := c.snapshot("scenario")
	if !ok {
		t.Fatalf("scenario snapshot missing")
	}
	if snap.Calls != 2 || snap.Success != 1 || snap.Failed != 1 {
		t.Fatalf("unexpected scenario snapshot: %+v", snap)
	}
	if snap.Codes["201"] != 1 || snap.Codes["500"] != 1 {
		t.Fatalf("unexpected codes: %+v", snap.Codes)
	}

	r := c.buildReport(time.Now(), 2*time.Second)
	if r.TotalScenarios != 2 || r.FailedScenarios != 1 {
		t.Fatalf("unexpected report totals: %+v", r)
	}
	if r.RPS <= 0 {
		t.Fatalf("expected positive rps, got %f", r.RPS)
	}
	if _, ok := r.Methods["Checkout"]; !ok {
		t.Fatalf("expected Checkout stats in report")
	}
}

func TestUtilityFunctions(t *testing.T) {
	if got := ratio(1, 4); got != 0.25 {
		t.Fatalf("ratio mismatch: %f", got)
	}
	if got := ratio(1, 0); got != 0 {
		t.Fatalf("ratio with zero total must be 0, got %f", got)
	}

	values := []float64{10, 20, 30, 40}
	summary := buildLatencySummary(values)
	if summary.P50 <= 0 || summary.P95 <= 0 || summary.Max != 40 {
		t.Fatalf("unexpected latency summary: %+v", summary)
	}
	if p := percentile(values, 95); p <= 0 {
		t.Fatalf("unexpected percentile: %f", p)
	}

	if got := runTarget(config{total: 50}); got != "count:50" {
		t.Fatalf("unexpected run target: %s", got)
	}
	if got := runTarget(config{duration: 2 * time.Second}); got != "duration:2s" {
		t.Fatalf("unexpected duration run target: %s", got)
	}
	if got := runTarget(config{duration: 2 * time.Second, total: 10, totalSet: true}); got != "duration:2s,max-total:10" {
		t.Fatalf("unexpected capped duration run target: %s", got)
	}

	if got := paymentMethodFor(modeCheckout); got != "cod" {
		t.Fatalf("unexpected payment method: %s", got)
	}
	if got := paymentMethodFor(modeCheckoutSettle); got != "gateway" {
		t.Fatalf("unexpected payment method: %s", got)
	}

	if shouldFailScenario(5, 0) {
		t.Fatalf("zero fail-rate must never fail")
	}
	if !shouldFailScenario(5, 100) {
		t.Fatalf("full fail-rate must always fail")
	}
}

func TestWriteJSONReport(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.json")

	sample := report{TotalScenarios: 2, SuccessScenarios: 2}
	if err := writeJSONReport(path, sample); err != nil {
		t.Fatalf("writeJSONReport error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}

	var decoded report
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if decoded.TotalScenarios != 2 || decoded.SuccessScenarios != 2 {
		t.Fatalf("unexpected decoded report: %+v", decoded)
	}
}

func TestRunScenario(t *testing.T) {
	srv, checkouts, notifies := newCheckoutStub(t)

	gateway := payhere.NewAdapter(payhere.Config{
		MerchantID:     "1210001",
		MerchantSecret: "testsecret",
	}, nil)

	c := newCollector()
	runCfg := config{
		baseURL:     srv.URL,
		mode:        modeCheckoutSettle,
		timeout:     time.Second,
		productID:   "tee-classic",
		colorKey:    "black",
		size:        "M",
		qty:         1,
		customerTag: "load",
	}
	client := &http.Client{Timeout: runCfg.timeout}

	if err := runScenario(client, gateway, runCfg, 1, "run-1", c); err != nil {
		t.Fatalf("runScenario failed: %v", err)
	}
	if *checkouts != 1 || *notifies != 1 {
		t.Fatalf("unexpected call counts: checkouts=%d notifies=%d", *checkouts, *notifies)
	}

	snap, ok := c.snapshot("Checkout")
	if !ok || snap.Calls != 1 || snap.Success != 1 {
		t.Fatalf("Checkout metric missing or wrong: %+v", snap)
	}
	if snap, ok := c.snapshot("Notify"); !ok || snap.Success != 1 {
		t.Fatalf("Notify metric missing or wrong: %+v", snap)
	}

	// checkout-режим не трогает вебхук
	plainCfg := runCfg
	plainCfg.mode = modeCheckout
	if err := runScenario(client, nil, plainCfg, 2, "run-2", c); err != nil {
		t.Fatalf("runScenario checkout mode failed: %v", err)
	}
	if *notifies != 1 {
		t.Fatalf("checkout mode must not deliver notifications, got %d", *notifies)
	}
}

func TestRunScenario_ServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	c := newCollector()
	runCfg := config{
		baseURL:     srv.URL,
		mode:        modeCheckout,
		timeout:     time.Second,
		productID:   "tee-classic",
		colorKey:    "black",
		qty:         1,
		customerTag: "load",
	}
	client := &http.Client{Timeout: runCfg.timeout}

	if err := runScenario(client, nil, runCfg, 1, "run-err", c); err == nil {
		t.Fatalf("expected error from failing server")
	}

	snap, ok := c.snapshot("scenario")
	if !ok || snap.Failed != 1 {
		t.Fatalf("expected failed scenario in stats: %+v", snap)
	}
	if snap.Codes["500"] != 1 {
		t.Fatalf("expected code 500 recorded: %+v", snap.Codes)
	}
}

func TestPrintReport(t *testing.T) {
	r := report{
		TotalScenarios:   2,
		SuccessScenarios: 2,
		Methods: map[string]methodReport{
			"scenario": {Calls: 2, Success: 2},
			"Checkout": {Calls: 2, Success: 2},
		},
	}

	out := captureStdout(t, func() {
		printReport(r, config{mode: modeCheckout, total: 2})
	})

	if !strings.Contains(out, "Load test summary") {
		t.Fatalf("expected summary header, got: %s", out)
	}
	if !strings.Contains(out, "Checkout") {
		t.Fatalf("expected method section, got: %s", out)
	}
}

func TestMainSmoke(t *testing.T) {
	srv, checkouts, _ := newCheckoutStub(t)

	dir := t.TempDir()
	outPath := filepath.Join(dir, "main-report.json")

	withCLIArgs(t, []string{
		"-addr=" + srv.URL,
		"-mode=checkout",
		"-total=5",
		"-concurrency=2",
		"-timeout=2s",
		"-output=" + outPath,
	}, func() {
		main()
	})

	if _, err := os.Stat(outPath); err != nil {
		t.Fatalf("expected report file from main: %v", err)
	}
	if *checkouts != 5 {
		t.Fatalf("expected 5 checkout calls, got %d", *checkouts)
	}
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()

	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w

	fn()

	_ = w.Close()
	os.Stdout = oldStdout

	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read captured output: %v", err)
	}
	_ = r.Close()

	return string(data)
}
