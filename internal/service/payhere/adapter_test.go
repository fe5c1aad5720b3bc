package payhere

import (
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func testConfig() Config {
	return Config{
		MerchantID:     "1210001",
		MerchantSecret: "testsecret",
		CheckoutURL:    "https://sandbox.payhere.lk/pay/checkout",
		ReturnURL:      "https://shop.example.com/return",
		CancelURL:      "https://shop.example.com/cancel",
		NotifyURL:      "https://shop.example.com/api/payments/notify",
	}
}

func gatewayOrder() domain.Order {
	now := time.Now().UTC()
	return domain.Order{
		ID:            "order-1",
		Status:        domain.OrderStatusPending,
		PaymentMethod: domain.PaymentMethodGateway,
		SubtotalMinor: 450000,
		ShippingMinor: 35000,
		TotalMinor:    485000,
		Items: []domain.OrderItem{
			{ProductID: "tee-classic", Title: "Classic Tee", ColorKey: "black", Size: "M", Qty: 1, UnitPriceMinor: 450000},
		},
		Customer: domain.Customer{
			FirstName: "Nimal", LastName: "Perera",
			Email: "nimal@example.com", Phone: "0771234567",
			Address: "12 Galle Rd", City: "Colombo", Country: "Sri Lanka",
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestBuildPaymentRequest(t *testing.T) {
	adapter := NewAdapter(testConfig(), nil)
	req := adapter.BuildPaymentRequest(gatewayOrder())

	if req.Amount != "4850.00" {
		t.Errorf("expected amount 4850.00, got %s", req.Amount)
	}
	if req.Currency != DefaultCurrency {
		t.Errorf("expected default currency, got %s", req.Currency)
	}
	if req.Items != "Classic Tee" {
		t.Errorf("unexpected items: %s", req.Items)
	}
	if req.FirstName != "Nimal" || req.City != "Colombo" {
		t.Errorf("customer fields not carried: %+v", req)
	}
	// Известный вектор: UPPER(MD5(merchant+order+amount+currency+UPPER(MD5(secret)))).
	if req.Hash != "997AE4656DA15C85FE26FAC08A8A884C" {
		t.Errorf("unexpected signature: %s", req.Hash)
	}
}

func TestBuildPaymentRequest_AmountChangesSignature(t *testing.T) {
	adapter := NewAdapter(testConfig(), nil)

	order := gatewayOrder()
	base := adapter.BuildPaymentRequest(order)

	order.TotalMinor++
	other := adapter.BuildPaymentRequest(order)

	if base.Hash == other.Hash {
		t.Error("signature must depend on amount")
	}
}

func TestFormatAmount(t *testing.T) {
	cases := map[int64]string{
		0:      "0.00",
		5:      "0.05",
		100:    "1.00",
		123456: "1234.56",
		123450: "1234.50",
		-250:   "-2.50",
	}
	for minor, want := range cases {
		if got := FormatAmount(minor); got != want {
			t.Errorf("FormatAmount(%d): expected %s, got %s", minor, want, got)
		}
	}
}

func TestParseAmount(t *testing.T) {
	cases := map[string]int64{
		"1234.56":  123456,
		"1234.5":   123450,
		"1234":     123400,
		"0.05":     5,
		" 4850.00": 485000,
		"-2.50":    -250,
	}
	for input, want := range cases {
		got, err := ParseAmount(input)
		if err != nil {
			t.Errorf("ParseAmount(%q): unexpected error %v", input, err)
			continue
		}
		if got != want {
			t.Errorf("ParseAmount(%q): expected %d, got %d", input, want, got)
		}
	}

	for _, input := range []string{"", "12.345", "abc", "12.3x"} {
		if _, err := ParseAmount(input); err == nil {
			t.Errorf("ParseAmount(%q): expected error", input)
		}
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	for _, minor := range []int64{0, 1, 99, 100, 485000, 999999999} {
		parsed, err := ParseAmount(FormatAmount(minor))
		if err != nil {
			t.Fatalf("round trip %d: %v", minor, err)
		}
		if parsed != minor {
			t.Errorf("round trip %d: got %d", minor, parsed)
		}
	}
}
