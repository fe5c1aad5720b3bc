package payhere

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Config задаёт реквизиты мерчанта и адреса возврата для платёжного шлюза.
type Config struct {
	MerchantID     string
	MerchantSecret string
	// Currency у шлюза фиксированная, по умолчанию LKR.
	Currency    string
	CheckoutURL string
	ReturnURL   string
	CancelURL   string
	NotifyURL   string
}

// DefaultCurrency — валюта шлюза.
const DefaultCurrency = "LKR"

// Adapter строит исходящие платёжные запросы и верифицирует входящие
// уведомления по двухступенчатой MD5-схеме шлюза.
type Adapter struct {
	cfg          Config
	hashedSecret string
	logger       *log.Entry
}

// NewAdapter создаёт адаптер шлюза. Секрет мерчанта хэшируется один раз.
func NewAdapter(cfg Config, logger *log.Entry) *Adapter {
	if cfg.Currency == "" {
		cfg.Currency = DefaultCurrency
	}
	if logger == nil {
		logger = log.New().WithField("component", "payhere")
	}
	return &Adapter{
		cfg:          cfg,
		hashedSecret: strings.ToUpper(md5hex(cfg.MerchantSecret)),
		logger:       logger,
	}
}

// PaymentRequest — подписанные параметры редиректа на страницу оплаты шлюза.
type PaymentRequest struct {
	CheckoutURL string
	MerchantID  string
	OrderID     string
	// Amount — строка с ровно двумя знаками после запятой. Любое отклонение
	// формата ломает подпись на стороне шлюза.
	Amount    string
	Currency  string
	Items     string
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Address   string
	City      string
	Country   string
	ReturnURL string
	CancelURL string
	NotifyURL string
	Hash      string
}

// BuildPaymentRequest собирает подписанный платёжный запрос по заказу.
// Подпись: UPPER(MD5(merchantID + orderID + amount + currency + UPPER(MD5(secret)))).
func (a *Adapter) BuildPaymentRequest(order domain.Order) PaymentRequest {
	amount := FormatAmount(order.TotalMinor)

	var items []string
	for _, item := range order.Items {
		items = append(items, item.Title)
	}

	return PaymentRequest{
		CheckoutURL: a.cfg.CheckoutURL,
		MerchantID:  a.cfg.MerchantID,
		OrderID:     order.ID,
		Amount:      amount,
		Currency:    a.cfg.Currency,
		Items:       strings.Join(items, ", "),
		FirstName:   order.Customer.FirstName,
		LastName:    order.Customer.LastName,
		Email:       order.Customer.Email,
		Phone:       order.Customer.Phone,
		Address:     order.Customer.Address,
		City:        order.Customer.City,
		Country:     order.Customer.Country,
		ReturnURL:   a.cfg.ReturnURL,
		CancelURL:   a.cfg.CancelURL,
		NotifyURL:   a.cfg.NotifyURL,
		Hash:        a.sign(order.ID, amount, a.cfg.Currency),
	}
}

func (a *Adapter) sign(orderID, amount, currency string) string {
	return strings.ToUpper(md5hex(a.cfg.MerchantID + orderID + amount + currency + a.hashedSecret))
}

// FormatAmount переводит минимальные единицы в строку с двумя знаками после
// запятой без плавающей точки: 123456 -> "1234.56".
func FormatAmount(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}

// ParseAmount разбирает сумму из уведомления шлюза в минимальные единицы.
// Принимает "1234.56", "1234.5" и "1234".
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}

	negative := strings.HasPrefix(s, "-")
	if negative {
		s = s[1:]
	}

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	switch len(frac) {
	case 0:
		frac = "00"
	case 1:
		frac += "0"
	case 2:
	default:
		return 0, fmt.Errorf("amount %q has more than two decimal places", s)
	}

	var minor int64
	for _, r := range whole + frac {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("amount %q is not numeric", s)
		}
		minor = minor*10 + int64(r-'0')
	}
	if negative {
		minor = -minor
	}
	return minor, nil
}

func md5hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
