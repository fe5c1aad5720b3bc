package payhere

import (
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Notification — сырые поля асинхронного уведомления шлюза, как они пришли
// в вебхук. До верификации подписи им доверять нельзя.
type Notification struct {
	MerchantID string
	OrderID    string
	PaymentID  string
	Amount     string
	Currency   string
	StatusCode string
	MD5Sig     string
	Custom1    string
}

// VerifiedEvent — уведомление, прошедшее проверку подписи, с разобранной
// суммой и доменным исходом платежа.
type VerifiedEvent struct {
	OrderID     string
	PaymentID   string
	AmountMinor int64
	StatusCode  string
	Outcome     domain.PaymentOutcome
}

// statusOutcomes отображает числовые коды шлюза в доменные исходы.
var statusOutcomes = map[string]domain.PaymentOutcome{
	"2":  domain.PaymentOutcomePaid,
	"0":  domain.PaymentOutcomePending,
	"-1": domain.PaymentOutcomeCancelled,
	"-2": domain.PaymentOutcomeFailed,
	"-3": domain.PaymentOutcomeChargedBack,
}

// OutcomeForCode возвращает исход для кода статуса. Неизвестные коды
// отображаются в pending: fail-safe по умолчанию, никогда не в paid.
func OutcomeForCode(code string) domain.PaymentOutcome {
	if outcome, ok := statusOutcomes[strings.TrimSpace(code)]; ok {
		return outcome
	}
	return domain.PaymentOutcomePending
}

// VerifyNotification пересчитывает подпись по полям уведомления и сверяет её
// с присланной без учёта регистра. При несовпадении событие не применяется:
// возвращается ErrInvalidSignature, факт логируется.
//
// Подписываются merchant id, order id, сумма, валюта и код статуса вместе с
// хэшированным секретом; payment id в подпись шлюза не входит.
func (a *Adapter) VerifyNotification(n Notification) (VerifiedEvent, error) {
	if n.MerchantID != a.cfg.MerchantID {
		a.logger.WithFields(log.Fields{
			"order_id":    n.OrderID,
			"merchant_id": n.MerchantID,
		}).Warn("notification for unknown merchant rejected")
		return VerifiedEvent{}, domain.ErrInvalidSignature
	}

	expected := strings.ToUpper(md5hex(
		n.MerchantID + n.OrderID + n.Amount + n.Currency + n.StatusCode + a.hashedSecret,
	))
	if !strings.EqualFold(expected, n.MD5Sig) {
		a.logger.WithFields(log.Fields{
			"order_id":    n.OrderID,
			"payment_id":  n.PaymentID,
			"status_code": n.StatusCode,
		}).Warn("notification signature mismatch")
		return VerifiedEvent{}, domain.ErrInvalidSignature
	}

	amountMinor, err := ParseAmount(n.Amount)
	if err != nil {
		// Подпись сошлась, но сумма не разобралась — шлюз прислал мусор.
		a.logger.WithError(err).WithField("order_id", n.OrderID).Warn("notification amount unparseable")
		return VerifiedEvent{}, domain.ErrInvalidSignature
	}

	return VerifiedEvent{
		OrderID:     n.OrderID,
		PaymentID:   n.PaymentID,
		AmountMinor: amountMinor,
		StatusCode:  strings.TrimSpace(n.StatusCode),
		Outcome:     OutcomeForCode(n.StatusCode),
	}, nil
}

// AsNotification строит уведомление с корректной подписью из платёжного
// запроса. Используется в тестах закольцованной проверки подписи.
func (a *Adapter) AsNotification(req PaymentRequest, paymentID, statusCode string) Notification {
	sig := strings.ToUpper(md5hex(
		req.MerchantID + req.OrderID + req.Amount + req.Currency + statusCode + a.hashedSecret,
	))
	return Notification{
		MerchantID: req.MerchantID,
		OrderID:    req.OrderID,
		PaymentID:  paymentID,
		Amount:     req.Amount,
		Currency:   req.Currency,
		StatusCode: statusCode,
		MD5Sig:     sig,
	}
}
