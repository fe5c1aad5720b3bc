package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/payhere"
	"github.com/vladislavdragonenkov/storefront/internal/service/settlement"
)

// WebhookHandler принимает асинхронные уведомления платёжного шлюза.
// Обязан быть безопасно повторяемым: шлюз ретраит доставку при не-2xx ответе.
// Дедупликацию, включая быстрый кэш, целиком ведёт оркестратор: любое тело
// без валидной подписи отклоняется до каких-либо проверок на повтор.
type WebhookHandler struct {
	orchestrator *settlement.Orchestrator
	logger       *log.Entry
}

// NewWebhookHandler создаёт обработчик вебхука.
func NewWebhookHandler(orchestrator *settlement.Orchestrator, logger *log.Entry) *WebhookHandler {
	if logger == nil {
		logger = log.New().WithField("component", "http-webhook")
	}
	return &WebhookHandler{orchestrator: orchestrator, logger: logger}
}

type webhookPayload struct {
	MerchantID string `json:"merchant_id"`
	OrderID    string `json:"order_id"`
	PaymentID  string `json:"payment_id"`
	Amount     string `json:"payhere_amount"`
	Currency   string `json:"payhere_currency"`
	StatusCode string `json:"status_code"`
	MD5Sig     string `json:"md5sig"`
	Custom1    string `json:"custom_1"`
}

// ServeHTTP обрабатывает POST /api/payments/notify: form-encoded или JSON.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	notification, err := parseNotification(r)
	if err != nil {
		h.logger.WithError(err).Warn("unparseable gateway notification")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad request"})
		return
	}

	err = h.orchestrator.HandleNotification(r.Context(), notification)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
	case errors.Is(err, domain.ErrInvalidSignature):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid signature"})
	case errors.Is(err, domain.ErrInvalidTransition):
		// Событие законно отвергнуто таблицей переходов; ретраить его шлюзу
		// бессмысленно, отвечаем 200, чтобы остановить повторные доставки.
		writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
	default:
		h.logger.WithError(err).WithField("order_id", notification.OrderID).Error("notification handling failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

// parseNotification разбирает тело вебхука: шлюз шлёт form-encoded, но JSON
// тоже принимается.
func parseNotification(r *http.Request) (payhere.Notification, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/json") {
		var payload webhookPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			return payhere.Notification{}, err
		}
		return payhere.Notification{
			MerchantID: payload.MerchantID,
			OrderID:    payload.OrderID,
			PaymentID:  payload.PaymentID,
			Amount:     payload.Amount,
			Currency:   payload.Currency,
			StatusCode: payload.StatusCode,
			MD5Sig:     payload.MD5Sig,
			Custom1:    payload.Custom1,
		}, nil
	}

	if err := r.ParseForm(); err != nil {
		return payhere.Notification{}, err
	}
	return payhere.Notification{
		MerchantID: r.PostFormValue("merchant_id"),
		OrderID:    r.PostFormValue("order_id"),
		PaymentID:  r.PostFormValue("payment_id"),
		Amount:     r.PostFormValue("payhere_amount"),
		Currency:   r.PostFormValue("payhere_currency"),
		StatusCode: r.PostFormValue("status_code"),
		MD5Sig:     r.PostFormValue("md5sig"),
		Custom1:    r.PostFormValue("custom_1"),
	}, nil
}
