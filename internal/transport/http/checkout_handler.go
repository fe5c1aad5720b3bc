package http

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/settlement"
)

// CheckoutHandler принимает корзину и проводит её через оркестратор расчётов.
type CheckoutHandler struct {
	orchestrator *settlement.Orchestrator
	logger       *log.Entry
}

// NewCheckoutHandler создаёт обработчик чекаута.
func NewCheckoutHandler(orchestrator *settlement.Orchestrator, logger *log.Entry) *CheckoutHandler {
	if logger == nil {
		logger = log.New().WithField("component", "http-checkout")
	}
	return &CheckoutHandler{orchestrator: orchestrator, logger: logger}
}

type checkoutLine struct {
	ProductID      string `json:"product_id"`
	ColorKey       string `json:"color_key"`
	Size           string `json:"size,omitempty"`
	Qty            int32  `json:"qty"`
	UnitPriceMinor int64  `json:"unit_price_minor,omitempty"`
}

type checkoutCustomer struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	City      string `json:"city"`
	Country   string `json:"country"`
}

type checkoutRequest struct {
	Lines         []checkoutLine   `json:"lines"`
	Customer      checkoutCustomer `json:"customer"`
	PaymentMethod string           `json:"payment_method"`
	ShippingMinor int64            `json:"shipping_minor"`
	SlipReference string           `json:"slip_reference,omitempty"`
	SlipNumber    string           `json:"slip_number,omitempty"`
}

type checkoutPayment struct {
	CheckoutURL string `json:"checkout_url"`
	MerchantID  string `json:"merchant_id"`
	OrderID     string `json:"order_id"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Hash        string `json:"hash"`
	ReturnURL   string `json:"return_url"`
	CancelURL   string `json:"cancel_url"`
	NotifyURL   string `json:"notify_url"`
}

type checkoutResponse struct {
	OrderID    string           `json:"order_id"`
	Status     string           `json:"status"`
	TotalMinor int64            `json:"total_minor"`
	Payment    *checkoutPayment `json:"payment,omitempty"`
}

// ServeHTTP обрабатывает POST /api/checkout.
func (h *CheckoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	lines := make([]domain.CartLine, len(req.Lines))
	for i, line := range req.Lines {
		lines[i] = domain.CartLine{
			ProductID:      line.ProductID,
			ColorKey:       line.ColorKey,
			Size:           line.Size,
			Qty:            line.Qty,
			UnitPriceMinor: line.UnitPriceMinor,
		}
	}

	result, err := h.orchestrator.Checkout(r.Context(), settlement.CheckoutRequest{
		Lines: lines,
		Customer: domain.Customer{
			FirstName: req.Customer.FirstName,
			LastName:  req.Customer.LastName,
			Email:     req.Customer.Email,
			Phone:     req.Customer.Phone,
			Address:   req.Customer.Address,
			City:      req.Customer.City,
			Country:   req.Customer.Country,
		},
		PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
		ShippingMinor: req.ShippingMinor,
		SlipReference: req.SlipReference,
		SlipNumber:    req.SlipNumber,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := checkoutResponse{
		OrderID:    result.Order.ID,
		Status:     string(result.Order.Status),
		TotalMinor: result.Order.TotalMinor,
	}
	if result.Payment != nil {
		resp.Payment = &checkoutPayment{
			CheckoutURL: result.Payment.CheckoutURL,
			MerchantID:  result.Payment.MerchantID,
			OrderID:     result.Payment.OrderID,
			Amount:      result.Payment.Amount,
			Currency:    result.Payment.Currency,
			Hash:        result.Payment.Hash,
			ReturnURL:   result.Payment.ReturnURL,
			CancelURL:   result.Payment.CancelURL,
			NotifyURL:   result.Payment.NotifyURL,
		}
	}
	writeJSON(w, http.StatusCreated, resp)
}

// writeError отображает доменные ошибки в HTTP-статусы. Валидация и нехватка
// остатков возвращаются покупателю для исправления; остальное — 500.
func (h *CheckoutHandler) writeError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsValidationError(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case domain.IsInsufficientStock(err):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case domain.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrVersionConflict):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "inventory busy, retry checkout"})
	default:
		h.logger.WithError(err).Error("checkout failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
