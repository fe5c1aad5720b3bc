package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// OrdersHandler отдаёт заказ по идентификатору.
type OrdersHandler struct {
	orders domain.OrderRepository
	logger *log.Entry
}

// NewOrdersHandler создаёт обработчик чтения заказов.
func NewOrdersHandler(orders domain.OrderRepository, logger *log.Entry) *OrdersHandler {
	if logger == nil {
		logger = log.New().WithField("component", "http-orders")
	}
	return &OrdersHandler{orders: orders, logger: logger}
}

type orderItemView struct {
	ProductID      string `json:"product_id"`
	Title          string `json:"title"`
	ColorKey       string `json:"color_key"`
	Size           string `json:"size,omitempty"`
	Qty            int32  `json:"qty"`
	UnitPriceMinor int64  `json:"unit_price_minor"`
}

type orderView struct {
	ID                 string          `json:"id"`
	Status             string          `json:"status"`
	PaymentMethod      string          `json:"payment_method"`
	SubtotalMinor      int64           `json:"subtotal_minor"`
	ShippingMinor      int64           `json:"shipping_minor"`
	TotalMinor         int64           `json:"total_minor"`
	Items              []orderItemView `json:"items"`
	PaymentID          string          `json:"payment_id,omitempty"`
	PaymentAmountMinor int64           `json:"payment_amount_minor,omitempty"`
	CreatedAt          string          `json:"created_at"`
	UpdatedAt          string          `json:"updated_at"`
}

// GetOrder обрабатывает GET /api/orders/{id}.
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "order id required"})
		return
	}

	order, err := h.orders.Get(r.Context(), id)
	if err != nil {
		if domain.IsNotFound(err) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		h.logger.WithError(err).WithField("order_id", id).Error("failed to load order")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	items := make([]orderItemView, len(order.Items))
	for i, item := range order.Items {
		items[i] = orderItemView{
			ProductID:      item.ProductID,
			Title:          item.Title,
			ColorKey:       item.ColorKey,
			Size:           item.Size,
			Qty:            item.Qty,
			UnitPriceMinor: item.UnitPriceMinor,
		}
	}

	writeJSON(w, http.StatusOK, orderView{
		ID:                 order.ID,
		Status:             string(order.Status),
		PaymentMethod:      string(order.PaymentMethod),
		SubtotalMinor:      order.SubtotalMinor,
		ShippingMinor:      order.ShippingMinor,
		TotalMinor:         order.TotalMinor,
		Items:              items,
		PaymentID:          order.PaymentID,
		PaymentAmountMinor: order.PaymentAmountMinor,
		CreatedAt:          order.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:          order.UpdatedAt.UTC().Format(time.RFC3339),
	})
}
