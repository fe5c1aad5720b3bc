package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
)

// NewRouter собирает HTTP-маршруты пайплайна: чекаут, вебхук шлюза и чтение
// заказа, плюс health-проверки.
func NewRouter(checkout *CheckoutHandler, webhook *WebhookHandler, ordersH *OrdersHandler, health *healthcheck.Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))

	r.Get("/healthz", health.ServeHTTP)
	r.Post("/api/checkout", checkout.ServeHTTP)
	r.Post("/api/payments/notify", webhook.ServeHTTP)
	r.Get("/api/orders/{id}", ordersH.GetOrder)

	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
