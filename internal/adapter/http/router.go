package http

import (
	"context"
	"net/http"
	"time"

	"github.com/YelzhanWeb/canteen/internal/adapter/logger"
	"github.com/YelzhanWeb/canteen/internal/clock"
	"github.com/YelzhanWeb/canteen/internal/domain"
	"github.com/YelzhanWeb/canteen/internal/interfaces"
)

// Pinger reports storage reachability for /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type RouterConfig struct {
	Orders   interfaces.OrderService
	Payments interfaces.PaymentService
	Queue    interfaces.QueueService

	Storage Pinger
	Metrics HTTPObserver
	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler
	Clock          clock.Clock
	Logger         logger.Logger
}

type router struct {
	mux     *http.ServeMux
	metrics HTTPObserver
}

func (rt *router) handle(pattern string, h http.Handler) {
	rt.mux.Handle(pattern, instrument(rt.metrics, pattern, h))
}

func (rt *router) guarded(pattern string, p domain.Permission, h http.HandlerFunc) {
	rt.handle(pattern, RequirePermission(p, h))
}

func (rt *router) authenticated(pattern string, h http.HandlerFunc) {
	rt.handle(pattern, Authenticate(h))
}

// NewRouter builds the API handler with request logging and panic recovery around every route.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewSystem()
	}

	rt := &router{mux: http.NewServeMux(), metrics: cfg.Metrics}
	orders := NewOrderHandler(cfg.Orders, cfg.Logger)
	payments := NewPaymentHandler(cfg.Payments, cfg.Logger)
	queue := NewQueueHandler(cfg.Queue, cfg.Logger)

	rt.guarded("POST /orders", domain.PermPlaceOrder, orders.Create)
	rt.authenticated("GET /orders", orders.List)
	rt.authenticated("GET /orders/{id}", orders.Get)
	rt.authenticated("GET /orders/{id}/history", orders.History)
	rt.guarded("PATCH /orders/{id}/status", domain.PermUpdateOrderStatus, orders.UpdateStatus)
	rt.authenticated("PATCH /orders/{id}/cancel", orders.Cancel)

	rt.guarded("POST /payments/cash", domain.PermProcessPayments, payments.PayCash)
	rt.guarded("POST /payments/mobile-money", domain.PermPayOrder, payments.PayMobileMoney)
	rt.authenticated("GET /payments/mobile-money/{transactionId}/verify", payments.Verify)
	rt.authenticated("GET /payments", payments.List)
	rt.authenticated("GET /payments/{id}", payments.Get)

	rt.handle("GET /queue/status", http.HandlerFunc(queue.Status))
	rt.guarded("GET /queue/position/{orderId}", domain.PermViewQueue, queue.Position)
	rt.guarded("POST /queue/cleanup", domain.PermManageQueue, queue.Cleanup)

	rt.mux.Handle("GET /health", healthHandler(cfg.Storage, cfg.Clock))
	if cfg.MetricsHandler != nil {
		rt.mux.Handle("GET /metrics", cfg.MetricsHandler)
	}
	rt.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, string(domain.CodeNotFound), "route not found")
	})

	var h http.Handler = rt.mux
	h = LoggingMiddleware(cfg.Logger)(h)
	h = RecoveryMiddleware(cfg.Logger)(h)
	return h
}

type healthResponse struct {
	Status    string    `json:"status"`
	Storage   string    `json:"storage"`
	Timestamp time.Time `json:"timestamp"`
}

func healthHandler(storage Pinger, clk clock.Clock) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok", Storage: "ok", Timestamp: clk.Now()}
		if storage != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := storage.Ping(ctx); err != nil {
				resp.Status, resp.Storage = "degraded", "unreachable"
				writeJSON(w, http.StatusServiceUnavailable, resp)
				return
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
