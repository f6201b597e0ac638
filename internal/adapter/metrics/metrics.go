package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/YelzhanWeb/canteen/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg *prometheus.Registry

	OrdersCreated   prometheus.Counter
	OrdersCancelled prometheus.Counter
	Reaped          prometheus.Counter
	StatusChanges   *prometheus.CounterVec
	Payments        *prometheus.CounterVec
	Events          *prometheus.CounterVec

	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()

	created := prometheus.NewCounter(prometheus.CounterOpts{Name: "canteen_orders_created_total"})
	cancelled := prometheus.NewCounter(prometheus.CounterOpts{Name: "canteen_orders_cancelled_total"})
	reaped := prometheus.NewCounter(prometheus.CounterOpts{Name: "canteen_orders_reaped_total"})
	statusChanges := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "canteen_order_status_changes_total",
	}, []string{"status"})
	payments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "canteen_payments_total",
	}, []string{"method", "status"})
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "canteen_events_published_total",
	}, []string{"event", "result"})

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "canteen_http_requests_total",
	}, []string{"method", "route", "code"})
	httpLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "canteen_http_request_duration_seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	r.MustRegister(created, cancelled, reaped, statusChanges, payments, events, httpRequests, httpLatency,
		collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &Registry{
		reg:             r,
		OrdersCreated:   created,
		OrdersCancelled: cancelled,
		Reaped:          reaped,
		StatusChanges:   statusChanges,
		Payments:        payments,
		Events:          events,
		HTTPRequests:    httpRequests,
		HTTPLatency:     httpLatency,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }

func (r *Registry) OrderCreated() { r.OrdersCreated.Inc() }

func (r *Registry) OrderStatusChanged(to domain.Status) {
	r.StatusChanges.WithLabelValues(string(to)).Inc()
}

func (r *Registry) OrderCancelled() { r.OrdersCancelled.Inc() }

func (r *Registry) PaymentSettled(method domain.PaymentMethod, status domain.PaymentStatus) {
	r.Payments.WithLabelValues(string(method), string(status)).Inc()
}

func (r *Registry) OrdersReaped(n int) { r.Reaped.Add(float64(n)) }

func (r *Registry) EventPublished(event domain.Event, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	r.Events.WithLabelValues(string(event), result).Inc()
}

// ObserveHTTP records one served request; route is the matched mux pattern.
func (r *Registry) ObserveHTTP(method, route string, code int, elapsed time.Duration) {
	r.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	r.HTTPLatency.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
