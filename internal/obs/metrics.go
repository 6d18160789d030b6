package obs

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics — набор метрик сервиса. Nil-получатель допустим: методы ничего не делают.
type Metrics struct {
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	authEvents   *prometheus.CounterVec
}

// NewMetrics регистрирует метрики в reg (обычно prometheus.DefaultRegisterer).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route pattern and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by method and route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		authEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_events_total",
			Help: "Authentication lifecycle events by event and result.",
		}, []string{"event", "result"}),
	}
}

// ObserveHTTP учитывает завершённый HTTP-запрос.
func (m *Metrics) ObserveHTTP(method, route string, status int, dur time.Duration) {
	if m == nil {
		return
	}

	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(dur.Seconds())
}

// AuthEvent учитывает событие жизненного цикла сессии (register/login/refresh/logout/authenticate).
func (m *Metrics) AuthEvent(event, result string) {
	if m == nil {
		return
	}

	m.authEvents.WithLabelValues(event, result).Inc()
}
