package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pribylovaa/go-task-manager/internal/obs"
)

// Metrics учитывает запросы в http_requests_total и http_request_duration_seconds.
// Метка route — шаблон chi (например, /api/tasks/{id}), а не сырой путь,
// поэтому кардинальность ограничена числом маршрутов.
func Metrics(m *obs.Metrics) Middleware {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := newStatusWriter(w)
			start := time.Now()
			next.ServeHTTP(sw, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if p := rctx.RoutePattern(); p != "" {
					route = p
				}
			}

			m.ObserveHTTP(r.Method, route, sw.code(), time.Since(start))
		})
	}
}
