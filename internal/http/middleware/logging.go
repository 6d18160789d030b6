package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pribylovaa/go-task-manager/internal/obs"
	logctx "github.com/pribylovaa/go-task-manager/internal/pkg/log"
)

// Logging кладёт в контекст логгер запроса (request_id, trace_id/span_id)
// и по завершении пишет одну запись "http". Уровень зависит от статуса:
// 5xx — Error, 4xx — Warn, остальное — Info.
func Logging(l *slog.Logger) Middleware {
	if l == nil {
		l = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			reqLog := obs.WithTrace(ctx, l)
			if rid := RequestIDFrom(ctx); rid != "" {
				reqLog = reqLog.With(slog.String("request_id", rid))
			}
			r = r.WithContext(logctx.Into(ctx, reqLog))

			sw := newStatusWriter(w)
			start := time.Now()
			next.ServeHTTP(sw, r)

			status := sw.code()
			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.Duration("dur", time.Since(start)),
				slog.Int64("bytes", sw.written),
			}
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				attrs = append(attrs, slog.String("route", rc.RoutePattern()))
			}

			reqLog.LogAttrs(r.Context(), levelFor(status), "http", attrs...)
		})
	}
}

func levelFor(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
