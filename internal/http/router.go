package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/pribylovaa/go-task-manager/internal/http/handlers"
	"github.com/pribylovaa/go-task-manager/internal/http/middleware"
	"github.com/pribylovaa/go-task-manager/internal/obs"
)

// Service — всё, что нужно роутеру от бизнес-слоя: операции хендлеров
// и проверка access-токена для защищённых маршрутов.
type Service interface {
	handlers.Service
	middleware.Authenticator
}

// Options — параметры сборки HTTP-роутера.
type Options struct {
	Logger   *slog.Logger
	Timeout  time.Duration
	BasePath string // например, "/api"; если пустой — роуты регистрируются на корне.

	Metrics        *obs.Metrics // nil — метрики запросов не собираются
	MetricsHandler http.Handler // nil — /metrics не публикуется
	Ready          func() bool  // nil — /healthz всегда ok
	Tracing        bool         // оборачивать ли роутер в otelhttp
}

// NewRouter собирает http.Handler с chi и подключёнными middleware/роутами.
func NewRouter(svc Service, opts Options) http.Handler {
	root := chi.NewRouter()
	root.Use(middleware.Recover())

	registerOperational(root, opts)

	api := chi.NewRouter()
	// Middleware (внешний -> внутренний).
	api.Use(
		middleware.RequestID(),          // X-Request-Id (до логирования!)
		middleware.Logging(opts.Logger), // request-scoped логгер в контексте
		middleware.Metrics(opts.Metrics),
		middleware.Timeout(opts.Timeout), // общий дедлайн запроса
	)

	h := handlers.New(svc)
	registerRoutes(api, h, middleware.AuthBearer(svc))

	basePath := opts.BasePath
	if basePath == "" {
		basePath = "/"
	}
	root.Mount(basePath, api)

	if opts.Tracing {
		return otelhttp.NewHandler(root, "http.server",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	}

	return root
}

// registerRoutes — единая точка регистрации всех REST-эндпойнтов.
func registerRoutes(r chi.Router, h *handlers.Handlers, auth middleware.Middleware) {
	// auth
	r.Post("/auth/register", h.Register)
	r.Post("/auth/login", h.Login)
	r.Post("/auth/refresh", h.Refresh)
	r.Post("/auth/logout", h.Logout)

	r.Group(func(r chi.Router) {
		r.Use(auth)

		// users
		r.Get("/users/me", h.Me)
		r.Post("/users/me/avatar/presign", h.AvatarPresign)
		r.Post("/users/me/avatar/confirm", h.AvatarConfirm)

		// projects
		r.Get("/projects", h.ListProjects)
		r.Post("/projects", h.CreateProject)
		r.Get("/projects/{id}", h.GetProject)
		r.Patch("/projects/{id}", h.UpdateProject)
		r.Delete("/projects/{id}", h.DeleteProject)
		r.Post("/projects/{id}/members", h.AddMember)
		r.Delete("/projects/{id}/members/{uid}", h.RemoveMember)
		r.Get("/projects/{id}/activity", h.ListActivity)

		// tasks
		r.Get("/tasks", h.ListTasks)
		r.Post("/tasks", h.CreateTask)
		r.Get("/tasks/{id}", h.GetTask)
		r.Patch("/tasks/{id}", h.UpdateTask)
		r.Delete("/tasks/{id}", h.DeleteTask)
		r.Patch("/tasks/{id}/toggle", h.ToggleTask)
	})
}

// registerOperational — liveness/readiness/metrics вне BasePath и без аутентификации.
func registerOperational(r chi.Router, opts Options) {
	r.Get("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if opts.Ready == nil || opts.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
			return
		}
		http.Error(w, "not ready", http.StatusServiceUnavailable)
	})

	if opts.MetricsHandler != nil {
		r.Handle("/metrics", opts.MetricsHandler)
	}
}
