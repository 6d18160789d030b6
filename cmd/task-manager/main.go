package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pribylovaa/go-task-manager/internal/cache"
	"github.com/pribylovaa/go-task-manager/internal/config"
	tmhttp "github.com/pribylovaa/go-task-manager/internal/http"
	"github.com/pribylovaa/go-task-manager/internal/obs"
	"github.com/pribylovaa/go-task-manager/internal/service"
	"github.com/pribylovaa/go-task-manager/internal/storage"
	"github.com/pribylovaa/go-task-manager/internal/storage/minio"
	"github.com/pribylovaa/go-task-manager/internal/storage/mongo"
	"github.com/pribylovaa/go-task-manager/internal/storage/postgres"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	cfg := config.MustLoad(configPath)

	log := setupLogger(cfg.Env)
	slog.SetDefault(log)
	log.Info("starting task-manager", "env", cfg.Env, "db_driver", cfg.DB.Driver)

	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCancel()

	otel, err := obs.SetupOTel(rootCtx, cfg.OTel)
	if err != nil {
		log.Error("otel_init_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}

	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otel.Shutdown(ctx); err != nil {
			log.Warn("otel_shutdown_failed", slog.String("err", err.Error()))
		}
	}()

	st, err := openStorage(rootCtx, cfg.DB)
	if err != nil {
		log.Error("storage_init_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}

	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := st.Close(ctx); err != nil {
			log.Warn("storage_close_failed", slog.String("err", err.Error()))
		}
	}()

	log.Info("storage_initialized", slog.String("driver", cfg.DB.Driver))

	svc := service.New(st, cfg.Auth)

	metrics := obs.NewMetrics(prometheus.DefaultRegisterer)
	svc.SetMetrics(metrics)

	if cfg.Redis.URL != "" {
		rc, err := cache.NewRedisCache(rootCtx, cfg.Redis.URL, cfg.Redis.Prefix)
		if err != nil {
			log.Error("redis_init_failed", slog.String("err", err.Error()))
			os.Exit(1)
		}

		defer func() { _ = rc.Close() }()

		svc.SetRefreshCache(rc)
		log.Info("refresh_cache_enabled")
	}

	if cfg.S3.Endpoint != "" {
		av, err := minio.New(rootCtx, cfg.S3, cfg.Avatar)
		if err != nil {
			log.Error("minio_init_failed", slog.String("err", err.Error()))
			os.Exit(1)
		}

		svc.SetAvatars(av)
		log.Info("avatars_enabled", slog.String("bucket", cfg.S3.Bucket))
	}

	go svc.RunRefreshJanitor(rootCtx, cfg.Auth.JanitorPeriod)

	var ready int32 // 0 — not ready; 1 — ready

	handler := tmhttp.NewRouter(svc, tmhttp.Options{
		Logger:         log,
		Timeout:        cfg.Timeouts.Service,
		BasePath:       cfg.HTTP.BasePath,
		Metrics:        metrics,
		MetricsHandler: promhttp.Handler(),
		Ready:          func() bool { return atomic.LoadInt32(&ready) == 1 },
		Tracing:        cfg.OTel.Enable,
	})

	httpAddr := cfg.HTTP.Addr()
	httpSrv := &http.Server{
		Addr:              httpAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", httpAddr)
	if err != nil {
		log.Error("http_listen_failed", slog.String("addr", httpAddr), slog.String("err", err.Error()))
		os.Exit(1)
	}

	log.Info("http_listen_start", slog.String("addr", httpAddr))

	serveErrCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- err
		}
		close(serveErrCh)
	}()

	atomic.StoreInt32(&ready, 1)
	log.Info("service_ready")

	select {
	case <-rootCtx.Done():
		log.Info("shutdown_requested")
	case err := <-serveErrCh:
		if err != nil {
			log.Error("http_serve_failed", slog.String("err", err.Error()))
		}
	}

	atomic.StoreInt32(&ready, 0)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http_shutdown_incomplete", slog.String("err", err.Error()))
	} else {
		log.Info("http_stopped")
	}

	log.Info("service_stopped")
}

// openStorage подключает выбранный бэкенд. Для postgres миграции применяются до открытия пула.
func openStorage(ctx context.Context, db config.DBConfig) (storage.Storage, error) {
	switch db.Driver {
	case config.DriverPostgres:
		if err := postgres.Migrate(ctx, db.URL); err != nil {
			return nil, err
		}
		st, err := postgres.New(ctx, db.URL)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		st, err := mongo.New(ctx, db.URL)
		if err != nil {
			return nil, err
		}
		return st, nil
	}
}

func setupLogger(env string) *slog.Logger {
	switch env {
	case envLocal:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envDev:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envProd:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}
