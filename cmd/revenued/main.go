package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/splitpot/revenue"
	"github.com/splitpot/revenue/audithook"
	"github.com/splitpot/revenue/config"
	"github.com/splitpot/revenue/httpapi"
	"github.com/splitpot/revenue/observability"
	"github.com/splitpot/revenue/store"
	"github.com/splitpot/revenue/store/memory"
	"github.com/splitpot/revenue/store/mongo"
	"github.com/splitpot/revenue/store/postgres"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load() //nolint:errcheck // a missing .env file is fine

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.LoadFromEnv()
	if err != nil {
		logger.Error("load config", "err", err)
		os.Exit(1)
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("open store", "driver", cfg.StoreDriver, "err", err)
		os.Exit(1)
	}

	opts := []revenue.Option{
		revenue.WithLogger(logger),
		revenue.WithSnapshotCacheTTL(cfg.SnapshotCacheTTL),
		revenue.WithJanitorInterval(cfg.JanitorInterval),
		revenue.WithPlugin(audithook.NewLogging(logger)),
	}
	if cfg.MetricsEnabled {
		opts = append(opts, revenue.WithPlugin(
			observability.NewMetricsExtension(prometheus.DefaultRegisterer),
		))
	}

	eng := revenue.New(st, opts...)
	if err := eng.Start(ctx); err != nil {
		logger.Error("engine start failed", "err", err)
		os.Exit(1)
	}
	defer func() {
		if err := eng.Stop(); err != nil {
			logger.Error("engine stop failed", "err", err)
		}
	}()

	verifier := httpapi.NewStaticVerifier(map[string]httpapi.Identity{
		cfg.OwnerToken: {Subject: "owner", Role: httpapi.RoleOwner},
		cfg.AdminToken: {Subject: "admin", Role: httpapi.RoleAdmin},
	})
	apiServer := httpapi.NewServer(eng, verifier,
		httpapi.WithServerLogger(logger),
		httpapi.WithRequestTimeout(cfg.RequestTimeout),
	)

	mux := http.NewServeMux()
	mux.Handle("/", apiServer.Handler())
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("revenued listening", "addr", cfg.Addr, "driver", cfg.StoreDriver)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}

func openStore(ctx context.Context, cfg config.ServerConfig) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		return postgres.Open(cfg.DatabaseURL), nil
	case config.DriverMongo:
		st, err := mongo.Open(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return memory.New(), nil
	}
}
