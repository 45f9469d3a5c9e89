// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal escrow packages; everything here is
// constructor-injected, including the store instance (no ambient globals).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"escrowd/internal/escrow/handler"
	"escrowd/internal/escrow/metrics"
	"escrowd/internal/escrow/service"
	"escrowd/internal/escrow/store"
	filestore "escrowd/internal/escrow/store/file"
	memorystore "escrowd/internal/escrow/store/memory"
	postgresstore "escrowd/internal/escrow/store/postgres"
	redisstore "escrowd/internal/escrow/store/redis"
	"escrowd/internal/platform/config"
	"escrowd/internal/platform/httpserver"
	"escrowd/internal/platform/logger"
	platformpostgres "escrowd/internal/platform/postgres"
	platformredis "escrowd/internal/platform/redis"
	"escrowd/pkg/platform/audit"
	auditkafka "escrowd/pkg/platform/audit/store/kafka"
	auditmemory "escrowd/pkg/platform/audit/store/memory"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)
	ctx := context.Background()

	health := func(context.Context) error { return nil }
	var closers []func()

	escrowStore, storeHealth, storeClosers, err := buildStore(ctx, cfg, log)
	if err != nil {
		log.Error("store init failed", "backend", string(cfg.Storage.Backend), "error", err.Error())
		os.Exit(1)
	}
	if storeHealth != nil {
		health = storeHealth
	}
	closers = append(closers, storeClosers...)

	auditPub, auditClose, err := buildAudit(ctx, cfg, log)
	if err != nil {
		log.Error("audit init failed", "error", err.Error())
		os.Exit(1)
	}
	if auditClose != nil {
		closers = append(closers, auditClose)
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	svc := service.New(escrowStore, auditPub, m)

	router := chi.NewRouter()
	handler.New(svc, log).Register(router)
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := health(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	router.Handle("/metrics", promhttp.Handler())

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting escrowd",
		"addr", cfg.Addr,
		"storage_backend", string(cfg.Storage.Backend),
	)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err.Error())
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err.Error())
	}
	for _, closeFn := range closers {
		closeFn()
	}
}

// buildStore selects the escrow store backend from config.
func buildStore(ctx context.Context, cfg config.Config, log *slog.Logger) (store.Store, func(context.Context) error, []func(), error) {
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		return memorystore.New(), nil, nil, nil

	case config.BackendFile:
		paths := append([]string{cfg.Storage.SnapshotPath}, cfg.Storage.ExtraSnapshotPaths...)
		st, err := filestore.New(log, paths...)
		return st, nil, nil, err

	case config.BackendPostgres:
		db, err := platformpostgres.Open(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, nil, nil, err
		}
		st := postgresstore.New(db)
		if err := st.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		health := func(ctx context.Context) error { return db.PingContext(ctx) }
		return st, health, []func(){func() { db.Close() }}, nil

	case config.BackendRedis:
		client, err := platformredis.New(cfg.Redis)
		if err != nil {
			return nil, nil, nil, err
		}
		if client == nil {
			return nil, nil, nil, fmt.Errorf("redis backend selected but ESCROWD_REDIS_URL is empty")
		}
		health := func(ctx context.Context) error { return client.Health(ctx) }
		return redisstore.New(client.Client), health, []func(){func() { client.Close() }}, nil
	}
	return nil, nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
}

// buildAudit wires the audit trail: Kafka when brokers are configured, an
// in-process store otherwise.
func buildAudit(ctx context.Context, cfg config.Config, log *slog.Logger) (*audit.Publisher, func(), error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return audit.NewPublisher(auditmemory.New()), nil, nil
	}
	sink, err := auditkafka.New(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
	if err != nil {
		return nil, nil, err
	}
	return audit.NewPublisher(sink), sink.Close, nil
}
