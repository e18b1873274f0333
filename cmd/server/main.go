package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"didhub/internal/content"
	"didhub/internal/discovery"
	"didhub/internal/ledger"
	"didhub/internal/platform/config"
	"didhub/internal/platform/httpserver"
	"didhub/internal/platform/kafka"
	"didhub/internal/platform/logger"
	"didhub/internal/platform/metrics"
	redisplatform "didhub/internal/platform/redis"
	"didhub/internal/profile"
	"didhub/internal/resolver"
	httptransport "didhub/internal/transport/http"
	"didhub/pkg/platform/audit"
)

// main wires dependencies and owns the server lifecycle. Business logic lives
// in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(slog.LevelInfo)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// Content store: the gateway when configured, in-memory otherwise so a
	// bare `go run` still serves the full API.
	var store content.Store
	if cfg.Gateway.BaseURL != "" {
		gw, err := content.NewGatewayClient(cfg.Gateway, log)
		if err != nil {
			log.Error("content gateway setup failed", "error", err)
			os.Exit(1)
		}
		store = gw
	} else {
		log.Warn("no content gateway configured, using in-memory store")
		store = content.NewMemoryStore()
	}

	// Ledger client: the real chain when an RPC URL is set, in-memory otherwise.
	var client ledger.Client
	if cfg.Ledger.RPCURL != "" {
		eth, err := ledger.DialEth(ctx, cfg.Ledger)
		if err != nil {
			log.Error("ledger dial failed", "error", err)
			os.Exit(1)
		}
		defer eth.Close()
		client = eth
	} else {
		log.Warn("no ledger RPC configured, using in-memory ledger")
		client = ledger.NewMemoryLedger()
	}

	producer, err := kafka.New(cfg.Kafka, log)
	if err != nil {
		log.Error("kafka setup failed", "error", err)
		os.Exit(1)
	}
	var auditor audit.Publisher
	if producer != nil {
		defer producer.Close()
		auditor = audit.NewKafkaPublisher(producer, log)
	}

	rds, err := redisplatform.New(cfg.Redis)
	if err != nil {
		log.Error("redis setup failed", "error", err)
		os.Exit(1)
	}
	var pointer discovery.PointerStore
	if rds != nil {
		defer rds.Close()
		pointer = discovery.NewRedisPointerStore(rds.Client, cfg.Redis.PointerKey)
	} else {
		log.Warn("no redis configured, registry pointer is process-local")
		pointer = discovery.NewMemoryPointerStore()
	}

	var checkpoints profile.CheckpointStore
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.New(ctx, cfg.Postgres.URL)
		if err != nil {
			log.Error("postgres setup failed", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		pg := profile.NewPostgresCheckpointStore(pool)
		if err := pg.Migrate(ctx); err != nil {
			log.Error("checkpoint migration failed", "error", err)
			os.Exit(1)
		}
		checkpoints = pg
	} else {
		log.Warn("no postgres configured, checkpoints are process-local")
		checkpoints = profile.NewMemoryCheckpointStore()
	}

	controller, err := ledger.New(client, cfg.Ledger.Network,
		ledger.WithLogger(log),
		ledger.WithAuditPublisher(auditor),
		ledger.WithMetrics(m),
		ledger.WithPollInterval(cfg.Ledger.PollInterval),
	)
	if err != nil {
		log.Error("ownership controller setup failed", "error", err)
		os.Exit(1)
	}

	res, err := resolver.New(controller, store,
		resolver.WithLogger(log),
		resolver.WithMetrics(m),
		resolver.WithLedgerWindow(cfg.Ledger.CallTimeout),
	)
	if err != nil {
		log.Error("resolver setup failed", "error", err)
		os.Exit(1)
	}

	registry, err := discovery.New(pointer, store,
		discovery.WithLogger(log),
		discovery.WithAuditPublisher(auditor),
	)
	if err != nil {
		log.Error("discovery registry setup failed", "error", err)
		os.Exit(1)
	}

	profiles, err := profile.New(controller, res, registry, store, checkpoints,
		profile.WithLogger(log),
		profile.WithAuditPublisher(auditor),
		profile.WithMetrics(m),
	)
	if err != nil {
		log.Error("profile orchestrator setup failed", "error", err)
		os.Exit(1)
	}

	handler := httptransport.NewHandler(controller, res, profiles, registry, log)
	srv := httpserver.New(cfg.Server.Addr, httptransport.NewRouter(handler))

	go func() {
		log.Info("starting didhub", "addr", cfg.Server.Addr, "network", cfg.Ledger.Network)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	log.Info("didhub stopped")
}
