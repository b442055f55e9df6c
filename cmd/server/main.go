package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/sync/errgroup"

	"custodia/internal/authz"
	"custodia/internal/derive"
	"custodia/internal/identitytoken"
	"custodia/internal/ledger"
	"custodia/internal/platform/config"
	"custodia/internal/platform/httpserver"
	"custodia/internal/platform/logger"
	"custodia/internal/platform/metrics"
	"custodia/internal/platform/redis"
	registrycache "custodia/internal/registry/cache"
	registrymetrics "custodia/internal/registry/metrics"
	registryservice "custodia/internal/registry/service"
	registrystore "custodia/internal/registry/store"
	httptransport "custodia/internal/transport/http"
	vaultmetrics "custodia/internal/vault/metrics"
	vaultservice "custodia/internal/vault/service"
	vaultstore "custodia/internal/vault/store"
	"custodia/pkg/domain"
	"custodia/pkg/platform/audit"
	auditpublisher "custodia/pkg/platform/audit/publisher"
	auditkafka "custodia/pkg/platform/audit/publishers/kafka"
	auditmemory "custodia/pkg/platform/audit/store/memory"
)

// main wires the dependency graph and owns the process lifecycle. Business
// logic lives in the internal services.
func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	log := logger.New()

	program, err := domain.ParseIdentity(cfg.ProgramID)
	if err != nil {
		return fmt.Errorf("program identity: %w", err)
	}
	deriver := derive.New(program)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Persistence: Postgres when a DSN is configured, in-process otherwise.
	var registries registryservice.Store
	var vaults vaultservice.Store
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("pgx", cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}

		registryPg := registrystore.NewPostgres(db)
		vaultPg := vaultstore.NewPostgres(db)
		if err := registryPg.EnsureSchema(ctx); err != nil {
			return err
		}
		if err := vaultPg.EnsureSchema(ctx); err != nil {
			return err
		}
		registries = registryPg
		vaults = vaultPg
		log.Info("using postgres stores")
	} else {
		registries = registrystore.NewInMemory()
		vaults = vaultstore.NewInMemory()
		log.Warn("no postgres DSN configured, state is in-process only")
	}

	// Registry cache in front of the store when Redis is configured.
	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		registries = registrycache.New(registries, redisClient.Client, log)
		log.Info("registry cache enabled")
	}

	// Audit pipeline: Kafka when brokers are configured, in-memory otherwise.
	var auditStore audit.Store
	if len(cfg.KafkaBrokers) > 0 {
		kafkaStore, err := auditkafka.New(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return fmt.Errorf("kafka: %w", err)
		}
		defer kafkaStore.Close()
		auditStore = kafkaStore
		log.Info("audit pipeline producing to kafka", "topic", cfg.KafkaTopic)
	} else {
		auditStore = auditmemory.NewInMemoryStore()
		log.Warn("no kafka brokers configured, audit events stay in-process")
	}
	publisher := auditpublisher.NewPublisher(auditStore, auditpublisher.WithAsyncBuffer(256))
	defer publisher.Close()

	gate := authz.NewGate(registries, deriver)
	registrySvc := registryservice.New(registries, deriver,
		registryservice.WithLogger(log),
		registryservice.WithMetrics(registrymetrics.New()),
		registryservice.WithAuditEmitter(publisher),
	)
	// The in-process ledger stands in until an external ledger client is
	// wired; balances do not survive restarts.
	vaultSvc := vaultservice.New(vaults, gate, deriver, ledger.NewMemory(),
		vaultservice.WithLogger(log),
		vaultservice.WithMetrics(vaultmetrics.New()),
		vaultservice.WithAuditEmitter(publisher),
	)

	router := httptransport.NewRouter(httptransport.Dependencies{
		Logger:   log,
		Metrics:  metrics.New(),
		Verifier: identitytoken.NewVerifier(),
		Registry: registrySvc,
		Vault:    vaultSvc,
	})
	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("custody engine listening", "addr", cfg.Addr, "program", program.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		return httpserver.Shutdown(srv, cfg.ShutdownTimeout)
	})
	return g.Wait()
}
