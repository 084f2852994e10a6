package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/pixel-money/pixel-money/internal/adapters/balanceauthority"
	"github.com/pixel-money/pixel-money/internal/adapters/directory"
	"github.com/pixel-money/pixel-money/internal/adapters/interbank"
	"github.com/pixel-money/pixel-money/internal/api/handlers"
	"github.com/pixel-money/pixel-money/internal/api/routes"
	"github.com/pixel-money/pixel-money/internal/domain/services/ledger"
	"github.com/pixel-money/pixel-money/internal/infrastructure/cache"
	"github.com/pixel-money/pixel-money/internal/infrastructure/config"
	"github.com/pixel-money/pixel-money/internal/infrastructure/eventstore"
	"github.com/pixel-money/pixel-money/internal/workers/reconciliation"
	"github.com/pixel-money/pixel-money/pkg/graceful"
	"github.com/pixel-money/pixel-money/pkg/logger"
)

func reconciliationWorker(store *eventstore.TransactionStore, cfg *config.Config, log *logger.Logger) *reconciliation.Worker {
	return reconciliation.NewWorker(
		store,
		cfg.Reconciliation.Schedule,
		time.Duration(cfg.Reconciliation.PendingAgeMinutes)*time.Minute,
		log)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log := logger.New(cfg.LogLevel, cfg.Environment)
	defer log.Sync()

	if err := cfg.ValidateLedger(); err != nil {
		log.Fatal("Invalid configuration", "error", err)
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	session, err := eventstore.Connect(cfg.Cassandra, log)
	if err != nil {
		log.Fatal("Failed to connect to Cassandra", "error", err)
	}
	if err := eventstore.EnsureSchema(session, cfg.Cassandra); err != nil {
		log.Fatal("Failed to ensure event store schema", "error", err)
	}
	store := eventstore.NewTransactionStore(session, cfg.Cassandra.Keyspace, log)

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.Connect(cfg.Redis, log)
		if err != nil {
			// The cache is an optimization; the directory lookup works
			// without it.
			log.Warn("Redis unavailable, recipient cache disabled", "error", err)
			redisClient = nil
		}
	}

	balanceClient := balanceauthority.NewClient(
		cfg.Ledger.BalanceServiceURL,
		time.Duration(cfg.Ledger.BalanceTimeoutSeconds)*time.Second,
		log)
	directoryClient := directory.NewClient(
		cfg.Ledger.DirectoryServiceURL,
		time.Duration(cfg.Ledger.DirectoryTimeoutSeconds)*time.Second,
		redisClient,
		time.Duration(cfg.Ledger.RecipientCacheTTL)*time.Second,
		log)
	interbankClient := interbank.NewClient(
		cfg.Ledger.InterbankServiceURL,
		cfg.Ledger.InterbankAPIKey,
		cfg.Ledger.OriginBank,
		time.Duration(cfg.Ledger.InterbankTimeoutSeconds)*time.Second,
		log)

	ledgerService := ledger.NewService(store, balanceClient, directoryClient, interbankClient,
		ledger.Config{
			Currency:       cfg.Ledger.Currency,
			SupportedBanks: cfg.Ledger.SupportedBanks,
			HistoryLimit:   cfg.Ledger.HistoryLimit,
		}, log)

	ledgerHandler := handlers.NewLedgerHandler(ledgerService, log)
	healthHandler := handlers.NewHealthHandler("ledger", map[string]handlers.HealthCheck{
		"cassandra": store.HealthCheck,
	})

	router := routes.SetupLedgerRoutes(ledgerHandler, healthHandler, log)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	shutdown := graceful.NewShutdownManager(server, log)
	shutdown.Register(eventstore.SessionCloser{Session: session})
	if redisClient != nil {
		shutdown.Register(cache.ClientCloser{Client: redisClient})
	}

	if cfg.Reconciliation.Enabled {
		worker := reconciliationWorker(store, cfg, log)
		if err := worker.Start(); err != nil {
			log.Fatal("Failed to start reconciliation sweeper", "error", err)
		}
		shutdown.Register(worker)
	}

	go func() {
		log.Info("Ledger service listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", "error", err)
		}
	}()

	shutdown.WaitForShutdown()
}
