package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/pixel-money/pixel-money/internal/api/handlers"
	"github.com/pixel-money/pixel-money/internal/api/routes"
	"github.com/pixel-money/pixel-money/internal/domain/services/balance"
	"github.com/pixel-money/pixel-money/internal/infrastructure/config"
	"github.com/pixel-money/pixel-money/internal/infrastructure/database"
	"github.com/pixel-money/pixel-money/internal/infrastructure/repositories"
	"github.com/pixel-money/pixel-money/pkg/graceful"
	"github.com/pixel-money/pixel-money/pkg/logger"
)

// dbCloser adapts the sql pool to the graceful.Shutdowner interface.
type dbCloser struct {
	db *sqlx.DB
}

func (c dbCloser) Shutdown(time.Duration) error {
	return c.db.Close()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log := logger.New(cfg.LogLevel, cfg.Environment)
	defer log.Sync()

	if err := cfg.ValidateBalance(); err != nil {
		log.Fatal("Invalid configuration", "error", err)
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", "error", err)
	}

	if err := database.RunMigrations(cfg.Database.URL); err != nil {
		log.Fatal("Failed to run migrations", "error", err)
	}

	repo := repositories.NewAccountRepository(db)
	balanceService := balance.NewService(repo, cfg.Ledger.Currency, log)

	balanceHandler := handlers.NewBalanceHandler(balanceService, log)
	healthHandler := handlers.NewHealthHandler("balance", map[string]handlers.HealthCheck{
		"postgres": func(ctx context.Context) error {
			return db.PingContext(ctx)
		},
	})

	router := routes.SetupBalanceRoutes(balanceHandler, healthHandler, log)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	shutdown := graceful.NewShutdownManager(server, log)
	shutdown.Register(dbCloser{db: db})

	go func() {
		log.Info("Balance service listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", "error", err)
		}
	}()

	shutdown.WaitForShutdown()
}
