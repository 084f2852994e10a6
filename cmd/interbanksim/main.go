package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/pixel-money/pixel-money/internal/infrastructure/config"
	"github.com/pixel-money/pixel-money/internal/interbanksim"
	"github.com/pixel-money/pixel-money/pkg/graceful"
	"github.com/pixel-money/pixel-money/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log := logger.New(cfg.LogLevel, cfg.Environment)
	defer log.Sync()

	if cfg.Interbank.ExpectedAPIKey == "" {
		log.Fatal("Invalid configuration", "error", "missing required configuration: EXPECTED_API_KEY")
	}

	limit, err := decimal.NewFromString(cfg.Interbank.TransferLimit)
	if err != nil {
		log.Fatal("Invalid transfer limit", "value", cfg.Interbank.TransferLimit, "error", err)
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	handler := interbanksim.NewHandler(interbanksim.Config{
		ExpectedAPIKey: cfg.Interbank.ExpectedAPIKey,
		BankCode:       cfg.Interbank.BankCode,
		TransferLimit:  limit,
	}, log)

	router := interbanksim.SetupRoutes(handler, log)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	shutdown := graceful.NewShutdownManager(server, log)

	go func() {
		log.Info("Interbank simulator listening", "addr", server.Addr, "bank", cfg.Interbank.BankCode)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", "error", err)
		}
	}()

	shutdown.WaitForShutdown()
}
