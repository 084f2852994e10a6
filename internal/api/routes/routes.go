// Package routes wires the HTTP surface of each binary: middleware chain,
// handler registration, health and metrics endpoints.
package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/pixel-money/pixel-money/internal/api/handlers"
	"github.com/pixel-money/pixel-money/internal/api/middleware"
	"github.com/pixel-money/pixel-money/pkg/logger"
	"github.com/pixel-money/pixel-money/pkg/metrics"
)

func newRouter(service string, log *logger.Logger) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(metrics.Middleware(service))
	router.Use(middleware.RequestSizeLimit())
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))

	return router
}

// SetupLedgerRoutes configures the ledger orchestrator's HTTP surface.
func SetupLedgerRoutes(ledgerHandler *handlers.LedgerHandler, healthHandler *handlers.HealthHandler, log *logger.Logger) *gin.Engine {
	router := newRouter("ledger", log)

	router.GET("/health", healthHandler.Health)
	router.GET("/metrics", metrics.Handler())

	router.POST("/deposit", ledgerHandler.Deposit)
	router.POST("/transfer/p2p", ledgerHandler.P2PTransfer)
	router.POST("/contribute", ledgerHandler.Contribute)
	router.POST("/transfer", ledgerHandler.InterbankTransfer)
	router.GET("/transactions/me", ledgerHandler.History)

	return router
}

// SetupBalanceRoutes configures the balance authority's HTTP surface.
func SetupBalanceRoutes(balanceHandler *handlers.BalanceHandler, healthHandler *handlers.HealthHandler, log *logger.Logger) *gin.Engine {
	router := newRouter("balance", log)

	router.GET("/health", healthHandler.Health)
	router.GET("/metrics", metrics.Handler())

	router.POST("/accounts", balanceHandler.CreateAccount)
	router.GET("/balance/:user_id", balanceHandler.GetBalance)
	router.POST("/balance/check", balanceHandler.CheckFunds)
	router.POST("/balance/credit", balanceHandler.Credit)
	router.POST("/balance/debit", balanceHandler.Debit)

	router.POST("/group_accounts", balanceHandler.CreateGroupAccount)
	router.GET("/group_balance/:group_id", balanceHandler.GetGroupBalance)
	router.POST("/group_balance/credit", balanceHandler.CreditGroup)
	router.POST("/group_balance/debit", balanceHandler.DebitGroup)

	return router
}
