// Package reconciliation runs the stranded-transaction sweeper: a cron
// job that surfaces records whose bookkeeping may disagree with the real
// money movement so operators can resolve them.
package reconciliation

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pixel-money/pixel-money/internal/domain/entities"
	"github.com/pixel-money/pixel-money/pkg/logger"
	"github.com/pixel-money/pixel-money/pkg/metrics"
)

const scanLimit = 500

// TransactionLister is the event store surface the sweeper needs.
type TransactionLister interface {
	ListByStatus(ctx context.Context, status entities.TransactionStatus, limit int) ([]*entities.Transaction, error)
}

// Worker periodically scans for transactions needing operator attention.
type Worker struct {
	store      TransactionLister
	schedule   string
	pendingAge time.Duration
	logger     *logger.Logger
	cron       *cron.Cron
}

func NewWorker(store TransactionLister, schedule string, pendingAge time.Duration, log *logger.Logger) *Worker {
	return &Worker{
		store:      store,
		schedule:   schedule,
		pendingAge: pendingAge,
		logger:     log,
		cron:       cron.New(),
	}
}

// Start schedules the sweep and runs one immediately so a restart does
// not wait a full interval before surfacing stuck records.
func (w *Worker) Start() error {
	if _, err := w.cron.AddFunc(w.schedule, w.Sweep); err != nil {
		return err
	}
	w.cron.Start()
	go w.Sweep()
	w.logger.Info("Reconciliation sweeper started", "schedule", w.schedule)
	return nil
}

// Shutdown stops the cron scheduler and waits for a running sweep.
func (w *Worker) Shutdown(timeout time.Duration) error {
	stopCtx := w.cron.Stop()
	select {
	case <-stopCtx.Done():
		return nil
	case <-time.After(timeout):
		return stopCtx.Err()
	}
}

// attentionStatuses are the terminal states where the ledger and the real
// world may disagree.
func attentionStatuses() []entities.TransactionStatus {
	statuses := []entities.TransactionStatus{
		entities.StatusPendingConfirmation,
		entities.StatusFailedDebitPostConfirmation,
	}
	for _, base := range []entities.TransactionStatus{
		entities.StatusFailedFunds,
		entities.StatusFailedAccount,
		entities.StatusFailedBalanceSvc,
		entities.StatusFailedNetwork,
		entities.StatusFailedUnknown,
	} {
		statuses = append(statuses, base.RevertFailed())
	}
	return statuses
}

// Sweep runs one reconciliation pass.
func (w *Worker) Sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	w.sweepStalePending(ctx)
	for _, status := range attentionStatuses() {
		w.sweepStatus(ctx, status)
	}
}

func (w *Worker) sweepStalePending(ctx context.Context) {
	txs, err := w.store.ListByStatus(ctx, entities.StatusPending, scanLimit)
	if err != nil {
		w.logger.Error("Reconciliation scan failed", "status", entities.StatusPending, "error", err)
		return
	}

	cutoff := time.Now().UTC().Add(-w.pendingAge)
	stale := 0
	for _, tx := range txs {
		if tx.UpdatedAt.After(cutoff) {
			continue
		}
		stale++
		w.logger.Error("Transaction stuck in PENDING",
			"transaction_id", tx.ID,
			"user_id", tx.UserID,
			"type", tx.Type,
			"amount", tx.Amount.String(),
			"age", time.Since(tx.UpdatedAt).String(),
			"requires_reconciliation", true)
	}
	metrics.ReconciliationFlagged.WithLabelValues(string(entities.StatusPending)).Set(float64(stale))
}

func (w *Worker) sweepStatus(ctx context.Context, status entities.TransactionStatus) {
	txs, err := w.store.ListByStatus(ctx, status, scanLimit)
	if err != nil {
		w.logger.Error("Reconciliation scan failed", "status", status, "error", err)
		return
	}

	for _, tx := range txs {
		w.logger.Error("Transaction requires operator reconciliation",
			"transaction_id", tx.ID,
			"user_id", tx.UserID,
			"type", tx.Type,
			"amount", tx.Amount.String(),
			"status", tx.Status,
			"metadata", tx.Metadata,
			"requires_reconciliation", true)
	}
	metrics.ReconciliationFlagged.WithLabelValues(string(status)).Set(float64(len(txs)))
}
