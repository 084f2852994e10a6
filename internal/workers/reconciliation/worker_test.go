package reconciliation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/pixel-money/pixel-money/internal/domain/entities"
	"github.com/pixel-money/pixel-money/pkg/logger"
)

type fakeLister struct {
	mu      sync.Mutex
	byState map[entities.TransactionStatus][]*entities.Transaction
	queried []entities.TransactionStatus
}

func (f *fakeLister) ListByStatus(ctx context.Context, status entities.TransactionStatus, limit int) ([]*entities.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queried = append(f.queried, status)
	return f.byState[status], nil
}

func TestSweepQueriesEveryAttentionStatus(t *testing.T) {
	lister := &fakeLister{byState: map[entities.TransactionStatus][]*entities.Transaction{}}
	w := NewWorker(lister, "@every 5m", 15*time.Minute, logger.NewNop())

	w.Sweep()

	assert.Contains(t, lister.queried, entities.StatusPending)
	assert.Contains(t, lister.queried, entities.StatusPendingConfirmation)
	assert.Contains(t, lister.queried, entities.StatusFailedDebitPostConfirmation)
	assert.Contains(t, lister.queried, entities.StatusFailedFunds.RevertFailed())
	assert.Contains(t, lister.queried, entities.StatusFailedBalanceSvc.RevertFailed())
	assert.Contains(t, lister.queried, entities.StatusFailedAccount.RevertFailed())
	assert.Contains(t, lister.queried, entities.StatusFailedNetwork.RevertFailed())
	assert.Contains(t, lister.queried, entities.StatusFailedUnknown.RevertFailed())
}

func TestSweepIgnoresFreshPending(t *testing.T) {
	old := &entities.Transaction{
		ID:        uuid.New(),
		Status:    entities.StatusPending,
		UpdatedAt: time.Now().UTC().Add(-time.Hour),
	}
	fresh := &entities.Transaction{
		ID:        uuid.New(),
		Status:    entities.StatusPending,
		UpdatedAt: time.Now().UTC(),
	}
	lister := &fakeLister{byState: map[entities.TransactionStatus][]*entities.Transaction{
		entities.StatusPending: {old, fresh},
	}}
	w := NewWorker(lister, "@every 5m", 15*time.Minute, logger.NewNop())

	// Must not panic and must only flag the stale record; the flagged
	// count lands in the gauge, which is process-global, so this test
	// just exercises the filter path.
	w.Sweep()

	assert.Contains(t, lister.queried, entities.StatusPending)
}

func TestAttentionStatusesCoverReconciliationStates(t *testing.T) {
	for _, status := range attentionStatuses() {
		assert.True(t, status.NeedsReconciliation(), "%s", status)
	}
}
