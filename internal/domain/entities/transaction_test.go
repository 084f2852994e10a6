package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOnlyPendingMayTransition(t *testing.T) {
	terminals := []TransactionStatus{
		StatusCompleted,
		StatusFailedFunds,
		StatusFailedAccount,
		StatusFailedBalanceSvc,
		StatusFailedNetwork,
		StatusFailedUnknown,
		StatusFailedDebitPostConfirmation,
		StatusPendingConfirmation,
		FailedRemoteStatus(403),
		StatusFailedAccount.Reverted(),
		StatusFailedBalanceSvc.RevertFailed(),
	}

	for _, terminal := range terminals {
		assert.True(t, StatusPending.CanTransitionTo(terminal), "PENDING -> %s", terminal)
		assert.True(t, terminal.IsTerminal(), "%s must be terminal", terminal)
		for _, next := range terminals {
			assert.False(t, terminal.CanTransitionTo(next),
				"%s -> %s must be rejected", terminal, next)
		}
	}

	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusPending.CanTransitionTo(StatusPending))
}

func TestFailedRemoteStatus(t *testing.T) {
	assert.Equal(t, TransactionStatus("FAILED_REMOTE_404"), FailedRemoteStatus(404))
}

func TestStatusSuffixes(t *testing.T) {
	assert.Equal(t, TransactionStatus("FAILED_ACCOUNT_REVERTED"), StatusFailedAccount.Reverted())
	assert.Equal(t, TransactionStatus("FAILED_NETWORK_REVERT_FAILED"), StatusFailedNetwork.RevertFailed())
}

func TestNeedsReconciliation(t *testing.T) {
	assert.True(t, StatusPendingConfirmation.NeedsReconciliation())
	assert.True(t, StatusFailedDebitPostConfirmation.NeedsReconciliation())
	assert.True(t, StatusFailedBalanceSvc.RevertFailed().NeedsReconciliation())

	assert.False(t, StatusCompleted.NeedsReconciliation())
	assert.False(t, StatusFailedFunds.NeedsReconciliation())
	assert.False(t, StatusFailedAccount.Reverted().NeedsReconciliation())
}

func TestMetadataRoundTrip(t *testing.T) {
	encoded := EncodeMetadata(map[string]interface{}{"remote_transaction_id": "HAPPY-1"})
	decoded := DecodeMetadata(encoded)
	assert.Equal(t, "HAPPY-1", decoded["remote_transaction_id"])

	assert.Equal(t, "{}", EncodeMetadata(nil))
	assert.Empty(t, DecodeMetadata(""))
	assert.Empty(t, DecodeMetadata("not json"))
}
