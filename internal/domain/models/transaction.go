package models

import "time"

// Transaction types as reported by the aggregator.
const (
	TxTypeDeposit = "DEPOSIT"
	TxTypePayout  = "PAYOUT"
	TxTypeRefund  = "REFUND"
)

// Provider transaction statuses. SUBMITTED/ACCEPTED are in flight and carry
// no domain effect; the rest are terminal and applied exactly once.
const (
	TxStatusSubmitted = "SUBMITTED"
	TxStatusAccepted  = "ACCEPTED"
	TxStatusCompleted = "COMPLETED"
	TxStatusFailed    = "FAILED"
	TxStatusRejected  = "REJECTED"
	TxStatusCancelled = "CANCELLED"
)

// IsTerminalTxStatus reports whether a provider status ends the lifecycle.
func IsTerminalTxStatus(status string) bool {
	switch status {
	case TxStatusCompleted, TxStatusFailed, TxStatusRejected, TxStatusCancelled:
		return true
	default:
		return false
	}
}

// ProviderTransaction is the canonical ledger row for one aggregator
// operation. Created once (first callback or initiation), then only updated.
type ProviderTransaction struct {
	ID                int64      `json:"id"`
	TransactionID     string     `json:"transaction_id"` // provider-assigned, unique
	TransactionType   string     `json:"transaction_type"`
	Status            string     `json:"status"`
	RequestedAmount   string     `json:"requested_amount"` // smallest currency unit, as sent by provider
	DepositedAmount   string     `json:"deposited_amount"` // actual settled amount, may differ
	Currency          string     `json:"currency"`
	Country           string     `json:"country"`
	Correspondent     string     `json:"correspondent"`
	InternalReference string     `json:"internal_reference"`
	FailureCode       string     `json:"failure_code"`
	FailureMessage    string     `json:"failure_message"`
	CallbackReceived  bool       `json:"callback_received"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Terminal reports whether the ledger row already reached a final state.
func (t ProviderTransaction) Terminal() bool {
	return IsTerminalTxStatus(t.Status)
}
