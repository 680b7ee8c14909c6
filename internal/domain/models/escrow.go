package models

import "time"

// Escrow lifecycle.
const (
	EscrowPending   = "PENDING"
	EscrowFunded    = "FUNDED"
	EscrowCompleted = "COMPLETED"
	EscrowDisputed  = "DISPUTED"
	EscrowRefunded  = "REFUNDED"
	EscrowCancelled = "CANCELLED"
)

// Withdrawal lifecycle.
const (
	WithdrawalProcessing = "PROCESSING"
	WithdrawalCompleted  = "COMPLETED"
	WithdrawalRejected   = "REJECTED"
)

// EscrowTransaction holds funds in transit between two parties.
type EscrowTransaction struct {
	ID           int64      `json:"id"`
	BuyerID      int64      `json:"buyer_id"`
	SellerID     int64      `json:"seller_id"`
	Amount       int64      `json:"amount"` // smallest currency unit
	Currency     string     `json:"currency"`
	Status       string     `json:"status"`
	ProviderTxID string     `json:"provider_tx_id"`
	FundedAt     *time.Time `json:"funded_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// WithdrawalRequest tracks a payout of wallet funds to mobile money.
type WithdrawalRequest struct {
	ID           int64      `json:"id"`
	UserID       int64      `json:"user_id"`
	Amount       int64      `json:"amount"`
	Currency     string     `json:"currency"`
	Status       string     `json:"status"`
	ProviderTxID string     `json:"provider_tx_id"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}
