package models

import "time"

// Wallet transaction types. The sign convention is: credit adds to the
// balance, debit subtracts.
const (
	WalletTxCredit = "CREDIT"
	WalletTxDebit  = "DEBIT"
)

// Wallet transaction sources for audit.
const (
	WalletSourceDistribution = "BOOKING_DISTRIBUTION"
	WalletSourceWithdrawal   = "WITHDRAWAL"
	WalletSourceEscrow       = "ESCROW_RELEASE"
	WalletSourceAdjustment   = "ADMIN_ADJUSTMENT"
)

// Wallet holds one user's balance in the smallest currency unit. The balance
// must always equal the signed sum of its WalletTransaction rows.
type Wallet struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Currency  string    `json:"currency"`
	Balance   int64     `json:"balance"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WalletTransaction is an immutable ledger row paired with every balance
// change, capturing before/after for audit.
type WalletTransaction struct {
	ID            int64     `json:"id"`
	WalletID      int64     `json:"wallet_id"`
	Reference     string    `json:"reference"` // uuid
	Type          string    `json:"type"`      // CREDIT | DEBIT
	Source        string    `json:"source"`
	Amount        int64     `json:"amount"`
	BalanceBefore int64     `json:"balance_before"`
	BalanceAfter  int64     `json:"balance_after"`
	Description   string    `json:"description"`
	CreatedAt     time.Time `json:"created_at"`
}
