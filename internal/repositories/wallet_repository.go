package repositories

import (
	"database/sql"
	"errors"
	"fmt"

	intconfig "marketplace/internal/config"
	"marketplace/internal/domain"
	"marketplace/internal/domain/models"

	"github.com/google/uuid"
)

// WalletRepository keeps the money invariants:
//   - no balance update without a wallet_transactions row
//   - wallet_transactions is append-only
//   - credit/debit run inside the caller's transaction with the wallet row
//     locked, so balance_after is always consistent
type WalletRepository struct {
	DB *sql.DB
}

func (r WalletRepository) db() *sql.DB {
	if r.DB != nil {
		return r.DB
	}
	return intconfig.DB
}

func (r WalletRepository) GetByUserID(userID int64) (models.Wallet, error) {
	if userID <= 0 {
		return models.Wallet{}, domain.ValidationError{Field: "user_id", Msg: "id tidak valid"}
	}
	var w models.Wallet
	err := r.db().QueryRow(`
		SELECT id, user_id, COALESCE(currency,''), COALESCE(balance,0), updated_at
		FROM wallets WHERE user_id=? LIMIT 1`, userID).
		Scan(&w.ID, &w.UserID, &w.Currency, &w.Balance, &w.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Wallet{}, domain.NotFoundError{Resource: "wallet"}
	}
	return w, err
}

// LockOrCreate returns the user's wallet under a row lock, creating it first
// when missing.
func (r WalletRepository) LockOrCreate(tx *sql.Tx, userID int64, currency string) (models.Wallet, error) {
	if userID <= 0 {
		return models.Wallet{}, domain.ValidationError{Field: "user_id", Msg: "id tidak valid"}
	}

	lock := func() (models.Wallet, error) {
		var w models.Wallet
		err := tx.QueryRow(`
			SELECT id, user_id, COALESCE(currency,''), COALESCE(balance,0), updated_at
			FROM wallets WHERE user_id=? LIMIT 1 FOR UPDATE`, userID).
			Scan(&w.ID, &w.UserID, &w.Currency, &w.Balance, &w.UpdatedAt)
		return w, err
	}

	w, err := lock()
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := tx.Exec(`
			INSERT INTO wallets (user_id, currency, balance, updated_at)
			VALUES (?,?,0,NOW())`, userID, currency); err != nil {
			return models.Wallet{}, fmt.Errorf("create wallet: %w", err)
		}
		w, err = lock()
	}
	if err != nil {
		return models.Wallet{}, fmt.Errorf("lock wallet: %w", err)
	}
	if w.Currency != "" && currency != "" && w.Currency != currency {
		return models.Wallet{}, domain.ConflictError{Resource: "wallet", Msg: "currency tidak cocok"}
	}
	return w, nil
}

// Credit adds amount to a locked wallet and appends the paired ledger row.
func (r WalletRepository) Credit(tx *sql.Tx, w models.Wallet, amount int64, source, description string) (models.WalletTransaction, error) {
	if amount <= 0 {
		return models.WalletTransaction{}, domain.ValidationError{Field: "amount", Msg: "harus positif"}
	}
	return r.apply(tx, w, amount, models.WalletTxCredit, source, description)
}

// Debit subtracts amount from a locked wallet; balance can not go negative.
func (r WalletRepository) Debit(tx *sql.Tx, w models.Wallet, amount int64, source, description string) (models.WalletTransaction, error) {
	if amount <= 0 {
		return models.WalletTransaction{}, domain.ValidationError{Field: "amount", Msg: "harus positif"}
	}
	if w.Balance < amount {
		return models.WalletTransaction{}, domain.ConflictError{Resource: "wallet", Msg: "saldo tidak cukup"}
	}
	return r.apply(tx, w, -amount, models.WalletTxDebit, source, description)
}

func (r WalletRepository) apply(tx *sql.Tx, w models.Wallet, delta int64, txType, source, description string) (models.WalletTransaction, error) {
	before := w.Balance
	after := before + delta

	res, err := tx.Exec(`
		UPDATE wallets SET balance=?, updated_at=NOW()
		WHERE id=? AND balance=?`, after, w.ID, before)
	if err != nil {
		return models.WalletTransaction{}, fmt.Errorf("update wallet balance: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// lock was not held or balance moved underneath us
		return models.WalletTransaction{}, domain.ConflictError{Resource: "wallet", Msg: "balance berubah saat update"}
	}

	amount := delta
	if amount < 0 {
		amount = -amount
	}
	entry := models.WalletTransaction{
		WalletID:      w.ID,
		Reference:     uuid.NewString(),
		Type:          txType,
		Source:        source,
		Amount:        amount,
		BalanceBefore: before,
		BalanceAfter:  after,
		Description:   description,
	}
	if _, err := tx.Exec(`
		INSERT INTO wallet_transactions
			(wallet_id, reference, type, source, amount, balance_before, balance_after, description, created_at)
		VALUES (?,?,?,?,?,?,?,?,NOW())`,
		entry.WalletID,
		entry.Reference,
		entry.Type,
		entry.Source,
		entry.Amount,
		entry.BalanceBefore,
		entry.BalanceAfter,
		entry.Description,
	); err != nil {
		return models.WalletTransaction{}, fmt.Errorf("insert wallet transaction: %w", err)
	}
	return entry, nil
}

// SumTransactions returns the signed sum of a wallet's ledger rows. Used by
// the audit check: it must always equal the wallet balance.
func (r WalletRepository) SumTransactions(walletID int64) (int64, error) {
	var sum int64
	err := r.db().QueryRow(`
		SELECT COALESCE(SUM(CASE WHEN type=? THEN amount ELSE -amount END),0)
		FROM wallet_transactions
		WHERE wallet_id=?`, models.WalletTxCredit, walletID).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum wallet transactions: %w", err)
	}
	return sum, nil
}
