package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	intconfig "marketplace/internal/config"
	"marketplace/internal/domain"
	"marketplace/internal/domain/models"
)

// EscrowRepository resolves escrow transactions and withdrawal requests, the
// two non-booking targets of an internal reference.
type EscrowRepository struct {
	DB *sql.DB
}

func (r EscrowRepository) db() *sql.DB {
	if r.DB != nil {
		return r.DB
	}
	return intconfig.DB
}

func (r EscrowRepository) GetEscrowByID(id int64) (models.EscrowTransaction, error) {
	if id <= 0 {
		return models.EscrowTransaction{}, domain.ValidationError{Field: "escrow_id", Msg: "id tidak valid"}
	}
	var e models.EscrowTransaction
	var fundedAt sql.NullTime
	err := r.db().QueryRow(`
		SELECT id,
		       COALESCE(buyer_id,0),
		       COALESCE(seller_id,0),
		       COALESCE(amount,0),
		       COALESCE(currency,''),
		       COALESCE(status,''),
		       COALESCE(provider_tx_id,''),
		       funded_at,
		       created_at
		FROM escrow_transactions
		WHERE id=? LIMIT 1`, id).
		Scan(&e.ID, &e.BuyerID, &e.SellerID, &e.Amount, &e.Currency, &e.Status, &e.ProviderTxID, &fundedAt, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.EscrowTransaction{}, domain.NotFoundError{Resource: "escrow transaction"}
	}
	if err != nil {
		return models.EscrowTransaction{}, fmt.Errorf("get escrow: %w", err)
	}
	if fundedAt.Valid {
		e.FundedAt = &fundedAt.Time
	}
	return e, nil
}

// MarkEscrowFunded moves PENDING -> FUNDED once; replays are no-ops.
func (r EscrowRepository) MarkEscrowFunded(tx *sql.Tx, id int64, providerTxID string, at time.Time) error {
	_, err := tx.Exec(`
		UPDATE escrow_transactions
		SET status=?, provider_tx_id=?, funded_at=?
		WHERE id=? AND status=?`,
		models.EscrowFunded, providerTxID, at, id, models.EscrowPending)
	if err != nil {
		return fmt.Errorf("mark escrow funded: %w", err)
	}
	return nil
}

// MarkEscrowRefunded applies a REFUND-COMPLETED callback.
func (r EscrowRepository) MarkEscrowRefunded(tx *sql.Tx, id int64) error {
	_, err := tx.Exec(`
		UPDATE escrow_transactions
		SET status=?
		WHERE id=? AND status NOT IN (?,?)`,
		models.EscrowRefunded, id, models.EscrowRefunded, models.EscrowCancelled)
	if err != nil {
		return fmt.Errorf("mark escrow refunded: %w", err)
	}
	return nil
}

// MarkEscrowFailed records a failed funding attempt without touching a
// funded escrow.
func (r EscrowRepository) MarkEscrowFailed(tx *sql.Tx, id int64) error {
	_, err := tx.Exec(`
		UPDATE escrow_transactions
		SET status=?
		WHERE id=? AND status=?`,
		models.EscrowCancelled, id, models.EscrowPending)
	if err != nil {
		return fmt.Errorf("mark escrow failed: %w", err)
	}
	return nil
}

func (r EscrowRepository) GetWithdrawalByID(id int64) (models.WithdrawalRequest, error) {
	if id <= 0 {
		return models.WithdrawalRequest{}, domain.ValidationError{Field: "withdrawal_id", Msg: "id tidak valid"}
	}
	var w models.WithdrawalRequest
	var completedAt sql.NullTime
	err := r.db().QueryRow(`
		SELECT id,
		       COALESCE(user_id,0),
		       COALESCE(amount,0),
		       COALESCE(currency,''),
		       COALESCE(status,''),
		       COALESCE(provider_tx_id,''),
		       completed_at,
		       created_at
		FROM withdrawal_requests
		WHERE id=? LIMIT 1`, id).
		Scan(&w.ID, &w.UserID, &w.Amount, &w.Currency, &w.Status, &w.ProviderTxID, &completedAt, &w.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.WithdrawalRequest{}, domain.NotFoundError{Resource: "withdrawal request"}
	}
	if err != nil {
		return models.WithdrawalRequest{}, fmt.Errorf("get withdrawal: %w", err)
	}
	if completedAt.Valid {
		w.CompletedAt = &completedAt.Time
	}
	return w, nil
}

// MarkWithdrawalCompleted applies a PAYOUT-COMPLETED callback with its
// completion timestamp.
func (r EscrowRepository) MarkWithdrawalCompleted(tx *sql.Tx, id int64, providerTxID string, at time.Time) error {
	_, err := tx.Exec(`
		UPDATE withdrawal_requests
		SET status=?, provider_tx_id=?, completed_at=?
		WHERE id=? AND status=?`,
		models.WithdrawalCompleted, providerTxID, at, id, models.WithdrawalProcessing)
	if err != nil {
		return fmt.Errorf("mark withdrawal completed: %w", err)
	}
	return nil
}

func (r EscrowRepository) MarkWithdrawalRejected(tx *sql.Tx, id int64) error {
	_, err := tx.Exec(`
		UPDATE withdrawal_requests
		SET status=?
		WHERE id=? AND status=?`,
		models.WithdrawalRejected, id, models.WithdrawalProcessing)
	if err != nil {
		return fmt.Errorf("mark withdrawal rejected: %w", err)
	}
	return nil
}
