package repositories

import (
	"database/sql"
	"errors"
	"fmt"

	intconfig "marketplace/internal/config"
	intdb "marketplace/internal/db"
	"marketplace/internal/domain"
	"marketplace/internal/domain/models"
)

// TransactionRepository owns the provider transaction ledger. Rows are
// created once and only ever updated toward a terminal status.
type TransactionRepository struct {
	DB *sql.DB
}

func (r TransactionRepository) db() *sql.DB {
	if r.DB != nil {
		return r.DB
	}
	return intconfig.DB
}

const providerTxColumns = `
	id,
	COALESCE(transaction_id,''),
	COALESCE(transaction_type,''),
	COALESCE(status,''),
	COALESCE(requested_amount,''),
	COALESCE(deposited_amount,''),
	COALESCE(currency,''),
	COALESCE(country,''),
	COALESCE(correspondent,''),
	COALESCE(internal_reference,''),
	COALESCE(failure_code,''),
	COALESCE(failure_message,''),
	COALESCE(callback_received,0),
	completed_at,
	created_at,
	updated_at`

func scanProviderTx(row *sql.Row) (models.ProviderTransaction, error) {
	var t models.ProviderTransaction
	var completedAt sql.NullTime
	err := row.Scan(
		&t.ID,
		&t.TransactionID,
		&t.TransactionType,
		&t.Status,
		&t.RequestedAmount,
		&t.DepositedAmount,
		&t.Currency,
		&t.Country,
		&t.Correspondent,
		&t.InternalReference,
		&t.FailureCode,
		&t.FailureMessage,
		&t.CallbackReceived,
		&completedAt,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return models.ProviderTransaction{}, err
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	return t, nil
}

// GetByTransactionID fetches a ledger row by the provider-assigned id.
func (r TransactionRepository) GetByTransactionID(txID string) (models.ProviderTransaction, error) {
	if txID == "" {
		return models.ProviderTransaction{}, domain.ValidationError{Field: "transaction_id", Msg: "id kosong"}
	}
	row := r.db().QueryRow(`SELECT `+providerTxColumns+` FROM provider_transactions WHERE transaction_id=? LIMIT 1`, txID)
	t, err := scanProviderTx(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ProviderTransaction{}, domain.NotFoundError{Resource: "provider transaction"}
	}
	return t, err
}

// LockByTransactionID reads the ledger row with a row lock so concurrent
// callbacks for the same transaction_id serialize.
func (r TransactionRepository) LockByTransactionID(tx *sql.Tx, txID string) (models.ProviderTransaction, bool, error) {
	row := tx.QueryRow(`SELECT `+providerTxColumns+` FROM provider_transactions WHERE transaction_id=? LIMIT 1 FOR UPDATE`, txID)
	t, err := scanProviderTx(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ProviderTransaction{}, false, nil
	}
	if err != nil {
		return models.ProviderTransaction{}, false, fmt.Errorf("lock provider transaction: %w", err)
	}
	return t, true, nil
}

// Insert creates the ledger row on first sight of a transaction.
func (r TransactionRepository) Insert(tx *sql.Tx, t models.ProviderTransaction) error {
	_, err := tx.Exec(`
		INSERT INTO provider_transactions
			(transaction_id, transaction_type, status, requested_amount, deposited_amount,
			 currency, country, correspondent, internal_reference,
			 failure_code, failure_message, callback_received, completed_at,
			 created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,NOW(),NOW())`,
		t.TransactionID,
		t.TransactionType,
		t.Status,
		t.RequestedAmount,
		t.DepositedAmount,
		t.Currency,
		t.Country,
		t.Correspondent,
		t.InternalReference,
		intdb.NullIfEmpty(t.FailureCode),
		intdb.NullIfEmpty(t.FailureMessage),
		t.CallbackReceived,
		t.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert provider transaction: %w", err)
	}
	return nil
}

// UpdateStatus applies a status change from a callback. Caller must hold the
// row lock and have checked the terminal-state rule first.
func (r TransactionRepository) UpdateStatus(tx *sql.Tx, t models.ProviderTransaction) error {
	_, err := tx.Exec(`
		UPDATE provider_transactions
		SET status=?,
		    deposited_amount=?,
		    failure_code=COALESCE(?, failure_code),
		    failure_message=COALESCE(?, failure_message),
		    callback_received=1,
		    completed_at=COALESCE(?, completed_at),
		    updated_at=NOW()
		WHERE transaction_id=?`,
		t.Status,
		t.DepositedAmount,
		intdb.NullIfEmpty(t.FailureCode),
		intdb.NullIfEmpty(t.FailureMessage),
		t.CompletedAt,
		t.TransactionID,
	)
	if err != nil {
		return fmt.Errorf("update provider transaction: %w", err)
	}
	return nil
}
