package repositories

import (
	"testing"
	"time"

	"marketplace/internal/domain"
	"marketplace/internal/domain/models"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestWalletCreditAppendsLedgerRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE wallets SET balance").
		WithArgs(int64(1500), int64(3), int64(1000)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO wallet_transactions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	repo := WalletRepository{DB: db}
	w := models.Wallet{ID: 3, UserID: 9, Currency: "RWF", Balance: 1000}
	entry, err := repo.Credit(tx, w, 500, models.WalletSourceDistribution, "earning")
	if err != nil {
		t.Fatalf("credit error: %v", err)
	}
	if entry.BalanceBefore != 1000 || entry.BalanceAfter != 1500 {
		t.Fatalf("balance math wrong: before=%d after=%d", entry.BalanceBefore, entry.BalanceAfter)
	}
	if entry.Amount != 500 || entry.Type != models.WalletTxCredit {
		t.Fatalf("ledger entry wrong: %+v", entry)
	}
	if entry.Reference == "" {
		t.Fatalf("ledger entry should carry a reference")
	}

	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestWalletDebitInsufficientBalance(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback()

	repo := WalletRepository{DB: db}
	w := models.Wallet{ID: 3, Balance: 100}
	_, err = repo.Debit(tx, w, 500, models.WalletSourceWithdrawal, "payout")
	if !domain.IsConflict(err) {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func TestWalletBalanceMatchesLedgerSum(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery("FROM wallets").
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "currency", "balance", "updated_at"}).
			AddRow(3, 9, "RWF", int64(1500), now))
	mock.ExpectQuery("FROM wallet_transactions").
		WithArgs(models.WalletTxCredit, int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(int64(1500)))

	repo := WalletRepository{DB: db}
	w, err := repo.GetByUserID(9)
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	sum, err := repo.SumTransactions(w.ID)
	if err != nil {
		t.Fatalf("sum transactions: %v", err)
	}
	if sum != w.Balance {
		t.Fatalf("ledger sum %d diverges from balance %d", sum, w.Balance)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestWalletCreditRejectsStaleBalance(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE wallets SET balance").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback()

	repo := WalletRepository{DB: db}
	w := models.Wallet{ID: 3, Balance: 1000}
	if _, err := repo.Credit(tx, w, 500, models.WalletSourceDistribution, "earning"); !domain.IsConflict(err) {
		t.Fatalf("expected conflict when balance moved, got %v", err)
	}
}
