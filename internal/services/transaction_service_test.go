package services

import (
	"context"
	"testing"
	"time"

	"marketplace/internal/domain"
	"marketplace/internal/domain/models"
	"marketplace/internal/repositories"

	"github.com/DATA-DOG/go-sqlmock"
)

var providerTxCols = []string{
	"id", "transaction_id", "transaction_type", "status",
	"requested_amount", "deposited_amount", "currency", "country",
	"correspondent", "internal_reference", "failure_code", "failure_message",
	"callback_received", "completed_at", "created_at", "updated_at",
}

func newTransactionService(t *testing.T) (TransactionService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	svc := TransactionService{
		DB:          db,
		TxRepo:      repositories.TransactionRepository{DB: db},
		BookingRepo: repositories.BookingRepository{DB: db},
		TourRepo:    repositories.TourBookingRepository{DB: db},
		EscrowRepo:  repositories.EscrowRepository{DB: db},
		Now:         func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
	}
	return svc, mock
}

func TestApplyDuplicateTerminalCallbackWritesNoLedgerRow(t *testing.T) {
	svc, mock := newTransactionService(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM provider_transactions").
		WithArgs("dep-1").
		WillReturnRows(sqlmock.NewRows(providerTxCols).
			AddRow(1, "dep-1", models.TxTypeDeposit, models.TxStatusCompleted,
				"50000", "50000", "RWF", "RWA", "MTN_MOMO_RWA", "BOOKING-55",
				"", "", 1, now, now, now))
	// the replay re-runs the guarded booking update, which is a no-op past
	// pending, but never touches the ledger row again
	mock.ExpectExec("UPDATE property_bookings").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	res, err := svc.Apply(context.Background(), models.ProviderTransaction{
		TransactionID:   "dep-1",
		TransactionType: models.TxTypeDeposit,
		Status:          models.TxStatusCompleted,
	})
	if err != nil {
		t.Fatalf("apply error: %v", err)
	}
	if !res.Duplicate {
		t.Fatalf("duplicate terminal callback should be flagged, got %+v", res)
	}
	if res.Applied {
		t.Fatalf("no transition should be applied on duplicate")
	}
	if res.Unresolved {
		t.Fatalf("known reference must stay resolved on replay, got %+v", res)
	}
	if res.Reference.Kind != domain.KindBooking || res.Reference.ID != 55 {
		t.Fatalf("replay should re-resolve the reference: %+v", res.Reference)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestApplyTerminalReplayKeepsUnknownReferenceUnresolved(t *testing.T) {
	svc, mock := newTransactionService(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM provider_transactions").
		WithArgs("dep-9").
		WillReturnRows(sqlmock.NewRows(providerTxCols).
			AddRow(3, "dep-9", models.TxTypeDeposit, models.TxStatusCompleted,
				"50000", "50000", "RWF", "RWA", "", "mystery",
				"", "", 1, now, now, now))
	mock.ExpectCommit()

	res, err := svc.Apply(context.Background(), models.ProviderTransaction{
		TransactionID:   "dep-9",
		TransactionType: models.TxTypeDeposit,
		Status:          models.TxStatusCompleted,
	})
	if err != nil {
		t.Fatalf("apply error: %v", err)
	}
	if !res.Duplicate || !res.Unresolved {
		t.Fatalf("replay of an unresolvable row must stay unresolved, got %+v", res)
	}
	if res.NeedsDistribution() {
		t.Fatalf("unresolved transaction must never distribute")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestApplyCompletedDepositConfirmsBooking(t *testing.T) {
	svc, mock := newTransactionService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM provider_transactions").
		WithArgs("dep-2").
		WillReturnRows(sqlmock.NewRows(providerTxCols))
	mock.ExpectExec("INSERT INTO provider_transactions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE property_bookings").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res, err := svc.Apply(context.Background(), models.ProviderTransaction{
		TransactionID:     "dep-2",
		TransactionType:   models.TxTypeDeposit,
		Status:            models.TxStatusCompleted,
		RequestedAmount:   "50000",
		DepositedAmount:   "50000",
		Currency:          "RWF",
		InternalReference: "BOOKING-55",
		CallbackReceived:  true,
	})
	if err != nil {
		t.Fatalf("apply error: %v", err)
	}
	if !res.Applied || res.Duplicate || res.Unresolved {
		t.Fatalf("unexpected result flags: %+v", res)
	}
	if res.Reference.Kind != domain.KindBooking || res.Reference.ID != 55 {
		t.Fatalf("reference not resolved: %+v", res.Reference)
	}
	if !res.NeedsDistribution() {
		t.Fatalf("completed booking deposit should request distribution")
	}
	if res.Transaction.CompletedAt == nil {
		t.Fatalf("completed_at should be stamped on COMPLETED")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestApplyInFlightStatusSkipsDomainEffect(t *testing.T) {
	svc, mock := newTransactionService(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM provider_transactions").
		WithArgs("dep-3").
		WillReturnRows(sqlmock.NewRows(providerTxCols).
			AddRow(2, "dep-3", models.TxTypeDeposit, models.TxStatusSubmitted,
				"50000", "", "RWF", "RWA", "", "BOOKING-55",
				"", "", 0, nil, now, now))
	mock.ExpectExec("UPDATE provider_transactions").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res, err := svc.Apply(context.Background(), models.ProviderTransaction{
		TransactionID: "dep-3",
		Status:        models.TxStatusAccepted,
	})
	if err != nil {
		t.Fatalf("apply error: %v", err)
	}
	if res.Applied {
		t.Fatalf("ACCEPTED is not terminal, no transition should be applied")
	}
	// fields omitted by the callback come forward from the ledger row
	if res.Transaction.InternalReference != "BOOKING-55" {
		t.Fatalf("internal reference not carried forward: %+v", res.Transaction)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestApplyUnknownReferenceIsFlagged(t *testing.T) {
	svc, mock := newTransactionService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM provider_transactions").
		WithArgs("dep-4").
		WillReturnRows(sqlmock.NewRows(providerTxCols))
	mock.ExpectExec("INSERT INTO provider_transactions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	res, err := svc.Apply(context.Background(), models.ProviderTransaction{
		TransactionID:     "dep-4",
		TransactionType:   models.TxTypeDeposit,
		Status:            models.TxStatusFailed,
		InternalReference: "mystery-ref",
	})
	if err != nil {
		t.Fatalf("apply error: %v", err)
	}
	if !res.Unresolved {
		t.Fatalf("unknown reference must be flagged, got %+v", res)
	}
	if res.Reference.Kind != domain.KindUnknown {
		t.Fatalf("reference should stay UNKNOWN, got %s", res.Reference.Kind)
	}
	if res.NeedsDistribution() {
		t.Fatalf("unresolved transaction must never distribute")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
