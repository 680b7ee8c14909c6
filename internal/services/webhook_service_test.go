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

func TestParseCallbackValidDeposit(t *testing.T) {
	raw := []byte(`{
		"depositId": "dep-1",
		"status": "completed",
		"requestedAmount": "50000",
		"depositedAmount": "50000",
		"currency": "RWF",
		"country": "RWA",
		"correspondent": "MTN_MOMO_RWA",
		"metadata": {"internalReference": "BOOKING-55"}
	}`)

	p, err := ParseCallback(raw)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if p.TransactionID() != "dep-1" {
		t.Fatalf("transaction id wrong: %s", p.TransactionID())
	}
	if p.TransactionType() != models.TxTypeDeposit {
		t.Fatalf("transaction type wrong: %s", p.TransactionType())
	}
	if p.Status != models.TxStatusCompleted {
		t.Fatalf("status should be normalized uppercase, got %s", p.Status)
	}
	if p.InternalReference() != "BOOKING-55" {
		t.Fatalf("internal reference wrong: %s", p.InternalReference())
	}

	tx := p.ToTransaction()
	if !tx.CallbackReceived {
		t.Fatalf("callback flag should be set")
	}
	if tx.InternalReference != "BOOKING-55" {
		t.Fatalf("mapped reference wrong: %s", tx.InternalReference)
	}
}

func TestParseCallbackRejections(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not json", `{"depositId":`},
		{"no id", `{"status":"COMPLETED","currency":"RWF"}`},
		{"two ids", `{"depositId":"a","payoutId":"b","status":"COMPLETED","currency":"RWF"}`},
		{"missing status", `{"depositId":"a"}`},
		{"unknown status", `{"depositId":"a","status":"SETTLED"}`},
		{"fractional amount", `{"depositId":"a","status":"COMPLETED","currency":"RWF","depositedAmount":"500.50"}`},
		{"completed without currency", `{"depositId":"a","status":"COMPLETED"}`},
	}
	for _, c := range cases {
		if _, err := ParseCallback([]byte(c.raw)); !domain.IsValidation(err) {
			t.Fatalf("%s: expected validation error, got %v", c.name, err)
		}
	}
}

func TestProcessParseFailureMarksLogEntry(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("UPDATE webhook_log SET processed=0").
		WillReturnResult(sqlmock.NewResult(0, 1))

	svc := WebhookService{
		LogRepo: repositories.WebhookLogRepository{DB: db},
	}
	resp := svc.Process(context.Background(), "log-1", []byte(`{"status":"COMPLETED"}`))
	if resp.Success {
		t.Fatalf("invalid payload must not report success")
	}
	if resp.Error == "" {
		t.Fatalf("response should carry the validation cause")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestProcessUnresolvedReferenceKeepsEntryForSweep(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM provider_transactions").
		WithArgs("dep-9").
		WillReturnRows(sqlmock.NewRows(providerTxCols))
	mock.ExpectExec("INSERT INTO provider_transactions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
	mock.ExpectExec("UPDATE webhook_log SET processed=0").
		WillReturnResult(sqlmock.NewResult(0, 1))

	svc := WebhookService{
		LogRepo: repositories.WebhookLogRepository{DB: db},
		TxSvc: TransactionService{
			DB:          db,
			TxRepo:      repositories.TransactionRepository{DB: db},
			BookingRepo: repositories.BookingRepository{DB: db},
			TourRepo:    repositories.TourBookingRepository{DB: db},
			EscrowRepo:  repositories.EscrowRepository{DB: db},
		},
	}

	raw := []byte(`{
		"depositId": "dep-9",
		"status": "COMPLETED",
		"currency": "RWF",
		"metadata": {"internalReference": "mystery"}
	}`)
	resp := svc.Process(context.Background(), "log-2", raw)
	if resp.Success {
		t.Fatalf("unresolved reference must come back success=false for reconciliation")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

// A replayed callback that landed on an already terminal ledger row must not
// flip the log entry to processed while its reference is still unresolvable,
// or the reprocess sweep would lose it forever.
func TestProcessTerminalReplayKeepsUnresolvedEntryFailed(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM provider_transactions").
		WithArgs("dep-9").
		WillReturnRows(sqlmock.NewRows(providerTxCols).
			AddRow(3, "dep-9", models.TxTypeDeposit, models.TxStatusCompleted,
				"50000", "50000", "RWF", "RWA", "", "mystery",
				"", "", 1, now, now, now))
	mock.ExpectCommit()
	mock.ExpectExec("UPDATE webhook_log SET processed=0").
		WillReturnResult(sqlmock.NewResult(0, 1))

	svc := WebhookService{
		LogRepo: repositories.WebhookLogRepository{DB: db},
		TxSvc: TransactionService{
			DB:          db,
			TxRepo:      repositories.TransactionRepository{DB: db},
			BookingRepo: repositories.BookingRepository{DB: db},
			TourRepo:    repositories.TourBookingRepository{DB: db},
			EscrowRepo:  repositories.EscrowRepository{DB: db},
		},
	}

	raw := []byte(`{
		"depositId": "dep-9",
		"status": "COMPLETED",
		"currency": "RWF",
		"metadata": {"internalReference": "mystery"}
	}`)
	resp := svc.Process(context.Background(), "log-3", raw)
	if resp.Success {
		t.Fatalf("terminal replay with unresolved reference must stay failed")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
