package services

import (
	"context"
	"testing"
	"time"

	"marketplace/internal/repositories"

	"github.com/DATA-DOG/go-sqlmock"
)

var tourBookingCols = []string{
	"id", "tour_id", "schedule_id", "guide_id", "guest_id", "guest_name",
	"guest_email", "participants", "total_amount", "currency", "status",
	"payment_status", "provider_tx_id", "distributed",
	"distribution_attempts", "distribution_error", "inventory_released",
	"created_at",
}

type recordingNotifier struct {
	users  []string
	admins []string
}

func (n *recordingNotifier) NotifyUser(email, subject, body string) error {
	n.users = append(n.users, email)
	return nil
}

func (n *recordingNotifier) NotifyAdmins(subject, body string) error {
	n.admins = append(n.admins, subject)
	return nil
}

func newExpiryServiceForTest(t *testing.T, notifier *recordingNotifier) (ExpiryService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	svc := ExpiryService{
		DB:          db,
		BookingRepo: repositories.BookingRepository{DB: db},
		TourRepo:    repositories.TourBookingRepository{DB: db},
		ArchiveRepo: repositories.ArchiveRepository{DB: db},
		Notifier:    notifier,
		Timeout:     30 * time.Minute,
		Now:         func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
	}
	return svc, mock
}

func TestRunArchivesExpiredBooking(t *testing.T) {
	notifier := &recordingNotifier{}
	svc, mock := newExpiryServiceForTest(t, notifier)

	ranAt := svc.Now()
	cutoff := ranAt.Add(-30 * time.Minute)
	bookedAt := ranAt.Add(-2 * time.Hour)

	// sweep finds one stale pending booking
	mock.ExpectQuery("FROM property_bookings").
		WithArgs("pending", "pending", cutoff).
		WillReturnRows(sqlmock.NewRows(propertyBookingCols).
			AddRow(21, 7, 9, 12, "2025-06-10", "2025-06-12",
				"Guest", "guest@example.com", int64(100000), "RWF", "pending",
				"pending", "", 0, 0, "", 0, bookedAt))

	// archive-then-delete primitive, one transaction
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO booking_archives").
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectExec("DELETE FROM blocked_dates").
		WithArgs(int64(21)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM property_bookings").
		WithArgs(int64(21)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	// no expired tours, no failed payments pending release
	mock.ExpectQuery("FROM tour_bookings").
		WithArgs("pending", "pending", cutoff).
		WillReturnRows(sqlmock.NewRows(tourBookingCols))
	mock.ExpectQuery("FROM property_bookings").
		WithArgs("pending", "failed").
		WillReturnRows(sqlmock.NewRows(propertyBookingCols))
	mock.ExpectQuery("FROM tour_bookings").
		WithArgs("pending", "failed").
		WillReturnRows(sqlmock.NewRows(tourBookingCols))

	// the batch notification flags the archive row
	mock.ExpectExec("UPDATE booking_archives SET admin_notified=1").
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	report, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	if report.ArchivedProperties != 1 || report.ArchivedTours != 0 || report.ReleasedFailed != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(notifier.users) != 1 || notifier.users[0] != "guest@example.com" {
		t.Fatalf("guest should be notified once, got %v", notifier.users)
	}
	if len(notifier.admins) != 1 {
		t.Fatalf("admins should get exactly one notification per run, got %v", notifier.admins)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRunReleasesFailedPaymentHolds(t *testing.T) {
	notifier := &recordingNotifier{}
	svc, mock := newExpiryServiceForTest(t, notifier)

	cutoff := svc.Now().Add(-30 * time.Minute)
	bookedAt := svc.Now().Add(-5 * time.Minute)

	mock.ExpectQuery("FROM property_bookings").
		WithArgs("pending", "pending", cutoff).
		WillReturnRows(sqlmock.NewRows(propertyBookingCols))
	mock.ExpectQuery("FROM tour_bookings").
		WithArgs("pending", "pending", cutoff).
		WillReturnRows(sqlmock.NewRows(tourBookingCols))

	// failed payment: calendar hold released once, booking row kept; the
	// released flag keeps the next sweep from listing it again
	mock.ExpectQuery("FROM property_bookings WHERE status=. AND payment_status=. AND inventory_released=0").
		WithArgs("pending", "failed").
		WillReturnRows(sqlmock.NewRows(propertyBookingCols).
			AddRow(33, 7, 9, 12, "2025-06-10", "2025-06-12",
				"Guest", "", int64(80000), "RWF", "pending",
				"failed", "dep-9", 0, 0, "", 0, bookedAt))
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM blocked_dates").
		WithArgs(int64(33)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("UPDATE property_bookings SET inventory_released=1").
		WithArgs(int64(33)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery("FROM tour_bookings").
		WithArgs("pending", "failed").
		WillReturnRows(sqlmock.NewRows(tourBookingCols))

	report, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	if report.ReleasedFailed != 1 || report.ArchivedProperties != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(notifier.admins) != 0 {
		t.Fatalf("nothing archived, admins should stay quiet, got %v", notifier.admins)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRunReleasesFailedTourSlotsOnce(t *testing.T) {
	notifier := &recordingNotifier{}
	svc, mock := newExpiryServiceForTest(t, notifier)

	cutoff := svc.Now().Add(-30 * time.Minute)
	bookedAt := svc.Now().Add(-5 * time.Minute)

	mock.ExpectQuery("FROM property_bookings").
		WithArgs("pending", "pending", cutoff).
		WillReturnRows(sqlmock.NewRows(propertyBookingCols))
	mock.ExpectQuery("FROM tour_bookings").
		WithArgs("pending", "pending", cutoff).
		WillReturnRows(sqlmock.NewRows(tourBookingCols))
	mock.ExpectQuery("FROM property_bookings").
		WithArgs("pending", "failed").
		WillReturnRows(sqlmock.NewRows(propertyBookingCols))

	// failed tour deposit: seats go back to the schedule counter and the
	// released flag is set in the same transaction
	mock.ExpectQuery("FROM tour_bookings WHERE status=. AND payment_status=. AND inventory_released=0").
		WithArgs("pending", "failed").
		WillReturnRows(sqlmock.NewRows(tourBookingCols).
			AddRow(52, 5, 8, 3, 12, "Guest", "",
				4, int64(200000), "UGX", "pending", "failed", "dep-7", 0, 0, "", 0, bookedAt))
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE tour_schedules").
		WithArgs(4, int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE tour_bookings SET inventory_released=1").
		WithArgs(int64(52)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	report, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	if report.ReleasedFailed != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCancelTourReturnsScheduleSlots(t *testing.T) {
	notifier := &recordingNotifier{}
	svc, mock := newExpiryServiceForTest(t, notifier)
	bookedAt := svc.Now().Add(-time.Hour)

	mock.ExpectQuery("FROM tour_bookings").
		WithArgs(int64(41)).
		WillReturnRows(sqlmock.NewRows(tourBookingCols).
			AddRow(41, 5, 8, 3, 12, "Guest", "guest@example.com",
				4, int64(200000), "UGX", "pending", "pending", "", 0, 0, "", 0, bookedAt))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO tour_booking_archives").
		WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectExec("UPDATE tour_schedules").
		WithArgs(4, int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM tour_bookings").
		WithArgs(int64(41)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	archiveID, err := svc.CancelTour(context.Background(), 41, "")
	if err != nil {
		t.Fatalf("cancel error: %v", err)
	}
	if archiveID != 11 {
		t.Fatalf("archive id mismatch: %d", archiveID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
