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

// TourBookingRepository covers tour bookings and schedule slot counters.
type TourBookingRepository struct {
	DB *sql.DB
}

func (r TourBookingRepository) db() *sql.DB {
	if r.DB != nil {
		return r.DB
	}
	return intconfig.DB
}

const tourBookingColumns = `
	id,
	COALESCE(tour_id,0),
	COALESCE(schedule_id,0),
	COALESCE(guide_id,0),
	COALESCE(guest_id,0),
	COALESCE(guest_name,''),
	COALESCE(guest_email,''),
	COALESCE(participants,0),
	COALESCE(total_amount,0),
	COALESCE(currency,''),
	COALESCE(status,''),
	COALESCE(payment_status,''),
	COALESCE(provider_tx_id,''),
	COALESCE(distributed,0),
	COALESCE(distribution_attempts,0),
	COALESCE(distribution_error,''),
	COALESCE(inventory_released,0),
	created_at`

func scanTourBooking(scan func(dest ...any) error) (models.TourBooking, error) {
	var b models.TourBooking
	err := scan(
		&b.ID,
		&b.TourID,
		&b.ScheduleID,
		&b.GuideID,
		&b.GuestID,
		&b.GuestName,
		&b.GuestEmail,
		&b.Participants,
		&b.TotalAmount,
		&b.Currency,
		&b.Status,
		&b.PaymentStatus,
		&b.ProviderTxID,
		&b.Distributed,
		&b.DistributionAttempts,
		&b.DistributionError,
		&b.InventoryReleased,
		&b.CreatedAt,
	)
	return b, err
}

func (r TourBookingRepository) GetByID(id int64) (models.TourBooking, error) {
	if id <= 0 {
		return models.TourBooking{}, domain.ValidationError{Field: "booking_id", Msg: "id tidak valid"}
	}
	row := r.db().QueryRow(`SELECT `+tourBookingColumns+` FROM tour_bookings WHERE id=? LIMIT 1`, id)
	b, err := scanTourBooking(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return models.TourBooking{}, domain.NotFoundError{Resource: "tour booking"}
	}
	return b, err
}

func (r TourBookingRepository) LockByID(tx *sql.Tx, id int64) (models.TourBooking, error) {
	row := tx.QueryRow(`SELECT `+tourBookingColumns+` FROM tour_bookings WHERE id=? LIMIT 1 FOR UPDATE`, id)
	b, err := scanTourBooking(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return models.TourBooking{}, domain.NotFoundError{Resource: "tour booking"}
	}
	return b, err
}

func (r TourBookingRepository) SetPaymentCompleted(tx *sql.Tx, id int64, providerTxID string) error {
	_, err := tx.Exec(`
		UPDATE tour_bookings
		SET payment_status=?, status=?, provider_tx_id=?
		WHERE id=? AND payment_status=?`,
		models.PaymentCompleted, models.BookingConfirmed, providerTxID, id, models.PaymentPending)
	if err != nil {
		return fmt.Errorf("set tour booking payment completed: %w", err)
	}
	return nil
}

func (r TourBookingRepository) SetPaymentFailed(tx *sql.Tx, id int64, providerTxID string) error {
	_, err := tx.Exec(`
		UPDATE tour_bookings
		SET payment_status=?, provider_tx_id=?
		WHERE id=? AND payment_status=?`,
		models.PaymentFailed, providerTxID, id, models.PaymentPending)
	if err != nil {
		return fmt.Errorf("set tour booking payment failed: %w", err)
	}
	return nil
}

func (r TourBookingRepository) ListExpired(cutoff time.Time) ([]models.TourBooking, error) {
	return r.listByQuery(`
		SELECT `+tourBookingColumns+`
		FROM tour_bookings
		WHERE status=? AND payment_status=? AND created_at < ?
		ORDER BY created_at ASC`,
		models.BookingPending, models.PaymentPending, cutoff)
}

// ListPaymentFailed returns pending tour bookings whose payment explicitly
// failed and whose schedule slots are still held.
func (r TourBookingRepository) ListPaymentFailed() ([]models.TourBooking, error) {
	return r.listByQuery(`
		SELECT `+tourBookingColumns+`
		FROM tour_bookings
		WHERE status=? AND payment_status=? AND inventory_released=0
		ORDER BY created_at ASC`,
		models.BookingPending, models.PaymentFailed)
}

// MarkInventoryReleased records that the schedule slots for this booking were
// given back. The slot decrement is not idempotent, so this flag runs in the
// same transaction as ReleaseScheduleSlots.
func (r TourBookingRepository) MarkInventoryReleased(tx *sql.Tx, id int64) error {
	_, err := tx.Exec(`
		UPDATE tour_bookings
		SET inventory_released=1
		WHERE id=? AND inventory_released=0`, id)
	if err != nil {
		return fmt.Errorf("mark tour booking inventory released: %w", err)
	}
	return nil
}

func (r TourBookingRepository) ListUndistributed() ([]models.TourBooking, error) {
	return r.listByQuery(`
		SELECT `+tourBookingColumns+`
		FROM tour_bookings
		WHERE payment_status=? AND distributed=0
		ORDER BY created_at ASC`,
		models.PaymentCompleted)
}

func (r TourBookingRepository) listByQuery(query string, args ...any) ([]models.TourBooking, error) {
	rows, err := r.db().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tour bookings: %w", err)
	}
	defer rows.Close()

	out := []models.TourBooking{}
	for rows.Next() {
		b, err := scanTourBooking(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r TourBookingRepository) MarkDistributed(tx *sql.Tx, id int64) error {
	res, err := tx.Exec(`
		UPDATE tour_bookings
		SET distributed=1, distribution_error=''
		WHERE id=? AND distributed=0`, id)
	if err != nil {
		return fmt.Errorf("mark tour booking distributed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ConflictError{Resource: "distribution", Msg: "booking sudah didistribusikan"}
	}
	return nil
}

func (r TourBookingRepository) RecordDistributionFailure(id int64, cause string) error {
	_, err := r.db().Exec(`
		UPDATE tour_bookings
		SET distribution_attempts=distribution_attempts+1, distribution_error=?
		WHERE id=? AND distributed=0`, cause, id)
	if err != nil {
		return fmt.Errorf("record tour distribution failure: %w", err)
	}
	return nil
}

func (r TourBookingRepository) Delete(tx *sql.Tx, id int64) error {
	_, err := tx.Exec(`DELETE FROM tour_bookings WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete tour booking: %w", err)
	}
	return nil
}

func (r TourBookingRepository) Stats() (DistributionStats, error) {
	var s DistributionStats
	err := r.db().QueryRow(`
		SELECT
			COALESCE(SUM(CASE WHEN distributed=1 THEN 1 ELSE 0 END),0),
			COALESCE(SUM(CASE WHEN payment_status=? AND distributed=0 THEN 1 ELSE 0 END),0),
			COALESCE(SUM(CASE WHEN distributed=1 THEN total_amount ELSE 0 END),0),
			COALESCE(SUM(CASE WHEN distributed=0 AND distribution_attempts>0 THEN 1 ELSE 0 END),0)
		FROM tour_bookings`, models.PaymentCompleted).
		Scan(&s.DistributedCount, &s.UndistributedCount, &s.DistributedTotal, &s.PendingRetryCount)
	if err != nil {
		return DistributionStats{}, fmt.Errorf("tour distribution stats: %w", err)
	}
	return s, nil
}

// ReleaseScheduleSlots gives back the seats a reaped booking was holding.
// The GREATEST guard keeps the counter from going negative on replays.
func (r TourBookingRepository) ReleaseScheduleSlots(tx *sql.Tx, scheduleID int64, participants int) error {
	if participants <= 0 {
		return nil
	}
	_, err := tx.Exec(`
		UPDATE tour_schedules
		SET booked_slots=GREATEST(booked_slots-?,0)
		WHERE id=?`, participants, scheduleID)
	if err != nil {
		return fmt.Errorf("release schedule slots: %w", err)
	}
	return nil
}
