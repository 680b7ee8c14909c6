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

// BookingRepository covers property bookings and their blocked-date
// inventory holds.
type BookingRepository struct {
	DB *sql.DB
}

func (r BookingRepository) db() *sql.DB {
	if r.DB != nil {
		return r.DB
	}
	return intconfig.DB
}

const propertyBookingColumns = `
	id,
	COALESCE(property_id,0),
	COALESCE(host_id,0),
	COALESCE(guest_id,0),
	COALESCE(check_in,''),
	COALESCE(check_out,''),
	COALESCE(guest_name,''),
	COALESCE(guest_email,''),
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

func scanPropertyBooking(scan func(dest ...any) error) (models.PropertyBooking, error) {
	var b models.PropertyBooking
	err := scan(
		&b.ID,
		&b.PropertyID,
		&b.HostID,
		&b.GuestID,
		&b.CheckIn,
		&b.CheckOut,
		&b.GuestName,
		&b.GuestEmail,
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

func (r BookingRepository) GetByID(id int64) (models.PropertyBooking, error) {
	if id <= 0 {
		return models.PropertyBooking{}, domain.ValidationError{Field: "booking_id", Msg: "id tidak valid"}
	}
	row := r.db().QueryRow(`SELECT `+propertyBookingColumns+` FROM property_bookings WHERE id=? LIMIT 1`, id)
	b, err := scanPropertyBooking(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PropertyBooking{}, domain.NotFoundError{Resource: "booking"}
	}
	return b, err
}

// LockByID reads a booking with a row lock for the distribution path.
func (r BookingRepository) LockByID(tx *sql.Tx, id int64) (models.PropertyBooking, error) {
	row := tx.QueryRow(`SELECT `+propertyBookingColumns+` FROM property_bookings WHERE id=? LIMIT 1 FOR UPDATE`, id)
	b, err := scanPropertyBooking(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PropertyBooking{}, domain.NotFoundError{Resource: "booking"}
	}
	return b, err
}

// SetPaymentCompleted confirms the booking as a side effect of a COMPLETED
// deposit, storing the provider transaction id.
func (r BookingRepository) SetPaymentCompleted(tx *sql.Tx, id int64, providerTxID string) error {
	res, err := tx.Exec(`
		UPDATE property_bookings
		SET payment_status=?, status=?, provider_tx_id=?
		WHERE id=? AND payment_status=?`,
		models.PaymentCompleted, models.BookingConfirmed, providerTxID, id, models.PaymentPending)
	if err != nil {
		return fmt.Errorf("set booking payment completed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// already past pending, treated as a duplicate delivery
		return nil
	}
	return nil
}

// SetPaymentFailed marks the payment failed. Inventory stays held so the
// guest gets a grace window to retry; the scheduler releases it.
func (r BookingRepository) SetPaymentFailed(tx *sql.Tx, id int64, providerTxID string) error {
	_, err := tx.Exec(`
		UPDATE property_bookings
		SET payment_status=?, provider_tx_id=?
		WHERE id=? AND payment_status=?`,
		models.PaymentFailed, providerTxID, id, models.PaymentPending)
	if err != nil {
		return fmt.Errorf("set booking payment failed: %w", err)
	}
	return nil
}

// ListExpired returns pending bookings older than the cutoff, still awaiting
// payment.
func (r BookingRepository) ListExpired(cutoff time.Time) ([]models.PropertyBooking, error) {
	return r.listByQuery(`
		SELECT `+propertyBookingColumns+`
		FROM property_bookings
		WHERE status=? AND payment_status=? AND created_at < ?
		ORDER BY created_at ASC`,
		models.BookingPending, models.PaymentPending, cutoff)
}

// ListPaymentFailed returns pending bookings whose payment explicitly failed
// and whose blocked dates have not been given back yet.
func (r BookingRepository) ListPaymentFailed() ([]models.PropertyBooking, error) {
	return r.listByQuery(`
		SELECT `+propertyBookingColumns+`
		FROM property_bookings
		WHERE status=? AND payment_status=? AND inventory_released=0
		ORDER BY created_at ASC`,
		models.BookingPending, models.PaymentFailed)
}

// MarkInventoryReleased records that the blocked dates for this booking were
// given back, so the sweep does not pick it up again.
func (r BookingRepository) MarkInventoryReleased(tx *sql.Tx, id int64) error {
	_, err := tx.Exec(`
		UPDATE property_bookings
		SET inventory_released=1
		WHERE id=? AND inventory_released=0`, id)
	if err != nil {
		return fmt.Errorf("mark booking inventory released: %w", err)
	}
	return nil
}

// ListUndistributed returns paid bookings that never got a fund distribution.
func (r BookingRepository) ListUndistributed() ([]models.PropertyBooking, error) {
	return r.listByQuery(`
		SELECT `+propertyBookingColumns+`
		FROM property_bookings
		WHERE payment_status=? AND distributed=0
		ORDER BY created_at ASC`,
		models.PaymentCompleted)
}

func (r BookingRepository) listByQuery(query string, args ...any) ([]models.PropertyBooking, error) {
	rows, err := r.db().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	out := []models.PropertyBooking{}
	for rows.Next() {
		b, err := scanPropertyBooking(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// MarkDistributed flips the exactly-once distribution flag.
func (r BookingRepository) MarkDistributed(tx *sql.Tx, id int64) error {
	res, err := tx.Exec(`
		UPDATE property_bookings
		SET distributed=1, distribution_error=''
		WHERE id=? AND distributed=0`, id)
	if err != nil {
		return fmt.Errorf("mark booking distributed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ConflictError{Resource: "distribution", Msg: "booking sudah didistribusikan"}
	}
	return nil
}

// RecordDistributionFailure bumps the attempt counter without marking the
// booking distributed, so the sweep can retry.
func (r BookingRepository) RecordDistributionFailure(id int64, cause string) error {
	_, err := r.db().Exec(`
		UPDATE property_bookings
		SET distribution_attempts=distribution_attempts+1, distribution_error=?
		WHERE id=? AND distributed=0`, cause, id)
	if err != nil {
		return fmt.Errorf("record distribution failure: %w", err)
	}
	return nil
}

// Delete removes the booking row (archive snapshot must exist first).
func (r BookingRepository) Delete(tx *sql.Tx, id int64) error {
	_, err := tx.Exec(`DELETE FROM property_bookings WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete booking: %w", err)
	}
	return nil
}

// DeleteBlockedDates releases the calendar hold tagged with a booking id.
func (r BookingRepository) DeleteBlockedDates(tx *sql.Tx, bookingID int64) error {
	_, err := tx.Exec(`DELETE FROM blocked_dates WHERE booking_id=?`, bookingID)
	if err != nil {
		return fmt.Errorf("delete blocked dates: %w", err)
	}
	return nil
}

// DistributionStats aggregates counts for the admin surface.
type DistributionStats struct {
	DistributedCount   int64 `json:"distributed_count"`
	UndistributedCount int64 `json:"undistributed_count"`
	DistributedTotal   int64 `json:"distributed_total"`
	PendingRetryCount  int64 `json:"pending_retry_count"`
}

func (r BookingRepository) Stats() (DistributionStats, error) {
	var s DistributionStats
	err := r.db().QueryRow(`
		SELECT
			COALESCE(SUM(CASE WHEN distributed=1 THEN 1 ELSE 0 END),0),
			COALESCE(SUM(CASE WHEN payment_status=? AND distributed=0 THEN 1 ELSE 0 END),0),
			COALESCE(SUM(CASE WHEN distributed=1 THEN total_amount ELSE 0 END),0),
			COALESCE(SUM(CASE WHEN distributed=0 AND distribution_attempts>0 THEN 1 ELSE 0 END),0)
		FROM property_bookings`, models.PaymentCompleted).
		Scan(&s.DistributedCount, &s.UndistributedCount, &s.DistributedTotal, &s.PendingRetryCount)
	if err != nil {
		return DistributionStats{}, fmt.Errorf("distribution stats: %w", err)
	}
	return s, nil
}
