package repositories

import (
	"database/sql"
	"fmt"
	"strings"

	intconfig "marketplace/internal/config"
	"marketplace/internal/domain/models"
)

// ArchiveRepository writes the lead-recovery snapshots. Snapshots are
// write-once; only admin_notified/lead_status change afterwards.
type ArchiveRepository struct {
	DB *sql.DB
}

func (r ArchiveRepository) db() *sql.DB {
	if r.DB != nil {
		return r.DB
	}
	return intconfig.DB
}

// InsertPropertyArchive snapshots a property booking before deletion.
func (r ArchiveRepository) InsertPropertyArchive(tx *sql.Tx, a models.BookingArchive) (int64, error) {
	res, err := tx.Exec(`
		INSERT INTO booking_archives
			(booking_id, property_id, host_id, guest_id, guest_name, guest_email,
			 check_in, check_out, total_amount, currency,
			 archive_reason, lead_status, admin_notified, booked_at, archived_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,0,?,NOW())`,
		a.BookingID,
		a.PropertyID,
		a.HostID,
		a.GuestID,
		a.GuestName,
		a.GuestEmail,
		a.CheckIn,
		a.CheckOut,
		a.TotalAmount,
		a.Currency,
		a.ArchiveReason,
		a.LeadStatus,
		a.BookedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert booking archive: %w", err)
	}
	return res.LastInsertId()
}

// InsertTourArchive snapshots a tour booking before deletion.
func (r ArchiveRepository) InsertTourArchive(tx *sql.Tx, a models.TourBookingArchive) (int64, error) {
	res, err := tx.Exec(`
		INSERT INTO tour_booking_archives
			(booking_id, tour_id, schedule_id, guide_id, guest_id, guest_name, guest_email,
			 participants, total_amount, currency,
			 archive_reason, lead_status, admin_notified, booked_at, archived_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,0,?,NOW())`,
		a.BookingID,
		a.TourID,
		a.ScheduleID,
		a.GuideID,
		a.GuestID,
		a.GuestName,
		a.GuestEmail,
		a.Participants,
		a.TotalAmount,
		a.Currency,
		a.ArchiveReason,
		a.LeadStatus,
		a.BookedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert tour booking archive: %w", err)
	}
	return res.LastInsertId()
}

// MarkAdminNotified flags archive rows after the per-run admin notification.
func (r ArchiveRepository) MarkAdminNotified(table string, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	if table != "booking_archives" && table != "tour_booking_archives" {
		return fmt.Errorf("tabel archive tidak dikenal: %s", table)
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	_, err := r.db().Exec(
		`UPDATE `+table+` SET admin_notified=1 WHERE id IN (`+strings.Join(placeholders, ",")+`)`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("mark admin notified: %w", err)
	}
	return nil
}
