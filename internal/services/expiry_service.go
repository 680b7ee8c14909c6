package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	intconfig "marketplace/internal/config"
	intdb "marketplace/internal/db"
	"marketplace/internal/domain/models"
	"marketplace/internal/repositories"
	"marketplace/internal/utils"
)

// ExpiryService reaps bookings stuck in pending payment past the timeout,
// releases their inventory, and keeps the lead in an archive. Explicit
// cancellation goes through the same archive-then-delete primitive so the
// two paths can never diverge.
type ExpiryService struct {
	DB          *sql.DB
	BookingRepo repositories.BookingRepository
	TourRepo    repositories.TourBookingRepository
	ArchiveRepo repositories.ArchiveRepository
	Notifier    NotificationSender
	Timeout     time.Duration
	Now         func() time.Time
	RequestID   string
}

func (s ExpiryService) db() *sql.DB {
	if s.DB != nil {
		return s.DB
	}
	return intconfig.DB
}

func (s ExpiryService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return utils.NowUTC()
}

func (s ExpiryService) notifier() NotificationSender {
	if s.Notifier != nil {
		return s.Notifier
	}
	return LogNotifier{RequestID: s.RequestID}
}

// RunReport summarizes one scheduler pass.
type RunReport struct {
	ArchivedProperties int       `json:"archived_properties"`
	ArchivedTours      int       `json:"archived_tours"`
	ReleasedFailed     int       `json:"released_failed"`
	RanAt              time.Time `json:"ran_at"`
}

// Run executes one sweep: expired pending bookings are archived and deleted,
// then blocked dates of explicitly failed payments are reclaimed, then admins
// get one notification for the whole batch.
func (s ExpiryService) Run(ctx context.Context) (RunReport, error) {
	report := RunReport{RanAt: s.now()}
	cutoff := report.RanAt.Add(-s.Timeout)
	reason := fmt.Sprintf("Expired: pembayaran tidak selesai dalam %d menit", int(s.Timeout.Minutes()))

	propArchiveIDs := []int64{}
	tourArchiveIDs := []int64{}

	expired, err := s.BookingRepo.ListExpired(cutoff)
	if err != nil {
		return report, err
	}
	for _, b := range expired {
		archiveID, err := s.ArchivePropertyBooking(ctx, b, reason)
		if err != nil {
			utils.LogEvent(s.RequestID, "expiry", "archive",
				fmt.Sprintf("booking %d gagal diarsip: %v", b.ID, err))
			continue
		}
		propArchiveIDs = append(propArchiveIDs, archiveID)
		report.ArchivedProperties++

		if b.GuestEmail != "" {
			if err := s.notifier().NotifyUser(b.GuestEmail, "Booking kadaluarsa",
				fmt.Sprintf("Booking #%d dibatalkan karena pembayaran tidak selesai.", b.ID)); err != nil {
				utils.LogEvent(s.RequestID, "expiry", "notify", err.Error())
			}
		}
	}

	expiredTours, err := s.TourRepo.ListExpired(cutoff)
	if err != nil {
		return report, err
	}
	for _, b := range expiredTours {
		archiveID, err := s.ArchiveTourBooking(ctx, b, reason)
		if err != nil {
			utils.LogEvent(s.RequestID, "expiry", "archive",
				fmt.Sprintf("tour booking %d gagal diarsip: %v", b.ID, err))
			continue
		}
		tourArchiveIDs = append(tourArchiveIDs, archiveID)
		report.ArchivedTours++

		if b.GuestEmail != "" {
			if err := s.notifier().NotifyUser(b.GuestEmail, "Booking tour kadaluarsa",
				fmt.Sprintf("Booking tour #%d dibatalkan karena pembayaran tidak selesai.", b.ID)); err != nil {
				utils.LogEvent(s.RequestID, "expiry", "notify", err.Error())
			}
		}
	}

	// second pass: failed payments release their inventory hold right away,
	// the booking row stays so the guest can retry. The released flag is set
	// in the same transaction so each booking is handled exactly once.
	failed, err := s.BookingRepo.ListPaymentFailed()
	if err != nil {
		return report, err
	}
	for _, b := range failed {
		err := intdb.WithTx(ctx, s.db(), func(tx *sql.Tx) error {
			if err := s.BookingRepo.DeleteBlockedDates(tx, b.ID); err != nil {
				return err
			}
			return s.BookingRepo.MarkInventoryReleased(tx, b.ID)
		})
		if err != nil {
			utils.LogEvent(s.RequestID, "expiry", "release-failed",
				fmt.Sprintf("booking %d: %v", b.ID, err))
			continue
		}
		report.ReleasedFailed++
	}

	failedTours, err := s.TourRepo.ListPaymentFailed()
	if err != nil {
		return report, err
	}
	for _, b := range failedTours {
		err := intdb.WithTx(ctx, s.db(), func(tx *sql.Tx) error {
			if err := s.TourRepo.ReleaseScheduleSlots(tx, b.ScheduleID, b.Participants); err != nil {
				return err
			}
			return s.TourRepo.MarkInventoryReleased(tx, b.ID)
		})
		if err != nil {
			utils.LogEvent(s.RequestID, "expiry", "release-failed",
				fmt.Sprintf("tour booking %d: %v", b.ID, err))
			continue
		}
		report.ReleasedFailed++
	}

	// one admin notification per run, not one per booking
	if report.ArchivedProperties+report.ArchivedTours > 0 {
		body := fmt.Sprintf("%d property dan %d tour booking diarsipkan pada sweep %s.",
			report.ArchivedProperties, report.ArchivedTours, utils.FormatDateTime(report.RanAt))
		if err := s.notifier().NotifyAdmins("Booking expired diarsipkan", body); err != nil {
			utils.LogEvent(s.RequestID, "expiry", "notify-admins", err.Error())
		}
		if err := s.ArchiveRepo.MarkAdminNotified("booking_archives", propArchiveIDs); err != nil {
			utils.LogEvent(s.RequestID, "expiry", "mark-notified", err.Error())
		}
		if err := s.ArchiveRepo.MarkAdminNotified("tour_booking_archives", tourArchiveIDs); err != nil {
			utils.LogEvent(s.RequestID, "expiry", "mark-notified", err.Error())
		}
	}

	return report, nil
}

// ArchivePropertyBooking is the shared archive-then-delete primitive:
// snapshot, release blocked dates, drop the booking row, all in one
// transaction.
func (s ExpiryService) ArchivePropertyBooking(ctx context.Context, b models.PropertyBooking, reason string) (int64, error) {
	var archiveID int64
	err := intdb.WithTx(ctx, s.db(), func(tx *sql.Tx) error {
		id, err := s.ArchiveRepo.InsertPropertyArchive(tx, models.BookingArchive{
			BookingID:     b.ID,
			PropertyID:    b.PropertyID,
			HostID:        b.HostID,
			GuestID:       b.GuestID,
			GuestName:     b.GuestName,
			GuestEmail:    b.GuestEmail,
			CheckIn:       b.CheckIn,
			CheckOut:      b.CheckOut,
			TotalAmount:   b.TotalAmount,
			Currency:      b.Currency,
			ArchiveReason: reason,
			LeadStatus:    models.LeadNew,
			BookedAt:      b.CreatedAt,
		})
		if err != nil {
			return err
		}
		archiveID = id

		if err := s.BookingRepo.DeleteBlockedDates(tx, b.ID); err != nil {
			return err
		}
		return s.BookingRepo.Delete(tx, b.ID)
	})
	return archiveID, err
}

// ArchiveTourBooking mirrors the primitive for tours, returning the held
// slots to the schedule.
func (s ExpiryService) ArchiveTourBooking(ctx context.Context, b models.TourBooking, reason string) (int64, error) {
	var archiveID int64
	err := intdb.WithTx(ctx, s.db(), func(tx *sql.Tx) error {
		id, err := s.ArchiveRepo.InsertTourArchive(tx, models.TourBookingArchive{
			BookingID:     b.ID,
			TourID:        b.TourID,
			ScheduleID:    b.ScheduleID,
			GuideID:       b.GuideID,
			GuestID:       b.GuestID,
			GuestName:     b.GuestName,
			GuestEmail:    b.GuestEmail,
			Participants:  b.Participants,
			TotalAmount:   b.TotalAmount,
			Currency:      b.Currency,
			ArchiveReason: reason,
			LeadStatus:    models.LeadNew,
			BookedAt:      b.CreatedAt,
		})
		if err != nil {
			return err
		}
		archiveID = id

		// slots already given back by the failed-payment sweep must not be
		// decremented a second time
		if !b.InventoryReleased {
			if err := s.TourRepo.ReleaseScheduleSlots(tx, b.ScheduleID, b.Participants); err != nil {
				return err
			}
		}
		return s.TourRepo.Delete(tx, b.ID)
	})
	return archiveID, err
}

// CancelProperty is the explicit cancellation path (admin action or FAILED
// webhook follow-up); it reuses the exact primitive the scheduler uses.
func (s ExpiryService) CancelProperty(ctx context.Context, bookingID int64, reason string) (int64, error) {
	b, err := s.BookingRepo.GetByID(bookingID)
	if err != nil {
		return 0, err
	}
	if reason == "" {
		reason = "Cancelled: dibatalkan manual"
	}
	return s.ArchivePropertyBooking(ctx, b, reason)
}

// CancelTour mirrors CancelProperty for tour bookings.
func (s ExpiryService) CancelTour(ctx context.Context, bookingID int64, reason string) (int64, error) {
	b, err := s.TourRepo.GetByID(bookingID)
	if err != nil {
		return 0, err
	}
	if reason == "" {
		reason = "Cancelled: dibatalkan manual"
	}
	return s.ArchiveTourBooking(ctx, b, reason)
}
