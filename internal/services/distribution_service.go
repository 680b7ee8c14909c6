package services

import (
	"context"
	"database/sql"
	"fmt"

	intconfig "marketplace/internal/config"
	intdb "marketplace/internal/db"
	"marketplace/internal/domain"
	"marketplace/internal/domain/models"
	"marketplace/internal/repositories"
	"marketplace/internal/utils"
)

// Booking types for the fee table.
const (
	BookingTypeProperty = "property"
	BookingTypeTour     = "tour"
)

// FeeRates holds the platform commission in basis points per booking type.
type FeeRates struct {
	PropertyBps int64
	TourBps     int64
}

// DefaultFeeRates: 10% on stays, 15% on tours.
func DefaultFeeRates() FeeRates {
	return FeeRates{PropertyBps: 1000, TourBps: 1500}
}

// PlatformFee computes the platform cut for a gross amount in the smallest
// currency unit. Pure function: no lookups, no side effects.
func PlatformFee(gross int64, bookingType string, rates FeeRates) int64 {
	if gross <= 0 {
		return 0
	}
	bps := rates.PropertyBps
	if bookingType == BookingTypeTour {
		bps = rates.TourBps
	}
	return gross * bps / 10000
}

// DistributionService splits completed booking payments into platform fee and
// provider earning, credits the provider wallet, and records the split
// exactly once per booking.
type DistributionService struct {
	DB          *sql.DB
	BookingRepo repositories.BookingRepository
	TourRepo    repositories.TourBookingRepository
	WalletRepo  repositories.WalletRepository
	Rates       FeeRates
	RequestID   string
}

func (s DistributionService) db() *sql.DB {
	if s.DB != nil {
		return s.DB
	}
	return intconfig.DB
}

func (s DistributionService) rates() FeeRates {
	if s.Rates.PropertyBps == 0 && s.Rates.TourBps == 0 {
		return DefaultFeeRates()
	}
	return s.Rates
}

// DistributionOutcome describes one distribution attempt.
type DistributionOutcome struct {
	BookingID   int64  `json:"booking_id"`
	BookingType string `json:"booking_type"`
	Gross       int64  `json:"gross"`
	PlatformFee int64  `json:"platform_fee"`
	Earning     int64  `json:"earning"`
	Currency    string `json:"currency"`
	WalletRef   string `json:"wallet_ref,omitempty"`
	Skipped     bool   `json:"skipped"` // already distributed
	Error       string `json:"error,omitempty"`
}

// DistributeProperty credits the host for one paid property booking. The
// distributed flag is re-checked under the booking row lock, inside the same
// transaction as the wallet credit, so concurrent triggers (webhook + admin
// sweep) can never double-credit.
func (s DistributionService) DistributeProperty(ctx context.Context, bookingID int64) (DistributionOutcome, error) {
	out := DistributionOutcome{BookingID: bookingID, BookingType: BookingTypeProperty}

	err := intdb.WithTx(ctx, s.db(), func(tx *sql.Tx) error {
		b, err := s.BookingRepo.LockByID(tx, bookingID)
		if err != nil {
			return err
		}
		if b.Distributed {
			out.Skipped = true
			return nil
		}
		if b.PaymentStatus != models.PaymentCompleted {
			return domain.ConflictError{Resource: "distribution", Msg: "pembayaran booking belum completed"}
		}

		fee := PlatformFee(b.TotalAmount, BookingTypeProperty, s.rates())
		earning := b.TotalAmount - fee
		out.Gross = b.TotalAmount
		out.PlatformFee = fee
		out.Earning = earning
		out.Currency = b.Currency

		w, err := s.WalletRepo.LockOrCreate(tx, b.HostID, b.Currency)
		if err != nil {
			return err
		}
		entry, err := s.WalletRepo.Credit(tx, w, earning, models.WalletSourceDistribution,
			fmt.Sprintf("Earning booking #%d (%s %s, fee %s)",
				b.ID, b.Currency, utils.FormatMoney(earning, b.Currency), utils.FormatMoney(fee, b.Currency)))
		if err != nil {
			return err
		}
		out.WalletRef = entry.Reference

		return s.BookingRepo.MarkDistributed(tx, b.ID)
	})

	if err != nil {
		out.Error = err.Error()
		if rerr := s.BookingRepo.RecordDistributionFailure(bookingID, err.Error()); rerr != nil {
			utils.LogEvent(s.RequestID, "distribution", "record-failure", rerr.Error())
		}
		return out, err
	}
	return out, nil
}

// DistributeTour credits the guide for one paid tour booking.
func (s DistributionService) DistributeTour(ctx context.Context, bookingID int64) (DistributionOutcome, error) {
	out := DistributionOutcome{BookingID: bookingID, BookingType: BookingTypeTour}

	err := intdb.WithTx(ctx, s.db(), func(tx *sql.Tx) error {
		b, err := s.TourRepo.LockByID(tx, bookingID)
		if err != nil {
			return err
		}
		if b.Distributed {
			out.Skipped = true
			return nil
		}
		if b.PaymentStatus != models.PaymentCompleted {
			return domain.ConflictError{Resource: "distribution", Msg: "pembayaran booking belum completed"}
		}

		fee := PlatformFee(b.TotalAmount, BookingTypeTour, s.rates())
		earning := b.TotalAmount - fee
		out.Gross = b.TotalAmount
		out.PlatformFee = fee
		out.Earning = earning
		out.Currency = b.Currency

		w, err := s.WalletRepo.LockOrCreate(tx, b.GuideID, b.Currency)
		if err != nil {
			return err
		}
		entry, err := s.WalletRepo.Credit(tx, w, earning, models.WalletSourceDistribution,
			fmt.Sprintf("Earning tour booking #%d (%s %s, fee %s)",
				b.ID, b.Currency, utils.FormatMoney(earning, b.Currency), utils.FormatMoney(fee, b.Currency)))
		if err != nil {
			return err
		}
		out.WalletRef = entry.Reference

		return s.TourRepo.MarkDistributed(tx, b.ID)
	})

	if err != nil {
		out.Error = err.Error()
		if rerr := s.TourRepo.RecordDistributionFailure(bookingID, err.Error()); rerr != nil {
			utils.LogEvent(s.RequestID, "distribution", "record-failure", rerr.Error())
		}
		return out, err
	}
	return out, nil
}

// DistributeAll is the reconciliation sweep behind the admin "distribute all
// undistributed" action. Per-booking failures are recorded and skipped, never
// fatal for the sweep.
func (s DistributionService) DistributeAll(ctx context.Context) ([]DistributionOutcome, error) {
	outcomes := []DistributionOutcome{}

	props, err := s.BookingRepo.ListUndistributed()
	if err != nil {
		return nil, err
	}
	for _, b := range props {
		out, err := s.DistributeProperty(ctx, b.ID)
		if err != nil {
			utils.LogEvent(s.RequestID, "distribution", "sweep",
				fmt.Sprintf("booking %d gagal: %v", b.ID, err))
		}
		outcomes = append(outcomes, out)
	}

	tours, err := s.TourRepo.ListUndistributed()
	if err != nil {
		return outcomes, err
	}
	for _, b := range tours {
		out, err := s.DistributeTour(ctx, b.ID)
		if err != nil {
			utils.LogEvent(s.RequestID, "distribution", "sweep",
				fmt.Sprintf("tour booking %d gagal: %v", b.ID, err))
		}
		outcomes = append(outcomes, out)
	}

	return outcomes, nil
}

// UndistributedReport lists paid bookings still waiting for distribution.
type UndistributedReport struct {
	Properties []models.PropertyBooking `json:"properties"`
	Tours      []models.TourBooking     `json:"tours"`
}

func (s DistributionService) Undistributed() (UndistributedReport, error) {
	props, err := s.BookingRepo.ListUndistributed()
	if err != nil {
		return UndistributedReport{}, err
	}
	tours, err := s.TourRepo.ListUndistributed()
	if err != nil {
		return UndistributedReport{}, err
	}
	return UndistributedReport{Properties: props, Tours: tours}, nil
}

// StatsReport combines distribution stats for both booking kinds.
type StatsReport struct {
	Property repositories.DistributionStats `json:"property"`
	Tour     repositories.DistributionStats `json:"tour"`
}

func (s DistributionService) Stats() (StatsReport, error) {
	prop, err := s.BookingRepo.Stats()
	if err != nil {
		return StatsReport{}, err
	}
	tour, err := s.TourRepo.Stats()
	if err != nil {
		return StatsReport{}, err
	}
	return StatsReport{Property: prop, Tour: tour}, nil
}
