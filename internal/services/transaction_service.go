package services

import (
	"context"
	"database/sql"
	"time"

	intconfig "marketplace/internal/config"
	intdb "marketplace/internal/db"
	"marketplace/internal/domain"
	"marketplace/internal/domain/models"
	"marketplace/internal/repositories"
	"marketplace/internal/utils"
)

// TransactionService is the provider-transaction state machine. It applies
// status updates to the ledger and triggers the domain-side effect for the
// transaction type. Terminal statuses are applied exactly once; duplicate or
// out-of-order deliveries are no-ops.
type TransactionService struct {
	DB          *sql.DB
	TxRepo      repositories.TransactionRepository
	BookingRepo repositories.BookingRepository
	TourRepo    repositories.TourBookingRepository
	EscrowRepo  repositories.EscrowRepository
	RequestID   string
	Now         func() time.Time
}

func (s TransactionService) db() *sql.DB {
	if s.DB != nil {
		return s.DB
	}
	return intconfig.DB
}

func (s TransactionService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return utils.NowUTC()
}

// ApplyResult reports what a callback actually changed.
type ApplyResult struct {
	Transaction models.ProviderTransaction
	Applied     bool // a terminal transition happened in this call
	Duplicate   bool // ledger was already terminal or status unchanged
	Unresolved  bool // internal reference did not map to a domain row
	Reference   domain.Reference
}

// NeedsDistribution reports whether the ledger row is a completed booking
// deposit whose reference resolved, so the caller can run fund distribution
// after commit. Replays qualify too; distribution itself is exactly-once.
func (r ApplyResult) NeedsDistribution() bool {
	return !r.Unresolved &&
		r.Transaction.TransactionType == models.TxTypeDeposit &&
		r.Transaction.Status == models.TxStatusCompleted &&
		(r.Reference.Kind == domain.KindBooking || r.Reference.Kind == domain.KindTourBooking)
}

// Apply upserts the ledger row for a provider update and, for terminal
// statuses, applies the domain effect in the same transaction. The row lock
// on transaction_id serializes duplicate callbacks and admin actions.
func (s TransactionService) Apply(ctx context.Context, update models.ProviderTransaction) (ApplyResult, error) {
	var res ApplyResult

	err := intdb.WithTx(ctx, s.db(), func(tx *sql.Tx) error {
		existing, found, err := s.TxRepo.LockByTransactionID(tx, update.TransactionID)
		if err != nil {
			return err
		}

		if found {
			if existing.Terminal() || existing.Status == update.Status {
				res.Transaction = existing
				res.Duplicate = true
				if !existing.Terminal() {
					return nil
				}
				// A replayed terminal row still re-runs reference
				// resolution: the domain row may exist now even though it
				// did not when the callback first landed. Every domain
				// effect is guarded, so re-applying is a no-op otherwise.
				ref := domain.ParseReference(existing.InternalReference)
				res.Reference = ref
				if ref.Kind == domain.KindUnknown {
					res.Unresolved = true
					utils.LogEvent(s.RequestID, "transaction", "resolve",
						"reference tidak dikenal: "+existing.InternalReference+" tx="+existing.TransactionID)
					return nil
				}
				handled, err := s.applyDomainEffect(tx, existing, ref, s.now())
				if err != nil {
					return err
				}
				if !handled {
					res.Unresolved = true
				}
				return nil
			}
			// callbacks can omit fields the initiation already recorded
			if update.TransactionType == "" {
				update.TransactionType = existing.TransactionType
			}
			if update.InternalReference == "" {
				update.InternalReference = existing.InternalReference
			}
			if update.RequestedAmount == "" {
				update.RequestedAmount = existing.RequestedAmount
			}
			if update.Currency == "" {
				update.Currency = existing.Currency
			}
		}

		now := s.now()
		if update.Status == models.TxStatusCompleted && update.CompletedAt == nil {
			update.CompletedAt = &now
		}

		if found {
			if err := s.TxRepo.UpdateStatus(tx, update); err != nil {
				return err
			}
		} else if err := s.TxRepo.Insert(tx, update); err != nil {
			return err
		}
		res.Transaction = update

		if !models.IsTerminalTxStatus(update.Status) {
			// in flight (SUBMITTED/ACCEPTED): no domain effect yet
			return nil
		}
		res.Applied = true

		ref := domain.ParseReference(update.InternalReference)
		res.Reference = ref
		if ref.Kind == domain.KindUnknown {
			res.Unresolved = true
			utils.LogEvent(s.RequestID, "transaction", "resolve",
				"reference tidak dikenal: "+update.InternalReference+" tx="+update.TransactionID)
			return nil
		}

		handled, err := s.applyDomainEffect(tx, update, ref, now)
		if err != nil {
			return err
		}
		if !handled {
			res.Unresolved = true
			utils.LogEvent(s.RequestID, "transaction", "resolve",
				"reference "+ref.String()+" tidak cocok dengan tipe "+update.TransactionType)
		}
		return nil
	})

	return res, err
}

func (s TransactionService) applyDomainEffect(tx *sql.Tx, t models.ProviderTransaction, ref domain.Reference, now time.Time) (bool, error) {
	completed := t.Status == models.TxStatusCompleted

	switch t.TransactionType {
	case models.TxTypeDeposit:
		switch ref.Kind {
		case domain.KindBooking:
			if completed {
				return true, s.BookingRepo.SetPaymentCompleted(tx, ref.ID, t.TransactionID)
			}
			// inventory stays held; the scheduler releases it after the
			// guest's retry window
			return true, s.BookingRepo.SetPaymentFailed(tx, ref.ID, t.TransactionID)
		case domain.KindTourBooking:
			if completed {
				return true, s.TourRepo.SetPaymentCompleted(tx, ref.ID, t.TransactionID)
			}
			return true, s.TourRepo.SetPaymentFailed(tx, ref.ID, t.TransactionID)
		case domain.KindEscrow:
			if completed {
				return true, s.EscrowRepo.MarkEscrowFunded(tx, ref.ID, t.TransactionID, now)
			}
			return true, s.EscrowRepo.MarkEscrowFailed(tx, ref.ID)
		}

	case models.TxTypePayout:
		if ref.Kind == domain.KindWithdrawal {
			if completed {
				return true, s.EscrowRepo.MarkWithdrawalCompleted(tx, ref.ID, t.TransactionID, now)
			}
			return true, s.EscrowRepo.MarkWithdrawalRejected(tx, ref.ID)
		}

	case models.TxTypeRefund:
		if ref.Kind == domain.KindEscrow {
			if completed {
				return true, s.EscrowRepo.MarkEscrowRefunded(tx, ref.ID)
			}
			// failed refund keeps the escrow as-is for manual follow-up
			utils.LogEvent(s.RequestID, "transaction", "refund",
				"refund gagal untuk escrow "+ref.String()+" tx="+t.TransactionID)
			return true, nil
		}
	}

	return false, nil
}

// Recheck pulls the authoritative status from the aggregator and feeds it
// through the same state machine. Used when a callback got lost or failed.
func (s TransactionService) Recheck(ctx context.Context, aggr *AggregatorClient, transactionID string) (ApplyResult, error) {
	existing, err := s.TxRepo.GetByTransactionID(transactionID)
	if err != nil {
		return ApplyResult{}, err
	}

	st, err := aggr.FetchStatus(ctx, existing.TransactionType, transactionID)
	if err != nil {
		return ApplyResult{}, err
	}

	return s.Apply(ctx, models.ProviderTransaction{
		TransactionID:     existing.TransactionID,
		TransactionType:   existing.TransactionType,
		Status:            st.Status,
		RequestedAmount:   st.RequestedAmount,
		DepositedAmount:   st.DepositedAmount,
		Currency:          st.Currency,
		InternalReference: existing.InternalReference,
		FailureCode:       st.FailureReason.FailureCode,
		FailureMessage:    st.FailureReason.FailureMessage,
	})
}
