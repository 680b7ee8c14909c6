package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"marketplace/internal/domain"
	"marketplace/internal/domain/models"
	"marketplace/internal/repositories"
	"marketplace/internal/utils"
)

// CallbackPayload is the strict schema for aggregator notifications. Exactly
// one of DepositID/PayoutID/RefundID identifies the transaction; anything
// that fails validation never reaches the state machine.
type CallbackPayload struct {
	DepositID       string        `json:"depositId"`
	PayoutID        string        `json:"payoutId"`
	RefundID        string        `json:"refundId"`
	Status          string        `json:"status"`
	RequestedAmount string        `json:"requestedAmount"`
	DepositedAmount string        `json:"depositedAmount"`
	Currency        string        `json:"currency"`
	Country         string        `json:"country"`
	Correspondent   string        `json:"correspondent"`
	Payer           *PartyAddress `json:"payer,omitempty"`
	Recipient       *PartyAddress `json:"recipient,omitempty"`
	FailureReason   struct {
		FailureCode    string `json:"failureCode"`
		FailureMessage string `json:"failureMessage"`
	} `json:"failureReason"`
	Metadata map[string]any `json:"metadata"`
}

// PartyAddress is the payer/recipient address object.
type PartyAddress struct {
	Type    string `json:"type"`
	Address struct {
		Value string `json:"value"`
	} `json:"address"`
}

// TransactionID returns the provider id regardless of transaction type.
func (p CallbackPayload) TransactionID() string {
	switch {
	case p.DepositID != "":
		return p.DepositID
	case p.PayoutID != "":
		return p.PayoutID
	default:
		return p.RefundID
	}
}

// TransactionType derives the ledger type from which id field is set.
func (p CallbackPayload) TransactionType() string {
	switch {
	case p.DepositID != "":
		return models.TxTypeDeposit
	case p.PayoutID != "":
		return models.TxTypePayout
	default:
		return models.TxTypeRefund
	}
}

// InternalReference reads the correlation string out of metadata.
func (p CallbackPayload) InternalReference() string {
	if v, ok := p.Metadata["internalReference"]; ok {
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// ParseCallback validates the raw body against the schema.
func ParseCallback(raw []byte) (CallbackPayload, error) {
	var p CallbackPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return CallbackPayload{}, domain.ValidationError{Field: "payload", Msg: "bukan JSON valid", Err: err}
	}

	ids := 0
	for _, id := range []string{p.DepositID, p.PayoutID, p.RefundID} {
		if strings.TrimSpace(id) != "" {
			ids++
		}
	}
	if ids != 1 {
		return CallbackPayload{}, domain.ValidationError{Field: "transactionId", Msg: "tepat satu dari depositId/payoutId/refundId wajib diisi"}
	}

	p.Status = strings.ToUpper(strings.TrimSpace(p.Status))
	switch p.Status {
	case models.TxStatusSubmitted, models.TxStatusAccepted,
		models.TxStatusCompleted, models.TxStatusFailed,
		models.TxStatusRejected, models.TxStatusCancelled:
	case "":
		return CallbackPayload{}, domain.ValidationError{Field: "status", Msg: "wajib diisi"}
	default:
		return CallbackPayload{}, domain.ValidationError{Field: "status", Msg: "tidak dikenal: " + p.Status}
	}

	for _, amt := range []string{p.RequestedAmount, p.DepositedAmount} {
		if amt == "" {
			continue
		}
		if _, err := utils.ParseProviderAmount(amt); err != nil {
			return CallbackPayload{}, domain.ValidationError{Field: "amount", Msg: err.Error()}
		}
	}

	if p.Status == models.TxStatusCompleted && strings.TrimSpace(p.Currency) == "" {
		return CallbackPayload{}, domain.ValidationError{Field: "currency", Msg: "wajib diisi untuk status COMPLETED"}
	}

	return p, nil
}

// ToTransaction maps a validated payload onto a ledger update.
func (p CallbackPayload) ToTransaction() models.ProviderTransaction {
	return models.ProviderTransaction{
		TransactionID:     p.TransactionID(),
		TransactionType:   p.TransactionType(),
		Status:            p.Status,
		RequestedAmount:   p.RequestedAmount,
		DepositedAmount:   p.DepositedAmount,
		Currency:          p.Currency,
		Country:           p.Country,
		Correspondent:     p.Correspondent,
		InternalReference: p.InternalReference(),
		FailureCode:       p.FailureReason.FailureCode,
		FailureMessage:    p.FailureReason.FailureMessage,
		CallbackReceived:  true,
	}
}

// CallbackResponse is what the webhook endpoint returns. The HTTP status is
// always 200 once authentication passed; Success=false carries internal
// failures without triggering provider retry storms.
type CallbackResponse struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transactionId,omitempty"`
	Status        string `json:"status,omitempty"`
	Error         string `json:"error,omitempty"`
}

// WebhookService drives a logged notification through parsing, the state
// machine, and fund distribution.
type WebhookService struct {
	LogRepo      repositories.WebhookLogRepository
	TxSvc        TransactionService
	Distribution DistributionService
	RequestID    string
}

// Process assumes the raw notification is already persisted in the webhook
// log under logID. Every failure path records a processing error on that row
// instead of propagating past the boundary.
func (s WebhookService) Process(ctx context.Context, logID string, raw []byte) CallbackResponse {
	payload, err := ParseCallback(raw)
	if err != nil {
		s.fail(logID, err)
		return CallbackResponse{Success: false, Error: err.Error()}
	}

	result, err := s.TxSvc.Apply(ctx, payload.ToTransaction())
	if err != nil {
		s.fail(logID, err)
		return CallbackResponse{
			Success:       false,
			TransactionID: payload.TransactionID(),
			Status:        payload.Status,
			Error:         err.Error(),
		}
	}

	resp := CallbackResponse{
		Success:       true,
		TransactionID: result.Transaction.TransactionID,
		Status:        result.Transaction.Status,
	}

	if result.Unresolved {
		// ledger is updated; the domain effect waits for manual
		// reconciliation via the reprocess sweep
		_ = s.LogRepo.MarkFailed(logID, "unresolvable internal reference: "+result.Transaction.InternalReference)
		resp.Success = false
		resp.Error = "unresolvable internal reference"
		return resp
	}

	if err := s.LogRepo.MarkProcessed(logID); err != nil {
		utils.LogEvent(s.RequestID, "webhook", "mark-processed", err.Error())
	}

	if result.NeedsDistribution() {
		s.DistributeFor(ctx, result)
	}
	return resp
}

// DistributeFor runs fund distribution for a transition that just completed
// a booking payment. Shared by the callback path and the admin recheck.
func (s WebhookService) DistributeFor(ctx context.Context, result ApplyResult) {
	var err error
	switch result.Reference.Kind {
	case domain.KindBooking:
		_, err = s.Distribution.DistributeProperty(ctx, result.Reference.ID)
	case domain.KindTourBooking:
		_, err = s.Distribution.DistributeTour(ctx, result.Reference.ID)
	}
	if err != nil {
		// non-fatal: the attempt counter on the booking drives the retry
		utils.LogEvent(s.RequestID, "webhook", "distribute",
			fmt.Sprintf("distribusi %s gagal: %v", result.Reference.String(), err))
	}
}

func (s WebhookService) fail(logID string, cause error) {
	if err := s.LogRepo.MarkFailed(logID, cause.Error()); err != nil {
		utils.LogEvent(s.RequestID, "webhook", "mark-failed", err.Error())
	}
}

// RetryUnprocessed replays webhook log entries that recorded a processing
// error. Safe to run repeatedly: the state machine is idempotent.
func (s WebhookService) RetryUnprocessed(ctx context.Context, limit int) (int, error) {
	entries, err := s.LogRepo.ListUnprocessed(limit)
	if err != nil {
		return 0, err
	}

	ok := 0
	for _, e := range entries {
		resp := s.Process(ctx, e.ID, []byte(e.Payload))
		if resp.Success {
			ok++
		}
	}
	return ok, nil
}
