package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"marketplace/internal/domain/models"
	"marketplace/internal/http/middleware"
	"marketplace/internal/repositories"
	"marketplace/internal/services"
	"marketplace/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const signatureHeader = "X-Webhook-Signature"

// GET /api/payments/callback: aggregator-facing health probe.
func PaymentCallbackHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// POST /api/payments/callback
//
// Authentication failures get 401 and nothing is persisted. After that point
// the provider always gets 200: internal failures land in the webhook log
// instead of triggering retry storms.
func PaymentCallback(c *gin.Context) {
	env := getEnv()
	reqID := middleware.GetRequestID(c)

	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil || len(raw) == 0 {
		c.JSON(http.StatusBadRequest, services.CallbackResponse{Success: false, Error: "body kosong"})
		return
	}

	signature := strings.TrimSpace(c.GetHeader(signatureHeader))
	sigValid, authed := authenticateCallback(env.WebhookSecret, env.WebhookBearerToken, signature, c.GetHeader("Authorization"), raw)

	// IP allow-listing is additive when configured
	if authed && len(env.AllowedIPs) > 0 && !containsString(env.AllowedIPs, c.ClientIP()) {
		authed = false
	}
	if !authed {
		utils.LogEvent(reqID, "webhook", "auth", "callback ditolak dari "+c.ClientIP())
		c.JSON(http.StatusUnauthorized, services.CallbackResponse{Success: false, Error: "unauthorized"})
		return
	}

	entry := models.WebhookLogEntry{
		ID:             uuid.NewString(),
		TransactionID:  peekTransactionID(raw),
		Payload:        string(raw),
		Signature:      signature,
		SignatureValid: sigValid,
		SourceIP:       c.ClientIP(),
	}

	logRepo := repositories.WebhookLogRepository{}
	if err := logRepo.Append(entry); err != nil {
		// the log write is the one thing we can not skip; report internal
		// failure but keep the 200 contract
		utils.LogEvent(reqID, "webhook", "log", err.Error())
		c.JSON(http.StatusOK, services.CallbackResponse{Success: false, TransactionID: entry.TransactionID, Error: "internal error"})
		return
	}

	svc := newWebhookService(reqID)
	resp := svc.Process(c.Request.Context(), entry.ID, raw)
	c.JSON(http.StatusOK, resp)
}

// authenticateCallback checks the HMAC signature and/or the static bearer
// token; either passing is enough.
func authenticateCallback(secret, bearerToken, signature, authHeader string, raw []byte) (sigValid, authed bool) {
	if secret != "" && signature != "" {
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(raw)
		expected := hex.EncodeToString(mac.Sum(nil))
		sigValid = hmac.Equal([]byte(strings.ToLower(signature)), []byte(expected))
		if sigValid {
			authed = true
		}
	}

	if !authed && bearerToken != "" {
		got := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(authHeader), "Bearer"))
		if got != "" && subtle.ConstantTimeCompare([]byte(got), []byte(bearerToken)) == 1 {
			authed = true
		}
	}
	return sigValid, authed
}

// peekTransactionID extracts the provider id for the audit row without
// running full validation; malformed payloads still get logged.
func peekTransactionID(raw []byte) string {
	var probe struct {
		DepositID string `json:"depositId"`
		PayoutID  string `json:"payoutId"`
		RefundID  string `json:"refundId"`
	}
	_ = json.Unmarshal(raw, &probe)
	switch {
	case probe.DepositID != "":
		return probe.DepositID
	case probe.PayoutID != "":
		return probe.PayoutID
	default:
		return probe.RefundID
	}
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func newWebhookService(reqID string) services.WebhookService {
	return services.WebhookService{
		LogRepo: repositories.WebhookLogRepository{},
		TxSvc: services.TransactionService{
			TxRepo:      repositories.TransactionRepository{},
			BookingRepo: repositories.BookingRepository{},
			TourRepo:    repositories.TourBookingRepository{},
			EscrowRepo:  repositories.EscrowRepository{},
			RequestID:   reqID,
		},
		Distribution: newDistributionService(reqID),
		RequestID:    reqID,
	}
}

func newDistributionService(reqID string) services.DistributionService {
	return services.DistributionService{
		BookingRepo: repositories.BookingRepository{},
		TourRepo:    repositories.TourBookingRepository{},
		WalletRepo:  repositories.WalletRepository{},
		Rates:       services.DefaultFeeRates(),
		RequestID:   reqID,
	}
}
