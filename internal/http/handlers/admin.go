package handlers

import (
	"net/http"
	"strconv"
	"time"

	"marketplace/internal/http/middleware"
	"marketplace/internal/repositories"
	"marketplace/internal/services"

	"github.com/gin-gonic/gin"
)

func newExpiryService(reqID string) services.ExpiryService {
	env := getEnv()
	return services.ExpiryService{
		BookingRepo: repositories.BookingRepository{},
		TourRepo:    repositories.TourBookingRepository{},
		ArchiveRepo: repositories.ArchiveRepository{},
		Timeout:     time.Duration(env.BookingExpiryMinutes) * time.Minute,
		RequestID:   reqID,
	}
}

// GET /api/admin/distributions/undistributed
func GetUndistributed(c *gin.Context) {
	report, err := newDistributionService(middleware.GetRequestID(c)).Undistributed()
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// POST /api/admin/distributions/bookings/:id?type=property|tour
func DistributeBooking(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		RespondError(c, http.StatusBadRequest, "id tidak valid", err)
		return
	}

	svc := newDistributionService(middleware.GetRequestID(c))
	var out services.DistributionOutcome
	if c.Query("type") == services.BookingTypeTour {
		out, err = svc.DistributeTour(c.Request.Context(), id)
	} else {
		out, err = svc.DistributeProperty(c.Request.Context(), id)
	}
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// POST /api/admin/distributions/run
func DistributeAll(c *gin.Context) {
	outcomes, err := newDistributionService(middleware.GetRequestID(c)).DistributeAll(c.Request.Context())
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(outcomes), "outcomes": outcomes})
}

// GET /api/admin/distributions/stats
func DistributionStats(c *gin.Context) {
	stats, err := newDistributionService(middleware.GetRequestID(c)).Stats()
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// POST /api/admin/webhooks/reprocess
func ReprocessWebhooks(c *gin.Context) {
	var req struct {
		Limit int `json:"limit"`
	}
	_ = c.ShouldBindJSON(&req)

	processed, err := newWebhookService(middleware.GetRequestID(c)).RetryUnprocessed(c.Request.Context(), req.Limit)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"processed": processed})
}

// POST /api/admin/transactions/:id/recheck
//
// Pulls the authoritative status from the aggregator for a transaction whose
// callback got lost or failed, and replays it through the state machine.
func RecheckTransaction(c *gin.Context) {
	txID := c.Param("id")
	reqID := middleware.GetRequestID(c)

	svc := services.TransactionService{
		TxRepo:      repositories.TransactionRepository{},
		BookingRepo: repositories.BookingRepository{},
		TourRepo:    repositories.TourBookingRepository{},
		EscrowRepo:  repositories.EscrowRepository{},
		RequestID:   reqID,
	}
	result, err := svc.Recheck(c.Request.Context(), getAggregator(), txID)
	if err != nil {
		RespondDomainError(c, err)
		return
	}

	if result.NeedsDistribution() {
		// same follow-up the webhook path runs
		newWebhookService(reqID).DistributeFor(c.Request.Context(), result)
	}

	c.JSON(http.StatusOK, gin.H{
		"transaction": result.Transaction,
		"applied":     result.Applied,
		"duplicate":   result.Duplicate,
		"unresolved":  result.Unresolved,
	})
}

// POST /api/admin/bookings/:id/cancel?type=property|tour
func CancelBooking(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		RespondError(c, http.StatusBadRequest, "id tidak valid", err)
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&req)

	svc := newExpiryService(middleware.GetRequestID(c))
	var archiveID int64
	if c.Query("type") == services.BookingTypeTour {
		archiveID, err = svc.CancelTour(c.Request.Context(), id, req.Reason)
	} else {
		archiveID, err = svc.CancelProperty(c.Request.Context(), id, req.Reason)
	}
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"archive_id": archiveID})
}

// POST /api/admin/expiry/run: manual trigger for the sweep the scheduler
// runs on its interval.
func RunExpiry(c *gin.Context) {
	report, err := newExpiryService(middleware.GetRequestID(c)).Run(c.Request.Context())
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
