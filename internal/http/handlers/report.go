package handlers

import (
	"fmt"
	"net/http"

	"marketplace/internal/http/middleware"
	"marketplace/internal/services"

	"github.com/gin-gonic/gin"
)

// GET /api/admin/distributions/report
//
// Returns the distribution summary as a PDF.
func GetDistributionReportPDF(c *gin.Context) {
	reqID := middleware.GetRequestID(c)
	svc := services.ReportService{
		Distribution: newDistributionService(reqID),
		RequestID:    reqID,
	}

	pdfBytes, filename, err := svc.GenerateDistributionReport()
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "gagal membuat PDF laporan distribusi", err)
		return
	}

	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="%s"`, filename))
	c.Data(http.StatusOK, "application/pdf", pdfBytes)
}
