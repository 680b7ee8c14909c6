package services

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"marketplace/internal/utils"

	"github.com/phpdave11/gofpdf"
)

// ReportService menghasilkan PDF ringkasan distribusi dana untuk admin.
type ReportService struct {
	Distribution DistributionService
	RequestID    string
	Now          func() time.Time
}

func (s ReportService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return utils.NowUTC()
}

// GenerateDistributionReport builds the distribution summary PDF: aggregate
// counters per booking kind plus the backlog of paid-but-undistributed
// bookings. Returns the PDF bytes and a suggested filename.
func (s ReportService) GenerateDistributionReport() ([]byte, string, error) {
	stats, err := s.Distribution.Stats()
	if err != nil {
		return nil, "", err
	}
	backlog, err := s.Distribution.Undistributed()
	if err != nil {
		return nil, "", err
	}
	utils.LogEvent(s.RequestID, "report", "generate_distribution",
		fmt.Sprintf("backlog property=%d tour=%d", len(backlog.Properties), len(backlog.Tours)))
	return buildDistributionPDF(stats, backlog, s.now())
}

func buildDistributionPDF(stats StatsReport, backlog UndistributedReport, now time.Time) ([]byte, string, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Distribution Report", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "LAPORAN DISTRIBUSI DANA")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 7, "Dibuat: "+now.Format("2006-01-02 15:04")+" UTC")
	pdf.Ln(10)

	writeStatsBlock(pdf, "Booking Properti", stats.Property.DistributedCount,
		stats.Property.UndistributedCount, stats.Property.DistributedTotal, stats.Property.PendingRetryCount)
	writeStatsBlock(pdf, "Booking Tur", stats.Tour.DistributedCount,
		stats.Tour.UndistributedCount, stats.Tour.DistributedTotal, stats.Tour.PendingRetryCount)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 8, "Antrian Belum Terdistribusi")
	pdf.Ln(9)

	pdf.SetFont("Helvetica", "", 10)
	if len(backlog.Properties) == 0 && len(backlog.Tours) == 0 {
		pdf.Cell(0, 6, "Tidak ada booking yang menunggu distribusi.")
		pdf.Ln(6)
	}
	for _, b := range backlog.Properties {
		line := fmt.Sprintf("PROPERTI #%d  host=%d  %s  attempts=%d",
			b.ID, b.HostID, utils.FormatMoney(b.TotalAmount, b.Currency), b.DistributionAttempts)
		if strings.TrimSpace(b.DistributionError) != "" {
			line += "  error=" + truncateErr(b.DistributionError)
		}
		pdf.Cell(0, 6, line)
		pdf.Ln(6)
	}
	for _, b := range backlog.Tours {
		line := fmt.Sprintf("TUR #%d  guide=%d  %s  attempts=%d",
			b.ID, b.GuideID, utils.FormatMoney(b.TotalAmount, b.Currency), b.DistributionAttempts)
		if strings.TrimSpace(b.DistributionError) != "" {
			line += "  error=" + truncateErr(b.DistributionError)
		}
		pdf.Cell(0, 6, line)
		pdf.Ln(6)
	}

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "I", 9)
	pdf.MultiCell(0, 5, "Nominal terdistribusi dicatat dalam satuan terkecil mata uang masing-masing booking.", "", "", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", err
	}

	filename := fmt.Sprintf("DISTRIBUTION_REPORT_%s.pdf", now.Format("20060102_1504"))
	return buf.Bytes(), filename, nil
}

func writeStatsBlock(pdf *gofpdf.Fpdf, title string, done, pending, total, retry int64) {
	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 8, title)
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 11)
	lines := []string{
		fmt.Sprintf("Terdistribusi        : %d", done),
		fmt.Sprintf("Belum terdistribusi  : %d", pending),
		fmt.Sprintf("Total tersalurkan    : %d (satuan terkecil)", total),
		fmt.Sprintf("Menunggu retry       : %d", retry),
	}
	for _, l := range lines {
		pdf.Cell(0, 6, l)
		pdf.Ln(6)
	}
	pdf.Ln(4)
}

func truncateErr(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}
