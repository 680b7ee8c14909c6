package models

import "time"

// Lead statuses on archived bookings.
const (
	LeadNew       = "new"
	LeadContacted = "contacted"
	LeadRecovered = "recovered"
	LeadLost      = "lost"
)

// BookingArchive is the write-once snapshot of a reaped property booking,
// kept for lead-recovery.
type BookingArchive struct {
	ID            int64     `json:"id"`
	BookingID     int64     `json:"booking_id"`
	PropertyID    int64     `json:"property_id"`
	HostID        int64     `json:"host_id"`
	GuestID       int64     `json:"guest_id"`
	GuestName     string    `json:"guest_name"`
	GuestEmail    string    `json:"guest_email"`
	CheckIn       string    `json:"check_in"`
	CheckOut      string    `json:"check_out"`
	TotalAmount   int64     `json:"total_amount"`
	Currency      string    `json:"currency"`
	ArchiveReason string    `json:"archive_reason"`
	LeadStatus    string    `json:"lead_status"`
	AdminNotified bool      `json:"admin_notified"`
	BookedAt      time.Time `json:"booked_at"`
	ArchivedAt    time.Time `json:"archived_at"`
}

// TourBookingArchive mirrors BookingArchive for tour bookings.
type TourBookingArchive struct {
	ID            int64     `json:"id"`
	BookingID     int64     `json:"booking_id"`
	TourID        int64     `json:"tour_id"`
	ScheduleID    int64     `json:"schedule_id"`
	GuideID       int64     `json:"guide_id"`
	GuestID       int64     `json:"guest_id"`
	GuestName     string    `json:"guest_name"`
	GuestEmail    string    `json:"guest_email"`
	Participants  int       `json:"participants"`
	TotalAmount   int64     `json:"total_amount"`
	Currency      string    `json:"currency"`
	ArchiveReason string    `json:"archive_reason"`
	LeadStatus    string    `json:"lead_status"`
	AdminNotified bool      `json:"admin_notified"`
	BookedAt      time.Time `json:"booked_at"`
	ArchivedAt    time.Time `json:"archived_at"`
}
