package models

import "time"

// Booking statuses shared by property and tour bookings.
const (
	BookingPending    = "pending"
	BookingConfirmed  = "confirmed"
	BookingInProgress = "in_progress"
	BookingCompleted  = "completed"
	BookingCancelled  = "cancelled"
	BookingRefunded   = "refunded"
	BookingNoShow     = "no_show"
)

// Payment statuses on a booking.
const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
	PaymentFailed    = "failed"
)

// PropertyBooking is a stay reservation. Hold on inventory is expressed by
// BlockedDate rows tagged with the booking id.
type PropertyBooking struct {
	ID                   int64     `json:"id"`
	PropertyID           int64     `json:"property_id"`
	HostID               int64     `json:"host_id"`
	GuestID              int64     `json:"guest_id"`
	CheckIn              string    `json:"check_in"`  // YYYY-MM-DD
	CheckOut             string    `json:"check_out"` // YYYY-MM-DD
	GuestName            string    `json:"guest_name"`
	GuestEmail           string    `json:"guest_email"`
	TotalAmount          int64     `json:"total_amount"` // smallest currency unit
	Currency             string    `json:"currency"`
	Status               string    `json:"status"`
	PaymentStatus        string    `json:"payment_status"`
	ProviderTxID         string    `json:"provider_tx_id"`
	Distributed          bool      `json:"distributed"`
	DistributionAttempts int       `json:"distribution_attempts"`
	DistributionError    string    `json:"distribution_error"`
	InventoryReleased    bool      `json:"inventory_released"`
	CreatedAt            time.Time `json:"created_at"`
}

// TourBooking reserves seats on a tour schedule.
type TourBooking struct {
	ID                   int64     `json:"id"`
	TourID               int64     `json:"tour_id"`
	ScheduleID           int64     `json:"schedule_id"`
	GuideID              int64     `json:"guide_id"`
	GuestID              int64     `json:"guest_id"`
	GuestName            string    `json:"guest_name"`
	GuestEmail           string    `json:"guest_email"`
	Participants         int       `json:"participants"`
	TotalAmount          int64     `json:"total_amount"`
	Currency             string    `json:"currency"`
	Status               string    `json:"status"`
	PaymentStatus        string    `json:"payment_status"`
	ProviderTxID         string    `json:"provider_tx_id"`
	Distributed          bool      `json:"distributed"`
	DistributionAttempts int       `json:"distribution_attempts"`
	DistributionError    string    `json:"distribution_error"`
	InventoryReleased    bool      `json:"inventory_released"`
	CreatedAt            time.Time `json:"created_at"`
}

// BlockedDate holds property inventory for a pending/confirmed booking.
type BlockedDate struct {
	ID         int64  `json:"id"`
	PropertyID int64  `json:"property_id"`
	BookingID  int64  `json:"booking_id"`
	Date       string `json:"date"` // YYYY-MM-DD
}

// TourSchedule carries the booked-slot counter decremented on release.
type TourSchedule struct {
	ID          int64 `json:"id"`
	TourID      int64 `json:"tour_id"`
	Capacity    int   `json:"capacity"`
	BookedSlots int   `json:"booked_slots"`
}
