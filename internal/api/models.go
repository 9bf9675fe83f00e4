package api

import "time"

// Availability
type AvailabilityRequest struct {
	ResourceID int       `json:"resource_id"`
	StartDate  time.Time `json:"start_date"`
	EndDate    time.Time `json:"end_date"`
}

// Booking
type CreateBookingResponse struct {
	BookingID string `json:"booking_id"`
	Status    string `json:"status"`
}

type CancelBookingRequest struct {
	Reason string `json:"reason"`
}

// Waitlist
type WaitlistJoinResponse struct {
	EntryID string `json:"entry_id"`
}

type BookFromWaitlistRequest struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// Admin
type UpdateResourceRequest struct {
	Capacity int  `json:"capacity"`
	Bookable bool `json:"bookable"`
}
