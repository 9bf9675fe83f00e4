package entities

import "time"

type BookingRequest struct {
	OrgID          int       `json:"org_id"`
	ResourceID     int       `json:"resource_id"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	RequesterName  string    `json:"requester_name"`
	RequesterEmail string    `json:"requester_email"`
	RequesterPhone string    `json:"requester_phone"`
	Notes          string    `json:"notes"`
}

// BookingPatch carries booking fields a caller wants to change. Nil
// fields are left untouched.
type BookingPatch struct {
	StartTime      *time.Time `json:"start_time"`
	EndTime        *time.Time `json:"end_time"`
	RequesterName  *string    `json:"requester_name"`
	RequesterEmail *string    `json:"requester_email"`
	RequesterPhone *string    `json:"requester_phone"`
	Notes          *string    `json:"notes"`
}

type BookingResponse struct {
	BookingID      string    `json:"booking_id"`
	OrgID          int       `json:"org_id"`
	ResourceID     int       `json:"resource_id"`
	RequesterName  string    `json:"requester_name"`
	RequesterEmail string    `json:"requester_email"`
	RequesterPhone string    `json:"requester_phone,omitempty"`
	Notes          string    `json:"notes,omitempty"`
	Status         string    `json:"status"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type BookingsList struct {
	Total    int               `json:"total"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
	Bookings []BookingResponse `json:"bookings"`
}
