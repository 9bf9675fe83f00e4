package entities

import "time"

type WaitlistJoinRequest struct {
	OrgID          int       `json:"org_id"`
	ResourceID     int       `json:"resource_id"`
	UserEmail      string    `json:"user_email"`
	UserName       string    `json:"user_name"`
	UserPhone      string    `json:"user_phone"`
	RequestedStart time.Time `json:"requested_start_time"`
	RequestedEnd   time.Time `json:"requested_end_time"`
	Note           string    `json:"note"`
}

// Offer is a time-boxed invitation for a waitlisted requester to claim
// a freed slot. It is returned by a waitlist pass and dispatched to the
// notification sink; it is not persisted beyond the entry it annotates.
type Offer struct {
	EntryCode      string    `json:"entry_id"`
	ResourceID     int       `json:"resource_id"`
	RequesterEmail string    `json:"-"`
	RequesterName  string    `json:"-"`
	RequesterPhone string    `json:"-"`
	SlotStart      time.Time `json:"slot_start"`
	SlotEnd        time.Time `json:"slot_end"`
	ExpiresAt      time.Time `json:"expires_at"`
}

type WaitlistEntryResponse struct {
	EntryID        string    `json:"entry_id"`
	ResourceID     int       `json:"resource_id"`
	RequestedStart time.Time `json:"requested_start_time"`
	RequestedEnd   time.Time `json:"requested_end_time"`
	Priority       int       `json:"priority"`
	Status         string    `json:"status"`
	ExpiresAt      time.Time `json:"expires_at"`
}
