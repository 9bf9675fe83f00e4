package db

import (
	"database/sql"
	"time"
)

// Booking statuses. Cancelled, completed and no_show are terminal.
const (
	BookingPending   = "pending"
	BookingConfirmed = "confirmed"
	BookingCancelled = "cancelled"
	BookingCompleted = "completed"
	BookingNoShow    = "no_show"
)

// Waitlist entry statuses. Booked, expired and cancelled are terminal.
const (
	WaitlistPending   = "pending"
	WaitlistNotified  = "notified"
	WaitlistBooked    = "booked"
	WaitlistExpired   = "expired"
	WaitlistCancelled = "cancelled"
)

// Calendar token statuses.
const (
	TokenOK    = "ok"
	TokenError = "error"
)

// Calendar sync job actions and statuses.
const (
	SyncActionCreate = "create"
	SyncActionUpdate = "update"
	SyncActionDelete = "delete"

	SyncPending = "pending"
	SyncDone    = "done"
	SyncFailed  = "failed"
)

type Resource struct {
	ID              int
	OrgID           int
	Name            string
	ResourceType    string // space | equipment | person
	Capacity        int
	Bookable        bool
	Active          bool
	OwnerUserID     sql.NullInt64
	OwnerCalendarID sql.NullString
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Booking struct {
	ID               int
	Code             string
	OrgID            int
	ResourceID       int
	RequesterName    string
	RequesterEmail   string
	RequesterPhone   string
	Notes            string
	Status           string
	StartTime        time.Time
	EndTime          time.Time
	CalendarProvider sql.NullString
	ExternalEventID  sql.NullString
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type CalendarToken struct {
	ID           int
	UserID       int
	Provider     string
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
	Scope        string
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type WaitlistEntry struct {
	ID             int
	Code           string
	OrgID          int
	ResourceID     int
	RequesterName  string
	RequesterEmail string
	RequesterPhone string
	RequestedStart time.Time
	RequestedEnd   time.Time
	Priority       int
	Status         string
	Note           string
	OfferStart     sql.NullTime
	OfferEnd       sql.NullTime
	BookingID      sql.NullInt64
	CreatedAt      time.Time
	ExpiresAt      time.Time
	UpdatedAt      time.Time
}

type CalendarSyncJob struct {
	ID        int
	BookingID int
	Action    string
	Attempts  int
	Status    string
	LastError sql.NullString
	CreatedAt time.Time
	UpdatedAt time.Time
}

type StaffUser struct {
	ID           int
	Email        string
	PasswordHash string
}
