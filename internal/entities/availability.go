package entities

import "time"

type AvailabilityInterval struct {
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	IsAvailable bool      `json:"is_available"`
	Reason      string    `json:"reason,omitempty"`
}

type AvailabilityResponse struct {
	ResourceID int                    `json:"resource_id"`
	Slots      []AvailabilityInterval `json:"slots"`
}
