package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"studiobook/internal/db"
	"studiobook/internal/entities"
	"studiobook/internal/interval"
)

// ResourceStore is the resource lookup needed by the services.
type ResourceStore interface {
	GetResourceByID(id int) (*db.Resource, error)
}

// BookingLister loads the internal busy data for a resource.
type BookingLister interface {
	ListActiveForRange(resourceID int, start, end time.Time) ([]db.Booking, error)
}

// BusySource loads external busy blocks for a calendar owner.
type BusySource interface {
	QueryBusy(ctx context.Context, userID int, calendarID string, window interval.Interval) ([]interval.Busy, error)
}

// AvailabilityService merges internal reservations with external busy
// blocks into a contiguous free/busy partition of the query range.
type AvailabilityService struct {
	Resources ResourceStore
	Bookings  BookingLister
	Calendar  BusySource
}

func NewAvailabilityService(resources ResourceStore, bookings BookingLister, cal BusySource) *AvailabilityService {
	return &AvailabilityService{Resources: resources, Bookings: bookings, Calendar: cal}
}

// Resolve returns the ordered partition of [start, end) into free and
// busy intervals for the resource: no gaps, no overlaps, union equal to
// the query range.
func (s *AvailabilityService) Resolve(ctx context.Context, resourceID int, window interval.Interval) ([]entities.AvailabilityInterval, error) {
	if !window.Valid() {
		return nil, fmt.Errorf("end of query range must be after its start")
	}

	resource, err := s.Resources.GetResourceByID(resourceID)
	if err != nil {
		return nil, err
	}
	if resource == nil {
		return nil, ErrNotFound
	}

	bookings, err := s.Bookings.ListActiveForRange(resourceID, window.Start, window.End)
	if err != nil {
		return nil, err
	}

	var blocks []interval.Busy
	for _, b := range bookings {
		blocks = append(blocks, interval.Busy{
			Interval: interval.Interval{Start: b.StartTime, End: b.EndTime},
			Reason:   "booked",
		})
	}

	if resource.OwnerUserID.Valid && resource.OwnerCalendarID.Valid {
		external, err := s.Calendar.QueryBusy(ctx, int(resource.OwnerUserID.Int64), resource.OwnerCalendarID.String, window)
		if err != nil {
			// Availability reads are best-effort consumers of external
			// data: degrade to internal bookings only.
			var extErr *ExternalServiceError
			if errors.Is(err, ErrAuthExpired) || errors.As(err, &extErr) {
				log.Printf("Calendar busy query failed for resource %d, using internal data only: %v", resourceID, err)
			} else {
				return nil, err
			}
		}
		blocks = append(blocks, external...)
	}

	spans := interval.Partition(window, blocks)
	slots := make([]entities.AvailabilityInterval, 0, len(spans))
	for _, span := range spans {
		slots = append(slots, entities.AvailabilityInterval{
			StartTime:   span.Start,
			EndTime:     span.End,
			IsAvailable: span.Available,
			Reason:      span.Reason,
		})
	}
	return slots, nil
}
