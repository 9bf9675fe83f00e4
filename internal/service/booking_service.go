package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"studiobook/internal/db"
	"studiobook/internal/entities"
	"studiobook/internal/interval"
	"studiobook/internal/repository"
)

// BookingStore is the booking persistence needed by the ledger.
type BookingStore interface {
	CreateBooking(b *db.Booking) error
	RescheduleBooking(id, resourceID int, start, end time.Time) error
	GetBookingByCode(code string) (*db.Booking, error)
	UpdateBookingStatus(id int, status string) error
	UpdateRequesterFields(id int, name, email, phone, notes string) error
	ListBookings(date, status string, resourceID, limit, offset int) ([]db.Booking, error)
}

// SyncQueue records that a booking needs mirroring to the external
// calendar; a background job drains it.
type SyncQueue interface {
	Enqueue(bookingID int, action string) error
}

// AvailabilityChecker is consulted before the ledger commits.
type AvailabilityChecker interface {
	Resolve(ctx context.Context, resourceID int, window interval.Interval) ([]entities.AvailabilityInterval, error)
}

// WaitlistProcessor reacts to freed capacity.
type WaitlistProcessor interface {
	ProcessWaitlist(resourceID int, freedSlots []interval.Interval) ([]entities.Offer, error)
}

// Allowed booking status transitions. Absent source statuses are
// terminal.
var bookingTransitions = map[string][]string{
	db.BookingPending:   {db.BookingConfirmed, db.BookingCancelled},
	db.BookingConfirmed: {db.BookingCancelled, db.BookingCompleted, db.BookingNoShow},
}

func canTransition(from, to string) bool {
	for _, allowed := range bookingTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// BookingService is the system of record for resource occupancy: it is
// the sole mutator of booking rows and enforces the non-overlap
// invariant on every write.
type BookingService struct {
	Repo         BookingStore
	Resources    ResourceStore
	Availability AvailabilityChecker
	Sync         SyncQueue
	Notifier     Notifier
	Waitlist     WaitlistProcessor
}

func NewBookingService(repo BookingStore, resources ResourceStore, availability AvailabilityChecker, sync SyncQueue, notifier Notifier) *BookingService {
	return &BookingService{
		Repo:         repo,
		Resources:    resources,
		Availability: availability,
		Sync:         sync,
		Notifier:     notifier,
	}
}

// BindWaitlist wires the waitlist engine after construction; the two
// services reference each other.
func (s *BookingService) BindWaitlist(w WaitlistProcessor) {
	s.Waitlist = w
}

// CreateBooking validates the request, consults the availability
// resolver, then commits through the serialized overlap re-check.
func (s *BookingService) CreateBooking(ctx context.Context, req *entities.BookingRequest) (*db.Booking, error) {
	if !req.EndTime.After(req.StartTime) {
		return nil, fmt.Errorf("end_time must be after start_time")
	}
	if req.RequesterEmail == "" {
		return nil, fmt.Errorf("requester_email is required")
	}

	resource, err := s.Resources.GetResourceByID(req.ResourceID)
	if err != nil {
		return nil, err
	}
	if resource == nil {
		return nil, ErrNotFound
	}
	if !resource.Active || !resource.Bookable {
		return nil, ErrNotBookable
	}

	window := interval.Interval{Start: req.StartTime, End: req.EndTime}
	slots, err := s.Availability.Resolve(ctx, req.ResourceID, window)
	if err != nil {
		return nil, err
	}
	for _, slot := range slots {
		if !slot.IsAvailable {
			return nil, ErrConflict
		}
	}

	booking := &db.Booking{
		Code:           uuid.NewString(),
		OrgID:          req.OrgID,
		ResourceID:     req.ResourceID,
		RequesterName:  req.RequesterName,
		RequesterEmail: req.RequesterEmail,
		RequesterPhone: req.RequesterPhone,
		Notes:          req.Notes,
		Status:         db.BookingPending,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
	}

	// The resolver check above races with concurrent writers; the
	// repository re-checks under the per-resource lock and is
	// authoritative.
	if err := s.Repo.CreateBooking(booking); err != nil {
		if errors.Is(err, repository.ErrOverlap) {
			return nil, ErrConflict
		}
		return nil, err
	}

	if err := s.Sync.Enqueue(booking.ID, db.SyncActionCreate); err != nil {
		log.Printf("Error enqueueing calendar sync for booking %s: %v", booking.Code, err)
	}

	return booking, nil
}

func (s *BookingService) GetBooking(code string) (*db.Booking, error) {
	booking, err := s.Repo.GetBookingByCode(code)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, ErrNotFound
	}
	return booking, nil
}

// UpdateBooking applies a patch; a time-range change re-validates the
// overlap invariant under the same lock as creation.
func (s *BookingService) UpdateBooking(ctx context.Context, code string, patch *entities.BookingPatch) (*db.Booking, error) {
	booking, err := s.GetBooking(code)
	if err != nil {
		return nil, err
	}
	if booking.Status != db.BookingPending && booking.Status != db.BookingConfirmed {
		return nil, ErrInvalidState
	}

	if patch.StartTime != nil || patch.EndTime != nil {
		start, end := booking.StartTime, booking.EndTime
		if patch.StartTime != nil {
			start = *patch.StartTime
		}
		if patch.EndTime != nil {
			end = *patch.EndTime
		}
		if !end.After(start) {
			return nil, fmt.Errorf("end_time must be after start_time")
		}
		if err := s.Repo.RescheduleBooking(booking.ID, booking.ResourceID, start, end); err != nil {
			if errors.Is(err, repository.ErrOverlap) {
				return nil, ErrConflict
			}
			return nil, err
		}
		booking.StartTime, booking.EndTime = start, end
		if err := s.Sync.Enqueue(booking.ID, db.SyncActionUpdate); err != nil {
			log.Printf("Error enqueueing calendar sync for booking %s: %v", booking.Code, err)
		}
	}

	name, email, phone, notes := booking.RequesterName, booking.RequesterEmail, booking.RequesterPhone, booking.Notes
	if patch.RequesterName != nil {
		name = *patch.RequesterName
	}
	if patch.RequesterEmail != nil {
		email = *patch.RequesterEmail
	}
	if patch.RequesterPhone != nil {
		phone = *patch.RequesterPhone
	}
	if patch.Notes != nil {
		notes = *patch.Notes
	}
	if name != booking.RequesterName || email != booking.RequesterEmail || phone != booking.RequesterPhone || notes != booking.Notes {
		if err := s.Repo.UpdateRequesterFields(booking.ID, name, email, phone, notes); err != nil {
			return nil, err
		}
		booking.RequesterName, booking.RequesterEmail, booking.RequesterPhone, booking.Notes = name, email, phone, notes
	}

	return booking, nil
}

// ConfirmBooking moves a pending booking to confirmed and notifies the
// requester.
func (s *BookingService) ConfirmBooking(code string) (*db.Booking, error) {
	booking, err := s.transition(code, db.BookingConfirmed)
	if err != nil {
		return nil, err
	}
	s.notifyStatus(booking, entities.TemplateBookingConfirmed, "")
	return booking, nil
}

// CancelBooking cancels a pending or confirmed booking and hands the
// freed interval to the waitlist engine.
func (s *BookingService) CancelBooking(code, reason string) (*db.Booking, error) {
	booking, err := s.transition(code, db.BookingCancelled)
	if err != nil {
		return nil, err
	}

	if err := s.Sync.Enqueue(booking.ID, db.SyncActionDelete); err != nil {
		log.Printf("Error enqueueing calendar sync for booking %s: %v", booking.Code, err)
	}
	s.notifyStatus(booking, entities.TemplateBookingCancelled, reason)
	s.releaseSlot(booking)

	return booking, nil
}

func (s *BookingService) CompleteBooking(code string) (*db.Booking, error) {
	return s.transition(code, db.BookingCompleted)
}

// MarkNoShow records a no-show; like cancellation it frees the slot
// for waiting requesters.
func (s *BookingService) MarkNoShow(code string) (*db.Booking, error) {
	booking, err := s.transition(code, db.BookingNoShow)
	if err != nil {
		return nil, err
	}
	s.releaseSlot(booking)
	return booking, nil
}

func (s *BookingService) transition(code, to string) (*db.Booking, error) {
	booking, err := s.GetBooking(code)
	if err != nil {
		return nil, err
	}
	if !canTransition(booking.Status, to) {
		return nil, ErrInvalidTransition
	}
	if err := s.Repo.UpdateBookingStatus(booking.ID, to); err != nil {
		return nil, err
	}
	booking.Status = to
	return booking, nil
}

func (s *BookingService) releaseSlot(booking *db.Booking) {
	if s.Waitlist == nil {
		return
	}
	freed := []interval.Interval{{Start: booking.StartTime, End: booking.EndTime}}
	offers, err := s.Waitlist.ProcessWaitlist(booking.ResourceID, freed)
	if err != nil {
		log.Printf("Error processing waitlist for resource %d: %v", booking.ResourceID, err)
		return
	}
	if len(offers) > 0 {
		log.Printf("Issued %d waitlist offer(s) for resource %d", len(offers), booking.ResourceID)
	}
}

func (s *BookingService) notifyStatus(booking *db.Booking, template, reason string) {
	data := map[string]string{
		"BookingCode": booking.Code,
		"StartTime":   booking.StartTime.Format("02 Jan 2006 15:04 MST"),
		"EndTime":     booking.EndTime.Format("02 Jan 2006 15:04 MST"),
	}
	if reason != "" {
		data["Reason"] = reason
	}
	if resource, err := s.Resources.GetResourceByID(booking.ResourceID); err == nil && resource != nil {
		data["ResourceName"] = resource.Name
	}
	s.Notifier.Notify(entities.Notification{
		Recipient:     booking.RequesterEmail,
		RecipientName: booking.RequesterName,
		Phone:         booking.RequesterPhone,
		Template:      template,
		Data:          data,
	})
}

// ListBookings backs the admin listing.
func (s *BookingService) ListBookings(date, status string, resourceID, limit, offset int) (*entities.BookingsList, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	bookings, err := s.Repo.ListBookings(date, status, resourceID, limit, offset)
	if err != nil {
		return nil, err
	}
	list := &entities.BookingsList{Total: len(bookings), Limit: limit, Offset: offset}
	for i := range bookings {
		list.Bookings = append(list.Bookings, BookingResponseFrom(&bookings[i]))
	}
	return list, nil
}

// BookingResponseFrom maps a booking row to its API shape.
func BookingResponseFrom(b *db.Booking) entities.BookingResponse {
	return entities.BookingResponse{
		BookingID:      b.Code,
		OrgID:          b.OrgID,
		ResourceID:     b.ResourceID,
		RequesterName:  b.RequesterName,
		RequesterEmail: b.RequesterEmail,
		RequesterPhone: b.RequesterPhone,
		Notes:          b.Notes,
		Status:         b.Status,
		StartTime:      b.StartTime,
		EndTime:        b.EndTime,
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
	}
}
