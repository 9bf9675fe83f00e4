package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"studiobook/internal/db"
	"studiobook/internal/entities"
	"studiobook/internal/interval"
	"studiobook/internal/repository"
)

const (
	// How long a pending entry stays in the queue before expiring.
	waitlistTTL = 24 * time.Hour
	// How long a requester has to act on an issued offer.
	offerTTL = 2 * time.Hour
	// Slack on each side when matching a freed slot to a requested range.
	offerTolerance = time.Hour
	// Only the head of the queue is considered per pass.
	offerBatchSize = 5
)

// WaitlistStore is the entry persistence needed by the engine.
type WaitlistStore interface {
	InsertEntry(e *db.WaitlistEntry) error
	GetEntryByCode(code string) (*db.WaitlistEntry, error)
	PendingForResource(resourceID, limit int) ([]db.WaitlistEntry, error)
	MarkNotified(id int, offerStart, offerEnd, expiresAt time.Time) error
	MarkBooked(id, bookingID int) error
	UpdateEntryStatus(id int, status string) error
	ExpirePending(now time.Time) (int64, error)
	ExpireNotified(now time.Time) (int64, error)
}

// BookingCreator converts an accepted offer into a booking.
type BookingCreator interface {
	CreateBooking(ctx context.Context, req *entities.BookingRequest) (*db.Booking, error)
}

// WaitlistService maintains the per-resource priority queue, matches
// freed slots to waiting requesters and issues time-boxed offers. It is
// the sole mutator of waitlist entry rows.
type WaitlistService struct {
	Repo     WaitlistStore
	Notifier Notifier
	Ledger   BookingCreator
	Now      func() time.Time
}

func NewWaitlistService(repo WaitlistStore, notifier Notifier) *WaitlistService {
	return &WaitlistService{Repo: repo, Notifier: notifier, Now: time.Now}
}

// BindLedger wires the booking ledger after construction; the two
// services reference each other.
func (s *WaitlistService) BindLedger(l BookingCreator) {
	s.Ledger = l
}

// AddToWaitlist queues a requester for a resource. A requester can hold
// at most one pending entry per resource; priorities are assigned
// first in, first served.
func (s *WaitlistService) AddToWaitlist(req *entities.WaitlistJoinRequest) (*db.WaitlistEntry, error) {
	if !req.RequestedEnd.After(req.RequestedStart) {
		return nil, fmt.Errorf("requested_end_time must be after requested_start_time")
	}
	if req.UserEmail == "" {
		return nil, fmt.Errorf("user_email is required")
	}

	entry := &db.WaitlistEntry{
		Code:           uuid.NewString(),
		OrgID:          req.OrgID,
		ResourceID:     req.ResourceID,
		RequesterName:  req.UserName,
		RequesterEmail: req.UserEmail,
		RequesterPhone: req.UserPhone,
		RequestedStart: req.RequestedStart,
		RequestedEnd:   req.RequestedEnd,
		Status:         db.WaitlistPending,
		Note:           req.Note,
		ExpiresAt:      s.Now().Add(waitlistTTL),
	}
	if err := s.Repo.InsertEntry(entry); err != nil {
		if err == repository.ErrDuplicatePending {
			return nil, ErrAlreadyQueued
		}
		return nil, err
	}
	return entry, nil
}

// slotMatches reports whether a freed slot covers the requested range
// within the tolerance window on each side.
func slotMatches(slot interval.Interval, requestedStart, requestedEnd time.Time) bool {
	return !slot.Start.After(requestedStart.Add(offerTolerance)) &&
		!slot.End.Before(requestedEnd.Add(-offerTolerance))
}

// ProcessWaitlist matches freed slots against the head of the queue and
// issues offers for the entries that fit. Unmatched entries stay
// pending for the next trigger.
func (s *WaitlistService) ProcessWaitlist(resourceID int, freedSlots []interval.Interval) ([]entities.Offer, error) {
	if len(freedSlots) == 0 {
		return nil, nil
	}

	entries, err := s.Repo.PendingForResource(resourceID, offerBatchSize)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	var offers []entities.Offer
	for _, entry := range entries {
		if entry.ExpiresAt.Before(now) {
			// Stale entry; the expiry sweep owns the transition.
			continue
		}

		var matched *interval.Interval
		for _, slot := range freedSlots {
			if slot.Valid() && slotMatches(slot, entry.RequestedStart, entry.RequestedEnd) {
				matchedSlot := slot
				matched = &matchedSlot
				break
			}
		}
		if matched == nil {
			continue
		}

		deadline := now.Add(offerTTL)
		if err := s.Repo.MarkNotified(entry.ID, matched.Start, matched.End, deadline); err != nil {
			return offers, err
		}

		offer := entities.Offer{
			EntryCode:      entry.Code,
			ResourceID:     entry.ResourceID,
			RequesterEmail: entry.RequesterEmail,
			RequesterName:  entry.RequesterName,
			RequesterPhone: entry.RequesterPhone,
			SlotStart:      matched.Start,
			SlotEnd:        matched.End,
			ExpiresAt:      deadline,
		}
		offers = append(offers, offer)
		s.notifyOffer(offer)
	}
	return offers, nil
}

// BookFromWaitlist converts a live offer into a booking. A lapsed offer
// is marked expired on the spot and fails with ErrExpired.
func (s *WaitlistService) BookFromWaitlist(ctx context.Context, entryCode string, chosenSlot interval.Interval) (*db.Booking, error) {
	entry, err := s.Repo.GetEntryByCode(entryCode)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, ErrNotFound
	}
	if entry.Status != db.WaitlistNotified {
		return nil, ErrInvalidState
	}
	if s.Now().After(entry.ExpiresAt) {
		if err := s.Repo.UpdateEntryStatus(entry.ID, db.WaitlistExpired); err != nil {
			log.Printf("Error expiring waitlist entry %s: %v", entry.Code, err)
		}
		return nil, ErrExpired
	}
	if !chosenSlot.Valid() {
		return nil, fmt.Errorf("end of chosen slot must be after its start")
	}

	booking, err := s.Ledger.CreateBooking(ctx, &entities.BookingRequest{
		OrgID:          entry.OrgID,
		ResourceID:     entry.ResourceID,
		StartTime:      chosenSlot.Start,
		EndTime:        chosenSlot.End,
		RequesterName:  entry.RequesterName,
		RequesterEmail: entry.RequesterEmail,
		RequesterPhone: entry.RequesterPhone,
		Notes:          entry.Note,
	})
	if err != nil {
		return nil, err
	}

	if err := s.Repo.MarkBooked(entry.ID, booking.ID); err != nil {
		return nil, err
	}
	return booking, nil
}

// GetEntry returns a waitlist entry by its public code.
func (s *WaitlistService) GetEntry(entryCode string) (*db.WaitlistEntry, error) {
	entry, err := s.Repo.GetEntryByCode(entryCode)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, ErrNotFound
	}
	return entry, nil
}

// CancelEntry lets a requester leave the queue.
func (s *WaitlistService) CancelEntry(entryCode string) error {
	entry, err := s.Repo.GetEntryByCode(entryCode)
	if err != nil {
		return err
	}
	if entry == nil {
		return ErrNotFound
	}
	if entry.Status != db.WaitlistPending && entry.Status != db.WaitlistNotified {
		return ErrInvalidState
	}
	return s.Repo.UpdateEntryStatus(entry.ID, db.WaitlistCancelled)
}

// CleanupExpired sweeps both stale pending entries and notified entries
// whose offer window lapsed without being booked. An expired offer does
// not re-enter the queue; the requester must rejoin.
func (s *WaitlistService) CleanupExpired() (int64, error) {
	now := s.Now()
	pending, err := s.Repo.ExpirePending(now)
	if err != nil {
		return 0, err
	}
	notified, err := s.Repo.ExpireNotified(now)
	if err != nil {
		return pending, err
	}
	return pending + notified, nil
}

// WaitlistEntryResponseFrom maps an entry row to its API shape.
func WaitlistEntryResponseFrom(e *db.WaitlistEntry) entities.WaitlistEntryResponse {
	return entities.WaitlistEntryResponse{
		EntryID:        e.Code,
		ResourceID:     e.ResourceID,
		RequestedStart: e.RequestedStart,
		RequestedEnd:   e.RequestedEnd,
		Priority:       e.Priority,
		Status:         e.Status,
		ExpiresAt:      e.ExpiresAt,
	}
}

func (s *WaitlistService) notifyOffer(offer entities.Offer) {
	s.Notifier.Notify(entities.Notification{
		Recipient:     offer.RequesterEmail,
		RecipientName: offer.RequesterName,
		Phone:         offer.RequesterPhone,
		Template:      entities.TemplateWaitlistOffer,
		Data: map[string]string{
			"EntryCode": offer.EntryCode,
			"SlotStart": offer.SlotStart.Format("02 Jan 2006 15:04 MST"),
			"SlotEnd":   offer.SlotEnd.Format("02 Jan 2006 15:04 MST"),
			"ExpiresAt": offer.ExpiresAt.Format("02 Jan 2006 15:04 MST"),
		},
	})
}
