package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studiobook/internal/db"
	"studiobook/internal/entities"
	"studiobook/internal/interval"
)

type fakeLedger struct {
	created []*entities.BookingRequest
	err     error
}

func (f *fakeLedger) CreateBooking(ctx context.Context, req *entities.BookingRequest) (*db.Booking, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, req)
	return &db.Booking{ID: 100 + len(f.created), Code: "bk", Status: db.BookingPending, ResourceID: req.ResourceID, StartTime: req.StartTime, EndTime: req.EndTime}, nil
}

func newTestWaitlist() (*WaitlistService, *fakeWaitlistStore, *fakeNotifier, *fakeLedger) {
	store := &fakeWaitlistStore{}
	notifier := &fakeNotifier{}
	ledger := &fakeLedger{}
	svc := NewWaitlistService(store, notifier)
	svc.BindLedger(ledger)
	svc.Now = func() time.Time { return at(8, 0) }
	return svc, store, notifier, ledger
}

func joinRequest(email string, startH, startM, endH, endM int) *entities.WaitlistJoinRequest {
	return &entities.WaitlistJoinRequest{
		OrgID:          1,
		ResourceID:     7,
		UserEmail:      email,
		UserName:       "User " + email,
		UserPhone:      "+15550142",
		RequestedStart: at(startH, startM),
		RequestedEnd:   at(endH, endM),
	}
}

func TestAddToWaitlistFIFOPriorities(t *testing.T) {
	svc, _, _, _ := newTestWaitlist()

	a, err := svc.AddToWaitlist(joinRequest("a@example.com", 10, 0, 10, 30))
	require.NoError(t, err)
	b, err := svc.AddToWaitlist(joinRequest("b@example.com", 10, 0, 10, 30))
	require.NoError(t, err)
	c, err := svc.AddToWaitlist(joinRequest("c@example.com", 10, 0, 10, 30))
	require.NoError(t, err)

	assert.Equal(t, 1, a.Priority)
	assert.Equal(t, 2, b.Priority)
	assert.Equal(t, 3, c.Priority)
	assert.Equal(t, at(8, 0).Add(24*time.Hour), a.ExpiresAt)
}

func TestAddToWaitlistDedup(t *testing.T) {
	svc, _, _, _ := newTestWaitlist()

	_, err := svc.AddToWaitlist(joinRequest("a@example.com", 10, 0, 10, 30))
	require.NoError(t, err)
	_, err = svc.AddToWaitlist(joinRequest("a@example.com", 14, 0, 14, 30))
	assert.True(t, errors.Is(err, ErrAlreadyQueued))
}

func TestProcessWaitlistToleranceMatching(t *testing.T) {
	svc, store, notifier, _ := newTestWaitlist()
	entry, err := svc.AddToWaitlist(joinRequest("a@example.com", 10, 0, 10, 30))
	require.NoError(t, err)

	// A slot well away from the requested range does not match.
	offers, err := svc.ProcessWaitlist(7, []interval.Interval{span(13, 0, 13, 30)})
	require.NoError(t, err)
	assert.Empty(t, offers)
	assert.Empty(t, notifier.sent)

	// A slot covering the request within the one-hour tolerance does.
	offers, err = svc.ProcessWaitlist(7, []interval.Interval{span(9, 15, 10, 45)})
	require.NoError(t, err)
	require.Len(t, offers, 1)
	assert.Equal(t, entry.Code, offers[0].EntryCode)
	assert.Equal(t, at(9, 15), offers[0].SlotStart)
	assert.Equal(t, at(8, 0).Add(offerTTL), offers[0].ExpiresAt)

	stored, err := store.GetEntryByCode(entry.Code)
	require.NoError(t, err)
	assert.Equal(t, db.WaitlistNotified, stored.Status)
	assert.Equal(t, at(8, 0).Add(offerTTL), stored.ExpiresAt)

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, entities.TemplateWaitlistOffer, notifier.sent[0].Template)
	assert.Equal(t, "a@example.com", notifier.sent[0].Recipient)
	assert.Equal(t, "+15550142", notifier.sent[0].Phone)
}

func TestProcessWaitlistOnlyMatchingEntryNotified(t *testing.T) {
	svc, store, _, _ := newTestWaitlist()
	first, err := svc.AddToWaitlist(joinRequest("a@example.com", 10, 0, 10, 30))
	require.NoError(t, err)
	second, err := svc.AddToWaitlist(joinRequest("b@example.com", 14, 0, 14, 30))
	require.NoError(t, err)

	offers, err := svc.ProcessWaitlist(7, []interval.Interval{span(10, 0, 10, 30)})
	require.NoError(t, err)
	require.Len(t, offers, 1)
	assert.Equal(t, first.Code, offers[0].EntryCode)

	stored, err := store.GetEntryByCode(second.Code)
	require.NoError(t, err)
	assert.Equal(t, db.WaitlistPending, stored.Status, "unmatched entry stays pending for the next trigger")
}

func TestBookFromWaitlist(t *testing.T) {
	svc, store, _, ledger := newTestWaitlist()
	entry, err := svc.AddToWaitlist(joinRequest("a@example.com", 10, 0, 10, 30))
	require.NoError(t, err)
	_, err = svc.ProcessWaitlist(7, []interval.Interval{span(10, 0, 10, 30)})
	require.NoError(t, err)

	booking, err := svc.BookFromWaitlist(context.Background(), entry.Code, span(10, 0, 10, 30))
	require.NoError(t, err)
	require.Len(t, ledger.created, 1)
	assert.Equal(t, "a@example.com", ledger.created[0].RequesterEmail)
	assert.Equal(t, "+15550142", ledger.created[0].RequesterPhone)

	stored, err := store.GetEntryByCode(entry.Code)
	require.NoError(t, err)
	assert.Equal(t, db.WaitlistBooked, stored.Status)
	assert.Equal(t, int64(booking.ID), stored.BookingID.Int64)
}

func TestBookFromWaitlistExpiredOffer(t *testing.T) {
	svc, store, _, ledger := newTestWaitlist()
	entry, err := svc.AddToWaitlist(joinRequest("a@example.com", 10, 0, 10, 30))
	require.NoError(t, err)
	_, err = svc.ProcessWaitlist(7, []interval.Interval{span(10, 0, 10, 30)})
	require.NoError(t, err)

	// Move past the two-hour offer window.
	svc.Now = func() time.Time { return at(8, 0).Add(offerTTL + time.Minute) }

	_, err = svc.BookFromWaitlist(context.Background(), entry.Code, span(10, 0, 10, 30))
	assert.True(t, errors.Is(err, ErrExpired))
	assert.Empty(t, ledger.created, "no booking is created for a lapsed offer")

	stored, err := store.GetEntryByCode(entry.Code)
	require.NoError(t, err)
	assert.Equal(t, db.WaitlistExpired, stored.Status)
}

func TestBookFromWaitlistRequiresNotified(t *testing.T) {
	svc, _, _, _ := newTestWaitlist()
	entry, err := svc.AddToWaitlist(joinRequest("a@example.com", 10, 0, 10, 30))
	require.NoError(t, err)

	_, err = svc.BookFromWaitlist(context.Background(), entry.Code, span(10, 0, 10, 30))
	assert.True(t, errors.Is(err, ErrInvalidState))
}

func TestBookFromWaitlistUnknownEntry(t *testing.T) {
	svc, _, _, _ := newTestWaitlist()
	_, err := svc.BookFromWaitlist(context.Background(), "missing", span(10, 0, 10, 30))
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestCleanupExpiredSweepsPendingAndNotified(t *testing.T) {
	svc, store, _, _ := newTestWaitlist()

	stale, err := svc.AddToWaitlist(joinRequest("a@example.com", 10, 0, 10, 30))
	require.NoError(t, err)
	offered, err := svc.AddToWaitlist(joinRequest("b@example.com", 10, 0, 10, 30))
	require.NoError(t, err)
	fresh, err := svc.AddToWaitlist(joinRequest("c@example.com", 18, 0, 18, 30))
	require.NoError(t, err)

	// Issue an offer to the second entry, then let both the first
	// entry's join window and the offer window lapse.
	require.NoError(t, store.MarkNotified(offered.ID, at(10, 0), at(10, 30), at(10, 0)))
	for _, e := range store.entries {
		if e.ID == stale.ID {
			e.ExpiresAt = at(7, 0)
		}
	}

	svc.Now = func() time.Time { return at(12, 0) }
	count, err := svc.CleanupExpired()
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	staleStored, _ := store.GetEntryByCode(stale.Code)
	assert.Equal(t, db.WaitlistExpired, staleStored.Status)
	offeredStored, _ := store.GetEntryByCode(offered.Code)
	assert.Equal(t, db.WaitlistExpired, offeredStored.Status)
	freshStored, _ := store.GetEntryByCode(fresh.Code)
	assert.Equal(t, db.WaitlistPending, freshStored.Status)
}

func TestGetEntry(t *testing.T) {
	svc, _, _, _ := newTestWaitlist()
	entry, err := svc.AddToWaitlist(joinRequest("a@example.com", 10, 0, 10, 30))
	require.NoError(t, err)

	got, err := svc.GetEntry(entry.Code)
	require.NoError(t, err)
	assert.Equal(t, entry.Code, got.Code)

	resp := WaitlistEntryResponseFrom(got)
	assert.Equal(t, entry.Code, resp.EntryID)
	assert.Equal(t, 1, resp.Priority)
	assert.Equal(t, db.WaitlistPending, resp.Status)

	_, err = svc.GetEntry("missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestCancelEntry(t *testing.T) {
	svc, store, _, _ := newTestWaitlist()
	entry, err := svc.AddToWaitlist(joinRequest("a@example.com", 10, 0, 10, 30))
	require.NoError(t, err)

	require.NoError(t, svc.CancelEntry(entry.Code))
	stored, _ := store.GetEntryByCode(entry.Code)
	assert.Equal(t, db.WaitlistCancelled, stored.Status)

	// Terminal entries cannot be cancelled again.
	assert.True(t, errors.Is(svc.CancelEntry(entry.Code), ErrInvalidState))
}

func TestSlotMatchesTolerance(t *testing.T) {
	requestedStart, requestedEnd := at(10, 0), at(10, 30)
	cases := []struct {
		name string
		slot interval.Interval
		want bool
	}{
		{"exact", span(10, 0, 10, 30), true},
		{"within tolerance both sides", span(9, 15, 10, 45), true},
		{"boundary of tolerance", span(11, 0, 12, 0), true},
		{"slot starts too late", span(11, 1, 12, 0), false},
		{"slot ends too early", span(8, 0, 9, 15), false},
		{"far away", span(13, 0, 13, 30), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, slotMatches(tc.slot, requestedStart, requestedEnd))
		})
	}
}
