package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studiobook/internal/db"
	"studiobook/internal/interval"
)

func resourceWithCalendar(id, ownerID int) *db.Resource {
	r := bookableResource(id)
	r.OwnerUserID = sql.NullInt64{Int64: int64(ownerID), Valid: true}
	r.OwnerCalendarID = sql.NullString{String: "primary", Valid: true}
	return r
}

func TestResolvePartitionsAroundBooking(t *testing.T) {
	bookings := &fakeBookingStore{}
	require.NoError(t, bookings.CreateBooking(&db.Booking{
		Code: "b1", ResourceID: 7, Status: db.BookingConfirmed,
		StartTime: at(10, 0), EndTime: at(10, 30),
	}))

	svc := NewAvailabilityService(newFakeResourceStore(bookableResource(7)), bookings, &fakeBusySource{})
	slots, err := svc.Resolve(context.Background(), 7, span(9, 0, 11, 0))
	require.NoError(t, err)

	require.Len(t, slots, 3)
	assert.True(t, slots[0].IsAvailable)
	assert.Equal(t, at(9, 0), slots[0].StartTime)
	assert.Equal(t, at(10, 0), slots[0].EndTime)

	assert.False(t, slots[1].IsAvailable)
	assert.Equal(t, "booked", slots[1].Reason)
	assert.Equal(t, at(10, 0), slots[1].StartTime)
	assert.Equal(t, at(10, 30), slots[1].EndTime)

	assert.True(t, slots[2].IsAvailable)
	assert.Equal(t, at(10, 30), slots[2].StartTime)
	assert.Equal(t, at(11, 0), slots[2].EndTime)
}

func TestResolveMergesExternalBusyWithBookings(t *testing.T) {
	bookings := &fakeBookingStore{}
	require.NoError(t, bookings.CreateBooking(&db.Booking{
		Code: "b1", ResourceID: 7, Status: db.BookingConfirmed,
		StartTime: at(10, 0), EndTime: at(10, 30),
	}))
	external := &fakeBusySource{blocks: []interval.Busy{
		{Interval: span(10, 30, 11, 0), Reason: "calendar"},
	}}

	svc := NewAvailabilityService(newFakeResourceStore(resourceWithCalendar(7, 3)), bookings, external)
	slots, err := svc.Resolve(context.Background(), 7, span(9, 0, 12, 0))
	require.NoError(t, err)
	require.Equal(t, 1, external.calls)

	// Touching internal and external blocks coalesce into one busy span.
	require.Len(t, slots, 3)
	assert.False(t, slots[1].IsAvailable)
	assert.Equal(t, at(10, 0), slots[1].StartTime)
	assert.Equal(t, at(11, 0), slots[1].EndTime)
}

func TestResolveDegradesWhenCalendarAuthFails(t *testing.T) {
	external := &fakeBusySource{err: ErrAuthExpired}
	svc := NewAvailabilityService(newFakeResourceStore(resourceWithCalendar(7, 3)), &fakeBookingStore{}, external)

	slots, err := svc.Resolve(context.Background(), 7, span(9, 0, 11, 0))
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.True(t, slots[0].IsAvailable)
}

func TestResolveSkipsCalendarWithoutOwner(t *testing.T) {
	external := &fakeBusySource{}
	svc := NewAvailabilityService(newFakeResourceStore(bookableResource(7)), &fakeBookingStore{}, external)

	_, err := svc.Resolve(context.Background(), 7, span(9, 0, 11, 0))
	require.NoError(t, err)
	assert.Zero(t, external.calls)
}

func TestResolveUnknownResource(t *testing.T) {
	svc := NewAvailabilityService(newFakeResourceStore(), &fakeBookingStore{}, &fakeBusySource{})
	_, err := svc.Resolve(context.Background(), 99, span(9, 0, 11, 0))
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestResolveRejectsInvalidWindow(t *testing.T) {
	svc := NewAvailabilityService(newFakeResourceStore(bookableResource(7)), &fakeBookingStore{}, &fakeBusySource{})
	_, err := svc.Resolve(context.Background(), 7, span(11, 0, 9, 0))
	assert.Error(t, err)
}
