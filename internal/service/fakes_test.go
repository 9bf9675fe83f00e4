package service

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"

	"studiobook/internal/db"
	"studiobook/internal/entities"
	"studiobook/internal/interval"
	"studiobook/internal/repository"
)

var testDay = time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)

func at(hour, min int) time.Time {
	return testDay.Add(time.Duration(hour)*time.Hour + time.Duration(min)*time.Minute)
}

func span(startH, startM, endH, endM int) interval.Interval {
	return interval.Interval{Start: at(startH, startM), End: at(endH, endM)}
}

type fakeResourceStore struct {
	resources map[int]*db.Resource
}

func newFakeResourceStore(resources ...*db.Resource) *fakeResourceStore {
	s := &fakeResourceStore{resources: make(map[int]*db.Resource)}
	for _, r := range resources {
		s.resources[r.ID] = r
	}
	return s
}

func (s *fakeResourceStore) GetResourceByID(id int) (*db.Resource, error) {
	return s.resources[id], nil
}

// fakeBookingStore keeps bookings in memory and mirrors the
// repository's overlap re-check semantics.
type fakeBookingStore struct {
	nextID   int
	bookings []*db.Booking
}

func (s *fakeBookingStore) overlaps(resourceID int, start, end time.Time, excludeID int) bool {
	for _, b := range s.bookings {
		if b.ResourceID != resourceID || b.ID == excludeID {
			continue
		}
		if b.Status != db.BookingPending && b.Status != db.BookingConfirmed {
			continue
		}
		if b.StartTime.Before(end) && b.EndTime.After(start) {
			return true
		}
	}
	return false
}

func (s *fakeBookingStore) CreateBooking(b *db.Booking) error {
	if s.overlaps(b.ResourceID, b.StartTime, b.EndTime, 0) {
		return repository.ErrOverlap
	}
	s.nextID++
	b.ID = s.nextID
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt
	clone := *b
	s.bookings = append(s.bookings, &clone)
	return nil
}

func (s *fakeBookingStore) RescheduleBooking(id, resourceID int, start, end time.Time) error {
	if s.overlaps(resourceID, start, end, id) {
		return repository.ErrOverlap
	}
	for _, b := range s.bookings {
		if b.ID == id {
			b.StartTime, b.EndTime = start, end
		}
	}
	return nil
}

func (s *fakeBookingStore) GetBookingByCode(code string) (*db.Booking, error) {
	for _, b := range s.bookings {
		if b.Code == code {
			clone := *b
			return &clone, nil
		}
	}
	return nil, nil
}

func (s *fakeBookingStore) UpdateBookingStatus(id int, status string) error {
	for _, b := range s.bookings {
		if b.ID == id {
			b.Status = status
		}
	}
	return nil
}

func (s *fakeBookingStore) UpdateRequesterFields(id int, name, email, phone, notes string) error {
	for _, b := range s.bookings {
		if b.ID == id {
			b.RequesterName, b.RequesterEmail, b.RequesterPhone, b.Notes = name, email, phone, notes
		}
	}
	return nil
}

func (s *fakeBookingStore) ListBookings(date, status string, resourceID, limit, offset int) ([]db.Booking, error) {
	var out []db.Booking
	for _, b := range s.bookings {
		if status != "" && b.Status != status {
			continue
		}
		if resourceID > 0 && b.ResourceID != resourceID {
			continue
		}
		out = append(out, *b)
	}
	return out, nil
}

func (s *fakeBookingStore) ListActiveForRange(resourceID int, start, end time.Time) ([]db.Booking, error) {
	var out []db.Booking
	for _, b := range s.bookings {
		if b.ResourceID != resourceID {
			continue
		}
		if b.Status != db.BookingPending && b.Status != db.BookingConfirmed {
			continue
		}
		if b.StartTime.Before(end) && b.EndTime.After(start) {
			out = append(out, *b)
		}
	}
	return out, nil
}

// fakeWaitlistStore mirrors the repository's dedup check and max+1
// priority assignment.
type fakeWaitlistStore struct {
	nextID  int
	entries []*db.WaitlistEntry
}

func (s *fakeWaitlistStore) InsertEntry(e *db.WaitlistEntry) error {
	maxPriority := 0
	for _, existing := range s.entries {
		if existing.ResourceID != e.ResourceID || existing.Status != db.WaitlistPending {
			continue
		}
		if existing.RequesterEmail == e.RequesterEmail {
			return repository.ErrDuplicatePending
		}
		if existing.Priority > maxPriority {
			maxPriority = existing.Priority
		}
	}
	e.Priority = maxPriority + 1
	s.nextID++
	e.ID = s.nextID
	e.CreatedAt = time.Now()
	clone := *e
	s.entries = append(s.entries, &clone)
	return nil
}

func (s *fakeWaitlistStore) GetEntryByCode(code string) (*db.WaitlistEntry, error) {
	for _, e := range s.entries {
		if e.Code == code {
			clone := *e
			return &clone, nil
		}
	}
	return nil, nil
}

func (s *fakeWaitlistStore) PendingForResource(resourceID, limit int) ([]db.WaitlistEntry, error) {
	var out []db.WaitlistEntry
	for _, e := range s.entries {
		if e.ResourceID == resourceID && e.Status == db.WaitlistPending {
			out = append(out, *e)
		}
	}
	// Entries are inserted in priority order already.
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeWaitlistStore) MarkNotified(id int, offerStart, offerEnd, expiresAt time.Time) error {
	for _, e := range s.entries {
		if e.ID == id {
			e.Status = db.WaitlistNotified
			e.OfferStart.Valid, e.OfferStart.Time = true, offerStart
			e.OfferEnd.Valid, e.OfferEnd.Time = true, offerEnd
			e.ExpiresAt = expiresAt
		}
	}
	return nil
}

func (s *fakeWaitlistStore) MarkBooked(id, bookingID int) error {
	for _, e := range s.entries {
		if e.ID == id {
			e.Status = db.WaitlistBooked
			e.BookingID.Valid, e.BookingID.Int64 = true, int64(bookingID)
		}
	}
	return nil
}

func (s *fakeWaitlistStore) UpdateEntryStatus(id int, status string) error {
	for _, e := range s.entries {
		if e.ID == id {
			e.Status = status
		}
	}
	return nil
}

func (s *fakeWaitlistStore) expireWithStatus(status string, now time.Time) int64 {
	var count int64
	for _, e := range s.entries {
		if e.Status == status && e.ExpiresAt.Before(now) {
			e.Status = db.WaitlistExpired
			count++
		}
	}
	return count
}

func (s *fakeWaitlistStore) ExpirePending(now time.Time) (int64, error) {
	return s.expireWithStatus(db.WaitlistPending, now), nil
}

func (s *fakeWaitlistStore) ExpireNotified(now time.Time) (int64, error) {
	return s.expireWithStatus(db.WaitlistNotified, now), nil
}

type fakeTokenStore struct {
	tokens       map[string]*db.CalendarToken
	markedStatus string
}

func tokenKey(userID int, provider string) string {
	return fmt.Sprintf("%s/%d", provider, userID)
}

func newFakeTokenStore(tokens ...*db.CalendarToken) *fakeTokenStore {
	s := &fakeTokenStore{tokens: make(map[string]*db.CalendarToken)}
	for _, t := range tokens {
		s.tokens[tokenKey(t.UserID, t.Provider)] = t
	}
	return s
}

func (s *fakeTokenStore) GetToken(userID int, provider string) (*db.CalendarToken, error) {
	t, ok := s.tokens[tokenKey(userID, provider)]
	if !ok {
		return nil, nil
	}
	clone := *t
	return &clone, nil
}

func (s *fakeTokenStore) UpsertToken(t *db.CalendarToken) error {
	clone := *t
	s.tokens[tokenKey(t.UserID, t.Provider)] = &clone
	return nil
}

func (s *fakeTokenStore) UpdateAccessToken(userID int, provider, accessToken, refreshToken string, expiry time.Time) error {
	t := s.tokens[tokenKey(userID, provider)]
	t.AccessToken = accessToken
	t.RefreshToken = refreshToken
	t.Expiry = expiry
	t.Status = db.TokenOK
	return nil
}

func (s *fakeTokenStore) MarkTokenStatus(userID int, provider, status string) error {
	s.markedStatus = status
	if t, ok := s.tokens[tokenKey(userID, provider)]; ok {
		t.Status = status
	}
	return nil
}

type fakeOAuth struct {
	exchangeToken *oauth2.Token
	exchangeErr   error
	refreshToken  *oauth2.Token
	refreshErr    error
	refreshCalls  int
}

func (f *fakeOAuth) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return f.exchangeToken, f.exchangeErr
}

func (f *fakeOAuth) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	f.refreshCalls++
	return f.refreshToken, f.refreshErr
}

func (f *fakeOAuth) AuthCodeURL(state string) string {
	return "https://provider.example/auth?state=" + state
}

func (f *fakeOAuth) Scopes() []string {
	return []string{"calendar"}
}

type fakeBusySource struct {
	blocks []interval.Busy
	err    error
	calls  int
}

func (f *fakeBusySource) QueryBusy(ctx context.Context, userID int, calendarID string, window interval.Interval) ([]interval.Busy, error) {
	f.calls++
	return f.blocks, f.err
}

type fakeNotifier struct {
	sent []entities.Notification
}

func (f *fakeNotifier) Notify(n entities.Notification) {
	f.sent = append(f.sent, n)
}

type fakeSyncQueue struct {
	actions []string
}

func (f *fakeSyncQueue) Enqueue(bookingID int, action string) error {
	f.actions = append(f.actions, action)
	return nil
}

type fakeWaitlistProcessor struct {
	resourceID int
	freed      []interval.Interval
	calls      int
}

func (f *fakeWaitlistProcessor) ProcessWaitlist(resourceID int, freedSlots []interval.Interval) ([]entities.Offer, error) {
	f.calls++
	f.resourceID = resourceID
	f.freed = freedSlots
	return nil, nil
}

func bookableResource(id int) *db.Resource {
	return &db.Resource{ID: id, OrgID: 1, Name: "Studio A", ResourceType: "space", Capacity: 1, Bookable: true, Active: true}
}
