package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"studiobook/internal/db"
	"studiobook/internal/interval"
)

// AccessTokenSource hands out valid access tokens for a user.
type AccessTokenSource interface {
	GetValidAccessToken(ctx context.Context, userID int) (string, error)
}

// CalendarService is the provider-facing adapter: free/busy queries and
// event CRUD against the owner's external calendar.
type CalendarService struct {
	Tokens   AccessTokenSource
	Provider string
}

func NewCalendarService(tokens AccessTokenSource, provider string) *CalendarService {
	return &CalendarService{Tokens: tokens, Provider: provider}
}

func (s *CalendarService) clientFor(ctx context.Context, userID int) (*calendar.Service, error) {
	accessToken, err := s.Tokens.GetValidAccessToken(ctx, userID)
	if err != nil {
		return nil, err
	}
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	svc, err := calendar.NewService(ctx, option.WithTokenSource(src))
	if err != nil {
		return nil, &ExternalServiceError{Provider: s.Provider, Op: "client", Err: err}
	}
	return svc, nil
}

// QueryBusy wraps the provider free/busy query. A user with no stored
// integration yields an empty list (fully available); an invalid token
// surfaces ErrAuthExpired so the caller can decide how to degrade.
func (s *CalendarService) QueryBusy(ctx context.Context, userID int, calendarID string, window interval.Interval) ([]interval.Busy, error) {
	svc, err := s.clientFor(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotConnected) {
			return nil, nil
		}
		return nil, err
	}

	req := &calendar.FreeBusyRequest{
		TimeMin: window.Start.Format(time.RFC3339),
		TimeMax: window.End.Format(time.RFC3339),
		Items:   []*calendar.FreeBusyRequestItem{{Id: calendarID}},
	}
	resp, err := svc.Freebusy.Query(req).Context(ctx).Do()
	if err != nil {
		return nil, s.wrapProviderError("freebusy", err)
	}

	var blocks []interval.Busy
	for _, cal := range resp.Calendars {
		for _, period := range cal.Busy {
			start, err := time.Parse(time.RFC3339, period.Start)
			if err != nil {
				return nil, &ExternalServiceError{Provider: s.Provider, Op: "freebusy", Err: fmt.Errorf("bad busy start %q: %w", period.Start, err)}
			}
			end, err := time.Parse(time.RFC3339, period.End)
			if err != nil {
				return nil, &ExternalServiceError{Provider: s.Provider, Op: "freebusy", Err: fmt.Errorf("bad busy end %q: %w", period.End, err)}
			}
			blocks = append(blocks, interval.Busy{
				Interval: interval.Interval{Start: start, End: end},
				Reason:   "calendar",
			})
		}
	}
	return blocks, nil
}

// CreateEvent mirrors a booking into the owner calendar and returns the
// external event id.
func (s *CalendarService) CreateEvent(ctx context.Context, userID int, calendarID string, b *db.Booking) (string, error) {
	svc, err := s.clientFor(ctx, userID)
	if err != nil {
		return "", err
	}
	event, err := svc.Events.Insert(calendarID, bookingEvent(b)).Context(ctx).Do()
	if err != nil {
		return "", s.wrapProviderError("events.insert", err)
	}
	return event.Id, nil
}

func (s *CalendarService) UpdateEvent(ctx context.Context, userID int, calendarID, eventID string, b *db.Booking) error {
	svc, err := s.clientFor(ctx, userID)
	if err != nil {
		return err
	}
	_, err = svc.Events.Update(calendarID, eventID, bookingEvent(b)).Context(ctx).Do()
	if err != nil {
		return s.wrapProviderError("events.update", err)
	}
	return nil
}

func (s *CalendarService) DeleteEvent(ctx context.Context, userID int, calendarID, eventID string) error {
	svc, err := s.clientFor(ctx, userID)
	if err != nil {
		return err
	}
	if err := svc.Events.Delete(calendarID, eventID).Context(ctx).Do(); err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == 404 {
			// Already gone on the provider side.
			return nil
		}
		return s.wrapProviderError("events.delete", err)
	}
	return nil
}

func (s *CalendarService) wrapProviderError(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && (gerr.Code == 401 || gerr.Code == 403) {
		return fmt.Errorf("%w: %v", ErrAuthExpired, err)
	}
	return &ExternalServiceError{Provider: s.Provider, Op: op, Err: err}
}

func bookingEvent(b *db.Booking) *calendar.Event {
	return &calendar.Event{
		Summary:     fmt.Sprintf("Booking %s - %s", b.Code, b.RequesterName),
		Description: b.Notes,
		Start:       &calendar.EventDateTime{DateTime: b.StartTime.Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: b.EndTime.Format(time.RFC3339)},
	}
}
