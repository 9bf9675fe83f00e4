package service

import (
	"context"
	"fmt"
	"log"

	"studiobook/internal/db"
	"studiobook/internal/repository"
)

const (
	maxSyncAttempts = 5
	syncDrainBatch  = 20
)

// JobService hosts the cron-driven maintenance work: completing elapsed
// bookings, expiring stale waitlist entries and draining the
// calendar-sync outbox.
type JobService struct {
	Bookings  *repository.BookingRepository
	Resources *repository.ResourceRepository
	Sync      *repository.SyncRepository
	Waitlist  *WaitlistService
	Calendar  *CalendarService
}

func NewJobService(bookings *repository.BookingRepository, resources *repository.ResourceRepository, sync *repository.SyncRepository, waitlist *WaitlistService, cal *CalendarService) *JobService {
	return &JobService{
		Bookings:  bookings,
		Resources: resources,
		Sync:      sync,
		Waitlist:  waitlist,
		Calendar:  cal,
	}
}

// CompleteElapsedBookings moves confirmed bookings whose end time has
// passed to completed.
func (s *JobService) CompleteElapsedBookings() error {
	ids, err := s.Bookings.GetConfirmedIDsPastEndTime()
	if err != nil {
		return fmt.Errorf("cron job: failed to get confirmed bookings past end time: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	if err := s.Bookings.UpdateBookingStatuses(ids, db.BookingCompleted); err != nil {
		return fmt.Errorf("cron job: failed to complete bookings: %w", err)
	}
	log.Printf("Cron Job: marked %d booking(s) as completed", len(ids))
	return nil
}

// ExpireWaitlistEntries sweeps lapsed pending entries and lapsed
// offers.
func (s *JobService) ExpireWaitlistEntries() error {
	count, err := s.Waitlist.CleanupExpired()
	if err != nil {
		return fmt.Errorf("cron job: failed to expire waitlist entries: %w", err)
	}
	if count > 0 {
		log.Printf("Cron Job: expired %d waitlist entrie(s)", count)
	}
	return nil
}

// DrainCalendarSync mirrors booking changes into owner calendars. Each
// job gets a bounded number of attempts; a provider failure never
// touches the booking itself.
func (s *JobService) DrainCalendarSync() error {
	jobs, err := s.Sync.PendingJobs(syncDrainBatch)
	if err != nil {
		return fmt.Errorf("cron job: failed to load pending sync jobs: %w", err)
	}

	ctx := context.Background()
	for _, job := range jobs {
		if err := s.runSyncJob(ctx, job); err != nil {
			log.Printf("Cron Job: calendar sync job %d (booking %d, %s) failed: %v", job.ID, job.BookingID, job.Action, err)
			final := job.Attempts+1 >= maxSyncAttempts
			if recErr := s.Sync.RecordFailure(job.ID, err.Error(), final); recErr != nil {
				log.Printf("Cron Job: could not record sync failure for job %d: %v", job.ID, recErr)
			}
			continue
		}
		if err := s.Sync.MarkDone(job.ID); err != nil {
			log.Printf("Cron Job: could not mark sync job %d done: %v", job.ID, err)
		}
	}
	return nil
}

func (s *JobService) runSyncJob(ctx context.Context, job db.CalendarSyncJob) error {
	booking, err := s.Bookings.GetBookingByID(job.BookingID)
	if err != nil {
		return err
	}
	if booking == nil {
		// Booking gone, nothing left to mirror.
		return nil
	}

	resource, err := s.Resources.GetResourceByID(booking.ResourceID)
	if err != nil {
		return err
	}
	if resource == nil || !resource.OwnerUserID.Valid || !resource.OwnerCalendarID.Valid {
		// No connected owner calendar for this resource.
		return nil
	}
	ownerID := int(resource.OwnerUserID.Int64)
	calendarID := resource.OwnerCalendarID.String

	switch job.Action {
	case db.SyncActionCreate:
		eventID, err := s.Calendar.CreateEvent(ctx, ownerID, calendarID, booking)
		if err != nil {
			return err
		}
		return s.Bookings.SetCalendarSync(booking.ID, s.Calendar.Provider, eventID)

	case db.SyncActionUpdate:
		if !booking.ExternalEventID.Valid {
			// Never mirrored; create instead.
			eventID, err := s.Calendar.CreateEvent(ctx, ownerID, calendarID, booking)
			if err != nil {
				return err
			}
			return s.Bookings.SetCalendarSync(booking.ID, s.Calendar.Provider, eventID)
		}
		return s.Calendar.UpdateEvent(ctx, ownerID, calendarID, booking.ExternalEventID.String, booking)

	case db.SyncActionDelete:
		if !booking.ExternalEventID.Valid {
			return nil
		}
		if err := s.Calendar.DeleteEvent(ctx, ownerID, calendarID, booking.ExternalEventID.String); err != nil {
			return err
		}
		return s.Bookings.SetCalendarSync(booking.ID, "", "")

	default:
		return fmt.Errorf("unknown sync action %q", job.Action)
	}
}
