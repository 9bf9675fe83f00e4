package repository

import (
	"database/sql"
	"fmt"

	"studiobook/internal/db"
)

// SyncRepository is the calendar-sync outbox: the ledger records that a
// booking needs mirroring, a background job drains the rows, so a slow
// or failing provider call never blocks the booking decision path.
type SyncRepository struct {
	DB *sql.DB
}

func NewSyncRepository(database *sql.DB) *SyncRepository {
	return &SyncRepository{DB: database}
}

func (r *SyncRepository) Enqueue(bookingID int, action string) error {
	_, err := r.DB.Exec(`
		INSERT INTO calendar_sync_jobs (booking_id, action, attempts, status, created_at, updated_at)
		VALUES ($1, $2, 0, $3, NOW(), NOW())`,
		bookingID, action, db.SyncPending,
	)
	if err != nil {
		return fmt.Errorf("error enqueueing calendar sync job: %w", err)
	}
	return nil
}

func (r *SyncRepository) PendingJobs(limit int) ([]db.CalendarSyncJob, error) {
	rows, err := r.DB.Query(`
		SELECT id, booking_id, action, attempts, status, last_error, created_at, updated_at
		FROM calendar_sync_jobs
		WHERE status = $1
		ORDER BY created_at
		LIMIT $2`,
		db.SyncPending, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("error querying pending sync jobs: %w", err)
	}
	defer rows.Close()

	var jobs []db.CalendarSyncJob
	for rows.Next() {
		var j db.CalendarSyncJob
		err := rows.Scan(&j.ID, &j.BookingID, &j.Action, &j.Attempts, &j.Status, &j.LastError, &j.CreatedAt, &j.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("error scanning sync job row: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (r *SyncRepository) MarkDone(id int) error {
	_, err := r.DB.Exec(`UPDATE calendar_sync_jobs SET status = $1, updated_at = NOW() WHERE id = $2`, db.SyncDone, id)
	if err != nil {
		return fmt.Errorf("error marking sync job done: %w", err)
	}
	return nil
}

// RecordFailure increments the attempt counter and stores the error.
// Final failures leave the pending pool entirely.
func (r *SyncRepository) RecordFailure(id int, lastError string, final bool) error {
	status := db.SyncPending
	if final {
		status = db.SyncFailed
	}
	_, err := r.DB.Exec(`
		UPDATE calendar_sync_jobs
		SET attempts = attempts + 1, status = $1, last_error = $2, updated_at = NOW()
		WHERE id = $3`,
		status, lastError, id,
	)
	if err != nil {
		return fmt.Errorf("error recording sync job failure: %w", err)
	}
	return nil
}
