package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"studiobook/internal/db"
)

// ErrDuplicatePending is returned when a requester already holds a
// pending entry for the resource.
var ErrDuplicatePending = errors.New("pending waitlist entry already exists")

type WaitlistRepository struct {
	DB *sql.DB
}

func NewWaitlistRepository(database *sql.DB) *WaitlistRepository {
	return &WaitlistRepository{DB: database}
}

const waitlistColumns = `id, code, org_id, resource_id, requester_name, requester_email, requester_phone, requested_start, requested_end, priority, status, note, offer_start, offer_end, booking_id, created_at, expires_at, updated_at`

func scanWaitlistEntry(row interface{ Scan(...any) error }) (*db.WaitlistEntry, error) {
	var e db.WaitlistEntry
	err := row.Scan(
		&e.ID, &e.Code, &e.OrgID, &e.ResourceID, &e.RequesterName, &e.RequesterEmail, &e.RequesterPhone,
		&e.RequestedStart, &e.RequestedEnd, &e.Priority, &e.Status, &e.Note,
		&e.OfferStart, &e.OfferEnd, &e.BookingID, &e.CreatedAt, &e.ExpiresAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// InsertEntry adds a pending entry. The dedup check and the priority
// assignment (1 + max pending priority for the resource) run inside one
// transaction holding a per-resource advisory lock, so entries joined
// concurrently still receive strictly increasing priorities.
func (r *WaitlistRepository) InsertEntry(e *db.WaitlistEntry) error {
	tx, err := r.DB.Begin()
	if err != nil {
		return fmt.Errorf("error starting waitlist transaction: %w", err)
	}
	defer tx.Rollback()

	if err := lockResource(tx, lockClassWaitlist, e.ResourceID); err != nil {
		return err
	}

	var duplicates int
	err = tx.QueryRow(`
		SELECT COUNT(*) FROM waitlist_entries
		WHERE resource_id = $1 AND requester_email = $2 AND status = $3`,
		e.ResourceID, e.RequesterEmail, db.WaitlistPending,
	).Scan(&duplicates)
	if err != nil {
		return fmt.Errorf("error checking for duplicate waitlist entry: %w", err)
	}
	if duplicates > 0 {
		return ErrDuplicatePending
	}

	err = tx.QueryRow(`
		SELECT COALESCE(MAX(priority), 0) + 1 FROM waitlist_entries
		WHERE resource_id = $1 AND status = $2`,
		e.ResourceID, db.WaitlistPending,
	).Scan(&e.Priority)
	if err != nil {
		return fmt.Errorf("error assigning waitlist priority: %w", err)
	}

	query := `
		INSERT INTO waitlist_entries
		(code, org_id, resource_id, requester_name, requester_email, requester_phone, requested_start, requested_end, priority, status, note, created_at, expires_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), $12, NOW())
		RETURNING id, created_at, updated_at`
	err = tx.QueryRow(query,
		e.Code, e.OrgID, e.ResourceID, e.RequesterName, e.RequesterEmail, e.RequesterPhone,
		e.RequestedStart, e.RequestedEnd, e.Priority, e.Status, e.Note, e.ExpiresAt,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error inserting waitlist entry: %w", err)
	}

	return tx.Commit()
}

func (r *WaitlistRepository) GetEntryByCode(code string) (*db.WaitlistEntry, error) {
	e, err := scanWaitlistEntry(r.DB.QueryRow(`SELECT `+waitlistColumns+` FROM waitlist_entries WHERE code = $1`, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("error querying waitlist entry '%s': %w", code, err)
	}
	return e, nil
}

// PendingForResource returns up to limit pending entries ordered by
// (priority asc, created_at asc).
func (r *WaitlistRepository) PendingForResource(resourceID, limit int) ([]db.WaitlistEntry, error) {
	rows, err := r.DB.Query(`
		SELECT `+waitlistColumns+` FROM waitlist_entries
		WHERE resource_id = $1 AND status = $2
		ORDER BY priority ASC, created_at ASC
		LIMIT $3`,
		resourceID, db.WaitlistPending, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("error querying pending waitlist entries: %w", err)
	}
	defer rows.Close()

	var entries []db.WaitlistEntry
	for rows.Next() {
		e, err := scanWaitlistEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning waitlist row: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// MarkNotified records an issued offer: the matched slot and the new
// offer deadline.
func (r *WaitlistRepository) MarkNotified(id int, offerStart, offerEnd, expiresAt time.Time) error {
	_, err := r.DB.Exec(`
		UPDATE waitlist_entries
		SET status = $1, offer_start = $2, offer_end = $3, expires_at = $4, updated_at = NOW()
		WHERE id = $5`,
		db.WaitlistNotified, offerStart, offerEnd, expiresAt, id,
	)
	if err != nil {
		return fmt.Errorf("error marking waitlist entry %d notified: %w", id, err)
	}
	return nil
}

func (r *WaitlistRepository) MarkBooked(id, bookingID int) error {
	_, err := r.DB.Exec(`
		UPDATE waitlist_entries SET status = $1, booking_id = $2, updated_at = NOW() WHERE id = $3`,
		db.WaitlistBooked, bookingID, id,
	)
	if err != nil {
		return fmt.Errorf("error marking waitlist entry %d booked: %w", id, err)
	}
	return nil
}

func (r *WaitlistRepository) UpdateEntryStatus(id int, status string) error {
	_, err := r.DB.Exec(`UPDATE waitlist_entries SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("error updating waitlist entry status: %w", err)
	}
	return nil
}

// ExpirePending sweeps pending entries whose join deadline has passed.
func (r *WaitlistRepository) ExpirePending(now time.Time) (int64, error) {
	result, err := r.DB.Exec(`
		UPDATE waitlist_entries SET status = $1, updated_at = NOW()
		WHERE status = $2 AND expires_at < $3`,
		db.WaitlistExpired, db.WaitlistPending, now,
	)
	if err != nil {
		return 0, fmt.Errorf("error expiring pending waitlist entries: %w", err)
	}
	return result.RowsAffected()
}

// ExpireNotified sweeps notified entries whose offer window lapsed
// without being booked.
func (r *WaitlistRepository) ExpireNotified(now time.Time) (int64, error) {
	result, err := r.DB.Exec(`
		UPDATE waitlist_entries SET status = $1, updated_at = NOW()
		WHERE status = $2 AND expires_at < $3`,
		db.WaitlistExpired, db.WaitlistNotified, now,
	)
	if err != nil {
		return 0, fmt.Errorf("error expiring notified waitlist entries: %w", err)
	}
	return result.RowsAffected()
}
