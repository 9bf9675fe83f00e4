package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/lib/pq"

	"studiobook/internal/db"
)

// ErrOverlap is returned when the overlap re-check inside the booking
// transaction finds a competing pending or confirmed booking.
var ErrOverlap = errors.New("overlapping booking exists")

// Advisory lock classes so booking and waitlist serialization for the
// same resource id never contend with each other.
const (
	lockClassBooking  = 1
	lockClassWaitlist = 2
)

var activeBookingStatuses = []string{db.BookingPending, db.BookingConfirmed}

type BookingRepository struct {
	DB *sql.DB
}

func NewBookingRepository(database *sql.DB) *BookingRepository {
	return &BookingRepository{DB: database}
}

// CreateBooking inserts a booking after re-checking the non-overlap
// invariant. The check and insert run in one transaction holding a
// per-resource advisory lock, so two concurrent requests for the same
// resource cannot both pass the check.
func (r *BookingRepository) CreateBooking(res *db.Booking) error {
	tx, err := r.DB.Begin()
	if err != nil {
		return fmt.Errorf("error starting booking transaction: %w", err)
	}
	defer tx.Rollback()

	if err := lockResource(tx, lockClassBooking, res.ResourceID); err != nil {
		return err
	}

	conflicting, err := countOverlapping(tx, res.ResourceID, res.StartTime, res.EndTime, 0)
	if err != nil {
		return err
	}
	if conflicting > 0 {
		return ErrOverlap
	}

	query := `
		INSERT INTO bookings
		(code, org_id, resource_id, requester_name, requester_email, requester_phone, notes, status, start_time, end_time, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		RETURNING id, created_at, updated_at`
	err = tx.QueryRow(query,
		res.Code,
		res.OrgID,
		res.ResourceID,
		res.RequesterName,
		res.RequesterEmail,
		res.RequesterPhone,
		res.Notes,
		res.Status,
		res.StartTime,
		res.EndTime,
	).Scan(&res.ID, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error inserting booking: %w", err)
	}

	return tx.Commit()
}

// RescheduleBooking moves a booking to a new time range, re-validating
// the overlap invariant against every other active booking under the
// same advisory lock used by CreateBooking.
func (r *BookingRepository) RescheduleBooking(id, resourceID int, start, end time.Time) error {
	tx, err := r.DB.Begin()
	if err != nil {
		return fmt.Errorf("error starting reschedule transaction: %w", err)
	}
	defer tx.Rollback()

	if err := lockResource(tx, lockClassBooking, resourceID); err != nil {
		return err
	}

	conflicting, err := countOverlapping(tx, resourceID, start, end, id)
	if err != nil {
		return err
	}
	if conflicting > 0 {
		return ErrOverlap
	}

	_, err = tx.Exec(`UPDATE bookings SET start_time = $1, end_time = $2, updated_at = NOW() WHERE id = $3`, start, end, id)
	if err != nil {
		return fmt.Errorf("error updating booking times: %w", err)
	}

	return tx.Commit()
}

func lockResource(tx *sql.Tx, class, resourceID int) error {
	if _, err := tx.Exec(`SELECT pg_advisory_xact_lock($1, $2)`, class, resourceID); err != nil {
		return fmt.Errorf("error acquiring resource lock: %w", err)
	}
	return nil
}

func countOverlapping(tx *sql.Tx, resourceID int, start, end time.Time, excludeID int) (int, error) {
	var count int
	err := tx.QueryRow(`
		SELECT COUNT(*) FROM bookings
		WHERE resource_id = $1
		  AND status = ANY($2)
		  AND id <> $3
		  AND start_time < $4
		  AND end_time > $5`,
		resourceID, pq.Array(activeBookingStatuses), excludeID, end, start,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("error checking booking overlap: %w", err)
	}
	return count, nil
}

const bookingColumns = `id, code, org_id, resource_id, requester_name, requester_email, requester_phone, notes, status, start_time, end_time, calendar_provider, external_event_id, created_at, updated_at`

func scanBooking(row interface{ Scan(...any) error }) (*db.Booking, error) {
	var b db.Booking
	err := row.Scan(
		&b.ID, &b.Code, &b.OrgID, &b.ResourceID, &b.RequesterName, &b.RequesterEmail, &b.RequesterPhone, &b.Notes,
		&b.Status, &b.StartTime, &b.EndTime, &b.CalendarProvider, &b.ExternalEventID, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BookingRepository) GetBookingByID(id int) (*db.Booking, error) {
	b, err := scanBooking(r.DB.QueryRow(`SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("error querying booking %d: %w", id, err)
	}
	return b, nil
}

func (r *BookingRepository) GetBookingByCode(code string) (*db.Booking, error) {
	b, err := scanBooking(r.DB.QueryRow(`SELECT `+bookingColumns+` FROM bookings WHERE code = $1`, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("error querying booking '%s': %w", code, err)
	}
	return b, nil
}

// ListActiveForRange returns pending and confirmed bookings for the
// resource that intersect the given window, ordered by start time.
func (r *BookingRepository) ListActiveForRange(resourceID int, start, end time.Time) ([]db.Booking, error) {
	rows, err := r.DB.Query(`
		SELECT `+bookingColumns+` FROM bookings
		WHERE resource_id = $1
		  AND status = ANY($2)
		  AND start_time < $3
		  AND end_time > $4
		ORDER BY start_time`,
		resourceID, pq.Array(activeBookingStatuses), end, start,
	)
	if err != nil {
		return nil, fmt.Errorf("error querying active bookings: %w", err)
	}
	defer rows.Close()

	var bookings []db.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning booking row: %w", err)
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

func (r *BookingRepository) UpdateBookingStatus(id int, status string) error {
	result, err := r.DB.Exec(`UPDATE bookings SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("error updating booking status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *BookingRepository) UpdateRequesterFields(id int, name, email, phone, notes string) error {
	_, err := r.DB.Exec(`
		UPDATE bookings SET requester_name = $1, requester_email = $2, requester_phone = $3, notes = $4, updated_at = NOW()
		WHERE id = $5`, name, email, phone, notes, id)
	if err != nil {
		return fmt.Errorf("error updating booking fields: %w", err)
	}
	return nil
}

// SetCalendarSync records the external event mirrored for a booking.
// An empty event id clears the link.
func (r *BookingRepository) SetCalendarSync(id int, provider, eventID string) error {
	var err error
	if eventID == "" {
		_, err = r.DB.Exec(`UPDATE bookings SET calendar_provider = NULL, external_event_id = NULL, updated_at = NOW() WHERE id = $1`, id)
	} else {
		_, err = r.DB.Exec(`UPDATE bookings SET calendar_provider = $1, external_event_id = $2, updated_at = NOW() WHERE id = $3`, provider, eventID, id)
	}
	if err != nil {
		return fmt.Errorf("error recording calendar sync for booking %d: %w", id, err)
	}
	return nil
}

// ListBookings supports the admin listing with optional filters.
func (r *BookingRepository) ListBookings(date, status string, resourceID, limit, offset int) ([]db.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE 1=1`
	args := []interface{}{}
	idx := 1

	if date != "" {
		query += " AND DATE(start_time) = $" + strconv.Itoa(idx)
		args = append(args, date)
		idx++
	}
	if status != "" {
		query += " AND status = $" + strconv.Itoa(idx)
		args = append(args, status)
		idx++
	}
	if resourceID > 0 {
		query += " AND resource_id = $" + strconv.Itoa(idx)
		args = append(args, resourceID)
		idx++
	}
	query += " ORDER BY start_time DESC"
	query += " LIMIT $" + strconv.Itoa(idx) + " OFFSET $" + strconv.Itoa(idx+1)
	args = append(args, limit, offset)

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing bookings: %w", err)
	}
	defer rows.Close()

	var bookings []db.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning booking row: %w", err)
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

// GetConfirmedIDsPastEndTime finds confirmed bookings whose end time has
// passed, for the completion sweep.
func (r *BookingRepository) GetConfirmedIDsPastEndTime() ([]int, error) {
	rows, err := r.DB.Query(`SELECT id FROM bookings WHERE status = $1 AND end_time < NOW()`, db.BookingConfirmed)
	if err != nil {
		return nil, fmt.Errorf("error querying confirmed bookings past end time: %w", err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning booking ID: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *BookingRepository) UpdateBookingStatuses(ids []int, newStatus string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.DB.Exec(`UPDATE bookings SET status = $1, updated_at = NOW() WHERE id = ANY($2)`, newStatus, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("error updating booking statuses: %w", err)
	}
	return nil
}
