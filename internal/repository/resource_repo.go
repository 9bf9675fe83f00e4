package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"studiobook/internal/db"
)

type ResourceRepository struct {
	DB *sql.DB
}

func NewResourceRepository(database *sql.DB) *ResourceRepository {
	return &ResourceRepository{DB: database}
}

const resourceColumns = `id, org_id, name, resource_type, capacity, bookable, active, owner_user_id, owner_calendar_id, created_at, updated_at`

func (r *ResourceRepository) GetResourceByID(id int) (*db.Resource, error) {
	var res db.Resource
	err := r.DB.QueryRow(`SELECT `+resourceColumns+` FROM resources WHERE id = $1`, id).Scan(
		&res.ID, &res.OrgID, &res.Name, &res.ResourceType, &res.Capacity, &res.Bookable, &res.Active,
		&res.OwnerUserID, &res.OwnerCalendarID, &res.CreatedAt, &res.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("error querying resource %d: %w", id, err)
	}
	return &res, nil
}

func (r *ResourceRepository) ListResources(orgID int) ([]db.Resource, error) {
	rows, err := r.DB.Query(`SELECT `+resourceColumns+` FROM resources WHERE org_id = $1 AND active ORDER BY name`, orgID)
	if err != nil {
		return nil, fmt.Errorf("error listing resources: %w", err)
	}
	defer rows.Close()

	var resources []db.Resource
	for rows.Next() {
		var res db.Resource
		err := rows.Scan(
			&res.ID, &res.OrgID, &res.Name, &res.ResourceType, &res.Capacity, &res.Bookable, &res.Active,
			&res.OwnerUserID, &res.OwnerCalendarID, &res.CreatedAt, &res.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning resource row: %w", err)
		}
		resources = append(resources, res)
	}
	return resources, rows.Err()
}

// UpdateResourceSettings applies the administrator-mutable fields.
func (r *ResourceRepository) UpdateResourceSettings(id, capacity int, bookable bool) error {
	result, err := r.DB.Exec(`
		UPDATE resources SET capacity = $1, bookable = $2, updated_at = NOW() WHERE id = $3`,
		capacity, bookable, id,
	)
	if err != nil {
		return fmt.Errorf("error updating resource settings: %w", err)
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeactivateResource soft-deactivates a resource. Rows are never
// deleted while bookings reference them.
func (r *ResourceRepository) DeactivateResource(id int) error {
	result, err := r.DB.Exec(`
		UPDATE resources SET active = FALSE, bookable = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deactivating resource: %w", err)
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
