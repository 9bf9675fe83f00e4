package repository

import (
	"database/sql"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"studiobook/internal/db"
)

type StaffAuthRepository interface {
	GetByEmail(email string) (*db.StaffUser, error)
	CreateStaffUser(email, password string) error
}

type staffAuthRepository struct {
	db *sql.DB
}

func NewStaffAuthRepository(database *sql.DB) StaffAuthRepository {
	return &staffAuthRepository{db: database}
}

func (r *staffAuthRepository) GetByEmail(email string) (*db.StaffUser, error) {
	var staff db.StaffUser
	err := r.db.QueryRow("SELECT id, email, password_hash FROM staff_users WHERE email = $1", email).
		Scan(&staff.ID, &staff.Email, &staff.PasswordHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &staff, nil
}

func (r *staffAuthRepository) CreateStaffUser(email, password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = r.db.Exec("INSERT INTO staff_users (email, password_hash) VALUES ($1, $2)", email, hashedPassword)
	return err
}
