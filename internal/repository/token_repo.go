package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"studiobook/internal/db"
)

type TokenRepository struct {
	DB *sql.DB
}

func NewTokenRepository(database *sql.DB) *TokenRepository {
	return &TokenRepository{DB: database}
}

// GetToken returns the stored token for (user, provider), or nil when
// the user never connected that provider.
func (r *TokenRepository) GetToken(userID int, provider string) (*db.CalendarToken, error) {
	var t db.CalendarToken
	err := r.DB.QueryRow(`
		SELECT id, user_id, provider, access_token, refresh_token, expiry, scope, status, created_at, updated_at
		FROM calendar_tokens WHERE user_id = $1 AND provider = $2`,
		userID, provider,
	).Scan(&t.ID, &t.UserID, &t.Provider, &t.AccessToken, &t.RefreshToken, &t.Expiry, &t.Scope, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("error querying calendar token: %w", err)
	}
	return &t, nil
}

// UpsertToken persists the tokens obtained from an authorization-code
// exchange, replacing any previous connection for (user, provider).
func (r *TokenRepository) UpsertToken(t *db.CalendarToken) error {
	query := `
		INSERT INTO calendar_tokens (user_id, provider, access_token, refresh_token, expiry, scope, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		ON CONFLICT (user_id, provider) DO UPDATE
		SET access_token = EXCLUDED.access_token,
		    refresh_token = EXCLUDED.refresh_token,
		    expiry = EXCLUDED.expiry,
		    scope = EXCLUDED.scope,
		    status = EXCLUDED.status,
		    updated_at = NOW()
		RETURNING id, created_at, updated_at`
	err := r.DB.QueryRow(query,
		t.UserID, t.Provider, t.AccessToken, t.RefreshToken, t.Expiry, t.Scope, t.Status,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error upserting calendar token: %w", err)
	}
	return nil
}

// UpdateAccessToken overwrites the access token and expiry after a
// refresh. The refresh token is overwritten too; callers pass the old
// one back when the provider did not rotate it.
func (r *TokenRepository) UpdateAccessToken(userID int, provider, accessToken, refreshToken string, expiry time.Time) error {
	_, err := r.DB.Exec(`
		UPDATE calendar_tokens
		SET access_token = $1, refresh_token = $2, expiry = $3, status = $4, updated_at = NOW()
		WHERE user_id = $5 AND provider = $6`,
		accessToken, refreshToken, expiry, db.TokenOK, userID, provider,
	)
	if err != nil {
		return fmt.Errorf("error updating access token: %w", err)
	}
	return nil
}

func (r *TokenRepository) MarkTokenStatus(userID int, provider, status string) error {
	_, err := r.DB.Exec(`
		UPDATE calendar_tokens SET status = $1, updated_at = NOW() WHERE user_id = $2 AND provider = $3`,
		status, userID, provider,
	)
	if err != nil {
		return fmt.Errorf("error marking calendar token status: %w", err)
	}
	return nil
}
