package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"studiobook/internal/db"
)

// refreshSkew is how long before expiry a token is refreshed.
const refreshSkew = 5 * time.Minute

// TokenStore is the persistence needed by the token service.
type TokenStore interface {
	GetToken(userID int, provider string) (*db.CalendarToken, error)
	UpsertToken(t *db.CalendarToken) error
	UpdateAccessToken(userID int, provider, accessToken, refreshToken string, expiry time.Time) error
	MarkTokenStatus(userID int, provider, status string) error
}

// OAuthExchanger abstracts the provider's OAuth endpoints so tests can
// run without network access.
type OAuthExchanger interface {
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
	AuthCodeURL(state string) string
	Scopes() []string
}

type googleOAuth struct {
	cfg *oauth2.Config
}

// NewGoogleOAuth builds the Google OAuth config from the environment.
func NewGoogleOAuth() OAuthExchanger {
	return &googleOAuth{cfg: &oauth2.Config{
		ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		RedirectURL:  os.Getenv("GOOGLE_REDIRECT_URL"),
		Scopes: []string{
			"https://www.googleapis.com/auth/calendar.events",
			"https://www.googleapis.com/auth/calendar.freebusy",
		},
		Endpoint: google.Endpoint,
	}}
}

func (g *googleOAuth) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return g.cfg.Exchange(ctx, code)
}

func (g *googleOAuth) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	return g.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
}

func (g *googleOAuth) AuthCodeURL(state string) string {
	return g.cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

func (g *googleOAuth) Scopes() []string {
	return g.cfg.Scopes
}

// CalendarTokenService owns CalendarToken rows: it exchanges
// authorization codes and hands out access tokens, refreshing them
// transparently when they are close to expiry.
type CalendarTokenService struct {
	Repo     TokenStore
	OAuth    OAuthExchanger
	Provider string
	Now      func() time.Time

	mu         sync.Mutex
	refreshing map[int]*sync.Mutex
}

func NewCalendarTokenService(repo TokenStore, oauth OAuthExchanger, provider string) *CalendarTokenService {
	return &CalendarTokenService{
		Repo:       repo,
		OAuth:      oauth,
		Provider:   provider,
		Now:        time.Now,
		refreshing: make(map[int]*sync.Mutex),
	}
}

// userMutex returns the per-user refresh lock, so concurrent requests
// for the same user trigger at most one provider refresh call.
func (s *CalendarTokenService) userMutex(userID int) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.refreshing[userID]
	if !ok {
		m = &sync.Mutex{}
		s.refreshing[userID] = m
	}
	return m
}

// ConnectURL returns the provider consent URL for the OAuth redirect.
func (s *CalendarTokenService) ConnectURL(state string) string {
	return s.OAuth.AuthCodeURL(state)
}

// GetValidAccessToken returns a usable access token for the user,
// refreshing when now + 5min >= expiry. Exactly one refresh attempt is
// made; on failure the stored integration is marked error and
// ErrAuthExpired is surfaced.
func (s *CalendarTokenService) GetValidAccessToken(ctx context.Context, userID int) (string, error) {
	mu := s.userMutex(userID)
	mu.Lock()
	defer mu.Unlock()

	stored, err := s.Repo.GetToken(userID, s.Provider)
	if err != nil {
		return "", err
	}
	if stored == nil {
		return "", ErrNotConnected
	}

	now := s.Now()
	if stored.Status == db.TokenOK && stored.Expiry.After(now.Add(refreshSkew)) {
		return stored.AccessToken, nil
	}

	if stored.RefreshToken == "" {
		if markErr := s.Repo.MarkTokenStatus(userID, s.Provider, db.TokenError); markErr != nil {
			log.Printf("Error marking calendar token for user %d: %v", userID, markErr)
		}
		return "", ErrAuthExpired
	}

	fresh, err := s.OAuth.Refresh(ctx, stored.RefreshToken)
	if err != nil {
		log.Printf("Calendar token refresh failed for user %d: %v", userID, err)
		if markErr := s.Repo.MarkTokenStatus(userID, s.Provider, db.TokenError); markErr != nil {
			log.Printf("Error marking calendar token for user %d: %v", userID, markErr)
		}
		return "", ErrAuthExpired
	}

	// The refresh token is retained unless the provider issued a new one.
	refreshToken := stored.RefreshToken
	if fresh.RefreshToken != "" {
		refreshToken = fresh.RefreshToken
	}
	if err := s.Repo.UpdateAccessToken(userID, s.Provider, fresh.AccessToken, refreshToken, fresh.Expiry); err != nil {
		return "", err
	}
	return fresh.AccessToken, nil
}

// ExchangeAuthorizationCode performs the one-time OAuth code exchange
// and persists the resulting tokens for the user. A provider rejection
// of the code is ErrInvalidGrant; a transport fault is not the
// caller's grant going bad and surfaces as a provider error.
func (s *CalendarTokenService) ExchangeAuthorizationCode(ctx context.Context, code string, userID int) (*db.CalendarToken, error) {
	tok, err := s.OAuth.Exchange(ctx, code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidGrant, err)
		}
		return nil, &ExternalServiceError{Provider: s.Provider, Op: "exchange", Err: err}
	}

	stored := &db.CalendarToken{
		UserID:       userID,
		Provider:     s.Provider,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
		Scope:        strings.Join(s.OAuth.Scopes(), " "),
		Status:       db.TokenOK,
	}
	if stored.RefreshToken == "" {
		// Re-consent without a new refresh token: keep the one on file.
		if prev, err := s.Repo.GetToken(userID, s.Provider); err == nil && prev != nil {
			stored.RefreshToken = prev.RefreshToken
		}
	}
	if err := s.Repo.UpsertToken(stored); err != nil {
		return nil, err
	}
	return stored, nil
}
