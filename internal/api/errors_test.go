package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "studiobook/internal/errors"
	"studiobook/internal/service"
)

func TestWriteErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"bad request helper", apperrors.ErrBadRequest("invalid request body"), http.StatusBadRequest},
		{"unauthorized helper", apperrors.ErrUnauthorized("invalid credentials"), http.StatusUnauthorized},
		{"not found", service.ErrNotFound, http.StatusNotFound},
		{"conflict", service.ErrConflict, http.StatusConflict},
		{"already queued", service.ErrAlreadyQueued, http.StatusConflict},
		{"expired", service.ErrExpired, http.StatusGone},
		{"invalid transition", service.ErrInvalidTransition, http.StatusUnprocessableEntity},
		{"auth expired", service.ErrAuthExpired, http.StatusUnauthorized},
		{"provider failure", &service.ExternalServiceError{Provider: "google", Op: "freebusy"}, http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, tc.err)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestCreateBookingRejectsMalformedBody(t *testing.T) {
	h := NewBookingHandler(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/bookings", strings.NewReader("{not json"))

	h.CreateBooking(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid request body")
}
