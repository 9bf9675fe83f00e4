package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	apperrors "studiobook/internal/errors"
	"studiobook/internal/service"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError translates domain errors to HTTP status codes. Business
// outcomes keep their specific, actionable message; everything else is
// an opaque 500.
func writeError(w http.ResponseWriter, err error) {
	var httpErr *apperrors.HTTPError
	if errors.As(err, &httpErr) {
		http.Error(w, httpErr.Message, httpErr.Code)
		return
	}

	var status int
	switch {
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrConflict), errors.Is(err, service.ErrAlreadyQueued):
		status = http.StatusConflict
	case errors.Is(err, service.ErrNotBookable):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrExpired):
		status = http.StatusGone
	case errors.Is(err, service.ErrInvalidState), errors.Is(err, service.ErrInvalidTransition):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrAuthExpired), errors.Is(err, service.ErrInvalidGrant), errors.Is(err, service.ErrNotConnected):
		status = http.StatusUnauthorized
	default:
		var extErr *service.ExternalServiceError
		if errors.As(err, &extErr) {
			http.Error(w, "Calendar provider unavailable", http.StatusBadGateway)
			return
		}
		log.Printf("Internal error: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	http.Error(w, err.Error(), status)
}
