package api

import (
	"net/http"
	"strconv"

	apperrors "studiobook/internal/errors"
	"studiobook/internal/service"
)

type CalendarHandler struct {
	Tokens *service.CalendarTokenService
}

func NewCalendarHandler(tokens *service.CalendarTokenService) *CalendarHandler {
	return &CalendarHandler{Tokens: tokens}
}

// Connect redirects the user to the provider consent screen. The user
// id rides along as the OAuth state parameter.
func (h *CalendarHandler) Connect(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.Atoi(r.URL.Query().Get("user_id"))
	if err != nil || userID <= 0 {
		writeError(w, apperrors.ErrBadRequest("user_id is required"))
		return
	}
	http.Redirect(w, r, h.Tokens.ConnectURL(strconv.Itoa(userID)), http.StatusFound)
}

// Callback finishes the authorization-code flow: it exchanges the code
// carried by the provider redirect for tokens and persists them.
func (h *CalendarHandler) Callback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		writeError(w, apperrors.ErrBadRequest("code and state are required"))
		return
	}
	userID, err := strconv.Atoi(state)
	if err != nil || userID <= 0 {
		writeError(w, apperrors.ErrBadRequest("invalid state"))
		return
	}

	if _, err := h.Tokens.ExchangeAuthorizationCode(r.Context(), code, userID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Calendar connected"})
}
