package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"studiobook/internal/entities"
	apperrors "studiobook/internal/errors"
	"studiobook/internal/interval"
	"studiobook/internal/service"
)

type WaitlistHandler struct {
	Service *service.WaitlistService
}

func NewWaitlistHandler(svc *service.WaitlistService) *WaitlistHandler {
	return &WaitlistHandler{Service: svc}
}

func (h *WaitlistHandler) JoinWaitlist(w http.ResponseWriter, r *http.Request) {
	var req entities.WaitlistJoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ErrBadRequest("invalid request body"))
		return
	}

	entry, err := h.Service.AddToWaitlist(&req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, WaitlistJoinResponse{EntryID: entry.Code})
}

// GetEntry lets a requester check their queue position and offer state.
func (h *WaitlistHandler) GetEntry(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	entry, err := h.Service.GetEntry(code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, service.WaitlistEntryResponseFrom(entry))
}

// BookFromWaitlist claims an offered slot for a notified entry.
func (h *WaitlistHandler) BookFromWaitlist(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	var req BookFromWaitlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ErrBadRequest("invalid request body"))
		return
	}

	slot := interval.Interval{Start: req.StartTime, End: req.EndTime}
	booking, err := h.Service.BookFromWaitlist(r.Context(), code, slot)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreateBookingResponse{
		BookingID: booking.Code,
		Status:    booking.Status,
	})
}

func (h *WaitlistHandler) CancelEntry(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	if err := h.Service.CancelEntry(code); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Waitlist entry cancelled"})
}
