package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"studiobook/internal/entities"
	apperrors "studiobook/internal/errors"
	"studiobook/internal/service"
)

type BookingHandler struct {
	Service *service.BookingService
}

func NewBookingHandler(svc *service.BookingService) *BookingHandler {
	return &BookingHandler{Service: svc}
}

func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req entities.BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ErrBadRequest("invalid request body"))
		return
	}

	booking, err := h.Service.CreateBooking(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, CreateBookingResponse{
		BookingID: booking.Code,
		Status:    booking.Status,
	})
}

func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	booking, err := h.Service.GetBooking(code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, service.BookingResponseFrom(booking))
}

func (h *BookingHandler) UpdateBooking(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	var patch entities.BookingPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, apperrors.ErrBadRequest("invalid request body"))
		return
	}

	booking, err := h.Service.UpdateBooking(r.Context(), code, &patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, service.BookingResponseFrom(booking))
}

func (h *BookingHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	var req CancelBookingRequest
	// Body is optional on cancellation.
	json.NewDecoder(r.Body).Decode(&req)

	if _, err := h.Service.CancelBooking(code, req.Reason); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Booking cancelled"})
}
