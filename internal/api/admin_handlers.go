package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"studiobook/internal/db"
	apperrors "studiobook/internal/errors"
	"studiobook/internal/repository"
	"studiobook/internal/service"
)

type AdminHandler struct {
	Bookings  *service.BookingService
	Resources *repository.ResourceRepository
}

func NewAdminHandler(bookings *service.BookingService, resources *repository.ResourceRepository) *AdminHandler {
	return &AdminHandler{Bookings: bookings, Resources: resources}
}

func (h *AdminHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	resourceID, _ := strconv.Atoi(q.Get("resource_id"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	list, err := h.Bookings.ListBookings(q.Get("date"), q.Get("status"), resourceID, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *AdminHandler) ConfirmBooking(w http.ResponseWriter, r *http.Request) {
	h.transition(w, mux.Vars(r)["code"], h.Bookings.ConfirmBooking)
}

func (h *AdminHandler) CompleteBooking(w http.ResponseWriter, r *http.Request) {
	h.transition(w, mux.Vars(r)["code"], h.Bookings.CompleteBooking)
}

func (h *AdminHandler) MarkNoShow(w http.ResponseWriter, r *http.Request) {
	h.transition(w, mux.Vars(r)["code"], h.Bookings.MarkNoShow)
}

func (h *AdminHandler) transition(w http.ResponseWriter, code string, fn func(string) (*db.Booking, error)) {
	booking, err := fn(code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, service.BookingResponseFrom(booking))
}

func (h *AdminHandler) ListResources(w http.ResponseWriter, r *http.Request) {
	orgID, _ := strconv.Atoi(r.URL.Query().Get("org_id"))
	resources, err := h.Resources.ListResources(orgID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resources)
}

func (h *AdminHandler) UpdateResourceSettings(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, apperrors.ErrBadRequest("invalid resource id"))
		return
	}
	var req UpdateResourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ErrBadRequest("invalid request body"))
		return
	}
	if req.Capacity <= 0 {
		writeError(w, apperrors.ErrBadRequest("capacity must be positive"))
		return
	}

	if err := h.Resources.UpdateResourceSettings(id, req.Capacity, req.Bookable); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, service.ErrNotFound)
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Resource updated"})
}

func (h *AdminHandler) DeactivateResource(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, apperrors.ErrBadRequest("invalid resource id"))
		return
	}
	if err := h.Resources.DeactivateResource(id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, service.ErrNotFound)
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Resource deactivated"})
}
