package api

import (
	"encoding/json"
	"net/http"

	"studiobook/internal/entities"
	apperrors "studiobook/internal/errors"
	"studiobook/internal/interval"
	"studiobook/internal/service"
)

type AvailabilityHandler struct {
	Service *service.AvailabilityService
}

func NewAvailabilityHandler(svc *service.AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{Service: svc}
}

func (h *AvailabilityHandler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	var req AvailabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ErrBadRequest("invalid request body"))
		return
	}
	if req.ResourceID <= 0 || !req.EndDate.After(req.StartDate) {
		writeError(w, apperrors.ErrBadRequest("resource_id, start_date and end_date are required and end_date must be after start_date"))
		return
	}

	window := interval.Interval{Start: req.StartDate, End: req.EndDate}
	slots, err := h.Service.Resolve(r.Context(), req.ResourceID, window)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, entities.AvailabilityResponse{
		ResourceID: req.ResourceID,
		Slots:      slots,
	})
}
