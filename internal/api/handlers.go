package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/clinic-slot-scheduling/internal/booking"
	"github.com/hackgods/clinic-slot-scheduling/internal/slot"
	"github.com/hackgods/clinic-slot-scheduling/internal/validate"
)

func listOccupiedHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slots, err := svc.ListOccupied(r.Context())
		if err != nil {
			handleSlotError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toSlotList(slots))
	}
}

func listInsuranceHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slots, err := svc.ListWithInsurance(r.Context())
		if err != nil {
			handleSlotError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toSlotList(slots))
	}
}

func listAvailableHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		weekday := r.URL.Query().Get("weekday")
		date := r.URL.Query().Get("date")
		if weekday == "" || date == "" {
			writeError(w, http.StatusBadRequest, "missing_query", "weekday and date are required")
			return
		}

		slots, err := svc.ListAvailable(r.Context(), weekday, date)
		if err != nil {
			handleSlotError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toSlotList(slots))
	}
}

func getSlotHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date := chi.URLParam(r, "date")
		tm := chi.URLParam(r, "time")

		s, err := svc.FindSlot(r.Context(), date, tm)
		if err != nil {
			handleSlotError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toSlotResponse(*s))
	}
}

func handleSlotError(w http.ResponseWriter, err error) {
	var verr *validate.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, "invalid_format", strings.Join(verr.Fields, "; "))
	case errors.Is(err, slot.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, "slot_not_found", err.Error())
	case errors.Is(err, slot.ErrStoreUnreachable):
		writeError(w, http.StatusServiceUnavailable, "store_unreachable", "listings need the slot store, which was unreachable at startup")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
