package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/scanin/scanin/internal/attendance"
	"github.com/scanin/scanin/internal/database"
)

// AttendanceHandler handles ledger listings and administrative edits.
type AttendanceHandler struct {
	store   database.AttendanceStore
	service *attendance.Service
}

// NewAttendanceHandler creates a new attendance handler
func NewAttendanceHandler(store database.AttendanceStore, service *attendance.Service) *AttendanceHandler {
	return &AttendanceHandler{store: store, service: service}
}

type attendanceResponse struct {
	ID          int64      `json:"id"`
	TraineeID   int64      `json:"trainee_id"`
	TraineeName string     `json:"trainee_name"`
	Day         string     `json:"day"`
	CheckinAt   *time.Time `json:"checkin_at"`
	CheckoutAt  *time.Time `json:"checkout_at"`
	Status      string     `json:"status"`
}

func toAttendanceResponse(rec *database.AttendanceRecord) attendanceResponse {
	return attendanceResponse{
		ID:          rec.ID,
		TraineeID:   rec.TraineeID,
		TraineeName: rec.TraineeName,
		Day:         rec.Day.Format("2006-01-02"),
		CheckinAt:   rec.CheckinAt,
		CheckoutAt:  rec.CheckoutAt,
		Status:      string(rec.Status),
	}
}

// parseFilter builds an AttendanceFilter from query parameters. Supported:
// day, from, to (all YYYY-MM-DD) and trainee_id.
func parseFilter(r *http.Request) (database.AttendanceFilter, error) {
	var filter database.AttendanceFilter

	for _, p := range []struct {
		name string
		dst  **time.Time
	}{
		{"day", &filter.Day},
		{"from", &filter.From},
		{"to", &filter.To},
	} {
		if v := r.URL.Query().Get(p.name); v != "" {
			t, err := time.ParseInLocation("2006-01-02", v, time.Local)
			if err != nil {
				return filter, errors.New("invalid " + p.name + " date, expected YYYY-MM-DD")
			}
			*p.dst = &t
		}
	}

	if v := r.URL.Query().Get("trainee_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return filter, errors.New("invalid trainee_id")
		}
		filter.TraineeID = &id
	}
	return filter, nil
}

// List returns attendance records matching the query filters, newest first.
func (h *AttendanceHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := h.store.List(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list attendance")
		return
	}

	out := make([]attendanceResponse, 0, len(records))
	for i := range records {
		out = append(out, toAttendanceResponse(&records[i]))
	}
	respondJSON(w, http.StatusOK, out)
}

type editRequest struct {
	CheckinAt  *time.Time `json:"checkin_at"`
	CheckoutAt *time.Time `json:"checkout_at"`
	Status     *string    `json:"status"`
}

// Edit applies an administrative direct edit to a record. An edited check-in
// time without an explicit status triggers a status recompute against the
// current policy.
func (h *AttendanceHandler) Edit(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid record id")
		return
	}

	var req editRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	patch := database.AttendancePatch{
		CheckinAt:  req.CheckinAt,
		CheckoutAt: req.CheckoutAt,
	}
	if req.Status != nil {
		status := database.AttendanceStatus(*req.Status)
		if status != database.StatusPresent && status != database.StatusLate {
			respondError(w, http.StatusBadRequest, "status must be present or late")
			return
		}
		patch.Status = &status
	}

	rec, err := h.service.Edit(r.Context(), id, patch)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrRecordNotFound):
			respondError(w, http.StatusNotFound, "attendance record not found")
		case errors.Is(err, attendance.ErrInvalidEdit):
			respondError(w, http.StatusBadRequest, "checkout time before checkin time")
		default:
			respondError(w, http.StatusInternalServerError, "failed to update record")
		}
		return
	}
	respondJSON(w, http.StatusOK, toAttendanceResponse(rec))
}
