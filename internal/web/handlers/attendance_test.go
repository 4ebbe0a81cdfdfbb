package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func (e *testEnv) attendanceHandler() *AttendanceHandler {
	return NewAttendanceHandler(e.stores.Attendance, e.service)
}

// checkinAt records a scan for the trainee at the given time.
func (e *testEnv) checkinAt(t *testing.T, name string, at time.Time) int64 {
	t.Helper()
	trainee, err := e.stores.Trainees.GetByName(context.Background(), name)
	if err != nil {
		t.Fatalf("looking up trainee: %v", err)
	}
	result, err := e.service.RecordScan(context.Background(), trainee, at, "")
	if err != nil {
		t.Fatalf("recording scan: %v", err)
	}
	return result.Record.ID
}

func TestAttendanceList(t *testing.T) {
	env := newTestEnv()
	env.enroll(t, "alice", []float32{1, 0, 0})
	env.enroll(t, "bob", []float32{0, 1, 0})
	h := env.attendanceHandler()

	day1 := time.Date(2026, 3, 2, 9, 0, 0, 0, time.Local)
	day2 := day1.AddDate(0, 0, 1)
	env.checkinAt(t, "alice", day1)
	env.checkinAt(t, "bob", day1)
	env.checkinAt(t, "alice", day2)

	t.Run("all", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.List(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assertStatusCode(t, rec, http.StatusOK)

		var list []attendanceResponse
		parseJSONResponse(t, rec, &list)
		if len(list) != 3 {
			t.Errorf("records = %d, want 3", len(list))
		}
		// Newest day first.
		if list[0].Day != day2.Format("2006-01-02") {
			t.Errorf("first record day = %s, want %s", list[0].Day, day2.Format("2006-01-02"))
		}
	})

	t.Run("by day", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.List(rec, httptest.NewRequest(http.MethodGet, "/?day="+day1.Format("2006-01-02"), nil))
		assertStatusCode(t, rec, http.StatusOK)

		var list []attendanceResponse
		parseJSONResponse(t, rec, &list)
		if len(list) != 2 {
			t.Errorf("records = %d, want 2", len(list))
		}
	})

	t.Run("by range", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.List(rec, httptest.NewRequest(http.MethodGet, "/?from="+day2.Format("2006-01-02"), nil))
		assertStatusCode(t, rec, http.StatusOK)

		var list []attendanceResponse
		parseJSONResponse(t, rec, &list)
		if len(list) != 1 {
			t.Errorf("records = %d, want 1", len(list))
		}
	})

	t.Run("bad date", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.List(rec, httptest.NewRequest(http.MethodGet, "/?day=tomorrow", nil))
		assertStatusCode(t, rec, http.StatusBadRequest)
	})
}

func TestAttendanceEdit(t *testing.T) {
	env := newTestEnv()
	env.enroll(t, "alice", []float32{1, 0, 0})
	h := env.attendanceHandler()

	// Late check-in at 09:30 against 09:00 start with 10 minute grace.
	id := env.checkinAt(t, "alice", time.Date(2026, 3, 2, 9, 30, 0, 0, time.Local))

	t.Run("recomputes status", func(t *testing.T) {
		edited := time.Date(2026, 3, 2, 9, 5, 0, 0, time.Local)
		req := requestWithChiParams(
			jsonRequest(t, http.MethodPatch, "/", map[string]any{"checkin_at": edited}),
			map[string]string{"id": strconv.FormatInt(id, 10)})
		rec := httptest.NewRecorder()
		h.Edit(rec, req)
		assertStatusCode(t, rec, http.StatusOK)

		var resp attendanceResponse
		parseJSONResponse(t, rec, &resp)
		if resp.Status != "present" {
			t.Errorf("status = %q, want present after moving checkin inside grace", resp.Status)
		}
	})

	t.Run("invalid status value", func(t *testing.T) {
		req := requestWithChiParams(
			jsonRequest(t, http.MethodPatch, "/", map[string]any{"status": "excused"}),
			map[string]string{"id": strconv.FormatInt(id, 10)})
		rec := httptest.NewRecorder()
		h.Edit(rec, req)
		assertStatusCode(t, rec, http.StatusBadRequest)
	})

	t.Run("checkout before checkin", func(t *testing.T) {
		early := time.Date(2026, 3, 2, 8, 0, 0, 0, time.Local)
		req := requestWithChiParams(
			jsonRequest(t, http.MethodPatch, "/", map[string]any{"checkout_at": early}),
			map[string]string{"id": strconv.FormatInt(id, 10)})
		rec := httptest.NewRecorder()
		h.Edit(rec, req)
		assertStatusCode(t, rec, http.StatusBadRequest)
	})

	t.Run("missing record", func(t *testing.T) {
		req := requestWithChiParams(
			jsonRequest(t, http.MethodPatch, "/", map[string]any{"status": "late"}),
			map[string]string{"id": "9999"})
		rec := httptest.NewRecorder()
		h.Edit(rec, req)
		assertStatusCode(t, rec, http.StatusNotFound)
	})
}
