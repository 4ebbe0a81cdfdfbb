package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"time"

	"github.com/scanin/scanin/internal/database"
)

// ReportsHandler exports attendance data for offline processing.
type ReportsHandler struct {
	store database.AttendanceStore
}

// NewReportsHandler creates a new reports handler
func NewReportsHandler(store database.AttendanceStore) *ReportsHandler {
	return &ReportsHandler{store: store}
}

// Export streams matching attendance records as CSV. The same query filters
// as the listing endpoint apply.
func (h *ReportsHandler) Export(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := h.store.List(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to export attendance")
		return
	}

	filename := fmt.Sprintf("attendance-%s.csv", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	writer := csv.NewWriter(w)
	writer.Write([]string{"trainee", "day", "checkin", "checkout", "status"})

	for _, rec := range records {
		writer.Write([]string{
			rec.TraineeName,
			rec.Day.Format("2006-01-02"),
			formatStamp(rec.CheckinAt),
			formatStamp(rec.CheckoutAt),
			string(rec.Status),
		})
	}
	writer.Flush()
}

func formatStamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
