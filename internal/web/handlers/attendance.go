package handlers

import (
	"fmt"
	"log"
	"net/http"

	"github.com/kozaktomas/face-attendance/internal/ledger"
)

// AttendanceHandler handles attendance listing and export endpoints
type AttendanceHandler struct {
	ledger *ledger.Ledger
}

// NewAttendanceHandler creates a new attendance handler
func NewAttendanceHandler(led *ledger.Ledger) *AttendanceHandler {
	return &AttendanceHandler{ledger: led}
}

// AttendanceEvent represents one attendance row in API responses
type AttendanceEvent struct {
	IdentityID  string            `json:"identity_id"`
	DisplayName string            `json:"display_name"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	Date        string            `json:"date"`
	Time        string            `json:"time"`
}

// List handles GET /api/v1/attendance. Optional from/to query params
// bound the date range (inclusive, YYYY-MM-DD).
func (h *AttendanceHandler) List(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")

	events, err := h.ledger.EventsFor(r.Context(), from, to)
	if err != nil {
		log.Printf("failed to read attendance ledger: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to read attendance")
		return
	}

	out := make([]AttendanceEvent, 0, len(events))
	for _, e := range events {
		out = append(out, AttendanceEvent{
			IdentityID:  e.IdentityID,
			DisplayName: e.DisplayName,
			Attributes:  e.Attributes,
			Date:        e.Date,
			Time:        e.Time,
		})
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"events": out,
		"count":  len(out),
	})
}

// Export handles GET /api/v1/attendance/export. Streams the ledger as
// a file download in the requested format (format=csv|xlsx, defaulting
// to the ledger's own format), bounded by optional from/to params.
func (h *AttendanceHandler) Export(w http.ResponseWriter, r *http.Request) {
	format := h.ledger.Format()
	if q := r.URL.Query().Get("format"); q != "" {
		f, err := ledger.ParseFormat(q)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		format = f
	}
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")

	contentType := "text/csv"
	if format == ledger.FormatWorkbook {
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="attendance.%s"`, format.Ext()))

	if err := h.ledger.EncodeTo(r.Context(), w, format, from, to); err != nil {
		// Headers are already out; all we can do is log.
		log.Printf("failed to export attendance: %v", err)
	}
}
