package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/kozaktomas/face-attendance/internal/lockfile"
	"github.com/kozaktomas/face-attendance/internal/session"
	"github.com/kozaktomas/face-attendance/internal/store"
)

// ObserveHandler handles recognition observations against the running session
type ObserveHandler struct {
	coordinator *session.Coordinator
}

// NewObserveHandler creates a new observe handler
func NewObserveHandler(coord *session.Coordinator) *ObserveHandler {
	return &ObserveHandler{coordinator: coord}
}

// ObserveRequest carries one query embedding
type ObserveRequest struct {
	Embedding []float32 `json:"embedding"`
}

// ObserveResponse reports the recognition outcome
type ObserveResponse struct {
	Recognized        bool             `json:"recognized"`
	Identity          *IdentitySummary `json:"identity,omitempty"`
	Confidence        float64          `json:"confidence,omitempty"`
	AttendanceWritten bool             `json:"attendance_written"`
}

// Observe handles POST /api/v1/observe
func (h *ObserveHandler) Observe(w http.ResponseWriter, r *http.Request) {
	var req ObserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Embedding) == 0 {
		respondError(w, http.StatusBadRequest, "embedding is required")
		return
	}

	out, err := h.coordinator.Observe(r.Context(), req.Embedding, time.Now())
	if err != nil {
		var dErr *store.DimensionError
		switch {
		case errors.As(err, &dErr):
			respondError(w, http.StatusBadRequest, dErr.Error())
		case errors.Is(err, lockfile.ErrTimeout):
			respondError(w, http.StatusServiceUnavailable, "attendance ledger is busy, try again")
		default:
			log.Printf("observation failed: %v", err)
			respondError(w, http.StatusInternalServerError, "observation failed")
		}
		return
	}

	resp := ObserveResponse{
		Recognized:        out.Recognized,
		Confidence:        out.Confidence,
		AttendanceWritten: out.AttendanceWritten,
	}
	if out.Identity != nil {
		s := summarize(*out.Identity)
		resp.Identity = &s
	}
	respondJSON(w, http.StatusOK, resp)
}

// ResetSession handles POST /api/v1/session/reset. Clears the
// session-local seen set; per-day ledger dedup is unaffected.
func (h *ObserveHandler) ResetSession(w http.ResponseWriter, r *http.Request) {
	h.coordinator.Reset()
	respondJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}
