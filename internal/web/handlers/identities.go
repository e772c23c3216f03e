package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/kozaktomas/face-attendance/internal/embedder"
	"github.com/kozaktomas/face-attendance/internal/lockfile"
	"github.com/kozaktomas/face-attendance/internal/store"
)

const maxUploadSize = 10 << 20 // 10 MB

// IdentitiesHandler handles identity listing and enrollment endpoints
type IdentitiesHandler struct {
	store    *store.Store
	embedder *embedder.Client
}

// NewIdentitiesHandler creates a new identities handler
func NewIdentitiesHandler(st *store.Store, emb *embedder.Client) *IdentitiesHandler {
	return &IdentitiesHandler{
		store:    st,
		embedder: emb,
	}
}

// IdentitySummary represents one enrolled identity in API responses.
// Embeddings are reported as a count, never as raw vectors.
type IdentitySummary struct {
	ID          string            `json:"id"`
	DisplayName string            `json:"display_name"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	Samples     int               `json:"samples"`
}

func summarize(id store.Identity) IdentitySummary {
	return IdentitySummary{
		ID:          id.ID,
		DisplayName: id.DisplayName,
		Attributes:  id.Attributes,
		Samples:     len(id.Embeddings),
	}
}

// List handles GET /api/v1/identities
func (h *IdentitiesHandler) List(w http.ResponseWriter, r *http.Request) {
	ids, err := h.store.All(r.Context())
	if err != nil {
		log.Printf("failed to read identity corpus: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to read identities")
		return
	}

	summaries := make([]IdentitySummary, 0, len(ids))
	for _, id := range ids {
		summaries = append(summaries, summarize(id))
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"identities": summaries,
		"count":      len(summaries),
	})
}

// EnrollRequest represents a JSON enrollment request
type EnrollRequest struct {
	DisplayName string            `json:"display_name"`
	Attributes  map[string]string `json:"attributes"`
	Embedding   []float32         `json:"embedding"`
}

// Enroll handles POST /api/v1/identities. Two request shapes are
// accepted: a JSON body carrying a precomputed embedding, or a
// multipart form with an "image" file that is sent through the
// embedding service.
func (h *IdentitiesHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "multipart/form-data") {
		h.enrollFromImage(w, r)
		return
	}
	h.enrollFromJSON(w, r)
}

func (h *IdentitiesHandler) enrollFromJSON(w http.ResponseWriter, r *http.Request) {
	var req EnrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	id, err := h.store.Enroll(r.Context(), req.DisplayName, req.Attributes, req.Embedding)
	if err != nil {
		respondEnrollError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, summarize(id))
}

func (h *IdentitiesHandler) enrollFromImage(w http.ResponseWriter, r *http.Request) {
	if h.embedder == nil {
		respondError(w, http.StatusServiceUnavailable, "embedding service is not configured")
		return
	}

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	displayName := r.FormValue("display_name")
	attrs := map[string]string{}
	if extID := r.FormValue("external_id"); extID != "" {
		attrs[store.AttrExternalID] = extID
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing image file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadSize))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read image")
		return
	}

	faces, err := h.embedder.DetectAndEmbed(r.Context(), data)
	if err != nil {
		log.Printf("embedding service failed for %s: %v", sanitizeForLog(displayName), err)
		respondError(w, http.StatusBadGateway, "embedding service failed")
		return
	}
	if len(faces) == 0 {
		respondError(w, http.StatusUnprocessableEntity, "no face detected in image")
		return
	}
	if len(faces) > 1 {
		respondError(w, http.StatusUnprocessableEntity, "image contains more than one face")
		return
	}

	id, err := h.store.Enroll(r.Context(), displayName, attrs, faces[0].Embedding)
	if err != nil {
		respondEnrollError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, summarize(id))
}

// respondEnrollError maps store errors to HTTP status codes.
func respondEnrollError(w http.ResponseWriter, err error) {
	var vErr *store.ValidationError
	var dErr *store.DimensionError
	switch {
	case errors.As(err, &vErr):
		respondError(w, http.StatusBadRequest, vErr.Error())
	case errors.As(err, &dErr):
		respondError(w, http.StatusBadRequest, dErr.Error())
	case errors.Is(err, lockfile.ErrTimeout):
		respondError(w, http.StatusServiceUnavailable, "identity store is busy, try again")
	default:
		log.Printf("enrollment failed: %v", err)
		respondError(w, http.StatusInternalServerError, "enrollment failed")
	}
}
