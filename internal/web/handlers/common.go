// Package handlers implements the HTTP API surface.
package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/scanin/scanin/internal/attendance"
	"github.com/scanin/scanin/internal/database"
	"github.com/scanin/scanin/internal/extractor"
	"github.com/scanin/scanin/internal/liveness"
	"github.com/scanin/scanin/internal/recognizer"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondScanError translates pipeline and ledger failures into API responses.
func respondScanError(w http.ResponseWriter, err error) {
	var upstream *extractor.UpstreamError

	switch {
	case errors.Is(err, extractor.ErrNoFace):
		respondError(w, http.StatusUnprocessableEntity, "no face detected in frame")
	case errors.Is(err, extractor.ErrBadFrame):
		respondError(w, http.StatusUnprocessableEntity, "frame is not a decodable image")
	case errors.Is(err, recognizer.ErrNoMatch):
		respondError(w, http.StatusNotFound, "face not recognized")
	case errors.Is(err, liveness.ErrRejected):
		respondError(w, http.StatusForbidden, "liveness check failed")
	case errors.Is(err, liveness.ErrUnavailable):
		respondError(w, http.StatusServiceUnavailable, "liveness check unavailable")
	case errors.Is(err, attendance.ErrAlreadyCompleted):
		respondError(w, http.StatusConflict, "already checked in and out today")
	case errors.Is(err, attendance.ErrNotCheckedIn):
		respondError(w, http.StatusConflict, "not checked in today")
	case errors.Is(err, attendance.ErrContention):
		respondError(w, http.StatusConflict, "scan conflict, try again")
	case errors.Is(err, database.ErrTraineeNotFound):
		respondError(w, http.StatusNotFound, "trainee not found")
	case errors.As(err, &upstream):
		respondError(w, http.StatusBadGateway, "embedding service unavailable")
	default:
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeFrame decodes a base64 camera frame, accepting an optional data URL
// prefix the way browser capture APIs produce it.
func decodeFrame(encoded string) ([]byte, error) {
	if idx := strings.Index(encoded, ";base64,"); idx >= 0 {
		encoded = encoded[idx+len(";base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.New("frame is not valid base64")
	}
	if len(data) == 0 {
		return nil, errors.New("frame is empty")
	}
	return data, nil
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
