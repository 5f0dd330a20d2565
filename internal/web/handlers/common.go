package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/facerec"
	"github.com/kozaktomas/face-attendance/internal/oracle"
	"github.com/kozaktomas/face-attendance/internal/recognition"
)

// errInvalidRequestBody is a shared error message for invalid request bodies.
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

// respondServiceError maps recognition pipeline errors to HTTP statuses.
func respondServiceError(w http.ResponseWriter, err error) {
	var verr *facerec.ValidationError
	var dimErr *facerec.DimensionMismatchError
	var dupErr *recognition.DuplicateFaceError
	var timeoutErr *attendance.TimeoutError
	var storeErr *attendance.StoreError

	switch {
	case errors.As(err, &verr):
		respondError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, oracle.ErrNoFace), errors.Is(err, oracle.ErrMultipleFaces):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, recognition.ErrStudentExists):
		respondError(w, http.StatusConflict, err.Error())
	case errors.As(err, &dupErr):
		respondError(w, http.StatusConflict, dupErr.Error())
	case errors.Is(err, recognition.ErrStudentNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, facerec.ErrNoCandidates):
		respondError(w, http.StatusNotFound, "no students enrolled yet, enroll students first")
	case errors.Is(err, oracle.ErrTimeout), errors.As(err, &timeoutErr), errors.As(err, &storeErr):
		respondError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &dimErr):
		respondError(w, http.StatusInternalServerError, dimErr.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
