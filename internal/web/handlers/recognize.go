package handlers

import (
	"log"
	"net/http"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/recognition"
)

// RecognizeHandler handles the kiosk recognition endpoint.
type RecognizeHandler struct {
	service *recognition.Service
}

// NewRecognizeHandler creates a new recognition handler.
func NewRecognizeHandler(service *recognition.Service) *RecognizeHandler {
	return &RecognizeHandler{service: service}
}

type recognizeResponse struct {
	Outcome     string  `json:"outcome"`
	StudentCode string  `json:"student_code,omitempty"`
	Name        string  `json:"name,omitempty"`
	Confidence  float64 `json:"confidence"`
	Distance    float64 `json:"distance"`
	// BestCandidate is set on a no_match outcome so the operator can see
	// how close the nearest enrolled student was.
	BestCandidate string `json:"best_candidate,omitempty"`
}

// outcomeOf flattens the recognition result into a single outcome string
// the kiosk UI can switch on.
func outcomeOf(result *recognition.Result) string {
	switch {
	case !result.Match.Matched:
		return "no_match"
	case result.AttendanceQueued:
		return "recorded_offline"
	case result.AttendanceError != nil:
		return "error"
	case result.Attendance.Outcome == attendance.OutcomeAlreadyMarked:
		return "already_marked"
	default:
		return "recorded"
	}
}

// Recognize handles a single camera capture: one photo in, a match and an
// attendance outcome out.
func (h *RecognizeHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	files := r.MultipartForm.File["photo"]
	if len(files) != 1 {
		respondError(w, http.StatusBadRequest, "exactly one photo is required")
		return
	}

	photos, err := readUploadedPhotos(files)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.Recognize(r.Context(), photos[0])
	if err != nil {
		respondServiceError(w, err)
		return
	}

	resp := recognizeResponse{
		Outcome:    outcomeOf(result),
		Confidence: result.Match.Confidence,
		Distance:   result.Match.Distance,
	}
	if result.Student != nil {
		resp.StudentCode = result.Student.StudentCode
		resp.Name = result.Student.Name
	} else {
		resp.BestCandidate = result.Match.ID
	}
	if result.AttendanceError != nil {
		log.Printf("attendance write failed for %s: %v",
			sanitizeForLog(resp.StudentCode), result.AttendanceError)
		respondJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}
