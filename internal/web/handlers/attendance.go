package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// AttendanceHandler handles attendance reporting endpoints.
type AttendanceHandler struct {
	store    database.AttendanceStore
	recorder *attendance.Recorder
}

// NewAttendanceHandler creates a new attendance handler.
func NewAttendanceHandler(store database.AttendanceStore, recorder *attendance.Recorder) *AttendanceHandler {
	return &AttendanceHandler{store: store, recorder: recorder}
}

type attendanceResponse struct {
	RecordUID   string   `json:"record_uid"`
	StudentCode string   `json:"student_code"`
	StudentName string   `json:"student_name,omitempty"`
	Class       string   `json:"class,omitempty"`
	Section     string   `json:"section,omitempty"`
	Date        string   `json:"date"`
	MarkedAt    string   `json:"marked_at"`
	Status      string   `json:"status"`
	Confidence  *float64 `json:"confidence,omitempty"`
	Synced      bool     `json:"synced"`
}

func toAttendanceResponse(rec *database.AttendanceRecord) attendanceResponse {
	return attendanceResponse{
		RecordUID:   rec.RecordUID,
		StudentCode: rec.StudentCode,
		StudentName: rec.StudentName,
		Class:       rec.Class,
		Section:     rec.Section,
		Date:        rec.Date.Format("2006-01-02"),
		MarkedAt:    rec.MarkedAt.Format(time.RFC3339),
		Status:      rec.Status,
		Confidence:  rec.Confidence,
		Synced:      rec.Synced,
	}
}

// ListByDate returns all attendance records for one school day. Without a
// date parameter it reports today.
func (h *AttendanceHandler) ListByDate(w http.ResponseWriter, r *http.Request) {
	date := h.recorder.Today()
	if param := r.URL.Query().Get("date"); param != "" {
		parsed, err := time.Parse("2006-01-02", param)
		if err != nil {
			respondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		date = parsed
	}

	records, err := h.store.ListByDate(r.Context(), date)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load attendance")
		return
	}

	resp := make([]attendanceResponse, len(records))
	for i := range records {
		resp[i] = toAttendanceResponse(&records[i])
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"date":    date.Format("2006-01-02"),
		"records": resp,
		"count":   len(resp),
	})
}

// ListByStudent returns the attendance history of one student, newest first.
func (h *AttendanceHandler) ListByStudent(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	limit := constants.DefaultAttendanceLimit
	if param := r.URL.Query().Get("limit"); param != "" {
		parsed, err := strconv.Atoi(param)
		if err != nil || parsed < 1 {
			respondError(w, http.StatusBadRequest, "limit must be a positive number")
			return
		}
		limit = min(parsed, constants.MaxAttendanceLimit)
	}

	records, err := h.store.ListByStudent(r.Context(), code, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load attendance")
		return
	}

	resp := make([]attendanceResponse, len(records))
	for i := range records {
		resp[i] = toAttendanceResponse(&records[i])
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"student_code": code,
		"records":      resp,
		"count":        len(resp),
	})
}
