package handlers

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// StudentsHandler handles student roster endpoints.
type StudentsHandler struct {
	students database.StudentWriter
	index    *database.StudentIndex
}

// NewStudentsHandler creates a new students handler.
func NewStudentsHandler(students database.StudentWriter, index *database.StudentIndex) *StudentsHandler {
	return &StudentsHandler{students: students, index: index}
}

type studentResponse struct {
	StudentUID  string `json:"student_uid"`
	StudentCode string `json:"student_code"`
	Name        string `json:"name"`
	Class       string `json:"class"`
	Section     string `json:"section"`
	EnrolledAt  string `json:"enrolled_at"`
}

func toStudentResponse(s *database.Student) studentResponse {
	return studentResponse{
		StudentUID:  s.StudentUID,
		StudentCode: s.StudentCode,
		Name:        s.Name,
		Class:       s.Class,
		Section:     s.Section,
		EnrolledAt:  s.EnrolledAt.Format("2006-01-02"),
	}
}

// List returns all active students, optionally filtered by a name query.
func (h *StudentsHandler) List(w http.ResponseWriter, r *http.Request) {
	var students []database.Student
	var err error

	if query := r.URL.Query().Get("q"); query != "" {
		students, err = h.students.SearchByName(r.Context(), query)
	} else {
		students, err = h.students.ListActive(r.Context())
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load students")
		return
	}

	resp := make([]studentResponse, len(students))
	for i := range students {
		resp[i] = toStudentResponse(&students[i])
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"students": resp,
		"count":    len(resp),
	})
}

// Get returns one student by code.
func (h *StudentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	student, err := h.students.GetByCode(r.Context(), code)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load student")
		return
	}
	if student == nil {
		respondError(w, http.StatusNotFound, "student not found")
		return
	}
	respondJSON(w, http.StatusOK, toStudentResponse(student))
}

// Deactivate removes a student from the active roster. The attendance
// history is kept; only future recognition stops matching them.
func (h *StudentsHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	student, err := h.students.GetByCode(r.Context(), code)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load student")
		return
	}
	if student == nil {
		respondError(w, http.StatusNotFound, "student not found")
		return
	}

	if err := h.students.Deactivate(r.Context(), code); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to deactivate student")
		return
	}
	if h.index != nil {
		h.index.Remove(student.ID)
	}

	log.Printf("deactivated student %s", sanitizeForLog(code))
	respondJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}
