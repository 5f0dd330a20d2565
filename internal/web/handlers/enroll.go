package handlers

import (
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/facerec"
	"github.com/kozaktomas/face-attendance/internal/recognition"
)

// EnrollHandler handles student enrollment endpoints.
type EnrollHandler struct {
	service *recognition.Service
}

// NewEnrollHandler creates a new enrollment handler.
func NewEnrollHandler(service *recognition.Service) *EnrollHandler {
	return &EnrollHandler{service: service}
}

// readUploadedPhotos reads the multipart photo files into memory.
func readUploadedPhotos(files []*multipart.FileHeader) ([][]byte, error) {
	photos := make([][]byte, 0, len(files))
	for _, fileHeader := range files {
		file, err := fileHeader.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open file: %s", fileHeader.Filename)
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read file: %s", fileHeader.Filename)
		}
		photos = append(photos, data)
	}
	return photos, nil
}

type enrollResponse struct {
	StudentUID  string                   `json:"student_uid"`
	StudentCode string                   `json:"student_code"`
	Name        string                   `json:"name"`
	Photos      []recognition.PhotoCheck `json:"photos"`
}

// Enroll handles a multipart enrollment request with student fields and
// the enrollment photos.
func (h *EnrollHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	req := recognition.EnrollRequest{
		StudentCode:   r.FormValue("student_code"),
		Name:          r.FormValue("name"),
		Class:         r.FormValue("class"),
		Section:       r.FormValue("section"),
		GuardianPhone: r.FormValue("guardian_phone"),
	}

	files := r.MultipartForm.File["photos"]
	if len(files) == 0 {
		respondError(w, http.StatusBadRequest, "no photos provided")
		return
	}

	photos, err := readUploadedPhotos(files)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Photos = photos

	student, checks, err := h.service.Enroll(r.Context(), req)
	if err != nil {
		var verr *facerec.ValidationError
		if errors.As(err, &verr) && len(checks) > 0 {
			// Include the per-photo verdicts so the operator knows
			// which capture to redo.
			respondJSON(w, http.StatusBadRequest, map[string]any{
				"error":  verr.Error(),
				"photos": checks,
			})
			return
		}
		respondServiceError(w, err)
		return
	}

	log.Printf("enrolled student %s", sanitizeForLog(student.StudentCode))
	respondJSON(w, http.StatusCreated, enrollResponse{
		StudentUID:  student.StudentUID,
		StudentCode: student.StudentCode,
		Name:        student.Name,
		Photos:      checks,
	})
}

// Reenroll replaces a student's stored embedding with one aggregated from
// fresh photos.
func (h *EnrollHandler) Reenroll(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	code := chi.URLParam(r, "code")

	files := r.MultipartForm.File["photos"]
	if len(files) == 0 {
		respondError(w, http.StatusBadRequest, "no photos provided")
		return
	}

	photos, err := readUploadedPhotos(files)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	student, checks, err := h.service.Reenroll(r.Context(), code, photos)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	log.Printf("re-enrolled student %s", sanitizeForLog(code))
	respondJSON(w, http.StatusOK, enrollResponse{
		StudentUID:  student.StudentUID,
		StudentCode: student.StudentCode,
		Name:        student.Name,
		Photos:      checks,
	})
}
