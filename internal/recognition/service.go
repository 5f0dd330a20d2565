// Package recognition wires the embedding oracle, the matcher and the
// attendance recorder into the enrollment and recognition flows used by
// the HTTP handlers and the CLI.
package recognition

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facerec"
	"github.com/kozaktomas/face-attendance/internal/oracle"
)

// ErrStudentExists is returned by Enroll when the student code is already
// taken by an active student.
var ErrStudentExists = errors.New("student with this code already exists")

// ErrStudentNotFound is returned by Reenroll for an unknown student code.
var ErrStudentNotFound = errors.New("student not found")

// DuplicateFaceError is returned by Enroll when the aggregated embedding
// matches an already enrolled student, which would let one person answer
// for two codes.
type DuplicateFaceError struct {
	StudentCode string
	Name        string
	Confidence  float64
}

func (e *DuplicateFaceError) Error() string {
	return fmt.Sprintf("face already enrolled as %s (%s, confidence %.2f)", e.StudentCode, e.Name, e.Confidence)
}

// FaceDetector is the embedding oracle operation the service depends on.
type FaceDetector interface {
	DetectSingleFace(ctx context.Context, imageData []byte) (*oracle.Detection, error)
}

// Notifier sends a text message to a guardian phone number.
type Notifier interface {
	Notify(ctx context.Context, phone, message string) error
}

// QueuedAttendance is the offline queue payload for a failed attendance
// write.
type QueuedAttendance struct {
	StudentID   int64    `json:"student_id"`
	StudentCode string   `json:"student_code"`
	Date        string   `json:"date"` // YYYY-MM-DD
	Confidence  *float64 `json:"confidence,omitempty"`
}

// QueueOpRecordAttendance names the queued operation.
const QueueOpRecordAttendance = "record_attendance"

// Service implements the enrollment and recognition flows.
type Service struct {
	detector FaceDetector
	students database.StudentWriter
	recorder *attendance.Recorder
	queue    database.QueueStore
	index    *database.StudentIndex
	notifier Notifier
	policy   config.PolicyConfig
}

// NewService creates a recognition service. queue, index and notifier are
// optional; a nil queue disables offline buffering, a nil index disables
// the duplicate-enrollment guard, a nil notifier disables SMS.
func NewService(
	detector FaceDetector,
	students database.StudentWriter,
	recorder *attendance.Recorder,
	queue database.QueueStore,
	index *database.StudentIndex,
	notifier Notifier,
	policy config.PolicyConfig,
) *Service {
	return &Service{
		detector: detector,
		students: students,
		recorder: recorder,
		queue:    queue,
		index:    index,
		notifier: notifier,
		policy:   policy,
	}
}

// EnrollRequest carries the data for one student enrollment.
type EnrollRequest struct {
	StudentCode   string
	Name          string
	Class         string
	Section       string
	GuardianPhone string
	Photos        [][]byte
}

// PhotoCheck reports the quality gate verdict for one enrollment photo.
type PhotoCheck struct {
	Photo int    `json:"photo"`
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// Enroll validates the enrollment photos, aggregates their embeddings into
// one representative descriptor and stores the student. Returned PhotoCheck
// results cover every photo processed so far, including the failing one.
func (s *Service) Enroll(ctx context.Context, req EnrollRequest) (*database.Student, []PhotoCheck, error) {
	if req.StudentCode == "" || req.Name == "" {
		return nil, nil, &facerec.ValidationError{Reason: "student code and name are required"}
	}

	required := s.policy.Enrollment.PhotoCount
	if len(req.Photos) != required {
		return nil, nil, &facerec.ValidationError{
			Reason: fmt.Sprintf("exactly %d photos are required, got %d", required, len(req.Photos)),
		}
	}

	existing, err := s.students.GetByCode(ctx, req.StudentCode)
	if err != nil {
		return nil, nil, fmt.Errorf("checking student code: %w", err)
	}
	if existing != nil {
		return nil, nil, ErrStudentExists
	}

	embeddings, checks, err := s.embedPhotos(ctx, req.Photos)
	if err != nil {
		return nil, checks, err
	}

	embedding, err := facerec.Aggregate(embeddings, required)
	if err != nil {
		return nil, checks, err
	}

	if err := s.checkDuplicateFace(embedding, 0); err != nil {
		return nil, checks, err
	}

	student := &database.Student{
		StudentUID:     uuid.NewString(),
		StudentCode:    req.StudentCode,
		Name:           req.Name,
		NormalizedName: facerec.NormalizeName(req.Name),
		Class:          req.Class,
		Section:        req.Section,
		GuardianPhone:  req.GuardianPhone,
		Embedding:      embedding,
		EmbeddingDim:   len(embedding),
	}
	if _, err := s.students.Enroll(ctx, student); err != nil {
		return nil, checks, fmt.Errorf("storing student: %w", err)
	}

	if s.index != nil {
		s.index.Add(student)
	}
	return student, checks, nil
}

// embedPhotos runs the quality gate and embedding extraction per photo.
func (s *Service) embedPhotos(ctx context.Context, photos [][]byte) ([][]float32, []PhotoCheck, error) {
	policy := facerec.QualityPolicy{
		MinFaceSize:     s.policy.Enrollment.MinFaceSize,
		CenterTolerance: s.policy.Enrollment.CenterTolerance,
	}

	var embeddings [][]float32
	var checks []PhotoCheck
	for i, photo := range photos {
		num := i + 1

		detection, err := s.detector.DetectSingleFace(ctx, photo)
		if err != nil {
			checks = append(checks, PhotoCheck{Photo: num, Error: err.Error()})
			return nil, checks, photoError(num, err)
		}

		width, height, err := oracle.ImageSize(photo)
		if err != nil {
			checks = append(checks, PhotoCheck{Photo: num, Error: err.Error()})
			return nil, checks, &facerec.ValidationError{Photo: num, Reason: "unreadable image"}
		}

		if err := facerec.CheckQuality(detection.BBox, width, height, num, policy); err != nil {
			checks = append(checks, PhotoCheck{Photo: num, Error: err.Error()})
			return nil, checks, err
		}

		checks = append(checks, PhotoCheck{Photo: num, Valid: true})
		embeddings = append(embeddings, detection.Embedding)
	}
	return embeddings, checks, nil
}

// photoError attaches the photo number to oracle face-count failures so the
// user knows which capture to redo. Transport errors pass through.
func photoError(photo int, err error) error {
	if errors.Is(err, oracle.ErrNoFace) || errors.Is(err, oracle.ErrMultipleFaces) {
		return &facerec.ValidationError{Photo: photo, Reason: err.Error()}
	}
	return fmt.Errorf("photo %d: %w", photo, err)
}

// checkDuplicateFace rejects an embedding already enrolled under another
// student id. selfID excludes the student being re-enrolled; zero means no
// exclusion.
func (s *Service) checkDuplicateFace(embedding []float32, selfID int64) error {
	if s.index == nil || s.index.Count() == 0 {
		return nil
	}

	ids, distances, err := s.index.Search(embedding, 2)
	if err != nil || len(ids) == 0 {
		return nil // the guard is best-effort, enrollment proceeds
	}

	for i, id := range ids {
		if id == selfID {
			continue
		}
		if confidence := facerec.Confidence(distances[i]); confidence > s.policy.Matching.Threshold {
			if match := s.index.Get(id); match != nil {
				return &DuplicateFaceError{
					StudentCode: match.StudentCode,
					Name:        match.Name,
					Confidence:  confidence,
				}
			}
		}
		break // only the nearest non-self neighbour matters
	}
	return nil
}

// Reenroll replaces the stored embedding of an existing student with one
// aggregated from fresh photos. Faces change as children grow; the student
// record itself stays untouched.
func (s *Service) Reenroll(ctx context.Context, code string, photos [][]byte) (*database.Student, []PhotoCheck, error) {
	student, err := s.students.GetByCode(ctx, code)
	if err != nil {
		return nil, nil, fmt.Errorf("loading student: %w", err)
	}
	if student == nil {
		return nil, nil, ErrStudentNotFound
	}

	required := s.policy.Enrollment.PhotoCount
	if len(photos) != required {
		return nil, nil, &facerec.ValidationError{
			Reason: fmt.Sprintf("exactly %d photos are required, got %d", required, len(photos)),
		}
	}

	embeddings, checks, err := s.embedPhotos(ctx, photos)
	if err != nil {
		return nil, checks, err
	}

	embedding, err := facerec.Aggregate(embeddings, required)
	if err != nil {
		return nil, checks, err
	}

	if err := s.checkDuplicateFace(embedding, student.ID); err != nil {
		return nil, checks, err
	}

	if err := s.students.UpdateEmbedding(ctx, code, embedding); err != nil {
		return nil, checks, fmt.Errorf("updating embedding: %w", err)
	}

	student.Embedding = embedding
	student.EmbeddingDim = len(embedding)
	if s.index != nil {
		s.index.Remove(student.ID)
		s.index.Add(student)
	}
	return student, checks, nil
}

// Result is the outcome of one recognition attempt. Match is always set on
// success paths, even below the threshold; Student and the attendance
// fields are populated only for an above-threshold match.
type Result struct {
	Match      *facerec.MatchResult
	Student    *database.Student
	Attendance *attendance.Result
	// AttendanceQueued is true when the attendance write failed and the
	// operation was parked on the offline queue instead.
	AttendanceQueued bool
	// AttendanceError carries the write failure when it could not be
	// queued either. The match itself is still valid.
	AttendanceError error
}

// Recognize extracts the embedding from a live capture, matches it against
// all enrolled students and records attendance for a confident match. A
// failed attendance write never invalidates the match: the write is queued
// for retry and the error is reported alongside the match result.
func (s *Service) Recognize(ctx context.Context, imageData []byte) (*Result, error) {
	detection, err := s.detector.DetectSingleFace(ctx, imageData)
	if err != nil {
		return nil, err
	}

	students, err := s.students.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading enrolled students: %w", err)
	}

	candidates := make([]facerec.Candidate, len(students))
	byCode := make(map[string]*database.Student, len(students))
	for i := range students {
		candidates[i] = facerec.Candidate{
			ID:        students[i].StudentCode,
			Embedding: students[i].Embedding,
		}
		byCode[students[i].StudentCode] = &students[i]
	}

	match, err := facerec.BestMatch(detection.Embedding, candidates, s.policy.Matching.Threshold)
	if err != nil {
		return nil, err
	}

	result := &Result{Match: match}
	if !match.Matched {
		return result, nil
	}

	student := byCode[match.ID]
	result.Student = student

	confidence := match.Confidence
	att, err := s.recorder.Record(ctx, student.ID, time.Time{}, &confidence)
	if err != nil {
		result.AttendanceQueued = s.enqueueAttendance(ctx, student, confidence)
		if !result.AttendanceQueued {
			result.AttendanceError = err
		}
		return result, nil
	}
	result.Attendance = att

	if att.Outcome == attendance.OutcomeRecorded {
		s.notifyGuardian(ctx, student)
	}
	return result, nil
}

// enqueueAttendance parks a failed attendance write on the offline queue.
// Returns false when queueing is disabled or fails too.
func (s *Service) enqueueAttendance(ctx context.Context, student *database.Student, confidence float64) bool {
	if s.queue == nil {
		return false
	}

	payload, err := json.Marshal(QueuedAttendance{
		StudentID:   student.ID,
		StudentCode: student.StudentCode,
		Date:        s.recorder.Today().Format("2006-01-02"),
		Confidence:  &confidence,
	})
	if err != nil {
		return false
	}

	if _, err := s.queue.Enqueue(ctx, QueueOpRecordAttendance, payload); err != nil {
		log.Printf("failed to queue attendance for %s: %v", student.StudentCode, err)
		return false
	}
	return true
}

func (s *Service) notifyGuardian(ctx context.Context, student *database.Student) {
	if s.notifier == nil || student.GuardianPhone == "" {
		return
	}

	msg := fmt.Sprintf("%s was marked present at school today at %s.",
		student.Name, time.Now().Format("15:04"))
	if err := s.notifier.Notify(ctx, student.GuardianPhone, msg); err != nil {
		// Notification failures never affect the attendance outcome.
		log.Printf("sms notification for %s failed: %v", student.StudentCode, err)
	}
}
