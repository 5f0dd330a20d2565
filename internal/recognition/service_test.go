package recognition

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
	"github.com/kozaktomas/face-attendance/internal/facerec"
	"github.com/kozaktomas/face-attendance/internal/oracle"
)

// stubDetector returns canned detections in order, one per call.
type stubDetector struct {
	detections []*oracle.Detection
	err        error
	calls      int
}

func (d *stubDetector) DetectSingleFace(_ context.Context, _ []byte) (*oracle.Detection, error) {
	if d.err != nil {
		return nil, d.err
	}
	det := d.detections[d.calls%len(d.detections)]
	d.calls++
	return det, nil
}

type stubNotifier struct {
	phones   []string
	messages []string
	err      error
}

func (n *stubNotifier) Notify(_ context.Context, phone, message string) error {
	if n.err != nil {
		return n.err
	}
	n.phones = append(n.phones, phone)
	n.messages = append(n.messages, message)
	return nil
}

// testJPEG encodes a blank 640x480 image so ImageSize can decode it.
func testJPEG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 640, 480))
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("could not encode test image: %v", err)
	}
	return buf.Bytes()
}

// centeredDetection builds a detection with a 200px face centered in a
// 640x480 frame, which passes the default quality gate.
func centeredDetection(embedding []float32) *oracle.Detection {
	return &oracle.Detection{
		Embedding: embedding,
		BBox:      []float64{220, 140, 420, 340},
		DetScore:  0.99,
		Dim:       len(embedding),
	}
}

func testPolicy() config.PolicyConfig {
	var policy config.PolicyConfig
	policy.Matching.Threshold = 0.6
	policy.Enrollment.PhotoCount = 3
	policy.Enrollment.MinFaceSize = 100
	policy.Enrollment.CenterTolerance = 0.3
	return policy
}

type fixture struct {
	detector *stubDetector
	students *mock.StudentStore
	records  *mock.AttendanceStore
	queue    *mock.QueueStore
	index    *database.StudentIndex
	notifier *stubNotifier
	service  *Service
}

func newFixture(detector *stubDetector) *fixture {
	f := &fixture{
		detector: detector,
		students: mock.NewStudentStore(),
		records:  mock.NewAttendanceStore(),
		queue:    mock.NewQueueStore(),
		index:    database.NewStudentIndex(),
		notifier: &stubNotifier{},
	}
	recorder := attendance.NewRecorder(f.records, time.UTC)
	f.service = NewService(detector, f.students, recorder, f.queue, f.index, f.notifier, testPolicy())
	return f
}

func TestEnroll(t *testing.T) {
	photo := testJPEG(t)
	photos := [][]byte{photo, photo, photo}

	t.Run("AveragesThreeEmbeddings", func(t *testing.T) {
		f := newFixture(&stubDetector{detections: []*oracle.Detection{
			centeredDetection([]float32{1, 0, 0}),
			centeredDetection([]float32{0, 1, 0}),
			centeredDetection([]float32{0, 0, 1}),
		}})

		student, checks, err := f.service.Enroll(context.Background(), EnrollRequest{
			StudentCode:   "STU-001",
			Name:          "Adéla Nováková",
			Class:         "5",
			Section:       "A",
			GuardianPhone: "+420777000111",
			Photos:        photos,
		})
		if err != nil {
			t.Fatalf("enroll failed: %v", err)
		}
		if len(checks) != 3 {
			t.Fatalf("expected 3 photo checks, got %d", len(checks))
		}
		for _, c := range checks {
			if !c.Valid {
				t.Errorf("photo %d failed quality gate: %s", c.Photo, c.Error)
			}
		}

		want := []float32{1.0 / 3, 1.0 / 3, 1.0 / 3}
		for i, v := range student.Embedding {
			if diff := float64(v - want[i]); diff > 1e-6 || diff < -1e-6 {
				t.Errorf("embedding[%d] = %f, want %f", i, v, want[i])
			}
		}
		if student.NormalizedName != "adela novakova" {
			t.Errorf("normalized name = %q", student.NormalizedName)
		}
		if student.StudentUID == "" {
			t.Error("expected a generated student uid")
		}
		if f.index.Count() != 1 {
			t.Errorf("index count = %d, want 1", f.index.Count())
		}
	})

	t.Run("RejectsWrongPhotoCount", func(t *testing.T) {
		f := newFixture(&stubDetector{detections: []*oracle.Detection{
			centeredDetection([]float32{1, 0, 0}),
		}})

		_, _, err := f.service.Enroll(context.Background(), EnrollRequest{
			StudentCode: "STU-002",
			Name:        "Test",
			Photos:      [][]byte{photo, photo},
		})
		var verr *facerec.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("RejectsDuplicateCode", func(t *testing.T) {
		f := newFixture(&stubDetector{detections: []*oracle.Detection{
			centeredDetection([]float32{1, 0, 0}),
		}})
		f.students.AddStudent(database.Student{StudentCode: "STU-003", Name: "First", IsActive: true})

		_, _, err := f.service.Enroll(context.Background(), EnrollRequest{
			StudentCode: "STU-003",
			Name:        "Second",
			Photos:      photos,
		})
		if !errors.Is(err, ErrStudentExists) {
			t.Fatalf("expected ErrStudentExists, got %v", err)
		}
	})

	t.Run("ReportsFailingPhotoNumber", func(t *testing.T) {
		f := newFixture(&stubDetector{detections: []*oracle.Detection{
			centeredDetection([]float32{1, 0, 0}),
			{ // second photo: face too small
				Embedding: []float32{1, 0, 0},
				BBox:      []float64{300, 220, 340, 260},
				Dim:       3,
			},
			centeredDetection([]float32{1, 0, 0}),
		}})

		_, checks, err := f.service.Enroll(context.Background(), EnrollRequest{
			StudentCode: "STU-004",
			Name:        "Test",
			Photos:      photos,
		})
		var verr *facerec.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected validation error, got %v", err)
		}
		if verr.Photo != 2 {
			t.Errorf("failing photo = %d, want 2", verr.Photo)
		}
		if len(checks) != 2 {
			t.Fatalf("expected 2 photo checks, got %d", len(checks))
		}
		if checks[0].Valid != true || checks[1].Valid != false {
			t.Errorf("unexpected checks: %+v", checks)
		}
	})

	t.Run("NoFaceMapsToValidationError", func(t *testing.T) {
		f := newFixture(&stubDetector{err: oracle.ErrNoFace})

		_, _, err := f.service.Enroll(context.Background(), EnrollRequest{
			StudentCode: "STU-005",
			Name:        "Test",
			Photos:      photos,
		})
		var verr *facerec.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected validation error, got %v", err)
		}
		if verr.Photo != 1 {
			t.Errorf("failing photo = %d, want 1", verr.Photo)
		}
	})

	t.Run("RejectsDuplicateFace", func(t *testing.T) {
		f := newFixture(&stubDetector{detections: []*oracle.Detection{
			centeredDetection([]float32{1, 0, 0}),
		}})
		twin := f.students.AddStudent(database.Student{
			StudentCode: "STU-006",
			Name:        "Twin",
			Embedding:   []float32{1, 0, 0},
			IsActive:    true,
		})
		f.index.Add(twin)

		_, _, err := f.service.Enroll(context.Background(), EnrollRequest{
			StudentCode: "STU-007",
			Name:        "Impostor",
			Photos:      photos,
		})
		var dup *DuplicateFaceError
		if !errors.As(err, &dup) {
			t.Fatalf("expected duplicate face error, got %v", err)
		}
		if dup.StudentCode != "STU-006" {
			t.Errorf("duplicate of %q, want STU-006", dup.StudentCode)
		}
	})
}

func TestReenroll(t *testing.T) {
	photo := testJPEG(t)
	photos := [][]byte{photo, photo, photo}

	t.Run("ReplacesEmbedding", func(t *testing.T) {
		f := newFixture(&stubDetector{detections: []*oracle.Detection{
			centeredDetection([]float32{0, 0, 1}),
		}})
		existing := f.students.AddStudent(database.Student{
			StudentCode: "STU-001",
			Name:        "Alice",
			Embedding:   []float32{1, 0, 0},
			IsActive:    true,
		})
		f.index.Add(existing)

		student, checks, err := f.service.Reenroll(context.Background(), "STU-001", photos)
		if err != nil {
			t.Fatalf("reenroll failed: %v", err)
		}
		if len(checks) != 3 {
			t.Fatalf("expected 3 photo checks, got %d", len(checks))
		}
		if student.Embedding[2] != 1 {
			t.Errorf("embedding not replaced: %v", student.Embedding)
		}

		stored, _ := f.students.GetByCode(context.Background(), "STU-001")
		if stored.Embedding[2] != 1 {
			t.Errorf("stored embedding not replaced: %v", stored.Embedding)
		}
		// The index follows the new face, not the old one.
		ids, _, err := f.index.Search([]float32{0, 0, 1}, 1)
		if err != nil || len(ids) != 1 || ids[0] != existing.ID {
			t.Errorf("index search = %v, %v", ids, err)
		}
	})

	t.Run("UnknownStudent", func(t *testing.T) {
		f := newFixture(&stubDetector{detections: []*oracle.Detection{
			centeredDetection([]float32{0, 0, 1}),
		}})

		_, _, err := f.service.Reenroll(context.Background(), "STU-404", photos)
		if !errors.Is(err, ErrStudentNotFound) {
			t.Fatalf("expected ErrStudentNotFound, got %v", err)
		}
	})

	t.Run("OwnFaceIsNotADuplicate", func(t *testing.T) {
		f := newFixture(&stubDetector{detections: []*oracle.Detection{
			centeredDetection([]float32{1, 0, 0}),
		}})
		existing := f.students.AddStudent(database.Student{
			StudentCode: "STU-001",
			Name:        "Alice",
			Embedding:   []float32{1, 0, 0},
			IsActive:    true,
		})
		f.index.Add(existing)

		if _, _, err := f.service.Reenroll(context.Background(), "STU-001", photos); err != nil {
			t.Fatalf("reenroll with the same face failed: %v", err)
		}
	})

	t.Run("SomeoneElsesFaceIsADuplicate", func(t *testing.T) {
		f := newFixture(&stubDetector{detections: []*oracle.Detection{
			centeredDetection([]float32{0, 1, 0}),
		}})
		alice := f.students.AddStudent(database.Student{
			StudentCode: "STU-001", Name: "Alice",
			Embedding: []float32{1, 0, 0}, IsActive: true,
		})
		bob := f.students.AddStudent(database.Student{
			StudentCode: "STU-002", Name: "Bob",
			Embedding: []float32{0, 1, 0}, IsActive: true,
		})
		f.index.Add(alice)
		f.index.Add(bob)

		_, _, err := f.service.Reenroll(context.Background(), "STU-001", photos)
		var dup *DuplicateFaceError
		if !errors.As(err, &dup) {
			t.Fatalf("expected duplicate face error, got %v", err)
		}
		if dup.StudentCode != "STU-002" {
			t.Errorf("duplicate of %q, want STU-002", dup.StudentCode)
		}
	})
}

func TestRecognize(t *testing.T) {
	enroll := func(f *fixture, code, name, phone string, embedding []float32) *database.Student {
		s := f.students.AddStudent(database.Student{
			StudentCode:   code,
			Name:          name,
			GuardianPhone: phone,
			Embedding:     embedding,
			IsActive:      true,
		})
		f.index.Add(s)
		return s
	}

	t.Run("MatchRecordsAttendance", func(t *testing.T) {
		f := newFixture(&stubDetector{detections: []*oracle.Detection{
			centeredDetection([]float32{0.9, 0.1, 0}),
		}})
		enroll(f, "STU-001", "Alice", "+100", []float32{1, 0, 0})
		enroll(f, "STU-002", "Bob", "+200", []float32{0, 1, 0})

		result, err := f.service.Recognize(context.Background(), testJPEG(t))
		if err != nil {
			t.Fatalf("recognize failed: %v", err)
		}
		if !result.Match.Matched || result.Match.ID != "STU-001" {
			t.Fatalf("unexpected match: %+v", result.Match)
		}
		if result.Match.Confidence < 0.85 || result.Match.Confidence > 0.87 {
			t.Errorf("confidence = %f, want about 0.8586", result.Match.Confidence)
		}
		if result.Attendance == nil || result.Attendance.Outcome != attendance.OutcomeRecorded {
			t.Fatalf("unexpected attendance result: %+v", result.Attendance)
		}
		if len(f.notifier.phones) != 1 || f.notifier.phones[0] != "+100" {
			t.Errorf("guardian notification phones = %v", f.notifier.phones)
		}
	})

	t.Run("SecondScanIsAlreadyMarked", func(t *testing.T) {
		f := newFixture(&stubDetector{detections: []*oracle.Detection{
			centeredDetection([]float32{1, 0, 0}),
		}})
		enroll(f, "STU-001", "Alice", "+100", []float32{1, 0, 0})

		for i, want := range []attendance.Outcome{attendance.OutcomeRecorded, attendance.OutcomeAlreadyMarked} {
			result, err := f.service.Recognize(context.Background(), testJPEG(t))
			if err != nil {
				t.Fatalf("scan %d failed: %v", i+1, err)
			}
			if result.Attendance.Outcome != want {
				t.Errorf("scan %d outcome = %q, want %q", i+1, result.Attendance.Outcome, want)
			}
		}
		if len(f.notifier.phones) != 1 {
			t.Errorf("expected exactly one sms, got %d", len(f.notifier.phones))
		}
	})

	t.Run("BelowThresholdReportsNoMatch", func(t *testing.T) {
		f := newFixture(&stubDetector{detections: []*oracle.Detection{
			centeredDetection([]float32{0.5, 0.5, 0.5}),
		}})
		enroll(f, "STU-001", "Alice", "", []float32{1, 0, 0})
		enroll(f, "STU-002", "Bob", "", []float32{0, 1, 0})

		result, err := f.service.Recognize(context.Background(), testJPEG(t))
		if err != nil {
			t.Fatalf("recognize failed: %v", err)
		}
		if result.Match.Matched {
			t.Fatal("expected no match above threshold")
		}
		if result.Match.ID == "" || result.Match.Confidence <= 0 {
			t.Errorf("expected best-candidate diagnostics, got %+v", result.Match)
		}
		if result.Student != nil || result.Attendance != nil {
			t.Error("no attendance must be recorded below the threshold")
		}
		if count, _ := f.records.CountAll(context.Background()); count != 0 {
			t.Errorf("attendance rows = %d, want 0", count)
		}
	})

	t.Run("EmptyRosterReturnsErrNoCandidates", func(t *testing.T) {
		f := newFixture(&stubDetector{detections: []*oracle.Detection{
			centeredDetection([]float32{1, 0, 0}),
		}})

		_, err := f.service.Recognize(context.Background(), testJPEG(t))
		if !errors.Is(err, facerec.ErrNoCandidates) {
			t.Fatalf("expected ErrNoCandidates, got %v", err)
		}
	})

	t.Run("FailedWriteGoesToOfflineQueue", func(t *testing.T) {
		f := newFixture(&stubDetector{detections: []*oracle.Detection{
			centeredDetection([]float32{1, 0, 0}),
		}})
		enroll(f, "STU-001", "Alice", "+100", []float32{1, 0, 0})
		f.records.InsertError = fmt.Errorf("connection refused")

		result, err := f.service.Recognize(context.Background(), testJPEG(t))
		if err != nil {
			t.Fatalf("recognize failed: %v", err)
		}
		if !result.Match.Matched {
			t.Fatal("the match must survive a failed attendance write")
		}
		if !result.AttendanceQueued {
			t.Fatal("expected the write to be queued")
		}
		pending, _ := f.queue.ListPending(context.Background(), 10)
		if len(pending) != 1 || pending[0].Operation != QueueOpRecordAttendance {
			t.Fatalf("unexpected queue state: %+v", pending)
		}
		if len(f.notifier.phones) != 0 {
			t.Error("no sms should be sent for a queued write")
		}
	})

	t.Run("SmsFailureDoesNotAffectOutcome", func(t *testing.T) {
		f := newFixture(&stubDetector{detections: []*oracle.Detection{
			centeredDetection([]float32{1, 0, 0}),
		}})
		enroll(f, "STU-001", "Alice", "+100", []float32{1, 0, 0})
		f.notifier.err = fmt.Errorf("provider down")

		result, err := f.service.Recognize(context.Background(), testJPEG(t))
		if err != nil {
			t.Fatalf("recognize failed: %v", err)
		}
		if result.Attendance.Outcome != attendance.OutcomeRecorded {
			t.Errorf("outcome = %q, want recorded", result.Attendance.Outcome)
		}
	})
}
