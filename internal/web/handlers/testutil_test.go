package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/jpeg"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
	"github.com/kozaktomas/face-attendance/internal/oracle"
	"github.com/kozaktomas/face-attendance/internal/recognition"
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

// testEnv wires a recognition service with in-memory stores for handler tests.
type testEnv struct {
	detector *stubDetector
	students *mock.StudentStore
	records  *mock.AttendanceStore
	queue    *mock.QueueStore
	index    *database.StudentIndex
	recorder *attendance.Recorder
	service  *recognition.Service
}

func newTestEnv(detector *stubDetector) *testEnv {
	var policy config.PolicyConfig
	policy.Matching.Threshold = 0.6
	policy.Enrollment.PhotoCount = 3
	policy.Enrollment.MinFaceSize = 100
	policy.Enrollment.CenterTolerance = 0.3

	env := &testEnv{
		detector: detector,
		students: mock.NewStudentStore(),
		records:  mock.NewAttendanceStore(),
		queue:    mock.NewQueueStore(),
		index:    database.NewStudentIndex(),
	}
	env.recorder = attendance.NewRecorder(env.records, time.UTC)
	env.service = recognition.NewService(
		detector, env.students, env.recorder, env.queue, env.index, nil, policy)
	return env
}

// addStudent seeds an enrolled student into the store and the index.
func (env *testEnv) addStudent(code, name string, embedding []float32) *database.Student {
	s := env.students.AddStudent(database.Student{
		StudentCode: code,
		Name:        name,
		Embedding:   embedding,
		IsActive:    true,
	})
	env.index.Add(s)
	return s
}

// testJPEG encodes a blank 640x480 image.
func testJPEG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 640, 480))
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("could not encode test image: %v", err)
	}
	return buf.Bytes()
}

// centeredDetection builds a detection passing the default quality gate
// for a 640x480 frame.
func centeredDetection(embedding []float32) *oracle.Detection {
	return &oracle.Detection{
		Embedding: embedding,
		BBox:      []float64{220, 140, 420, 340},
		DetScore:  0.99,
		Dim:       len(embedding),
	}
}

// multipartRequest builds a multipart request with form fields and photo files.
func multipartRequest(t *testing.T, path, fileField string, photos [][]byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("could not write field %s: %v", key, err)
		}
	}
	for i, photo := range photos {
		part, err := writer.CreateFormFile(fileField, "photo.jpg")
		if err != nil {
			t.Fatalf("could not create file part %d: %v", i, err)
		}
		if _, err := io.Copy(part, bytes.NewReader(photo)); err != nil {
			t.Fatalf("could not write file part %d: %v", i, err)
		}
	}
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
