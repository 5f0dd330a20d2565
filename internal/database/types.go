package database

import "time"

// Student is an enrolled student with their representative face embedding.
// The embedding is the arithmetic mean of the enrollment photo descriptors
// and its length is constant across the deployment.
type Student struct {
	ID             int64
	StudentUID     string // stable external identifier
	StudentCode    string // school-assigned code, unique among active students
	Name           string
	NormalizedName string // lowercase, diacritics removed, for search
	Class          string
	Section        string
	GuardianPhone  string
	Embedding      []float32
	EmbeddingDim   int
	IsActive       bool
	EnrolledAt     time.Time
}

// AttendanceRecord is one student marked present on one calendar date.
// At most one record exists per (student, date); the database enforces it.
type AttendanceRecord struct {
	ID         int64
	RecordUID  string
	StudentID  int64
	Date       time.Time // calendar date, time part zero
	MarkedAt   time.Time
	Status     string
	Confidence *float64 // match confidence, nil for manual entries
	Synced     bool
	SyncedAt   *time.Time

	// Joined student fields, populated by report queries.
	StudentCode string
	StudentName string
	Class       string
	Section     string
}

// StatusPresent is the default status for a recognition-driven record.
const StatusPresent = "present"

// QueueEntry is a pending operation awaiting retry after a store failure.
type QueueEntry struct {
	ID         int64
	Operation  string
	Payload    []byte // JSON payload of the queued operation
	CreatedAt  time.Time
	RetryCount int
	LastError  string
}
