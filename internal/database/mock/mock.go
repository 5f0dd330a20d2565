// Package mock provides in-memory implementations of the database
// interfaces for testing.
package mock

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facerec"
)

// StudentStore is an in-memory implementation of database.StudentWriter.
type StudentStore struct {
	mu       sync.RWMutex
	students map[string]*database.Student
	nextID   int64

	// Error injection
	ReadError  error
	WriteError error
}

// NewStudentStore creates an empty in-memory student store.
func NewStudentStore() *StudentStore {
	return &StudentStore{students: make(map[string]*database.Student)}
}

// AddStudent seeds the store with a student, assigning an id if missing.
func (m *StudentStore) AddStudent(s database.Student) *database.Student {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == 0 {
		m.nextID++
		s.ID = m.nextID
	} else if s.ID > m.nextID {
		m.nextID = s.ID
	}
	if s.NormalizedName == "" {
		s.NormalizedName = facerec.NormalizeName(s.Name)
	}
	s.IsActive = true
	m.students[s.StudentCode] = &s
	return &s
}

func (m *StudentStore) GetByCode(ctx context.Context, code string) (*database.Student, error) {
	if m.ReadError != nil {
		return nil, m.ReadError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.students[code]
	if !ok || !s.IsActive {
		return nil, nil
	}
	copied := *s
	return &copied, nil
}

func (m *StudentStore) ListActive(ctx context.Context) ([]database.Student, error) {
	if m.ReadError != nil {
		return nil, m.ReadError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []database.Student
	for _, s := range m.students {
		if s.IsActive {
			out = append(out, *s)
		}
	}
	// Stable order, matching the postgres implementation (oldest first).
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *StudentStore) SearchByName(ctx context.Context, name string) ([]database.Student, error) {
	if m.ReadError != nil {
		return nil, m.ReadError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	query := facerec.NormalizeName(name)
	var out []database.Student
	for _, s := range m.students {
		if s.IsActive && strings.Contains(s.NormalizedName, query) {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *StudentStore) Count(ctx context.Context) (int, error) {
	if m.ReadError != nil {
		return 0, m.ReadError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, s := range m.students {
		if s.IsActive {
			count++
		}
	}
	return count, nil
}

func (m *StudentStore) Enroll(ctx context.Context, s *database.Student) (int64, error) {
	if m.WriteError != nil {
		return 0, m.WriteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	copied := *s
	copied.ID = m.nextID
	copied.IsActive = true
	if copied.EnrolledAt.IsZero() {
		copied.EnrolledAt = time.Now()
	}
	m.students[copied.StudentCode] = &copied
	s.ID = copied.ID
	return copied.ID, nil
}

func (m *StudentStore) UpdateEmbedding(ctx context.Context, code string, embedding []float32) error {
	if m.WriteError != nil {
		return m.WriteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.students[code]; ok {
		s.Embedding = embedding
		s.EmbeddingDim = len(embedding)
	}
	return nil
}

func (m *StudentStore) Deactivate(ctx context.Context, code string) error {
	if m.WriteError != nil {
		return m.WriteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.students[code]; ok {
		s.IsActive = false
	}
	return nil
}

// attendanceKey identifies one (student, date) slot.
type attendanceKey struct {
	studentID int64
	date      string
}

// AttendanceStore is an in-memory implementation of
// database.AttendanceStore. Insert enforces the (student, date) uniqueness
// the same way the postgres constraint does.
type AttendanceStore struct {
	mu      sync.Mutex
	records map[attendanceKey]*database.AttendanceRecord
	nextID  int64

	// Error injection
	FindError   error
	InsertError error
	ListError   error
	SyncError   error
}

// NewAttendanceStore creates an empty in-memory attendance store.
func NewAttendanceStore() *AttendanceStore {
	return &AttendanceStore{records: make(map[attendanceKey]*database.AttendanceRecord)}
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

func (m *AttendanceStore) Find(ctx context.Context, studentID int64, date time.Time) (*database.AttendanceRecord, error) {
	if m.FindError != nil {
		return nil, m.FindError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[attendanceKey{studentID, dayKey(date)}]
	if !ok {
		return nil, nil
	}
	copied := *rec
	return &copied, nil
}

func (m *AttendanceStore) Insert(ctx context.Context, rec *database.AttendanceRecord) (int64, error) {
	if m.InsertError != nil {
		return 0, m.InsertError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := attendanceKey{rec.StudentID, dayKey(rec.Date)}
	if _, exists := m.records[key]; exists {
		return 0, database.ErrDuplicateAttendance
	}

	m.nextID++
	copied := *rec
	copied.ID = m.nextID
	m.records[key] = &copied
	return copied.ID, nil
}

func (m *AttendanceStore) ListByDate(ctx context.Context, date time.Time) ([]database.AttendanceRecord, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	day := dayKey(date)
	var out []database.AttendanceRecord
	for key, rec := range m.records {
		if key.date == day {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *AttendanceStore) ListByStudent(ctx context.Context, code string, limit int) ([]database.AttendanceRecord, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []database.AttendanceRecord
	for _, rec := range m.records {
		if rec.StudentCode == code {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *AttendanceStore) CountOnDate(ctx context.Context, date time.Time) (int, error) {
	if m.ListError != nil {
		return 0, m.ListError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	day := dayKey(date)
	count := 0
	for key := range m.records {
		if key.date == day {
			count++
		}
	}
	return count, nil
}

func (m *AttendanceStore) CountAll(ctx context.Context) (int, error) {
	if m.ListError != nil {
		return 0, m.ListError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records), nil
}

func (m *AttendanceStore) ListUnsynced(ctx context.Context, limit int) ([]database.AttendanceRecord, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []database.AttendanceRecord
	for _, rec := range m.records {
		if !rec.Synced {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *AttendanceStore) MarkSynced(ctx context.Context, ids []int64) error {
	if m.SyncError != nil {
		return m.SyncError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	idSet := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		idSet[id] = struct{}{}
	}
	now := time.Now()
	for _, rec := range m.records {
		if _, ok := idSet[rec.ID]; ok {
			rec.Synced = true
			rec.SyncedAt = &now
		}
	}
	return nil
}

// QueueStore is an in-memory implementation of database.QueueStore.
type QueueStore struct {
	mu      sync.Mutex
	entries []*database.QueueEntry
	nextID  int64

	// Error injection
	EnqueueError error
	ListError    error
}

// NewQueueStore creates an empty in-memory queue.
func NewQueueStore() *QueueStore {
	return &QueueStore{}
}

func (m *QueueStore) Enqueue(ctx context.Context, operation string, payload []byte) (int64, error) {
	if m.EnqueueError != nil {
		return 0, m.EnqueueError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.entries = append(m.entries, &database.QueueEntry{
		ID:        m.nextID,
		Operation: operation,
		Payload:   payload,
		CreatedAt: time.Now(),
	})
	return m.nextID, nil
}

func (m *QueueStore) ListPending(ctx context.Context, limit int) ([]database.QueueEntry, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []database.QueueEntry
	for _, e := range m.entries {
		out = append(out, *e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *QueueStore) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.entries {
		if e.ID == id {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *QueueStore) BumpRetry(ctx context.Context, id int64, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.ID == id {
			e.RetryCount++
			e.LastError = lastError
		}
	}
	return nil
}
