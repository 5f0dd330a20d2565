package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/database"
)

const statsCacheTTL = time.Minute

// statsCache holds cached stats with expiry
type statsCache struct {
	mu        sync.RWMutex
	data      *StatsResponse
	expiresAt time.Time
}

func (c *statsCache) get() (*StatsResponse, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.data == nil || time.Now().After(c.expiresAt) {
		return nil, false
	}
	return c.data, true
}

func (c *statsCache) set(data *StatsResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = data
	c.expiresAt = time.Now().Add(statsCacheTTL)
}

// StatsHandler handles statistics endpoints
type StatsHandler struct {
	students database.StudentReader
	records  database.AttendanceStore
	queue    database.QueueStore
	recorder *attendance.Recorder
	cache    statsCache
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(
	students database.StudentReader,
	records database.AttendanceStore,
	queue database.QueueStore,
	recorder *attendance.Recorder,
) *StatsHandler {
	return &StatsHandler{
		students: students,
		records:  records,
		queue:    queue,
		recorder: recorder,
	}
}

// StatsResponse represents the statistics response
type StatsResponse struct {
	EnrolledStudents int `json:"enrolled_students"`
	PresentToday     int `json:"present_today"`
	AbsentToday      int `json:"absent_today"`
	TotalRecords     int `json:"total_records"`
	PendingQueue     int `json:"pending_queue"`
}

// Get returns roster and attendance statistics for the dashboard.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	if cached, ok := h.cache.get(); ok {
		respondJSON(w, http.StatusOK, cached)
		return
	}

	ctx := r.Context()
	resp := &StatsResponse{}

	enrolled, err := h.students.Count(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load statistics")
		return
	}
	resp.EnrolledStudents = enrolled

	present, err := h.records.CountOnDate(ctx, h.recorder.Today())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load statistics")
		return
	}
	resp.PresentToday = present
	resp.AbsentToday = max(enrolled-present, 0)

	total, err := h.records.CountAll(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load statistics")
		return
	}
	resp.TotalRecords = total

	if h.queue != nil {
		if pending, err := h.queue.ListPending(ctx, 1000); err == nil {
			resp.PendingQueue = len(pending)
		}
	}

	h.cache.set(resp)
	respondJSON(w, http.StatusOK, resp)
}
