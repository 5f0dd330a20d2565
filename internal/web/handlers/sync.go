package handlers

import (
	"log"
	"net/http"

	"github.com/kozaktomas/face-attendance/internal/district"
)

// SyncHandler triggers an export to the district office on demand.
type SyncHandler struct {
	syncer *district.Syncer
}

// NewSyncHandler creates a new sync handler. A nil syncer means the
// district export is not configured.
func NewSyncHandler(syncer *district.Syncer) *SyncHandler {
	return &SyncHandler{syncer: syncer}
}

// Trigger runs one sync pass and reports how many records were exported.
func (h *SyncHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	if h.syncer == nil {
		respondError(w, http.StatusServiceUnavailable, "district sync is not configured")
		return
	}

	report, err := h.syncer.Sync(r.Context())
	if err != nil {
		log.Printf("district sync failed: %v", err)
		respondError(w, http.StatusServiceUnavailable, "district sync failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]int{
		"exported": report.Exported,
		"failed":   report.Failed,
	})
}
