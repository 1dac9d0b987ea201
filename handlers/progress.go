// ABOUTME: Progress endpoints: gate-validated cumulative percentage updates
// ABOUTME: Rule failures return 422 field maps, valid updates are persisted upstream

package handlers

import (
	"net/http"

	"github.com/edms-tools/deliverables-admin/backend/models"
)

// RecordProgress validates a period update against its gate and persists it.
func (h *Handler) RecordProgress(w http.ResponseWriter, r *http.Request) {
	var update models.ProgressUpdate
	if ok := decodeBody(w, r, &update); !ok {
		return
	}

	result, err := h.progress.Record(r.Context(), update)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	if !result.Valid {
		writeValidation(w, result.Errors)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}
