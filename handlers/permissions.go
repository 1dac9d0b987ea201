// ABOUTME: Permission administration endpoint
// ABOUTME: Forwards permission-level changes to the backend, admin role only

package handlers

import (
	"net/http"

	"github.com/google/uuid"
)

var validPermissionLevels = map[string]bool{
	"viewer": true,
	"editor": true,
	"admin":  true,
}

// SetPermission updates a user's permission level on the backend.
func (h *Handler) SetPermission(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserGuid uuid.UUID `json:"user_guid"`
		Level    string    `json:"level"`
	}
	if ok := decodeBody(w, r, &req); !ok {
		return
	}

	if req.UserGuid == uuid.Nil {
		writeError(w, "user_guid is required", http.StatusBadRequest)
		return
	}
	if !validPermissionLevels[req.Level] {
		writeError(w, "level must be viewer, editor or admin", http.StatusBadRequest)
		return
	}

	if err := h.odata.SetPermissionLevel(r.Context(), req.UserGuid, req.Level); err != nil {
		writeUpstreamError(w, err)
		return
	}

	// Cached listings may now show rows the user can no longer act on.
	h.cache.Flush()

	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}
