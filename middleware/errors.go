// ABOUTME: JSON error response helper for middleware
// ABOUTME: Renders rejections in the API's models.ErrorResponse shape

package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/edms-tools/deliverables-admin/backend/models"
)

// writeJSONError writes an error response as JSON with the given status
// code, using the same body shape as handlers.writeError.
func writeJSONError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(models.ErrorResponse{
		Error: message,
		Code:  code,
	})
}
