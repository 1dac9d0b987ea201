// ABOUTME: Explicit document-number suggestion endpoint
// ABOUTME: Returns a sequence-masked number or reports why none can be derived

package handlers

import (
	"net/http"

	"github.com/edms-tools/deliverables-admin/backend/models"
)

// SuggestNumber derives a document number for the posted row on explicit
// user request. Rows without enough classification get a 409 with the
// predicate requirements instead of the silent skip used during grid edits.
func (h *Handler) SuggestNumber(w http.ResponseWriter, r *http.Request) {
	var row models.VariationDeliverable
	if ok := decodeBody(w, r, &row); !ok {
		return
	}

	if !h.suggester.CanSuggest(&row) {
		writeError(w, "a deliverable type, an area number (for Deliverable rows) and a discipline or document type are needed before a number can be suggested", http.StatusConflict)
		return
	}

	number, err := h.suggester.Suggest(r.Context(), &row)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"internal_document_number": number})
}
