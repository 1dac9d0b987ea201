// ABOUTME: Variation endpoints: deliverable listing, field edits, cancellation, approval
// ABOUTME: Fetches row context, runs the engine decision, then persists the outcome

package handlers

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/edms-tools/deliverables-admin/backend/models"
	"github.com/edms-tools/deliverables-admin/backend/services"
)

// editRequest is one proposed field change. Exactly one value slot is read,
// determined by Field.
type editRequest struct {
	Field string     `json:"field"`
	Text  string     `json:"text,omitempty"`
	Guid  *uuid.UUID `json:"guid,omitempty"`
	Label string     `json:"label,omitempty"`
	Hours float64    `json:"hours,omitempty"`
}

// ListDeliverables returns all deliverable rows scoped to a variation.
func (h *Handler) ListDeliverables(w http.ResponseWriter, r *http.Request) {
	variationGuid, ok := parseGuidParam(w, r, "id")
	if !ok {
		return
	}

	cacheKey := "deliverables:" + variationGuid.String()
	if cached, found := h.cache.Get(cacheKey); found {
		slog.Debug("Deliverable list cache hit", "variation", variationGuid)
		writeJSON(w, http.StatusOK, cached)
		return
	}

	rows, err := h.odata.ListVariationDeliverables(r.Context(), variationGuid)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}

	resp := struct {
		Deliverables []models.VariationDeliverable `json:"deliverables"`
	}{Deliverables: rows}
	h.cache.Set(cacheKey, resp)
	writeJSON(w, http.StatusOK, resp)
}

// EditDeliverable applies one field change to a deliverable row. The engine
// decides whether the change lands in place or as a copy-on-write record.
func (h *Handler) EditDeliverable(w http.ResponseWriter, r *http.Request) {
	variationGuid, ok := parseGuidParam(w, r, "id")
	if !ok {
		return
	}
	rowGuid, ok := parseGuidParam(w, r, "guid")
	if !ok {
		return
	}

	var req editRequest
	if ok := decodeBody(w, r, &req); !ok {
		return
	}

	variation, row, ok := h.fetchEditContext(w, r, variationGuid, rowGuid)
	if !ok {
		return
	}

	change := services.FieldChange{
		Field: req.Field,
		Text:  req.Text,
		Guid:  req.Guid,
		Label: req.Label,
		Hours: req.Hours,
	}

	outcome, err := h.engine.DecideEdit(variation, row, change)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !outcome.Allowed {
		if len(outcome.FieldErrors) > 0 {
			writeValidation(w, outcome.FieldErrors)
			return
		}
		writeError(w, outcome.Reason, http.StatusConflict)
		return
	}

	if outcome.RegenerateNumber {
		number, err := h.suggester.Suggest(r.Context(), outcome.Record)
		if err != nil {
			// Numbering is a convenience; the edit still lands.
			slog.Warn("Document number suggestion failed", "error", err)
		} else if number != "" {
			outcome.Record.InternalDocumentNumber = number
		}
	}

	if ok := h.persistOutcome(w, r, outcome.Action, outcome.Record); !ok {
		return
	}

	h.cache.Delete("deliverables:" + variationGuid.String())
	writeJSON(w, http.StatusOK, outcome)
}

// CancelDeliverable runs the cancellation guards and persists the result.
func (h *Handler) CancelDeliverable(w http.ResponseWriter, r *http.Request) {
	variationGuid, ok := parseGuidParam(w, r, "id")
	if !ok {
		return
	}
	rowGuid, ok := parseGuidParam(w, r, "guid")
	if !ok {
		return
	}

	variation, row, ok := h.fetchEditContext(w, r, variationGuid, rowGuid)
	if !ok {
		return
	}

	outcome, err := h.engine.DecideCancel(variation, row)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !outcome.Allowed {
		writeError(w, outcome.Reason, http.StatusConflict)
		return
	}

	if outcome.Action == models.ActionUpdate {
		// The backend owns the in-place cancellation transition.
		if err := h.odata.CancelDeliverable(r.Context(), outcome.Record.Guid); err != nil {
			writeUpstreamError(w, err)
			return
		}
	} else {
		if ok := h.persistOutcome(w, r, outcome.Action, outcome.Record); !ok {
			return
		}
	}

	h.cache.Delete("deliverables:" + variationGuid.String())
	writeJSON(w, http.StatusOK, outcome)
}

// ApproveVariation marks a variation client-approved, freezing its rows.
func (h *Handler) ApproveVariation(w http.ResponseWriter, r *http.Request) {
	variationGuid, ok := parseGuidParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.odata.ApproveVariation(r.Context(), variationGuid); err != nil {
		writeUpstreamError(w, err)
		return
	}

	h.cache.Delete("deliverables:" + variationGuid.String())
	writeJSON(w, http.StatusOK, map[string]string{"status": "approved"})
}

func (h *Handler) RejectVariation(w http.ResponseWriter, r *http.Request) {
	variationGuid, ok := parseGuidParam(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		Comments string `json:"comments"`
	}
	if ok := decodeBody(w, r, &req); !ok {
		return
	}

	if err := h.odata.RejectVariation(r.Context(), variationGuid, req.Comments); err != nil {
		writeUpstreamError(w, err)
		return
	}

	h.cache.Delete("deliverables:" + variationGuid.String())
	writeJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
}

// fetchEditContext loads the open variation and the target row, writing the
// error response itself on failure.
func (h *Handler) fetchEditContext(w http.ResponseWriter, r *http.Request, variationGuid, rowGuid uuid.UUID) (*models.Variation, *models.VariationDeliverable, bool) {
	variation, err := h.odata.GetVariation(r.Context(), variationGuid)
	if err != nil {
		writeUpstreamError(w, err)
		return nil, nil, false
	}

	row, err := h.odata.GetVariationDeliverable(r.Context(), rowGuid)
	if err != nil {
		writeUpstreamError(w, err)
		return nil, nil, false
	}

	return variation, row, true
}

// persistOutcome saves an engine-approved record, creating or updating per
// the decided action.
func (h *Handler) persistOutcome(w http.ResponseWriter, r *http.Request, action models.EditAction, rec *models.VariationDeliverable) bool {
	var err error
	switch action {
	case models.ActionCopy:
		_, err = h.odata.CreateVariationDeliverable(r.Context(), rec)
	case models.ActionUpdate:
		err = h.odata.UpdateVariationDeliverable(r.Context(), rec)
	default:
		err = fmt.Errorf("unknown persist action %q", action)
	}
	if err != nil {
		writeUpstreamError(w, err)
		return false
	}
	return true
}

// parseGuidParam reads a UUID path parameter, writing a 400 on failure.
func parseGuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	raw := chi.URLParam(r, name)
	guid, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, fmt.Sprintf("invalid %s: %q is not a valid guid", name, raw), http.StatusBadRequest)
		return uuid.Nil, false
	}
	return guid, true
}
