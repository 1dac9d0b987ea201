// ABOUTME: HTTP handlers for the deliverables admin API
// ABOUTME: Wires the variation engine, numbering, progress and token services to routes

package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/edms-tools/deliverables-admin/backend/cache"
	"github.com/edms-tools/deliverables-admin/backend/config"
	"github.com/edms-tools/deliverables-admin/backend/models"
	"github.com/edms-tools/deliverables-admin/backend/services"
)

type Handler struct {
	cfg       *config.Config
	cache     *cache.Cache
	tokens    *services.TokenManager
	odata     *services.ODataClient
	engine    *services.VariationEngine
	suggester *services.NumberSuggester
	progress  *services.ProgressService
	validator *services.Validator
}

func NewHandler(cfg *config.Config, cache *cache.Cache, tokens *services.TokenManager, odata *services.ODataClient) *Handler {
	validator := services.NewValidator()
	return &Handler{
		cfg:       cfg,
		cache:     cache,
		tokens:    tokens,
		odata:     odata,
		engine:    services.NewVariationEngine(validator),
		suggester: services.NewNumberSuggester(odata),
		progress:  services.NewProgressService(odata),
		validator: validator,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := h.tokens.Status()
	resp := map[string]interface{}{
		"status":     "ok",
		"odata_api":  "configured",
		"token_held": status.HasToken,
	}
	writeJSON(w, http.StatusOK, resp)
}

// TokenStatus exposes token-manager diagnostics. The raw token value is
// never included in the response.
func (h *Handler) TokenStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.tokens.Status())
}

func writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// decodeBody parses a JSON request body, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, models.ErrorResponse{Error: message, Code: code})
}

// writeValidation renders field-level failures with 422 so the UI can show
// inline messages.
func writeValidation(w http.ResponseWriter, fields map[string][]string) {
	writeJSON(w, http.StatusUnprocessableEntity, struct {
		Error  string              `json:"error"`
		Fields map[string][]string `json:"fields"`
		Code   int                 `json:"code"`
	}{
		Error:  "validation failed",
		Fields: fields,
		Code:   http.StatusUnprocessableEntity,
	})
}

// writeUpstreamError maps persistence-adapter failures onto API status codes.
func writeUpstreamError(w http.ResponseWriter, err error) {
	var ve *services.ValidationError
	switch {
	case errors.Is(err, services.ErrUnauthorized):
		writeError(w, "backend authentication failed, please sign in again", http.StatusUnauthorized)
	case errors.As(err, &ve):
		if len(ve.Fields) > 0 {
			writeValidation(w, ve.Fields)
		} else {
			writeError(w, ve.Error(), http.StatusUnprocessableEntity)
		}
	default:
		slog.Error("Upstream request failed", "error", err)
		writeError(w, "backend request failed", http.StatusBadGateway)
	}
}
