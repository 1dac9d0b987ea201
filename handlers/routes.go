// ABOUTME: Declarative route table for API endpoints
// ABOUTME: Defines all routes with their HTTP methods, handlers and minimum roles

package handlers

import (
	"net/http"

	"github.com/edms-tools/deliverables-admin/backend/middleware"
)

// Route defines an API endpoint with its HTTP method, handler and the
// minimum role needed to call it.
type Route struct {
	Method  string           // HTTP method (GET, POST, etc.)
	Path    string           // URL path (e.g., "/api/v1/health")
	Handler http.HandlerFunc // Handler function
	MinRole string           // Minimum role required
}

// Routes returns all API routes for registration under the /api/v1 prefix.
func (h *Handler) Routes() []Route {
	return []Route{
		// Health & diagnostics
		{Method: http.MethodGet, Path: "/api/v1/health", Handler: h.Health, MinRole: middleware.RoleViewer},
		{Method: http.MethodGet, Path: "/api/v1/token/status", Handler: h.TokenStatus, MinRole: middleware.RoleViewer},

		// Variations
		{Method: http.MethodGet, Path: "/api/v1/variations/{id}/deliverables", Handler: h.ListDeliverables, MinRole: middleware.RoleViewer},
		{Method: http.MethodPost, Path: "/api/v1/variations/{id}/deliverables/{guid}/edit", Handler: h.EditDeliverable, MinRole: middleware.RoleEditor},
		{Method: http.MethodPost, Path: "/api/v1/variations/{id}/deliverables/{guid}/cancel", Handler: h.CancelDeliverable, MinRole: middleware.RoleEditor},
		{Method: http.MethodPost, Path: "/api/v1/variations/{id}/approve", Handler: h.ApproveVariation, MinRole: middleware.RoleEditor},
		{Method: http.MethodPost, Path: "/api/v1/variations/{id}/reject", Handler: h.RejectVariation, MinRole: middleware.RoleEditor},

		// Numbering
		{Method: http.MethodPost, Path: "/api/v1/deliverables/number/suggest", Handler: h.SuggestNumber, MinRole: middleware.RoleEditor},

		// Progress
		{Method: http.MethodPost, Path: "/api/v1/progress", Handler: h.RecordProgress, MinRole: middleware.RoleEditor},

		// Administration
		{Method: http.MethodPost, Path: "/api/v1/permissions", Handler: h.SetPermission, MinRole: middleware.RoleAdmin},
	}
}
