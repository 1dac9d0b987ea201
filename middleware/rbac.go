// ABOUTME: Role-based access control middleware for API endpoints
// ABOUTME: Gates endpoints by required role extracted from token role claims

package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
)

// Role names as they appear in the Azure AD app role assignments.
const (
	RoleViewer = "viewer"
	RoleEditor = "editor"
	RoleAdmin  = "admin"
)

// roleHierarchy defines the privilege level for each role.
// Higher value means more privilege. Unknown caller roles resolve to 0,
// which denies access to any protected endpoint (fail-closed).
var roleHierarchy = map[string]int{
	RoleViewer: 1,
	RoleEditor: 2,
	RoleAdmin:  3,
}

// strongestRole picks the highest-privilege known role from a claim list.
func strongestRole(roles []string) string {
	best := ""
	bestLevel := 0
	for _, role := range roles {
		if level := roleHierarchy[role]; level > bestLevel {
			best = role
			bestLevel = level
		}
	}
	return best
}

// RequireRole returns middleware that enforces a minimum role.
// Panics if requiredRole is not in the role hierarchy (catches config errors at startup).
// Anonymous requests (no UserClaims in context) are treated as viewer.
// Returns 403 Forbidden if the caller's role is insufficient.
func RequireRole(requiredRole string) func(http.Handler) http.Handler {
	requiredLevel, ok := roleHierarchy[requiredRole]
	if !ok {
		panic(fmt.Sprintf("RequireRole: unknown role %q; valid roles: %v", requiredRole, []string{RoleViewer, RoleEditor, RoleAdmin}))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Determine caller's role
			callerRole := RoleViewer // default for anonymous
			claims := GetUserClaims(r)
			if claims != nil && claims.Role != "" {
				callerRole = claims.Role
			}

			callerLevel := roleHierarchy[callerRole]
			if callerLevel < requiredLevel {
				username := ""
				if claims != nil {
					username = claims.Username
				}
				slog.Warn("RBAC authorization denied",
					"path", r.URL.Path,
					"method", r.Method,
					"required_role", requiredRole,
					"user_role", callerRole,
					"username", username,
				)
				writeJSONError(w, "Insufficient permissions", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
