// ABOUTME: Result and response shapes returned by the variation engine and API
// ABOUTME: Rejections travel as values (flags, field errors, reasons), not Go errors

package models

// ValidationResult carries field-level validation failures as a
// field -> messages mapping. A nil/empty Errors map means valid.
type ValidationResult struct {
	Valid  bool                `json:"valid"`
	Errors map[string][]string `json:"errors,omitempty"`
}

// AddError records a failure message against a field and flips Valid.
func (r *ValidationResult) AddError(field, message string) {
	if r.Errors == nil {
		r.Errors = make(map[string][]string)
	}
	r.Errors[field] = append(r.Errors[field], message)
	r.Valid = false
}

// EditAction says how the engine wants a permitted edit persisted.
type EditAction string

const (
	// ActionUpdate updates the existing variation-deliverable row in place.
	ActionUpdate EditAction = "update"
	// ActionCopy persists a new variation-scoped row (copy-on-write); the
	// source row is left untouched.
	ActionCopy EditAction = "copy"
)

// EditOutcome is the engine's decision for a proposed field edit.
type EditOutcome struct {
	Allowed bool `json:"allowed"`
	// Reason is set on business-rule rejections (status-gated fields,
	// approved variations). Distinct from field validation.
	Reason string `json:"reason,omitempty"`
	// FieldErrors is set on validation failures.
	FieldErrors map[string][]string   `json:"field_errors,omitempty"`
	Action      EditAction            `json:"action,omitempty"`
	Record      *VariationDeliverable `json:"record,omitempty"`
	// Notice is a user-facing message (e.g. reporting a cross-variation
	// hour-delta copy).
	Notice string `json:"notice,omitempty"`
	// RegenerateNumber asks the caller to request a fresh document number
	// suggestion for the record (Add-status classification edits).
	RegenerateNumber bool `json:"regenerate_number,omitempty"`
}

// CancelOutcome is the engine's decision for a cancellation request.
type CancelOutcome struct {
	Allowed bool                  `json:"allowed"`
	Reason  string                `json:"reason,omitempty"`
	Action  EditAction            `json:"action,omitempty"`
	Record  *VariationDeliverable `json:"record,omitempty"`
}

// TokenStatus reports token-manager diagnostics for the status endpoint.
// The raw token value is never included.
type TokenStatus struct {
	HasToken     bool   `json:"has_token"`
	ExpiresAt    string `json:"expires_at,omitempty"`
	ExpiringSoon bool   `json:"expiring_soon"`
	LastError    string `json:"last_error,omitempty"`
}

// ErrorResponse is the standard API error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Code    int    `json:"code"`
}
