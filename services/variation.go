// ABOUTME: Deliverable variation state machine: status-gated editability, copy-on-write,
// ABOUTME: cross-variation hour deltas and cancellation guards, decided as pure values

package services

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/edms-tools/deliverables-admin/backend/models"
)

// Canonical field keys used by the editability matrix and the API.
const (
	FieldArea            = "area"
	FieldDiscipline      = "discipline"
	FieldDocumentType    = "document_type"
	FieldDeliverableType = "deliverable_type"
	FieldTitle           = "title"
	FieldVariationHours  = "variation_hours"
)

// classificationFields trigger document-number regeneration when edited on
// an Add-status row.
var classificationFields = map[string]bool{
	FieldArea:            true,
	FieldDiscipline:      true,
	FieldDocumentType:    true,
	FieldDeliverableType: true,
}

// FieldChange is a proposed edit to one field of a deliverable row. Exactly
// one value slot is meaningful, determined by Field.
type FieldChange struct {
	Field string

	// Text carries title and area-number edits.
	Text string
	// Guid and Label carry discipline/document-type/deliverable-type edits.
	Guid  *uuid.UUID
	Label string
	// Hours carries variation-hour edits.
	Hours float64
}

// VariationEngine decides whether edits and cancellations are permitted and
// what record must be persisted as a result. All rejections travel as values
// on the outcome, never as errors; an error return would mean the caller
// passed inconsistent context.
type VariationEngine struct {
	validator *Validator
}

func NewVariationEngine(validator *Validator) *VariationEngine {
	return &VariationEngine{validator: validator}
}

// EditableFields returns the fields a row in the given status accepts edits
// to. Terminal and view-only statuses return nil.
func (e *VariationEngine) EditableFields(status models.UIStatus) []string {
	switch status {
	case models.StatusOriginal, models.StatusEdit:
		return []string{FieldVariationHours}
	case models.StatusAdd:
		return []string{FieldArea, FieldDiscipline, FieldDocumentType, FieldDeliverableType, FieldTitle, FieldVariationHours}
	default:
		return nil
	}
}

// FieldEditable reports whether one field accepts edits in the given status.
func (e *VariationEngine) FieldEditable(status models.UIStatus, field string) bool {
	for _, f := range e.EditableFields(status) {
		if f == field {
			return true
		}
	}
	return false
}

// DecideEdit evaluates a proposed field change against the open variation.
// The returned outcome carries the record to persist and how to persist it
// (in-place update vs. copy-on-write).
func (e *VariationEngine) DecideEdit(open *models.Variation, row *models.VariationDeliverable, change FieldChange) (models.EditOutcome, error) {
	if open == nil || row == nil {
		return models.EditOutcome{}, fmt.Errorf("variation engine: open variation and row are required")
	}

	if open.Approved() {
		return models.EditOutcome{
			Reason: fmt.Sprintf("variation %q has been approved and is read-only", open.Name),
		}, nil
	}

	if reason := e.statusRejection(row); reason != "" {
		return models.EditOutcome{Reason: reason}, nil
	}

	if !e.FieldEditable(row.UIStatus, change.Field) {
		return models.EditOutcome{
			Reason: fmt.Sprintf("field %q is not editable while the deliverable is in %s status", change.Field, row.UIStatus),
		}, nil
	}

	switch row.UIStatus {
	case models.StatusAdd:
		return e.decideAddEdit(row, change)
	default: // Original or Edit, hours only
		return e.decideHourEdit(open, row, change)
	}
}

// statusRejection returns a business-rule reason for statuses that accept no
// edits at all, or "" when edits may proceed to the field gate.
func (e *VariationEngine) statusRejection(row *models.VariationDeliverable) string {
	switch row.UIStatus {
	case models.StatusApproved:
		return fmt.Sprintf("deliverable belongs to approved variation %q and cannot be changed", row.VariationName)
	case models.StatusCancel:
		return "cancelled deliverables cannot be edited"
	case models.StatusView:
		return "this deliverable is shown read-only"
	}
	if !row.UIStatus.Known() {
		return fmt.Sprintf("unrecognized deliverable status %q", row.UIStatus)
	}
	return ""
}

// decideAddEdit applies an edit to an Add-status row in place. Classification
// changes flag the record for document-number regeneration.
func (e *VariationEngine) decideAddEdit(row *models.VariationDeliverable, change FieldChange) (models.EditOutcome, error) {
	updated := *row

	switch change.Field {
	case FieldTitle:
		updated.Title = change.Text
	case FieldArea:
		updated.AreaGuid = change.Guid
		updated.AreaNumber = change.Text
	case FieldDiscipline:
		updated.DisciplineGuid = change.Guid
	case FieldDocumentType:
		updated.DocumentTypeGuid = change.Guid
	case FieldDeliverableType:
		if change.Guid != nil {
			updated.DeliverableTypeGuid = *change.Guid
		}
		updated.DeliverableTypeName = change.Label
	case FieldVariationHours:
		updated.VariationHours = change.Hours
	}

	if change.Field == FieldTitle || classificationFields[change.Field] {
		if result := e.validateField(&updated, change.Field); !result.Valid {
			return models.EditOutcome{FieldErrors: result.Errors}, nil
		}
	}

	return models.EditOutcome{
		Allowed:          true,
		Action:           models.ActionUpdate,
		Record:           &updated,
		RegenerateNumber: classificationFields[change.Field],
	}, nil
}

// decideHourEdit handles hour changes to Original and Edit rows. Rows owned
// by a different variation never have their absolute hours overwritten: the
// change is persisted as a delta record scoped to the open variation.
func (e *VariationEngine) decideHourEdit(open *models.Variation, row *models.VariationDeliverable, change FieldChange) (models.EditOutcome, error) {
	foreign := row.VariationName != "" && row.VariationName != open.Name

	if foreign {
		delta := change.Hours - row.VariationHours
		copy := e.copyForVariation(open, row)
		copy.UIStatus = models.StatusEdit
		copy.VariationHours = delta
		return models.EditOutcome{
			Allowed: true,
			Action:  models.ActionCopy,
			Record:  copy,
			Notice: fmt.Sprintf("deliverable %q belongs to variation %q; a copy was created in %q carrying the hour change of %+g",
				row.Title, row.VariationName, open.Name, delta),
		}, nil
	}

	if row.UIStatus == models.StatusOriginal {
		// First touch of an original record inside this variation: the
		// original stays untouched and the edit lands on a new copy.
		copy := e.copyForVariation(open, row)
		copy.UIStatus = models.StatusEdit
		copy.VariationHours = change.Hours
		return models.EditOutcome{
			Allowed: true,
			Action:  models.ActionCopy,
			Record:  copy,
		}, nil
	}

	updated := *row
	updated.VariationHours = change.Hours
	return models.EditOutcome{
		Allowed: true,
		Action:  models.ActionUpdate,
		Record:  &updated,
	}, nil
}

// DecideCancel evaluates a cancellation request. Cancelling an Original row
// performs the copy-on-write first and marks the copy cancelled.
func (e *VariationEngine) DecideCancel(open *models.Variation, row *models.VariationDeliverable) (models.CancelOutcome, error) {
	if open == nil || row == nil {
		return models.CancelOutcome{}, fmt.Errorf("variation engine: open variation and row are required")
	}

	switch {
	case row.Virtual:
		return models.CancelOutcome{Reason: "this row has not been saved yet and cannot be cancelled"}, nil
	case row.UIStatus == models.StatusCancel:
		return models.CancelOutcome{Reason: "deliverable is already cancelled"}, nil
	case open.Approved():
		return models.CancelOutcome{Reason: fmt.Sprintf("variation %q has been approved and is read-only", open.Name)}, nil
	case row.UIStatus == models.StatusApproved:
		return models.CancelOutcome{Reason: fmt.Sprintf("deliverable belongs to approved variation %q and cannot be cancelled", row.VariationName)}, nil
	case row.VariationName != "" && row.VariationName != open.Name:
		return models.CancelOutcome{
			Reason: fmt.Sprintf("deliverables from other variations cannot be cancelled here; adjust the hours on %q instead", open.Name),
		}, nil
	}

	if row.UIStatus == models.StatusOriginal {
		copy := e.copyForVariation(open, row)
		copy.UIStatus = models.StatusCancel
		return models.CancelOutcome{
			Allowed: true,
			Action:  models.ActionCopy,
			Record:  copy,
		}, nil
	}

	updated := *row
	updated.UIStatus = models.StatusCancel
	return models.CancelOutcome{
		Allowed: true,
		Action:  models.ActionUpdate,
		Record:  &updated,
	}, nil
}

// copyForVariation materializes a new variation-scoped record derived from
// row, referencing the source via OriginalDeliverableGuid.
func (e *VariationEngine) copyForVariation(open *models.Variation, row *models.VariationDeliverable) *models.VariationDeliverable {
	copy := *row
	copy.Guid = uuid.New()
	copy.VariationGuid = open.Guid
	copy.VariationName = open.Name
	if row.OriginalDeliverableGuid != nil {
		copy.OriginalDeliverableGuid = row.OriginalDeliverableGuid
	} else {
		source := row.Guid
		copy.OriginalDeliverableGuid = &source
	}
	copy.Virtual = false
	return &copy
}

// validateField runs only the rule(s) for one touched field so unrelated
// gaps in a half-built Add row do not block the edit.
func (e *VariationEngine) validateField(rec *models.VariationDeliverable, field string) models.ValidationResult {
	full := e.validator.ValidateDeliverable(rec)
	result := models.ValidationResult{Valid: true}
	for _, message := range full.Errors[field] {
		result.AddError(field, message)
	}
	return result
}
