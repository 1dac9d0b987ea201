// ABOUTME: Field-level validation for deliverable rows before persistence
// ABOUTME: Mirrors the backend's rules so users get inline feedback without a round trip

package services

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/edms-tools/deliverables-admin/backend/models"
)

const maxTitleLength = 255

// Validator validates deliverable fields against the classification rules
// the backend enforces. It is stateless and safe for concurrent use.
type Validator struct {
	areaNumberRegex *regexp.Regexp
}

func NewValidator() *Validator {
	return &Validator{
		// Area numbers are exactly two digits.
		areaNumberRegex: regexp.MustCompile(`^[0-9]{2}$`),
	}
}

// ValidateDeliverable checks a full row. The rules depend on the deliverable
// type: rows classified as "Deliverable" need the full document taxonomy,
// other types only need a title.
func (v *Validator) ValidateDeliverable(rec *models.VariationDeliverable) models.ValidationResult {
	result := models.ValidationResult{Valid: true}

	title := strings.TrimSpace(rec.Title)
	if title == "" {
		result.AddError("title", "title is required")
	} else if len(rec.Title) > maxTitleLength {
		result.AddError("title", "title must be 255 characters or fewer")
	}

	// The area rule holds for every type: an area number is optional, but
	// once present it must be well-formed.
	if rec.AreaNumber != "" && !v.areaNumberRegex.MatchString(rec.AreaNumber) {
		result.AddError("area", "area number must be exactly two digits")
	}

	if rec.DeliverableTypeGuid == uuid.Nil {
		result.AddError("deliverable_type", "deliverable type is required")
		return result
	}

	if rec.DeliverableTypeName == "Deliverable" {
		if rec.DisciplineGuid == nil {
			result.AddError("discipline", "discipline is required for deliverables")
		}
		if rec.DocumentTypeGuid == nil {
			result.AddError("document_type", "document type is required for deliverables")
		}
	}

	return result
}

// ValidateAreaNumber checks a single area number without a full row, used
// when an area change is the only edit.
func (v *Validator) ValidateAreaNumber(areaNumber string) bool {
	return v.areaNumberRegex.MatchString(areaNumber)
}
