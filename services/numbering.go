// ABOUTME: Internal document number suggestion for deliverable rows
// ABOUTME: Masks the sequence segment so the backend assigns the real number at save time

package services

import (
	"context"
	"net/url"
	"regexp"

	"github.com/google/uuid"

	"github.com/edms-tools/deliverables-admin/backend/models"
)

// sequenceSuffix matches the trailing sequence segment of a document number,
// e.g. the "-042" in "AB-CD-001-042".
var sequenceSuffix = regexp.MustCompile(`-\d+$`)

// sequencePlaceholder replaces the numeric sequence until the backend
// allocates a real one.
const sequencePlaceholder = "-XXX"

// documentNumberSource provides candidate document numbers for a
// classification. Satisfied by ODataClient.
type documentNumberSource interface {
	SuggestInternalDocumentNumber(ctx context.Context, params url.Values) (string, error)
}

// NumberSuggester derives internal document numbers from a row's
// classification fields.
type NumberSuggester struct {
	source documentNumberSource
}

func NewNumberSuggester(source documentNumberSource) *NumberSuggester {
	return &NumberSuggester{source: source}
}

// CanSuggest reports whether a row carries enough classification to derive a
// document number. A deliverable type is always required; rows of type
// "Deliverable" additionally need an area number; and at least one of
// discipline or document type must be set.
func (s *NumberSuggester) CanSuggest(rec *models.VariationDeliverable) bool {
	if rec.DeliverableTypeGuid == uuid.Nil {
		return false
	}
	if rec.DeliverableTypeName == "Deliverable" && rec.AreaNumber == "" {
		return false
	}
	return rec.DisciplineGuid != nil || rec.DocumentTypeGuid != nil
}

// Suggest asks the backend for the next number and masks its sequence
// segment. Rows without enough classification are skipped quietly: the
// suggestion is a convenience, not a requirement.
func (s *NumberSuggester) Suggest(ctx context.Context, rec *models.VariationDeliverable) (string, error) {
	if !s.CanSuggest(rec) {
		return "", nil
	}

	params := url.Values{}
	params.Set("projectGuid", rec.ProjectGuid.String())
	params.Set("deliverableTypeGuid", rec.DeliverableTypeGuid.String())
	if rec.Guid != uuid.Nil {
		// Exclude the row itself from collision checks.
		params.Set("excludeGuid", rec.Guid.String())
	}
	if rec.AreaNumber != "" {
		params.Set("areaNumber", rec.AreaNumber)
	}
	if rec.DisciplineGuid != nil {
		params.Set("disciplineGuid", rec.DisciplineGuid.String())
	}
	if rec.DocumentTypeGuid != nil {
		params.Set("documentTypeGuid", rec.DocumentTypeGuid.String())
	}

	number, err := s.source.SuggestInternalDocumentNumber(ctx, params)
	if err != nil {
		return "", err
	}
	return MaskSequence(number), nil
}

// MaskSequence replaces the trailing numeric sequence of a document number
// with the placeholder segment. Numbers without a sequence segment pass
// through unchanged.
func MaskSequence(number string) string {
	if number == "" {
		return ""
	}
	return sequenceSuffix.ReplaceAllString(number, sequencePlaceholder)
}
