package services

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/edms-tools/deliverables-admin/backend/models"
)

func validRow() *models.VariationDeliverable {
	discipline := uuid.New()
	docType := uuid.New()
	return &models.VariationDeliverable{
		Title:               "Piping isometric",
		DeliverableTypeGuid: uuid.New(),
		DeliverableTypeName: "Deliverable",
		AreaNumber:          "04",
		DisciplineGuid:      &discipline,
		DocumentTypeGuid:    &docType,
	}
}

func TestValidator_ValidRow(t *testing.T) {
	v := NewValidator()
	result := v.ValidateDeliverable(validRow())
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
}

func TestValidator_TitleRules(t *testing.T) {
	v := NewValidator()

	t.Run("required", func(t *testing.T) {
		rec := validRow()
		rec.Title = "  "
		result := v.ValidateDeliverable(rec)
		assert.False(t, result.Valid)
		assert.Contains(t, result.Errors, "title")
	})

	t.Run("bounded length", func(t *testing.T) {
		rec := validRow()
		rec.Title = strings.Repeat("x", 256)
		result := v.ValidateDeliverable(rec)
		assert.False(t, result.Valid)
		assert.Contains(t, result.Errors, "title")
	})

	t.Run("255 exactly is fine", func(t *testing.T) {
		rec := validRow()
		rec.Title = strings.Repeat("x", 255)
		assert.True(t, v.ValidateDeliverable(rec).Valid)
	})
}

func TestValidator_AreaNumber(t *testing.T) {
	v := NewValidator()

	for _, bad := range []string{"1", "123", "ab", "4a"} {
		rec := validRow()
		rec.AreaNumber = bad
		result := v.ValidateDeliverable(rec)
		assert.False(t, result.Valid, "area %q should be rejected", bad)
		assert.Contains(t, result.Errors, "area")
	}

	for _, good := range []string{"00", "04", "99"} {
		rec := validRow()
		rec.AreaNumber = good
		assert.True(t, v.ValidateDeliverable(rec).Valid, "area %q should pass", good)
	}
}

func TestValidator_AreaNumberCheckedForEveryType(t *testing.T) {
	v := NewValidator()

	rec := validRow()
	rec.DeliverableTypeName = "Report"
	rec.DisciplineGuid = nil
	rec.DocumentTypeGuid = nil
	rec.AreaNumber = "1234"

	result := v.ValidateDeliverable(rec)
	assert.False(t, result.Valid, "a malformed area number is invalid whatever the deliverable type")
	assert.Contains(t, result.Errors, "area")

	rec.AreaNumber = ""
	assert.True(t, v.ValidateDeliverable(rec).Valid, "the area number stays optional for exempt types")
}

func TestValidator_DeliverableTypeRequirements(t *testing.T) {
	v := NewValidator()

	t.Run("type required", func(t *testing.T) {
		rec := validRow()
		rec.DeliverableTypeGuid = uuid.Nil
		result := v.ValidateDeliverable(rec)
		assert.False(t, result.Valid)
		assert.Contains(t, result.Errors, "deliverable_type")
	})

	t.Run("deliverable needs discipline and document type", func(t *testing.T) {
		rec := validRow()
		rec.DisciplineGuid = nil
		rec.DocumentTypeGuid = nil
		result := v.ValidateDeliverable(rec)
		assert.False(t, result.Valid)
		assert.Contains(t, result.Errors, "discipline")
		assert.Contains(t, result.Errors, "document_type")
	})

	t.Run("other types are exempt", func(t *testing.T) {
		rec := validRow()
		rec.DeliverableTypeName = "Study"
		rec.DisciplineGuid = nil
		rec.DocumentTypeGuid = nil
		rec.AreaNumber = ""
		assert.True(t, v.ValidateDeliverable(rec).Valid)
	})
}

func TestValidator_ValidateAreaNumber(t *testing.T) {
	v := NewValidator()
	assert.True(t, v.ValidateAreaNumber("42"))
	assert.False(t, v.ValidateAreaNumber("042"))
}
