// ABOUTME: Domain models for deliverables and variation-scoped deliverable rows
// ABOUTME: Defines the UI status set and record shapes exchanged with the OData backend

package models

import (
	"time"

	"github.com/google/uuid"
)

// UIStatus is the lifecycle status of a deliverable within a variation.
type UIStatus string

const (
	StatusOriginal UIStatus = "Original"
	StatusAdd      UIStatus = "Add"
	StatusEdit     UIStatus = "Edit"
	StatusApproved UIStatus = "Approved"
	StatusCancel   UIStatus = "Cancel"
	StatusView     UIStatus = "View"
)

// Known returns true for members of the closed status set.
func (s UIStatus) Known() bool {
	switch s {
	case StatusOriginal, StatusAdd, StatusEdit, StatusApproved, StatusCancel, StatusView:
		return true
	}
	return false
}

// Deliverable is a unit of engineering work product owned by a project.
type Deliverable struct {
	Guid                   uuid.UUID  `json:"guid"`
	ProjectGuid            uuid.UUID  `json:"project_guid"`
	Title                  string     `json:"title"`
	InternalDocumentNumber string     `json:"internal_document_number"`
	AreaGuid               *uuid.UUID `json:"area_guid,omitempty"`
	AreaNumber             string     `json:"area_number,omitempty"`
	DisciplineGuid         *uuid.UUID `json:"discipline_guid,omitempty"`
	DocumentTypeGuid       *uuid.UUID `json:"document_type_guid,omitempty"`
	DepartmentGuid         *uuid.UUID `json:"department_guid,omitempty"`
	DeliverableTypeGuid    uuid.UUID  `json:"deliverable_type_guid"`
	DeliverableTypeName    string     `json:"deliverable_type_name"`
	BudgetHours            float64    `json:"budget_hours"`
	VariationHours         float64    `json:"variation_hours"`
	TotalHours             float64    `json:"total_hours"`
	TotalCost              float64    `json:"total_cost"`
	VariationGuid          *uuid.UUID `json:"variation_guid,omitempty"`
}

// VariationDeliverable is a deliverable's representation inside a specific
// variation. Rows derived from an existing deliverable reference it via
// OriginalDeliverableGuid (non-owning back-reference).
type VariationDeliverable struct {
	Guid                    uuid.UUID  `json:"guid"`
	ProjectGuid             uuid.UUID  `json:"project_guid"`
	VariationGuid           uuid.UUID  `json:"variation_guid"`
	VariationName           string     `json:"variation_name"`
	UIStatus                UIStatus   `json:"ui_status"`
	OriginalDeliverableGuid *uuid.UUID `json:"original_deliverable_guid,omitempty"`
	Title                   string     `json:"title"`
	InternalDocumentNumber  string     `json:"internal_document_number"`
	AreaGuid                *uuid.UUID `json:"area_guid,omitempty"`
	AreaNumber              string     `json:"area_number,omitempty"`
	DisciplineGuid          *uuid.UUID `json:"discipline_guid,omitempty"`
	DocumentTypeGuid        *uuid.UUID `json:"document_type_guid,omitempty"`
	DeliverableTypeGuid     uuid.UUID  `json:"deliverable_type_guid"`
	DeliverableTypeName     string     `json:"deliverable_type_name"`
	VariationHours          float64    `json:"variation_hours"`
	// Virtual marks a grid row that has never been persisted (e.g. a blank
	// "new row" the UI materialized). Virtual rows cannot be cancelled.
	Virtual bool `json:"virtual,omitempty"`
}

// Variation is a named collection of proposed deliverable changes.
type Variation struct {
	Guid             uuid.UUID  `json:"guid"`
	ProjectGuid      uuid.UUID  `json:"project_guid"`
	Name             string     `json:"name"`
	Comments         string     `json:"comments,omitempty"`
	SubmittedOn      *time.Time `json:"submitted_on,omitempty"`
	ClientApprovedOn *time.Time `json:"client_approved_on,omitempty"`
}

// Approved reports whether the client has approved the variation. Once true,
// child rows become read-only.
func (v *Variation) Approved() bool {
	return v.ClientApprovedOn != nil
}
