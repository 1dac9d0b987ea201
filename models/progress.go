// ABOUTME: Progress-tracking models: percentage gates and period earnings
// ABOUTME: Defines the inputs to gate validation and the AddOrUpdateExisting payload

package models

import "github.com/google/uuid"

// Gate caps the cumulative earned percentage a deliverable may claim at its
// current stage (e.g. "IFR 0.30", "IFC 0.80").
type Gate struct {
	Guid          uuid.UUID `json:"guid"`
	Name          string    `json:"name"`
	MaxPercentage float64   `json:"max_percentage"`
}

// ProgressUpdate is a proposed cumulative-earned-percentage entry for one
// deliverable in one reporting period.
type ProgressUpdate struct {
	DeliverableGuid uuid.UUID `json:"deliverable_guid"`
	PeriodGuid      uuid.UUID `json:"period_guid"`
	GateGuid        uuid.UUID `json:"gate_guid"`
	// CumulativeEarntPercentage is the proposed value, 0..1.
	CumulativeEarntPercentage float64 `json:"cumulative_earnt_percentage"`
	// PreviousPeriodEarntPercentage is the value recorded in the prior period.
	PreviousPeriodEarntPercentage float64 `json:"previous_period_earnt_percentage"`
	// FuturePeriodsPercentage is the sum already recorded against later periods.
	FuturePeriodsPercentage float64 `json:"future_periods_percentage"`
}
