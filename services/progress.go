// ABOUTME: Progress-percentage gate validation and persistence for reporting periods
// ABOUTME: Cumulative earned percentage must be monotonic, gate-bounded, and leave room for future periods

package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/edms-tools/deliverables-admin/backend/models"
)

// progressStore persists period progress entries. Satisfied by ODataClient.
type progressStore interface {
	GetGate(ctx context.Context, guid uuid.UUID) (*models.Gate, error)
	AddOrUpdateExisting(ctx context.Context, update models.ProgressUpdate) error
}

// ProgressService validates and records cumulative earned-percentage updates
// against the active gate's limits.
type ProgressService struct {
	store progressStore
}

func NewProgressService(store progressStore) *ProgressService {
	return &ProgressService{store: store}
}

// CheckGate applies the three gate rules to a proposed update. All failures
// are reported against the cumulative percentage field.
func (s *ProgressService) CheckGate(gate *models.Gate, update models.ProgressUpdate) models.ValidationResult {
	result := models.ValidationResult{Valid: true}
	proposed := update.CumulativeEarntPercentage

	if proposed < update.PreviousPeriodEarntPercentage {
		result.AddError("cumulative_earnt_percentage",
			fmt.Sprintf("earned percentage cannot drop below the previous period's %.0f%%", update.PreviousPeriodEarntPercentage*100))
	}
	if proposed > gate.MaxPercentage {
		result.AddError("cumulative_earnt_percentage",
			fmt.Sprintf("earned percentage cannot exceed gate %q maximum of %.0f%%", gate.Name, gate.MaxPercentage*100))
	}
	if proposed+update.FuturePeriodsPercentage > 1.0 {
		result.AddError("cumulative_earnt_percentage",
			"earned percentage plus already-recorded future periods cannot exceed 100%")
	}

	return result
}

// Record validates an update against its gate and persists it when valid.
// The ValidationResult is returned alongside nil error on rule failures so
// handlers can render inline messages.
func (s *ProgressService) Record(ctx context.Context, update models.ProgressUpdate) (models.ValidationResult, error) {
	gate, err := s.store.GetGate(ctx, update.GateGuid)
	if err != nil {
		return models.ValidationResult{}, fmt.Errorf("look up gate: %w", err)
	}

	result := s.CheckGate(gate, update)
	if !result.Valid {
		return result, nil
	}

	if err := s.store.AddOrUpdateExisting(ctx, update); err != nil {
		return models.ValidationResult{}, err
	}
	return result, nil
}
