package placement

import (
	"github.com/Ramsey-B/fern/pkg/apperrors"
	"github.com/Ramsey-B/fern/pkg/models"
)

// transitions lists the allowed next statuses. completed and cancelled are terminal.
var transitions = map[models.PlacementStatus][]models.PlacementStatus{
	models.PlacementStatusPending:   {models.PlacementStatusConfirmed, models.PlacementStatusCancelled},
	models.PlacementStatusConfirmed: {models.PlacementStatusActive, models.PlacementStatusCancelled},
	models.PlacementStatusActive:    {models.PlacementStatusCompleted, models.PlacementStatusCancelled},
	models.PlacementStatusCompleted: {},
	models.PlacementStatusCancelled: {},
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to models.PlacementStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition checks a status change for access. Hiring managers without any
// other business role may not complete a placement.
func ValidateTransition(access *models.AccessContext, from, to models.PlacementStatus) error {
	if !to.IsValid() {
		return apperrors.Validation("invalid placement status %q", to)
	}
	if !CanTransition(from, to) {
		return apperrors.InvalidTransition(string(from), string(to))
	}
	if to == models.PlacementStatusCompleted && access.IsHiringManagerOnly() {
		return apperrors.Authorization("hiring managers may not mark a placement completed")
	}
	return nil
}
