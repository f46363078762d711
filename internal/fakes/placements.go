package fakes

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/apperrors"
	"github.com/Ramsey-B/fern/pkg/models"
)

// Placements is an in-memory placement store. CompanyOrganizations maps company ids to
// organizations so company visibility can be applied.
type Placements struct {
	mu                   sync.Mutex
	Rows                 map[uuid.UUID]*models.Placement
	CompanyOrganizations map[uuid.UUID]uuid.UUID
	// BeforeUpdate runs ahead of every update; tests use it to simulate a concurrent writer.
	BeforeUpdate func(row *models.Placement)
}

func NewPlacements() *Placements {
	return &Placements{
		Rows:                 map[uuid.UUID]*models.Placement{},
		CompanyOrganizations: map[uuid.UUID]uuid.UUID{},
	}
}

func (p *Placements) visible(access *models.AccessContext, row *models.Placement) bool {
	if access == nil || access.IsPlatformAdmin {
		return true
	}
	if access.IsCandidate() && *access.CandidateID == row.CandidateID {
		return true
	}
	if access.IsRecruiter() && len(row.RolesOf(*access.RecruiterID)) > 0 {
		return true
	}
	if access.IsCompanyUser() {
		if org, ok := p.CompanyOrganizations[row.CompanyID]; ok && access.ControlsOrganization(org) {
			return true
		}
	}
	return false
}

func (p *Placements) List(_ context.Context, access *models.AccessContext, filters models.PlacementFilters, page models.Pagination) ([]models.Placement, int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var matched []models.Placement
	for _, row := range p.Rows {
		if !p.visible(access, row) {
			continue
		}
		if filters.Status != nil && row.Status != *filters.Status {
			continue
		}
		if filters.JobID != nil && row.JobID != *filters.JobID {
			continue
		}
		if filters.CandidateID != nil && row.CandidateID != *filters.CandidateID {
			continue
		}
		matched = append(matched, *row)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := len(matched)
	start := min(page.Offset(), total)
	end := min(start+page.Limit, total)
	return matched[start:end], total, nil
}

func (p *Placements) Find(_ context.Context, id uuid.UUID, access *models.AccessContext) (*models.Placement, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	row, ok := p.Rows[id]
	if !ok || !p.visible(access, row) {
		return nil, apperrors.NotFound("placement %s does not exist", id)
	}
	copied := *row
	return &copied, nil
}

func (p *Placements) Create(_ context.Context, placement *models.Placement) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, row := range p.Rows {
		if row.ApplicationID == placement.ApplicationID {
			return apperrors.Conflict("application %s already has a placement", placement.ApplicationID)
		}
	}
	if placement.ID == uuid.Nil {
		placement.ID = uuid.New()
	}
	now := time.Now().UTC()
	placement.CreatedAt, placement.UpdatedAt = now, now
	copied := *placement
	p.Rows[placement.ID] = &copied
	return nil
}

func (p *Placements) Update(_ context.Context, id uuid.UUID, patch models.PlacementPatch, expected *models.PlacementStatus) (*models.Placement, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	row, ok := p.Rows[id]
	if !ok {
		return nil, apperrors.NotFound("placement %s does not exist", id)
	}
	if p.BeforeUpdate != nil {
		p.BeforeUpdate(row)
	}
	if expected != nil && row.Status != *expected {
		return nil, apperrors.Conflict("placement %s changed status from %s to %s concurrently", id, *expected, row.Status)
	}

	if patch.Salary != nil {
		row.Salary = *patch.Salary
	}
	if patch.FeePercentage != nil {
		row.FeePercentage = *patch.FeePercentage
	}
	if patch.PlacementFee != nil {
		row.PlacementFee = *patch.PlacementFee
	}
	if patch.Status != nil {
		row.Status = *patch.Status
	}
	if patch.StartDate != nil {
		row.StartDate = *patch.StartDate
	}
	if patch.GuaranteeDays != nil {
		row.GuaranteeDays = *patch.GuaranteeDays
	}
	if patch.GuaranteeExpiresAt != nil {
		row.GuaranteeExpiresAt = *patch.GuaranteeExpiresAt
	}
	row.UpdatedAt = time.Now().UTC()

	copied := *row
	copied.RecruiterShare = nil
	return &copied, nil
}

func (p *Placements) SoftDelete(ctx context.Context, id uuid.UUID, expected models.PlacementStatus) (*models.Placement, error) {
	status := models.PlacementStatusCancelled
	return p.Update(ctx, id, models.PlacementPatch{Status: &status}, &expected)
}
