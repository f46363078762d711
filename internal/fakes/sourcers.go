package fakes

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/apperrors"
	"github.com/Ramsey-B/fern/pkg/models"
)

// Sourcers is an in-memory sourcer registry store for one subject kind. It enforces
// one active record per subject the way the partial unique index does.
type Sourcers struct {
	mu      sync.Mutex
	kind    models.SubjectKind
	Records map[uuid.UUID]*models.SourcerRecord
	// CompanyOrganizations maps company id to its organization for company-user visibility.
	CompanyOrganizations map[uuid.UUID]uuid.UUID
}

func NewSourcers(kind models.SubjectKind) *Sourcers {
	return &Sourcers{
		kind:                 kind,
		Records:              map[uuid.UUID]*models.SourcerRecord{},
		CompanyOrganizations: map[uuid.UUID]uuid.UUID{},
	}
}

// Add stores record directly, bypassing uniqueness checks.
func (s *Sourcers) Add(record models.SourcerRecord) *models.SourcerRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	record.BindKind(s.kind)
	s.Records[record.ID] = &record
	return &record
}

func (s *Sourcers) Kind() models.SubjectKind {
	return s.kind
}

func (s *Sourcers) FindActiveBySubject(_ context.Context, subjectID uuid.UUID) (*models.SourcerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record := s.activeFor(subjectID, uuid.Nil); record != nil {
		copied := *record
		return &copied, nil
	}
	return nil, nil
}

func (s *Sourcers) activeFor(subjectID, except uuid.UUID) *models.SourcerRecord {
	for _, record := range s.Records {
		if record.SubjectID == subjectID && record.Status == models.SourcerStatusActive && record.ID != except {
			return record
		}
	}
	return nil
}

func (s *Sourcers) visible(access *models.AccessContext, record *models.SourcerRecord) bool {
	if access == nil || access.IsPlatformAdmin {
		return true
	}
	if access.IsRecruiterID(record.RecruiterID) {
		return true
	}
	switch s.kind {
	case models.SubjectCompany:
		organizationID, ok := s.CompanyOrganizations[record.SubjectID]
		return ok && access.IsCompanyUser() && access.ControlsOrganization(organizationID)
	case models.SubjectCandidate:
		return access.IsCandidate() && *access.CandidateID == record.SubjectID
	}
	return false
}

func (s *Sourcers) GetByID(_ context.Context, id uuid.UUID, access *models.AccessContext) (*models.SourcerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.Records[id]
	if !ok || !s.visible(access, record) {
		return nil, apperrors.NotFound("%s sourcer %s not found", s.kind, id)
	}
	copied := *record
	return &copied, nil
}

func (s *Sourcers) List(_ context.Context, access *models.AccessContext, filters models.SourcerFilters, page models.Pagination) ([]models.SourcerRecord, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []models.SourcerRecord
	for _, record := range s.Records {
		if !s.visible(access, record) {
			continue
		}
		if filters.Status != nil && record.Status != *filters.Status {
			continue
		}
		if filters.SubjectID != nil && record.SubjectID != *filters.SubjectID {
			continue
		}
		if filters.RecruiterID != nil && record.RecruiterID != *filters.RecruiterID {
			continue
		}
		matched = append(matched, *record)
	}
	total := len(matched)
	start := min(page.Offset(), total)
	end := min(start+page.Limit, total)
	return matched[start:end], total, nil
}

func (s *Sourcers) Create(_ context.Context, record *models.SourcerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.Status == models.SourcerStatusActive && s.activeFor(record.SubjectID, uuid.Nil) != nil {
		return apperrors.Conflict("%s %s already has a sourcer assigned", s.kind, record.SubjectID)
	}
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	now := time.Now().UTC()
	record.CreatedAt, record.UpdatedAt = now, now
	record.BindKind(s.kind)
	copied := *record
	s.Records[record.ID] = &copied
	return nil
}

func (s *Sourcers) Update(_ context.Context, id uuid.UUID, patch models.SourcerPatch) (*models.SourcerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.Records[id]
	if !ok {
		return nil, apperrors.NotFound("%s sourcer %s not found", s.kind, id)
	}
	if patch.Status != nil && *patch.Status == models.SourcerStatusActive && s.activeFor(record.SubjectID, id) != nil {
		return nil, apperrors.Conflict("%s already has an active sourcer", s.kind)
	}
	if patch.Status != nil {
		record.Status = *patch.Status
	}
	if patch.TerminationReason != nil {
		record.TerminationReason = patch.TerminationReason
	}
	if patch.RelationshipEndDate != nil {
		record.RelationshipEndDate = patch.RelationshipEndDate
	}
	if patch.ProtectionExpiresAt != nil {
		record.ProtectionExpiresAt = patch.ProtectionExpiresAt
	}
	record.UpdatedAt = time.Now().UTC()
	copied := *record
	return &copied, nil
}

func (s *Sourcers) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.Records[id]; !ok {
		return apperrors.NotFound("%s sourcer %s not found", s.kind, id)
	}
	delete(s.Records, id)
	return nil
}
