// Package sourcer implements the company and candidate sourcer registries. Both share
// one implementation parameterised by the subject kind of their repository.
package sourcer

import (
	"context"
	"errors"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/apperrors"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/repositories"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Locker serialises claims on one subject across instances.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// Emitter publishes sourcer lifecycle events.
type Emitter interface {
	EmitSourcer(ctx context.Context, action events.SourcerAction, record *models.SourcerRecord, fields []string) error
}

// Service is one sourcer registry.
type Service struct {
	records   repositories.SourcerRepo
	directory repositories.DirectoryRepo
	locker    Locker
	emitter   Emitter
	logger    ectologger.Logger
	now       func() time.Time
}

// NewService creates a registry over records. locker may be nil, in which case the
// partial unique index alone guards concurrent claims.
func NewService(records repositories.SourcerRepo, directory repositories.DirectoryRepo, locker Locker, emitter Emitter, logger ectologger.Logger) *Service {
	return &Service{
		records:   records,
		directory: directory,
		locker:    locker,
		emitter:   emitter,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) Kind() models.SubjectKind {
	return s.records.Kind()
}

// FindBySubject returns the active record for subjectID, or nil.
func (s *Service) FindBySubject(ctx context.Context, subjectID uuid.UUID) (*models.SourcerRecord, error) {
	return s.records.FindActiveBySubject(ctx, subjectID)
}

// IsActive reports whether subjectID has an active, unexpired sourcer whose recruiter
// account is itself active. Either condition failing forfeits credit.
func (s *Service) IsActive(ctx context.Context, subjectID uuid.UUID) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "SourcerService.IsActive")
	defer span.End()

	record, err := s.records.FindActiveBySubject(ctx, subjectID)
	if err != nil {
		return false, err
	}
	if !record.GrantsProtection(s.now()) {
		return false, nil
	}

	recruiter, err := s.directory.GetRecruiter(ctx, record.RecruiterID)
	if apperrors.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return recruiter.Status == models.RecruiterStatusActive, nil
}

// CheckProtectionStatus is the public projection of a subject's protection.
func (s *Service) CheckProtectionStatus(ctx context.Context, subjectID uuid.UUID) (*models.ProtectionStatus, error) {
	record, err := s.records.FindActiveBySubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if !record.GrantsProtection(s.now()) {
		return &models.ProtectionStatus{HasProtection: false}, nil
	}

	recruiterID := record.RecruiterID
	sourcedAt := record.RelationshipStartDate
	return &models.ProtectionStatus{
		HasProtection:       true,
		SourcerRecruiterID:  &recruiterID,
		SourcedAt:           &sourcedAt,
		ProtectionExpiresAt: record.ProtectionExpiresAt,
	}, nil
}

func (s *Service) Get(ctx context.Context, access *models.AccessContext, id uuid.UUID) (*models.SourcerRecord, error) {
	if access == nil {
		return nil, apperrors.Authentication("caller identity is required")
	}
	return s.records.GetByID(ctx, id, access)
}

func (s *Service) List(ctx context.Context, access *models.AccessContext, filters models.SourcerFilters, page models.Pagination) (models.Page[models.SourcerRecord], error) {
	if access == nil {
		return models.Page[models.SourcerRecord]{}, apperrors.Authentication("caller identity is required")
	}
	page = page.Normalize()
	records, total, err := s.records.List(ctx, access, filters, page)
	if err != nil {
		return models.Page[models.SourcerRecord]{}, err
	}
	return models.NewPage(records, total, page), nil
}

// Create claims a subject for a recruiter. Recruiters may only claim for themselves and
// a subject with an active sourcer cannot be claimed again.
func (s *Service) Create(ctx context.Context, access *models.AccessContext, input models.CreateSourcerInput) (*models.SourcerRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "SourcerService.Create")
	defer span.End()

	record, err := s.newRecord(ctx, access, input)
	if err != nil {
		return nil, err
	}

	err = s.withSubjectLock(ctx, record.SubjectID, func(ctx context.Context) error {
		if err := s.ensureUnclaimed(ctx, record.SubjectID, uuid.Nil); err != nil {
			return err
		}
		return s.records.Create(ctx, record)
	})
	if err != nil {
		if apperrors.Is(err, apperrors.KindConflict) {
			metrics.RecordSourcerClaim(string(s.Kind()), "conflict")
		}
		return nil, err
	}

	metrics.RecordSourcerClaim(string(s.Kind()), "created")
	s.logger.WithContext(ctx).WithFields(map[string]any{
		"sourcer_id":   record.ID,
		"kind":         s.Kind(),
		"subject_id":   record.SubjectID,
		"recruiter_id": record.RecruiterID,
	}).Info("Sourcer claimed")

	_ = s.emitter.EmitSourcer(ctx, events.SourcerActionSourced, record, nil)
	return record, nil
}

// withSubjectLock runs fn holding the per-subject claim lock when a locker is configured.
func (s *Service) withSubjectLock(ctx context.Context, subjectID uuid.UUID, fn func(ctx context.Context) error) error {
	if s.locker == nil {
		return fn(ctx)
	}
	err := s.locker.WithLock(ctx, string(s.Kind())+":"+subjectID.String(), fn)
	if errors.Is(err, redis.ErrLockNotAcquired) {
		return apperrors.Conflict("another sourcer claim for %s %s is in progress", s.Kind(), subjectID)
	}
	return err
}

// ensureUnclaimed fails when subjectID has an active record other than except.
func (s *Service) ensureUnclaimed(ctx context.Context, subjectID, except uuid.UUID) error {
	existing, err := s.records.FindActiveBySubject(ctx, subjectID)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != except {
		return apperrors.Conflict("%s %s already has a sourcer assigned", s.Kind(), subjectID)
	}
	return nil
}

// controlsSubject reports whether the caller owns the subject: a company admin of the
// company's organization, or the candidate themselves.
func (s *Service) controlsSubject(ctx context.Context, access *models.AccessContext, subjectID uuid.UUID) (bool, error) {
	switch s.Kind() {
	case models.SubjectCompany:
		if !access.HasRole(models.RoleCompanyAdmin) {
			return false, nil
		}
		company, err := s.directory.GetCompany(ctx, subjectID)
		if err != nil {
			return false, err
		}
		return access.ControlsOrganization(company.OrganizationID), nil
	case models.SubjectCandidate:
		return access.CandidateID != nil && *access.CandidateID == subjectID, nil
	}
	return false, nil
}

func (s *Service) newRecord(ctx context.Context, access *models.AccessContext, input models.CreateSourcerInput) (*models.SourcerRecord, error) {
	if access == nil {
		return nil, apperrors.Authentication("caller identity is required")
	}
	if !access.IsPlatformAdmin && !access.IsRecruiter() {
		return nil, apperrors.Authorization("only recruiters may claim sourcing credit")
	}
	if input.SubjectID == uuid.Nil {
		return nil, apperrors.Validation("%s_id is required", s.Kind())
	}

	recruiterID := input.RecruiterID
	if recruiterID == nil {
		if !access.IsRecruiter() {
			return nil, apperrors.Validation("recruiter_id is required")
		}
		recruiterID = access.RecruiterID
	}
	if !access.IsPlatformAdmin && !access.IsRecruiterID(*recruiterID) {
		return nil, apperrors.Authorization("recruiters may only claim sourcing credit for themselves")
	}

	status := models.SourcerStatusActive
	if input.Status != nil {
		status = *input.Status
	}
	if status != models.SourcerStatusActive && status != models.SourcerStatusPending {
		return nil, apperrors.Validation("a new sourcer must be pending or active, got %q", status)
	}

	start := s.now().UTC()
	if input.RelationshipStartDate != nil {
		start = input.RelationshipStartDate.UTC()
	}

	expiresAt, err := protectionExpiry(start, input)
	if err != nil {
		return nil, err
	}

	if err := s.subjectExists(ctx, input.SubjectID); err != nil {
		return nil, err
	}
	if _, err := s.directory.GetRecruiter(ctx, *recruiterID); err != nil {
		return nil, err
	}

	return &models.SourcerRecord{
		ID:                    uuid.New(),
		SubjectID:             input.SubjectID,
		RecruiterID:           *recruiterID,
		Status:                status,
		RelationshipStartDate: start,
		ProtectionExpiresAt:   expiresAt,
	}, nil
}

// protectionExpiry prefers an explicit expiry over a window measured from start.
// Neither means protection lasts while the record stays active.
func protectionExpiry(start time.Time, input models.CreateSourcerInput) (*time.Time, error) {
	switch {
	case input.ProtectionExpiresAt != nil:
		expiresAt := input.ProtectionExpiresAt.UTC()
		if !expiresAt.After(start) {
			return nil, apperrors.Validation("protection_expires_at must be after the relationship start date")
		}
		return &expiresAt, nil
	case input.ProtectionWindowDays != nil:
		if *input.ProtectionWindowDays <= 0 {
			return nil, apperrors.Validation("protection_window_days must be positive")
		}
		expiresAt := start.AddDate(0, 0, *input.ProtectionWindowDays)
		return &expiresAt, nil
	}
	return nil, nil
}

func (s *Service) subjectExists(ctx context.Context, subjectID uuid.UUID) error {
	var err error
	switch s.Kind() {
	case models.SubjectCompany:
		_, err = s.directory.GetCompany(ctx, subjectID)
	case models.SubjectCandidate:
		_, err = s.directory.GetCandidate(ctx, subjectID)
	}
	return err
}

// Update changes status, termination details or protection. Callers only reach records
// they hold or whose subject they control. Activating a record and extending its
// protection are reserved for platform admins and the subject's owner; the record holder
// may only end or shorten their own credit.
func (s *Service) Update(ctx context.Context, access *models.AccessContext, id uuid.UUID, patch models.SourcerPatch) (*models.SourcerRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "SourcerService.Update")
	defer span.End()

	if access == nil {
		return nil, apperrors.Authentication("caller identity is required")
	}
	if len(patch.Fields()) == 0 {
		return nil, apperrors.Validation("no fields to update")
	}
	if patch.Status != nil && !patch.Status.IsValid() {
		return nil, apperrors.Validation("invalid sourcer status %q", *patch.Status)
	}

	current, err := s.records.GetByID(ctx, id, access)
	if err != nil {
		return nil, err
	}

	activating := patch.Status != nil && *patch.Status == models.SourcerStatusActive && current.Status != models.SourcerStatusActive
	if err := s.authorizeUpdate(ctx, access, current, patch, activating); err != nil {
		return nil, err
	}

	if patch.Status != nil && *patch.Status == models.SourcerStatusTerminated && patch.RelationshipEndDate == nil && current.RelationshipEndDate == nil {
		ended := s.now().UTC()
		patch.RelationshipEndDate = &ended
	}
	if patch.ProtectionExpiresAt != nil && !patch.ProtectionExpiresAt.After(current.RelationshipStartDate) {
		return nil, apperrors.Validation("protection_expires_at must be after the relationship start date")
	}

	var updated *models.SourcerRecord
	write := func(ctx context.Context) error {
		var err error
		updated, err = s.records.Update(ctx, id, patch)
		return err
	}
	if activating {
		err = s.withSubjectLock(ctx, current.SubjectID, func(ctx context.Context) error {
			if err := s.ensureUnclaimed(ctx, current.SubjectID, id); err != nil {
				return err
			}
			return write(ctx)
		})
	} else {
		err = write(ctx)
	}
	if err != nil {
		if activating && apperrors.Is(err, apperrors.KindConflict) {
			metrics.RecordSourcerClaim(string(s.Kind()), "conflict")
		}
		return nil, err
	}
	if activating {
		metrics.RecordSourcerClaim(string(s.Kind()), "activated")
	}

	_ = s.emitter.EmitSourcer(ctx, events.SourcerActionUpdated, updated, patch.Fields())
	return updated, nil
}

func (s *Service) authorizeUpdate(ctx context.Context, access *models.AccessContext, current *models.SourcerRecord, patch models.SourcerPatch, activating bool) error {
	if access.IsPlatformAdmin {
		return nil
	}
	owner, err := s.controlsSubject(ctx, access, current.SubjectID)
	if err != nil {
		return err
	}
	if owner {
		return nil
	}

	if activating {
		return apperrors.Authorization("only a platform admin or the %s's owner may activate a sourcer record", s.Kind())
	}
	if patch.ProtectionExpiresAt != nil && current.ProtectionExpiresAt != nil && !patch.ProtectionExpiresAt.Before(*current.ProtectionExpiresAt) {
		return apperrors.Authorization("protection may only be shortened by the record holder")
	}
	return nil
}

// Delete hard-deletes a record. Only platform admins may do this.
func (s *Service) Delete(ctx context.Context, access *models.AccessContext, id uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "SourcerService.Delete")
	defer span.End()

	if access == nil {
		return apperrors.Authentication("caller identity is required")
	}
	if !access.IsPlatformAdmin {
		return apperrors.Authorization("only platform admins may delete sourcer records")
	}

	record, err := s.records.GetByID(ctx, id, access)
	if err != nil {
		return err
	}
	if err := s.records.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"sourcer_id": id,
		"kind":       s.Kind(),
		"subject_id": record.SubjectID,
	}).Info("Sourcer removed")

	_ = s.emitter.EmitSourcer(ctx, events.SourcerActionRemoved, record, nil)
	return nil
}
