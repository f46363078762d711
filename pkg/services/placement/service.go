// Package placement implements the placement lifecycle: attribution snapshots on
// creation, the status state machine, guarantee terms and lifecycle events.
package placement

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Ramsey-B/fern/pkg/apperrors"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/repositories"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const DefaultGuaranteeDays = 90

// Emitter publishes placement lifecycle events. Failures are logged by the emitter and
// never undo a write.
type Emitter interface {
	EmitPlacementCreated(ctx context.Context, placement *models.Placement) error
	EmitPlacementStatusChanged(ctx context.Context, placementID uuid.UUID, previous, next models.PlacementStatus) error
	EmitPlacementUpdated(ctx context.Context, placementID uuid.UUID, fields []string) error
	EmitPlacementDeleted(ctx context.Context, placementID uuid.UUID, previous models.PlacementStatus) error
}

// Transactor runs fn in a single database transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Options struct {
	DefaultGuaranteeDays int
}

type Service struct {
	placements        repositories.PlacementRepo
	directory         repositories.DirectoryRepo
	candidateSourcers SourcerRegistry
	companySourcers   SourcerRegistry
	tx                Transactor
	emitter           Emitter
	logger            ectologger.Logger
	opts              Options
	now               func() time.Time
}

func NewService(
	placements repositories.PlacementRepo,
	directory repositories.DirectoryRepo,
	candidateSourcers SourcerRegistry,
	companySourcers SourcerRegistry,
	tx Transactor,
	emitter Emitter,
	logger ectologger.Logger,
	opts Options,
) *Service {
	if opts.DefaultGuaranteeDays <= 0 {
		opts.DefaultGuaranteeDays = DefaultGuaranteeDays
	}
	return &Service{
		placements:        placements,
		directory:         directory,
		candidateSourcers: candidateSourcers,
		companySourcers:   companySourcers,
		tx:                tx,
		emitter:           emitter,
		logger:            logger,
		opts:              opts,
		now:               time.Now,
	}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) ListPlacements(ctx context.Context, access *models.AccessContext, filters models.PlacementFilters, page models.Pagination) (models.Page[models.Placement], error) {
	if access == nil {
		return models.Page[models.Placement]{}, apperrors.Authentication("caller identity is required")
	}
	page = page.Normalize()
	placements, total, err := s.placements.List(ctx, access, filters, page)
	if err != nil {
		return models.Page[models.Placement]{}, err
	}
	return models.NewPage(placements, total, page), nil
}

func (s *Service) GetPlacement(ctx context.Context, access *models.AccessContext, id uuid.UUID) (*models.Placement, error) {
	if access == nil {
		return nil, apperrors.Authentication("caller identity is required")
	}
	return s.placements.Find(ctx, id, access)
}

// CreatePlacement records a placement from explicit terms.
func (s *Service) CreatePlacement(ctx context.Context, access *models.AccessContext, input models.CreatePlacementInput) (*models.Placement, error) {
	ctx, span := tracing.StartSpan(ctx, "PlacementService.CreatePlacement")
	defer span.End()

	if access == nil {
		return nil, apperrors.Authentication("caller identity is required")
	}
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	attribution, src, err := s.gather(ctx, input.CandidateID, input.JobID, input.ApplicationID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeCreate(ctx, access, src); err != nil {
		return nil, err
	}
	if err := checkSources(src, input.CandidateID, input.JobID); err != nil {
		return nil, err
	}

	guaranteeDays := s.guaranteeDays(input.GuaranteeDays, src.job)
	placement := newPlacement(src, attribution, StartOfDay(input.StartDate), *input.Salary, *input.FeePercentage, guaranteeDays)

	if err := s.placements.Create(ctx, placement); err != nil {
		return nil, err
	}

	s.created(ctx, placement, "direct")
	return placement, nil
}

// CreatePlacementFromApplication records the placement for a hired application. It
// snapshots display names and links the application to the new placement in the same
// transaction.
func (s *Service) CreatePlacementFromApplication(ctx context.Context, access *models.AccessContext, applicationID uuid.UUID, input models.FromApplicationInput) (*models.Placement, error) {
	ctx, span := tracing.StartSpan(ctx, "PlacementService.CreatePlacementFromApplication")
	defer span.End()

	if access == nil {
		return nil, apperrors.Authentication("caller identity is required")
	}

	application, err := s.directory.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if !access.IsPlatformAdmin && (application.CandidateRecruiterID == nil || !access.IsRecruiterID(*application.CandidateRecruiterID)) {
		return nil, apperrors.Authorization("only an admin or the candidate's recruiter may place this application")
	}

	attribution, src, err := s.gather(ctx, application.CandidateID, application.JobID, applicationID)
	if err != nil {
		return nil, err
	}
	if err := checkSources(src, application.CandidateID, application.JobID); err != nil {
		return nil, err
	}

	salary, err := pickDecimal(input.Salary, application.Salary.Decimal, application.Salary.Valid, "salary")
	if err != nil {
		return nil, err
	}
	fee, err := pickDecimal(input.FeePercentage, src.job.FeePercentage.Decimal, src.job.FeePercentage.Valid, "fee_percentage")
	if err != nil {
		return nil, err
	}
	if err := validateSalary(salary); err != nil {
		return nil, err
	}
	if err := validateFeePercentage(fee); err != nil {
		return nil, err
	}
	if input.GuaranteeDays != nil {
		if err := validateGuaranteeDays(*input.GuaranteeDays); err != nil {
			return nil, err
		}
	}

	startDate := StartOfDay(s.now())
	if input.StartDate != nil {
		startDate = StartOfDay(*input.StartDate)
	}

	snapshot, err := s.displaySnapshot(ctx, src)
	if err != nil {
		return nil, err
	}

	placement := newPlacement(src, attribution, startDate, salary, fee, s.guaranteeDays(input.GuaranteeDays, src.job))
	placement.DisplaySnapshot = snapshot

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.placements.Create(ctx, placement); err != nil {
			return err
		}
		return s.directory.MarkApplicationHired(ctx, applicationID, placement.ID, s.now().UTC())
	})
	if err != nil {
		return nil, err
	}

	s.created(ctx, placement, "application")
	return placement, nil
}

// UpdatePlacement applies patch. Status changes go through the state machine and are
// written only if the stored status is still the one that was validated.
func (s *Service) UpdatePlacement(ctx context.Context, access *models.AccessContext, id uuid.UUID, patch models.PlacementPatch) (*models.Placement, error) {
	ctx, span := tracing.StartSpan(ctx, "PlacementService.UpdatePlacement")
	defer span.End()

	if err := requireWriter(access); err != nil {
		return nil, err
	}
	patch.PlacementFee = nil
	patch.GuaranteeExpiresAt = nil
	if patch.StartDate != nil {
		start := StartOfDay(*patch.StartDate)
		patch.StartDate = &start
	}
	if patch.IsEmpty() {
		return nil, apperrors.Validation("no fields to update")
	}
	if patch.Salary != nil {
		if err := validateSalary(*patch.Salary); err != nil {
			return nil, err
		}
	}
	if patch.FeePercentage != nil {
		if err := validateFeePercentage(*patch.FeePercentage); err != nil {
			return nil, err
		}
	}
	if patch.GuaranteeDays != nil {
		if err := validateGuaranteeDays(*patch.GuaranteeDays); err != nil {
			return nil, err
		}
	}

	current, err := s.placements.Find(ctx, id, access)
	if err != nil {
		return nil, err
	}

	statusChanged := patch.Status != nil && *patch.Status != current.Status
	if statusChanged {
		if err := ValidateTransition(access, current.Status, *patch.Status); err != nil {
			metrics.RecordTransition(string(current.Status), string(*patch.Status), "rejected")
			return nil, err
		}
	}
	if patch.Status != nil && !statusChanged {
		patch.Status = nil
	}
	if patch.IsEmpty() {
		return current, nil
	}

	if patch.Salary != nil || patch.FeePercentage != nil {
		salary, fee := current.Salary, current.FeePercentage
		if patch.Salary != nil {
			salary = *patch.Salary
		}
		if patch.FeePercentage != nil {
			fee = *patch.FeePercentage
		}
		placementFee := PlacementFee(salary, fee)
		patch.PlacementFee = &placementFee
	}
	if patch.StartDate != nil || patch.GuaranteeDays != nil {
		start, days := current.StartDate, current.GuaranteeDays
		if patch.StartDate != nil {
			start = *patch.StartDate
		}
		if patch.GuaranteeDays != nil {
			days = *patch.GuaranteeDays
		}
		expiresAt := GuaranteeExpiresAt(start, days)
		patch.GuaranteeExpiresAt = &expiresAt
	}

	previous := current.Status
	updated, err := s.placements.Update(ctx, id, patch, &previous)
	if err != nil {
		if statusChanged && apperrors.Is(err, apperrors.KindConflict) {
			metrics.RecordTransition(string(previous), string(*patch.Status), "conflict")
		}
		return nil, err
	}
	updated.RecruiterShare = current.RecruiterShare

	fields := patch.Fields()
	s.logger.WithContext(ctx).WithFields(map[string]any{
		"placement_id": id,
		"fields":       fields,
	}).Info("Placement updated")

	if statusChanged {
		metrics.RecordTransition(string(previous), string(updated.Status), "applied")
		_ = s.emitter.EmitPlacementStatusChanged(ctx, id, previous, updated.Status)
	}
	_ = s.emitter.EmitPlacementUpdated(ctx, id, fields)
	return updated, nil
}

// DeletePlacement cancels the placement. Terminal placements cannot be cancelled.
func (s *Service) DeletePlacement(ctx context.Context, access *models.AccessContext, id uuid.UUID) (*models.Placement, error) {
	ctx, span := tracing.StartSpan(ctx, "PlacementService.DeletePlacement")
	defer span.End()

	if err := requireWriter(access); err != nil {
		return nil, err
	}

	current, err := s.placements.Find(ctx, id, access)
	if err != nil {
		return nil, err
	}
	if err := ValidateTransition(access, current.Status, models.PlacementStatusCancelled); err != nil {
		return nil, err
	}

	cancelled, err := s.placements.SoftDelete(ctx, id, current.Status)
	if err != nil {
		return nil, err
	}

	metrics.RecordTransition(string(current.Status), string(models.PlacementStatusCancelled), "applied")
	s.logger.WithContext(ctx).WithFields(map[string]any{
		"placement_id":    id,
		"previous_status": current.Status,
	}).Info("Placement cancelled")

	_ = s.emitter.EmitPlacementDeleted(ctx, id, current.Status)
	return cancelled, nil
}

func (s *Service) created(ctx context.Context, placement *models.Placement, source string) {
	roles := countRoles(placement.Attribution)
	metrics.RecordPlacementCreated(source, roles)
	s.logger.WithContext(ctx).WithFields(map[string]any{
		"placement_id":     placement.ID,
		"application_id":   placement.ApplicationID,
		"attributed_roles": roles,
		"source":           source,
	}).Info("Placement created")

	_ = s.emitter.EmitPlacementCreated(ctx, placement)
}

// authorizeCreate admits admins, recruiters and members of the hiring company.
func (s *Service) authorizeCreate(ctx context.Context, access *models.AccessContext, src *sources) error {
	if access.IsPlatformAdmin || access.IsRecruiter() {
		return nil
	}
	if access.IsCompanyUser() {
		company, err := s.directory.GetCompany(ctx, src.job.CompanyID)
		if err != nil {
			return err
		}
		if access.ControlsOrganization(company.OrganizationID) {
			return nil
		}
	}
	return apperrors.Authorization("caller may not create placements for this job")
}

func (s *Service) displaySnapshot(ctx context.Context, src *sources) (models.DisplaySnapshot, error) {
	candidate, err := s.directory.GetCandidate(ctx, src.application.CandidateID)
	if err != nil {
		return models.DisplaySnapshot{}, err
	}
	company, err := s.directory.GetCompany(ctx, src.job.CompanyID)
	if err != nil {
		return models.DisplaySnapshot{}, err
	}

	return models.DisplaySnapshot{
		CandidateName:  &candidate.FullName,
		CandidateEmail: candidate.Email,
		JobTitle:       &src.job.Title,
		CompanyName:    &company.Name,
	}, nil
}

// guaranteeDays prefers the explicit value, then the job's terms, then the default.
func (s *Service) guaranteeDays(explicit *int, job *models.Job) int {
	switch {
	case explicit != nil:
		return *explicit
	case job.GuaranteeDays != nil:
		return *job.GuaranteeDays
	}
	return s.opts.DefaultGuaranteeDays
}

func newPlacement(src *sources, attribution models.Attribution, start time.Time, salary, fee decimal.Decimal, guaranteeDays int) *models.Placement {
	return &models.Placement{
		ID:                 uuid.New(),
		ApplicationID:      src.application.ID,
		CandidateID:        src.application.CandidateID,
		JobID:              src.job.ID,
		CompanyID:          src.job.CompanyID,
		Attribution:        attribution,
		Salary:             salary,
		FeePercentage:      fee,
		PlacementFee:       PlacementFee(salary, fee),
		Status:             models.PlacementStatusPending,
		StartDate:          start,
		GuaranteeDays:      guaranteeDays,
		GuaranteeExpiresAt: GuaranteeExpiresAt(start, guaranteeDays),
	}
}

func validateCreateInput(input models.CreatePlacementInput) error {
	switch {
	case input.ApplicationID == uuid.Nil:
		return apperrors.Validation("application_id is required")
	case input.CandidateID == uuid.Nil:
		return apperrors.Validation("candidate_id is required")
	case input.JobID == uuid.Nil:
		return apperrors.Validation("job_id is required")
	case input.StartDate.IsZero():
		return apperrors.Validation("start_date is required")
	case input.Salary == nil:
		return apperrors.Validation("salary is required")
	case input.FeePercentage == nil:
		return apperrors.Validation("fee_percentage is required")
	}
	if err := validateSalary(*input.Salary); err != nil {
		return err
	}
	if err := validateFeePercentage(*input.FeePercentage); err != nil {
		return err
	}
	if input.GuaranteeDays != nil {
		return validateGuaranteeDays(*input.GuaranteeDays)
	}
	return nil
}

// requireWriter rejects callers whose only standing is being the placed candidate.
func requireWriter(access *models.AccessContext) error {
	if access == nil {
		return apperrors.Authentication("caller identity is required")
	}
	if access.IsPlatformAdmin || access.IsRecruiter() || access.IsCompanyUser() {
		return nil
	}
	return apperrors.Authorization("caller may not modify placements")
}
