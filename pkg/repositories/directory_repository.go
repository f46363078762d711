package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/apperrors"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	applicationsTable = "applications"
	jobsTable         = "jobs"
	candidatesTable   = "candidates"
	companiesTable    = "companies"
	recruitersTable   = "recruiters"
)

// DirectoryRepository reads the marketplace entities owned by other domains.
// The only write is stamping an application once it produced a placement.
type DirectoryRepository struct {
	*Repository
}

func NewDirectoryRepository(db database.DB, logger ectologger.Logger) *DirectoryRepository {
	return &DirectoryRepository{Repository: NewRepository(db, logger)}
}

func (r *DirectoryRepository) GetApplication(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	ctx, span := tracing.StartSpan(ctx, "DirectoryRepository.GetApplication")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("id", "candidate_id", "job_id", "candidate_recruiter_id", "stage", "salary", "placement_id", "hired_at").
		From(applicationsTable).
		Where(sb.Equal("id", id))

	var application models.Application
	if err := r.get(ctx, &application, sb.Build); err != nil {
		return nil, r.wrap(ctx, err, "application", id)
	}
	return &application, nil
}

// MarkApplicationHired links the application to the placement created from it.
func (r *DirectoryRepository) MarkApplicationHired(ctx context.Context, id, placementID uuid.UUID, hiredAt time.Time) error {
	ctx, span := tracing.StartSpan(ctx, "DirectoryRepository.MarkApplicationHired")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(applicationsTable).
		Set(
			ub.Assign("placement_id", placementID),
			ub.Assign("hired_at", hiredAt),
			ub.Assign("updated_at", database.Now()),
		).
		Where(ub.Equal("id", id))

	query, args := ub.Build()
	result, err := r.q(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return r.fail(ctx, err, map[string]any{"application_id": id, "placement_id": placementID}, "failed to mark application hired")
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return apperrors.NotFound("application %s does not exist", id)
	}
	return nil
}

func (r *DirectoryRepository) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	ctx, span := tracing.StartSpan(ctx, "DirectoryRepository.GetJob")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("id", "company_id", "title", "company_recruiter_id", "job_owner_recruiter_id", "fee_percentage", "guarantee_days").
		From(jobsTable).
		Where(sb.Equal("id", id))

	var job models.Job
	if err := r.get(ctx, &job, sb.Build); err != nil {
		return nil, r.wrap(ctx, err, "job", id)
	}
	return &job, nil
}

func (r *DirectoryRepository) GetCandidate(ctx context.Context, id uuid.UUID) (*models.Candidate, error) {
	ctx, span := tracing.StartSpan(ctx, "DirectoryRepository.GetCandidate")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("id", "user_id", "full_name", "email").
		From(candidatesTable).
		Where(sb.Equal("id", id))

	var candidate models.Candidate
	if err := r.get(ctx, &candidate, sb.Build); err != nil {
		return nil, r.wrap(ctx, err, "candidate", id)
	}
	return &candidate, nil
}

func (r *DirectoryRepository) GetCompany(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	ctx, span := tracing.StartSpan(ctx, "DirectoryRepository.GetCompany")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("id", "organization_id", "name").
		From(companiesTable).
		Where(sb.Equal("id", id))

	var company models.Company
	if err := r.get(ctx, &company, sb.Build); err != nil {
		return nil, r.wrap(ctx, err, "company", id)
	}
	return &company, nil
}

func (r *DirectoryRepository) GetRecruiter(ctx context.Context, id uuid.UUID) (*models.Recruiter, error) {
	ctx, span := tracing.StartSpan(ctx, "DirectoryRepository.GetRecruiter")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("id", "user_id", "status").
		From(recruitersTable).
		Where(sb.Equal("id", id))

	var recruiter models.Recruiter
	if err := r.get(ctx, &recruiter, sb.Build); err != nil {
		return nil, r.wrap(ctx, err, "recruiter", id)
	}
	return &recruiter, nil
}

func (r *DirectoryRepository) get(ctx context.Context, dest any, build func() (string, []any)) error {
	query, args := build()
	return r.q(ctx).GetContext(ctx, dest, query, args...)
}

func (r *DirectoryRepository) wrap(ctx context.Context, err error, entity string, id uuid.UUID) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NotFound("%s %s does not exist", entity, id)
	}
	return r.fail(ctx, err, map[string]any{entity + "_id": id}, "failed to get "+entity)
}
