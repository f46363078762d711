package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/apperrors"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const placementsTable = "placements"

var placementColumns = append(append([]string{
	"id", "application_id", "candidate_id", "job_id", "company_id",
}, models.AttributionColumns()...),
	"candidate_name", "candidate_email", "job_title", "company_name",
	"salary", "fee_percentage", "placement_fee", "status",
	"start_date", "guarantee_days", "guarantee_expires_at", "created_at", "updated_at",
)

// placementSortColumns whitelists the sort_by values callers may use.
var placementSortColumns = map[string]string{
	"created_at":           "created_at",
	"updated_at":           "updated_at",
	"start_date":           "start_date",
	"salary":               "salary",
	"placement_fee":        "placement_fee",
	"status":               "status",
	"guarantee_expires_at": "guarantee_expires_at",
	"candidate_name":       "candidate_name",
	"job_title":            "job_title",
	"company_name":         "company_name",
}

// PlacementRepository persists placements and applies caller visibility to every read.
type PlacementRepository struct {
	*Repository
}

func NewPlacementRepository(db database.DB, logger ectologger.Logger) *PlacementRepository {
	return &PlacementRepository{Repository: NewRepository(db, logger)}
}

// List returns one page of placements visible to access and the total visible count.
func (r *PlacementRepository) List(ctx context.Context, access *models.AccessContext, filters models.PlacementFilters, page models.Pagination) ([]models.Placement, int, error) {
	ctx, span := tracing.StartSpan(ctx, "PlacementRepository.List")
	defer span.End()

	page = page.Normalize()

	countSb := database.NewSelectBuilder()
	countSb.Select("COUNT(*)").From(placementsTable)
	applyPlacementScope(countSb, access, filters)

	countQuery, countArgs := countSb.Build()
	var total int
	if err := r.q(ctx).GetContext(ctx, &total, countQuery, countArgs...); err != nil {
		return nil, 0, r.fail(ctx, err, nil, "failed to count placements")
	}

	sb := r.selectPlacements(access)
	applyPlacementScope(sb, access, filters)
	sb.OrderBy(sortColumn(filters.SortBy) + " " + sortDirection(filters.SortOrder)).
		Limit(page.Limit).
		Offset(page.Offset())

	query, args := sb.Build()
	var placements []models.Placement
	if err := r.q(ctx).SelectContext(ctx, &placements, query, args...); err != nil {
		return nil, 0, r.fail(ctx, err, nil, "failed to list placements")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"total": total,
		"page":  page.Page,
		"limit": page.Limit,
	}).Debugf("Listed %s", placementsTable)
	return placements, total, nil
}

// Find returns a placement visible to access. A nil access skips scoping and enrichment.
func (r *PlacementRepository) Find(ctx context.Context, id uuid.UUID, access *models.AccessContext) (*models.Placement, error) {
	ctx, span := tracing.StartSpan(ctx, "PlacementRepository.Find")
	defer span.End()

	sb := r.selectPlacements(access)
	exprs := []string{sb.Equal("id", id)}
	if visible := placementVisibility(sb, access); visible != "" {
		exprs = append(exprs, visible)
	}
	sb.Where(exprs...)

	query, args := sb.Build()
	var placement models.Placement
	err := r.q(ctx).GetContext(ctx, &placement, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("placement %s does not exist", id)
	}
	if err != nil {
		return nil, r.fail(ctx, err, map[string]any{"placement_id": id}, "failed to get placement")
	}
	return &placement, nil
}

// Create inserts a placement including its attribution snapshot.
func (r *PlacementRepository) Create(ctx context.Context, placement *models.Placement) error {
	ctx, span := tracing.StartSpan(ctx, "PlacementRepository.Create")
	defer span.End()

	if placement.ID == uuid.Nil {
		placement.ID = uuid.New()
	}

	values := append(append([]any{
		placement.ID, placement.ApplicationID, placement.CandidateID, placement.JobID, placement.CompanyID,
	}, placement.Attribution.Values()...),
		placement.CandidateName, placement.CandidateEmail, placement.JobTitle, placement.CompanyName,
		placement.Salary, placement.FeePercentage, placement.PlacementFee, placement.Status,
		placement.StartDate, placement.GuaranteeDays, placement.GuaranteeExpiresAt, database.Now(), database.Now(),
	)

	ib := database.NewInsertBuilder()
	ib.InsertInto(placementsTable).
		Cols(placementColumns...).
		Values(values...).
		Returning("created_at", "updated_at")

	query, args := ib.Build()
	err := r.q(ctx).QueryRowxContext(ctx, query, args...).Scan(&placement.CreatedAt, &placement.UpdatedAt)
	if database.IsUniqueViolation(err) {
		return apperrors.Conflict("application %s already has a placement", placement.ApplicationID)
	}
	if err != nil {
		return r.fail(ctx, err, map[string]any{"placement_id": placement.ID}, "failed to create placement")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"placement_id":   placement.ID,
		"application_id": placement.ApplicationID,
	}).Debugf("Created %s", placementsTable)
	return nil
}

// Update writes patch. When expected is set the write only applies while the row
// still has that status, which closes the read-validate-write race on transitions.
func (r *PlacementRepository) Update(ctx context.Context, id uuid.UUID, patch models.PlacementPatch, expected *models.PlacementStatus) (*models.Placement, error) {
	ctx, span := tracing.StartSpan(ctx, "PlacementRepository.Update")
	defer span.End()

	ub := database.NewUpdateBuilder()
	assignments := placementAssignments(ub, patch)
	assignments = append(assignments, ub.Assign("updated_at", database.Now()))

	where := []string{ub.Equal("id", id)}
	if expected != nil {
		where = append(where, ub.Equal("status", *expected))
	}

	ub.Update(placementsTable).Set(assignments...).Where(where...)
	ub.SQL("RETURNING " + strings.Join(placementColumns, ", "))

	query, args := ub.Build()
	var placement models.Placement
	err := r.q(ctx).GetContext(ctx, &placement, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, r.missedUpdate(ctx, id, expected)
	}
	if err != nil {
		return nil, r.fail(ctx, err, map[string]any{"placement_id": id, "fields": patch.Fields()}, "failed to update placement")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"placement_id": id,
		"fields":       patch.Fields(),
	}).Debugf("Updated %s", placementsTable)
	return &placement, nil
}

// SoftDelete cancels the placement. Rows are kept for audit.
func (r *PlacementRepository) SoftDelete(ctx context.Context, id uuid.UUID, expected models.PlacementStatus) (*models.Placement, error) {
	ctx, span := tracing.StartSpan(ctx, "PlacementRepository.SoftDelete")
	defer span.End()

	status := models.PlacementStatusCancelled
	return r.Update(ctx, id, models.PlacementPatch{Status: &status}, &expected)
}

// missedUpdate explains why a conditional update touched no row.
func (r *PlacementRepository) missedUpdate(ctx context.Context, id uuid.UUID, expected *models.PlacementStatus) error {
	current, err := r.Find(ctx, id, nil)
	if err != nil {
		return err
	}
	if expected != nil && current.Status != *expected {
		return apperrors.Conflict("placement %s changed status from %s to %s concurrently", id, *expected, current.Status)
	}
	return apperrors.Conflict("placement %s was modified concurrently", id)
}

// selectPlacements selects placement columns plus recruiter_share for recruiter callers.
func (r *PlacementRepository) selectPlacements(access *models.AccessContext) *sqlbuilder.SelectBuilder {
	sb := database.NewSelectBuilder()
	sb.Select(placementColumns...).From(placementsTable)
	if access.IsRecruiter() {
		sb.SelectMore(recruiterShareColumn(sb, *access.RecruiterID))
	}
	return sb
}

// recruiterShareColumn sums the recruiter's split rows, one per role held on the placement.
func recruiterShareColumn(sb *sqlbuilder.SelectBuilder, recruiterID uuid.UUID) string {
	return fmt.Sprintf(
		"COALESCE((SELECT SUM(ps.split_amount) FROM placement_splits ps WHERE ps.placement_id = %s.id AND ps.recruiter_id = %s), 0) AS recruiter_share",
		placementsTable, sb.Var(recruiterID),
	)
}

func applyPlacementScope(sb *sqlbuilder.SelectBuilder, access *models.AccessContext, filters models.PlacementFilters) {
	var exprs []string
	if visible := placementVisibility(sb, access); visible != "" {
		exprs = append(exprs, visible)
	}
	if filters.Status != nil {
		exprs = append(exprs, sb.Equal("status", *filters.Status))
	}
	if filters.JobID != nil {
		exprs = append(exprs, sb.Equal("job_id", *filters.JobID))
	}
	if filters.CandidateID != nil {
		exprs = append(exprs, sb.Equal("candidate_id", *filters.CandidateID))
	}
	if search := strings.TrimSpace(filters.Search); search != "" {
		pattern := "%" + escapeLike(search) + "%"
		exprs = append(exprs, sb.Or(
			sb.ILike("candidate_name", pattern),
			sb.ILike("job_title", pattern),
			sb.ILike("company_name", pattern),
		))
	}
	if len(exprs) > 0 {
		sb.Where(exprs...)
	}
}

// placementVisibility returns the row filter for access, or "" when unrestricted.
// Candidates see their own placements, recruiters see placements where they hold any
// attribution role and company users see placements on their organizations' jobs.
func placementVisibility(sb *sqlbuilder.SelectBuilder, access *models.AccessContext) string {
	if access == nil || access.IsPlatformAdmin {
		return ""
	}

	var exprs []string
	if access.IsCandidate() {
		exprs = append(exprs, sb.Equal("candidate_id", *access.CandidateID))
	}
	if access.IsRecruiter() {
		exprs = append(exprs, NewRoleFilter().Predicate(sb, *access.RecruiterID))
	}
	if access.IsCompanyUser() {
		exprs = append(exprs, sb.In("job_id", organizationJobs(access.OrganizationIDs)))
	}

	if len(exprs) == 0 {
		return "1 = 0"
	}
	return sb.Or(exprs...)
}

// organizationJobs selects the ids of jobs whose company belongs to one of the organizations.
func organizationJobs(organizationIDs []uuid.UUID) *sqlbuilder.SelectBuilder {
	ids := make([]any, 0, len(organizationIDs))
	for _, id := range organizationIDs {
		ids = append(ids, id)
	}

	jobs := database.NewSelectBuilder()
	jobs.Select("jobs.id").
		From(jobsTable).
		Join(companiesTable, "companies.id = jobs.company_id").
		Where(jobs.In("companies.organization_id", ids...))
	return jobs
}

func placementAssignments(ub *sqlbuilder.UpdateBuilder, patch models.PlacementPatch) []string {
	var assignments []string
	if patch.Salary != nil {
		assignments = append(assignments, ub.Assign("salary", *patch.Salary))
	}
	if patch.FeePercentage != nil {
		assignments = append(assignments, ub.Assign("fee_percentage", *patch.FeePercentage))
	}
	if patch.PlacementFee != nil {
		assignments = append(assignments, ub.Assign("placement_fee", *patch.PlacementFee))
	}
	if patch.Status != nil {
		assignments = append(assignments, ub.Assign("status", *patch.Status))
	}
	if patch.StartDate != nil {
		assignments = append(assignments, ub.Assign("start_date", *patch.StartDate))
	}
	if patch.GuaranteeDays != nil {
		assignments = append(assignments, ub.Assign("guarantee_days", *patch.GuaranteeDays))
	}
	if patch.GuaranteeExpiresAt != nil {
		assignments = append(assignments, ub.Assign("guarantee_expires_at", *patch.GuaranteeExpiresAt))
	}
	return assignments
}

func sortColumn(sortBy string) string {
	if column, ok := placementSortColumns[sortBy]; ok {
		return column
	}
	return "created_at"
}

func sortDirection(order models.SortOrder) string {
	if strings.EqualFold(string(order), string(models.SortAsc)) {
		return "ASC"
	}
	return "DESC"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(value string) string {
	return likeEscaper.Replace(value)
}
