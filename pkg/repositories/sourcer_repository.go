package repositories

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/apperrors"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// sourcerTable describes where one registry stores its records.
type sourcerTable struct {
	kind          models.SubjectKind
	name          string
	subjectColumn string
}

var (
	companySourcers   = sourcerTable{kind: models.SubjectCompany, name: "company_sourcers", subjectColumn: "company_id"}
	candidateSourcers = sourcerTable{kind: models.SubjectCandidate, name: "candidate_sourcers", subjectColumn: "candidate_id"}
)

func (t sourcerTable) columns() []string {
	return []string{
		"id", t.subjectColumn + " AS subject_id", "recruiter_id", "status",
		"relationship_start_date", "relationship_end_date", "termination_reason",
		"protection_expires_at", "created_at", "updated_at",
	}
}

// SourcerRepository stores sourcer records for one subject kind. Company and candidate
// registries share this implementation and differ only in table and subject column.
type SourcerRepository struct {
	*Repository
	table sourcerTable
}

func NewCompanySourcerRepository(db database.DB, logger ectologger.Logger) *SourcerRepository {
	return &SourcerRepository{Repository: NewRepository(db, logger), table: companySourcers}
}

func NewCandidateSourcerRepository(db database.DB, logger ectologger.Logger) *SourcerRepository {
	return &SourcerRepository{Repository: NewRepository(db, logger), table: candidateSourcers}
}

func (r *SourcerRepository) Kind() models.SubjectKind {
	return r.table.kind
}

// FindActiveBySubject returns the active record for a subject, or nil when there is none.
func (r *SourcerRepository) FindActiveBySubject(ctx context.Context, subjectID uuid.UUID) (*models.SourcerRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "SourcerRepository.FindActiveBySubject")
	defer span.End()

	sb := r.selectRecords()
	sb.Where(
		sb.Equal(r.table.subjectColumn, subjectID),
		sb.Equal("status", models.SourcerStatusActive),
	).Limit(1)

	query, args := sb.Build()
	var record models.SourcerRecord
	err := r.q(ctx).GetContext(ctx, &record, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, r.fail(ctx, err, map[string]any{"subject_id": subjectID, "kind": r.table.kind}, "failed to find active sourcer")
	}
	record.BindKind(r.table.kind)
	return &record, nil
}

// GetByID returns a record visible to access. Missing and out-of-scope records are
// reported the same way so hidden records look the same as missing ones.
func (r *SourcerRepository) GetByID(ctx context.Context, id uuid.UUID, access *models.AccessContext) (*models.SourcerRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "SourcerRepository.GetByID")
	defer span.End()

	sb := r.selectRecords()
	exprs := []string{sb.Equal("id", id)}
	if visible := r.visibility(sb, access); visible != "" {
		exprs = append(exprs, visible)
	}
	sb.Where(exprs...)

	query, args := sb.Build()
	var record models.SourcerRecord
	err := r.q(ctx).GetContext(ctx, &record, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("%s sourcer %s not found", r.table.kind, id)
	}
	if err != nil {
		return nil, r.fail(ctx, err, map[string]any{"sourcer_id": id, "kind": r.table.kind}, "failed to get sourcer")
	}
	record.BindKind(r.table.kind)
	return &record, nil
}

// List returns one page of records visible to access.
func (r *SourcerRepository) List(ctx context.Context, access *models.AccessContext, filters models.SourcerFilters, page models.Pagination) ([]models.SourcerRecord, int, error) {
	ctx, span := tracing.StartSpan(ctx, "SourcerRepository.List")
	defer span.End()

	page = page.Normalize()

	countSb := database.NewSelectBuilder()
	countSb.Select("COUNT(*)").From(r.table.name)
	r.applyFilters(countSb, access, filters)

	countQuery, countArgs := countSb.Build()
	var total int
	if err := r.q(ctx).GetContext(ctx, &total, countQuery, countArgs...); err != nil {
		return nil, 0, r.fail(ctx, err, map[string]any{"kind": r.table.kind}, "failed to count sourcers")
	}

	sb := r.selectRecords()
	r.applyFilters(sb, access, filters)
	sb.OrderBy("created_at DESC").Limit(page.Limit).Offset(page.Offset())

	query, args := sb.Build()
	var records []models.SourcerRecord
	if err := r.q(ctx).SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, r.fail(ctx, err, map[string]any{"kind": r.table.kind}, "failed to list sourcers")
	}
	for i := range records {
		records[i].BindKind(r.table.kind)
	}
	return records, total, nil
}

// Create inserts a record. A second active record for the same subject violates the
// partial unique index and is reported as a conflict.
func (r *SourcerRepository) Create(ctx context.Context, record *models.SourcerRecord) error {
	ctx, span := tracing.StartSpan(ctx, "SourcerRepository.Create")
	defer span.End()

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(r.table.name).
		Cols("id", r.table.subjectColumn, "recruiter_id", "status", "relationship_start_date",
			"relationship_end_date", "termination_reason", "protection_expires_at", "created_at", "updated_at").
		Values(record.ID, record.SubjectID, record.RecruiterID, record.Status, record.RelationshipStartDate,
			record.RelationshipEndDate, record.TerminationReason, record.ProtectionExpiresAt, database.Now(), database.Now()).
		Returning("created_at", "updated_at")

	query, args := ib.Build()
	err := r.q(ctx).QueryRowxContext(ctx, query, args...).Scan(&record.CreatedAt, &record.UpdatedAt)
	if database.IsUniqueViolation(err) {
		return apperrors.Conflict("%s %s already has a sourcer assigned", r.table.kind, record.SubjectID)
	}
	if err != nil {
		return r.fail(ctx, err, map[string]any{"subject_id": record.SubjectID, "kind": r.table.kind}, "failed to create sourcer")
	}

	record.BindKind(r.table.kind)
	r.logger.WithContext(ctx).WithFields(map[string]any{
		"sourcer_id":   record.ID,
		"subject_id":   record.SubjectID,
		"recruiter_id": record.RecruiterID,
	}).Debugf("Created %s", r.table.name)
	return nil
}

// Update applies patch and returns the stored record.
func (r *SourcerRepository) Update(ctx context.Context, id uuid.UUID, patch models.SourcerPatch) (*models.SourcerRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "SourcerRepository.Update")
	defer span.End()

	ub := database.NewUpdateBuilder()
	var assignments []string
	if patch.Status != nil {
		assignments = append(assignments, ub.Assign("status", *patch.Status))
	}
	if patch.TerminationReason != nil {
		assignments = append(assignments, ub.Assign("termination_reason", *patch.TerminationReason))
	}
	if patch.RelationshipEndDate != nil {
		assignments = append(assignments, ub.Assign("relationship_end_date", *patch.RelationshipEndDate))
	}
	if patch.ProtectionExpiresAt != nil {
		assignments = append(assignments, ub.Assign("protection_expires_at", *patch.ProtectionExpiresAt))
	}
	assignments = append(assignments, ub.Assign("updated_at", database.Now()))

	ub.Update(r.table.name).Set(assignments...).Where(ub.Equal("id", id))
	ub.SQL("RETURNING " + strings.Join(r.table.columns(), ", "))

	query, args := ub.Build()
	var record models.SourcerRecord
	err := r.q(ctx).GetContext(ctx, &record, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("%s sourcer %s not found", r.table.kind, id)
	}
	if database.IsUniqueViolation(err) {
		return nil, apperrors.Conflict("%s already has an active sourcer", r.table.kind)
	}
	if err != nil {
		return nil, r.fail(ctx, err, map[string]any{"sourcer_id": id, "kind": r.table.kind}, "failed to update sourcer")
	}
	record.BindKind(r.table.kind)
	return &record, nil
}

// Delete removes a record permanently.
func (r *SourcerRepository) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "SourcerRepository.Delete")
	defer span.End()

	db := database.NewDeleteBuilder()
	db.DeleteFrom(r.table.name).Where(db.Equal("id", id))

	query, args := db.Build()
	result, err := r.q(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return r.fail(ctx, err, map[string]any{"sourcer_id": id, "kind": r.table.kind}, "failed to delete sourcer")
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return apperrors.NotFound("%s sourcer %s not found", r.table.kind, id)
	}
	return nil
}

func (r *SourcerRepository) selectRecords() *sqlbuilder.SelectBuilder {
	sb := database.NewSelectBuilder()
	sb.Select(r.table.columns()...).From(r.table.name)
	return sb
}

func (r *SourcerRepository) applyFilters(sb *sqlbuilder.SelectBuilder, access *models.AccessContext, filters models.SourcerFilters) {
	var exprs []string
	if visible := r.visibility(sb, access); visible != "" {
		exprs = append(exprs, visible)
	}
	if filters.Status != nil {
		exprs = append(exprs, sb.Equal("status", *filters.Status))
	}
	if filters.SubjectID != nil {
		exprs = append(exprs, sb.Equal(r.table.subjectColumn, *filters.SubjectID))
	}
	if filters.RecruiterID != nil {
		exprs = append(exprs, sb.Equal("recruiter_id", *filters.RecruiterID))
	}
	if len(exprs) > 0 {
		sb.Where(exprs...)
	}
}

// visibility limits non-admin callers to records they hold as recruiter or whose
// subject they control.
func (r *SourcerRepository) visibility(sb *sqlbuilder.SelectBuilder, access *models.AccessContext) string {
	if access == nil || access.IsPlatformAdmin {
		return ""
	}

	var exprs []string
	if access.IsRecruiter() {
		exprs = append(exprs, sb.Equal("recruiter_id", *access.RecruiterID))
	}
	switch r.table.kind {
	case models.SubjectCompany:
		if access.IsCompanyUser() {
			exprs = append(exprs, sb.In(r.table.subjectColumn, organizationCompanies(access.OrganizationIDs)))
		}
	case models.SubjectCandidate:
		if access.IsCandidate() {
			exprs = append(exprs, sb.Equal(r.table.subjectColumn, *access.CandidateID))
		}
	}

	if len(exprs) == 0 {
		return "1 = 0"
	}
	return sb.Or(exprs...)
}

func organizationCompanies(organizationIDs []uuid.UUID) *sqlbuilder.SelectBuilder {
	ids := make([]any, 0, len(organizationIDs))
	for _, id := range organizationIDs {
		ids = append(ids, id)
	}

	companies := database.NewSelectBuilder()
	companies.Select("id").From(companiesTable).Where(companies.In("organization_id", ids...))
	return companies
}
