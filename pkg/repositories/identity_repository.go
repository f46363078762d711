package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/apperrors"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	usersTable       = "users"
	membershipsTable = "organization_memberships"
)

// IdentityRepository reads the account data the access resolver needs.
type IdentityRepository struct {
	*Repository
}

func NewIdentityRepository(db database.DB, logger ectologger.Logger) *IdentityRepository {
	return &IdentityRepository{Repository: NewRepository(db, logger)}
}

// GetUserByIdentity returns the user for an identity provider subject.
func (r *IdentityRepository) GetUserByIdentity(ctx context.Context, identityUserID string) (*models.User, error) {
	ctx, span := tracing.StartSpan(ctx, "IdentityRepository.GetUserByIdentity")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("id", "identity_user_id", "email", "name").
		From(usersTable).
		Where(sb.Equal("identity_user_id", identityUserID))

	query, args := sb.Build()
	var user models.User
	err := r.q(ctx).GetContext(ctx, &user, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("user %s does not exist", identityUserID)
	}
	if err != nil {
		return nil, r.fail(ctx, err, map[string]any{"identity_user_id": identityUserID}, "failed to get user")
	}
	return &user, nil
}

// ListMemberships returns every organization membership of a user.
func (r *IdentityRepository) ListMemberships(ctx context.Context, userID uuid.UUID) ([]models.Membership, error) {
	ctx, span := tracing.StartSpan(ctx, "IdentityRepository.ListMemberships")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("user_id", "organization_id", "role").
		From(membershipsTable).
		Where(sb.Equal("user_id", userID))

	query, args := sb.Build()
	var memberships []models.Membership
	if err := r.q(ctx).SelectContext(ctx, &memberships, query, args...); err != nil {
		return nil, r.fail(ctx, err, map[string]any{"user_id": userID}, "failed to list memberships")
	}
	return memberships, nil
}

// GetCandidateByUserID returns the candidate profile owned by a user, or nil.
func (r *IdentityRepository) GetCandidateByUserID(ctx context.Context, userID uuid.UUID) (*models.Candidate, error) {
	ctx, span := tracing.StartSpan(ctx, "IdentityRepository.GetCandidateByUserID")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("id", "user_id", "full_name", "email").
		From(candidatesTable).
		Where(sb.Equal("user_id", userID)).
		Limit(1)

	query, args := sb.Build()
	var candidate models.Candidate
	err := r.q(ctx).GetContext(ctx, &candidate, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, r.fail(ctx, err, map[string]any{"user_id": userID}, "failed to get candidate by user")
	}
	return &candidate, nil
}

// GetRecruiterByUserID returns the recruiter account owned by a user, or nil.
func (r *IdentityRepository) GetRecruiterByUserID(ctx context.Context, userID uuid.UUID) (*models.Recruiter, error) {
	ctx, span := tracing.StartSpan(ctx, "IdentityRepository.GetRecruiterByUserID")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("id", "user_id", "status").
		From(recruitersTable).
		Where(sb.Equal("user_id", userID)).
		Limit(1)

	query, args := sb.Build()
	var recruiter models.Recruiter
	err := r.q(ctx).GetContext(ctx, &recruiter, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, r.fail(ctx, err, map[string]any{"user_id": userID}, "failed to get recruiter by user")
	}
	return &recruiter, nil
}
