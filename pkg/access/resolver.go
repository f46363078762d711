package access

import (
	"context"
	"strings"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/apperrors"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/repositories"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Resolver turns an identity provider subject into the caller's access context.
// It only reads and holds no per-caller state.
type Resolver struct {
	identities repositories.IdentityRepo
	logger     ectologger.Logger
}

func NewResolver(identities repositories.IdentityRepo, logger ectologger.Logger) *Resolver {
	return &Resolver{identities: identities, logger: logger}
}

// Resolve builds the access context for identityUserID. An empty or unknown identity
// is an authentication failure.
func (r *Resolver) Resolve(ctx context.Context, identityUserID string) (*models.AccessContext, error) {
	ctx, span := tracing.StartSpan(ctx, "Resolver.Resolve")
	defer span.End()

	identityUserID = strings.TrimSpace(identityUserID)
	if identityUserID == "" {
		return nil, apperrors.Authentication("caller identity is required")
	}

	user, err := r.identities.GetUserByIdentity(ctx, identityUserID)
	if apperrors.IsNotFound(err) {
		r.logger.WithContext(ctx).WithField("identity_user_id", identityUserID).Warn("Unknown caller identity")
		return nil, apperrors.Authentication("caller identity could not be resolved")
	}
	if err != nil {
		return nil, err
	}

	access := &models.AccessContext{
		IdentityUserID:  identityUserID,
		UserID:          user.ID,
		OrganizationIDs: []uuid.UUID{},
	}

	memberships, err := r.identities.ListMemberships(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	for _, membership := range memberships {
		addRole(access, membership.Role)
		switch membership.Role {
		case models.RolePlatformAdmin:
			access.IsPlatformAdmin = true
		case models.RoleCompanyAdmin, models.RoleHiringManager:
			addOrganization(access, membership)
		}
	}

	candidate, err := r.identities.GetCandidateByUserID(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if candidate != nil {
		id := candidate.ID
		access.CandidateID = &id
		addRole(access, models.RoleCandidate)
	}

	recruiter, err := r.identities.GetRecruiterByUserID(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if recruiter != nil {
		id := recruiter.ID
		access.RecruiterID = &id
		addRole(access, models.RoleRecruiter)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"user_id":           user.ID,
		"roles":             access.Roles,
		"organizations":     len(access.OrganizationIDs),
		"is_platform_admin": access.IsPlatformAdmin,
	}).Debug("Resolved access context")
	return access, nil
}

func addRole(access *models.AccessContext, role models.Role) {
	if !access.HasRole(role) {
		access.Roles = append(access.Roles, role)
	}
}

func addOrganization(access *models.AccessContext, membership models.Membership) {
	if !access.ControlsOrganization(membership.OrganizationID) {
		access.OrganizationIDs = append(access.OrganizationIDs, membership.OrganizationID)
	}
}
