package models

import "github.com/google/uuid"

// Role is a business role a caller may hold.
type Role string

const (
	RolePlatformAdmin Role = "platform_admin"
	RoleCompanyAdmin  Role = "company_admin"
	RoleHiringManager Role = "hiring_manager"
	RoleRecruiter     Role = "recruiter"
	RoleCandidate     Role = "candidate"
)

// AccessContext describes which identities a caller controls. It is derived per request.
type AccessContext struct {
	IdentityUserID  string      `json:"identity_user_id"`
	UserID          uuid.UUID   `json:"user_id"`
	CandidateID     *uuid.UUID  `json:"candidate_id,omitempty"`
	RecruiterID     *uuid.UUID  `json:"recruiter_id,omitempty"`
	OrganizationIDs []uuid.UUID `json:"organization_ids"`
	Roles           []Role      `json:"roles"`
	IsPlatformAdmin bool        `json:"is_platform_admin"`
}

func (a *AccessContext) HasRole(role Role) bool {
	if a == nil {
		return false
	}
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsRecruiter reports whether the caller acts as a recruiter.
func (a *AccessContext) IsRecruiter() bool {
	return a != nil && a.RecruiterID != nil && a.HasRole(RoleRecruiter)
}

func (a *AccessContext) IsCandidate() bool {
	return a != nil && a.CandidateID != nil
}

// IsCompanyUser reports whether the caller belongs to at least one hiring organization.
func (a *AccessContext) IsCompanyUser() bool {
	if a == nil || len(a.OrganizationIDs) == 0 {
		return false
	}
	return a.HasRole(RoleCompanyAdmin) || a.HasRole(RoleHiringManager)
}

// IsHiringManagerOnly is true when hiring_manager is the caller's highest business role.
func (a *AccessContext) IsHiringManagerOnly() bool {
	if a == nil || a.IsPlatformAdmin {
		return false
	}
	return a.HasRole(RoleHiringManager) && !a.HasRole(RoleCompanyAdmin) && !a.HasRole(RoleRecruiter)
}

func (a *AccessContext) ControlsOrganization(organizationID uuid.UUID) bool {
	if a == nil {
		return false
	}
	for _, id := range a.OrganizationIDs {
		if id == organizationID {
			return true
		}
	}
	return false
}

// IsRecruiterID reports whether id is the caller's own recruiter identity.
func (a *AccessContext) IsRecruiterID(id uuid.UUID) bool {
	return a != nil && a.RecruiterID != nil && *a.RecruiterID == id
}

// User is a platform account keyed by the identity provider subject.
type User struct {
	ID             uuid.UUID `db:"id" json:"id"`
	IdentityUserID string    `db:"identity_user_id" json:"identity_user_id"`
	Email          string    `db:"email" json:"email"`
	Name           *string   `db:"name" json:"name,omitempty"`
}

// Membership links a user to an organization with a role.
type Membership struct {
	UserID         uuid.UUID `db:"user_id" json:"user_id"`
	OrganizationID uuid.UUID `db:"organization_id" json:"organization_id"`
	Role           Role      `db:"role" json:"role"`
}
