package models

import "github.com/google/uuid"

// AttributionRole is one of the five recruiter positions credited on a placement.
type AttributionRole string

const (
	RoleCandidateRecruiter AttributionRole = "candidate_recruiter"
	RoleCompanyRecruiter   AttributionRole = "company_recruiter"
	RoleJobOwner           AttributionRole = "job_owner"
	RoleCandidateSourcer   AttributionRole = "candidate_sourcer"
	RoleCompanySourcer     AttributionRole = "company_sourcer"
)

// AttributionRoles lists every role in column order.
var AttributionRoles = []AttributionRole{
	RoleCandidateRecruiter,
	RoleCompanyRecruiter,
	RoleJobOwner,
	RoleCandidateSourcer,
	RoleCompanySourcer,
}

// Column returns the placements column that stores the role's recruiter.
func (r AttributionRole) Column() string {
	switch r {
	case RoleCandidateRecruiter:
		return "candidate_recruiter_id"
	case RoleCompanyRecruiter:
		return "company_recruiter_id"
	case RoleJobOwner:
		return "job_owner_recruiter_id"
	case RoleCandidateSourcer:
		return "candidate_sourcer_recruiter_id"
	case RoleCompanySourcer:
		return "company_sourcer_recruiter_id"
	}
	return ""
}

// Attribution is the recruiter snapshot taken when a placement is created.
// It is written once on insert and never re-derived from live job or sourcer data.
type Attribution struct {
	CandidateRecruiterID        *uuid.UUID `db:"candidate_recruiter_id" json:"candidate_recruiter_id"`
	CompanyRecruiterID          *uuid.UUID `db:"company_recruiter_id" json:"company_recruiter_id"`
	JobOwnerRecruiterID         *uuid.UUID `db:"job_owner_recruiter_id" json:"job_owner_recruiter_id"`
	CandidateSourcerRecruiterID *uuid.UUID `db:"candidate_sourcer_recruiter_id" json:"candidate_sourcer_recruiter_id"`
	CompanySourcerRecruiterID   *uuid.UUID `db:"company_sourcer_recruiter_id" json:"company_sourcer_recruiter_id"`
}

// Get returns the recruiter stored for role.
func (a Attribution) Get(role AttributionRole) *uuid.UUID {
	switch role {
	case RoleCandidateRecruiter:
		return a.CandidateRecruiterID
	case RoleCompanyRecruiter:
		return a.CompanyRecruiterID
	case RoleJobOwner:
		return a.JobOwnerRecruiterID
	case RoleCandidateSourcer:
		return a.CandidateSourcerRecruiterID
	case RoleCompanySourcer:
		return a.CompanySourcerRecruiterID
	}
	return nil
}

// RolesOf returns every role recruiterID holds. A recruiter may hold several.
func (a Attribution) RolesOf(recruiterID uuid.UUID) []AttributionRole {
	var roles []AttributionRole
	for _, role := range AttributionRoles {
		if id := a.Get(role); id != nil && *id == recruiterID {
			roles = append(roles, role)
		}
	}
	return roles
}

// Values returns the five recruiter ids in column order for inserts.
func (a Attribution) Values() []any {
	values := make([]any, 0, len(AttributionRoles))
	for _, role := range AttributionRoles {
		values = append(values, a.Get(role))
	}
	return values
}

// AttributionColumns returns the five attribution column names in the same order as Values.
func AttributionColumns() []string {
	columns := make([]string, 0, len(AttributionRoles))
	for _, role := range AttributionRoles {
		columns = append(columns, role.Column())
	}
	return columns
}
