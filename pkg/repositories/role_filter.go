package repositories

import (
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/models"
)

// Cond is the part of a go-sqlbuilder builder the predicate builders need.
type Cond interface {
	Equal(field string, value interface{}) string
	Or(orExpr ...string) string
	In(field string, values ...interface{}) string
}

// RoleFilter matches rows where a recruiter occupies any of a set of attribution roles.
type RoleFilter struct {
	roles []models.AttributionRole
}

// NewRoleFilter builds a filter over roles, defaulting to all five attribution roles.
func NewRoleFilter(roles ...models.AttributionRole) RoleFilter {
	if len(roles) == 0 {
		roles = models.AttributionRoles
	}
	return RoleFilter{roles: roles}
}

func (f RoleFilter) Roles() []models.AttributionRole {
	return f.roles
}

// Predicate renders "(col1 = $1 OR col2 = $2 ...)" for recruiterID.
func (f RoleFilter) Predicate(cond Cond, recruiterID uuid.UUID) string {
	exprs := make([]string, 0, len(f.roles))
	for _, role := range f.roles {
		exprs = append(exprs, cond.Equal(role.Column(), recruiterID))
	}
	return cond.Or(exprs...)
}
