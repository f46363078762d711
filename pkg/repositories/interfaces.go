package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/models"
)

// IdentityRepo defines the lookups used to resolve a caller's access context
type IdentityRepo interface {
	GetUserByIdentity(ctx context.Context, identityUserID string) (*models.User, error)
	ListMemberships(ctx context.Context, userID uuid.UUID) ([]models.Membership, error)
	GetCandidateByUserID(ctx context.Context, userID uuid.UUID) (*models.Candidate, error)
	GetRecruiterByUserID(ctx context.Context, userID uuid.UUID) (*models.Recruiter, error)
}

// DirectoryRepo defines read access to the marketplace records placements are built from
type DirectoryRepo interface {
	GetApplication(ctx context.Context, id uuid.UUID) (*models.Application, error)
	MarkApplicationHired(ctx context.Context, id, placementID uuid.UUID, hiredAt time.Time) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	GetCandidate(ctx context.Context, id uuid.UUID) (*models.Candidate, error)
	GetCompany(ctx context.Context, id uuid.UUID) (*models.Company, error)
	GetRecruiter(ctx context.Context, id uuid.UUID) (*models.Recruiter, error)
}

// PlacementRepo defines the interface for placement repository operations
type PlacementRepo interface {
	List(ctx context.Context, access *models.AccessContext, filters models.PlacementFilters, page models.Pagination) ([]models.Placement, int, error)
	Find(ctx context.Context, id uuid.UUID, access *models.AccessContext) (*models.Placement, error)
	Create(ctx context.Context, placement *models.Placement) error
	Update(ctx context.Context, id uuid.UUID, patch models.PlacementPatch, expected *models.PlacementStatus) (*models.Placement, error)
	SoftDelete(ctx context.Context, id uuid.UUID, expected models.PlacementStatus) (*models.Placement, error)
}

// SourcerRepo defines the interface shared by the company and candidate sourcer registries
type SourcerRepo interface {
	Kind() models.SubjectKind
	FindActiveBySubject(ctx context.Context, subjectID uuid.UUID) (*models.SourcerRecord, error)
	GetByID(ctx context.Context, id uuid.UUID, access *models.AccessContext) (*models.SourcerRecord, error)
	List(ctx context.Context, access *models.AccessContext, filters models.SourcerFilters, page models.Pagination) ([]models.SourcerRecord, int, error)
	Create(ctx context.Context, record *models.SourcerRecord) error
	Update(ctx context.Context, id uuid.UUID, patch models.SourcerPatch) (*models.SourcerRecord, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

var (
	_ IdentityRepo  = (*IdentityRepository)(nil)
	_ DirectoryRepo = (*DirectoryRepository)(nil)
	_ PlacementRepo = (*PlacementRepository)(nil)
	_ SourcerRepo   = (*SourcerRepository)(nil)
)
