package placement

import (
	"context"

	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/apperrors"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// SourcerRegistry is the part of a sourcer registry attribution needs.
type SourcerRegistry interface {
	FindBySubject(ctx context.Context, subjectID uuid.UUID) (*models.SourcerRecord, error)
	IsActive(ctx context.Context, subjectID uuid.UUID) (bool, error)
}

// sources are the records an attribution snapshot is taken from.
type sources struct {
	application *models.Application
	job         *models.Job
}

// GatherAttribution collects the five recruiter roles for a prospective placement.
func (s *Service) GatherAttribution(ctx context.Context, candidateID, jobID, applicationID uuid.UUID) (models.Attribution, error) {
	attribution, _, err := s.gather(ctx, candidateID, jobID, applicationID)
	return attribution, err
}

func (s *Service) gather(ctx context.Context, candidateID, jobID, applicationID uuid.UUID) (models.Attribution, *sources, error) {
	ctx, span := tracing.StartSpan(ctx, "PlacementService.GatherAttribution")
	defer span.End()

	application, err := s.directory.GetApplication(ctx, applicationID)
	if err != nil {
		return models.Attribution{}, nil, err
	}
	job, err := s.directory.GetJob(ctx, jobID)
	if err != nil {
		return models.Attribution{}, nil, err
	}

	candidateSourcer, err := sourcerCredit(ctx, s.candidateSourcers, candidateID)
	if err != nil {
		return models.Attribution{}, nil, err
	}
	companySourcer, err := sourcerCredit(ctx, s.companySourcers, job.CompanyID)
	if err != nil {
		return models.Attribution{}, nil, err
	}

	attribution := models.Attribution{
		CandidateRecruiterID:        application.CandidateRecruiterID,
		CompanyRecruiterID:          job.CompanyRecruiterID,
		JobOwnerRecruiterID:         job.JobOwnerRecruiterID,
		CandidateSourcerRecruiterID: candidateSourcer,
		CompanySourcerRecruiterID:   companySourcer,
	}
	return attribution, &sources{application: application, job: job}, nil
}

// sourcerCredit returns the recruiter credited for subjectID, or nil when the registry
// has no record or the record no longer qualifies.
func sourcerCredit(ctx context.Context, registry SourcerRegistry, subjectID uuid.UUID) (*uuid.UUID, error) {
	record, err := registry.FindBySubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}

	active, err := registry.IsActive(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, nil
	}
	recruiterID := record.RecruiterID
	return &recruiterID, nil
}

func countRoles(attribution models.Attribution) int {
	count := 0
	for _, role := range models.AttributionRoles {
		if attribution.Get(role) != nil {
			count++
		}
	}
	return count
}

// checkSources verifies the application can produce a placement for candidate and job.
func checkSources(src *sources, candidateID, jobID uuid.UUID) error {
	application := src.application
	if application.Stage != models.ApplicationStageHired {
		return apperrors.Validation("application %s is in stage %q, a placement requires %q", application.ID, application.Stage, models.ApplicationStageHired)
	}
	if application.CandidateID != candidateID || application.JobID != jobID {
		return apperrors.Validation("application %s does not belong to candidate %s and job %s", application.ID, candidateID, jobID)
	}
	if application.PlacementID != nil {
		return apperrors.Conflict("application %s already has placement %s", application.ID, *application.PlacementID)
	}
	return nil
}
