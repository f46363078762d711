// Package fakes provides in-memory stand-ins for the repositories and collaborators
// the services depend on. They are used by service and handler tests.
package fakes

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/apperrors"
	"github.com/Ramsey-B/fern/pkg/models"
)

// Directory is an in-memory marketplace directory.
type Directory struct {
	mu           sync.Mutex
	Applications map[uuid.UUID]*models.Application
	Jobs         map[uuid.UUID]*models.Job
	Candidates   map[uuid.UUID]*models.Candidate
	Companies    map[uuid.UUID]*models.Company
	Recruiters   map[uuid.UUID]*models.Recruiter
}

func NewDirectory() *Directory {
	return &Directory{
		Applications: map[uuid.UUID]*models.Application{},
		Jobs:         map[uuid.UUID]*models.Job{},
		Candidates:   map[uuid.UUID]*models.Candidate{},
		Companies:    map[uuid.UUID]*models.Company{},
		Recruiters:   map[uuid.UUID]*models.Recruiter{},
	}
}

// AddRecruiter registers a recruiter with the given account status and returns its id.
func (d *Directory) AddRecruiter(status models.RecruiterStatus) uuid.UUID {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := uuid.New()
	d.Recruiters[id] = &models.Recruiter{ID: id, UserID: uuid.New(), Status: status}
	return id
}

func (d *Directory) GetApplication(_ context.Context, id uuid.UUID) (*models.Application, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	application, ok := d.Applications[id]
	if !ok {
		return nil, apperrors.NotFound("application %s does not exist", id)
	}
	copied := *application
	return &copied, nil
}

func (d *Directory) MarkApplicationHired(_ context.Context, id, placementID uuid.UUID, hiredAt time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	application, ok := d.Applications[id]
	if !ok {
		return apperrors.NotFound("application %s does not exist", id)
	}
	application.PlacementID = &placementID
	application.HiredAt = &hiredAt
	return nil
}

func (d *Directory) GetJob(_ context.Context, id uuid.UUID) (*models.Job, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	job, ok := d.Jobs[id]
	if !ok {
		return nil, apperrors.NotFound("job %s does not exist", id)
	}
	copied := *job
	return &copied, nil
}

func (d *Directory) GetCandidate(_ context.Context, id uuid.UUID) (*models.Candidate, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	candidate, ok := d.Candidates[id]
	if !ok {
		return nil, apperrors.NotFound("candidate %s does not exist", id)
	}
	copied := *candidate
	return &copied, nil
}

func (d *Directory) GetCompany(_ context.Context, id uuid.UUID) (*models.Company, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	company, ok := d.Companies[id]
	if !ok {
		return nil, apperrors.NotFound("company %s does not exist", id)
	}
	copied := *company
	return &copied, nil
}

func (d *Directory) GetRecruiter(_ context.Context, id uuid.UUID) (*models.Recruiter, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	recruiter, ok := d.Recruiters[id]
	if !ok {
		return nil, apperrors.NotFound("recruiter %s does not exist", id)
	}
	copied := *recruiter
	return &copied, nil
}
