package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const ApplicationStageHired = "hired"

// Application is owned by the applications domain and read here.
type Application struct {
	ID                   uuid.UUID           `db:"id" json:"id"`
	CandidateID          uuid.UUID           `db:"candidate_id" json:"candidate_id"`
	JobID                uuid.UUID           `db:"job_id" json:"job_id"`
	CandidateRecruiterID *uuid.UUID          `db:"candidate_recruiter_id" json:"candidate_recruiter_id"`
	Stage                string              `db:"stage" json:"stage"`
	Salary               decimal.NullDecimal `db:"salary" json:"salary"`
	PlacementID          *uuid.UUID          `db:"placement_id" json:"placement_id,omitempty"`
	HiredAt              *time.Time          `db:"hired_at" json:"hired_at,omitempty"`
}

// Job is owned by the jobs domain and read here.
type Job struct {
	ID                  uuid.UUID           `db:"id" json:"id"`
	CompanyID           uuid.UUID           `db:"company_id" json:"company_id"`
	Title               string              `db:"title" json:"title"`
	CompanyRecruiterID  *uuid.UUID          `db:"company_recruiter_id" json:"company_recruiter_id"`
	JobOwnerRecruiterID *uuid.UUID          `db:"job_owner_recruiter_id" json:"job_owner_recruiter_id"`
	FeePercentage       decimal.NullDecimal `db:"fee_percentage" json:"fee_percentage"`
	GuaranteeDays       *int                `db:"guarantee_days" json:"guarantee_days"`
}

type Candidate struct {
	ID       uuid.UUID  `db:"id" json:"id"`
	UserID   *uuid.UUID `db:"user_id" json:"user_id,omitempty"`
	FullName string     `db:"full_name" json:"full_name"`
	Email    *string    `db:"email" json:"email,omitempty"`
}

type Company struct {
	ID             uuid.UUID `db:"id" json:"id"`
	OrganizationID uuid.UUID `db:"organization_id" json:"organization_id"`
	Name           string    `db:"name" json:"name"`
}

type RecruiterStatus string

const (
	RecruiterStatusActive    RecruiterStatus = "active"
	RecruiterStatusPending   RecruiterStatus = "pending"
	RecruiterStatusSuspended RecruiterStatus = "suspended"
)

type Recruiter struct {
	ID     uuid.UUID       `db:"id" json:"id"`
	UserID uuid.UUID       `db:"user_id" json:"user_id"`
	Status RecruiterStatus `db:"status" json:"status"`
}
