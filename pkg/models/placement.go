package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PlacementStatus string

const (
	PlacementStatusPending   PlacementStatus = "pending"
	PlacementStatusConfirmed PlacementStatus = "confirmed"
	PlacementStatusActive    PlacementStatus = "active"
	PlacementStatusCompleted PlacementStatus = "completed"
	PlacementStatusCancelled PlacementStatus = "cancelled"
)

func (s PlacementStatus) IsValid() bool {
	switch s {
	case PlacementStatusPending, PlacementStatusConfirmed, PlacementStatusActive,
		PlacementStatusCompleted, PlacementStatusCancelled:
		return true
	}
	return false
}

// DisplaySnapshot holds names copied onto the placement at creation for listing and search.
type DisplaySnapshot struct {
	CandidateName  *string `db:"candidate_name" json:"candidate_name,omitempty"`
	CandidateEmail *string `db:"candidate_email" json:"candidate_email,omitempty"`
	JobTitle       *string `db:"job_title" json:"job_title,omitempty"`
	CompanyName    *string `db:"company_name" json:"company_name,omitempty"`
}

// Placement is a confirmed hire. It is a financial record and is never physically removed.
type Placement struct {
	ID            uuid.UUID `db:"id" json:"id"`
	ApplicationID uuid.UUID `db:"application_id" json:"application_id"`
	CandidateID   uuid.UUID `db:"candidate_id" json:"candidate_id"`
	JobID         uuid.UUID `db:"job_id" json:"job_id"`
	CompanyID     uuid.UUID `db:"company_id" json:"company_id"`

	Attribution
	DisplaySnapshot

	Salary             decimal.Decimal `db:"salary" json:"salary"`
	FeePercentage      decimal.Decimal `db:"fee_percentage" json:"fee_percentage"`
	PlacementFee       decimal.Decimal `db:"placement_fee" json:"placement_fee"`
	Status             PlacementStatus `db:"status" json:"status"`
	StartDate          time.Time       `db:"start_date" json:"start_date"`
	GuaranteeDays      int             `db:"guarantee_days" json:"guarantee_days"`
	GuaranteeExpiresAt time.Time       `db:"guarantee_expires_at" json:"guarantee_expires_at"`
	CreatedAt          time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at" json:"updated_at"`

	// RecruiterShare is only populated when a recruiter reads the placement.
	RecruiterShare *decimal.Decimal `db:"recruiter_share" json:"recruiter_share,omitempty"`
}

// PlacementPatch carries the mutable placement fields. Attribution and display
// snapshots are deliberately absent.
type PlacementPatch struct {
	Salary        *decimal.Decimal `json:"salary,omitempty"`
	FeePercentage *decimal.Decimal `json:"fee_percentage,omitempty"`
	Status        *PlacementStatus `json:"status,omitempty"`
	StartDate     *time.Time       `json:"start_date,omitempty"`
	GuaranteeDays *int             `json:"guarantee_days,omitempty"`

	PlacementFee       *decimal.Decimal `json:"-"`
	GuaranteeExpiresAt *time.Time       `json:"-"`
}

// Fields lists the columns the patch sets, in a stable order.
func (p PlacementPatch) Fields() []string {
	fields := []string{}
	if p.Salary != nil {
		fields = append(fields, "salary")
	}
	if p.FeePercentage != nil {
		fields = append(fields, "fee_percentage")
	}
	if p.PlacementFee != nil {
		fields = append(fields, "placement_fee")
	}
	if p.Status != nil {
		fields = append(fields, "status")
	}
	if p.StartDate != nil {
		fields = append(fields, "start_date")
	}
	if p.GuaranteeDays != nil {
		fields = append(fields, "guarantee_days")
	}
	if p.GuaranteeExpiresAt != nil {
		fields = append(fields, "guarantee_expires_at")
	}
	return fields
}

func (p PlacementPatch) IsEmpty() bool {
	return len(p.Fields()) == 0
}

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// PlacementFilters narrows a placement listing.
type PlacementFilters struct {
	Search      string
	Status      *PlacementStatus
	JobID       *uuid.UUID
	CandidateID *uuid.UUID
	SortBy      string
	SortOrder   SortOrder
}

// CreatePlacementInput is what a caller supplies to record a placement directly.
type CreatePlacementInput struct {
	ApplicationID uuid.UUID        `json:"application_id" validate:"required"`
	CandidateID   uuid.UUID        `json:"candidate_id" validate:"required"`
	JobID         uuid.UUID        `json:"job_id" validate:"required"`
	StartDate     time.Time        `json:"start_date" validate:"required"`
	Salary        *decimal.Decimal `json:"salary" validate:"required"`
	FeePercentage *decimal.Decimal `json:"fee_percentage" validate:"required"`
	GuaranteeDays *int             `json:"guarantee_days,omitempty" validate:"omitempty,min=0"`
}

// FromApplicationInput overrides terms when a placement is created from a hired application.
// Unset fields fall back to the application and job.
type FromApplicationInput struct {
	StartDate     *time.Time       `json:"start_date,omitempty"`
	Salary        *decimal.Decimal `json:"salary,omitempty"`
	FeePercentage *decimal.Decimal `json:"fee_percentage,omitempty"`
	GuaranteeDays *int             `json:"guarantee_days,omitempty" validate:"omitempty,min=0"`
}
