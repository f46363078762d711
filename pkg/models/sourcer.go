package models

import (
	"time"

	"github.com/google/uuid"
)

// SubjectKind names what a sourcer registry tracks credit for.
type SubjectKind string

const (
	SubjectCompany   SubjectKind = "company"
	SubjectCandidate SubjectKind = "candidate"
)

type SourcerStatus string

const (
	SourcerStatusPending    SourcerStatus = "pending"
	SourcerStatusActive     SourcerStatus = "active"
	SourcerStatusDeclined   SourcerStatus = "declined"
	SourcerStatusTerminated SourcerStatus = "terminated"
)

func (s SourcerStatus) IsValid() bool {
	switch s {
	case SourcerStatusPending, SourcerStatusActive, SourcerStatusDeclined, SourcerStatusTerminated:
		return true
	}
	return false
}

// SourcerRecord credits a recruiter with originating a company or candidate relationship.
type SourcerRecord struct {
	ID                    uuid.UUID     `db:"id" json:"id"`
	SubjectID             uuid.UUID     `db:"subject_id" json:"-"`
	RecruiterID           uuid.UUID     `db:"recruiter_id" json:"recruiter_id"`
	Status                SourcerStatus `db:"status" json:"status"`
	RelationshipStartDate time.Time     `db:"relationship_start_date" json:"relationship_start_date"`
	RelationshipEndDate   *time.Time    `db:"relationship_end_date" json:"relationship_end_date,omitempty"`
	TerminationReason     *string       `db:"termination_reason" json:"termination_reason,omitempty"`
	ProtectionExpiresAt   *time.Time    `db:"protection_expires_at" json:"protection_expires_at,omitempty"`
	CreatedAt             time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time     `db:"updated_at" json:"updated_at"`

	Kind        SubjectKind `db:"-" json:"-"`
	CompanyID   *uuid.UUID  `db:"-" json:"company_id,omitempty"`
	CandidateID *uuid.UUID  `db:"-" json:"candidate_id,omitempty"`
}

// BindKind exposes the subject under the key matching the registry it came from.
func (r *SourcerRecord) BindKind(kind SubjectKind) {
	r.Kind = kind
	subject := r.SubjectID
	switch kind {
	case SubjectCompany:
		r.CompanyID = &subject
	case SubjectCandidate:
		r.CandidateID = &subject
	}
}

// GrantsProtection reports whether the record still protects its subject at now.
// Records without an expiry protect for as long as they stay active.
func (r *SourcerRecord) GrantsProtection(now time.Time) bool {
	if r == nil || r.Status != SourcerStatusActive {
		return false
	}
	return r.ProtectionExpiresAt == nil || now.Before(*r.ProtectionExpiresAt)
}

type SourcerPatch struct {
	Status              *SourcerStatus `json:"status,omitempty"`
	TerminationReason   *string        `json:"termination_reason,omitempty"`
	RelationshipEndDate *time.Time     `json:"relationship_end_date,omitempty"`
	ProtectionExpiresAt *time.Time     `json:"protection_expires_at,omitempty"`
}

func (p SourcerPatch) Fields() []string {
	var fields []string
	if p.Status != nil {
		fields = append(fields, "status")
	}
	if p.TerminationReason != nil {
		fields = append(fields, "termination_reason")
	}
	if p.RelationshipEndDate != nil {
		fields = append(fields, "relationship_end_date")
	}
	if p.ProtectionExpiresAt != nil {
		fields = append(fields, "protection_expires_at")
	}
	return fields
}

type SourcerFilters struct {
	Status      *SourcerStatus
	SubjectID   *uuid.UUID
	RecruiterID *uuid.UUID
}

// ProtectionStatus is the public projection of a subject's sourcer protection.
type ProtectionStatus struct {
	HasProtection       bool       `json:"has_protection"`
	SourcerRecruiterID  *uuid.UUID `json:"sourcer_recruiter_id,omitempty"`
	SourcedAt           *time.Time `json:"sourced_at,omitempty"`
	ProtectionExpiresAt *time.Time `json:"protection_expires_at,omitempty"`
}

// CreateSourcerInput claims sourcing credit for a subject. RecruiterID defaults to the
// caller's own recruiter identity.
type CreateSourcerInput struct {
	SubjectID             uuid.UUID      `json:"-"`
	RecruiterID           *uuid.UUID     `json:"recruiter_id,omitempty"`
	Status                *SourcerStatus `json:"status,omitempty"`
	RelationshipStartDate *time.Time     `json:"relationship_start_date,omitempty"`
	ProtectionExpiresAt   *time.Time     `json:"protection_expires_at,omitempty"`
	ProtectionWindowDays  *int           `json:"protection_window_days,omitempty" validate:"omitempty,min=1"`
}
