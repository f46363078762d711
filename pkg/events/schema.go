package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Ramsey-B/fern/pkg/models"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// EventType defines the type of event
type EventType string

const (
	// Placement events
	EventTypePlacementCreated       EventType = "placement.created"
	EventTypePlacementStatusChanged EventType = "placement.status_changed"
	EventTypePlacementUpdated       EventType = "placement.updated"
	EventTypePlacementDeleted       EventType = "placement.deleted"

	// Company sourcer events
	EventTypeCompanySourced        EventType = "company.sourced"
	EventTypeCompanySourcerUpdated EventType = "company.sourcer_updated"
	EventTypeCompanySourcerRemoved EventType = "company.sourcer_removed"

	// Candidate sourcer events
	EventTypeCandidateSourced        EventType = "candidate.sourced"
	EventTypeCandidateSourcerUpdated EventType = "candidate.sourcer_updated"
	EventTypeCandidateSourcerRemoved EventType = "candidate.sourcer_removed"
)

// SourcerAction is what happened to a sourcer record.
type SourcerAction string

const (
	SourcerActionSourced SourcerAction = "sourced"
	SourcerActionUpdated SourcerAction = "sourcer_updated"
	SourcerActionRemoved SourcerAction = "sourcer_removed"
)

// SourcerEventType names the event for action on a registry of the given kind.
func SourcerEventType(kind models.SubjectKind, action SourcerAction) EventType {
	return EventType(string(kind) + "." + string(action))
}

// Event is anything the emitter can publish.
type Event interface {
	Type() EventType
	// Key partitions the event so one aggregate's events stay ordered.
	Key() string
}

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventType     EventType `json:"event_type"`
	SchemaVersion string    `json:"schema_version"`
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	ActorUserID   string    `json:"actor_user_id,omitempty"`
}

func (b BaseEvent) Type() EventType {
	return b.EventType
}

// PlacementCreatedEvent carries everything the commission consumer needs to split a fee.
type PlacementCreatedEvent struct {
	BaseEvent
	PlacementID   uuid.UUID `json:"placement_id"`
	ApplicationID uuid.UUID `json:"application_id"`
	CandidateID   uuid.UUID `json:"candidate_id"`
	JobID         uuid.UUID `json:"job_id"`
	CompanyID     uuid.UUID `json:"company_id"`
	models.Attribution
	Salary        decimal.Decimal        `json:"salary"`
	FeePercentage decimal.Decimal        `json:"fee_percentage"`
	PlacementFee  decimal.Decimal        `json:"placement_fee"`
	Status        models.PlacementStatus `json:"status"`
	StartDate     time.Time              `json:"start_date"`
}

func (e PlacementCreatedEvent) Key() string { return e.PlacementID.String() }

type PlacementStatusChangedEvent struct {
	BaseEvent
	PlacementID    uuid.UUID              `json:"placement_id"`
	PreviousStatus models.PlacementStatus `json:"previous_status"`
	NewStatus      models.PlacementStatus `json:"new_status"`
}

func (e PlacementStatusChangedEvent) Key() string { return e.PlacementID.String() }

type PlacementUpdatedEvent struct {
	BaseEvent
	PlacementID   uuid.UUID `json:"placement_id"`
	UpdatedFields []string  `json:"updated_fields"`
}

func (e PlacementUpdatedEvent) Key() string { return e.PlacementID.String() }

type PlacementDeletedEvent struct {
	BaseEvent
	PlacementID    uuid.UUID              `json:"placement_id"`
	PreviousStatus models.PlacementStatus `json:"previous_status"`
}

func (e PlacementDeletedEvent) Key() string { return e.PlacementID.String() }

// SourcerEvent is emitted for every change to a company or candidate sourcer record.
type SourcerEvent struct {
	BaseEvent
	SourcerID     uuid.UUID            `json:"sourcer_id"`
	CompanyID     *uuid.UUID           `json:"company_id,omitempty"`
	CandidateID   *uuid.UUID           `json:"candidate_id,omitempty"`
	RecruiterID   uuid.UUID            `json:"recruiter_id"`
	Status        models.SourcerStatus `json:"status"`
	UpdatedFields []string             `json:"updated_fields,omitempty"`
}

// Key groups events by subject so claims and releases on one subject stay ordered.
func (e SourcerEvent) Key() string {
	switch {
	case e.CompanyID != nil:
		return e.CompanyID.String()
	case e.CandidateID != nil:
		return e.CandidateID.String()
	}
	return e.SourcerID.String()
}
