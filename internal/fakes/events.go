package fakes

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/models"
)

// Emitted is one event captured by Emitter.
type Emitted struct {
	Type           events.EventType
	PlacementID    uuid.UUID
	Placement      *models.Placement
	PreviousStatus models.PlacementStatus
	NewStatus      models.PlacementStatus
	Fields         []string
	Sourcer        *models.SourcerRecord
}

// Emitter records events in order. When Err is set every emit fails after recording.
type Emitter struct {
	mu     sync.Mutex
	Events []Emitted
	Err    error
}

func (e *Emitter) record(event Emitted) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Events = append(e.Events, event)
	return e.Err
}

// Types returns the emitted event types in order.
func (e *Emitter) Types() []events.EventType {
	e.mu.Lock()
	defer e.mu.Unlock()
	types := make([]events.EventType, 0, len(e.Events))
	for _, event := range e.Events {
		types = append(types, event.Type)
	}
	return types
}

func (e *Emitter) EmitPlacementCreated(_ context.Context, placement *models.Placement) error {
	copied := *placement
	return e.record(Emitted{Type: events.EventTypePlacementCreated, PlacementID: placement.ID, Placement: &copied})
}

func (e *Emitter) EmitPlacementStatusChanged(_ context.Context, placementID uuid.UUID, previous, next models.PlacementStatus) error {
	return e.record(Emitted{Type: events.EventTypePlacementStatusChanged, PlacementID: placementID, PreviousStatus: previous, NewStatus: next})
}

func (e *Emitter) EmitPlacementUpdated(_ context.Context, placementID uuid.UUID, fields []string) error {
	return e.record(Emitted{Type: events.EventTypePlacementUpdated, PlacementID: placementID, Fields: fields})
}

func (e *Emitter) EmitPlacementDeleted(_ context.Context, placementID uuid.UUID, previous models.PlacementStatus) error {
	return e.record(Emitted{Type: events.EventTypePlacementDeleted, PlacementID: placementID, PreviousStatus: previous})
}

func (e *Emitter) EmitSourcer(_ context.Context, action events.SourcerAction, record *models.SourcerRecord, fields []string) error {
	copied := *record
	return e.record(Emitted{Type: events.SourcerEventType(record.Kind, action), Sourcer: &copied, Fields: fields})
}

// Tx runs fn directly and counts calls.
type Tx struct {
	Calls int
}

func (t *Tx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.Calls++
	return fn(ctx)
}

// Locker serialises fn per key in process and records the keys used.
type Locker struct {
	mu   sync.Mutex
	Keys []string
	Err  error
}

func (l *Locker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Keys = append(l.Keys, key)
	if l.Err != nil {
		return l.Err
	}
	return fn(ctx)
}
