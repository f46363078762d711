// Package events publishes placement and sourcer lifecycle events for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	appctx "github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	DefaultQueueSize      = 1024
	DefaultPublishTimeout = 5 * time.Second
)

// ErrQueueFull is returned by an emit when the delivery queue has no room. The event is dropped.
var ErrQueueFull = errors.New("event queue is full")

// ErrEmitterClosed is returned by an emit after Close.
var ErrEmitterClosed = errors.New("event emitter is closed")

// Publisher is the broker write the emitter depends on.
type Publisher interface {
	Publish(ctx context.Context, msg *kafka.Message) error
}

// Options tunes background delivery. Zero values take the defaults.
type Options struct {
	QueueSize      int
	PublishTimeout time.Duration
}

type delivery struct {
	ctx   context.Context
	event Event
}

// Emitter handles event emission for fern. Emits return once the event is queued; a single
// worker publishes queued events in order, each bounded by the publish timeout, so a slow
// broker never holds up the write that produced the event. A nil publisher turns every emit
// into a no-op, which is how the service runs without a broker.
type Emitter struct {
	publisher Publisher
	logger    ectologger.Logger
	now       func() time.Time
	timeout   time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan delivery
	done   chan struct{}
}

// NewEmitter creates an emitter and starts its delivery worker when publisher is set.
func NewEmitter(publisher Publisher, logger ectologger.Logger, opts Options) *Emitter {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = DefaultPublishTimeout
	}

	e := &Emitter{
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		timeout:   opts.PublishTimeout,
		done:      make(chan struct{}),
	}
	if publisher == nil {
		close(e.done)
		return e
	}
	e.queue = make(chan delivery, opts.QueueSize)
	go e.run()
	return e
}

func (e *Emitter) run() {
	defer close(e.done)
	for d := range e.queue {
		ctx, cancel := context.WithTimeout(d.ctx, e.timeout)
		_ = e.Publish(ctx, d.event)
		cancel()
	}
}

// enqueue hands event to the worker without waiting for delivery. The request context is
// detached from cancellation so a client disconnect does not drop the event, while its
// values (request id, trace span) travel with it.
func (e *Emitter) enqueue(ctx context.Context, event Event) error {
	if e.publisher == nil {
		return e.Publish(ctx, event)
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		e.logger.WithContext(ctx).Warnf("Event emitter closed, dropping %s", event.Type())
		metrics.RecordEventPublished(string(event.Type()), "dropped")
		return ErrEmitterClosed
	}

	select {
	case e.queue <- delivery{ctx: context.WithoutCancel(ctx), event: event}:
		return nil
	default:
		e.logger.WithContext(ctx).Errorf("Event queue full, dropping %s", event.Type())
		metrics.RecordEventPublished(string(event.Type()), "dropped")
		return ErrQueueFull
	}
}

// Close stops accepting events and waits for queued ones to be delivered or for ctx to end.
func (e *Emitter) Close(ctx context.Context) error {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		if e.queue != nil {
			close(e.queue)
		}
	}
	e.mu.Unlock()

	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Publish serializes and sends event synchronously. Errors are logged and counted here and
// returned so callers may decide; the background worker ignores them.
func (e *Emitter) Publish(ctx context.Context, event Event) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.Publish")
	defer span.End()

	if e.publisher == nil {
		e.logger.WithContext(ctx).Debugf("Event publishing disabled, dropping %s", event.Type())
		metrics.RecordEventPublished(string(event.Type()), "disabled")
		return nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		e.logger.WithContext(ctx).WithError(err).Errorf("Failed to marshal %s event", event.Type())
		metrics.RecordEventPublished(string(event.Type()), "error")
		return err
	}

	msg := &kafka.Message{
		Key:       event.Key(),
		EventType: string(event.Type()),
		Value:     data,
		Headers:   map[string]string{"schema_version": SchemaVersion},
	}
	if err := e.publisher.Publish(ctx, msg); err != nil {
		e.logger.WithContext(ctx).WithError(err).WithField("event_type", event.Type()).Errorf("Failed to emit %s event", event.Type())
		metrics.RecordEventPublished(string(event.Type()), "error")
		return err
	}

	metrics.RecordEventPublished(string(event.Type()), "success")
	return nil
}

// EmitPlacementCreated emits placement.created with the attribution snapshot and money fields
func (e *Emitter) EmitPlacementCreated(ctx context.Context, placement *models.Placement) error {
	return e.enqueue(ctx, PlacementCreatedEvent{
		BaseEvent:     e.base(ctx, EventTypePlacementCreated),
		PlacementID:   placement.ID,
		ApplicationID: placement.ApplicationID,
		CandidateID:   placement.CandidateID,
		JobID:         placement.JobID,
		CompanyID:     placement.CompanyID,
		Attribution:   placement.Attribution,
		Salary:        placement.Salary,
		FeePercentage: placement.FeePercentage,
		PlacementFee:  placement.PlacementFee,
		Status:        placement.Status,
		StartDate:     placement.StartDate,
	})
}

// EmitPlacementStatusChanged emits placement.status_changed
func (e *Emitter) EmitPlacementStatusChanged(ctx context.Context, placementID uuid.UUID, previous, next models.PlacementStatus) error {
	return e.enqueue(ctx, PlacementStatusChangedEvent{
		BaseEvent:      e.base(ctx, EventTypePlacementStatusChanged),
		PlacementID:    placementID,
		PreviousStatus: previous,
		NewStatus:      next,
	})
}

// EmitPlacementUpdated emits placement.updated listing the changed fields
func (e *Emitter) EmitPlacementUpdated(ctx context.Context, placementID uuid.UUID, fields []string) error {
	return e.enqueue(ctx, PlacementUpdatedEvent{
		BaseEvent:     e.base(ctx, EventTypePlacementUpdated),
		PlacementID:   placementID,
		UpdatedFields: fields,
	})
}

// EmitPlacementDeleted emits placement.deleted
func (e *Emitter) EmitPlacementDeleted(ctx context.Context, placementID uuid.UUID, previous models.PlacementStatus) error {
	return e.enqueue(ctx, PlacementDeletedEvent{
		BaseEvent:      e.base(ctx, EventTypePlacementDeleted),
		PlacementID:    placementID,
		PreviousStatus: previous,
	})
}

// EmitSourcer emits the company.* or candidate.* event for action on record
func (e *Emitter) EmitSourcer(ctx context.Context, action SourcerAction, record *models.SourcerRecord, fields []string) error {
	return e.enqueue(ctx, SourcerEvent{
		BaseEvent:     e.base(ctx, SourcerEventType(record.Kind, action)),
		SourcerID:     record.ID,
		CompanyID:     record.CompanyID,
		CandidateID:   record.CandidateID,
		RecruiterID:   record.RecruiterID,
		Status:        record.Status,
		UpdatedFields: fields,
	})
}

func (e *Emitter) base(ctx context.Context, eventType EventType) BaseEvent {
	base := BaseEvent{
		EventType:     eventType,
		SchemaVersion: SchemaVersion,
		Timestamp:     e.now(),
		CorrelationID: appctx.GetRequestID(ctx),
	}
	if access := appctx.GetAccess(ctx); access != nil {
		base.ActorUserID = access.UserID.String()
	}
	return base
}
