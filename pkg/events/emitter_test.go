package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/models"
)

type recordingPublisher struct {
	mu       sync.Mutex
	messages []*kafka.Message
	ctxErrs  []error
	err      error
	delay    time.Duration
	release  chan struct{}
}

func (p *recordingPublisher) Publish(ctx context.Context, msg *kafka.Message) error {
	if p.release != nil {
		<-p.release
	}
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ctxErrs = append(p.ctxErrs, ctx.Err())
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, msg)
	return nil
}

func (p *recordingPublisher) sent() []*kafka.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*kafka.Message(nil), p.messages...)
}

func flush(t *testing.T, emitter *events.Emitter) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, emitter.Close(ctx))
}

func noopLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func ptr(id uuid.UUID) *uuid.UUID {
	return &id
}

func TestEmitter_EmitPlacementCreated(t *testing.T) {
	publisher := &recordingPublisher{}
	emitter := events.NewEmitter(publisher, noopLogger(), events.Options{})

	r1, r2, r3, r4, r5 := uuid.New(), uuid.New(), uuid.New(), uuid.New(), uuid.New()
	placement := &models.Placement{
		ID:            uuid.New(),
		ApplicationID: uuid.New(),
		Attribution: models.Attribution{
			CandidateRecruiterID:        ptr(r1),
			CompanyRecruiterID:          ptr(r2),
			JobOwnerRecruiterID:         ptr(r3),
			CandidateSourcerRecruiterID: ptr(r4),
			CompanySourcerRecruiterID:   ptr(r5),
		},
		Salary:        decimal.NewFromInt(120000),
		FeePercentage: decimal.NewFromInt(20),
		PlacementFee:  decimal.NewFromInt(24000),
		Status:        models.PlacementStatusPending,
	}

	ctx := appctx.SetRequestID(context.Background(), "req-1")
	require.NoError(t, emitter.EmitPlacementCreated(ctx, placement))
	flush(t, emitter)
	require.Len(t, publisher.sent(), 1)

	msg := publisher.sent()[0]
	assert.Equal(t, "placement.created", msg.EventType)
	assert.Equal(t, placement.ID.String(), msg.Key)
	assert.Equal(t, events.SchemaVersion, msg.Headers["schema_version"])

	var payload map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &payload))
	assert.Equal(t, "placement.created", payload["event_type"])
	assert.Equal(t, "req-1", payload["correlation_id"])
	assert.Equal(t, placement.ID.String(), payload["placement_id"])
	assert.Equal(t, r1.String(), payload["candidate_recruiter_id"])
	assert.Equal(t, r2.String(), payload["company_recruiter_id"])
	assert.Equal(t, r3.String(), payload["job_owner_recruiter_id"])
	assert.Equal(t, r4.String(), payload["candidate_sourcer_recruiter_id"])
	assert.Equal(t, r5.String(), payload["company_sourcer_recruiter_id"])
	assert.Contains(t, payload, "placement_fee")
}

func TestEmitter_EmitSourcer(t *testing.T) {
	tests := []struct {
		kind     models.SubjectKind
		action   events.SourcerAction
		expected string
	}{
		{models.SubjectCompany, events.SourcerActionSourced, "company.sourced"},
		{models.SubjectCompany, events.SourcerActionUpdated, "company.sourcer_updated"},
		{models.SubjectCompany, events.SourcerActionRemoved, "company.sourcer_removed"},
		{models.SubjectCandidate, events.SourcerActionSourced, "candidate.sourced"},
		{models.SubjectCandidate, events.SourcerActionRemoved, "candidate.sourcer_removed"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			publisher := &recordingPublisher{}
			emitter := events.NewEmitter(publisher, noopLogger(), events.Options{})

			record := &models.SourcerRecord{ID: uuid.New(), SubjectID: uuid.New(), RecruiterID: uuid.New(), Status: models.SourcerStatusActive}
			record.BindKind(tt.kind)

			require.NoError(t, emitter.EmitSourcer(context.Background(), tt.action, record, nil))
			flush(t, emitter)
			sent := publisher.sent()
			require.Len(t, sent, 1)
			assert.Equal(t, tt.expected, sent[0].EventType)
			assert.Equal(t, record.SubjectID.String(), sent[0].Key)
		})
	}
}

func TestEmitter_PublishFailures(t *testing.T) {
	t.Run("publisher error does not reach the caller", func(t *testing.T) {
		publisher := &recordingPublisher{err: errors.New("broker down")}
		emitter := events.NewEmitter(publisher, noopLogger(), events.Options{})

		assert.NoError(t, emitter.EmitPlacementDeleted(context.Background(), uuid.New(), models.PlacementStatusActive))
		flush(t, emitter)
		assert.Empty(t, publisher.sent())
	})

	t.Run("synchronous publish returns the error", func(t *testing.T) {
		emitter := events.NewEmitter(&recordingPublisher{err: errors.New("broker down")}, noopLogger(), events.Options{})
		defer flush(t, emitter)

		event := events.PlacementDeletedEvent{BaseEvent: events.BaseEvent{EventType: events.EventTypePlacementDeleted}, PlacementID: uuid.New()}
		assert.EqualError(t, emitter.Publish(context.Background(), event), "broker down")
	})

	t.Run("nil publisher drops events", func(t *testing.T) {
		emitter := events.NewEmitter(nil, noopLogger(), events.Options{})
		assert.NoError(t, emitter.EmitPlacementUpdated(context.Background(), uuid.New(), []string{"salary"}))
		assert.NoError(t, emitter.Close(context.Background()))
	})
}

func TestEmitter_Delivery(t *testing.T) {
	t.Run("slow broker does not hold up the caller", func(t *testing.T) {
		publisher := &recordingPublisher{delay: 300 * time.Millisecond}
		emitter := events.NewEmitter(publisher, noopLogger(), events.Options{})

		id := uuid.New()
		start := time.Now()
		require.NoError(t, emitter.EmitPlacementStatusChanged(context.Background(), id, models.PlacementStatusPending, models.PlacementStatusConfirmed))
		require.NoError(t, emitter.EmitPlacementUpdated(context.Background(), id, []string{"status"}))
		assert.Less(t, time.Since(start), 100*time.Millisecond)

		flush(t, emitter)
		sent := publisher.sent()
		require.Len(t, sent, 2)
		assert.Equal(t, "placement.status_changed", sent[0].EventType)
		assert.Equal(t, "placement.updated", sent[1].EventType)
	})

	t.Run("cancelled request context still delivers", func(t *testing.T) {
		publisher := &recordingPublisher{release: make(chan struct{})}
		emitter := events.NewEmitter(publisher, noopLogger(), events.Options{})

		ctx, cancel := context.WithCancel(appctx.SetRequestID(context.Background(), "req-gone"))
		require.NoError(t, emitter.EmitPlacementDeleted(ctx, uuid.New(), models.PlacementStatusPending))
		cancel()
		close(publisher.release)

		flush(t, emitter)
		require.Len(t, publisher.sent(), 1)
		assert.Equal(t, []error{nil}, publisher.ctxErrs)
	})

	t.Run("publish is bounded by the timeout", func(t *testing.T) {
		publisher := &recordingPublisher{delay: time.Minute}
		emitter := events.NewEmitter(publisher, noopLogger(), events.Options{PublishTimeout: 20 * time.Millisecond})

		require.NoError(t, emitter.EmitPlacementDeleted(context.Background(), uuid.New(), models.PlacementStatusPending))
		flush(t, emitter)
		assert.Empty(t, publisher.sent())
	})

	t.Run("full queue drops instead of blocking", func(t *testing.T) {
		publisher := &recordingPublisher{release: make(chan struct{})}
		emitter := events.NewEmitter(publisher, noopLogger(), events.Options{QueueSize: 1})

		var errs []error
		for i := 0; i < 5; i++ {
			errs = append(errs, emitter.EmitPlacementDeleted(context.Background(), uuid.New(), models.PlacementStatusPending))
		}
		close(publisher.release)
		flush(t, emitter)

		assert.ErrorIs(t, errs[len(errs)-1], events.ErrQueueFull)
		assert.LessOrEqual(t, len(publisher.sent()), 2)
	})

	t.Run("emits after close are rejected", func(t *testing.T) {
		emitter := events.NewEmitter(&recordingPublisher{}, noopLogger(), events.Options{})
		flush(t, emitter)

		err := emitter.EmitPlacementDeleted(context.Background(), uuid.New(), models.PlacementStatusPending)
		assert.ErrorIs(t, err, events.ErrEmitterClosed)
	})
}
