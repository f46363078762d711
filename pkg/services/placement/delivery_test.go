package placement_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/services/placement"
	"github.com/Ramsey-B/fern/pkg/services/sourcer"
)

type slowPublisher struct {
	delay time.Duration

	mu    sync.Mutex
	types []string
}

func (p *slowPublisher) Publish(ctx context.Context, msg *kafka.Message) error {
	select {
	case <-time.After(p.delay):
	case <-ctx.Done():
		return ctx.Err()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.types = append(p.types, msg.EventType)
	return nil
}

func TestWritesDoNotWaitForEventDelivery(t *testing.T) {
	w := newWorld(t)
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	publisher := &slowPublisher{delay: 400 * time.Millisecond}
	emitter := events.NewEmitter(publisher, logger, events.Options{PublishTimeout: 5 * time.Second})

	clock := func() time.Time { return now }
	service := placement.NewService(
		w.placements,
		w.directory,
		sourcer.NewService(w.candidateSourcers, w.directory, nil, w.emitter, logger).WithClock(clock),
		sourcer.NewService(w.companySourcers, w.directory, nil, w.emitter, logger).WithClock(clock),
		w.tx,
		emitter,
		logger,
		placement.Options{},
	).WithClock(clock)

	start := time.Now()
	created, err := service.CreatePlacementFromApplication(context.Background(), adminAccess(), w.application.ID, models.FromApplicationInput{})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 200*time.Millisecond, "create waited on the broker")

	confirmed := models.PlacementStatusConfirmed
	start = time.Now()
	_, err = service.UpdatePlacement(context.Background(), adminAccess(), created.ID, models.PlacementPatch{Status: &confirmed})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 200*time.Millisecond, "update waited on the broker")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, emitter.Close(ctx))

	publisher.mu.Lock()
	defer publisher.mu.Unlock()
	assert.Equal(t, []string{"placement.created", "placement.status_changed", "placement.updated"}, publisher.types)
}
