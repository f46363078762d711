package startup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
)

// StartupDependency is one external resource the service needs before it accepts traffic.
// DependsOn names dependencies that must start first.
type StartupDependency interface {
	GetName() string
	DependsOn() []string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type StartupStatus int

const (
	StartupStatusPending StartupStatus = iota
	StartupStatusStarted
	StartupStatusStopped
	StartupStatusFailed
)

// Startup brings dependencies up in dependency order. A failed pass is retried after a
// fibonacci number of seconds until maxAttempts passes have run. Dependencies that came
// up in an earlier pass are not restarted.
type Startup struct {
	logger       ectologger.Logger
	maxAttempts  int
	dependencies map[string]StartupDependency
	registered   []string
	statuses     map[string]StartupStatus
	started      []string
}

func NewStartup(logger ectologger.Logger, maxAttempts int) *Startup {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Startup{
		logger:       logger,
		maxAttempts:  maxAttempts,
		dependencies: make(map[string]StartupDependency),
		statuses:     make(map[string]StartupStatus),
	}
}

// AddDependency registers a dependency. Registration order breaks ties between
// dependencies that do not depend on each other.
func (s *Startup) AddDependency(dependency StartupDependency) {
	name := dependency.GetName()
	if _, ok := s.dependencies[name]; !ok {
		s.registered = append(s.registered, name)
	}
	s.dependencies[name] = dependency
}

func (s *Startup) Start(ctx context.Context) error {
	var lastErr error
	wait, next := 1, 1

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		log := s.logger.WithContext(ctx).WithField("attempt", attempt)
		log.Infof("startup attempt %d/%d", attempt, s.maxAttempts)

		lastErr = s.startAll(ctx)
		if lastErr == nil {
			return nil
		}
		log.WithError(lastErr).Error("startup attempt failed")

		if attempt == s.maxAttempts {
			break
		}
		log.Infof("retrying startup in %ds", wait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(wait) * time.Second):
		}
		wait, next = next, wait+next
	}

	return fmt.Errorf("startup failed after %d attempts: %w", s.maxAttempts, lastErr)
}

func (s *Startup) startAll(ctx context.Context) error {
	for _, name := range s.registered {
		if err := s.start(ctx, name, map[string]bool{}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Startup) start(ctx context.Context, name string, visiting map[string]bool) error {
	if s.statuses[name] == StartupStatusStarted {
		return nil
	}
	dependency, ok := s.dependencies[name]
	if !ok {
		return fmt.Errorf("unknown startup dependency %q", name)
	}
	if visiting[name] {
		return fmt.Errorf("startup dependency cycle at %q", name)
	}
	visiting[name] = true

	for _, required := range dependency.DependsOn() {
		if err := s.start(ctx, required, visiting); err != nil {
			return err
		}
	}

	log := s.logger.WithContext(ctx).WithField("dependency", name)
	log.Info("starting dependency")
	s.statuses[name] = StartupStatusPending
	if err := dependency.Start(ctx); err != nil {
		s.statuses[name] = StartupStatusFailed
		return fmt.Errorf("starting %s: %w", name, err)
	}
	s.statuses[name] = StartupStatusStarted
	s.started = append(s.started, name)
	log.Info("dependency started")
	return nil
}

// Stop stops started dependencies in reverse start order. Every dependency gets a Stop
// call even when an earlier one fails; the failures are joined.
func (s *Startup) Stop(ctx context.Context) error {
	var errs []error
	for i := len(s.started) - 1; i >= 0; i-- {
		name := s.started[i]
		log := s.logger.WithContext(ctx).WithField("dependency", name)
		if err := s.dependencies[name].Stop(ctx); err != nil {
			log.WithError(err).Error("failed to stop dependency")
			errs = append(errs, fmt.Errorf("stopping %s: %w", name, err))
			continue
		}
		s.statuses[name] = StartupStatusStopped
		log.Info("dependency stopped")
	}
	s.started = nil
	return errors.Join(errs...)
}

// Status reports the last known state of a dependency.
func (s *Startup) Status(name string) StartupStatus {
	return s.statuses[name]
}
