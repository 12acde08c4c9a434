// internal/scheduler/sweeper.go

// Package scheduler runs the background expiry sweep. Expiry itself is pure
// wall-clock (last activity versus the timeout); the sweep only cleans up
// snapshots nobody is asking for anymore, so EVICTED classification works
// even for actors who never come back.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/user/postclaw/internal/delivery"
	"github.com/user/postclaw/internal/lock"
	"github.com/user/postclaw/internal/types"
)

// cronParser accepts both standard 5-field cron expressions and 6-field
// expressions with an optional seconds field.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Sweeper periodically evicts expired sessions and notifies their actors.
type Sweeper struct {
	store       types.SessionStore
	coordinator *lock.Coordinator
	registry    *delivery.Registry
	timeout     time.Duration
	schedule    string
	cron        *cron.Cron
}

// New creates a Sweeper firing on the given cron schedule.
func New(store types.SessionStore, coordinator *lock.Coordinator, registry *delivery.Registry, timeout time.Duration, schedule string) *Sweeper {
	return &Sweeper{
		store:       store,
		coordinator: coordinator,
		registry:    registry,
		timeout:     timeout,
		schedule:    schedule,
		cron:        cron.New(cron.WithParser(cronParser)),
	}
}

// Start registers the sweep as a cron entry and starts the ticker.
func (s *Sweeper) Start() error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		evicted, err := s.SweepOnce(context.Background())
		if err != nil {
			slog.Error("expiry sweep failed", "error", err)
			return
		}
		if evicted > 0 {
			slog.Info("expiry sweep evicted sessions", "count", evicted)
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop stops the cron ticker.
func (s *Sweeper) Stop() {
	s.cron.Stop()
}

// SweepOnce walks every durable session and evicts the expired ones, taking
// the actor's lock so the sweep never races an in-flight request.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	sessions, err := s.store.List(ctx)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	var evicted int
	for _, sess := range sessions {
		if !sess.Expired(now, s.timeout) {
			continue
		}
		if n, err := s.evict(ctx, sess.ActorID, now); err != nil {
			slog.Warn("evict expired session failed", "actor_id", string(sess.ActorID), "error", err)
		} else {
			evicted += n
		}
	}
	return evicted, nil
}

func (s *Sweeper) evict(ctx context.Context, actor types.ActorID, now time.Time) (int, error) {
	guard := s.coordinator.Acquire(actor, types.NewRequestID())
	defer guard.Release()

	// Re-check under the lock: a request may have touched the session while
	// the sweep was scanning.
	sess, _, err := s.store.Get(ctx, actor)
	if err != nil {
		return 0, nil // already gone
	}
	if !sess.Expired(now, s.timeout) {
		return 0, nil
	}

	if err := s.store.Expire(ctx, actor); err != nil {
		return 0, err
	}

	if s.registry != nil {
		key := "telegram:" + string(actor)
		if err := s.registry.Deliver(key, "Your draft sat idle too long and has expired. Send /start to begin again."); err != nil {
			slog.Debug("expiry notification skipped", "actor_id", string(actor), "error", err)
		}
	}
	return 1, nil
}
