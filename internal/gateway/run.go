// internal/gateway/run.go
package gateway

import (
	"context"
	"time"

	"github.com/user/postclaw/internal/types"
)

// RunStatus represents the lifecycle state of a Run.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run tracks a single execution of an inbound event for an actor.
type Run struct {
	ID        types.RequestID
	Actor     types.ActorID
	Event     *types.InboundEvent
	Status    RunStatus
	Attempts  int
	CreatedAt time.Time
	Ctx       context.Context
	OnReply   func(message string)

	replied bool
}

// Reply sends a message through OnReply and records that the run has already
// answered the actor. Runs are processed on a single goroutine, so no
// synchronisation is needed.
func (r *Run) Reply(message string) {
	if r.OnReply == nil || message == "" {
		return
	}
	r.replied = true
	r.OnReply(message)
}

// Replied reports whether a reply has been sent for this run.
func (r *Run) Replied() bool {
	return r.replied
}

// NewRun creates a Run in the Queued state for the given event, minting a
// request id when the event carries none.
func NewRun(event *types.InboundEvent) *Run {
	if event.RequestID == "" {
		event.RequestID = types.NewRequestID()
	}
	return &Run{
		ID:        event.RequestID,
		Actor:     event.ActorID,
		Event:     event,
		Status:    RunStatusQueued,
		CreatedAt: time.Now(),
	}
}
