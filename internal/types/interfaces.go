// internal/types/interfaces.go
package types

import (
	"context"
	"errors"
	"time"
)

// ErrSessionNotFound is returned by SessionStore.Get when no session exists
// for the actor, in memory or on disk.
var ErrSessionNotFound = errors.New("session not found")

// SnapshotInfo describes the durable snapshot file for an actor.
type SnapshotInfo struct {
	Exists  bool
	ModTime time.Time
}

// SessionStore is a durable keyed store of sessions. Get consults the
// in-memory cache first and falls back to the on-disk snapshot; the second
// return value is true when the session was recovered from disk.
type SessionStore interface {
	Get(ctx context.Context, actor ActorID) (*Session, bool, error)
	Create(ctx context.Context, actor ActorID) (*Session, error)
	Update(ctx context.Context, session *Session) error
	Delete(ctx context.Context, actor ActorID) error
	Expire(ctx context.Context, actor ActorID) error
	List(ctx context.Context) ([]*Session, error)

	Tracked() []ActorID
	LastEvent(actor ActorID) (LifecycleEvent, bool)
	SnapshotInfo(actor ActorID) SnapshotInfo
}

// Generator produces the final post content from a completed session.
// Implementations call external services; output is stored opaquely.
type Generator interface {
	Generate(ctx context.Context, session *Session) (string, error)
}
