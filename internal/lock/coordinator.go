// internal/lock/coordinator.go

// Package lock serializes work on a single actor. Two mechanisms stack: a
// per-actor in-process mutex (unbounded wait) and a best-effort cross-process
// marker file created with O_EXCL. If the marker cannot be taken the request
// proceeds anyway; the mutex alone is correct for a single-process deployment
// and the marker only guards duplicate delivery across processes.
package lock

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/user/postclaw/internal/types"
)

// Record is the marker file payload identifying the lock owner.
type Record struct {
	PID       int             `json:"pid"`
	RequestID types.RequestID `json:"request_id"`
	At        time.Time       `json:"at"`
}

// Age returns how long ago the record was written.
func (r *Record) Age(now time.Time) time.Duration {
	return now.Sub(r.At)
}

// Coordinator hands out per-actor guards.
type Coordinator struct {
	dir        string
	staleAfter time.Duration

	mu    sync.Mutex
	locks map[types.ActorID]*sync.Mutex
}

// NewCoordinator creates a Coordinator writing marker files under dir.
// Markers older than staleAfter are treated as leftovers from a dead process
// and reclaimed.
func NewCoordinator(dir string, staleAfter time.Duration) *Coordinator {
	return &Coordinator{
		dir:        dir,
		staleAfter: staleAfter,
		locks:      make(map[types.ActorID]*sync.Mutex),
	}
}

// MarkerPath returns the marker file path for the given actor.
func (c *Coordinator) MarkerPath(actor types.ActorID) string {
	return filepath.Join(c.dir, string(actor)+".lock")
}

func (c *Coordinator) actorMutex(actor types.ActorID) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()

	if mu, ok := c.locks[actor]; ok {
		return mu
	}
	mu := &sync.Mutex{}
	c.locks[actor] = mu
	return mu
}

// Guard is a held per-actor lock. Release is safe to call more than once and
// must run on every exit path.
type Guard struct {
	mu        *sync.Mutex
	marker    string // empty when the cross-process marker was not taken
	pid       int
	release   sync.Once
	Exclusive bool // true when the marker file was acquired
}

// Acquire blocks until the actor's in-process mutex is held, then attempts
// the cross-process marker exactly once without blocking. Acquire never
// fails: when the marker is busy the guard is returned without it.
func (c *Coordinator) Acquire(actor types.ActorID, request types.RequestID) *Guard {
	mu := c.actorMutex(actor)
	mu.Lock()

	g := &Guard{mu: mu, pid: os.Getpid()}

	marker, err := c.takeMarker(actor, request)
	if err != nil {
		slog.Warn("cross-process lock unavailable, proceeding best-effort",
			"actor_id", string(actor),
			"request_id", string(request),
			"error", err,
		)
		return g
	}
	g.marker = marker
	g.Exclusive = true
	return g
}

// takeMarker creates the marker file with O_EXCL. A stale marker is removed
// and the create retried once.
func (c *Coordinator) takeMarker(actor types.ActorID, request types.RequestID) (string, error) {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return "", fmt.Errorf("create locks dir: %w", err)
	}

	path := c.MarkerPath(actor)
	record := &Record{
		PID:       os.Getpid(),
		RequestID: request,
		At:        time.Now(),
	}
	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("marshal lock record: %w", err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			_, werr := f.Write(data)
			f.Close()
			if werr != nil {
				os.Remove(path)
				return "", fmt.Errorf("write lock record: %w", werr)
			}
			return path, nil
		}
		if !os.IsExist(err) {
			return "", fmt.Errorf("create lock marker: %w", err)
		}

		existing, rerr := ReadRecord(path)
		if rerr != nil || existing.Age(time.Now()) > c.staleAfter {
			// Stale or unreadable marker from a dead process; reclaim it.
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return "", fmt.Errorf("remove stale lock marker: %w", err)
			}
			continue
		}
		return "", fmt.Errorf("actor %s locked by pid %d (age %s)", actor, existing.PID, existing.Age(time.Now()).Round(time.Millisecond))
	}
	return "", fmt.Errorf("actor %s: lock marker contended", actor)
}

// Release removes the marker file (when held and still owned) and unlocks the
// in-process mutex.
func (g *Guard) Release() {
	g.release.Do(func() {
		if g.marker != "" {
			if existing, err := ReadRecord(g.marker); err == nil && existing.PID == g.pid {
				os.Remove(g.marker)
			}
		}
		g.mu.Unlock()
	})
}

// ReadRecord reads and parses a marker file.
func ReadRecord(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("parse lock record: %w", err)
	}
	return &record, nil
}
