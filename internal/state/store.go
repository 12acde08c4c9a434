// internal/state/store.go
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/user/postclaw/internal/types"
)

// Store is a JSON-file-backed session store with a write-through cache.
// Snapshots live at <root>/sessions/<actorID>.json, one file per actor.
type Store struct {
	root string

	mu     sync.RWMutex
	cache  map[types.ActorID]*types.Session
	events map[types.ActorID]types.LifecycleEvent
}

// NewStore creates a Store rooted at the given directory.
func NewStore(root string) *Store {
	return &Store{
		root:   root,
		cache:  make(map[types.ActorID]*types.Session),
		events: make(map[types.ActorID]types.LifecycleEvent),
	}
}

func (s *Store) sessionsDir() string {
	return filepath.Join(s.root, "sessions")
}

// SnapshotPath returns the snapshot file path for the given actor.
func (s *Store) SnapshotPath(actor types.ActorID) string {
	return filepath.Join(s.sessionsDir(), string(actor)+".json")
}

// Get returns the session for the actor. The cache is consulted first; on a
// miss the durable snapshot is loaded and cached. The second return value is
// true when the session was recovered from disk rather than served from cache.
// Returns types.ErrSessionNotFound when neither exists.
//
// The returned session is a private copy; the cache is only changed through
// Update, so unguarded readers never alias a session a writer is mutating.
func (s *Store) Get(_ context.Context, actor types.ActorID) (*types.Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.cache[actor]; ok {
		return cloneSession(sess), false, nil
	}

	sess, err := s.loadSnapshot(actor)
	if err != nil {
		return nil, false, err
	}
	if sess == nil {
		return nil, false, fmt.Errorf("actor %s: %w", actor, types.ErrSessionNotFound)
	}

	s.cache[actor] = sess
	return cloneSession(sess), true, nil
}

// Create makes a new session for the actor at the initial state, caches it,
// and persists the first snapshot.
func (s *Store) Create(_ context.Context, actor types.ActorID) (*types.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	sess := &types.Session{
		ActorID:      actor,
		State:        types.StateStart,
		CreatedAt:    now,
		LastActivity: now,
	}

	if err := s.saveSnapshot(sess); err != nil {
		return nil, err
	}
	s.cache[actor] = sess
	s.events[actor] = types.LifecycleCreated
	return cloneSession(sess), nil
}

// Update writes the session through to cache and disk. The cache keeps its
// own copy, so the caller may go on mutating the session it passed in.
func (s *Store) Update(_ context.Context, sess *types.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.saveSnapshot(sess); err != nil {
		return err
	}
	s.cache[sess.ActorID] = cloneSession(sess)
	s.events[sess.ActorID] = types.LifecycleTouched
	return nil
}

// Delete removes the cache entry and snapshot file. Missing entries and
// missing files are not errors.
func (s *Store) Delete(_ context.Context, actor types.ActorID) error {
	return s.remove(actor, types.LifecycleDeleted)
}

// Expire removes the session like Delete but records an expiry-cleanup
// lifecycle event, so later resolution classifies the actor as evicted.
func (s *Store) Expire(_ context.Context, actor types.ActorID) error {
	return s.remove(actor, types.LifecycleExpired)
}

func (s *Store) remove(actor types.ActorID, event types.LifecycleEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.cache, actor)
	if err := os.Remove(s.SnapshotPath(actor)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove snapshot: %w", err)
	}
	s.events[actor] = event
	return nil
}

// List returns every session with a durable snapshot, preferring the cached
// copy when one exists.
func (s *Store) List(_ context.Context) ([]*types.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.sessionsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read sessions dir: %w", err)
	}

	var sessions []*types.Session
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		actor := types.ActorID(strings.TrimSuffix(name, ".json"))
		if sess, ok := s.cache[actor]; ok {
			sessions = append(sessions, cloneSession(sess))
			continue
		}
		sess, err := s.loadSnapshot(actor)
		if err != nil {
			return nil, err
		}
		if sess != nil {
			sessions = append(sessions, sess)
		}
	}
	return sessions, nil
}

// Tracked returns the actor ids currently held in the cache.
func (s *Store) Tracked() []types.ActorID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	actors := make([]types.ActorID, 0, len(s.cache))
	for actor := range s.cache {
		actors = append(actors, actor)
	}
	return actors
}

// LastEvent returns the last lifecycle event recorded for the actor.
func (s *Store) LastEvent(actor types.ActorID) (types.LifecycleEvent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	event, ok := s.events[actor]
	return event, ok
}

// SnapshotInfo reports whether the actor's snapshot file exists and when it
// was last modified.
func (s *Store) SnapshotInfo(actor types.ActorID) types.SnapshotInfo {
	fi, err := os.Stat(s.SnapshotPath(actor))
	if err != nil {
		return types.SnapshotInfo{}
	}
	return types.SnapshotInfo{Exists: true, ModTime: fi.ModTime()}
}

// cloneSession copies a session including its pointer and slice fields.
func cloneSession(s *types.Session) *types.Session {
	dup := *s
	if s.Location != nil {
		loc := *s.Location
		dup.Location = &loc
	}
	if s.Artifacts != nil {
		dup.Artifacts = append([]types.ArtifactRef(nil), s.Artifacts...)
	}
	return &dup
}

// loadSnapshot reads the actor's snapshot file. Returns (nil, nil) when the
// file does not exist. Caller must hold the lock.
func (s *Store) loadSnapshot(actor types.ActorID) (*types.Session, error) {
	data, err := os.ReadFile(s.SnapshotPath(actor))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var sess types.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &sess, nil
}

// saveSnapshot writes the session atomically. Caller must hold the lock.
func (s *Store) saveSnapshot(sess *types.Session) error {
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := os.MkdirAll(s.sessionsDir(), 0o755); err != nil {
		return fmt.Errorf("create sessions dir: %w", err)
	}

	// Atomic write: write to temp file then rename
	target := s.SnapshotPath(sess.ActorID)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp snapshot: %w", err)
	}
	return nil
}
