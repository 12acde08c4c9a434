// internal/resolve/diagnostics.go
package resolve

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/user/postclaw/internal/lock"
	"github.com/user/postclaw/internal/types"
)

// Diagnostics writes a snapshot of system state whenever resolution ends
// anomalously. Writes are best-effort: failures are logged and never surface
// to the caller.
type Diagnostics struct {
	root    string // debug artifacts directory
	lockDir string
	store   types.SessionStore
}

// NewDiagnostics creates a Diagnostics writer. root receives one JSON file
// per anomalous event; lockDir is where the coordinator keeps its markers.
func NewDiagnostics(root, lockDir string, store types.SessionStore) *Diagnostics {
	return &Diagnostics{root: root, lockDir: lockDir, store: store}
}

type lockState struct {
	Exists bool         `json:"exists"`
	Record *lock.Record `json:"record,omitempty"`
	AgeMS  int64        `json:"age_ms,omitempty"`
}

type snapshotState struct {
	Exists  bool      `json:"exists"`
	ModTime time.Time `json:"mod_time,omitempty"`
}

type record struct {
	At        time.Time       `json:"at"`
	PID       int             `json:"pid"`
	RequestID types.RequestID `json:"request_id"`
	ActorID   types.ActorID   `json:"actor_id"`
	ChannelID types.ChannelID `json:"channel_id"`
	Reason    Reason          `json:"reason"`

	TrackedActors []types.ActorID      `json:"tracked_actors"`
	LastEvent     types.LifecycleEvent `json:"last_event,omitempty"`
	Lock          lockState            `json:"lock"`
	Snapshot      snapshotState        `json:"snapshot"`
}

// Capture writes the diagnostic artifact and returns its path, or "" when the
// write failed or was skipped.
func (d *Diagnostics) Capture(_ context.Context, req Request, reason Reason) string {
	now := time.Now()
	rec := record{
		At:            now,
		PID:           os.Getpid(),
		RequestID:     req.RequestID,
		ActorID:       req.Actor,
		ChannelID:     req.Channel,
		Reason:        reason,
		TrackedActors: d.store.Tracked(),
	}
	if event, ok := d.store.LastEvent(req.Actor); ok {
		rec.LastEvent = event
	}

	markerPath := filepath.Join(d.lockDir, string(req.Actor)+".lock")
	if lockRec, err := lock.ReadRecord(markerPath); err == nil {
		rec.Lock = lockState{
			Exists: true,
			Record: lockRec,
			AgeMS:  lockRec.Age(now).Milliseconds(),
		}
	}

	if info := d.store.SnapshotInfo(req.Actor); info.Exists {
		rec.Snapshot = snapshotState{Exists: true, ModTime: info.ModTime}
	}

	path, err := d.write(req.Actor, reason, now, &rec)
	if err != nil {
		slog.Warn("diagnostic write failed",
			"actor_id", string(req.Actor),
			"reason", string(reason),
			"error", err,
		)
		return ""
	}
	return path
}

func (d *Diagnostics) write(actor types.ActorID, reason Reason, now time.Time, rec *record) (string, error) {
	if err := os.MkdirAll(d.root, 0o755); err != nil {
		return "", err
	}

	name := now.UTC().Format("20060102T150405.000") + "_" + string(actor) + "_" + string(reason) + ".json"
	path := filepath.Join(d.root, name)

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
