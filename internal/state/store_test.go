// internal/state/store_test.go
package state

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/user/postclaw/internal/types"
)

func TestStoreCreateThenGet(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	ctx := context.Background()

	actor := types.ActorID("42")
	created, err := store.Create(ctx, actor)
	if err != nil {
		t.Fatal(err)
	}
	if created.State != types.StateStart {
		t.Errorf("expected initial state %s, got %s", types.StateStart, created.State)
	}

	sess, recovered, err := store.Get(ctx, actor)
	if err != nil {
		t.Fatal(err)
	}
	if recovered {
		t.Error("expected cache hit, got recovery")
	}
	if sess.ActorID != actor {
		t.Errorf("expected actor %s, got %s", actor, sess.ActorID)
	}
	if sess.Date != "" || sess.Category != "" || len(sess.Artifacts) != 0 || sess.Narrative != "" {
		t.Error("expected empty collected fields on a fresh session")
	}

	if event, ok := store.LastEvent(actor); !ok || event != types.LifecycleCreated {
		t.Errorf("expected created lifecycle event, got %q", event)
	}
}

func TestStoreGetMissing(t *testing.T) {
	store := NewStore(t.TempDir())

	_, _, err := store.Get(context.Background(), "nobody")
	if !errors.Is(err, types.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestStoreRecoversFromSnapshot(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	actor := types.ActorID("42")

	first := NewStore(dir)
	sess, err := first.Create(ctx, actor)
	if err != nil {
		t.Fatal(err)
	}
	sess.State = types.StateCollectCategory
	sess.Date = "2026-02-12"
	if err := first.Update(ctx, sess); err != nil {
		t.Fatal(err)
	}

	// A fresh store simulates a process restart: the cache is empty and the
	// session must come back from the snapshot file.
	second := NewStore(dir)
	got, recovered, err := second.Get(ctx, actor)
	if err != nil {
		t.Fatal(err)
	}
	if !recovered {
		t.Error("expected recovery from snapshot")
	}
	if got.State != types.StateCollectCategory || got.Date != "2026-02-12" {
		t.Errorf("recovered session lost fields: %+v", got)
	}
}

func TestStoreDeleteTolerant(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	ctx := context.Background()
	actor := types.ActorID("42")

	if _, err := store.Create(ctx, actor); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(ctx, actor); err != nil {
		t.Fatal(err)
	}
	// Deleting again must not fail.
	if err := store.Delete(ctx, actor); err != nil {
		t.Fatal(err)
	}

	if _, _, err := store.Get(ctx, actor); !errors.Is(err, types.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound after delete, got %v", err)
	}
	if event, _ := store.LastEvent(actor); event != types.LifecycleDeleted {
		t.Errorf("expected deleted lifecycle event, got %q", event)
	}
	if info := store.SnapshotInfo(actor); info.Exists {
		t.Error("expected snapshot file removed")
	}
}

func TestStoreExpireRecordsEvent(t *testing.T) {
	store := NewStore(t.TempDir())
	ctx := context.Background()
	actor := types.ActorID("42")

	if _, err := store.Create(ctx, actor); err != nil {
		t.Fatal(err)
	}
	if err := store.Expire(ctx, actor); err != nil {
		t.Fatal(err)
	}
	if event, _ := store.LastEvent(actor); event != types.LifecycleExpired {
		t.Errorf("expected expired lifecycle event, got %q", event)
	}
}

func TestStoreAtomicWriteLeavesNoPartial(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	ctx := context.Background()
	actor := types.ActorID("42")

	sess, err := store.Create(ctx, actor)
	if err != nil {
		t.Fatal(err)
	}
	sess.Narrative = "a perfectly ordinary afternoon at the corner bakery"
	if err := store.Update(ctx, sess); err != nil {
		t.Fatal(err)
	}

	// A leftover temp file from an interrupted write must never shadow the
	// committed snapshot.
	tmp := store.SnapshotPath(actor) + ".tmp"
	if err := os.WriteFile(tmp, []byte(`{"actor_id":"42","trunc`), 0o644); err != nil {
		t.Fatal(err)
	}

	fresh := NewStore(dir)
	got, _, err := fresh.Get(ctx, actor)
	if err != nil {
		t.Fatal(err)
	}
	if got.Narrative != sess.Narrative {
		t.Errorf("expected committed snapshot, got %+v", got)
	}
}

func TestStoreHandsOutPrivateCopies(t *testing.T) {
	store := NewStore(t.TempDir())
	ctx := context.Background()
	actor := types.ActorID("42")

	created, err := store.Create(ctx, actor)
	if err != nil {
		t.Fatal(err)
	}
	created.Date = "2026-02-12"
	created.Artifacts = append(created.Artifacts, types.ArtifactRef{ID: "a"})
	created.Location = &types.Location{Lat: 51.5033, Lng: -0.1196}
	if err := store.Update(ctx, created); err != nil {
		t.Fatal(err)
	}

	// Mutations on a session a caller holds must not show up in what other
	// callers read back; reads and writes share no pointers.
	got, _, err := store.Get(ctx, actor)
	if err != nil {
		t.Fatal(err)
	}
	got.Date = "1999-01-01"
	got.Artifacts[0].ID = "scribbled"
	got.Location.Lat = 0

	again, _, err := store.Get(ctx, actor)
	if err != nil {
		t.Fatal(err)
	}
	if again == got {
		t.Fatal("expected distinct session values from successive gets")
	}
	if again.Date != "2026-02-12" {
		t.Errorf("date mutated through a returned session: %q", again.Date)
	}
	if again.Artifacts[0].ID != "a" {
		t.Errorf("artifact mutated through a returned session: %q", again.Artifacts[0].ID)
	}
	if again.Location.Lat != 51.5033 {
		t.Errorf("location mutated through a returned session: %+v", again.Location)
	}

	list, err := store.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("expected one session, got %d", len(list))
	}
	list[0].Category = "travel"
	if final, _, _ := store.Get(ctx, actor); final.Category != "" {
		t.Errorf("category mutated through a listed session: %q", final.Category)
	}
}

func TestStoreListAndTracked(t *testing.T) {
	store := NewStore(t.TempDir())
	ctx := context.Background()

	for _, actor := range []types.ActorID{"1", "2", "3"} {
		if _, err := store.Create(ctx, actor); err != nil {
			t.Fatal(err)
		}
	}

	list, err := store.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Errorf("expected 3 sessions, got %d", len(list))
	}
	if len(store.Tracked()) != 3 {
		t.Errorf("expected 3 tracked actors, got %d", len(store.Tracked()))
	}
}

func TestStoreExpiredHelper(t *testing.T) {
	sess := &types.Session{LastActivity: time.Now().Add(-time.Hour)}
	if !sess.Expired(time.Now(), 30*time.Minute) {
		t.Error("expected session to be expired")
	}
	if sess.Expired(time.Now(), 2*time.Hour) {
		t.Error("expected session to be live")
	}
}
