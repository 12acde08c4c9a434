// internal/flow/machine_test.go
package flow

import (
	"testing"
	"time"

	"github.com/user/postclaw/internal/types"
)

func newSession() *types.Session {
	now := time.Now()
	return &types.Session{
		ActorID:      "42",
		State:        types.StateStart,
		CreatedAt:    now,
		LastActivity: now,
	}
}

func TestAdvanceHappyPath(t *testing.T) {
	sess := newSession()
	photo := &types.ArtifactRef{ID: types.NewArtifactID(), Filename: "photo_1.jpg", AddedAt: time.Now()}

	steps := []struct {
		in   Input
		want types.State
	}{
		{Input{Kind: types.KindBegin}, types.StateCollectDate},
		{Input{Kind: types.KindText, Text: "2026-02-12"}, types.StateCollectCategory},
		{Input{Kind: types.KindText, Text: "food"}, types.StateCollectLabel},
		{Input{Kind: types.KindText, Text: "Blue Door Cafe"}, types.StateCollectArtifacts},
		{Input{Kind: types.KindArtifact, Artifact: photo}, types.StateCollectNarrative},
		{Input{Kind: types.KindText, Text: "A long lazy lunch with far too much cake."}, types.StateCollectSupplement},
		{Input{Kind: types.KindText, Text: "skip"}, types.StateReady},
		{Input{Kind: types.KindPublish}, types.StateGenerating},
		{Input{Kind: types.KindPublish}, types.StateCompleted},
	}

	for i, step := range steps {
		res := Advance(sess, step.in)
		if !res.OK {
			t.Fatalf("step %d: unexpected validation failure: %s", i, res.Message)
		}
		if sess.State != step.want {
			t.Fatalf("step %d: expected state %s, got %s", i, step.want, sess.State)
		}
	}

	if sess.Date != "2026-02-12" || sess.Category != "food" || sess.RawLabel != "Blue Door Cafe" {
		t.Errorf("collected fields wrong: %+v", sess)
	}
	if sess.Supplement != "" {
		t.Errorf("expected skipped supplement to stay empty, got %q", sess.Supplement)
	}
	if !sess.GenerationDone {
		t.Error("expected generation-complete flag set")
	}
}

func TestAdvanceInvalidInputLeavesStateUnchanged(t *testing.T) {
	tests := []struct {
		name  string
		state types.State
		setup func(*types.Session)
		in    Input
	}{
		{"bad date", types.StateCollectDate, nil, Input{Kind: types.KindText, Text: "yesterday"}},
		{"unknown category", types.StateCollectCategory, nil, Input{Kind: types.KindText, Text: "xyz"}},
		{"empty label", types.StateCollectLabel, nil, Input{Kind: types.KindText, Text: "  "}},
		{"text instead of photo", types.StateCollectArtifacts, nil, Input{Kind: types.KindText, Text: "no photo"}},
		{"short narrative", types.StateCollectNarrative, nil, Input{Kind: types.KindText, Text: "meh"}},
		{"wrong kind", types.StateCollectDate, nil, Input{Kind: types.KindArtifact, Artifact: &types.ArtifactRef{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := newSession()
			sess.State = tt.state
			if tt.setup != nil {
				tt.setup(sess)
			}

			res := Advance(sess, tt.in)
			if res.OK {
				t.Fatal("expected validation failure")
			}
			if res.Message == "" {
				t.Error("expected a re-prompt message")
			}
			if sess.State != tt.state {
				t.Errorf("state changed on invalid input: %s -> %s", tt.state, sess.State)
			}
		})
	}
}

func TestCancelFromAnyNonTerminalState(t *testing.T) {
	for _, state := range []types.State{
		types.StateStart, types.StateCollectDate, types.StateCollectArtifacts,
		types.StateReady, types.StateGenerating,
	} {
		sess := newSession()
		sess.State = state
		res := Advance(sess, Input{Kind: types.KindCancel})
		if !res.OK {
			t.Errorf("cancel from %s failed", state)
		}
		if sess.State != types.StateCancelled {
			t.Errorf("expected cancelled, got %s", sess.State)
		}
	}

	sess := newSession()
	sess.State = types.StateCompleted
	if res := Advance(sess, Input{Kind: types.KindCancel}); res.OK {
		t.Error("expected cancel of a terminal session to be rejected")
	}
}

func TestArtifactsOpenPerState(t *testing.T) {
	closed := []types.State{
		types.StateStart, types.StateCollectDate,
		types.StateCollectCategory, types.StateCollectLabel,
		types.StateCompleted, types.StateCancelled,
	}
	for _, state := range closed {
		if ArtifactsOpen(state) {
			t.Errorf("expected %s to reject photos", state)
		}
	}

	open := []types.State{
		types.StateCollectArtifacts, types.StateCollectNarrative,
		types.StateCollectSupplement, types.StateReady, types.StateGenerating,
	}
	for _, state := range open {
		if !ArtifactsOpen(state) {
			t.Errorf("expected %s to accept photos", state)
		}
	}
}

func TestMissingFieldsPriorityOrder(t *testing.T) {
	sess := newSession()
	got := MissingFields(sess)
	want := []string{"date", "category", "label", "photo", "narrative"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}

	sess.Date = "2026-02-12"
	sess.Category = "food"
	sess.ResolvedLabel = "food"
	sess.Artifacts = []types.ArtifactRef{{ID: "a"}}
	sess.Narrative = "A long lazy lunch with far too much cake."
	if got := MissingFields(sess); len(got) != 0 {
		t.Errorf("expected nothing missing, got %v", got)
	}
}

func TestPublishBlockedWhileFieldsMissing(t *testing.T) {
	sess := newSession()
	sess.State = types.StateReady
	res := Advance(sess, Input{Kind: types.KindPublish})
	if res.OK {
		t.Fatal("expected publish to be rejected while fields are missing")
	}
	if sess.State != types.StateReady {
		t.Errorf("state changed on rejected publish: %s", sess.State)
	}
}
