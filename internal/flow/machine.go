// internal/flow/machine.go

// Package flow implements the intake conversation state machine. States are
// fixed and ordered; each accepts exactly one input kind. Invalid input never
// returns an error: the session is left untouched and a Result carries the
// re-prompt text so the actor can retry in place.
package flow

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/user/postclaw/internal/types"
)

// MinNarrativeLen is the minimum narrative length in runes.
const MinNarrativeLen = 20

// SkipWord lets the actor pass an optional step.
const SkipWord = "skip"

// Categories is the fixed set of accepted posting categories.
var Categories = map[string]bool{
	"food":     true,
	"drink":    true,
	"travel":   true,
	"leisure":  true,
	"shopping": true,
	"event":    true,
	"other":    true,
}

// Input is one piece of actor input fed to the machine.
type Input struct {
	Kind     types.InputKind
	Text     string
	Artifact *types.ArtifactRef
}

// Result reports what a transition attempt did. OK false means validation
// failed and the state did not change; Message is the text to show the actor
// either way.
type Result struct {
	OK      bool
	Message string
}

// order is the forward progression of states. Cancelled sits outside it.
var order = []types.State{
	types.StateStart,
	types.StateCollectDate,
	types.StateCollectCategory,
	types.StateCollectLabel,
	types.StateCollectArtifacts,
	types.StateCollectNarrative,
	types.StateCollectSupplement,
	types.StateReady,
	types.StateGenerating,
	types.StateCompleted,
}

// next returns the state after s in the fixed order.
func next(s types.State) types.State {
	for i, state := range order {
		if state == s && i+1 < len(order) {
			return order[i+1]
		}
	}
	return s
}

// expectedKind maps each non-terminal state to the one input kind it accepts.
var expectedKind = map[types.State]types.InputKind{
	types.StateStart:             types.KindBegin,
	types.StateCollectDate:       types.KindText,
	types.StateCollectCategory:   types.KindText,
	types.StateCollectLabel:      types.KindText,
	types.StateCollectArtifacts:  types.KindArtifact,
	types.StateCollectNarrative:  types.KindText,
	types.StateCollectSupplement: types.KindText,
	types.StateReady:             types.KindPublish,
	types.StateGenerating:        types.KindPublish,
}

// Prompt returns the question asked when the session sits in the given state.
func Prompt(s types.State) string {
	switch s {
	case types.StateCollectDate:
		return "What date was the visit? (YYYY-MM-DD)"
	case types.StateCollectCategory:
		return "What kind of outing was it? (food, drink, travel, leisure, shopping, event, other)"
	case types.StateCollectLabel:
		return "What's the name of the place? (or 'skip')"
	case types.StateCollectArtifacts:
		return "Send me a photo from the visit."
	case types.StateCollectNarrative:
		return "Tell me about it in a few sentences."
	case types.StateCollectSupplement:
		return "Anything else worth noting? (or 'skip')"
	case types.StateReady:
		return "All set. Say 'publish' when you want me to write it up."
	case types.StateGenerating:
		return "Writing your post now..."
	default:
		return ""
	}
}

// Advance validates the input against the session's current state and, when
// valid, mutates the session and moves it forward exactly one state. Cancel
// input is accepted from any non-terminal state.
func Advance(sess *types.Session, in Input) Result {
	if in.Kind == types.KindCancel {
		return Cancel(sess)
	}
	if sess.State.Terminal() {
		return Result{OK: false, Message: "This session is finished. Send /start to begin a new one."}
	}
	if expectedKind[sess.State] != in.Kind {
		return Result{OK: false, Message: Prompt(sess.State)}
	}

	switch sess.State {
	case types.StateStart:
		// begin carries no payload

	case types.StateCollectDate:
		text := strings.TrimSpace(in.Text)
		if _, err := time.Parse("2006-01-02", text); err != nil {
			return Result{OK: false, Message: "That doesn't look like a date. Use YYYY-MM-DD, e.g. 2026-02-12."}
		}
		sess.Date = text

	case types.StateCollectCategory:
		category := strings.ToLower(strings.TrimSpace(in.Text))
		if !Categories[category] {
			return Result{OK: false, Message: "I don't know that category. Pick one of: food, drink, travel, leisure, shopping, event, other."}
		}
		sess.Category = category

	case types.StateCollectLabel:
		label := strings.TrimSpace(in.Text)
		if label == "" {
			return Result{OK: false, Message: "Give me a name, or 'skip'."}
		}
		if !strings.EqualFold(label, SkipWord) {
			sess.RawLabel = label
		}

	case types.StateCollectArtifacts:
		if in.Artifact == nil {
			return Result{OK: false, Message: Prompt(sess.State)}
		}
		sess.Artifacts = append(sess.Artifacts, *in.Artifact)

	case types.StateCollectNarrative:
		narrative := strings.TrimSpace(in.Text)
		if utf8.RuneCountInString(narrative) < MinNarrativeLen {
			return Result{OK: false, Message: "A little more detail, please (a couple of sentences at least)."}
		}
		sess.Narrative = narrative

	case types.StateCollectSupplement:
		supplement := strings.TrimSpace(in.Text)
		if supplement == "" {
			return Result{OK: false, Message: "Add a note, or 'skip'."}
		}
		if !strings.EqualFold(supplement, SkipWord) {
			sess.Supplement = supplement
		}

	case types.StateReady:
		if missing := MissingFields(sess); len(missing) > 0 {
			return Result{OK: false, Message: "Still missing: " + strings.Join(missing, ", ")}
		}

	case types.StateGenerating:
		sess.GenerationDone = true
	}

	sess.State = next(sess.State)
	return Result{OK: true, Message: Prompt(sess.State)}
}

// ArtifactsOpen reports whether the session accepts photos in the given
// state: the photo-collection step itself or any later non-terminal step.
// Earlier steps reject photos; the directory name fields don't exist yet.
func ArtifactsOpen(s types.State) bool {
	if s.Terminal() {
		return false
	}
	for _, state := range order {
		if state == types.StateCollectArtifacts {
			return true
		}
		if state == s {
			return false
		}
	}
	return false
}

// Cancel moves a non-terminal session to the cancelled state.
func Cancel(sess *types.Session) Result {
	if sess.State.Terminal() {
		return Result{OK: false, Message: "Nothing to cancel."}
	}
	sess.State = types.StateCancelled
	return Result{OK: true, Message: "Cancelled. Send /start whenever you want to begin again."}
}

// MissingFields returns the readiness preconditions the session does not yet
// satisfy, in fixed priority order.
func MissingFields(sess *types.Session) []string {
	var missing []string
	if sess.Date == "" {
		missing = append(missing, "date")
	}
	if sess.Category == "" {
		missing = append(missing, "category")
	}
	if sess.RawLabel == "" && sess.ResolvedLabel == "" {
		missing = append(missing, "label")
	}
	if len(sess.Artifacts) == 0 {
		missing = append(missing, "photo")
	}
	if utf8.RuneCountInString(sess.Narrative) < MinNarrativeLen {
		missing = append(missing, "narrative")
	}
	return missing
}
