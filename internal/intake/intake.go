// internal/intake/intake.go

// Package intake runs the conversational workflow for one inbound event at a
// time: guard the actor, resolve the session, feed the state machine, and
// trigger provisioning and generation at the right steps.
package intake

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/user/postclaw/internal/flow"
	"github.com/user/postclaw/internal/gateway"
	"github.com/user/postclaw/internal/lock"
	"github.com/user/postclaw/internal/posting"
	"github.com/user/postclaw/internal/resolve"
	"github.com/user/postclaw/internal/types"
)

// Intake wires the session machinery together. It is the processor attached
// to the gateway queue.
type Intake struct {
	store       types.SessionStore
	coordinator *lock.Coordinator
	resolver    *resolve.Resolver
	provisioner *posting.Provisioner
	generator   types.Generator
}

// New creates an Intake with the given dependencies.
func New(
	store types.SessionStore,
	coordinator *lock.Coordinator,
	resolver *resolve.Resolver,
	provisioner *posting.Provisioner,
	generator types.Generator,
) *Intake {
	return &Intake{
		store:       store,
		coordinator: coordinator,
		resolver:    resolver,
		provisioner: provisioner,
		generator:   generator,
	}
}

// storageFailureMessage deliberately says nothing about paths or internals.
const storageFailureMessage = "I couldn't save that just now. Please try again in a moment."

// reasonMessage maps each session-not-found reason to its user-facing text.
func reasonMessage(reason resolve.Reason) string {
	switch reason {
	case resolve.ReasonNotCreated:
		return "We haven't started a post yet. Send /start to begin."
	case resolve.ReasonEvicted:
		return "Your previous draft expired or was cleared. Send /start to begin a new one."
	case resolve.ReasonKeyMismatch:
		return "This chat doesn't match the conversation it references, so I can't continue here."
	default:
		return "I couldn't find your session. Send /start to begin."
	}
}

// ProcessRun handles a single run end to end. This is the function passed to
// Queue.SetProcessor; it replies through run.OnReply and reserves its error
// return for failures worth logging.
func (it *Intake) ProcessRun(run *gateway.Run) error {
	ctx := run.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	event := run.Event

	guard := it.coordinator.Acquire(event.ActorID, event.RequestID)
	defer guard.Release()

	// Only an explicit begin creates a session; everything else operates on
	// what already exists.
	out, err := it.resolver.Resolve(ctx, resolve.Request{
		Actor:           event.ActorID,
		Channel:         event.ChannelID,
		RequestID:       event.RequestID,
		RequireExisting: event.Kind != types.KindBegin,
	})
	if err != nil {
		it.reply(run, storageFailureMessage)
		return fmt.Errorf("resolve session: %w", err)
	}
	if out.Session == nil {
		it.reply(run, reasonMessage(out.Reason))
		return nil
	}
	sess := out.Session

	var notice string
	if out.Reason == resolve.ReasonRecovered {
		notice = "Picking up where we left off. "
	}

	var res flow.Result
	switch event.Kind {
	case types.KindArtifact:
		res, err = it.handleArtifact(ctx, run, sess)
		if err != nil {
			return err
		}
	case types.KindLocation:
		// Locations are welcome at any point; they never advance the machine.
		sess.Location = event.Location
		res = flow.Result{OK: true, Message: "Got the location, thanks."}
	default:
		res = flow.Advance(sess, flow.Input{Kind: event.Kind, Text: event.Text})
	}

	if sess.State == types.StateGenerating {
		if err := it.generate(ctx, run, sess); err != nil {
			return err
		}
		res = flow.Result{OK: true, Message: "Done! Your post is written and filed."}
	}

	if sess.State.Terminal() {
		if sess.State == types.StateCancelled {
			if err := it.provisioner.Remove(sess); err != nil {
				slog.Warn("remove cancelled posting failed", "actor_id", string(sess.ActorID), "error", err)
			}
		}
		if err := it.store.Delete(ctx, sess.ActorID); err != nil {
			it.reply(run, storageFailureMessage)
			return fmt.Errorf("delete finished session: %w", err)
		}
		it.reply(run, notice+res.Message)
		return nil
	}

	if err := it.store.Update(ctx, sess); err != nil {
		it.reply(run, storageFailureMessage)
		return fmt.Errorf("persist session: %w", err)
	}

	it.reply(run, notice+res.Message)
	return nil
}

// handleArtifact saves the photo through the provisioner (committing the
// posting directory on the first durable write) and advances the machine
// when the session is waiting for a photo.
func (it *Intake) handleArtifact(ctx context.Context, run *gateway.Run, sess *types.Session) (flow.Result, error) {
	event := run.Event
	if !flow.ArtifactsOpen(sess.State) {
		// Too early: the directory name needs date and label first.
		return flow.Result{OK: false, Message: "Hold the photos for a moment. " + flow.Prompt(sess.State)}, nil
	}
	if len(event.ArtifactData) == 0 {
		return flow.Result{OK: false, Message: "I couldn't read that photo. Please send it again."}, nil
	}

	name := event.ArtifactName
	if name == "" {
		name = fmt.Sprintf("photo_%d.jpg", len(sess.Artifacts)+1)
	}

	ref, err := it.provisioner.SaveArtifact(ctx, sess, name, event.ArtifactData)
	if err != nil {
		// Rollback already ran; persist the still-staged session so no
		// phantom directory reference survives.
		if uerr := it.store.Update(ctx, sess); uerr != nil {
			slog.Warn("persist after rollback failed", "actor_id", string(sess.ActorID), "error", uerr)
		}
		it.reply(run, storageFailureMessage)
		return flow.Result{}, fmt.Errorf("save artifact: %w", err)
	}

	if sess.State == types.StateCollectArtifacts {
		return flow.Advance(sess, flow.Input{Kind: types.KindArtifact, Artifact: &ref}), nil
	}

	// Extra photos after the collection step are welcome in any later
	// non-terminal state.
	sess.Artifacts = append(sess.Artifacts, ref)
	return flow.Result{OK: true, Message: "Got it, I've added that photo."}, nil
}

// generate produces the post content and completes the session. On failure
// the session drops back to READY so the actor can retry.
func (it *Intake) generate(ctx context.Context, run *gateway.Run, sess *types.Session) error {
	content, err := it.generator.Generate(ctx, sess)
	if err != nil {
		sess.State = types.StateReady
		if uerr := it.store.Update(ctx, sess); uerr != nil {
			slog.Warn("persist after generation failure failed", "actor_id", string(sess.ActorID), "error", uerr)
		}
		it.reply(run, "I couldn't write the post just now. Say 'publish' to try again.")
		return fmt.Errorf("generate post: %w", err)
	}

	if err := it.provisioner.WriteOutput(ctx, sess, content); err != nil {
		sess.State = types.StateReady
		if uerr := it.store.Update(ctx, sess); uerr != nil {
			slog.Warn("persist after output failure failed", "actor_id", string(sess.ActorID), "error", uerr)
		}
		it.reply(run, storageFailureMessage)
		return fmt.Errorf("store generated post: %w", err)
	}

	flow.Advance(sess, flow.Input{Kind: types.KindPublish})
	return nil
}

func (it *Intake) reply(run *gateway.Run, message string) {
	run.Reply(message)
}
