// internal/resolve/resolver.go

// Package resolve turns a request's identifiers into a session, or into a
// typed reason explaining why there is none. Reasons are outcomes, not
// errors: only storage failures surface as errors.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/user/postclaw/internal/types"
)

// Reason classifies a resolution outcome.
type Reason string

const (
	ReasonOK          Reason = "ok"
	ReasonNotCreated  Reason = "not_created"
	ReasonEvicted     Reason = "evicted"
	ReasonKeyMismatch Reason = "key_mismatch"
	ReasonRecovered   Reason = "process_bound_recovered"
)

// Outcome is the result of resolving a request against the session store.
type Outcome struct {
	Session        *types.Session
	Reason         Reason
	DiagnosticPath string
}

// Request carries the identifiers of one inbound event.
type Request struct {
	Actor           types.ActorID
	Channel         types.ChannelID
	RequestID       types.RequestID
	RequireExisting bool
}

// Resolver resolves requests using the store; non-OK outcomes trigger a
// best-effort diagnostic capture.
type Resolver struct {
	store   types.SessionStore
	diag    *Diagnostics
	timeout time.Duration
}

// New creates a Resolver. diag may be nil to disable diagnostics.
func New(store types.SessionStore, diag *Diagnostics, timeout time.Duration) *Resolver {
	return &Resolver{store: store, diag: diag, timeout: timeout}
}

// Resolve implements the resolution algorithm:
//
//  1. cached, non-expired session -> touch, persist, OK
//  2. cached but expired -> evict and continue
//  3. durable snapshot, non-expired -> recache, touch, persist, RECOVERED
//  4. a different session keyed by the channel id -> KEY_MISMATCH, no session
//  5. require-existing: classify the actor's last lifecycle event as
//     EVICTED (delete or expiry) or NOT_CREATED
//  6. otherwise create a fresh session -> NOT_CREATED with the session
func (r *Resolver) Resolve(ctx context.Context, req Request) (Outcome, error) {
	now := time.Now()

	sess, recovered, err := r.store.Get(ctx, req.Actor)
	if err != nil && !errors.Is(err, types.ErrSessionNotFound) {
		return Outcome{}, fmt.Errorf("load session: %w", err)
	}

	if sess != nil {
		if sess.Expired(now, r.timeout) {
			if err := r.store.Expire(ctx, req.Actor); err != nil {
				return Outcome{}, fmt.Errorf("evict expired session: %w", err)
			}
			slog.Info("session expired", "actor_id", string(req.Actor))
		} else {
			sess.Touch(now)
			if err := r.store.Update(ctx, sess); err != nil {
				return Outcome{}, fmt.Errorf("persist touched session: %w", err)
			}
			if recovered {
				return r.finish(ctx, req, Outcome{Session: sess, Reason: ReasonRecovered}), nil
			}
			return Outcome{Session: sess, Reason: ReasonOK}, nil
		}
	}

	// Never operate on an ambiguous identity: if the request's channel id
	// names someone else's session, refuse rather than guess.
	if string(req.Channel) != "" && string(req.Channel) != string(req.Actor) {
		other, _, err := r.store.Get(ctx, types.ActorID(req.Channel))
		if err != nil && !errors.Is(err, types.ErrSessionNotFound) {
			return Outcome{}, fmt.Errorf("check channel session: %w", err)
		}
		if other != nil {
			return r.finish(ctx, req, Outcome{Reason: ReasonKeyMismatch}), nil
		}
	}

	if req.RequireExisting {
		reason := ReasonNotCreated
		if event, ok := r.store.LastEvent(req.Actor); ok &&
			(event == types.LifecycleDeleted || event == types.LifecycleExpired) {
			reason = ReasonEvicted
		}
		return r.finish(ctx, req, Outcome{Reason: reason}), nil
	}

	fresh, err := r.store.Create(ctx, req.Actor)
	if err != nil {
		return Outcome{}, fmt.Errorf("create session: %w", err)
	}
	fresh.Touch(now)
	if err := r.store.Update(ctx, fresh); err != nil {
		return Outcome{}, fmt.Errorf("persist new session: %w", err)
	}
	return r.finish(ctx, req, Outcome{Session: fresh, Reason: ReasonNotCreated}), nil
}

// finish attaches a best-effort diagnostic capture to a non-OK outcome.
func (r *Resolver) finish(ctx context.Context, req Request, out Outcome) Outcome {
	if r.diag == nil {
		return out
	}
	out.DiagnosticPath = r.diag.Capture(ctx, req, out.Reason)
	return out
}
