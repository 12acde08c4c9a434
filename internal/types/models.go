// internal/types/models.go
package types

import (
	"time"
)

// State is a step in the intake conversation. States are strictly ordered;
// a session moves forward one state per valid input.
type State string

const (
	StateStart             State = "start"
	StateCollectDate       State = "collect_date"
	StateCollectCategory   State = "collect_category"
	StateCollectLabel      State = "collect_label"
	StateCollectArtifacts  State = "collect_artifacts"
	StateCollectNarrative  State = "collect_narrative"
	StateCollectSupplement State = "collect_supplement"
	StateReady             State = "ready"
	StateGenerating        State = "generating"
	StateCompleted         State = "completed"
	StateCancelled         State = "cancelled"
)

// Terminal reports whether the state ends the session.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled
}

// Location is a geocoded point attached to a session when the actor shares
// one. Source records which channel produced it.
type Location struct {
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	Source string  `json:"source,omitempty"`
}

// ArtifactRef is an ordered reference to one collected artifact (photo).
type ArtifactRef struct {
	ID       ArtifactID `json:"id"`
	Filename string     `json:"filename"`
	AddedAt  time.Time  `json:"added_at"`
}

// Session is the durable per-actor workflow state. Exactly one session
// exists per actor id at a time.
type Session struct {
	ActorID      ActorID   `json:"actor_id"`
	State        State     `json:"state"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`

	Date          string        `json:"date,omitempty"` // YYYY-MM-DD
	Category      string        `json:"category,omitempty"`
	RawLabel      string        `json:"raw_label,omitempty"`
	ResolvedLabel string        `json:"resolved_label,omitempty"`
	Location      *Location     `json:"location,omitempty"`
	Artifacts     []ArtifactRef `json:"artifacts,omitempty"`
	Narrative     string        `json:"narrative,omitempty"`
	Supplement    string        `json:"supplement,omitempty"`

	PostDir        string `json:"post_dir,omitempty"` // directory name under the posts root, set on commit
	GenerationDone bool   `json:"generation_done"`
}

// Touch updates the last-activity timestamp.
func (s *Session) Touch(now time.Time) {
	s.LastActivity = now
}

// Expired reports whether the session's last activity is older than timeout.
func (s *Session) Expired(now time.Time, timeout time.Duration) bool {
	return now.Sub(s.LastActivity) > timeout
}

// LifecycleEvent records the last thing that happened to an actor's session.
type LifecycleEvent string

const (
	LifecycleCreated LifecycleEvent = "created"
	LifecycleTouched LifecycleEvent = "touched"
	LifecycleDeleted LifecycleEvent = "deleted"
	LifecycleExpired LifecycleEvent = "expired"
)

// InputKind classifies an inbound event. Each conversation state accepts
// exactly one kind.
type InputKind string

const (
	KindBegin    InputKind = "begin"
	KindText     InputKind = "text"
	KindArtifact InputKind = "artifact"
	KindLocation InputKind = "location"
	KindPublish  InputKind = "publish"
	KindCancel   InputKind = "cancel"
)

// InboundEvent is one request from a delivery channel.
type InboundEvent struct {
	Source       string    `json:"source"`
	ActorID      ActorID   `json:"actor_id"`
	ChannelID    ChannelID `json:"channel_id"`
	RequestID    RequestID `json:"request_id"`
	Kind         InputKind `json:"kind"`
	Text         string    `json:"text,omitempty"`
	ArtifactName string    `json:"artifact_name,omitempty"`
	ArtifactData []byte    `json:"-"`
	Location     *Location `json:"location,omitempty"`
}
