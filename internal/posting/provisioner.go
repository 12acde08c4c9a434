// internal/posting/provisioner.go

// Package posting materializes per-posting storage directories. A session
// stages everything in memory: no directory exists until the first durable
// write commits it. Commit is one-way and idempotent; any failure rolls the
// attempt back so no partial state is left on disk and the session stays
// staged and retryable.
package posting

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/user/postclaw/internal/types"
)

// ArtifactsDirName is the subdirectory holding collected artifacts.
const ArtifactsDirName = "artifacts"

// MetadataFileName is the per-posting metadata record.
const MetadataFileName = "metadata.json"

// OutputFileName is the generated post written after READY.
const OutputFileName = "post.md"

// Metadata is the durable record describing a committed posting.
type Metadata struct {
	ActorID       types.ActorID   `json:"actor_id"`
	Date          string          `json:"date"`
	Category      string          `json:"category,omitempty"`
	RawLabel      string          `json:"raw_label,omitempty"`
	ResolvedLabel string          `json:"resolved_label"`
	Location      *types.Location `json:"location,omitempty"`
	CommittedAt   time.Time       `json:"committed_at"`
}

// Artifact is one item of a commit batch.
type Artifact struct {
	Name string
	Data []byte
}

// Provisioner commits staged sessions into directories under a base path.
// The directory namespace is shared across actors; callers hold the actor's
// lock, which bounds the scan-then-create race to genuine multi-process use.
type Provisioner struct {
	base string
	log  *Log
}

// New creates a Provisioner rooted at base.
func New(base string) *Provisioner {
	return &Provisioner{base: base, log: NewLog()}
}

// Base returns the posts root directory.
func (p *Provisioner) Base() string {
	return p.base
}

// Dir returns the absolute posting directory for a committed session, or ""
// while it is staged.
func (p *Provisioner) Dir(sess *types.Session) string {
	if sess.PostDir == "" {
		return ""
	}
	return filepath.Join(p.base, sess.PostDir)
}

// Committed reports whether the session's backing directory exists.
func (p *Provisioner) Committed(sess *types.Session) bool {
	if sess.PostDir == "" {
		return false
	}
	_, err := os.Stat(p.Dir(sess))
	return err == nil
}

// Commit materializes the posting directory: the directory itself, the
// artifacts subdirectory, and the metadata record. Re-committing an already
// committed session is a no-op returning the existing location. On failure
// everything created by this attempt is removed and the session stays staged.
func (p *Provisioner) Commit(ctx context.Context, sess *types.Session) (string, error) {
	if p.Committed(sess) {
		return p.Dir(sess), nil
	}

	if err := os.MkdirAll(p.base, 0o755); err != nil {
		return "", fmt.Errorf("create posts root: %w", err)
	}

	label := DeriveLabel(sess)
	var dir string
	for attempt := 0; ; attempt++ {
		name, err := ResolveDirName(p.base, DateDigits(sess.Date), label)
		if err != nil {
			return "", fmt.Errorf("resolve posting dir name: %w", err)
		}
		dir = filepath.Join(p.base, name)
		err = os.Mkdir(dir, 0o755)
		if err == nil {
			sess.PostDir = name
			break
		}
		// Lost the scan-then-create race to another process; rescan once.
		if os.IsExist(err) && attempt == 0 {
			continue
		}
		return "", fmt.Errorf("create posting dir: %w", err)
	}

	if err := p.populate(sess, label, dir); err != nil {
		os.RemoveAll(dir)
		sess.PostDir = ""
		return "", fmt.Errorf("commit posting: %w", err)
	}

	if sess.ResolvedLabel == "" {
		sess.ResolvedLabel = label
	}
	return dir, nil
}

// populate fills a freshly created posting directory.
func (p *Provisioner) populate(sess *types.Session, label, dir string) error {
	if err := os.Mkdir(filepath.Join(dir, ArtifactsDirName), 0o755); err != nil {
		return fmt.Errorf("create artifacts dir: %w", err)
	}

	meta := &Metadata{
		ActorID:       sess.ActorID,
		Date:          sess.Date,
		Category:      sess.Category,
		RawLabel:      sess.RawLabel,
		ResolvedLabel: label,
		Location:      sess.Location,
		CommittedAt:   time.Now(),
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(dir, MetadataFileName), data); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}

	if err := p.log.Append(dir, "committed", map[string]string{"label": label}); err != nil {
		return fmt.Errorf("append commit log: %w", err)
	}
	return nil
}

// SaveArtifact commits the session if needed and stores a single artifact.
func (p *Provisioner) SaveArtifact(ctx context.Context, sess *types.Session, name string, data []byte) (types.ArtifactRef, error) {
	refs, err := p.SaveArtifacts(ctx, sess, []Artifact{{Name: name, Data: data}})
	if err != nil {
		return types.ArtifactRef{}, err
	}
	return refs[0], nil
}

// SaveArtifacts stores a batch of artifacts, committing the session first if
// it is still staged. The whole batch is validated before any filesystem
// mutation, and any failure removes everything this call created: written
// artifacts, and the directory itself when this call committed it.
func (p *Provisioner) SaveArtifacts(ctx context.Context, sess *types.Session, items []Artifact) ([]types.ArtifactRef, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("empty artifact batch")
	}

	// Validate everything up front so a bad item leaves no trace.
	seen := make(map[string]bool, len(items))
	for i, item := range items {
		name := filepath.Base(item.Name)
		if name == "" || name == "." || name == string(filepath.Separator) {
			return nil, fmt.Errorf("artifact %d: invalid name %q", i, item.Name)
		}
		if len(item.Data) == 0 {
			return nil, fmt.Errorf("artifact %d (%s): empty data", i, name)
		}
		if seen[name] {
			return nil, fmt.Errorf("artifact %d (%s): duplicate name in batch", i, name)
		}
		seen[name] = true
	}

	wasCommitted := p.Committed(sess)
	dir, err := p.Commit(ctx, sess)
	if err != nil {
		return nil, err
	}

	artifactsDir := filepath.Join(dir, ArtifactsDirName)
	var written []string
	rollback := func() {
		for _, path := range written {
			os.Remove(path)
		}
		if !wasCommitted {
			os.RemoveAll(dir)
			sess.PostDir = ""
		}
	}

	refs := make([]types.ArtifactRef, 0, len(items))
	for _, item := range items {
		name := filepath.Base(item.Name)
		target := filepath.Join(artifactsDir, name)
		if _, err := os.Stat(target); err == nil {
			rollback()
			return nil, fmt.Errorf("artifact %s already exists", name)
		}
		if err := writeFileAtomic(target, item.Data); err != nil {
			rollback()
			return nil, fmt.Errorf("write artifact %s: %w", name, err)
		}
		written = append(written, target)
		refs = append(refs, types.ArtifactRef{
			ID:       types.NewArtifactID(),
			Filename: name,
			AddedAt:  time.Now(),
		})
	}

	for _, ref := range refs {
		if err := p.log.Append(dir, "artifact_saved", map[string]string{"filename": ref.Filename}); err != nil {
			rollback()
			return nil, fmt.Errorf("append artifact log: %w", err)
		}
	}
	return refs, nil
}

// WriteOutput stores the generated post content in a committed posting.
func (p *Provisioner) WriteOutput(ctx context.Context, sess *types.Session, content string) error {
	if !p.Committed(sess) {
		return fmt.Errorf("session %s has no committed posting", sess.ActorID)
	}
	dir := p.Dir(sess)
	if err := writeFileAtomic(filepath.Join(dir, OutputFileName), []byte(content)); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return p.log.Append(dir, "generated", nil)
}

// Remove deletes the session's posting directory, if any. Used when the actor
// cancels after a commit; missing directories are not an error.
func (p *Provisioner) Remove(sess *types.Session) error {
	if sess.PostDir == "" {
		return nil
	}
	if err := os.RemoveAll(p.Dir(sess)); err != nil {
		return fmt.Errorf("remove posting dir: %w", err)
	}
	sess.PostDir = ""
	return nil
}

// TailLog returns the last entries of a committed posting's log.
func (p *Provisioner) TailLog(sess *types.Session, limit int) ([]*LogEntry, error) {
	if sess.PostDir == "" {
		return nil, nil
	}
	return p.log.Tail(p.Dir(sess), limit)
}

// List returns the names of all posting directories under the base, sorted.
func (p *Provisioner) List() ([]string, error) {
	entries, err := os.ReadDir(p.base)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read posts root: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// writeFileAtomic writes data to a temp file then renames it over the target.
func writeFileAtomic(target string, data []byte) error {
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
