// Package session owns the durable per-run namespace: every stage writes its
// structured output here. Persistence is best-effort auditing; write
// failures are logged and swallowed, never surfaced to the workflow.
package session

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/oklog/ulid/v2"
	"github.com/zeebo/blake3"
)

// Session is the durable record of one workflow run. Created once at intake,
// never mutated; its directory outlives the run.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Dir       string    `json:"dir"`
}

type Store struct {
	root         string
	excludeGlobs []string
	log          *slog.Logger
}

// NewStore creates a store rooted at root. Artifacts whose names match an
// exclude glob (doublestar syntax) are not persisted; operators use this to
// keep raw reasoning text out of the audit trail.
func NewStore(root string, excludeGlobs []string, log *slog.Logger) (*Store, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("session root is required")
	}
	for _, g := range excludeGlobs {
		if !doublestar.ValidatePattern(g) {
			return nil, fmt.Errorf("invalid artifact exclude glob: %q", g)
		}
	}
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Store{root: root, excludeGlobs: excludeGlobs, log: log}, nil
}

// Create allocates a new session: a collision-resistant identifier (UTC
// timestamp prefix plus a short random suffix) and its backing directory.
// An already-existing directory is not an error.
func (s *Store) Create() (*Session, error) {
	now := time.Now().UTC()
	id := NewSessionID(now)
	dir := filepath.Join(s.root, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	sess := &Session{ID: id, CreatedAt: now, Dir: dir}
	s.writeJSON(sess, filepath.Join(dir, "session.json"), sess)
	return sess, nil
}

// NewSessionID builds a session identifier from the creation time and the
// random tail of a ULID.
func NewSessionID(t time.Time) string {
	u := ulid.Make().String()
	return t.UTC().Format("20060102T150405") + "-" + strings.ToLower(u[len(u)-6:])
}

// Envelope is the self-describing wrapper around every persisted stage
// output. Digest is the blake3 hex digest of the serialized payload.
type Envelope struct {
	SessionID string    `json:"session_id"`
	Stage     string    `json:"stage"`
	Ordinal   int       `json:"ordinal,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Digest    string    `json:"digest"`
	Payload   any       `json:"payload"`
}

// WriteStageOutput persists one stage output under the session directory.
// Repeated stages pass their invocation ordinal (> 0) to keep artifacts
// distinct. Returns the artifact path for logging; an empty path means the
// write was skipped or failed. Failures never abort the workflow.
func (s *Store) WriteStageOutput(sess *Session, stage string, ordinal int, payload any) string {
	if sess == nil {
		return ""
	}
	name := artifactName(stage, ordinal)
	for _, g := range s.excludeGlobs {
		if ok, _ := doublestar.Match(g, name); ok {
			s.log.Debug("stage output excluded from audit trail", "session_id", sess.ID, "artifact", name, "glob", g)
			return ""
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn("stage output not persisted: marshal failed", "session_id", sess.ID, "stage", stage, "error", err)
		return ""
	}
	sum := blake3.Sum256(body)
	env := Envelope{
		SessionID: sess.ID,
		Stage:     stage,
		Ordinal:   ordinal,
		CreatedAt: time.Now().UTC(),
		Digest:    hex.EncodeToString(sum[:]),
		Payload:   json.RawMessage(body),
	}
	path := filepath.Join(sess.Dir, name)
	if !s.writeJSON(sess, path, env) {
		return ""
	}
	return path
}

// WriteText persists a free-form artifact (e.g. the markdown report),
// subject to the same exclude globs and best-effort policy.
func (s *Store) WriteText(sess *Session, name string, body string) string {
	if sess == nil {
		return ""
	}
	for _, g := range s.excludeGlobs {
		if ok, _ := doublestar.Match(g, name); ok {
			s.log.Debug("artifact excluded from audit trail", "session_id", sess.ID, "artifact", name, "glob", g)
			return ""
		}
	}
	path := filepath.Join(sess.Dir, name)
	if err := writeFileAtomic(path, []byte(body)); err != nil {
		s.log.Warn("artifact not persisted", "session_id", sess.ID, "artifact", name, "error", err)
		return ""
	}
	return path
}

func (s *Store) writeJSON(sess *Session, path string, v any) bool {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		s.log.Warn("artifact not persisted: marshal failed", "session_id", sess.ID, "path", path, "error", err)
		return false
	}
	if err := writeFileAtomic(path, b); err != nil {
		s.log.Warn("artifact not persisted", "session_id", sess.ID, "path", path, "error", err)
		return false
	}
	return true
}

func artifactName(stage string, ordinal int) string {
	if ordinal > 0 {
		return fmt.Sprintf("%s_%02d.json", stage, ordinal)
	}
	return stage + ".json"
}

func writeFileAtomic(path string, b []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
