// Package store owns the persisted corpus of enrolled identities and
// their face embeddings. Loads fail soft: corrupt entries are discarded
// and the cleaned file is written back, so one bad record never takes
// down recognition. Mutations hold an exclusive cross-process file lock
// and replace the file as a whole unit.
package store

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/face-attendance/internal/atomicfile"
	"github.com/kozaktomas/face-attendance/internal/lockfile"
)

const defaultLockTimeout = 5 * time.Second

// Options configures a Store.
type Options struct {
	// Dim is the expected embedding length. 0 adopts the length of the
	// first enrollment.
	Dim int
	// KeyPolicy decides enrollment merging. Defaults to ExternalIDKey.
	KeyPolicy KeyPolicy
	// LockTimeout bounds the wait for the exclusive file lock.
	LockTimeout time.Duration
}

// Store persists enrolled identities in a single JSON file.
type Store struct {
	path        string
	dim         int
	keyFor      KeyPolicy
	lockTimeout time.Duration
}

func New(path string, opts Options) *Store {
	if opts.KeyPolicy == nil {
		opts.KeyPolicy = ExternalIDKey
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = defaultLockTimeout
	}
	return &Store{
		path:        path,
		dim:         opts.Dim,
		keyFor:      opts.KeyPolicy,
		lockTimeout: opts.LockTimeout,
	}
}

func (s *Store) lockPath() string {
	return s.path + ".lock"
}

// Load reads the persisted corpus, discarding structurally invalid
// entries. When anything was discarded or repaired, the cleaned corpus
// is persisted back before returning. A fully unreadable file yields an
// empty corpus and leaves the file untouched until the next successful
// write. The only hard failure is a lock timeout.
func (s *Store) Load(ctx context.Context) ([]Identity, error) {
	lock, err := lockfile.Acquire(ctx, s.lockPath(), s.lockTimeout)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	ids, repaired, err := s.read()
	if err != nil {
		return nil, err
	}
	if repaired {
		if err := s.write(ids); err != nil {
			// The cleaned view is still valid; self-heal retries on the
			// next load or write.
			log.Printf("warning: failed to persist cleaned identity store: %v", err)
		}
	}
	return ids, nil
}

// All returns a read-only snapshot of the corpus for matching. It takes
// no lock: concurrent writers replace the file atomically, so a reader
// sees either the previous or the new complete file.
func (s *Store) All(ctx context.Context) ([]Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ids, _, err := s.read()
	return ids, err
}

// Enroll adds an embedding for the named person. When the key policy
// matches an existing record the embedding is appended to it; otherwise
// a new record with a fresh id is created. The store is durably
// persisted before Enroll returns.
func (s *Store) Enroll(ctx context.Context, displayName string, attrs map[string]string, embedding []float32) (Identity, error) {
	if displayName == "" {
		return Identity{}, &ValidationError{Field: "display_name", Reason: "must not be empty"}
	}
	if len(embedding) == 0 {
		return Identity{}, &ValidationError{Field: "embedding", Reason: "must not be empty"}
	}
	if s.dim > 0 && len(embedding) != s.dim {
		return Identity{}, &DimensionError{Expected: s.dim, Actual: len(embedding)}
	}

	lock, err := lockfile.Acquire(ctx, s.lockPath(), s.lockTimeout)
	if err != nil {
		return Identity{}, err
	}
	defer lock.Release()

	ids, _, err := s.read()
	if err != nil {
		return Identity{}, err
	}

	// The corpus dictates the dimensionality once it has any entries.
	if len(ids) > 0 {
		if dim := ids[0].Dim(); len(embedding) != dim {
			return Identity{}, &DimensionError{Expected: dim, Actual: len(embedding)}
		}
	}

	emb := make([]float32, len(embedding))
	copy(emb, embedding)

	key := s.keyFor(displayName, attrs)
	var enrolled *Identity
	for i := range ids {
		if s.keyFor(ids[i].DisplayName, ids[i].Attributes) == key {
			ids[i].Embeddings = append(ids[i].Embeddings, emb)
			mergeAttributes(&ids[i], attrs)
			enrolled = &ids[i]
			break
		}
	}
	if enrolled == nil {
		ids = append(ids, Identity{
			ID:          uuid.NewString(),
			DisplayName: displayName,
			Attributes:  copyAttributes(attrs),
			Embeddings:  [][]float32{emb},
		})
		enrolled = &ids[len(ids)-1]
	}

	if err := s.write(ids); err != nil {
		return Identity{}, err
	}
	return enrolled.Clone(), nil
}

// read decodes the store file without taking a lock. A missing file is
// an empty corpus. An unreadable file logs a warning and yields an
// empty corpus, leaving the file alone.
func (s *Store) read() (ids []Identity, repaired bool, err error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}

	ids, dropped, repaired, err := decodeCorpus(data, s.dim)
	if err != nil {
		log.Printf("warning: identity store %s is unreadable, starting with an empty corpus: %v", s.path, err)
		return nil, false, nil
	}
	if dropped > 0 {
		log.Printf("warning: discarded %d corrupt identity record(s) from %s", dropped, s.path)
	}
	return ids, repaired, nil
}

func (s *Store) write(ids []Identity) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}
	return atomicfile.WriteFile(s.path, func(w io.Writer) error {
		return encodeCorpus(w, ids)
	})
}

func copyAttributes(attrs map[string]string) map[string]string {
	if len(attrs) == 0 {
		return nil
	}
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}

// mergeAttributes applies newly supplied attribute values onto an
// existing record. Unknown keys already stored are preserved.
func mergeAttributes(id *Identity, attrs map[string]string) {
	if len(attrs) == 0 {
		return
	}
	if id.Attributes == nil {
		id.Attributes = make(map[string]string, len(attrs))
	}
	for k, v := range attrs {
		if v != "" {
			id.Attributes[k] = v
		}
	}
}
