// Package session drives a stream of query embeddings through the
// matcher and the attendance ledger. A per-session seen set skips
// repeat ledger calls for identities already handled this run; the
// ledger's own per-day dedup remains the source of truth, so the seen
// set is purely an optimization.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/match"
	"github.com/kozaktomas/face-attendance/internal/store"
)

// CorpusSource supplies the current corpus snapshot for matching.
type CorpusSource interface {
	All(ctx context.Context) ([]store.Identity, error)
}

// Recorder appends attendance events. ledger.Ledger satisfies this.
type Recorder interface {
	Record(ctx context.Context, id store.Identity, now time.Time) error
}

// Outcome is the result of one observation.
type Outcome struct {
	// Recognized is false when no enrolled identity was within
	// tolerance; the remaining fields are zero in that case.
	Recognized bool
	Identity   *store.Identity
	Confidence float64
	// AttendanceWritten is true only when this observation created a
	// new ledger event. False for repeats within the session and for
	// identities already logged today by an earlier run.
	AttendanceWritten bool
}

// MatchFunc scores a query embedding against a corpus snapshot.
type MatchFunc func(query []float32, corpus []store.Identity, tolerance float64) (match.Result, error)

// Coordinator matches observations and records first sightings. Safe
// for concurrent use; observations serialize on an internal mutex.
type Coordinator struct {
	corpus    CorpusSource
	recorder  Recorder
	tolerance float64
	matchFn   MatchFunc

	mu   sync.Mutex
	seen map[string]struct{}
}

func New(corpus CorpusSource, recorder Recorder, tolerance float64) *Coordinator {
	return &Coordinator{
		corpus:    corpus,
		recorder:  recorder,
		tolerance: tolerance,
		matchFn:   match.Match,
		seen:      make(map[string]struct{}),
	}
}

// UseMatcher replaces the linear matcher, e.g. with an HNSW-backed one.
// Call before the first Observe.
func (c *Coordinator) UseMatcher(fn MatchFunc) {
	c.matchFn = fn
}

// Observe matches one query embedding and, on the first sighting of the
// matched identity this session, records attendance. A failed ledger
// write surfaces as an error alongside the matched outcome; the
// coordinator stays usable, so the caller can log and keep processing
// the stream.
func (c *Coordinator) Observe(ctx context.Context, query []float32, now time.Time) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	corpus, err := c.corpus.All(ctx)
	if err != nil {
		return Outcome{}, err
	}

	res, err := c.matchFn(query, corpus, c.tolerance)
	if err != nil {
		return Outcome{}, err
	}
	if !res.Matched() {
		return Outcome{}, nil
	}

	out := Outcome{
		Recognized: true,
		Identity:   res.Identity,
		Confidence: res.Confidence,
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.seen[res.Identity.ID]; ok {
		// Session-local short-circuit; the ledger already answered for
		// this identity this run.
		return out, nil
	}

	err = c.recorder.Record(ctx, *res.Identity, now)
	switch {
	case err == nil:
		out.AttendanceWritten = true
	case errors.Is(err, ledger.ErrAlreadyLogged):
		// Logged earlier today by a previous run; nothing to retry.
	default:
		// Leave the identity unseen so a later observation retries the
		// write.
		return out, err
	}

	c.seen[res.Identity.ID] = struct{}{}
	return out, nil
}

// Reset clears the session's seen set, starting a new session over the
// same store and ledger.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = make(map[string]struct{})
}
