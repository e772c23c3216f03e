// Package match turns a query embedding into an identity decision. The
// reference matcher is a deterministic linear scan over every embedding
// in the corpus; an HNSW index offers the same contract for large
// corpora (see index.go).
package match

import (
	"math"

	"github.com/kozaktomas/face-attendance/internal/store"
)

// Result is the outcome of matching one query embedding against the
// corpus. Identity is nil when nothing is within tolerance.
type Result struct {
	Identity   *store.Identity
	Distance   float64
	Confidence float64
}

// Matched reports whether a record was within tolerance.
func (r Result) Matched() bool { return r.Identity != nil }

// EuclideanDistance computes the L2 distance between two embeddings of
// equal length.
func EuclideanDistance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, &store.DimensionError{Expected: len(a), Actual: len(b)}
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// Match compares query against every embedding of every record and
// returns the closest record when its distance is within tolerance.
// Confidence is 1 - distance, clamped to [0, 1]. Ties resolve to the
// record with the lowest insertion index, so identical inputs always
// produce identical results. An empty corpus yields an unmatched
// result. A dimensionality mismatch against any corpus embedding fails
// the whole call; it is never silently skipped.
func Match(query []float32, corpus []store.Identity, tolerance float64) (Result, error) {
	best := -1
	bestDist := math.Inf(1)

	for i := range corpus {
		for _, emb := range corpus[i].Embeddings {
			// Corpus embedding first, so the error reports the corpus
			// dimensionality as the expected one.
			d, err := EuclideanDistance(emb, query)
			if err != nil {
				return Result{}, err
			}
			if d < bestDist {
				bestDist = d
				best = i
			}
		}
	}

	if best < 0 || bestDist > tolerance {
		return Result{}, nil
	}

	rec := corpus[best].Clone()
	return Result{
		Identity:   &rec,
		Distance:   bestDist,
		Confidence: clamp01(1 - bestDist),
	}, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
