package match

import (
	"sync"

	"github.com/coder/hnsw"
	"github.com/kozaktomas/face-attendance/internal/store"
)

// maxNeighbors (M) is the maximum number of neighbors per HNSW node.
const maxNeighbors = 16

// Index answers the same question as Match through an HNSW graph, for
// corpora large enough that the linear scan hurts. Results are
// approximate: the graph may miss the true nearest neighbor, so the
// linear matcher stays the reference wherever exact determinism
// matters.
type Index struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[int]
	owners []store.Identity // node key -> owning record, one node per embedding
	dim    int
}

// NewIndex builds an index over the corpus. Each embedding becomes one
// graph node keyed by its insertion order.
func NewIndex(corpus []store.Identity) (*Index, error) {
	ix := &Index{}
	if err := ix.Rebuild(corpus); err != nil {
		return nil, err
	}
	return ix, nil
}

// Rebuild replaces the index contents with a fresh corpus snapshot.
func (ix *Index) Rebuild(corpus []store.Identity) error {
	g := hnsw.NewGraph[int]()
	g.M = maxNeighbors
	g.Ml = 1.0 / float64(maxNeighbors) // Standard HNSW formula
	g.Distance = hnsw.EuclideanDistance

	var owners []store.Identity
	dim := 0
	for i := range corpus {
		rec := corpus[i].Clone()
		for _, emb := range rec.Embeddings {
			if dim == 0 {
				dim = len(emb)
			}
			if len(emb) != dim {
				return &store.DimensionError{Expected: dim, Actual: len(emb)}
			}
			g.Add(hnsw.MakeNode(len(owners), emb))
			owners = append(owners, rec)
		}
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.graph = g
	ix.owners = owners
	ix.dim = dim
	return nil
}

// Len returns the number of indexed embeddings.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.owners)
}

// MatchSnapshot matches against the given corpus snapshot, rebuilding
// the graph first when the snapshot's embedding count no longer matches
// the indexed one. Long-running callers pick up new enrollments without
// an explicit rebuild.
func (ix *Index) MatchSnapshot(query []float32, corpus []store.Identity, tolerance float64) (Result, error) {
	if ix.Len() != countEmbeddings(corpus) {
		if err := ix.Rebuild(corpus); err != nil {
			return Result{}, err
		}
	}
	return ix.Match(query, tolerance)
}

func countEmbeddings(corpus []store.Identity) int {
	n := 0
	for i := range corpus {
		n += len(corpus[i].Embeddings)
	}
	return n
}

// Match finds the nearest indexed embedding and applies the same
// tolerance and confidence rules as the linear matcher.
func (ix *Index) Match(query []float32, tolerance float64) (Result, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if len(ix.owners) == 0 {
		return Result{}, nil
	}
	if len(query) != ix.dim {
		return Result{}, &store.DimensionError{Expected: ix.dim, Actual: len(query)}
	}

	neighbors := ix.graph.Search(query, 1)
	if len(neighbors) == 0 {
		return Result{}, nil
	}

	// Recompute the exact distance from the node's own vector; the
	// graph's internal ordering is approximate.
	d, err := EuclideanDistance(neighbors[0].Value, query)
	if err != nil {
		return Result{}, err
	}
	if d > tolerance {
		return Result{}, nil
	}

	rec := ix.owners[neighbors[0].Key].Clone()
	return Result{
		Identity:   &rec,
		Distance:   d,
		Confidence: clamp01(1 - d),
	}, nil
}
