package match

import (
	"errors"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/store"
)

func TestIndex_MatchesLikeLinearScan(t *testing.T) {
	corpus := corpusOf(
		identity("1", "Alice", []float32{0.1, 0.2, 0.3}),
		identity("2", "Bob", []float32{0.8, 0.1, 0.1}),
		identity("3", "Carol", []float32{0.4, 0.4, 0.4}, []float32{0.45, 0.4, 0.35}),
	)

	ix, err := NewIndex(corpus)
	if err != nil {
		t.Fatalf("NewIndex failed: %v", err)
	}
	if ix.Len() != 4 {
		t.Errorf("expected 4 indexed embeddings, got %d", ix.Len())
	}

	queries := [][]float32{
		{0.1, 0.2, 0.3},
		{0.79, 0.1, 0.12},
		{0.44, 0.41, 0.38},
	}
	for _, q := range queries {
		linear, err := Match(q, corpus, 0.5)
		if err != nil {
			t.Fatalf("linear Match failed: %v", err)
		}
		indexed, err := ix.Match(q, 0.5)
		if err != nil {
			t.Fatalf("index Match failed: %v", err)
		}
		if linear.Matched() != indexed.Matched() {
			t.Fatalf("query %v: linear matched=%v, index matched=%v", q, linear.Matched(), indexed.Matched())
		}
		if linear.Matched() && linear.Identity.ID != indexed.Identity.ID {
			t.Errorf("query %v: linear found %s, index found %s", q, linear.Identity.ID, indexed.Identity.ID)
		}
	}
}

func TestIndex_EmptyCorpus(t *testing.T) {
	ix, err := NewIndex(nil)
	if err != nil {
		t.Fatalf("NewIndex failed: %v", err)
	}

	res, err := ix.Match([]float32{0.1, 0.2}, 0.5)
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if res.Matched() {
		t.Error("empty index must yield unknown")
	}
}

func TestIndex_DimensionMismatch(t *testing.T) {
	ix, err := NewIndex(corpusOf(identity("1", "Alice", []float32{0.1, 0.2, 0.3})))
	if err != nil {
		t.Fatal(err)
	}

	_, err = ix.Match([]float32{0.1}, 0.5)
	var derr *store.DimensionError
	if !errors.As(err, &derr) {
		t.Fatalf("expected DimensionError, got %v", err)
	}
}

func TestIndex_RebuildReplacesContents(t *testing.T) {
	ix, err := NewIndex(corpusOf(identity("1", "Alice", []float32{0.1, 0.2})))
	if err != nil {
		t.Fatal(err)
	}

	if err := ix.Rebuild(corpusOf(
		identity("2", "Bob", []float32{0.5, 0.5}),
	)); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	res, err := ix.Match([]float32{0.5, 0.5}, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Matched() || res.Identity.DisplayName != "Bob" {
		t.Errorf("expected Bob after rebuild, got %+v", res.Identity)
	}

	// Alice is gone.
	res, _ = ix.Match([]float32{0.1, 0.2}, 0.1)
	if res.Matched() && res.Identity.DisplayName == "Alice" {
		t.Error("rebuild must drop previous contents")
	}
}

func TestIndex_InconsistentCorpusRejected(t *testing.T) {
	_, err := NewIndex(corpusOf(
		identity("1", "Alice", []float32{0.1, 0.2}),
		identity("2", "Bob", []float32{0.1, 0.2, 0.3}),
	))
	var derr *store.DimensionError
	if !errors.As(err, &derr) {
		t.Fatalf("expected DimensionError for mixed-dimension corpus, got %v", err)
	}
}
