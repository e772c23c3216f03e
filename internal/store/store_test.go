package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func testStore(t *testing.T, opts Options) *Store {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "identities.json"), opts)
}

func TestEnroll_CreatesRecord(t *testing.T) {
	s := testStore(t, Options{})
	ctx := context.Background()

	id, err := s.Enroll(ctx, "Alice", map[string]string{"external_id": "S100", "class": "10A"}, []float32{0.1, 0.2, 0.3})
	if err != nil {
		t.Fatalf("Enroll failed: %v", err)
	}
	if id.ID == "" {
		t.Error("expected a generated id")
	}
	if id.DisplayName != "Alice" {
		t.Errorf("expected display name Alice, got %q", id.DisplayName)
	}
	if len(id.Embeddings) != 1 {
		t.Errorf("expected 1 embedding, got %d", len(id.Embeddings))
	}

	// Durable before return.
	ids, err := s.All(ctx)
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("expected 1 persisted identity, got %d", len(ids))
	}
	if ids[0].Attributes["class"] != "10A" {
		t.Errorf("expected class attribute persisted, got %v", ids[0].Attributes)
	}
}

func TestEnroll_MergesOnExternalID(t *testing.T) {
	s := testStore(t, Options{})
	ctx := context.Background()

	first, err := s.Enroll(ctx, "Alice", map[string]string{"external_id": "S100"}, []float32{0.1, 0.2})
	if err != nil {
		t.Fatalf("first Enroll failed: %v", err)
	}
	// Same external id, slightly different name spelling.
	second, err := s.Enroll(ctx, "Alice N.", map[string]string{"external_id": "S100"}, []float32{0.3, 0.4})
	if err != nil {
		t.Fatalf("second Enroll failed: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("expected enrollments to merge into one record, got ids %s and %s", first.ID, second.ID)
	}
	if len(second.Embeddings) != 2 {
		t.Errorf("expected 2 embeddings after merge, got %d", len(second.Embeddings))
	}

	ids, _ := s.All(ctx)
	if len(ids) != 1 {
		t.Errorf("expected 1 identity in corpus, got %d", len(ids))
	}
}

func TestEnroll_DistinctExternalIDsSameName(t *testing.T) {
	s := testStore(t, Options{})
	ctx := context.Background()

	a, _ := s.Enroll(ctx, "Jan Novák", map[string]string{"external_id": "S1"}, []float32{0.1})
	b, err := s.Enroll(ctx, "Jan Novák", map[string]string{"external_id": "S2"}, []float32{0.2})
	if err != nil {
		t.Fatalf("Enroll failed: %v", err)
	}
	if a.ID == b.ID {
		t.Error("distinct external ids must not merge, even with identical names")
	}
}

func TestEnroll_NamePolicyMergesDiacritics(t *testing.T) {
	s := testStore(t, Options{KeyPolicy: DisplayNameKey})
	ctx := context.Background()

	a, _ := s.Enroll(ctx, "Jiří Novák", nil, []float32{0.1})
	b, err := s.Enroll(ctx, "jiri novak", nil, []float32{0.2})
	if err != nil {
		t.Fatalf("Enroll failed: %v", err)
	}
	if a.ID != b.ID {
		t.Error("name policy should merge normalized name variants")
	}
}

func TestEnroll_ValidationErrors(t *testing.T) {
	s := testStore(t, Options{})
	ctx := context.Background()

	_, err := s.Enroll(ctx, "", nil, []float32{0.1})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("expected ValidationError for empty name, got %v", err)
	}

	_, err = s.Enroll(ctx, "Alice", nil, nil)
	if !errors.As(err, &verr) {
		t.Errorf("expected ValidationError for empty embedding, got %v", err)
	}
}

func TestEnroll_DimensionMismatchLeavesCorpusUnchanged(t *testing.T) {
	s := testStore(t, Options{})
	ctx := context.Background()

	emb := make([]float32, 128)
	emb[0] = 1
	if _, err := s.Enroll(ctx, "Alice", map[string]string{"external_id": "S1"}, emb); err != nil {
		t.Fatalf("Enroll failed: %v", err)
	}

	short := make([]float32, 64)
	_, err := s.Enroll(ctx, "Bob", map[string]string{"external_id": "S2"}, short)
	var derr *DimensionError
	if !errors.As(err, &derr) {
		t.Fatalf("expected DimensionError, got %v", err)
	}
	if derr.Expected != 128 || derr.Actual != 64 {
		t.Errorf("unexpected dimensions in error: %+v", derr)
	}

	ids, _ := s.All(ctx)
	if len(ids) != 1 {
		t.Errorf("corpus changed after failed enrollment: %d identities", len(ids))
	}
}

func TestEnroll_FixedDimOption(t *testing.T) {
	s := testStore(t, Options{Dim: 4})

	_, err := s.Enroll(context.Background(), "Alice", nil, []float32{0.1, 0.2})
	var derr *DimensionError
	if !errors.As(err, &derr) {
		t.Fatalf("expected DimensionError against configured dim, got %v", err)
	}
	if derr.Expected != 4 || derr.Actual != 2 {
		t.Errorf("unexpected dimensions in error: %+v", derr)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	s := testStore(t, Options{})

	ids, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("expected empty corpus, got %d identities", len(ids))
	}
}

func TestLoad_UnreadableFileLeftUntouched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identities.json")
	garbage := []byte("{not json at all")
	if err := os.WriteFile(path, garbage, 0644); err != nil {
		t.Fatal(err)
	}

	s := New(path, Options{})
	ids, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("expected empty corpus from unreadable file, got %d", len(ids))
	}

	data, _ := os.ReadFile(path)
	if string(data) != string(garbage) {
		t.Error("unreadable file must be left untouched")
	}
}

func TestLoad_SelfHealRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identities.json")

	// Two valid entries, three corrupt ones: a non-record entry, a
	// record without embeddings, and a record with inconsistent
	// embedding lengths.
	file := map[string]any{
		"version": 1,
		"identities": []any{
			map[string]any{"id": "a", "display_name": "Alice", "embeddings": [][]float32{{0.1, 0.2}}},
			"not a record",
			map[string]any{"id": "b", "display_name": "Bob", "embeddings": [][]float32{}},
			map[string]any{"id": "c", "display_name": "Carol", "embeddings": [][]float32{{0.1, 0.2}, {0.3}}},
			map[string]any{"id": "d", "display_name": "Dave", "embeddings": [][]float32{{0.5, 0.6}}},
		},
	}
	data, _ := json.Marshal(file)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	s := New(path, Options{})
	ids, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 surviving identities, got %d", len(ids))
	}
	if ids[0].DisplayName != "Alice" || ids[1].DisplayName != "Dave" {
		t.Errorf("unexpected survivors: %s, %s", ids[0].DisplayName, ids[1].DisplayName)
	}

	// The self-heal write removed the invalid entries from the file:
	// a second load over the raw file sees only clean records.
	raw, _ := os.ReadFile(path)
	cleaned, dropped, repaired, err := decodeCorpus(raw, 0)
	if err != nil {
		t.Fatalf("decode of healed file failed: %v", err)
	}
	if dropped != 0 || repaired {
		t.Errorf("healed file still contains invalid entries (dropped=%d repaired=%v)", dropped, repaired)
	}
	if len(cleaned) != 2 {
		t.Errorf("expected 2 records in healed file, got %d", len(cleaned))
	}

	again, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("second Load failed: %v", err)
	}
	if len(again) != 2 {
		t.Errorf("second Load returned %d identities, want 2", len(again))
	}
}

func TestLoad_RegeneratesMissingIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identities.json")
	file := map[string]any{
		"version": 1,
		"identities": []any{
			map[string]any{"display_name": "Alice", "embeddings": [][]float32{{0.1}}},
		},
	}
	data, _ := json.Marshal(file)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	s := New(path, Options{})
	ids, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(ids) != 1 || ids[0].ID == "" {
		t.Fatalf("expected repaired identity with generated id, got %+v", ids)
	}

	// The generated id is persisted, so it stays stable across loads.
	again, _ := s.Load(context.Background())
	if again[0].ID != ids[0].ID {
		t.Errorf("id changed between loads: %s vs %s", ids[0].ID, again[0].ID)
	}
}

func TestAll_PreservesUnknownAttributeKeys(t *testing.T) {
	s := testStore(t, Options{})
	ctx := context.Background()

	attrs := map[string]string{"external_id": "S1", "homeroom_teacher": "Mr. K"}
	if _, err := s.Enroll(ctx, "Alice", attrs, []float32{0.1}); err != nil {
		t.Fatalf("Enroll failed: %v", err)
	}
	// A later enrollment without the extra key must not erase it.
	if _, err := s.Enroll(ctx, "Alice", map[string]string{"external_id": "S1"}, []float32{0.2}); err != nil {
		t.Fatalf("second Enroll failed: %v", err)
	}

	ids, _ := s.All(ctx)
	if ids[0].Attributes["homeroom_teacher"] != "Mr. K" {
		t.Errorf("unknown attribute key lost: %v", ids[0].Attributes)
	}
}

func TestAll_SnapshotDoesNotAliasStore(t *testing.T) {
	s := testStore(t, Options{})
	ctx := context.Background()

	if _, err := s.Enroll(ctx, "Alice", map[string]string{"external_id": "S1"}, []float32{0.1}); err != nil {
		t.Fatal(err)
	}

	ids, _ := s.All(ctx)
	ids[0].DisplayName = "Mallory"
	ids[0].Embeddings[0][0] = 99

	fresh, _ := s.All(ctx)
	if fresh[0].DisplayName != "Alice" || fresh[0].Embeddings[0][0] != 0.1 {
		t.Error("mutating a snapshot leaked into the store")
	}
}
