package index

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/yashdarak08/LLM-Business-Intelligence-Assistant/internal/config"
	"github.com/yashdarak08/LLM-Business-Intelligence-Assistant/internal/embedding"
)

func entry(chunkID, docID string, ordinal int, vec []float32) Entry {
	return Entry{
		ChunkID:    chunkID,
		DocumentID: docID,
		Ordinal:    ordinal,
		Text:       "text of " + chunkID,
		Vector:     vec,
	}
}

func mustFlat(t *testing.T, dims int, metric config.Metric) *Flat {
	t.Helper()
	f, err := NewFlat(dims, metric)
	if err != nil {
		t.Fatalf("NewFlat() error: %v", err)
	}
	return f
}

func TestNewFlatValidation(t *testing.T) {
	if _, err := NewFlat(0, config.MetricCosine); err == nil {
		t.Error("expected error for zero dimension")
	}
	if _, err := NewFlat(4, "hamming"); err == nil {
		t.Error("expected error for unknown metric")
	}
}

func TestInsertDimensionEnforcement(t *testing.T) {
	f := mustFlat(t, 3, config.MetricCosine)

	err := f.Insert([]Entry{
		entry("a", "doc1", 0, []float32{1, 0, 0}),
		entry("b", "doc1", 1, []float32{1, 0}), // wrong dimension
	})
	if err == nil {
		t.Fatal("expected DimensionMismatch for wrong-length vector")
	}
	var mismatch *embedding.DimensionMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("error type = %T, want *DimensionMismatchError", err)
	}

	// No partial insert.
	if f.Len() != 0 {
		t.Errorf("Len() = %d after failed insert, want 0", f.Len())
	}
}

func TestSearchOrderingAndTieBreak(t *testing.T) {
	f := mustFlat(t, 2, config.MetricCosine)
	// "b" and "a" have identical vectors: the tie breaks by chunk id
	// ascending for determinism.
	if err := f.Insert([]Entry{
		entry("b", "doc1", 1, []float32{1, 0}),
		entry("a", "doc1", 0, []float32{1, 0}),
		entry("c", "doc1", 2, []float32{0, 1}),
	}); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}

	hits, err := f.Search([]float32{1, 0}, 10, nil)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("got %d hits, want 3", len(hits))
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].Score > hits[i-1].Score {
			t.Errorf("scores not non-increasing at %d: %v then %v", i, hits[i-1].Score, hits[i].Score)
		}
	}
	if hits[0].ChunkID != "a" || hits[1].ChunkID != "b" {
		t.Errorf("tie-break order = %s, %s; want a, b", hits[0].ChunkID, hits[1].ChunkID)
	}
}

func TestSearchTopK(t *testing.T) {
	f := mustFlat(t, 2, config.MetricCosine)
	var entries []Entry
	for i := 0; i < 10; i++ {
		angle := float64(i) * 0.1
		entries = append(entries, entry(fmt.Sprintf("c%02d", i), "doc1", i,
			[]float32{float32(math.Cos(angle)), float32(math.Sin(angle))}))
	}
	if err := f.Insert(entries); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}

	hits, err := f.Search([]float32{1, 0}, 3, nil)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(hits) != 3 {
		t.Errorf("got %d hits, want exactly k=3", len(hits))
	}
	if hits[0].ChunkID != "c00" {
		t.Errorf("best hit = %s, want c00", hits[0].ChunkID)
	}
}

func TestSearchQueryDimensionMismatch(t *testing.T) {
	f := mustFlat(t, 3, config.MetricCosine)
	_, err := f.Search([]float32{1, 0}, 5, nil)
	var mismatch *embedding.DimensionMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("error type = %T, want *DimensionMismatchError", err)
	}
}

func TestSearchEuclideanMetric(t *testing.T) {
	f := mustFlat(t, 2, config.MetricEuclidean)
	if err := f.Insert([]Entry{
		entry("near", "doc1", 0, []float32{0.1, 0}),
		entry("far", "doc1", 1, []float32{5, 5}),
	}); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}

	hits, err := f.Search([]float32{0, 0}, 2, nil)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if hits[0].ChunkID != "near" {
		t.Errorf("best hit = %s, want near", hits[0].ChunkID)
	}
	// Negative distance: higher score is closer.
	if hits[0].Score <= hits[1].Score {
		t.Errorf("scores not descending: %v then %v", hits[0].Score, hits[1].Score)
	}
	if hits[0].Score > 0 {
		t.Errorf("euclidean score = %v, want <= 0", hits[0].Score)
	}
}

func TestSearchFilter(t *testing.T) {
	f := mustFlat(t, 2, config.MetricCosine)
	a := entry("a", "doc1", 0, []float32{1, 0})
	a.Metadata = map[string]string{"department": "finance"}
	b := entry("b", "doc2", 0, []float32{1, 0})
	b.Metadata = map[string]string{"department": "sales"}
	if err := f.Insert([]Entry{a, b}); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}

	hits, err := f.Search([]float32{1, 0}, 10, Filter{"department": "finance"})
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(hits) != 1 || hits[0].ChunkID != "a" {
		t.Errorf("filtered hits = %v, want only a", hits)
	}
}

func TestRemoveUnknownIsNoop(t *testing.T) {
	f := mustFlat(t, 2, config.MetricCosine)
	if err := f.Insert([]Entry{entry("a", "doc1", 0, []float32{1, 0})}); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}

	f.Remove([]string{"missing", "also-missing"})
	if f.Len() != 1 {
		t.Errorf("Len() = %d after removing unknown ids, want 1", f.Len())
	}

	f.Remove([]string{"a"})
	if f.Len() != 0 {
		t.Errorf("Len() = %d after removing a, want 0", f.Len())
	}

	hits, err := f.Search([]float32{1, 0}, 10, nil)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("removed entry still returned: %v", hits)
	}
}

func TestRemoveDocument(t *testing.T) {
	f := mustFlat(t, 2, config.MetricCosine)
	if err := f.Insert([]Entry{
		entry("a", "doc1", 0, []float32{1, 0}),
		entry("b", "doc1", 1, []float32{0, 1}),
		entry("c", "doc2", 0, []float32{1, 1}),
	}); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}

	if removed := f.RemoveDocument("doc1"); removed != 2 {
		t.Errorf("RemoveDocument(doc1) = %d, want 2", removed)
	}
	if removed := f.RemoveDocument("unknown"); removed != 0 {
		t.Errorf("RemoveDocument(unknown) = %d, want 0", removed)
	}
	if f.Len() != 1 {
		t.Errorf("Len() = %d, want 1", f.Len())
	}
}

func TestInsertReplacesExistingChunk(t *testing.T) {
	f := mustFlat(t, 2, config.MetricCosine)
	if err := f.Insert([]Entry{entry("a", "doc1", 0, []float32{1, 0})}); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}
	if err := f.Insert([]Entry{entry("a", "doc1", 0, []float32{0, 1})}); err != nil {
		t.Fatalf("second Insert() error: %v", err)
	}

	if f.Len() != 1 {
		t.Fatalf("Len() = %d after replacement, want 1", f.Len())
	}
	hits, err := f.Search([]float32{0, 1}, 1, nil)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(hits) != 1 || hits[0].Score < 0.99 {
		t.Errorf("replacement vector not in effect: %v", hits)
	}
}

func TestCompact(t *testing.T) {
	f := mustFlat(t, 2, config.MetricCosine)
	var entries []Entry
	for i := 0; i < 20; i++ {
		entries = append(entries, entry(fmt.Sprintf("c%02d", i), "doc1", i, []float32{1, float32(i)}))
	}
	if err := f.Insert(entries); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}
	for i := 0; i < 10; i++ {
		f.Remove([]string{fmt.Sprintf("c%02d", i*2)})
	}

	before, err := f.Search([]float32{1, 0}, 20, nil)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}

	f.Compact()

	after, err := f.Search([]float32{1, 0}, 20, nil)
	if err != nil {
		t.Fatalf("Search() after Compact error: %v", err)
	}
	if len(before) != len(after) {
		t.Fatalf("result count changed across Compact: %d vs %d", len(before), len(after))
	}
	for i := range before {
		if before[i] != after[i] {
			t.Errorf("result %d changed across Compact: %+v vs %+v", i, before[i], after[i])
		}
	}
	if f.dead != 0 {
		t.Errorf("dead slots = %d after Compact, want 0", f.dead)
	}
}

func TestConcurrentSearchAndMutation(t *testing.T) {
	f := mustFlat(t, 2, config.MetricCosine)
	if err := f.Insert([]Entry{entry("seed", "doc0", 0, []float32{1, 0})}); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				id := fmt.Sprintf("w%d-%d", w, i)
				_ = f.Insert([]Entry{entry(id, fmt.Sprintf("doc-w%d", w), i, []float32{float32(i), 1})})
				if i%3 == 0 {
					f.Remove([]string{id})
				}
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				if _, err := f.Search([]float32{1, 0}, 5, nil); err != nil {
					t.Errorf("concurrent Search() error: %v", err)
					return
				}
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 10; i++ {
			f.Compact()
		}
	}()
	wg.Wait()

	// The seed entry must have survived untouched.
	hits, err := f.Search([]float32{1, 0}, f.Len(), nil)
	if err != nil {
		t.Fatalf("final Search() error: %v", err)
	}
	found := false
	for _, h := range hits {
		if h.ChunkID == "seed" {
			found = true
		}
	}
	if !found {
		t.Error("seed entry lost during concurrent mutation")
	}
}
