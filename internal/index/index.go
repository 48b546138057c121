// Package index stores embedding vectors with their chunk identifiers
// and answers nearest-neighbor queries. The exact brute-force scan is
// the reference search mode; searches run fully concurrently while
// mutations take exclusive access.
package index

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/yashdarak08/LLM-Business-Intelligence-Assistant/internal/config"
	"github.com/yashdarak08/LLM-Business-Intelligence-Assistant/internal/embedding"
)

// ErrCorrupted reports that a persisted index failed validation on load.
var ErrCorrupted = errors.New("index corrupted")

// Entry is one indexed chunk: its identifier, vector, and the minimal
// denormalized metadata needed for ranking and filtering. The index
// exclusively owns entry storage; document content stays external.
type Entry struct {
	ChunkID    string
	DocumentID string
	Ordinal    int
	Text       string
	Vector     []float32
	Metadata   map[string]string
}

// Hit is one search result: a chunk identifier with its similarity
// score. Higher scores are more relevant under both metrics.
type Hit struct {
	ChunkID    string
	DocumentID string
	Ordinal    int
	Text       string
	Score      float64
}

// Filter restricts search to entries whose metadata contains every
// listed key with an equal value. A nil or empty filter matches all.
type Filter map[string]string

func (f Filter) matches(meta map[string]string) bool {
	for k, v := range f {
		if meta[k] != v {
			return false
		}
	}
	return true
}

// Flat is a brute-force vector index with a fixed dimension and distance
// metric. Removal leaves tombstones in the scan list; Compact reclaims
// them without blocking reads beyond a brief swap.
type Flat struct {
	dims   int
	metric config.Metric

	mu      sync.RWMutex
	pos     map[string]int // chunk id -> slot in list
	list    []*Entry       // scan order; nil slots are tombstones
	dead    int
	version uint64
}

// NewFlat creates an empty index with the given dimension and metric.
func NewFlat(dims int, metric config.Metric) (*Flat, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("index dimension must be positive, got: %d", dims)
	}
	switch metric {
	case config.MetricCosine, config.MetricEuclidean:
	default:
		return nil, fmt.Errorf("unsupported distance metric: %q", metric)
	}
	return &Flat{
		dims:   dims,
		metric: metric,
		pos:    make(map[string]int),
	}, nil
}

// Dimensions returns the fixed vector dimension.
func (f *Flat) Dimensions() int { return f.dims }

// Metric returns the configured distance metric.
func (f *Flat) Metric() config.Metric { return f.metric }

// Len returns the number of live entries.
func (f *Flat) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.pos)
}

// Insert adds entries to the index. Every vector is dimension-checked
// before any entry is stored, so a mismatch never leaves a partial
// insert behind. Inserting an existing chunk id replaces that entry.
func (f *Flat) Insert(entries []Entry) error {
	for i := range entries {
		if len(entries[i].Vector) != f.dims {
			return &embedding.DimensionMismatchError{Want: f.dims, Got: len(entries[i].Vector)}
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range entries {
		e := entries[i]
		if slot, ok := f.pos[e.ChunkID]; ok {
			f.list[slot] = nil
			f.dead++
		}
		f.pos[e.ChunkID] = len(f.list)
		f.list = append(f.list, &e)
	}
	f.version++
	return nil
}

// Remove deletes entries by chunk id. Unknown ids are ignored.
func (f *Flat) Remove(chunkIDs []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range chunkIDs {
		if slot, ok := f.pos[id]; ok {
			f.list[slot] = nil
			f.dead++
			delete(f.pos, id)
		}
	}
	f.version++
}

// RemoveDocument deletes every entry belonging to a document. A no-op
// for unknown documents. Returns the number of entries removed.
func (f *Flat) RemoveDocument(documentID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	removed := 0
	for id, slot := range f.pos {
		if f.list[slot].DocumentID == documentID {
			f.list[slot] = nil
			f.dead++
			delete(f.pos, id)
			removed++
		}
	}
	f.version++
	return removed
}

// Search returns up to k nearest entries to the query vector, optionally
// restricted by filter. Results are ordered by descending score with
// ties broken by chunk identifier ascending.
func (f *Flat) Search(query []float32, k int, filter Filter) ([]Hit, error) {
	if len(query) != f.dims {
		return nil, &embedding.DimensionMismatchError{Want: f.dims, Got: len(query)}
	}
	if k <= 0 {
		return nil, nil
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	hits := make([]Hit, 0, len(f.pos))
	for _, e := range f.list {
		if e == nil {
			continue
		}
		if filter != nil && !filter.matches(e.Metadata) {
			continue
		}
		hits = append(hits, Hit{
			ChunkID:    e.ChunkID,
			DocumentID: e.DocumentID,
			Ordinal:    e.Ordinal,
			Text:       e.Text,
			Score:      f.score(query, e.Vector),
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// score computes the similarity of two equal-length vectors under the
// configured metric: cosine similarity, or negative Euclidean distance
// so that higher always means more relevant.
func (f *Flat) score(query, vec []float32) float64 {
	switch f.metric {
	case config.MetricEuclidean:
		return -float64(embedding.L2Distance(query, vec))
	default:
		return float64(embedding.Similarity(query, vec))
	}
}

// Compact rebuilds the scan list without tombstones. The replacement is
// built while reads continue; only the final swap takes the write lock.
func (f *Flat) Compact() {
	for attempt := 0; attempt < 3; attempt++ {
		f.mu.RLock()
		version := f.version
		rebuilt, positions := f.rebuild()
		f.mu.RUnlock()

		f.mu.Lock()
		if f.version == version {
			f.list = rebuilt
			f.pos = positions
			f.dead = 0
			f.mu.Unlock()
			return
		}
		f.mu.Unlock()
	}

	// Concurrent mutations kept invalidating the snapshot; rebuild
	// under the write lock as a fallback.
	f.mu.Lock()
	f.list, f.pos = f.rebuild()
	f.dead = 0
	f.mu.Unlock()
}

// rebuild produces a tombstone-free copy of the scan list and its
// position map. Caller holds at least the read lock.
func (f *Flat) rebuild() ([]*Entry, map[string]int) {
	list := make([]*Entry, 0, len(f.pos))
	positions := make(map[string]int, len(f.pos))
	for _, e := range f.list {
		if e == nil {
			continue
		}
		positions[e.ChunkID] = len(list)
		list = append(list, e)
	}
	return list, positions
}

// snapshot returns the live entries ordered by chunk id, for a
// deterministic on-disk layout.
func (f *Flat) snapshot() []*Entry {
	f.mu.RLock()
	defer f.mu.RUnlock()
	entries := make([]*Entry, 0, len(f.pos))
	for _, e := range f.list {
		if e != nil {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ChunkID < entries[j].ChunkID })
	return entries
}
