package retrieval

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/yashdarak08/LLM-Business-Intelligence-Assistant/internal/config"
	"github.com/yashdarak08/LLM-Business-Intelligence-Assistant/internal/embedding"
	"github.com/yashdarak08/LLM-Business-Intelligence-Assistant/internal/index"
	"github.com/yashdarak08/LLM-Business-Intelligence-Assistant/internal/lexical"
)

// vocabClient embeds text as normalized term counts over a fixed vocabulary,
// so related texts have high cosine similarity.
type vocabClient struct {
	vocab []string
}

func (c *vocabClient) Dimensions() int { return len(c.vocab) }

func (c *vocabClient) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, len(c.vocab))
		for j, term := range c.vocab {
			vec[j] = float32(countTerm(text, term))
		}
		normalize(vec)
		out[i] = vec
	}
	return out, nil
}

func countTerm(text, term string) int {
	n := 0
	for i := 0; i+len(term) <= len(text); i++ {
		if text[i:i+len(term)] == term {
			n++
		}
	}
	return n
}

func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		vec[0] = 1
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
}

var testVocab = []string{"revenue", "cloud", "cost", "marketing", "campaign", "growth"}

func newTestRetriever(t *testing.T, cfg config.RetrievalConfig) (*Retriever, *index.Flat, *embedding.Gateway) {
	t.Helper()
	client := &vocabClient{vocab: testVocab}
	gw, err := embedding.NewGateway(client, config.EmbeddingConfig{
		Dimensions: len(testVocab),
		BatchSize:  8,
		Timeout:    config.Duration(time.Second),
	}, nil, nil)
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	idx, err := index.NewFlat(len(testVocab), config.MetricCosine)
	if err != nil {
		t.Fatalf("NewFlat: %v", err)
	}
	return NewRetriever(gw, idx, nil, cfg, nil, nil), idx, gw
}

func seedIndex(t *testing.T, idx *index.Flat, gw *embedding.Gateway, texts map[string]string) {
	t.Helper()
	entries := make([]index.Entry, 0, len(texts))
	ids := make([]string, 0, len(texts))
	plain := make([]string, 0, len(texts))
	for id, text := range texts {
		ids = append(ids, id)
		plain = append(plain, text)
	}
	vectors, err := gw.Embed(context.Background(), plain)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	for i, id := range ids {
		doc, ordinal := splitID(id)
		entries = append(entries, index.Entry{
			ChunkID:    id,
			DocumentID: doc,
			Ordinal:    ordinal,
			Text:       plain[i],
			Vector:     vectors[i],
		})
	}
	if err := idx.Insert(entries); err != nil {
		t.Fatalf("Insert: %v", err)
	}
}

func splitID(id string) (string, int) {
	for i := 0; i < len(id); i++ {
		if id[i] == '#' {
			ord := 0
			for j := i + 1; j < len(id) && id[j] != '@'; j++ {
				ord = ord*10 + int(id[j]-'0')
			}
			return id[:i], ord
		}
	}
	return id, 0
}

func TestRetrieveOrderingAndLimit(t *testing.T) {
	r, idx, gw := newTestRetriever(t, config.RetrievalConfig{DefaultTopK: 2})
	seedIndex(t, idx, gw, map[string]string{
		"a#0@0": "cloud revenue growth beat expectations",
		"b#0@0": "marketing campaign budget for spring",
		"c#0@0": "cost controls reduced overhead",
		"d#0@0": "cloud revenue grew again this quarter",
		"e#0@0": "campaign performance in the cloud segment",
	})

	hits, err := r.Retrieve(context.Background(), Query{Text: "cloud revenue growth", K: 2})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].Score > hits[i-1].Score {
			t.Errorf("hits out of order: %f before %f", hits[i-1].Score, hits[i].Score)
		}
	}
	if hits[0].DocumentID != "a" && hits[0].DocumentID != "d" {
		t.Errorf("top hit should mention cloud revenue, got %s (%q)", hits[0].ChunkID, hits[0].Text)
	}
}

func TestRetrieveMinScoreFilter(t *testing.T) {
	r, idx, gw := newTestRetriever(t, config.RetrievalConfig{DefaultTopK: 5})
	seedIndex(t, idx, gw, map[string]string{
		"a#0@0": "cloud revenue growth beat expectations",
		"b#0@0": "marketing campaign budget for spring",
	})

	hits, err := r.Retrieve(context.Background(), Query{Text: "cloud revenue growth", K: 5, MinScore: 0.5})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	for _, h := range hits {
		if h.Score < 0.5 {
			t.Errorf("hit %s scored %f, below min score", h.ChunkID, h.Score)
		}
	}
	if len(hits) == 0 {
		t.Fatal("expected the cloud revenue chunk to clear the threshold")
	}
}

func TestRetrieveEmptyIndex(t *testing.T) {
	r, _, _ := newTestRetriever(t, config.RetrievalConfig{DefaultTopK: 3})
	hits, err := r.Retrieve(context.Background(), Query{Text: "anything on revenue", K: 3})
	if err != nil {
		t.Fatalf("Retrieve on empty index: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("got %d hits from empty index", len(hits))
	}
}

func TestRetrieveDedupesOverlappingChunks(t *testing.T) {
	r, idx, gw := newTestRetriever(t, config.RetrievalConfig{DefaultTopK: 4})
	// Adjacent ordinals of the same document share overlap text and
	// embed near-identically; only one should survive.
	seedIndex(t, idx, gw, map[string]string{
		"a#0@0":  "cloud revenue growth beat expectations",
		"a#1@30": "revenue growth beat expectations in cloud",
		"b#0@0":  "marketing campaign budget for spring",
	})

	hits, err := r.Retrieve(context.Background(), Query{Text: "cloud revenue growth", K: 4})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	seen := 0
	for _, h := range hits {
		if h.DocumentID == "a" {
			seen++
		}
	}
	if seen != 1 {
		t.Errorf("got %d overlapping chunks from document a, want 1", seen)
	}
}

func TestRetrieveHybridRerank(t *testing.T) {
	client := &vocabClient{vocab: testVocab}
	gw, err := embedding.NewGateway(client, config.EmbeddingConfig{
		Dimensions: len(testVocab),
		BatchSize:  8,
		Timeout:    config.Duration(time.Second),
	}, nil, nil)
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	idx, err := index.NewFlat(len(testVocab), config.MetricCosine)
	if err != nil {
		t.Fatalf("NewFlat: %v", err)
	}
	lex, err := lexical.Open(filepath.Join(t.TempDir(), "lex"))
	if err != nil {
		t.Fatalf("lexical.Open: %v", err)
	}
	defer lex.Close()

	// Both chunks embed identically over the vocabulary; only the keyword
	// index can tell them apart on the out-of-vocabulary term.
	texts := []string{
		"cloud revenue growth in the fiscal ledger",
		"cloud revenue growth overview",
	}
	vecs, err := gw.Embed(context.Background(), texts)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	entries := []index.Entry{
		{ChunkID: "z#0@0", DocumentID: "z", Text: texts[0], Vector: vecs[0]},
		{ChunkID: "a#0@0", DocumentID: "a", Text: texts[1], Vector: vecs[1]},
	}
	if err := idx.Insert(entries); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := lex.IndexEntries(entries); err != nil {
		t.Fatalf("IndexEntries: %v", err)
	}

	r := NewRetriever(gw, idx, lex, config.RetrievalConfig{
		DefaultTopK:   2,
		EnableHybrid:  true,
		VectorWeight:  0.7,
		KeywordWeight: 0.3,
	}, nil, nil)

	hits, err := r.Retrieve(context.Background(), Query{Text: "cloud revenue ledger", K: 2})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	if hits[0].ChunkID != "z#0@0" {
		t.Errorf("keyword boost should rank the ledger chunk first, got %s", hits[0].ChunkID)
	}
	if hits[1].Score > hits[0].Score {
		t.Errorf("blended scores out of order: %f before %f", hits[0].Score, hits[1].Score)
	}
}

func TestRetrieveMetadataFilter(t *testing.T) {
	r, idx, gw := newTestRetriever(t, config.RetrievalConfig{DefaultTopK: 5})
	vecs, err := gw.Embed(context.Background(), []string{
		"cloud revenue growth in the east region",
		"cloud revenue growth in the west region",
	})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	err = idx.Insert([]index.Entry{
		{ChunkID: "a#0@0", DocumentID: "a", Text: "east", Vector: vecs[0], Metadata: map[string]string{"region": "east"}},
		{ChunkID: "b#0@0", DocumentID: "b", Text: "west", Vector: vecs[1], Metadata: map[string]string{"region": "west"}},
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	hits, err := r.Retrieve(context.Background(), Query{
		Text:   "cloud revenue growth",
		K:      5,
		Filter: index.Filter{"region": "west"},
	})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(hits) != 1 || hits[0].DocumentID != "b" {
		t.Fatalf("filter should keep only the west chunk, got %v", hits)
	}
}
