// Package retrieval ranks indexed chunks against a query and packs the
// best of them into a bounded prompt context.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/yashdarak08/LLM-Business-Intelligence-Assistant/internal/config"
	"github.com/yashdarak08/LLM-Business-Intelligence-Assistant/internal/embedding"
	"github.com/yashdarak08/LLM-Business-Intelligence-Assistant/internal/index"
	"github.com/yashdarak08/LLM-Business-Intelligence-Assistant/internal/lexical"
	"github.com/yashdarak08/LLM-Business-Intelligence-Assistant/internal/metrics"
)

// Query describes one retrieval request.
type Query struct {
	Text   string
	K      int // 0 means the configured default
	Filter index.Filter
	// MinScore drops results scoring below it. Negative disables the
	// configured default as well.
	MinScore float64
}

// Retriever embeds query text and searches the vector index, optionally
// blending in keyword match scores.
type Retriever struct {
	gateway *embedding.Gateway
	idx     *index.Flat
	lex     *lexical.Index // nil disables hybrid scoring
	cfg     config.RetrievalConfig
	logger  *zap.Logger
	sink    metrics.Sink
}

// NewRetriever wires a retriever over the given index. lex may be nil.
func NewRetriever(gw *embedding.Gateway, idx *index.Flat, lex *lexical.Index, cfg config.RetrievalConfig, logger *zap.Logger, sink metrics.Sink) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Retriever{gateway: gw, idx: idx, lex: lex, cfg: cfg, logger: logger, sink: sink}
}

// Retrieve returns up to q.K chunks ordered by descending score. An empty
// result is not an error.
func (r *Retriever) Retrieve(ctx context.Context, q Query) ([]index.Hit, error) {
	k := q.K
	if k <= 0 {
		k = r.cfg.DefaultTopK
	}
	minScore := q.MinScore
	if minScore == 0 {
		minScore = r.cfg.MinScore
	}

	start := time.Now()
	vectors, err := r.gateway.Embed(ctx, []string{q.Text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	// Over-fetch so min-score and overlap filtering still leave k results.
	overK := k * r.cfg.OverFetchFactor
	if overK < k+4 {
		overK = k + 4
	}
	hits, err := r.idx.Search(vectors[0], overK, q.Filter)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	if minScore > 0 {
		kept := hits[:0]
		for _, h := range hits {
			if h.Score >= minScore {
				kept = append(kept, h)
			}
		}
		hits = kept
	}

	if r.lex != nil && r.cfg.EnableHybrid {
		hits, err = r.rerank(q.Text, hits, overK)
		if err != nil {
			// Keyword scoring is an enhancement; vector results stand alone.
			r.logger.Warn("keyword rerank failed", zap.Error(err))
		}
	}

	hits = dedupeOverlapping(hits)
	if len(hits) > k {
		hits = hits[:k]
	}

	r.sink.Emit(metrics.StageLatency("retrieve", time.Since(start)))
	r.sink.Emit(metrics.Count(metrics.EventRetrievalResults, len(hits)))
	r.logger.Debug("retrieved chunks",
		zap.Int("results", len(hits)),
		zap.Int("k", k),
		zap.Duration("elapsed", time.Since(start)))
	return hits, nil
}

// rerank blends keyword match scores into the vector candidates. Chunks
// absent from the keyword results keep their weighted vector score.
func (r *Retriever) rerank(queryText string, hits []index.Hit, k int) ([]index.Hit, error) {
	matches, err := r.lex.Search(queryText, k)
	if err != nil {
		return hits, err
	}

	maxLex := 0.0
	for _, m := range matches {
		if m.Score > maxLex {
			maxLex = m.Score
		}
	}
	lexByID := make(map[string]float64, len(matches))
	if maxLex > 0 {
		for _, m := range matches {
			lexByID[m.ChunkID] = m.Score / maxLex
		}
	}

	blended := make([]index.Hit, len(hits))
	for i, h := range hits {
		h.Score = r.cfg.VectorWeight*h.Score + r.cfg.KeywordWeight*lexByID[h.ChunkID]
		blended[i] = h
	}
	sort.SliceStable(blended, func(i, j int) bool {
		if blended[i].Score != blended[j].Score {
			return blended[i].Score > blended[j].Score
		}
		return blended[i].ChunkID < blended[j].ChunkID
	})
	return blended, nil
}

// dedupeOverlapping drops hits whose chunk span overlaps an already kept,
// higher-scoring hit from the same document. Adjacent ordinals share the
// chunker's overlap window, so they count as overlapping.
func dedupeOverlapping(hits []index.Hit) []index.Hit {
	keptOrdinals := make(map[string][]int)
	kept := hits[:0]
	for _, h := range hits {
		overlaps := false
		for _, ord := range keptOrdinals[h.DocumentID] {
			if h.Ordinal == ord || h.Ordinal == ord-1 || h.Ordinal == ord+1 {
				overlaps = true
				break
			}
		}
		if overlaps {
			continue
		}
		keptOrdinals[h.DocumentID] = append(keptOrdinals[h.DocumentID], h.Ordinal)
		kept = append(kept, h)
	}
	return kept
}
