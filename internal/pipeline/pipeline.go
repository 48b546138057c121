// Package pipeline drives the ingestion and query paths: documents are
// chunked, embedded, and indexed; queries walk an explicit state machine
// from embedding through generation.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/yashdarak08/LLM-Business-Intelligence-Assistant/internal/chunker"
	"github.com/yashdarak08/LLM-Business-Intelligence-Assistant/internal/docstore"
	"github.com/yashdarak08/LLM-Business-Intelligence-Assistant/internal/embedding"
	"github.com/yashdarak08/LLM-Business-Intelligence-Assistant/internal/generation"
	"github.com/yashdarak08/LLM-Business-Intelligence-Assistant/internal/index"
	"github.com/yashdarak08/LLM-Business-Intelligence-Assistant/internal/lexical"
	"github.com/yashdarak08/LLM-Business-Intelligence-Assistant/internal/metrics"
	"github.com/yashdarak08/LLM-Business-Intelligence-Assistant/internal/retrieval"
)

// Document is the ingestion input unit.
type Document struct {
	ID         string
	Title      string
	Text       string
	SourcePath string
	Metadata   map[string]string
}

// Answer is a completed query result with its supporting context.
type Answer struct {
	Query   string
	Text    string
	Context retrieval.PromptContext
}

// IngestReport summarizes one ingestion batch. Failures are per document;
// one bad document never aborts the batch.
type IngestReport struct {
	Documents int
	Chunks    int
	Failures  []DocumentFailure
}

type DocumentFailure struct {
	DocumentID string
	Err        error
}

// Pipeline owns the shared capabilities and serves concurrent requests.
type Pipeline struct {
	chunker      *chunker.Chunker
	gateway      *embedding.Gateway
	idx          *index.Flat
	lex          *lexical.Index // nil disables keyword indexing
	retriever    *retrieval.Retriever
	assembler    *retrieval.Assembler
	orchestrator *generation.Orchestrator
	docs         *docstore.Store // nil disables document records
	logger       *zap.Logger
	sink         metrics.Sink
}

// Deps carries the capabilities a Pipeline is built from. Lexical and
// DocStore are optional.
type Deps struct {
	Chunker      *chunker.Chunker
	Gateway      *embedding.Gateway
	Index        *index.Flat
	Lexical      *lexical.Index
	Retriever    *retrieval.Retriever
	Assembler    *retrieval.Assembler
	Orchestrator *generation.Orchestrator
	DocStore     *docstore.Store
	Logger       *zap.Logger
	Sink         metrics.Sink
}

func New(d Deps) *Pipeline {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Sink == nil {
		d.Sink = metrics.NopSink{}
	}
	return &Pipeline{
		chunker:      d.Chunker,
		gateway:      d.Gateway,
		idx:          d.Index,
		lex:          d.Lexical,
		retriever:    d.Retriever,
		assembler:    d.Assembler,
		orchestrator: d.Orchestrator,
		docs:         d.DocStore,
		logger:       d.Logger,
		sink:         d.Sink,
	}
}

// Answer runs one query through embed, retrieve, assemble, and generate.
// A caller deadline cancels at the next external call.
func (p *Pipeline) Answer(ctx context.Context, q retrieval.Query) (*Answer, error) {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return nil, stageFailure(StageEmbedding, err)
	}

	hits, err := p.retriever.Retrieve(ctx, q)
	if err != nil {
		return nil, stageFailure(retrieveStage(err), err)
	}

	assembleStart := time.Now()
	pc := p.assembler.Assemble(q.Text, hits)
	p.sink.Emit(metrics.StageLatency("assemble", time.Since(assembleStart)))

	if err := ctx.Err(); err != nil {
		return nil, stageFailure(StageGenerating, err)
	}
	text, err := p.orchestrator.Generate(ctx, pc)
	if err != nil {
		return nil, stageFailure(StageGenerating, err)
	}

	p.sink.Emit(metrics.StageLatency("answer", time.Since(start)))
	p.logger.Info("answered query",
		zap.Int("context_chunks", len(pc.Chunks)),
		zap.Duration("elapsed", time.Since(start)))
	return &Answer{Query: q.Text, Text: text, Context: pc}, nil
}

// retrieveStage attributes a retrieval error to the embedding or the
// search stage based on its kind.
func retrieveStage(err error) Stage {
	switch classify(err) {
	case KindEmbeddingUnavailable, KindDimensionMismatch:
		return StageEmbedding
	default:
		return StageRetrieving
	}
}

// Ingest indexes the documents, superseding earlier ingestions of the
// same ids. Documents fail independently.
func (p *Pipeline) Ingest(ctx context.Context, docs []Document) (*IngestReport, error) {
	report := &IngestReport{}
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		n, err := p.ingestOne(ctx, doc)
		if err != nil {
			p.sink.Emit(metrics.Count(metrics.EventIngestFailures, 1))
			p.logger.Warn("document ingestion failed",
				zap.String("document_id", doc.ID),
				zap.Error(err))
			report.Failures = append(report.Failures, DocumentFailure{DocumentID: doc.ID, Err: err})
			continue
		}
		report.Documents++
		report.Chunks += n
	}
	p.sink.Emit(metrics.Count(metrics.EventDocumentsIngested, report.Documents))
	p.sink.Emit(metrics.Count(metrics.EventChunksIndexed, report.Chunks))
	return report, nil
}

func (p *Pipeline) ingestOne(ctx context.Context, doc Document) (int, error) {
	if doc.ID == "" {
		return 0, fmt.Errorf("document has no id")
	}
	chunks := p.chunker.Split(doc.ID, doc.Text)

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	// Embedding happens before any index mutation: an unavailable
	// capability must leave the previous ingestion intact.
	vectors, err := p.gateway.Embed(ctx, texts)
	if err != nil {
		return 0, stageFailure(StageEmbedding, err)
	}

	entries := make([]index.Entry, len(chunks))
	for i, c := range chunks {
		entries[i] = index.Entry{
			ChunkID:    c.ID,
			DocumentID: doc.ID,
			Ordinal:    c.Ordinal,
			Text:       c.Text,
			Vector:     vectors[i],
			Metadata:   chunkMetadata(doc),
		}
	}

	p.idx.RemoveDocument(doc.ID)
	if err := p.idx.Insert(entries); err != nil {
		return 0, fmt.Errorf("insert chunks: %w", err)
	}
	if p.lex != nil {
		if err := p.lex.RemoveDocument(doc.ID); err != nil {
			return 0, fmt.Errorf("supersede keyword entries: %w", err)
		}
		if err := p.lex.IndexEntries(entries); err != nil {
			return 0, fmt.Errorf("index keywords: %w", err)
		}
	}
	if p.docs != nil {
		record := docstore.Document{
			ID:          doc.ID,
			Title:       doc.Title,
			SourcePath:  doc.SourcePath,
			ContentHash: contentHash(doc.Text),
			ChunkCount:  len(entries),
		}
		if err := p.docs.Put(ctx, record); err != nil {
			return 0, fmt.Errorf("record document: %w", err)
		}
	}
	return len(entries), nil
}

func chunkMetadata(doc Document) map[string]string {
	meta := make(map[string]string, len(doc.Metadata)+2)
	for k, v := range doc.Metadata {
		meta[k] = v
	}
	if doc.Title != "" {
		meta["title"] = doc.Title
	}
	if doc.SourcePath != "" {
		meta["source"] = doc.SourcePath
	}
	return meta
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Search exposes retrieval without generation, for inspection.
func (p *Pipeline) Search(ctx context.Context, q retrieval.Query) ([]index.Hit, error) {
	hits, err := p.retriever.Retrieve(ctx, q)
	if err != nil {
		return nil, stageFailure(retrieveStage(err), err)
	}
	return hits, nil
}
