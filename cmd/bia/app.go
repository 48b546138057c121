package main

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/yashdarak08/LLM-Business-Intelligence-Assistant/cmd/bia/internal"
	"github.com/yashdarak08/LLM-Business-Intelligence-Assistant/internal/chunker"
	"github.com/yashdarak08/LLM-Business-Intelligence-Assistant/internal/config"
	"github.com/yashdarak08/LLM-Business-Intelligence-Assistant/internal/docstore"
	"github.com/yashdarak08/LLM-Business-Intelligence-Assistant/internal/embedding"
	"github.com/yashdarak08/LLM-Business-Intelligence-Assistant/internal/generation"
	"github.com/yashdarak08/LLM-Business-Intelligence-Assistant/internal/index"
	"github.com/yashdarak08/LLM-Business-Intelligence-Assistant/internal/lexical"
	"github.com/yashdarak08/LLM-Business-Intelligence-Assistant/internal/metrics"
	"github.com/yashdarak08/LLM-Business-Intelligence-Assistant/internal/pipeline"
	"github.com/yashdarak08/LLM-Business-Intelligence-Assistant/internal/retrieval"
)

// app bundles the wired pipeline with the handles a command needs to
// persist state on the way out.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	pipeline *pipeline.Pipeline
	idx      *index.Flat
	lex      *lexical.Index
	docs     *docstore.Store
}

// newApp builds the pipeline from config. The generation client is only
// wired when the command needs it, so ingest and search work without a
// generation key.
func newApp(cfg *config.Config, withGeneration bool) (*app, error) {
	logger, err := internal.NewLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	sink := metrics.NewPromSink(prometheus.NewRegistry())

	apiKey := cfg.EmbeddingAPIKey()
	if apiKey == "" {
		return nil, fmt.Errorf("no embedding API key configured (set embedding.api_key or OPENAI_API_KEY)")
	}
	client, err := embedding.NewOpenAIClient(apiKey, cfg.Embedding.Model, cfg.Embedding.Dimensions)
	if err != nil {
		return nil, err
	}
	gateway, err := embedding.NewGateway(client, cfg.Embedding, logger, sink)
	if err != nil {
		return nil, err
	}

	idx, err := openIndex(cfg)
	if err != nil {
		return nil, err
	}
	lex, err := lexical.Open(cfg.Index.LexicalPath)
	if err != nil {
		return nil, err
	}
	docs, err := docstore.Open(cfg.Ingest.DocStorePath)
	if err != nil {
		lex.Close()
		return nil, err
	}

	retriever := retrieval.NewRetriever(gateway, idx, lex, cfg.Retrieval, logger, sink)
	assembler := retrieval.NewAssembler(cfg.Retrieval.MaxContextBudget)

	var orchestrator *generation.Orchestrator
	if withGeneration {
		genKey := cfg.GenerationAPIKey()
		if genKey == "" {
			lex.Close()
			docs.Close()
			return nil, fmt.Errorf("no generation API key configured (set generation.api_key or OPENAI_API_KEY)")
		}
		genClient := generation.NewOpenAIChatClient(genKey, cfg.Generation.Model, cfg.Generation.Temperature)
		orchestrator = generation.NewOrchestrator(genClient, cfg.Generation, logger, sink)
	}

	p := pipeline.New(pipeline.Deps{
		Chunker:      chunker.New(cfg.Chunking.ChunkSize, cfg.Chunking.Overlap, cfg.Chunking.Lookback),
		Gateway:      gateway,
		Index:        idx,
		Lexical:      lex,
		Retriever:    retriever,
		Assembler:    assembler,
		Orchestrator: orchestrator,
		DocStore:     docs,
		Logger:       logger,
		Sink:         sink,
	})

	return &app{cfg: cfg, logger: logger, pipeline: p, idx: idx, lex: lex, docs: docs}, nil
}

func openIndex(cfg *config.Config) (*index.Flat, error) {
	path := cfg.Index.Path
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return index.NewFlat(cfg.Embedding.Dimensions, cfg.Index.DistanceMetric)
	}
	return index.LoadFrom(path, cfg.Embedding.Dimensions, cfg.Index.DistanceMetric)
}

// saveIndex persists the vector index after mutation.
func (a *app) saveIndex() error {
	return a.idx.SaveTo(a.cfg.Index.Path)
}

func (a *app) close() {
	if err := a.lex.Close(); err != nil {
		a.logger.Warn("failed to close keyword index", zap.Error(err))
	}
	if err := a.docs.Close(); err != nil {
		a.logger.Warn("failed to close document store", zap.Error(err))
	}
	_ = a.logger.Sync()
}
