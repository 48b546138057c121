package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/yashdarak08/LLM-Business-Intelligence-Assistant/internal/config"
	"github.com/yashdarak08/LLM-Business-Intelligence-Assistant/internal/metrics"
)

// UnavailableError reports that the external embedding capability failed
// after exhausting the configured retry budget. The whole batch fails;
// partial per-item success is never returned.
type UnavailableError struct {
	Attempts int
	Err      error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("embedding capability unavailable after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// Gateway wraps an embedding Client with batching, a content-addressed
// cache, retry with exponential backoff, and a bound on in-flight
// external calls. It is safe for concurrent use.
type Gateway struct {
	client  Client
	cfg     config.EmbeddingConfig
	logger  *zap.Logger
	sink    metrics.Sink
	sem     chan struct{}
	mu      sync.RWMutex
	cache   map[string][]float32
	clock   func() time.Time
	sleepFn func(context.Context, time.Duration) error
}

// NewGateway creates a gateway around client using the given
// configuration. The client's declared dimension must match the
// configured one.
func NewGateway(client Client, cfg config.EmbeddingConfig, logger *zap.Logger, sink metrics.Sink) (*Gateway, error) {
	if client == nil {
		return nil, fmt.Errorf("embedding client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	if d := client.Dimensions(); d != cfg.Dimensions {
		return nil, &DimensionMismatchError{Want: cfg.Dimensions, Got: d}
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 4
	}

	return &Gateway{
		client:  client,
		cfg:     cfg,
		logger:  logger,
		sink:    sink,
		sem:     make(chan struct{}, cfg.MaxInFlight),
		cache:   make(map[string][]float32),
		clock:   time.Now,
		sleepFn: sleepContext,
	}, nil
}

// Dimensions returns the fixed embedding dimension.
func (g *Gateway) Dimensions() int {
	return g.cfg.Dimensions
}

// Embed returns one vector per input text, in input order. Repeated and
// previously seen texts are served from the cache. If the external
// capability fails past the retry budget the whole call fails with
// UnavailableError and nothing is cached from it.
func (g *Gateway) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	start := g.clock()
	results := make([][]float32, len(texts))
	keys := make([]string, len(texts))

	// Resolve cache hits and collect distinct misses.
	var missKeys []string
	var missTexts []string
	seen := make(map[string]bool)
	hits := 0

	g.mu.RLock()
	for i, text := range texts {
		key := cacheKey(text)
		keys[i] = key
		if vec, ok := g.cache[key]; ok {
			results[i] = vec
			hits++
			continue
		}
		if !seen[key] {
			seen[key] = true
			missKeys = append(missKeys, key)
			missTexts = append(missTexts, text)
		}
	}
	g.mu.RUnlock()

	g.sink.Emit(metrics.Count(metrics.EventCacheHits, hits))
	g.sink.Emit(metrics.Count(metrics.EventCacheMisses, len(missKeys)))

	if len(missKeys) > 0 {
		fresh := make(map[string][]float32, len(missKeys))
		batchSize := g.cfg.BatchSize
		for i := 0; i < len(missTexts); i += batchSize {
			end := i + batchSize
			if end > len(missTexts) {
				end = len(missTexts)
			}
			vectors, err := g.embedBatch(ctx, missTexts[i:end])
			if err != nil {
				return nil, err
			}
			for j, vec := range vectors {
				fresh[missKeys[i+j]] = vec
			}
		}

		g.mu.Lock()
		for key, vec := range fresh {
			g.cache[key] = vec
		}
		g.mu.Unlock()

		for i, key := range keys {
			if results[i] == nil {
				results[i] = fresh[key]
			}
		}
	}

	g.sink.Emit(metrics.StageLatency("embedding", g.clock().Sub(start)))
	return results, nil
}

// embedBatch invokes the external capability for one batch, retrying
// transient failures with exponential backoff.
func (g *Gateway) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	select {
	case g.sem <- struct{}{}:
		defer func() { <-g.sem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var lastErr error
	attempts := g.cfg.MaxRetries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			g.sink.Emit(metrics.Count(metrics.EventEmbeddingRetries, 1))
			backoff := g.cfg.BackoffBase.Std() << (attempt - 1)
			if err := g.sleepFn(ctx, backoff); err != nil {
				return nil, err
			}
		}

		callCtx := ctx
		var cancel context.CancelFunc
		if g.cfg.Timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, g.cfg.Timeout.Std())
		}
		vectors, err := g.client.EmbedBatch(callCtx, texts)
		if cancel != nil {
			cancel()
		}
		if err != nil {
			lastErr = err
			g.logger.Warn("embedding batch failed",
				zap.Int("attempt", attempt+1),
				zap.Int("batch_size", len(texts)),
				zap.Error(err))
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}

		if err := g.validate(texts, vectors); err != nil {
			return nil, err
		}
		return vectors, nil
	}

	return nil, &UnavailableError{Attempts: attempts, Err: lastErr}
}

// validate enforces the declared dimension on every returned vector.
func (g *Gateway) validate(texts []string, vectors [][]float32) error {
	if len(vectors) != len(texts) {
		return fmt.Errorf("expected %d vectors, got %d", len(texts), len(vectors))
	}
	for _, vec := range vectors {
		if len(vec) != g.cfg.Dimensions {
			return &DimensionMismatchError{Want: g.cfg.Dimensions, Got: len(vec)}
		}
	}
	return nil
}

// CacheSize reports the number of cached vectors.
func (g *Gateway) CacheSize() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.cache)
}

// cacheKey derives the content address for a text: the hex SHA-256 of
// its whitespace-normalized form.
func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(normalizeText(text)))
	return hex.EncodeToString(sum[:])
}

// normalizeText collapses runs of whitespace to single spaces and trims
// the ends, so texts differing only in layout share a cache entry.
func normalizeText(s string) string {
	var builder strings.Builder
	builder.Grow(len(s))

	var prevSpace bool
	for _, r := range s {
		if unicode.IsSpace(r) {
			if prevSpace {
				continue
			}
			builder.WriteRune(' ')
			prevSpace = true
			continue
		}
		builder.WriteRune(r)
		prevSpace = false
	}

	return strings.TrimSpace(builder.String())
}

// sleepContext sleeps for d unless ctx is cancelled first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
