package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink adapts the event stream to prometheus collectors. Serving the
// registry over HTTP is the caller's concern.
type PromSink struct {
	stageLatency *prometheus.HistogramVec
	counters     map[string]prometheus.Counter
}

// NewPromSink creates a sink registered against reg.
func NewPromSink(reg prometheus.Registerer) *PromSink {
	s := &PromSink{
		stageLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bia_stage_latency_ms",
			Help:    "Per-stage pipeline latency in milliseconds.",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}, []string{"stage"}),
		counters: make(map[string]prometheus.Counter),
	}

	counterNames := map[string]string{
		EventCacheHits:         "Embedding cache hits.",
		EventCacheMisses:       "Embedding cache misses.",
		EventRetrievalResults:  "Total retrieval results returned.",
		EventGenerationRetries: "Generation attempts beyond the first.",
		EventEmbeddingRetries:  "Embedding attempts beyond the first.",
		EventDocumentsIngested: "Documents ingested.",
		EventChunksIndexed:     "Chunks inserted into the vector index.",
		EventIngestFailures:    "Documents that failed ingestion.",
	}
	for name, help := range counterNames {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bia_" + name,
			Help: help,
		})
		s.counters[name] = c
		reg.MustRegister(c)
	}
	reg.MustRegister(s.stageLatency)

	return s
}

// Emit implements Sink.
func (s *PromSink) Emit(ev Event) {
	if ev.Name == EventStageLatency {
		s.stageLatency.WithLabelValues(ev.Stage).Observe(ev.Value)
		return
	}
	if c, ok := s.counters[ev.Name]; ok {
		c.Add(ev.Value)
	}
}
