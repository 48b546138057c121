// Package metrics defines the measurement events emitted by the pipeline
// and the sink interface that external transports implement. Field names
// and units are stable for dashboard compatibility.
package metrics

import "time"

// Event names. These are part of the external contract; do not rename.
const (
	EventStageLatency      = "stage_latency_ms"
	EventCacheHits         = "cache_hits"
	EventCacheMisses       = "cache_misses"
	EventRetrievalResults  = "retrieval_results"
	EventGenerationRetries = "generation_retries"
	EventEmbeddingRetries  = "embedding_retries"
	EventDocumentsIngested = "documents_ingested"
	EventChunksIndexed     = "chunks_indexed"
	EventIngestFailures    = "ingest_failures"
)

// Event is a single structured measurement. Value carries a count for
// counter events and milliseconds for latency events.
type Event struct {
	Name  string
	Stage string // pipeline stage for latency events, empty otherwise
	Value float64
}

// Sink receives pipeline events. Implementations must be safe for
// concurrent use; the pipeline never blocks on a sink.
type Sink interface {
	Emit(Event)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Emit(Event) {}

// StageLatency builds a latency event for one pipeline stage.
func StageLatency(stage string, d time.Duration) Event {
	return Event{Name: EventStageLatency, Stage: stage, Value: float64(d.Milliseconds())}
}

// Count builds a counter event.
func Count(name string, n int) Event {
	return Event{Name: name, Value: float64(n)}
}
