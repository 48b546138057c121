package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/yashdarak08/LLM-Business-Intelligence-Assistant/internal/embedding"
	"github.com/yashdarak08/LLM-Business-Intelligence-Assistant/internal/generation"
	"github.com/yashdarak08/LLM-Business-Intelligence-Assistant/internal/index"
)

// Stage names a step of the per-request state machine. A request moves
// Pending -> Embedding -> Retrieving -> Assembling -> Generating and ends
// in Succeeded or Failed.
type Stage string

const (
	StagePending    Stage = "pending"
	StageEmbedding  Stage = "embedding"
	StageRetrieving Stage = "retrieving"
	StageAssembling Stage = "assembling"
	StageGenerating Stage = "generating"
	StageSucceeded  Stage = "succeeded"
	StageFailed     Stage = "failed"
)

// Kind classifies a failure for callers and dashboards.
type Kind string

const (
	KindDimensionMismatch    Kind = "dimension_mismatch"
	KindEmbeddingUnavailable Kind = "embedding_unavailable"
	KindGenerationFailed     Kind = "generation_failed"
	KindIndexCorrupted       Kind = "index_corrupted"
	KindTimeout              Kind = "timeout"
	KindInternal             Kind = "internal"
)

// StageError reports which stage a request failed in and why.
type StageError struct {
	Stage Stage
	Kind  Kind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageFailure(stage Stage, err error) *StageError {
	return &StageError{Stage: stage, Kind: classify(err), Err: err}
}

// classify maps an error to its failure kind. Retry-exhaustion errors
// carry their capability kind even when the last attempt hit a
// per-attempt deadline; only a bare context error is a timeout.
func classify(err error) Kind {
	var dim *embedding.DimensionMismatchError
	if errors.As(err, &dim) {
		return KindDimensionMismatch
	}
	var unavailable *embedding.UnavailableError
	if errors.As(err, &unavailable) {
		return KindEmbeddingUnavailable
	}
	var failed *generation.FailedError
	if errors.As(err, &failed) {
		return KindGenerationFailed
	}
	switch {
	case errors.Is(err, index.ErrCorrupted):
		return KindIndexCorrupted
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return KindTimeout
	}
	return KindInternal
}
