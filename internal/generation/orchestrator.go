package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/yashdarak08/LLM-Business-Intelligence-Assistant/internal/config"
	"github.com/yashdarak08/LLM-Business-Intelligence-Assistant/internal/metrics"
	"github.com/yashdarak08/LLM-Business-Intelligence-Assistant/internal/retrieval"
)

// FailedError reports that generation exhausted its retries or produced
// unusable output. It carries the prompt context for diagnostics.
type FailedError struct {
	Context  retrieval.PromptContext
	Attempts int
	Err      error
}

func (e *FailedError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("generation failed after %d attempt(s): empty output", e.Attempts)
	}
	return fmt.Sprintf("generation failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *FailedError) Unwrap() error { return e.Err }

// Orchestrator templates the prompt, calls the generation client with a
// per-attempt timeout, and retries transient failures with backoff.
type Orchestrator struct {
	client  Client
	cfg     config.GenerationConfig
	logger  *zap.Logger
	sink    metrics.Sink
	sleepFn func(ctx context.Context, d time.Duration) error
}

func NewOrchestrator(client Client, cfg config.GenerationConfig, logger *zap.Logger, sink metrics.Sink) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Orchestrator{
		client:  client,
		cfg:     cfg,
		logger:  logger,
		sink:    sink,
		sleepFn: sleepContext,
	}
}

// Generate produces an answer for the prompt context. It never fabricates
// an answer on failure: the caller always gets a FailedError instead.
func (o *Orchestrator) Generate(ctx context.Context, pc retrieval.PromptContext) (string, error) {
	prompt := buildPrompt(pc)
	start := time.Now()

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= o.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := o.cfg.BackoffBase.Std() << (attempt - 1)
			if err := o.sleepFn(ctx, backoff); err != nil {
				lastErr = err
				break
			}
			o.sink.Emit(metrics.Count(metrics.EventGenerationRetries, 1))
		}
		attempts++

		raw, err := o.complete(ctx, prompt)
		if err == nil {
			answer := stripEcho(raw, prompt)
			if answer == "" {
				return "", &FailedError{Context: pc, Attempts: attempts}
			}
			o.sink.Emit(metrics.StageLatency("generate", time.Since(start)))
			return answer, nil
		}
		lastErr = err
		if !isTransient(err) || ctx.Err() != nil {
			break
		}
		o.logger.Warn("generation attempt failed",
			zap.Int("attempt", attempts),
			zap.Error(err))
	}
	return "", &FailedError{Context: pc, Attempts: attempts, Err: lastErr}
}

func (o *Orchestrator) complete(ctx context.Context, prompt string) (string, error) {
	if timeout := o.cfg.Timeout.Std(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return o.client.Complete(ctx, prompt, o.cfg.MaxTokens)
}

// buildPrompt renders the fixed instructional template.
func buildPrompt(pc retrieval.PromptContext) string {
	var b strings.Builder
	b.WriteString("You are a business intelligence assistant.\n")
	b.WriteString("Given the following context extracted from business documents:\n")
	for i, c := range pc.Chunks {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(c.Text)
	}
	b.WriteString("\n\nAnswer the following query with actionable insights:\n")
	b.WriteString(pc.Query)
	b.WriteString("\n\nAnswer:")
	return b.String()
}

// stripEcho removes a leading copy of the prompt from the raw model output.
// Some completion models echo their input before continuing it.
func stripEcho(raw, prompt string) string {
	out := raw
	if strings.HasPrefix(out, prompt) {
		out = out[len(prompt):]
	}
	out = strings.TrimSpace(out)
	out = strings.TrimPrefix(out, "Answer:")
	return strings.TrimSpace(out)
}

// isTransient reports whether the failure is worth retrying: rate limits,
// server-side errors, connectivity problems, and attempt timeouts.
func isTransient(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
