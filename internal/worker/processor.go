package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"

	"testsmith.app/testsmith/common/llm"
	"testsmith.app/testsmith/common/logger"
	"testsmith.app/testsmith/internal/generator"
	"testsmith.app/testsmith/internal/queue"
	"testsmith.app/testsmith/internal/store"
)

// ErrPermanent marks a failure that must not be retried. The worker sends
// the message straight to the DLQ instead of requeueing it.
var ErrPermanent = errors.New("permanent failure")

func permanent(err error) error {
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

type ProcessorConfig struct {
	MaxAttempts  int
	OutputPrefix string
}

// Processor executes generation runs claimed off the queue: load, mark
// running, generate, persist the outcome, relay progress for streaming runs.
type Processor struct {
	runs      store.RunStore
	generator *generator.Generator
	redis     *redis.Client
	cfg       ProcessorConfig
}

func NewProcessor(runs store.RunStore, gen *generator.Generator, redisClient *redis.Client, cfg ProcessorConfig) *Processor {
	return &Processor{
		runs:      runs,
		generator: gen,
		redis:     redisClient,
		cfg:       cfg,
	}
}

func (p *Processor) Process(ctx context.Context, msg queue.Message) error {
	sc := logger.StartSpanFromTraceID(ctx, msg.TraceID, "worker.process_run",
		trace.WithSpanKind(trace.SpanKindConsumer))
	defer sc.End()

	ctx = logger.WithLogFields(sc.Context(), logger.LogFields{
		RunID:     logger.Ptr(msg.RunID),
		Component: "testsmith.worker.processor",
	})

	run, err := p.runs.GetByID(ctx, msg.RunID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			slog.WarnContext(ctx, "run not found, dropping message")
			return nil
		}
		return fmt.Errorf("loading run: %w", err)
	}

	if run.Status.Terminal() {
		slog.InfoContext(ctx, "run already finished, skipping", "status", run.Status)
		return nil
	}

	if err := p.runs.MarkRunning(ctx, run.ID, int32(msg.Attempt)); err != nil {
		return fmt.Errorf("marking run running: %w", err)
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Provider: logger.Ptr(run.Provider),
		Model:    logger.Ptr(run.Model),
	})

	var (
		sink generator.TokenSink
		pub  *queue.OutputPublisher
	)
	if run.Stream && p.redis != nil {
		pub = queue.NewOutputPublisher(p.redis, p.cfg.OutputPrefix, run.ID)
		sink = func(ctx context.Context, token string) error {
			return pub.PublishToken(ctx, token)
		}
	}

	start := time.Now()
	result, err := p.generator.Execute(ctx, run, sink)
	if err != nil {
		sc.RecordError(err)
		return p.handleFailure(ctx, run.ID, msg, pub, err)
	}

	output := result.Output
	if run.Stream {
		output = generator.Finalize(output)
	}

	if err := p.runs.MarkSucceeded(ctx, run.ID, output, result.OutputPath,
		result.PromptTokens, result.CompletionTokens); err != nil {
		return fmt.Errorf("marking run succeeded: %w", err)
	}

	if pub != nil {
		if pubErr := pub.PublishDone(ctx); pubErr != nil {
			slog.WarnContext(ctx, "failed to publish done event", "error", pubErr)
		}
	}

	slog.InfoContext(ctx, "run succeeded",
		"output_path", result.OutputPath,
		"prompt_tokens", result.PromptTokens,
		"completion_tokens", result.CompletionTokens,
		"duration_ms", time.Since(start).Milliseconds())

	return nil
}

// handleFailure decides between retry and permanent failure. Retryable
// errors leave the run queued for the next attempt; everything else is
// final and recorded on the run.
func (p *Processor) handleFailure(ctx context.Context, runID int64, msg queue.Message, pub *queue.OutputPublisher, err error) error {
	if llm.IsRetryable(ctx, err) && msg.Attempt < p.cfg.MaxAttempts {
		slog.WarnContext(ctx, "run attempt failed, will retry",
			"error", err,
			"attempt", msg.Attempt,
			"max_attempts", p.cfg.MaxAttempts)
		if rqErr := p.runs.Requeue(ctx, runID); rqErr != nil {
			slog.ErrorContext(ctx, "failed to requeue run in store", "error", rqErr)
		}
		return err
	}

	errMsg := err.Error()
	if markErr := p.runs.MarkFailed(ctx, runID, errMsg); markErr != nil {
		slog.ErrorContext(ctx, "failed to mark run failed", "error", markErr)
	}

	if pub != nil {
		if pubErr := pub.PublishFailed(ctx, errMsg); pubErr != nil {
			slog.WarnContext(ctx, "failed to publish failed event", "error", pubErr)
		}
	}

	slog.ErrorContext(ctx, "run failed", "error", err, "attempt", msg.Attempt)
	return permanent(err)
}
