package store

import (
	"context"
	"errors"

	"testsmith.app/testsmith/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// RunStore defines the contract for generation run data access
type RunStore interface {
	Create(ctx context.Context, run *model.GenerationRun) error
	GetByID(ctx context.Context, id int64) (*model.GenerationRun, error)
	ListRecent(ctx context.Context, limit int32) ([]model.GenerationRun, error)
	// MarkRunning records the start of an attempt.
	MarkRunning(ctx context.Context, id int64, attempt int32) error
	MarkSucceeded(ctx context.Context, id int64, output, outputPath string, promptTokens, completionTokens int) error
	MarkFailed(ctx context.Context, id int64, errMsg string) error
	// Requeue puts a failed attempt back in the queue state.
	Requeue(ctx context.Context, id int64) error
}
