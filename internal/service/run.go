package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"

	"testsmith.app/testsmith/common"
	"testsmith.app/testsmith/common/id"
	"testsmith.app/testsmith/internal/model"
	"testsmith.app/testsmith/internal/queue"
	"testsmith.app/testsmith/internal/store"
)

// ErrInvalidSource is returned when a run names neither a local file nor a
// GitLab file, or both.
var ErrInvalidSource = errors.New("exactly one of source_path or gitlab_project+gitlab_path must be set")

type CreateRunParams struct {
	SourcePath    string
	GitLabProject string
	GitLabRef     string
	GitLabPath    string

	OutputPath   string
	Provider     string
	Model        string
	Technologies []string
	Tips         []string
	Stream       bool
	Plan         bool

	TraceID *string
}

// RunDefaults fill in the fields a create request leaves empty.
type RunDefaults struct {
	Provider     string
	Model        string
	Technologies []string
	Tips         []string
}

type RunService interface {
	Create(ctx context.Context, params CreateRunParams) (*model.GenerationRun, error)
	Get(ctx context.Context, id int64) (*model.GenerationRun, error)
	ListRecent(ctx context.Context, limit int32) ([]model.GenerationRun, error)
}

type runService struct {
	runs     store.RunStore
	producer queue.Producer
	defaults RunDefaults
}

func NewRunService(runs store.RunStore, producer queue.Producer, defaults RunDefaults) RunService {
	return &runService{
		runs:     runs,
		producer: producer,
		defaults: defaults,
	}
}

func (s *runService) Create(ctx context.Context, params CreateRunParams) (*model.GenerationRun, error) {
	local := params.SourcePath != ""
	remote := params.GitLabProject != "" && params.GitLabPath != ""
	if local == remote {
		return nil, ErrInvalidSource
	}

	sourceName := params.SourcePath
	if remote {
		sourceName = params.GitLabPath
	}

	slug, err := common.Slugify(path.Base(sourceName), "run")
	if err != nil {
		return nil, fmt.Errorf("deriving slug: %w", err)
	}

	run := &model.GenerationRun{
		ID:            id.New(),
		Slug:          slug,
		SourcePath:    params.SourcePath,
		GitLabProject: params.GitLabProject,
		GitLabRef:     params.GitLabRef,
		GitLabPath:    params.GitLabPath,
		OutputPath:    params.OutputPath,
		Provider:      params.Provider,
		Model:         params.Model,
		Technologies:  params.Technologies,
		Tips:          params.Tips,
		Stream:        params.Stream,
		Plan:          params.Plan,
		Status:        model.RunStatusQueued,
		Attempt:       1,
	}

	if run.Provider == "" {
		run.Provider = s.defaults.Provider
	}
	if run.Model == "" {
		run.Model = s.defaults.Model
	}
	if len(run.Technologies) == 0 {
		run.Technologies = s.defaults.Technologies
	}
	if len(run.Tips) == 0 {
		run.Tips = s.defaults.Tips
	}

	if err := s.runs.Create(ctx, run); err != nil {
		slog.ErrorContext(ctx, "failed to create run", "error", err, "slug", slug)
		return nil, fmt.Errorf("creating run: %w", err)
	}

	if err := s.producer.Enqueue(ctx, queue.RunTask{
		RunID:   run.ID,
		TraceID: params.TraceID,
		Attempt: 1,
	}); err != nil {
		slog.ErrorContext(ctx, "failed to enqueue run", "error", err, "run_id", run.ID)
		if markErr := s.runs.MarkFailed(ctx, run.ID, "enqueue failed: "+err.Error()); markErr != nil {
			slog.ErrorContext(ctx, "failed to mark unenqueued run failed", "error", markErr, "run_id", run.ID)
		}
		return nil, fmt.Errorf("enqueueing run: %w", err)
	}

	slog.InfoContext(ctx, "run created", "run_id", run.ID, "slug", run.Slug, "stream", run.Stream)
	return run, nil
}

func (s *runService) Get(ctx context.Context, id int64) (*model.GenerationRun, error) {
	return s.runs.GetByID(ctx, id)
}

func (s *runService) ListRecent(ctx context.Context, limit int32) ([]model.GenerationRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.runs.ListRecent(ctx, limit)
}
