package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"testsmith.app/testsmith/core/db"
	"testsmith.app/testsmith/internal/model"
)

const runColumns = `id, slug, source_path, gitlab_project, gitlab_ref, gitlab_path,
	output_path, provider, model, technologies, tips, stream, plan,
	status, output, error, attempt, prompt_tokens, completion_tokens,
	created_at, started_at, finished_at`

type runStore struct {
	db *db.DB
}

func NewRunStore(database *db.DB) RunStore {
	return &runStore{db: database}
}

func (s *runStore) Create(ctx context.Context, run *model.GenerationRun) error {
	_, err := s.db.Pool().Exec(ctx, `
		INSERT INTO generation_runs (
			id, slug, source_path, gitlab_project, gitlab_ref, gitlab_path,
			output_path, provider, model, technologies, tips, stream, plan, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		run.ID, run.Slug,
		run.SourcePath, run.GitLabProject, run.GitLabRef, run.GitLabPath,
		run.OutputPath, run.Provider, run.Model,
		run.Technologies, run.Tips, run.Stream, run.Plan, string(model.RunStatusQueued),
	)
	return err
}

func (s *runStore) GetByID(ctx context.Context, id int64) (*model.GenerationRun, error) {
	row := s.db.Pool().QueryRow(ctx,
		`SELECT `+runColumns+` FROM generation_runs WHERE id = $1`, id)

	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return run, nil
}

func (s *runStore) ListRecent(ctx context.Context, limit int32) ([]model.GenerationRun, error) {
	rows, err := s.db.Pool().Query(ctx,
		`SELECT `+runColumns+` FROM generation_runs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []model.GenerationRun{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

func (s *runStore) MarkRunning(ctx context.Context, id int64, attempt int32) error {
	tag, err := s.db.Pool().Exec(ctx, `
		UPDATE generation_runs
		SET status = $2, attempt = $3, started_at = now(), error = NULL
		WHERE id = $1`,
		id, string(model.RunStatusRunning), attempt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *runStore) MarkSucceeded(ctx context.Context, id int64, output, outputPath string, promptTokens, completionTokens int) error {
	tag, err := s.db.Pool().Exec(ctx, `
		UPDATE generation_runs
		SET status = $2, output = $3, output_path = $4,
			prompt_tokens = $5, completion_tokens = $6,
			error = NULL, finished_at = now()
		WHERE id = $1`,
		id, string(model.RunStatusSucceeded), output, outputPath,
		int32(promptTokens), int32(completionTokens))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *runStore) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	tag, err := s.db.Pool().Exec(ctx, `
		UPDATE generation_runs
		SET status = $2, error = $3, finished_at = now()
		WHERE id = $1`,
		id, string(model.RunStatusFailed), errMsg)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *runStore) Requeue(ctx context.Context, id int64) error {
	tag, err := s.db.Pool().Exec(ctx, `
		UPDATE generation_runs
		SET status = $2, started_at = NULL
		WHERE id = $1`,
		id, string(model.RunStatusQueued))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanRun(row pgx.Row) (*model.GenerationRun, error) {
	var (
		run    model.GenerationRun
		status string
	)

	err := row.Scan(
		&run.ID, &run.Slug, &run.SourcePath, &run.GitLabProject, &run.GitLabRef, &run.GitLabPath,
		&run.OutputPath, &run.Provider, &run.Model, &run.Technologies, &run.Tips,
		&run.Stream, &run.Plan,
		&status, &run.Output, &run.Error, &run.Attempt,
		&run.PromptTokens, &run.CompletionTokens,
		&run.CreatedAt, &run.StartedAt, &run.FinishedAt,
	)
	if err != nil {
		return nil, err
	}

	run.Status = model.RunStatus(status)
	return &run, nil
}
