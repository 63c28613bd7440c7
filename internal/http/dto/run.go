package dto

import (
	"time"

	"testsmith.app/testsmith/internal/model"
)

type CreateRunRequest struct {
	SourcePath    string `json:"source_path,omitempty" binding:"omitempty,max=4096"`
	GitLabProject string `json:"gitlab_project,omitempty" binding:"omitempty,max=255"`
	GitLabRef     string `json:"gitlab_ref,omitempty" binding:"omitempty,max=255"`
	GitLabPath    string `json:"gitlab_path,omitempty" binding:"omitempty,max=4096"`

	OutputPath   string   `json:"output_path,omitempty" binding:"omitempty,max=4096"`
	Provider     string   `json:"provider,omitempty" binding:"omitempty,oneof=openai anthropic"`
	Model        string   `json:"model,omitempty" binding:"omitempty,max=255"`
	Technologies []string `json:"technologies,omitempty" binding:"omitempty,max=20,dive,max=255"`
	Tips         []string `json:"tips,omitempty" binding:"omitempty,max=20,dive,max=1024"`
	Stream       bool     `json:"stream,omitempty"`
	Plan         bool     `json:"plan,omitempty"`
}

type RunResponse struct {
	ID   int64  `json:"id,string"`
	Slug string `json:"slug"`

	SourcePath    string `json:"source_path,omitempty"`
	GitLabProject string `json:"gitlab_project,omitempty"`
	GitLabRef     string `json:"gitlab_ref,omitempty"`
	GitLabPath    string `json:"gitlab_path,omitempty"`

	OutputPath   string   `json:"output_path,omitempty"`
	Provider     string   `json:"provider"`
	Model        string   `json:"model"`
	Technologies []string `json:"technologies,omitempty"`
	Tips         []string `json:"tips,omitempty"`
	Stream       bool     `json:"stream"`
	Plan         bool     `json:"plan"`

	Status           string     `json:"status"`
	Output           *string    `json:"output,omitempty"`
	Error            *string    `json:"error,omitempty"`
	Attempt          int32      `json:"attempt"`
	PromptTokens     *int32     `json:"prompt_tokens,omitempty"`
	CompletionTokens *int32     `json:"completion_tokens,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	FinishedAt       *time.Time `json:"finished_at,omitempty"`
}

func ToRunResponse(run *model.GenerationRun) *RunResponse {
	return &RunResponse{
		ID:               run.ID,
		Slug:             run.Slug,
		SourcePath:       run.SourcePath,
		GitLabProject:    run.GitLabProject,
		GitLabRef:        run.GitLabRef,
		GitLabPath:       run.GitLabPath,
		OutputPath:       run.OutputPath,
		Provider:         run.Provider,
		Model:            run.Model,
		Technologies:     run.Technologies,
		Tips:             run.Tips,
		Stream:           run.Stream,
		Plan:             run.Plan,
		Status:           string(run.Status),
		Output:           run.Output,
		Error:            run.Error,
		Attempt:          run.Attempt,
		PromptTokens:     run.PromptTokens,
		CompletionTokens: run.CompletionTokens,
		CreatedAt:        run.CreatedAt,
		StartedAt:        run.StartedAt,
		FinishedAt:       run.FinishedAt,
	}
}

func ToRunResponses(runs []model.GenerationRun) []RunResponse {
	out := make([]RunResponse, 0, len(runs))
	for i := range runs {
		out = append(out, *ToRunResponse(&runs[i]))
	}
	return out
}
