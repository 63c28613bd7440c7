package model

import "time"

// RunStatus is the lifecycle state of a generation run.
type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// GenerationRun is one request to generate unit tests for a source file.
type GenerationRun struct {
	ID   int64  `json:"id"`
	Slug string `json:"slug"`

	// Exactly one of SourcePath or the GitLab triple is set.
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

	Status           RunStatus  `json:"status"`
	Output           *string    `json:"output,omitempty"`
	Error            *string    `json:"error,omitempty"`
	Attempt          int32      `json:"attempt"`
	PromptTokens     *int32     `json:"prompt_tokens,omitempty"`
	CompletionTokens *int32     `json:"completion_tokens,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	FinishedAt       *time.Time `json:"finished_at,omitempty"`
}

// IsRemote reports whether the run's source lives in GitLab rather than on
// the local filesystem.
func (r *GenerationRun) IsRemote() bool {
	return r.GitLabProject != ""
}

// Terminal reports whether the run has reached a final state.
func (s RunStatus) Terminal() bool {
	return s == RunStatusSucceeded || s == RunStatusFailed
}
