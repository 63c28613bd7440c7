// Package source resolves the file a generation run targets, from the local
// filesystem or from a GitLab repository.
package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"testsmith.app/testsmith/internal/model"
)

// File is a resolved source file: the name shown to the model and the
// full content.
type File struct {
	Name    string
	Content string
}

// Resolver turns a run's source reference into file content.
type Resolver interface {
	Resolve(ctx context.Context, run *model.GenerationRun) (File, error)
}

type resolver struct {
	gitlab *gitlab.Client
}

// New builds a resolver. gitlabToken and gitlabBaseURL may be empty; remote
// runs then fail with a configuration error instead of an API error.
func New(gitlabToken, gitlabBaseURL string) (Resolver, error) {
	r := &resolver{}

	if gitlabToken != "" {
		opts := []gitlab.ClientOptionFunc{}
		if gitlabBaseURL != "" {
			apiURL := strings.TrimSuffix(gitlabBaseURL, "/") + "/api/v4"
			opts = append(opts, gitlab.WithBaseURL(apiURL))
		}

		client, err := gitlab.NewClient(gitlabToken, opts...)
		if err != nil {
			return nil, fmt.Errorf("creating gitlab client: %w", err)
		}
		r.gitlab = client
	}

	return r, nil
}

func (r *resolver) Resolve(ctx context.Context, run *model.GenerationRun) (File, error) {
	if run.IsRemote() {
		return r.resolveRemote(ctx, run)
	}
	return resolveLocal(run.SourcePath)
}

func resolveLocal(path string) (File, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read source file %s: %w", path, err)
	}

	return File{
		Name:    filepath.Base(path),
		Content: string(content),
	}, nil
}

func (r *resolver) resolveRemote(ctx context.Context, run *model.GenerationRun) (File, error) {
	if r.gitlab == nil {
		return File{}, fmt.Errorf("run %d targets gitlab but no GITLAB_TOKEN is configured", run.ID)
	}

	ref := run.GitLabRef
	if ref == "" {
		ref = "main"
	}

	raw, _, err := r.gitlab.RepositoryFiles.GetRawFile(
		run.GitLabProject,
		run.GitLabPath,
		&gitlab.GetRawFileOptions{Ref: gitlab.Ptr(ref)},
		gitlab.WithContext(ctx),
	)
	if err != nil {
		return File{}, fmt.Errorf("fetch %s@%s from project %s: %w", run.GitLabPath, ref, run.GitLabProject, err)
	}

	return File{
		Name:    filepath.Base(run.GitLabPath),
		Content: string(raw),
	}, nil
}
