// Package generator runs the test-generation pipeline for a single run:
// resolve the source file, assemble the prompt, call the model, and write
// the resulting tests to disk.
package generator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"testsmith.app/testsmith/common"
	"testsmith.app/testsmith/common/llm"
	"testsmith.app/testsmith/internal/example"
	"testsmith.app/testsmith/internal/model"
	"testsmith.app/testsmith/internal/prompt"
	"testsmith.app/testsmith/internal/source"
)

// TokenSink receives streamed tokens as they arrive, before the run
// finishes. The worker uses it to relay progress; the CLI prints to stdout.
// A sink error aborts the stream.
type TokenSink func(ctx context.Context, token string) error

// Result is a finished generation.
type Result struct {
	Output           string
	OutputPath       string
	PlanCases        []string
	PromptTokens     int
	CompletionTokens int
}

// Generator executes generation runs. Structured may be nil; runs that ask
// for a plan then proceed without one.
type Generator struct {
	Chat        llm.ChatClient
	Structured  llm.StructuredClient
	Resolver    source.Resolver
	ExamplesDir string
	OutputDir   string
	MaxTokens   int
}

// Execute runs the full pipeline. A source that cannot be resolved fails the
// run; a test file that cannot be written does not, since the generated text
// is still in the result.
func (g *Generator) Execute(ctx context.Context, run *model.GenerationRun, sink TokenSink) (*Result, error) {
	file, err := g.Resolver.Resolve(ctx, run)
	if err != nil {
		return nil, err
	}

	examples, err := example.Load(g.ExamplesDir)
	if err != nil {
		return nil, err
	}

	builder := prompt.Builder{
		Technologies: run.Technologies,
		Tips:         run.Tips,
	}

	var planCases []string
	if run.Plan {
		planCases = g.plan(ctx, file)
		builder.PlanCases = planCases
	}

	req := llm.Request{
		Messages:    builder.Messages(examples, file.Name, file.Content),
		MaxTokens:   g.MaxTokens,
		Temperature: llm.Temp(0),
	}

	var result *Result
	if run.Stream {
		result, err = g.executeStreaming(ctx, run, file, req, sink)
	} else {
		result, err = g.executeBlocking(ctx, run, file, req)
	}
	if err != nil {
		return nil, err
	}

	result.PlanCases = planCases
	return result, nil
}

func (g *Generator) executeBlocking(ctx context.Context, run *model.GenerationRun, file source.File, req llm.Request) (*Result, error) {
	resp, err := g.Chat.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}

	output := Finalize(resp.Content)
	outputPath := g.outputPath(run, file)
	g.writeOutput(ctx, outputPath, output)

	return &Result{
		Output:           output,
		OutputPath:       outputPath,
		PromptTokens:     resp.PromptTokens,
		CompletionTokens: resp.CompletionTokens,
	}, nil
}

// executeStreaming appends tokens to the output file as they arrive and
// stops consuming the moment the terminator shows up.
func (g *Generator) executeStreaming(ctx context.Context, run *model.GenerationRun, file source.File, req llm.Request, sink TokenSink) (*Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	chunks, err := g.Chat.Stream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chat stream: %w", err)
	}

	outputPath := g.outputPath(run, file)
	out, err := os.OpenFile(outputPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		slog.ErrorContext(ctx, "failed to open output file, keeping output in memory only",
			"path", outputPath, "error", err)
		out = nil
	}

	var raw string
	scanner := &terminatorScanner{}

	emit := func(text string) error {
		if text == "" {
			return nil
		}
		raw += text
		if out != nil {
			if _, werr := out.WriteString(text); werr != nil {
				slog.ErrorContext(ctx, "failed to write output file, keeping output in memory only",
					"path", outputPath, "error", werr)
				out.Close()
				out = nil
			}
		}
		if sink != nil {
			return sink(ctx, text)
		}
		return nil
	}

	for chunk := range chunks {
		if chunk.Err != nil {
			if out != nil {
				out.Close()
			}
			return nil, fmt.Errorf("chat stream: %w", chunk.Err)
		}
		if chunk.Done {
			break
		}

		text, done := scanner.Feed(chunk.Token)
		if err := emit(text); err != nil {
			if out != nil {
				out.Close()
			}
			return nil, err
		}
		if done {
			cancel()
			break
		}
	}

	if err := emit(scanner.Flush()); err != nil {
		if out != nil {
			out.Close()
		}
		return nil, err
	}

	if out != nil {
		if err := out.Close(); err != nil {
			slog.ErrorContext(ctx, "failed to close output file", "path", outputPath, "error", err)
		}
	}

	return &Result{
		Output:     raw,
		OutputPath: outputPath,
	}, nil
}

// plan asks for a structured list of cases to cover. Plan failures never
// fail the run; generation just proceeds without the extra steering.
func (g *Generator) plan(ctx context.Context, file source.File) []string {
	if g.Structured == nil {
		slog.WarnContext(ctx, "plan requested but no structured client configured, skipping")
		return nil
	}

	var p model.TestPlan
	_, err := g.Structured.Chat(ctx, llm.StructuredRequest{
		SystemPrompt: prompt.PlanSystemPrompt,
		UserPrompt:   prompt.PlanUserPrompt(file.Name, file.Content),
		SchemaName:   "test_plan",
		Schema:       llm.GenerateSchema[model.TestPlan](),
		MaxTokens:    1024,
		Temperature:  llm.Temp(0),
	}, &p)
	if err != nil {
		slog.WarnContext(ctx, "plan step failed, generating without a plan", "error", err)
		return nil
	}

	slog.InfoContext(ctx, "plan step complete", "cases", len(p.Cases))
	return p.Cases
}

func (g *Generator) outputPath(run *model.GenerationRun, file source.File) string {
	if run.OutputPath != "" {
		return run.OutputPath
	}

	dir := g.OutputDir
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, common.TestFileName(file.Name))
}

func (g *Generator) writeOutput(ctx context.Context, path, output string) {
	if err := os.WriteFile(path, []byte(output), 0o644); err != nil {
		slog.ErrorContext(ctx, "failed to write output file, output preserved on the run",
			"path", path, "error", err)
	}
}
