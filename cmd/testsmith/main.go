// Command testsmith generates unit tests for one source file from the
// command line, without the server/worker pipeline:
//
//	testsmith [flags] <source-file>
//
// Configuration comes from the environment (.env is honored); flags override
// it per invocation.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"testsmith.app/testsmith/common/llm"
	"testsmith.app/testsmith/common/logger"
	"testsmith.app/testsmith/core/config"
	"testsmith.app/testsmith/internal/generator"
	"testsmith.app/testsmith/internal/model"
	"testsmith.app/testsmith/internal/source"
)

func main() {
	output := flag.String("o", "", "output file (default: <source>_test.<ext> in OUTPUT_DIR)")
	stream := flag.Bool("stream", false, "stream tokens to stdout and the output file as they arrive")
	plan := flag.Bool("plan", false, "run a plan step before generating")
	technologies := flag.String("technologies", "", "comma-separated test technologies to use")
	tips := flag.String("tips", "", "comma-separated tips for the model")
	examplesDir := flag.String("examples", "", "directory of few-shot example pairs")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: testsmith [flags] <source-file>")
		flag.PrintDefaults()
		os.Exit(2)
	}
	sourcePath := flag.Arg(0)

	cfg, err := config.Load(config.ServiceTypeCLI)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger.Setup(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	chat, err := llm.NewChatClient(llm.Config{
		Provider: cfg.LLM.Provider,
		APIKey:   cfg.LLM.APIKey,
		BaseURL:  cfg.LLM.BaseURL,
		Model:    cfg.LLM.Model,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create llm client", "error", err)
		os.Exit(1)
	}

	var structured llm.StructuredClient
	if (*plan || cfg.Generation.Plan) && cfg.LLM.Provider == llm.ProviderOpenAI {
		structured, err = llm.NewStructuredClient(llm.Config{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
		})
		if err != nil {
			slog.WarnContext(ctx, "structured client unavailable, skipping plan step", "error", err)
		}
	}

	resolver, err := source.New(cfg.GitLab.Token, cfg.GitLab.BaseURL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create source resolver", "error", err)
		os.Exit(1)
	}

	gen := &generator.Generator{
		Chat:        chat,
		Structured:  structured,
		Resolver:    resolver,
		ExamplesDir: firstNonEmpty(*examplesDir, cfg.Generation.ExamplesDir),
		OutputDir:   cfg.Generation.OutputDir,
		MaxTokens:   cfg.LLM.MaxTokens,
	}

	run := &model.GenerationRun{
		SourcePath:   sourcePath,
		OutputPath:   *output,
		Provider:     cfg.LLM.Provider,
		Model:        cfg.LLM.Model,
		Technologies: mergeList(*technologies, cfg.Generation.Technologies),
		Tips:         mergeList(*tips, cfg.Generation.Tips),
		Stream:       *stream || cfg.Generation.Stream,
		Plan:         *plan || cfg.Generation.Plan,
	}

	var sink generator.TokenSink
	if run.Stream {
		sink = func(_ context.Context, token string) error {
			_, err := os.Stdout.WriteString(token)
			return err
		}
	}

	result, err := gen.Execute(ctx, run, sink)
	if err != nil {
		slog.ErrorContext(ctx, "generation failed", "error", err, "source", sourcePath)
		os.Exit(1)
	}

	if run.Stream {
		fmt.Println()
	}
	slog.InfoContext(ctx, "tests written",
		"source", sourcePath,
		"output", result.OutputPath,
		"model", chat.Model())
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func mergeList(flagValue string, fallback []string) []string {
	if strings.TrimSpace(flagValue) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(flagValue, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
