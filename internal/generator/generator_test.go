package generator_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"testsmith.app/testsmith/common/llm"
	"testsmith.app/testsmith/internal/generator"
	"testsmith.app/testsmith/internal/model"
	"testsmith.app/testsmith/internal/source"
)

var _ = Describe("Generator", func() {
	var (
		gen      *generator.Generator
		chat     *mockChatClient
		resolver *mockResolver
		run      *model.GenerationRun
		outDir   string
		ctx      context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		outDir = GinkgoT().TempDir()

		chat = &mockChatClient{}
		resolver = &mockResolver{
			ResolveFunc: func(ctx context.Context, run *model.GenerationRun) (source.File, error) {
				return source.File{Name: "handler.go", Content: "package http\n"}, nil
			},
		}

		gen = &generator.Generator{
			Chat:      chat,
			Resolver:  resolver,
			OutputDir: outDir,
			MaxTokens: 4096,
		}

		run = &model.GenerationRun{ID: 1, SourcePath: "handler.go"}
	})

	Describe("blocking generation", func() {
		BeforeEach(func() {
			chat.CompleteFunc = func(ctx context.Context, req llm.Request) (*llm.Response, error) {
				return &llm.Response{
					Content:          "```go\nfunc TestHealth(t *testing.T) {}\n```\nEND_OF_TESTS",
					FinishReason:     "stop",
					PromptTokens:     120,
					CompletionTokens: 30,
				}, nil
			}
		})

		It("writes the cleaned output to the derived test file", func() {
			result, err := gen.Execute(ctx, run, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Output).To(Equal("func TestHealth(t *testing.T) {}\n"))
			Expect(result.OutputPath).To(Equal(filepath.Join(outDir, "handler_test.go")))

			written, err := os.ReadFile(result.OutputPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(written)).To(Equal(result.Output))
		})

		It("records token usage", func() {
			result, err := gen.Execute(ctx, run, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.PromptTokens).To(Equal(120))
			Expect(result.CompletionTokens).To(Equal(30))
		})

		It("honors an explicit output path", func() {
			run.OutputPath = filepath.Join(outDir, "custom_test.go")
			result, err := gen.Execute(ctx, run, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.OutputPath).To(Equal(run.OutputPath))
			Expect(run.OutputPath).To(BeAnExistingFile())
		})

		It("does not fail the run when the output file cannot be written", func() {
			run.OutputPath = filepath.Join(outDir, "no-such-dir", "x_test.go")
			result, err := gen.Execute(ctx, run, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Output).To(Equal("func TestHealth(t *testing.T) {}\n"))
		})

		It("fails the run when the source cannot be resolved", func() {
			resolver.ResolveFunc = func(ctx context.Context, run *model.GenerationRun) (source.File, error) {
				return source.File{}, errors.New("no such file")
			}

			_, err := gen.Execute(ctx, run, nil)
			Expect(err).To(MatchError(ContainSubstring("no such file")))
		})

		It("propagates completion errors", func() {
			chat.CompleteFunc = func(ctx context.Context, req llm.Request) (*llm.Response, error) {
				return nil, errors.New("rate limited")
			}

			_, err := gen.Execute(ctx, run, nil)
			Expect(err).To(MatchError(ContainSubstring("rate limited")))
		})

		It("sends the resolved file to the model", func() {
			var captured llm.Request
			chat.CompleteFunc = func(ctx context.Context, req llm.Request) (*llm.Response, error) {
				captured = req
				return &llm.Response{Content: "ok\nEND_OF_TESTS"}, nil
			}

			_, err := gen.Execute(ctx, run, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(captured.Messages[0].Role).To(Equal("system"))
			last := captured.Messages[len(captured.Messages)-1]
			Expect(last.Role).To(Equal("user"))
			Expect(last.Content).To(ContainSubstring(`"handler.go"`))
			Expect(last.Content).To(HaveSuffix("```\npackage http\n```"))
		})
	})

	Describe("streaming generation", func() {
		BeforeEach(func() {
			run.Stream = true
		})

		It("appends tokens to the output file and stops at the terminator", func() {
			chat.StreamFunc = func(ctx context.Context, req llm.Request) (<-chan llm.Chunk, error) {
				return streamOf("func Test", "Health(t *testing.T) {}\n", "END_OF", "_TESTS", "\nafter"), nil
			}

			result, err := gen.Execute(ctx, run, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Output).To(Equal("func TestHealth(t *testing.T) {}\n"))
			Expect(result.Output).NotTo(ContainSubstring("after"))

			written, err := os.ReadFile(result.OutputPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(written)).To(Equal(result.Output))
		})

		It("forwards every emitted token to the sink in order", func() {
			chat.StreamFunc = func(ctx context.Context, req llm.Request) (<-chan llm.Chunk, error) {
				return streamOf("alpha ", "beta\n", "END_OF_TESTS"), nil
			}

			var seen []string
			sink := func(ctx context.Context, token string) error {
				seen = append(seen, token)
				return nil
			}

			result, err := gen.Execute(ctx, run, sink)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Output).To(Equal("alpha beta\n"))
			Expect(seen).To(Equal([]string{"alpha ", "beta\n"}))
		})

		It("keeps held-back text when the stream ends without a terminator", func() {
			chat.StreamFunc = func(ctx context.Context, req llm.Request) (<-chan llm.Chunk, error) {
				return streamOf("body\n", "END_OF"), nil
			}

			result, err := gen.Execute(ctx, run, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Output).To(Equal("body\nEND_OF"))
		})

		It("fails the run on a mid-stream error", func() {
			chat.StreamFunc = func(ctx context.Context, req llm.Request) (<-chan llm.Chunk, error) {
				ch := make(chan llm.Chunk, 2)
				ch <- llm.Chunk{Token: "partial"}
				ch <- llm.Chunk{Err: errors.New("connection reset"), Done: true}
				close(ch)
				return ch, nil
			}

			_, err := gen.Execute(ctx, run, nil)
			Expect(err).To(MatchError(ContainSubstring("connection reset")))
		})

		It("aborts when the sink rejects a token", func() {
			chat.StreamFunc = func(ctx context.Context, req llm.Request) (<-chan llm.Chunk, error) {
				return streamOf("alpha", "END_OF_TESTS"), nil
			}

			_, err := gen.Execute(ctx, run, func(ctx context.Context, token string) error {
				return errors.New("sink closed")
			})
			Expect(err).To(MatchError(ContainSubstring("sink closed")))
		})
	})

	Describe("plan step", func() {
		BeforeEach(func() {
			run.Plan = true
			chat.CompleteFunc = func(ctx context.Context, req llm.Request) (*llm.Response, error) {
				return &llm.Response{Content: "ok\nEND_OF_TESTS"}, nil
			}
		})

		It("feeds plan cases into the final prompt", func() {
			gen.Structured = &mockStructuredClient{
				ChatFunc: func(ctx context.Context, req llm.StructuredRequest, result any) (*llm.Response, error) {
					plan := result.(*model.TestPlan)
					plan.Cases = []string{"handles empty body", "rejects bad method"}
					return &llm.Response{}, nil
				},
			}

			var captured llm.Request
			chat.CompleteFunc = func(ctx context.Context, req llm.Request) (*llm.Response, error) {
				captured = req
				return &llm.Response{Content: "ok\nEND_OF_TESTS"}, nil
			}

			result, err := gen.Execute(ctx, run, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.PlanCases).To(Equal([]string{"handles empty body", "rejects bad method"}))

			last := captured.Messages[len(captured.Messages)-1]
			Expect(last.Content).To(ContainSubstring("Cover these cases:\n1. handles empty body\n2. rejects bad method\n"))
		})

		It("proceeds without a plan when the plan step fails", func() {
			gen.Structured = &mockStructuredClient{
				ChatFunc: func(ctx context.Context, req llm.StructuredRequest, result any) (*llm.Response, error) {
					return nil, errors.New("schema rejected")
				},
			}

			result, err := gen.Execute(ctx, run, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.PlanCases).To(BeEmpty())
		})

		It("proceeds without a plan when no structured client is configured", func() {
			result, err := gen.Execute(ctx, run, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.PlanCases).To(BeEmpty())
		})
	})

	Describe("few-shot examples", func() {
		It("interleaves loaded examples before the target file", func() {
			exDir := GinkgoT().TempDir()
			sub := filepath.Join(exDir, "ring")
			Expect(os.MkdirAll(sub, 0o755)).To(Succeed())
			Expect(os.WriteFile(filepath.Join(sub, "source.go"), []byte("package ring\n"), 0o644)).To(Succeed())
			Expect(os.WriteFile(filepath.Join(sub, "tests.go"), []byte("package ring_test\n"), 0o644)).To(Succeed())
			gen.ExamplesDir = exDir

			var captured llm.Request
			chat.CompleteFunc = func(ctx context.Context, req llm.Request) (*llm.Response, error) {
				captured = req
				return &llm.Response{Content: "ok\nEND_OF_TESTS"}, nil
			}

			_, err := gen.Execute(ctx, run, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(captured.Messages).To(HaveLen(4))
			Expect(captured.Messages[1].Content).To(ContainSubstring(`"ring.go"`))
			Expect(captured.Messages[2].Role).To(Equal("assistant"))
			Expect(captured.Messages[2].Content).To(Equal("package ring_test\n"))
		})
	})
})
