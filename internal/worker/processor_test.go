package worker_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"testsmith.app/testsmith/common/llm"
	"testsmith.app/testsmith/internal/generator"
	"testsmith.app/testsmith/internal/model"
	"testsmith.app/testsmith/internal/queue"
	"testsmith.app/testsmith/internal/source"
	"testsmith.app/testsmith/internal/store"
	"testsmith.app/testsmith/internal/worker"
)

var _ = Describe("Processor", func() {
	var (
		runs      *mockRunStore
		chat      *mockChatClient
		processor *worker.Processor
		msg       queue.Message
		ctx       context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		msg = queue.Message{ID: "1-0", RunID: 42, Attempt: 1}

		chat = &mockChatClient{
			CompleteFunc: func(ctx context.Context, req llm.Request) (*llm.Response, error) {
				return &llm.Response{
					Content:          "func TestX(t *testing.T) {}\nEND_OF_TESTS",
					PromptTokens:     10,
					CompletionTokens: 5,
				}, nil
			},
		}

		runs = &mockRunStore{
			GetByIDFunc: func(ctx context.Context, id int64) (*model.GenerationRun, error) {
				return &model.GenerationRun{
					ID:     id,
					Status: model.RunStatusQueued,
				}, nil
			},
		}

		gen := &generator.Generator{
			Chat: chat,
			Resolver: &mockResolver{
				ResolveFunc: func(ctx context.Context, run *model.GenerationRun) (source.File, error) {
					return source.File{Name: "x.go", Content: "package x\n"}, nil
				},
			},
			OutputDir: GinkgoT().TempDir(),
			MaxTokens: 1024,
		}

		processor = worker.NewProcessor(runs, gen, nil, worker.ProcessorConfig{
			MaxAttempts:  3,
			OutputPrefix: "run-output",
		})
	})

	It("marks the run running and then succeeded", func() {
		Expect(processor.Process(ctx, msg)).To(Succeed())
		Expect(runs.running).To(Equal([]int64{42}))
		Expect(runs.succeeded).To(Equal([]int64{42}))
		Expect(runs.failed).To(BeEmpty())
	})

	It("drops messages for runs that no longer exist", func() {
		runs.GetByIDFunc = func(ctx context.Context, id int64) (*model.GenerationRun, error) {
			return nil, store.ErrNotFound
		}

		Expect(processor.Process(ctx, msg)).To(Succeed())
		Expect(runs.running).To(BeEmpty())
	})

	It("skips runs already in a terminal state", func() {
		runs.GetByIDFunc = func(ctx context.Context, id int64) (*model.GenerationRun, error) {
			return &model.GenerationRun{ID: id, Status: model.RunStatusSucceeded}, nil
		}

		Expect(processor.Process(ctx, msg)).To(Succeed())
		Expect(runs.running).To(BeEmpty())
	})

	It("requeues retryable failures below the attempt cap", func() {
		chat.CompleteFunc = func(ctx context.Context, req llm.Request) (*llm.Response, error) {
			return nil, errors.New("connection refused")
		}

		err := processor.Process(ctx, msg)
		Expect(err).To(HaveOccurred())
		Expect(errors.Is(err, worker.ErrPermanent)).To(BeFalse())
		Expect(runs.requeued).To(Equal([]int64{42}))
		Expect(runs.failed).To(BeEmpty())
	})

	It("fails the run permanently once attempts are exhausted", func() {
		chat.CompleteFunc = func(ctx context.Context, req llm.Request) (*llm.Response, error) {
			return nil, errors.New("connection refused")
		}
		msg.Attempt = 3

		err := processor.Process(ctx, msg)
		Expect(errors.Is(err, worker.ErrPermanent)).To(BeTrue())
		Expect(runs.failed).To(Equal([]int64{42}))
		Expect(runs.requeued).To(BeEmpty())
	})

	It("fails the run permanently when the source cannot be resolved", func() {
		msg.Attempt = 3
		gen := &generator.Generator{
			Chat: chat,
			Resolver: &mockResolver{
				ResolveFunc: func(ctx context.Context, run *model.GenerationRun) (source.File, error) {
					return source.File{}, errors.New("no such file")
				},
			},
			OutputDir: GinkgoT().TempDir(),
		}
		processor = worker.NewProcessor(runs, gen, nil, worker.ProcessorConfig{MaxAttempts: 3})

		err := processor.Process(ctx, msg)
		Expect(errors.Is(err, worker.ErrPermanent)).To(BeTrue())
		Expect(runs.failed).To(Equal([]int64{42}))
	})
})
