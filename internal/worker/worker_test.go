package worker_test

import (
	"context"
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"testsmith.app/testsmith/internal/queue"
	"testsmith.app/testsmith/internal/worker"
)

var _ = Describe("Worker", func() {
	var (
		consumer  *mockConsumer
		processor *mockProcessor
		w         *worker.Worker
		ctx       context.Context
		cancel    context.CancelFunc
	)

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())
		consumer = &mockConsumer{}
		processor = &mockProcessor{}
		w = worker.New(consumer, processor, worker.Config{MaxAttempts: 3})
	})

	AfterEach(func() {
		cancel()
	})

	runOneBatch := func(messages []queue.Message) {
		calls := 0
		consumer.ReadFunc = func(ctx context.Context) ([]queue.Message, error) {
			calls++
			if calls == 1 {
				return messages, nil
			}
			cancel()
			return nil, nil
		}
		Expect(w.Run(ctx)).To(MatchError(context.Canceled))
	}

	It("processes and acks each message", func() {
		runOneBatch([]queue.Message{
			{ID: "1-0", RunID: 1, Attempt: 1},
			{ID: "1-1", RunID: 2, Attempt: 1},
		})

		Expect(processor.processed).To(HaveLen(2))
		Expect(consumer.acked).To(HaveLen(2))
		Expect(consumer.requeued).To(BeEmpty())
		Expect(consumer.dlq).To(BeEmpty())
	})

	It("requeues failed messages below the attempt cap", func() {
		processor.ProcessFunc = func(ctx context.Context, msg queue.Message) error {
			return errors.New("transient")
		}

		runOneBatch([]queue.Message{{ID: "1-0", RunID: 1, Attempt: 1}})

		Expect(consumer.requeued).To(HaveLen(1))
		Expect(consumer.dlq).To(BeEmpty())
	})

	It("sends messages to the DLQ once attempts are exhausted", func() {
		processor.ProcessFunc = func(ctx context.Context, msg queue.Message) error {
			return errors.New("transient")
		}

		runOneBatch([]queue.Message{{ID: "1-0", RunID: 1, Attempt: 3}})

		Expect(consumer.dlq).To(HaveLen(1))
		Expect(consumer.requeued).To(BeEmpty())
	})

	It("sends permanent failures straight to the DLQ", func() {
		processor.ProcessFunc = func(ctx context.Context, msg queue.Message) error {
			return fmt.Errorf("%w: bad request", worker.ErrPermanent)
		}

		runOneBatch([]queue.Message{{ID: "1-0", RunID: 1, Attempt: 1}})

		Expect(consumer.dlq).To(HaveLen(1))
		Expect(consumer.requeued).To(BeEmpty())
	})

	It("recovers from a panicking processor", func() {
		processor.ProcessFunc = func(ctx context.Context, msg queue.Message) error {
			panic("boom")
		}

		runOneBatch([]queue.Message{{ID: "1-0", RunID: 1, Attempt: 1}})

		Expect(consumer.requeued).To(HaveLen(1))
	})
})
