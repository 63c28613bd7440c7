package worker

import (
	"context"

	"testsmith.app/testsmith/internal/queue"
)

// Consumer abstracts the message queue for testability.
type Consumer interface {
	Read(ctx context.Context) ([]queue.Message, error)
	Ack(ctx context.Context, msg queue.Message) error
	Requeue(ctx context.Context, msg queue.Message, errMsg string) error
	SendDLQ(ctx context.Context, msg queue.Message, errMsg string) error
}

// RunProcessor executes one queued generation run.
type RunProcessor interface {
	Process(ctx context.Context, msg queue.Message) error
}
