package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const outputStreamTTL = time.Hour

// OutputPublisher relays generation progress for one run onto its Redis
// stream, where the API server picks it up for SSE clients.
type OutputPublisher struct {
	client *redis.Client
	stream string
}

func NewOutputPublisher(client *redis.Client, prefix string, runID int64) *OutputPublisher {
	return &OutputPublisher{
		client: client,
		stream: RunStreamName(prefix, runID),
	}
}

func (p *OutputPublisher) Stream() string {
	return p.stream
}

// PublishToken appends one streamed token. The stream is capped and expires
// after an hour; it is a relay, not the system of record.
func (p *OutputPublisher) PublishToken(ctx context.Context, token string) error {
	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: 10000,
		Approx: true,
		Values: map[string]any{OutputFieldToken: token},
	}).Err(); err != nil {
		return fmt.Errorf("publish token: %w", err)
	}
	return p.client.Expire(ctx, p.stream, outputStreamTTL).Err()
}

// PublishDone marks the end of a successful run on the stream.
func (p *OutputPublisher) PublishDone(ctx context.Context) error {
	return p.publishEvent(ctx, EventDone, "")
}

// PublishFailed marks the run as failed on the stream.
func (p *OutputPublisher) PublishFailed(ctx context.Context, errMsg string) error {
	return p.publishEvent(ctx, EventFailed, errMsg)
}

func (p *OutputPublisher) publishEvent(ctx context.Context, event, errMsg string) error {
	values := map[string]any{OutputFieldEvent: event}
	if errMsg != "" {
		values["error"] = errMsg
	}

	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: values,
	}).Err(); err != nil {
		return fmt.Errorf("publish %s event: %w", event, err)
	}
	return p.client.Expire(ctx, p.stream, outputStreamTTL).Err()
}
