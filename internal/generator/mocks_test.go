package generator_test

import (
	"context"

	"testsmith.app/testsmith/common/llm"
	"testsmith.app/testsmith/internal/model"
	"testsmith.app/testsmith/internal/source"
)

type mockChatClient struct {
	CompleteFunc func(ctx context.Context, req llm.Request) (*llm.Response, error)
	StreamFunc   func(ctx context.Context, req llm.Request) (<-chan llm.Chunk, error)
}

func (m *mockChatClient) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	return m.CompleteFunc(ctx, req)
}

func (m *mockChatClient) Stream(ctx context.Context, req llm.Request) (<-chan llm.Chunk, error) {
	return m.StreamFunc(ctx, req)
}

func (m *mockChatClient) Model() string { return "mock-model" }

type mockStructuredClient struct {
	ChatFunc func(ctx context.Context, req llm.StructuredRequest, result any) (*llm.Response, error)
}

func (m *mockStructuredClient) Chat(ctx context.Context, req llm.StructuredRequest, result any) (*llm.Response, error) {
	return m.ChatFunc(ctx, req, result)
}

func (m *mockStructuredClient) Model() string { return "mock-structured" }

type mockResolver struct {
	ResolveFunc func(ctx context.Context, run *model.GenerationRun) (source.File, error)
}

func (m *mockResolver) Resolve(ctx context.Context, run *model.GenerationRun) (source.File, error) {
	return m.ResolveFunc(ctx, run)
}

// streamOf builds a closed chunk channel from tokens, ending with Done.
func streamOf(tokens ...string) <-chan llm.Chunk {
	ch := make(chan llm.Chunk, len(tokens)+1)
	for _, tok := range tokens {
		ch <- llm.Chunk{Token: tok}
	}
	ch <- llm.Chunk{Done: true}
	close(ch)
	return ch
}
