// Package llmtest provides test doubles for the llm.Client capability.
package llmtest

import (
	"context"
	"iter"

	"github.com/nulzo/ai-sdk-gateway/internal/llm"
	"github.com/stretchr/testify/mock"
)

// MockClient is a testify mock of llm.Client.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockClient) Generate(ctx context.Context, params *llm.Params) (string, error) {
	args := m.Called(ctx, params)
	return args.String(0), args.Error(1)
}

func (m *MockClient) Stream(ctx context.Context, params *llm.Params) iter.Seq2[llm.ChatEvent, error] {
	args := m.Called(ctx, params)
	return args.Get(0).(iter.Seq2[llm.ChatEvent, error])
}

// Fragments yields each fragment as a text delta followed by a finish event.
func Fragments(parts ...string) iter.Seq2[llm.ChatEvent, error] {
	return FailAfter(nil, parts...)
}

// FailAfter yields parts and then fails with err. A nil err finishes normally.
func FailAfter(err error, parts ...string) iter.Seq2[llm.ChatEvent, error] {
	return func(yield func(llm.ChatEvent, error) bool) {
		for _, p := range parts {
			if !yield(llm.ChatEvent{Type: llm.EventTextDelta, Delta: p}, nil) {
				return
			}
		}
		if err != nil {
			yield(llm.ChatEvent{}, err)
			return
		}
		yield(llm.ChatEvent{Type: llm.EventFinish, FinishReason: "end_turn"}, nil)
	}
}

// Factory returns an llm.Factory that always hands out client.
func Factory(client llm.Client) llm.Factory {
	return func(llm.Config) (llm.Client, error) {
		return client, nil
	}
}
