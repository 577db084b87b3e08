package llm

import (
	"encoding/json"
	"errors"
	"io"
	"iter"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seqOf(events []ChatEvent, tail error) iter.Seq2[ChatEvent, error] {
	return func(yield func(ChatEvent, error) bool) {
		for _, ev := range events {
			if !yield(ev, nil) {
				return
			}
		}
		if tail != nil {
			yield(ChatEvent{}, tail)
		}
	}
}

func deltas(parts ...string) []ChatEvent {
	out := make([]ChatEvent, 0, len(parts))
	for _, p := range parts {
		out = append(out, ChatEvent{Type: EventTextDelta, Delta: p})
	}
	return out
}

// frames splits an SSE body into its data payloads.
func frames(t *testing.T, body io.Reader) []string {
	t.Helper()
	raw, err := io.ReadAll(body)
	require.NoError(t, err)

	var out []string
	for _, block := range strings.Split(strings.TrimSuffix(string(raw), "\n\n"), "\n\n") {
		require.True(t, strings.HasPrefix(block, "data: "), block)
		out = append(out, strings.TrimPrefix(block, "data: "))
	}
	return out
}

func chunkTypes(t *testing.T, payloads []string) []string {
	t.Helper()
	var types []string
	for _, p := range payloads {
		if p == "[DONE]" {
			types = append(types, p)
			continue
		}
		var c map[string]any
		require.NoError(t, json.Unmarshal([]byte(p), &c))
		types = append(types, c["type"].(string))
	}
	return types
}

func TestTextFragments(t *testing.T) {
	src := seqOf(append(deltas("a", "", "b"), ChatEvent{Type: EventFinish}, ChatEvent{Type: EventTextDelta, Delta: "ignored"}), nil)

	var got []string
	for text, err := range TextFragments(src) {
		require.NoError(t, err)
		got = append(got, text)
	}
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestTextFragments_WrapsFailure(t *testing.T) {
	boom := errors.New("boom")

	var got []string
	var failure error
	for text, err := range TextFragments(seqOf(deltas("a"), boom)) {
		if err != nil {
			failure = err
			break
		}
		got = append(got, text)
	}

	assert.Equal(t, []string{"a"}, got)
	var se *StreamError
	require.ErrorAs(t, failure, &se)
	assert.ErrorIs(t, failure, boom)
}

func TestChatStream_SinglePass(t *testing.T) {
	s := NewChatStream(seqOf(deltas("x"), nil))

	var first []ChatEvent
	for ev := range s.Events() {
		first = append(first, ev)
	}
	require.Len(t, first, 1)

	var second []ChatEvent
	for ev := range s.Events() {
		second = append(second, ev)
	}
	require.Len(t, second, 1)
	assert.Equal(t, EventError, second[0].Type)
	assert.ErrorIs(t, second[0].Err, ErrStreamConsumed)
}

func TestChatStream_ToResponseStream(t *testing.T) {
	src := append(deltas("Hel", "", "lo"), ChatEvent{Type: EventFinish, FinishReason: "end_turn"})
	rs := NewChatStream(seqOf(src, nil)).ToResponseStream(WithMessageID("msg-1"))
	defer rs.Body.Close()

	assert.Equal(t, 200, rs.Status)
	assert.Equal(t, "text/event-stream", rs.Header.Get("Content-Type"))
	assert.Equal(t, "v1", rs.Header.Get(UIMessageStreamHeader))

	payloads := frames(t, rs.Body)
	assert.Equal(t, []string{
		"start", "start-step", "text-start", "text-delta", "text-delta",
		"text-end", "finish-step", "finish", "[DONE]",
	}, chunkTypes(t, payloads))

	assert.JSONEq(t, `{"type":"start","messageId":"msg-1"}`, payloads[0])
	assert.JSONEq(t, `{"type":"text-start","id":"0"}`, payloads[2])
	assert.JSONEq(t, `{"type":"text-delta","id":"0","delta":"Hel"}`, payloads[3])
	assert.JSONEq(t, `{"type":"text-delta","id":"0","delta":"lo"}`, payloads[4])
	assert.JSONEq(t, `{"type":"text-end","id":"0"}`, payloads[5])
}

func TestChatStream_ToResponseStream_EmptyStream(t *testing.T) {
	rs := NewChatStream(seqOf(nil, nil)).ToResponseStream()
	defer rs.Body.Close()

	assert.Equal(t, []string{"start", "start-step", "finish-step", "finish", "[DONE]"}, chunkTypes(t, frames(t, rs.Body)))
}

func TestChatStream_ToResponseStream_Failure(t *testing.T) {
	var logged error
	rs := NewChatStream(seqOf(deltas("a"), errors.New("upstream reset"))).ToResponseStream(
		WithErrorMessage(func(err error) string {
			logged = err
			return "Something went wrong"
		}),
	)
	defer rs.Body.Close()

	payloads := frames(t, rs.Body)
	assert.Equal(t, []string{"start", "start-step", "text-start", "text-delta", "error"}, chunkTypes(t, payloads))
	assert.JSONEq(t, `{"type":"error","errorText":"Something went wrong"}`, payloads[len(payloads)-1])

	var se *StreamError
	assert.ErrorAs(t, logged, &se)
}

func TestChatStream_ToResponseStream_DefaultErrorText(t *testing.T) {
	rs := NewChatStream(seqOf(nil, errors.New("secret detail"))).ToResponseStream()
	defer rs.Body.Close()

	payloads := frames(t, rs.Body)
	last := payloads[len(payloads)-1]
	assert.JSONEq(t, `{"type":"error","errorText":"An error occurred."}`, last)
	assert.NotContains(t, strings.Join(payloads, ""), "secret detail")
}

func TestChatStream_ClosingBodyStopsSource(t *testing.T) {
	stopped := make(chan struct{})
	src := func(yield func(ChatEvent, error) bool) {
		defer close(stopped)
		for {
			if !yield(ChatEvent{Type: EventTextDelta, Delta: "tick"}, nil) {
				return
			}
		}
	}

	rs := NewChatStream(src).ToResponseStream()
	buf := make([]byte, 16)
	_, err := rs.Body.Read(buf)
	require.NoError(t, err)
	require.NoError(t, rs.Body.Close())

	<-stopped
}
