package llm

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"sync/atomic"

	"github.com/google/uuid"
)

// UIMessageStreamHeader advertises the structured chat stream protocol version.
const UIMessageStreamHeader = "x-vercel-ai-ui-message-stream"

var ErrStreamConsumed = errors.New("chat stream already consumed")

type EventType string

const (
	EventTextDelta EventType = "text-delta"
	EventFinish    EventType = "finish"
	EventError     EventType = "error"
)

// ChatEvent is one structured delta of a chat stream.
type ChatEvent struct {
	Type         EventType
	Delta        string
	FinishReason string
	Err          error
}

// StreamError reports a provider failure after a stream has started.
type StreamError struct {
	Err error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("upstream stream failed: %v", e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// TextFragments narrows a chat event sequence to its text deltas. A provider
// failure ends the sequence with a *StreamError.
func TextFragments(source iter.Seq2[ChatEvent, error]) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for ev, err := range source {
			if err != nil {
				yield("", &StreamError{Err: err})
				return
			}
			switch ev.Type {
			case EventTextDelta:
				if ev.Delta == "" {
					continue
				}
				if !yield(ev.Delta, nil) {
					return
				}
			case EventFinish:
				return
			case EventError:
				yield("", &StreamError{Err: ev.Err})
				return
			}
		}
	}
}

// ChatStream is a single-pass structured chat stream. It can be consumed
// either as events or materialized once into a ready-made response body.
type ChatStream struct {
	source   iter.Seq2[ChatEvent, error]
	consumed atomic.Bool
}

func NewChatStream(source iter.Seq2[ChatEvent, error]) *ChatStream {
	return &ChatStream{source: source}
}

// Events yields events in arrival order. A provider failure is delivered as a
// terminal EventError carrying a *StreamError.
func (s *ChatStream) Events() iter.Seq[ChatEvent] {
	return func(yield func(ChatEvent) bool) {
		if !s.consumed.CompareAndSwap(false, true) {
			yield(ChatEvent{Type: EventError, Err: ErrStreamConsumed})
			return
		}

		for ev, err := range s.source {
			if err != nil {
				yield(ChatEvent{Type: EventError, Err: &StreamError{Err: err}})
				return
			}
			if !yield(ev) {
				return
			}
		}
	}
}

// ResponseStream is an HTTP-ready rendition of a stream. Body must be closed.
type ResponseStream struct {
	Status int
	Header http.Header
	Body   io.ReadCloser
}

type responseOptions struct {
	messageID    string
	errorMessage func(error) string
}

type ResponseOption func(*responseOptions)

// WithMessageID fixes the message id announced in the start chunk.
func WithMessageID(id string) ResponseOption {
	return func(o *responseOptions) {
		o.messageID = id
	}
}

// WithErrorMessage maps a stream failure to the text sent to the client.
// It is also the place to log the failure.
func WithErrorMessage(fn func(error) string) ResponseOption {
	return func(o *responseOptions) {
		o.errorMessage = fn
	}
}

func defaultErrorMessage(error) string {
	return "An error occurred."
}

// UIMessageStreamHeaders returns the header set of a UI message stream response.
func UIMessageStreamHeaders() http.Header {
	h := make(http.Header)
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	h.Set(UIMessageStreamHeader, "v1")
	return h
}

// ToResponseStream encodes the stream as a UI message stream (v1). Encoding
// runs on its own goroutine and stops as soon as Body is closed.
func (s *ChatStream) ToResponseStream(opts ...ResponseOption) *ResponseStream {
	o := responseOptions{
		messageID:    uuid.NewString(),
		errorMessage: defaultErrorMessage,
	}
	for _, opt := range opts {
		opt(&o)
	}

	pr, pw := io.Pipe()

	go func() {
		enc := newUIMessageEncoder(pw, o.messageID, o.errorMessage)
		_ = pw.CloseWithError(enc.encode(s.Events()))
	}()

	return &ResponseStream{
		Status: http.StatusOK,
		Header: UIMessageStreamHeaders(),
		Body:   pr,
	}
}
