package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"time"

	"github.com/nulzo/ai-sdk-gateway/internal/llm"
	"github.com/nulzo/ai-sdk-gateway/pkg/api"
)

// StreamErrorMessage is the text of the in-band error frame.
const StreamErrorMessage = "Stream error"

var (
	// ErrClientGone wraps the write failure that ended a stream early.
	ErrClientGone = errors.New("client disconnected")

	ErrClosed = errors.New("stream encoder closed")
)

// TextEncoder writes text fragments as `data: {"text":...}` frames,
// terminated by `data: [DONE]`.
type TextEncoder struct {
	w      http.ResponseWriter
	rc     *http.ResponseController
	opened bool
	closed bool
}

func NewTextEncoder(w http.ResponseWriter) *TextEncoder {
	return &TextEncoder{w: w, rc: http.NewResponseController(w)}
}

// Open commits the status line and headers and flushes them before any
// body byte is written.
func (e *TextEncoder) Open() error {
	if e.closed {
		return ErrClosed
	}
	if e.opened {
		return nil
	}
	e.opened = true

	setEventStreamHeaders(e.w.Header(), "text/event-stream")
	e.w.WriteHeader(http.StatusOK)

	// Streams outlive any server-wide write timeout.
	_ = e.rc.SetWriteDeadline(time.Time{})

	if err := e.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return fmt.Errorf("%w: %v", ErrClientGone, err)
	}
	return nil
}

// Encode drains fragments onto the response and then closes the encoder.
// It returns the number of fragments written and, when the stream did not
// complete, either an *llm.StreamError (upstream failure, reported in-band)
// or an error wrapping ErrClientGone (write failure, upstream abandoned).
func (e *TextEncoder) Encode(fragments iter.Seq2[string, error]) (int, error) {
	if err := e.Open(); err != nil {
		return 0, err
	}
	defer e.Close()

	written := 0
	for text, err := range fragments {
		if err != nil {
			var se *llm.StreamError
			if !errors.As(err, &se) {
				err = &llm.StreamError{Err: err}
			}
			_ = e.writeFrame(api.ErrorChunk{Error: StreamErrorMessage})
			return written, err
		}

		if werr := e.writeFrame(api.TextChunk{Text: text}); werr != nil {
			return written, werr
		}
		written++
	}

	if err := e.writeRaw("data: [DONE]\n\n"); err != nil {
		return written, err
	}
	return written, nil
}

// Close marks the stream finished; later writes fail with ErrClosed.
func (e *TextEncoder) Close() {
	e.closed = true
}

func (e *TextEncoder) writeFrame(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return e.writeRaw(fmt.Sprintf("data: %s\n\n", data))
}

func (e *TextEncoder) writeRaw(frame string) error {
	if e.closed {
		return ErrClosed
	}
	if _, err := io.WriteString(e.w, frame); err != nil {
		e.closed = true
		return fmt.Errorf("%w: %v", ErrClientGone, err)
	}
	if err := e.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		e.closed = true
		return fmt.Errorf("%w: %v", ErrClientGone, err)
	}
	return nil
}
