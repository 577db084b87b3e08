package stream

import (
	"errors"
	"io"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/nulzo/ai-sdk-gateway/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fragments(err error, parts ...string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, p := range parts {
			if !yield(p, nil) {
				return
			}
		}
		if err != nil {
			yield("", err)
		}
	}
}

// brokenWriter accepts the headers and then fails every body write.
type brokenWriter struct {
	*httptest.ResponseRecorder
	writes int
	failAt int
}

func (w *brokenWriter) Write(p []byte) (int, error) {
	w.writes++
	if w.writes >= w.failAt {
		return 0, errors.New("broken pipe")
	}
	return w.ResponseRecorder.Write(p)
}

// WriteString shadows the recorder's own method so io.WriteString hits Write.
func (w *brokenWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

func TestTextEncoder_Frames(t *testing.T) {
	rec := httptest.NewRecorder()
	enc := NewTextEncoder(rec)

	n, err := enc.Encode(fragments(nil, "a", "b", "c"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache, no-transform", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "keep-alive", rec.Header().Get("Connection"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))
	assert.True(t, rec.Flushed)

	assert.Equal(t,
		"data: {\"text\":\"a\"}\n\n"+
			"data: {\"text\":\"b\"}\n\n"+
			"data: {\"text\":\"c\"}\n\n"+
			"data: [DONE]\n\n",
		rec.Body.String())
}

func TestTextEncoder_EmptyStream(t *testing.T) {
	rec := httptest.NewRecorder()
	n, err := NewTextEncoder(rec).Encode(fragments(nil))

	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, "data: [DONE]\n\n", rec.Body.String())
}

func TestTextEncoder_UpstreamFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	boom := errors.New("connection reset")

	n, err := NewTextEncoder(rec).Encode(fragments(boom, "a"))

	assert.Equal(t, 1, n)
	var se *llm.StreamError
	require.ErrorAs(t, err, &se)
	assert.ErrorIs(t, err, boom)

	assert.Equal(t,
		"data: {\"text\":\"a\"}\n\n"+
			"data: {\"error\":\"Stream error\"}\n\n",
		rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "[DONE]")
	assert.NotContains(t, rec.Body.String(), "connection reset")
}

func TestTextEncoder_ClientGoneStopsUpstream(t *testing.T) {
	w := &brokenWriter{ResponseRecorder: httptest.NewRecorder(), failAt: 2}

	var pulled atomic.Int32
	var stopped atomic.Bool
	src := func(yield func(string, error) bool) {
		defer stopped.Store(true)
		for range 100 {
			pulled.Add(1)
			if !yield("tick", nil) {
				return
			}
		}
	}

	n, err := NewTextEncoder(w).Encode(src)

	assert.ErrorIs(t, err, ErrClientGone)
	assert.Equal(t, 1, n)
	assert.True(t, stopped.Load())
	assert.Equal(t, int32(2), pulled.Load())
}

func TestTextEncoder_NoWritesAfterClose(t *testing.T) {
	rec := httptest.NewRecorder()
	enc := NewTextEncoder(rec)

	_, err := enc.Encode(fragments(nil, "a"))
	require.NoError(t, err)
	before := rec.Body.String()

	enc.Close()
	enc.Close()
	assert.ErrorIs(t, enc.writeFrame(map[string]string{"text": "late"}), ErrClosed)
	assert.ErrorIs(t, enc.Open(), ErrClosed)

	_, err = enc.Encode(fragments(nil, "late"))
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, before, rec.Body.String())
}

type countingBody struct {
	io.Reader
	closes atomic.Int32
}

func (b *countingBody) Close() error {
	b.closes.Add(1)
	return nil
}

func TestRelay(t *testing.T) {
	payload := "data: {\"type\":\"start\"}\n\ndata: [DONE]\n\n"
	body := &countingBody{Reader: strings.NewReader(payload)}

	upstream := http.Header{}
	upstream.Set("Content-Type", "text/plain")
	upstream.Set("Cache-Control", "max-age=60")
	upstream.Set("X-Upstream", "kept")

	rec := httptest.NewRecorder()
	err := Relay(rec, &llm.ResponseStream{Status: http.StatusOK, Header: upstream, Body: body})

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, payload, rec.Body.String())
	assert.Equal(t, int32(1), body.closes.Load())

	assert.Equal(t, "text/event-stream; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache, no-transform", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "v1", rec.Header().Get(llm.UIMessageStreamHeader))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))
	assert.Equal(t, "kept", rec.Header().Get("X-Upstream"))
}

func TestRelay_ClientGoneClosesBody(t *testing.T) {
	rs := llm.NewChatStream(func(yield func(llm.ChatEvent, error) bool) {
		for {
			if !yield(llm.ChatEvent{Type: llm.EventTextDelta, Delta: "tick"}, nil) {
				return
			}
		}
	}).ToResponseStream()

	w := &brokenWriter{ResponseRecorder: httptest.NewRecorder(), failAt: 3}
	err := Relay(w, rs)
	assert.ErrorIs(t, err, ErrClientGone)

	_, readErr := rs.Body.Read(make([]byte, 1))
	assert.ErrorIs(t, readErr, io.ErrClosedPipe)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("pipe broke") }

func TestRelay_ReadError(t *testing.T) {
	body := &countingBody{Reader: failingReader{}}
	err := Relay(httptest.NewRecorder(), &llm.ResponseStream{Header: http.Header{}, Body: body})

	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrClientGone)
	assert.Equal(t, int32(1), body.closes.Load())
}
