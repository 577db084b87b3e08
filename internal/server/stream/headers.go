// Package stream writes incremental generation output onto long-lived
// event-stream responses.
package stream

import (
	"net/http"

	"github.com/nulzo/ai-sdk-gateway/internal/llm"
)

// setEventStreamHeaders applies the header set shared by both streaming
// endpoints: no caching, no proxy transformation, no proxy buffering.
func setEventStreamHeaders(h http.Header, contentType string) {
	h.Set("Content-Type", contentType)
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	h.Del("Content-Length")
}

// ChatHeaders is the fixed header set forced onto relayed chat streams.
func ChatHeaders() http.Header {
	h := make(http.Header)
	setEventStreamHeaders(h, "text/event-stream; charset=utf-8")
	h.Set(llm.UIMessageStreamHeader, "v1")
	return h
}
