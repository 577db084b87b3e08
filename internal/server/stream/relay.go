package stream

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nulzo/ai-sdk-gateway/internal/llm"
)

const relayBufferSize = 32 << 10

// Relay forwards a ready-made response stream to w without interpreting it.
// The stream's own headers are copied first and then overridden by
// ChatHeaders. The body is closed exactly once, on every exit path.
func Relay(w http.ResponseWriter, rs *llm.ResponseStream) error {
	defer func() {
		_ = rs.Body.Close()
	}()

	h := w.Header()
	for k, v := range rs.Header {
		h[k] = append([]string(nil), v...)
	}
	for k, v := range ChatHeaders() {
		h[k] = v
	}
	h.Del("Content-Length")

	status := rs.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)

	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	flush := func() error {
		if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
			return fmt.Errorf("%w: %v", ErrClientGone, err)
		}
		return nil
	}
	if err := flush(); err != nil {
		return err
	}

	buf := make([]byte, relayBufferSize)
	for {
		n, err := rs.Body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return fmt.Errorf("%w: %v", ErrClientGone, werr)
			}
			if ferr := flush(); ferr != nil {
				return ferr
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("relay read failed: %w", err)
		}
	}
}
