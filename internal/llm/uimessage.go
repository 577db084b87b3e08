package llm

import (
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"strconv"
)

type uiChunk struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	MessageID string `json:"messageId,omitempty"`
	Delta     string `json:"delta,omitempty"`
	ErrorText string `json:"errorText,omitempty"`
}

// uiMessageEncoder writes chat events as UI message stream chunks:
//
//	start → start-step → text-start → text-delta* → text-end → finish-step → finish → [DONE]
type uiMessageEncoder struct {
	w            io.Writer
	messageID    string
	errorMessage func(error) string

	started  bool
	textOpen bool
	textID   string
	parts    int
}

func newUIMessageEncoder(w io.Writer, messageID string, errorMessage func(error) string) *uiMessageEncoder {
	return &uiMessageEncoder{
		w:            w,
		messageID:    messageID,
		errorMessage: errorMessage,
	}
}

func (e *uiMessageEncoder) encode(events iter.Seq[ChatEvent]) error {
	for ev := range events {
		done, err := e.write(ev)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
	return e.finish()
}

func (e *uiMessageEncoder) write(ev ChatEvent) (bool, error) {
	if err := e.start(); err != nil {
		return false, err
	}

	switch ev.Type {
	case EventTextDelta:
		if ev.Delta == "" {
			return false, nil
		}
		if !e.textOpen {
			e.textID = strconv.Itoa(e.parts)
			e.parts++
			e.textOpen = true
			if err := e.emit(uiChunk{Type: "text-start", ID: e.textID}); err != nil {
				return false, err
			}
		}
		return false, e.emit(uiChunk{Type: "text-delta", ID: e.textID, Delta: ev.Delta})

	case EventFinish:
		return true, e.finish()

	case EventError:
		return true, e.emit(uiChunk{Type: "error", ErrorText: e.errorMessage(ev.Err)})
	}

	return false, nil
}

func (e *uiMessageEncoder) start() error {
	if e.started {
		return nil
	}
	e.started = true
	if err := e.emit(uiChunk{Type: "start", MessageID: e.messageID}); err != nil {
		return err
	}
	return e.emit(uiChunk{Type: "start-step"})
}

func (e *uiMessageEncoder) finish() error {
	if err := e.start(); err != nil {
		return err
	}
	if e.textOpen {
		e.textOpen = false
		if err := e.emit(uiChunk{Type: "text-end", ID: e.textID}); err != nil {
			return err
		}
	}
	if err := e.emit(uiChunk{Type: "finish-step"}); err != nil {
		return err
	}
	if err := e.emit(uiChunk{Type: "finish"}); err != nil {
		return err
	}
	_, err := io.WriteString(e.w, "data: [DONE]\n\n")
	return err
}

func (e *uiMessageEncoder) emit(chunk uiChunk) error {
	data, err := json.Marshal(chunk)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(e.w, "data: %s\n\n", data)
	return err
}
