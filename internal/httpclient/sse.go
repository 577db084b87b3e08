package httpclient

import (
	"bufio"
	"bytes"
	"io"
)

const maxEventSize = 1 << 20

// Event is one server-sent event. Data lines are joined with "\n".
type Event struct {
	Name string
	Data []byte
}

// SSEReader splits an event stream into events. Comments and fields other
// than "event" and "data" are ignored.
type SSEReader struct {
	scanner *bufio.Scanner
}

func NewSSEReader(r io.Reader) *SSEReader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxEventSize)
	return &SSEReader{scanner: s}
}

// Next returns the next event with a non-empty data field. It returns io.EOF
// once the stream is exhausted.
func (r *SSEReader) Next() (Event, error) {
	var ev Event
	var data [][]byte

	for r.scanner.Scan() {
		line := r.scanner.Bytes()

		if len(line) == 0 {
			if len(data) > 0 {
				ev.Data = bytes.Join(data, []byte("\n"))
				return ev, nil
			}
			ev = Event{}
			continue
		}
		if line[0] == ':' {
			continue
		}

		field, value, _ := bytes.Cut(line, []byte(":"))
		value = bytes.TrimPrefix(value, []byte(" "))

		switch string(field) {
		case "event":
			ev.Name = string(value)
		case "data":
			data = append(data, bytes.Clone(value))
		}
	}

	if err := r.scanner.Err(); err != nil {
		return Event{}, err
	}
	// A final event without a trailing blank line still counts.
	if len(data) > 0 {
		ev.Data = bytes.Join(data, []byte("\n"))
		return ev, nil
	}
	return Event{}, io.EOF
}
