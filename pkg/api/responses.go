package api

// AskResponse is the single-shot answer envelope: {"data":{"text":"..."}}.
type AskResponse struct {
	Data AskData `json:"data"`
}

type AskData struct {
	Text string `json:"text"`
}

// TextChunk is the payload of one plain event-stream frame.
type TextChunk struct {
	Text string `json:"text"`
}

// ErrorChunk is the in-band error frame sent once headers are committed.
type ErrorChunk struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status string `json:"status"`
	Ready  bool   `json:"ready"`
	Model  string `json:"model,omitempty"`
}
