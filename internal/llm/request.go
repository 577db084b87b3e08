package llm

// Input is the closed set of request shapes: PromptInput or MessagesInput.
// The unexported marker method keeps other packages from adding variants.
type Input interface {
	isInput()
}

// PromptInput is a single free-text prompt.
type PromptInput struct {
	Prompt string
}

// MessagesInput is an ordered conversation.
type MessagesInput struct {
	Messages []Message
}

func (PromptInput) isInput()   {}
func (MessagesInput) isInput() {}

// Options are the generation knobs shared by both shapes.
type Options struct {
	System          string
	Temperature     *float64
	MaxOutputTokens *int
}

// Request is a generation request carrying exactly one Input variant.
type Request struct {
	Input Input
	Options
}

func NewPromptRequest(prompt string, opts Options) Request {
	return Request{Input: PromptInput{Prompt: prompt}, Options: opts}
}

func NewMessagesRequest(messages []Message, opts Options) Request {
	return Request{Input: MessagesInput{Messages: messages}, Options: opts}
}
