package validator

import (
	"github.com/gin-gonic/gin"
	"github.com/nulzo/ai-sdk-gateway/internal/llm"
	"github.com/nulzo/ai-sdk-gateway/pkg/api"
)

const (
	promptDetail   = "prompt is required and must be a string"
	messagesDetail = "messages is required and must be a non-empty array"
)

// BindAsk validates a single-prompt body and converts it to a prompt request.
func BindAsk(c *gin.Context) (llm.Request, *api.Problem) {
	var body api.AskRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		return llm.Request{}, problemFor(err, "prompt", promptDetail)
	}

	return llm.NewPromptRequest(body.Prompt, llm.Options{
		System:          body.System,
		Temperature:     body.Temperature,
		MaxOutputTokens: body.MaxOutputTokens,
	}), nil
}

// BindChat validates a multi-message body and converts it to a messages request.
func BindChat(c *gin.Context) (llm.Request, *api.Problem) {
	var body api.ChatRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		return llm.Request{}, problemFor(err, "messages", messagesDetail)
	}

	messages := make([]llm.Message, 0, len(body.Messages))
	for _, m := range body.Messages {
		messages = append(messages, llm.Message{
			Role:    llm.Role(m.Role),
			Content: m.Text(),
		})
	}

	return llm.NewMessagesRequest(messages, llm.Options{
		System:          body.System,
		Temperature:     body.Temperature,
		MaxOutputTokens: body.MaxOutputTokens,
	}), nil
}

// problemFor uses the field-specific detail when the primary field (or the
// body as a whole) is what failed.
func problemFor(err error, field, detail string) *api.Problem {
	errs := ParseValidationError(err)
	p := api.ValidationError(errs)

	_, fieldFailed := errs[field]
	_, bodyFailed := errs["body"]
	if fieldFailed || bodyFailed {
		p.Detail = detail
	}
	return p
}
