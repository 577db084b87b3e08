package validator

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/ai-sdk-gateway/internal/llm"
	"github.com/nulzo/ai-sdk-gateway/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	InitValidator()
}

func contextWithBody(body string) *gin.Context {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return c
}

func TestBindAsk(t *testing.T) {
	req, problem := BindAsk(contextWithBody(`{"prompt":"Say hi","system":"be brief","temperature":0.2,"maxOutputTokens":50}`))
	require.Nil(t, problem)

	in, ok := req.Input.(llm.PromptInput)
	require.True(t, ok)
	assert.Equal(t, "Say hi", in.Prompt)
	assert.Equal(t, "be brief", req.System)
	assert.Equal(t, 0.2, *req.Temperature)
	assert.Equal(t, 50, *req.MaxOutputTokens)
}

func TestBindAsk_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"empty body", ``, "body"},
		{"missing prompt", `{}`, "prompt"},
		{"empty prompt", `{"prompt":""}`, "prompt"},
		{"null prompt", `{"prompt":null}`, "prompt"},
		{"numeric prompt", `{"prompt":42}`, "prompt"},
		{"array prompt", `{"prompt":["a"]}`, "prompt"},
		{"not an object", `"hello"`, "body"},
		{"temperature out of range", `{"prompt":"x","temperature":3}`, "temperature"},
		{"negative token limit", `{"prompt":"x","maxOutputTokens":-1}`, "maxOutputTokens"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, problem := BindAsk(contextWithBody(tt.body))
			require.NotNil(t, problem)
			assert.Equal(t, http.StatusBadRequest, problem.Status)

			errs, ok := problem.Extensions["errors"].(map[string]string)
			require.True(t, ok)
			assert.Contains(t, errs, tt.field)
		})
	}
}

func TestBindAsk_PromptDetail(t *testing.T) {
	_, problem := BindAsk(contextWithBody(`{}`))
	require.NotNil(t, problem)
	assert.Equal(t, "prompt is required and must be a string", problem.Detail)
}

func TestBindChat(t *testing.T) {
	req, problem := BindChat(contextWithBody(`{
		"system": "be kind",
		"messages": [
			{"role":"system","content":"rules"},
			{"role":"user","content":"hello"},
			{"id":"m2","role":"assistant","parts":[{"type":"text","text":"hi "},{"type":"step-start"},{"type":"text","text":"there"}]},
			{"role":"user","content":[{"type":"text","text":"how are you?"}]}
		]
	}`))
	require.Nil(t, problem)

	in, ok := req.Input.(llm.MessagesInput)
	require.True(t, ok)
	assert.Equal(t, "be kind", req.System)
	assert.Equal(t, []llm.Message{
		{Role: llm.RoleSystem, Content: "rules"},
		{Role: llm.RoleUser, Content: "hello"},
		{Role: llm.RoleAssistant, Content: "hi there"},
		{Role: llm.RoleUser, Content: "how are you?"},
	}, in.Messages)
}

func TestBindChat_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		field  string
		detail bool
	}{
		{"missing messages", `{}`, "messages", true},
		{"empty messages", `{"messages":[]}`, "messages", true},
		{"messages not an array", `{"messages":"hello"}`, "messages", true},
		{"messages object", `{"messages":{"role":"user"}}`, "messages", true},
		{"bad role", `{"messages":[{"role":"robot","content":"x"}]}`, "messages[0].role", false},
		{"missing role", `{"messages":[{"content":"x"}]}`, "messages[0].role", false},
		{"no content", `{"messages":[{"role":"user"}]}`, "messages[0].content", false},
		{"blank content", `{"messages":[{"role":"user","content":"   "}]}`, "messages[0].content", false},
		{"only non-text parts", `{"messages":[{"role":"user","content":"hi"},{"role":"user","parts":[{"type":"file"}]}]}`, "messages[1].content", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, problem := BindChat(contextWithBody(tt.body))
			require.NotNil(t, problem)
			assert.Equal(t, http.StatusBadRequest, problem.Status)

			errs := problem.Extensions["errors"].(map[string]string)
			assert.Contains(t, errs, tt.field)
			if tt.detail {
				assert.Equal(t, "messages is required and must be a non-empty array", problem.Detail)
			}
		})
	}
}

func TestBindChat_InvalidContent(t *testing.T) {
	_, problem := BindChat(contextWithBody(`{"messages":[{"role":"user","content":42}]}`))
	require.NotNil(t, problem)
	assert.IsType(t, &api.Problem{}, problem)
	assert.Equal(t, http.StatusBadRequest, problem.Status)
}
