package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/ai-sdk-gateway/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(ErrorHandler(zap.NewNop()))
	r.Use(mw...)
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func do(r http.Handler, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestAuth(t *testing.T) {
	r := newEngine(Auth([]string{"key-1", "key-2"}))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic key-1", http.StatusUnauthorized},
		{"no token", "Bearer", http.StatusUnauthorized},
		{"unknown key", "Bearer nope", http.StatusUnauthorized},
		{"first key", "Bearer key-1", http.StatusOK},
		{"second key", "Bearer key-2", http.StatusOK},
		{"lowercase scheme", "bearer key-2", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			if tt.header != "" {
				headers["Authorization"] = tt.header
			}
			w := do(r, http.MethodGet, "/ok", headers)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestAuth_DisabledWithoutKeys(t *testing.T) {
	r := newEngine(Auth(nil))
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/ok", nil).Code)
}

func TestErrorHandler_Problem(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler(zap.NewNop()))
	r.GET("/fail", func(c *gin.Context) {
		_ = c.Error(api.ValidationError(map[string]string{"prompt": "prompt is a required field"}))
	})

	w := do(r, http.MethodGet, "/fail", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Validation Error", body["title"])
	assert.Equal(t, map[string]any{"prompt": "prompt is a required field"}, body["errors"])
}

func TestErrorHandler_NotReadyIsNotLogged(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	r := gin.New()
	r.Use(ErrorHandler(zap.New(core)))
	r.POST("/ask", func(c *gin.Context) {
		_ = c.Error(api.NotReadyError())
	})

	w := do(r, http.MethodPost, "/ask", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), api.NotReadyDetail)
	assert.Zero(t, logs.Len())

	// a problem with an attached cause is still logged
	r.POST("/fail", func(c *gin.Context) {
		_ = c.Error(api.ProviderError("Failed to generate response", errors.New("upstream 529")))
	})
	do(r, http.MethodPost, "/fail", nil)
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
}

func TestErrorHandler_Unknown(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler(zap.NewNop()))
	r.GET("/fail", func(c *gin.Context) {
		_ = c.Error(errors.New("boom"))
	})

	w := do(r, http.MethodGet, "/fail", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "boom")
}

func TestErrorHandler_SkipsCommittedResponse(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler(zap.NewNop()))
	r.GET("/stream", func(c *gin.Context) {
		c.String(http.StatusOK, "data: partial\n\n")
		_ = c.Error(errors.New("late failure"))
	})

	w := do(r, http.MethodGet, "/stream", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "data: partial\n\n", w.Body.String())
}

func TestRequestID(t *testing.T) {
	r := newEngine(RequestID())

	w := do(r, http.MethodGet, "/ok", nil)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	w = do(r, http.MethodGet, "/ok", map[string]string{RequestIDHeader: "abc-123"})
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestCORS(t *testing.T) {
	t.Run("wildcard", func(t *testing.T) {
		r := newEngine(CORS([]string{"*"}))
		w := do(r, http.MethodGet, "/ok", map[string]string{"Origin": "http://app.local"})
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("allow list", func(t *testing.T) {
		r := newEngine(CORS([]string{"http://app.local"}))

		w := do(r, http.MethodGet, "/ok", map[string]string{"Origin": "http://app.local"})
		assert.Equal(t, "http://app.local", w.Header().Get("Access-Control-Allow-Origin"))

		w = do(r, http.MethodGet, "/ok", map[string]string{"Origin": "http://evil.local"})
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		r := newEngine(CORS(nil))
		r.OPTIONS("/ok", func(c *gin.Context) { c.Status(http.StatusTeapot) })
		w := do(r, http.MethodOptions, "/ok", nil)
		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}
