package v1

import (
	"context"
	"errors"
	"iter"
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/ai-sdk-gateway/internal/gateway"
	"github.com/nulzo/ai-sdk-gateway/internal/httpclient"
	"github.com/nulzo/ai-sdk-gateway/internal/llm"
	"github.com/nulzo/ai-sdk-gateway/internal/metrics"
	"github.com/nulzo/ai-sdk-gateway/internal/modeldata"
	"github.com/nulzo/ai-sdk-gateway/internal/server/stream"
	"github.com/nulzo/ai-sdk-gateway/internal/server/validator"
	"github.com/nulzo/ai-sdk-gateway/pkg/api"
	"go.uber.org/zap"
)

const (
	endpointAsk       = "ask"
	endpointAskStream = "ask-stream"
	endpointChat      = "chat"
)

// Generator is the provider capability the handlers drive.
type Generator interface {
	IsReady() bool
	Model() modeldata.ModelID
	Generate(ctx context.Context, req llm.Request) (string, error)
	Stream(ctx context.Context, req llm.Request) (iter.Seq2[string, error], error)
	StreamStructured(ctx context.Context, req llm.Request) (*llm.ChatStream, error)
}

type GatewayHandler struct {
	gen    Generator
	logger *zap.Logger
}

func NewGatewayHandler(gen Generator, logger *zap.Logger) *GatewayHandler {
	return &GatewayHandler{gen: gen, logger: logger}
}

// admit runs validation then the readiness check. A rejected request never
// reaches the provider.
func (h *GatewayHandler) admit(c *gin.Context, endpoint string, bind func(*gin.Context) (llm.Request, *api.Problem)) (llm.Request, bool) {
	req, problem := bind(c)
	if problem != nil {
		metrics.RequestsTotal.WithLabelValues(endpoint, metrics.OutcomeInvalid).Inc()
		_ = c.Error(problem)
		return llm.Request{}, false
	}

	if !h.gen.IsReady() {
		metrics.RequestsTotal.WithLabelValues(endpoint, metrics.OutcomeNotReady).Inc()
		_ = c.Error(api.NotReadyError())
		return llm.Request{}, false
	}

	return req, true
}

// invocationProblem maps a failure that happened before any byte was sent.
func (h *GatewayHandler) invocationProblem(endpoint string, err error) *api.Problem {
	switch {
	case errors.Is(err, gateway.ErrNotInitialized):
		metrics.RequestsTotal.WithLabelValues(endpoint, metrics.OutcomeNotReady).Inc()
		return api.NotReadyError()
	case errors.Is(err, context.Canceled):
		metrics.RequestsTotal.WithLabelValues(endpoint, metrics.OutcomeCancelled).Inc()
		return api.InternalError("Request cancelled", err)
	case httpclient.IsUpstreamError(err):
		metrics.UpstreamErrorsTotal.Inc()
		metrics.RequestsTotal.WithLabelValues(endpoint, metrics.OutcomeUpstream).Inc()
		return api.ProviderError("The model provider rejected the request", err)
	default:
		metrics.UpstreamErrorsTotal.Inc()
		metrics.RequestsTotal.WithLabelValues(endpoint, metrics.OutcomeUpstream).Inc()
		return api.ProviderError("Failed to generate response", err)
	}
}

// Ask returns the complete answer as {"data":{"text":...}}.
//
// POST /ask
func (h *GatewayHandler) Ask(c *gin.Context) {
	req, ok := h.admit(c, endpointAsk, validator.BindAsk)
	if !ok {
		return
	}

	text, err := h.gen.Generate(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(h.invocationProblem(endpointAsk, err))
		return
	}

	metrics.RequestsTotal.WithLabelValues(endpointAsk, metrics.OutcomeSuccess).Inc()
	c.JSON(http.StatusOK, api.AskResponse{Data: api.AskData{Text: text}})
}

// AskStream streams the answer as plain text frames.
//
// POST /ask-stream
func (h *GatewayHandler) AskStream(c *gin.Context) {
	req, ok := h.admit(c, endpointAskStream, validator.BindAsk)
	if !ok {
		return
	}

	// Cancelling on return releases the upstream stream on every exit path.
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	fragments, err := h.gen.Stream(ctx, req)
	if err != nil {
		_ = c.Error(h.invocationProblem(endpointAskStream, err))
		return
	}

	gauge := metrics.ActiveStreams.WithLabelValues(endpointAskStream)
	gauge.Inc()
	defer gauge.Dec()

	n, err := stream.NewTextEncoder(c.Writer).Encode(fragments)
	metrics.StreamFragmentsTotal.WithLabelValues(endpointAskStream).Add(float64(n))
	h.finishStream(endpointAskStream, n, err)
}

// Chat relays a structured UI message stream.
//
// POST /chat
func (h *GatewayHandler) Chat(c *gin.Context) {
	req, ok := h.admit(c, endpointChat, validator.BindChat)
	if !ok {
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	chat, err := h.gen.StreamStructured(ctx, req)
	if err != nil {
		_ = c.Error(h.invocationProblem(endpointChat, err))
		return
	}

	gauge := metrics.ActiveStreams.WithLabelValues(endpointChat)
	gauge.Inc()
	defer gauge.Dec()

	// Written by the encoder goroutine, read once Relay has drained the body.
	var upstreamErr atomic.Pointer[error]
	rs := chat.ToResponseStream(llm.WithErrorMessage(func(err error) string {
		upstreamErr.Store(&err)
		return "An error occurred."
	}))

	err = stream.Relay(c.Writer, rs)
	if p := upstreamErr.Load(); err == nil && p != nil {
		err = *p
	}
	h.finishStream(endpointChat, -1, err)
}

// finishStream logs and counts how a stream ended. Headers are committed by
// now, so nothing here may touch the response.
func (h *GatewayHandler) finishStream(endpoint string, fragments int, err error) {
	fields := []zap.Field{zap.String("endpoint", endpoint)}
	if fragments >= 0 {
		fields = append(fields, zap.Int("fragments", fragments))
	}

	var se *llm.StreamError
	switch {
	case err == nil:
		metrics.RequestsTotal.WithLabelValues(endpoint, metrics.OutcomeSuccess).Inc()
	case errors.Is(err, stream.ErrClientGone), errors.Is(err, context.Canceled):
		metrics.RequestsTotal.WithLabelValues(endpoint, metrics.OutcomeCancelled).Inc()
		h.logger.Debug("Client disconnected mid-stream", append(fields, zap.Error(err))...)
	case errors.As(err, &se):
		metrics.UpstreamErrorsTotal.Inc()
		metrics.RequestsTotal.WithLabelValues(endpoint, metrics.OutcomeStreamFailed).Inc()
		h.logger.Error("Stream error", append(fields, zap.Error(err))...)
	default:
		metrics.RequestsTotal.WithLabelValues(endpoint, metrics.OutcomeStreamFailed).Inc()
		h.logger.Error("Stream terminated", append(fields, zap.Error(err))...)
	}
}

// Models lists the catalog and marks the model in use.
//
// GET /models
func (h *GatewayHandler) Models(c *gin.Context) {
	selected := h.gen.Model()
	defs := modeldata.List()

	out := api.ModelList{Object: "list", Data: make([]api.Model, 0, len(defs))}
	for _, d := range defs {
		out.Data = append(out.Data, api.Model{
			ID:              string(d.ID),
			Object:          "model",
			OwnedBy:         d.OwnedBy,
			Name:            d.Name,
			Description:     d.Description,
			ContextLength:   d.ContextLength,
			MaxOutputTokens: d.MaxOutputTokens,
			Default:         d.ID == modeldata.DefaultModel,
			Selected:        d.ID == selected,
		})
	}

	c.JSON(http.StatusOK, out)
}

// Health reports liveness and whether the provider is ready.
//
// GET /health
func (h *GatewayHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, api.HealthResponse{
		Status: "ok",
		Ready:  h.gen.IsReady(),
		Model:  string(h.gen.Model()),
	})
}
