package anthropic

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/nulzo/ai-sdk-gateway/internal/httpclient"
	"github.com/nulzo/ai-sdk-gateway/internal/llm"
	"github.com/tidwall/gjson"
)

const (
	DefaultBaseURL   = "https://api.anthropic.com/v1"
	APIVersion       = "2023-06-01"
	DefaultMaxTokens = 4096
)

// ErrTruncatedStream is returned when the event stream ends without message_stop.
var ErrTruncatedStream = errors.New("anthropic: stream ended before message_stop")

func init() {
	llm.Register(string(llm.Anthropic), New)
}

type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// New builds a Messages API client. The HTTP client carries no overall
// timeout because streamed answers can legitimately run for minutes;
// callers bound requests through their context.
func New(cfg llm.Config) (llm.Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: api key is required")
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 60 * time.Second,
	}

	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		http:    &http.Client{Transport: transport},
	}, nil
}

func (c *Client) Name() string { return string(llm.Anthropic) }

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	System      string    `json:"system,omitempty"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	Stream      bool      `json:"stream,omitempty"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type response struct {
	ID         string         `json:"id"`
	Model      string         `json:"model"`
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
}

// APIError is an error event delivered inside an otherwise successful stream.
type APIError struct {
	Type    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("anthropic: %s: %s", e.Type, e.Message)
}

// toRequest maps Params onto the Messages API. System-role turns are lifted
// into the top-level system field, after the explicit system option.
func toRequest(p *llm.Params, stream bool) request {
	r := request{
		Model:       p.Model,
		MaxTokens:   DefaultMaxTokens,
		Temperature: p.Temperature,
		Stream:      stream,
	}
	if p.MaxOutputTokens != nil {
		r.MaxTokens = *p.MaxOutputTokens
	}

	var system []string
	if p.System != "" {
		system = append(system, p.System)
	}

	if p.Messages == nil {
		r.Messages = []message{{Role: string(llm.RoleUser), Content: p.Prompt}}
	} else {
		for _, m := range p.Messages {
			if m.Role == llm.RoleSystem {
				system = append(system, m.Content)
				continue
			}
			r.Messages = append(r.Messages, message{Role: string(m.Role), Content: m.Content})
		}
	}
	r.System = strings.Join(system, "\n\n")

	return r
}

func (c *Client) endpoint() string {
	return c.baseURL + "/messages"
}

func (c *Client) headers() map[string]string {
	return map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": APIVersion,
	}
}

func (c *Client) Generate(ctx context.Context, params *llm.Params) (string, error) {
	var resp response
	if err := httpclient.SendRequest(ctx, c.http, http.MethodPost, c.endpoint(), c.headers(), toRequest(params, false), &resp); err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}

// Stream opens the upstream request on first iteration. Ending the loop
// early closes the response body.
func (c *Client) Stream(ctx context.Context, params *llm.Params) iter.Seq2[llm.ChatEvent, error] {
	return func(yield func(llm.ChatEvent, error) bool) {
		body, err := httpclient.OpenStream(ctx, c.http, http.MethodPost, c.endpoint(), c.headers(), toRequest(params, true))
		if err != nil {
			yield(llm.ChatEvent{}, err)
			return
		}
		defer func() {
			_ = body.Close()
		}()

		reader := httpclient.NewSSEReader(body)
		stopReason := ""

		for {
			if err := ctx.Err(); err != nil {
				yield(llm.ChatEvent{}, err)
				return
			}

			ev, err := reader.Next()
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					err = ctxErr
				} else if errors.Is(err, io.EOF) {
					err = ErrTruncatedStream
				}
				yield(llm.ChatEvent{}, err)
				return
			}

			if !gjson.ValidBytes(ev.Data) {
				continue
			}
			data := gjson.ParseBytes(ev.Data)

			switch data.Get("type").String() {
			case "content_block_delta":
				if data.Get("delta.type").String() != "text_delta" {
					continue
				}
				if !yield(llm.ChatEvent{Type: llm.EventTextDelta, Delta: data.Get("delta.text").String()}, nil) {
					return
				}

			case "message_delta":
				if reason := data.Get("delta.stop_reason"); reason.Exists() {
					stopReason = reason.String()
				}

			case "message_stop":
				yield(llm.ChatEvent{Type: llm.EventFinish, FinishReason: stopReason}, nil)
				return

			case "error":
				yield(llm.ChatEvent{}, &APIError{
					Type:    data.Get("error.type").String(),
					Message: data.Get("error.message").String(),
				})
				return
			}
		}
	}
}
