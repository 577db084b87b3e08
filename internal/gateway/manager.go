package gateway

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/nulzo/ai-sdk-gateway/internal/llm"
	"github.com/nulzo/ai-sdk-gateway/internal/metrics"
	"github.com/nulzo/ai-sdk-gateway/internal/modeldata"
	"github.com/nulzo/ai-sdk-gateway/internal/store/cache"
	"go.uber.org/zap"
)

// DefaultTemperature applies when a request leaves temperature unset.
const DefaultTemperature = 0.7

// ErrNotInitialized is returned by every generation call made before
// Initialize succeeds or after Destroy.
var ErrNotInitialized = errors.New("provider not initialized")

// ConfigurationError reports an unusable provider configuration.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid provider configuration: %s %s", e.Field, e.Reason)
}

// Config is what the manager needs to build its client.
type Config struct {
	Provider  string
	APIKey    string
	ChatModel string
	BaseURL   string
}

// Manager owns the single shared provider client. It starts Uninitialized;
// Initialize moves it to Ready and Destroy back again. Generation calls take
// a snapshot of the client under a read lock, so a call never observes a
// half-built or half-torn handle.
type Manager struct {
	mu     sync.RWMutex
	client llm.Client
	model  modeldata.ModelID

	factory  llm.Factory
	cache    cache.CacheService
	cacheTTL time.Duration
	logger   *zap.Logger
}

type Option func(*Manager)

// WithFactory bypasses the provider registry.
func WithFactory(f llm.Factory) Option {
	return func(m *Manager) {
		m.factory = f
	}
}

// WithCache enables the single-shot response cache.
func WithCache(c cache.CacheService, ttl time.Duration) Option {
	return func(m *Manager) {
		m.cache = c
		m.cacheTTL = ttl
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Initialize builds the provider client and makes the manager Ready.
// Calling it again replaces the client.
func (m *Manager) Initialize(cfg Config) error {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return &ConfigurationError{Field: "api_key", Reason: "is required"}
	}

	provider := cfg.Provider
	if provider == "" {
		provider = string(llm.Anthropic)
	}

	factory := m.factory
	if factory == nil {
		f, err := llm.Get(provider)
		if err != nil {
			return &ConfigurationError{Field: "provider", Reason: err.Error()}
		}
		factory = f
	}

	client, err := factory(llm.Config{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL})
	if err != nil {
		return fmt.Errorf("failed to create %s client: %w", provider, err)
	}

	model := modeldata.Resolve(cfg.ChatModel)
	if cfg.ChatModel != "" && string(model) != cfg.ChatModel {
		m.logger.Warn("Unknown chat model, using default",
			zap.String("requested", cfg.ChatModel),
			zap.String("model", string(model)),
		)
	}

	m.mu.Lock()
	m.client = client
	m.model = model
	m.mu.Unlock()

	return nil
}

func (m *Manager) IsReady() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client != nil
}

// Destroy returns the manager to Uninitialized. Calls already holding a
// snapshot finish against the old client.
func (m *Manager) Destroy() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.client = nil
	m.model = ""
}

// Model is the resolved chat model, or "" while Uninitialized.
func (m *Manager) Model() modeldata.ModelID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.model
}

// BuildParams merges a request with the manager's defaults.
func (m *Manager) BuildParams(req llm.Request) (*llm.Params, error) {
	_, params, err := m.prepare(req)
	return params, err
}

func (m *Manager) prepare(req llm.Request) (llm.Client, *llm.Params, error) {
	m.mu.RLock()
	client, model := m.client, m.model
	m.mu.RUnlock()

	if client == nil {
		return nil, nil, ErrNotInitialized
	}

	params := &llm.Params{
		Model:           string(model),
		System:          req.System,
		Temperature:     DefaultTemperature,
		MaxOutputTokens: req.MaxOutputTokens,
	}
	if req.Temperature != nil {
		params.Temperature = *req.Temperature
	}

	switch in := req.Input.(type) {
	case llm.PromptInput:
		params.Prompt = in.Prompt
	case llm.MessagesInput:
		params.Messages = slices.Clone(in.Messages)
	default:
		return nil, nil, fmt.Errorf("unsupported request input %T", req.Input)
	}

	return client, params, nil
}

// Generate returns the complete answer for req.
func (m *Manager) Generate(ctx context.Context, req llm.Request) (string, error) {
	client, params, err := m.prepare(req)
	if err != nil {
		return "", err
	}

	var key string
	if m.cache != nil {
		key = cacheKey(client.Name(), params)
		var text string
		if err := m.cache.Get(ctx, key, &text); err == nil {
			metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
			return text, nil
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			m.logger.Warn("Response cache read failed", zap.Error(err))
		}
		metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
	}

	text, err := client.Generate(ctx, params)
	if err != nil {
		return "", err
	}

	if m.cache != nil {
		if err := m.cache.Set(ctx, key, text, m.cacheTTL); err != nil {
			m.logger.Warn("Response cache write failed", zap.Error(err))
		}
	}

	return text, nil
}

// Stream returns the answer as a lazy sequence of text fragments. Nothing is
// sent upstream until the sequence is ranged over; a mid-stream failure ends
// it with an *llm.StreamError.
func (m *Manager) Stream(ctx context.Context, req llm.Request) (iter.Seq2[string, error], error) {
	client, params, err := m.prepare(req)
	if err != nil {
		return nil, err
	}
	return llm.TextFragments(client.Stream(ctx, params)), nil
}

// StreamStructured returns the answer as a structured chat stream.
func (m *Manager) StreamStructured(ctx context.Context, req llm.Request) (*llm.ChatStream, error) {
	client, params, err := m.prepare(req)
	if err != nil {
		return nil, err
	}
	return llm.NewChatStream(client.Stream(ctx, params)), nil
}

func cacheKey(provider string, params *llm.Params) string {
	payload, _ := json.Marshal(struct {
		Provider string
		Params   *llm.Params
	}{provider, params})
	sum := sha256.Sum256(payload)
	return "ask:" + hex.EncodeToString(sum[:])
}
