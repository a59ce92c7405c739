// Package anthropic implements a backend over the Anthropic Messages API.
package anthropic

import (
	"context"
	"net/http"

	anthropicapi "github.com/tjfontaine/polyglot-itinerary/internal/api/anthropic"
	"github.com/tjfontaine/polyglot-itinerary/internal/core/domain"
	"github.com/tjfontaine/polyglot-itinerary/internal/core/ports"
	"github.com/tjfontaine/polyglot-itinerary/internal/provider/normalize"
	"github.com/tjfontaine/polyglot-itinerary/internal/provider/prompt"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-3-5-haiku-latest"

const defaultMaxTokens = 4096

// The Messages API has no JSON mode; prefilling the assistant turn with an
// opening brace keeps the reply to a bare object.
const prefill = "{"

// Option configures the backend.
type Option func(*Backend)

// WithBaseURL sets a custom base URL for the API.
func WithBaseURL(baseURL string) Option {
	return func(b *Backend) {
		b.baseURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(b *Backend) {
		b.httpClient = httpClient
	}
}

// WithModel sets the model.
func WithModel(model string) Option {
	return func(b *Backend) {
		if model != "" {
			b.model = model
		}
	}
}

// WithMaxTokens bounds the completion length.
func WithMaxTokens(n int) Option {
	return func(b *Backend) {
		if n > 0 {
			b.maxTokens = n
		}
	}
}

// Backend calls the Messages API.
type Backend struct {
	name       string
	client     *anthropicapi.Client
	baseURL    string
	httpClient *http.Client
	model      string
	maxTokens  int
}

var (
	_ ports.Backend = (*Backend)(nil)
	_ ports.Pinger  = (*Backend)(nil)
)

// New creates a backend named name.
func New(name, apiKey string, opts ...Option) *Backend {
	b := &Backend{
		name:      name,
		model:     DefaultModel,
		maxTokens: defaultMaxTokens,
	}
	for _, opt := range opts {
		opt(b)
	}

	var clientOpts []anthropicapi.ClientOption
	if b.baseURL != "" {
		clientOpts = append(clientOpts, anthropicapi.WithBaseURL(b.baseURL))
	}
	if b.httpClient != nil {
		clientOpts = append(clientOpts, anthropicapi.WithHTTPClient(b.httpClient))
	}
	b.client = anthropicapi.NewClient(apiKey, clientOpts...)
	return b
}

func (b *Backend) Name() string { return b.name }

// Call sends one message for role and normalizes the reply.
func (b *Backend) Call(ctx context.Context, role domain.Role, in *domain.StageInput) (*ports.BackendResponse, error) {
	system, user, err := prompt.Build(role, in)
	if err != nil {
		return nil, err
	}

	temp := 0.2
	if role == domain.RoleDrafting {
		temp = 0.7
	}
	resp, err := b.client.CreateMessage(ctx, &anthropicapi.MessagesRequest{
		Model:  b.model,
		System: system,
		Messages: []anthropicapi.Message{
			{Role: "user", Content: user},
			{Role: "assistant", Content: prefill},
		},
		MaxTokens:   b.maxTokens,
		Temperature: &temp,
	})
	if err != nil {
		return nil, err
	}

	payload, err := normalize.Payload(role, prefill+resp.Text(), in)
	if err != nil {
		return nil, err
	}
	return &ports.BackendResponse{
		Payload:          payload,
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
	}, nil
}

// Ping lists models to confirm the API is reachable and the key is accepted.
func (b *Backend) Ping(ctx context.Context) error {
	_, err := b.client.ListModels(ctx)
	return err
}
