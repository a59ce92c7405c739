// Package openai implements a backend over the OpenAI Chat Completions API and
// compatible servers.
package openai

import (
	"context"
	"fmt"
	"net/http"

	openaiapi "github.com/tjfontaine/polyglot-itinerary/internal/api/openai"
	"github.com/tjfontaine/polyglot-itinerary/internal/core/domain"
	"github.com/tjfontaine/polyglot-itinerary/internal/core/ports"
	"github.com/tjfontaine/polyglot-itinerary/internal/provider/normalize"
	"github.com/tjfontaine/polyglot-itinerary/internal/provider/prompt"
	"github.com/tjfontaine/polyglot-itinerary/internal/tokens"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o-mini"

const defaultMaxTokens = 4096

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

// Backend calls Chat Completions in JSON mode.
type Backend struct {
	name       string
	client     *openaiapi.Client
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

	var clientOpts []openaiapi.ClientOption
	if b.baseURL != "" {
		clientOpts = append(clientOpts, openaiapi.WithBaseURL(b.baseURL))
	}
	if b.httpClient != nil {
		clientOpts = append(clientOpts, openaiapi.WithHTTPClient(b.httpClient))
	}
	b.client = openaiapi.NewClient(apiKey, clientOpts...)
	return b
}

func (b *Backend) Name() string { return b.name }

// Call sends one chat completion for role and normalizes the reply.
func (b *Backend) Call(ctx context.Context, role domain.Role, in *domain.StageInput) (*ports.BackendResponse, error) {
	system, user, err := prompt.Build(role, in)
	if err != nil {
		return nil, err
	}

	temp := temperature(role)
	req := &openaiapi.ChatCompletionRequest{
		Model: b.model,
		Messages: []openaiapi.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:      b.maxTokens,
		Temperature:    &temp,
		ResponseFormat: &openaiapi.ResponseFormat{Type: "json_object"},
	}
	if in.Request != nil {
		req.User = in.Request.UserID
	}

	resp, err := b.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices in response", normalize.ErrInvalidPayload)
	}
	text := resp.Choices[0].Message.Content

	payload, err := normalize.Payload(role, text, in)
	if err != nil {
		return nil, err
	}

	out := &ports.BackendResponse{Payload: payload}
	if resp.Usage != nil {
		out.PromptTokens = resp.Usage.PromptTokens
		out.CompletionTokens = resp.Usage.CompletionTokens
	} else {
		out.PromptTokens = tokens.Estimate(b.model, system, user)
		out.CompletionTokens = tokens.Estimate(b.model, text)
	}
	return out, nil
}

// Ping lists models to confirm the API is reachable and the key is accepted.
func (b *Backend) Ping(ctx context.Context) error {
	_, err := b.client.ListModels(ctx)
	return err
}

func temperature(role domain.Role) float64 {
	if role == domain.RoleDrafting {
		return 0.7
	}
	return 0.2
}
