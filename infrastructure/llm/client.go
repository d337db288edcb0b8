// Package llm implements the remote completion client behind the
// ports.CompletionClient interface. Providers (an OpenAI-compatible endpoint
// and Anthropic) are abstracted behind the CoreLLM interface and composed
// with middleware for rate limiting, per-call timeouts, audit logging, and
// metrics. Retry policy deliberately does NOT live here: the scheduler owns
// it, so backoff behavior is uniform and testable in one place.
//
// Basic usage:
//
//	client, err := llm.NewClient("openai", llm.ClientConfig{
//	    APIKey:  os.Getenv("PROMPTLAB_API_KEY"),
//	    Model:   "gpt-4o-mini",
//	    BaseURL: "https://openrouter.ai/api/v1",
//	    Middleware: []llm.Middleware{
//	        llm.RateLimitMiddleware(10, 20),
//	        llm.TimeoutMiddleware(60 * time.Second),
//	        llm.AuditMiddleware(logger),
//	    },
//	})
package llm

import (
	"context"
	"fmt"

	"github.com/ahrav/promptlab/internal/ports"
)

// CoreLLM is the minimal surface a provider must implement. The middleware
// chain wraps any conforming implementation.
type CoreLLM interface {
	// DoRequest sends a prompt to the provider and returns the response text
	// together with input and output token counts. Errors are classified into
	// the ports sentinel taxonomy before being returned.
	DoRequest(ctx context.Context, prompt string, opts map[string]any) (response string, tokensIn, tokensOut int, err error)

	// GetModel returns the configured model name.
	GetModel() string
}

// Middleware wraps a CoreLLM to add cross-cutting behavior. Middleware are
// applied in declaration order, the first being outermost.
type Middleware func(CoreLLM) CoreLLM

// ClientConfig holds everything needed to construct a provider-backed client.
type ClientConfig struct {
	// APIKey authenticates requests. Required.
	APIKey string

	// Model selects the remote model. Required.
	Model string

	// BaseURL overrides the provider's default endpoint. For the "openai"
	// provider this is how OpenRouter-style compatible gateways are reached.
	BaseURL string

	// Middleware is applied around the provider in declaration order.
	Middleware []Middleware
}

// Client adapts a wrapped CoreLLM to the ports.CompletionClient interface.
type Client struct {
	core CoreLLM
}

var _ ports.CompletionClient = (*Client)(nil)

// NewClient constructs a completion client for the named provider type and
// assembles its middleware chain.
func NewClient(providerType string, config ClientConfig) (*Client, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	factory, ok := providerFactories[providerType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, providerType)
	}

	core, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("create %s provider: %w", providerType, err)
	}

	// Reverse application keeps the first declared middleware outermost.
	for i := len(config.Middleware) - 1; i >= 0; i-- {
		core = config.Middleware[i](core)
	}

	return &Client{core: core}, nil
}

// WrapCore builds a Client around an existing CoreLLM, primarily for tests
// that substitute a scripted core underneath the real middleware chain.
func WrapCore(core CoreLLM, middleware ...Middleware) *Client {
	for i := len(middleware) - 1; i >= 0; i-- {
		core = middleware[i](core)
	}
	return &Client{core: core}
}

// Complete sends a prompt and returns the response text, discarding usage.
func (c *Client) Complete(ctx context.Context, prompt string, options map[string]any) (string, error) {
	response, _, _, err := c.core.DoRequest(ctx, prompt, options)
	return response, err
}

// CompleteWithUsage sends a prompt and returns the response with token usage.
func (c *Client) CompleteWithUsage(ctx context.Context, prompt string, options map[string]any) (string, int, int, error) {
	return c.core.DoRequest(ctx, prompt, options)
}

// GetModel returns the configured model name.
func (c *Client) GetModel() string { return c.core.GetModel() }

// ProviderFactory builds a CoreLLM from client configuration.
type ProviderFactory func(ClientConfig) (CoreLLM, error)

var providerFactories = map[string]ProviderFactory{}

// RegisterProviderFactory registers a provider under a type name. Providers
// in this package register themselves in init; external callers may add more.
func RegisterProviderFactory(providerType string, factory ProviderFactory) {
	providerFactories[providerType] = factory
}
