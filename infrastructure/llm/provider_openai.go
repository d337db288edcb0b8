package llm

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIDefaultModel is used when the configuration names no model.
const OpenAIDefaultModel = "gpt-4o-mini"

func init() {
	RegisterProviderFactory("openai", newOpenAIProvider)
}

// openAIProvider implements CoreLLM against any OpenAI-compatible chat
// completion endpoint. Pointing BaseURL at an OpenRouter-style gateway is the
// expected deployment for multi-model ablation runs.
type openAIProvider struct {
	client     *openai.Client
	model      string
	classifier *ErrorClassifier
}

func newOpenAIProvider(config ClientConfig) (CoreLLM, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = OpenAIDefaultModel
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		validated, err := ValidateBaseURL(config.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid BaseURL: %w", err)
		}
		clientConfig.BaseURL = validated
	}

	return &openAIProvider{
		client:     openai.NewClientWithConfig(clientConfig),
		model:      model,
		classifier: &ErrorClassifier{Provider: "openai"},
	}, nil
}

// DoRequest sends a chat completion request and returns the response text
// with token usage. An empty completion body is classified as a malformed
// response so the scheduler can retry it a bounded number of times.
func (p *openAIProvider) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	options := ParseRequestOptions(opts)

	resp, err := p.client.CreateChatCompletion(ctx, p.buildRequest(prompt, options))
	if err != nil {
		return "", 0, 0, p.handleError(err)
	}

	if len(resp.Choices) == 0 {
		return "", 0, 0, p.classifier.ClassifyEmptyResponse()
	}

	content := resp.Choices[0].Message.Content
	if content == "" {
		return "", 0, 0, p.classifier.ClassifyEmptyResponse()
	}

	return content, resp.Usage.PromptTokens, resp.Usage.CompletionTokens, nil
}

// GetModel returns the configured model name.
func (p *openAIProvider) GetModel() string { return p.model }

func (p *openAIProvider) buildRequest(prompt string, options RequestOptions) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if options.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: options.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	req := openai.ChatCompletionRequest{
		Model:     p.model,
		Messages:  messages,
		MaxTokens: options.MaxTokens,
	}
	if options.Temperature != nil {
		req.Temperature = float32(*options.Temperature)
	}
	return req
}

func (p *openAIProvider) handleError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return p.classifier.ClassifyContextError(err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return p.classifier.ClassifyHTTPError(apiErr.HTTPStatusCode, err)
	}

	// Anything else at this layer is a transport-level failure.
	return p.classifier.ClassifyHTTPError(503, err)
}
