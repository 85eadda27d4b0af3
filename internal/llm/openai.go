package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// openaiBackend uses chat completions; BaseURL makes it work with any
// OpenAI-compatible server
type openaiBackend struct {
	client    *openai.Client
	modelName string
	baseURL   string
}

func newOpenAIBackend(apiKey, baseURL, model string, httpClient *http.Client) *openaiBackend {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = httpClient
	return &openaiBackend{
		client:    openai.NewClientWithConfig(cfg),
		modelName: model,
		baseURL:   baseURL,
	}
}

func (b *openaiBackend) name() string  { return "openai" }
func (b *openaiBackend) model() string { return b.modelName }

func (b *openaiBackend) complete(ctx context.Context, req Request) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	chatReq := openai.ChatCompletionRequest{
		Model:    b.modelName,
		Messages: messages,
	}
	if req.Temperature != nil {
		chatReq.Temperature = float32(*req.Temperature)
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}

	resp, err := b.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", b.wrap(err)
	}
	if len(resp.Choices) == 0 {
		return "", &Error{
			Kind:     KindBadResponse,
			Provider: b.name(),
			Model:    b.modelName,
			Message:  "no choices in completion",
			Hint:     hintFor(KindBadResponse, b.name(), b.modelName, b.baseURL),
		}
	}
	return resp.Choices[0].Message.Content, nil
}

func (b *openaiBackend) wrap(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		lerr := httpError(b.name(), b.modelName, b.baseURL, apiErr.HTTPStatusCode, apiErr.Message)
		lerr.Err = err
		return lerr
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		lerr := httpError(b.name(), b.modelName, b.baseURL, reqErr.HTTPStatusCode, fmt.Sprint(reqErr.Err))
		lerr.Err = err
		return lerr
	}
	lerr := asError(b.name(), b.modelName, err)
	lerr.Hint = hintFor(lerr.Kind, b.name(), b.modelName, b.baseURL)
	return lerr
}
