package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"
)

// geminiBackend uses the Google GenAI SDK against the Gemini API
type geminiBackend struct {
	client    *genai.Client
	modelName string
}

func newGeminiBackend(ctx context.Context, apiKey, model string, httpClient *http.Client) (*geminiBackend, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &geminiBackend{client: client, modelName: model}, nil
}

func (b *geminiBackend) name() string  { return "gemini" }
func (b *geminiBackend) model() string { return b.modelName }

func (b *geminiBackend) complete(ctx context.Context, req Request) (string, error) {
	cfg := &genai.GenerateContentConfig{}
	if req.Temperature != nil {
		cfg.Temperature = genai.Ptr(float32(*req.Temperature))
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}

	resp, err := b.client.Models.GenerateContent(ctx, b.modelName, genai.Text(req.Prompt), cfg)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			lerr := httpError(b.name(), b.modelName, "", apiErr.Code, apiErr.Message)
			lerr.Err = err
			return "", lerr
		}
		return "", err
	}
	return resp.Text(), nil
}
