package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ollamaBackend talks to a local ollama server over its HTTP API
type ollamaBackend struct {
	baseURL   string
	modelName string
	client    *http.Client
}

func newOllamaBackend(baseURL, model string, client *http.Client) *ollamaBackend {
	return &ollamaBackend{
		baseURL:   strings.TrimRight(baseURL, "/"),
		modelName: model,
		client:    client,
	}
}

func (b *ollamaBackend) name() string  { return "ollama" }
func (b *ollamaBackend) model() string { return b.modelName }

func (b *ollamaBackend) complete(ctx context.Context, req Request) (string, error) {
	options := map[string]interface{}{}
	if req.Temperature != nil {
		options["temperature"] = *req.Temperature
	}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}
	reqBody := map[string]interface{}{
		"model":   b.modelName,
		"prompt":  req.Prompt,
		"stream":  false,
		"options": options,
	}
	if req.SystemPrompt != "" {
		reqBody["system"] = req.SystemPrompt
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", b.baseURL+"/api/generate", bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(httpReq)
	if err != nil {
		lerr := asError(b.name(), b.modelName, err)
		lerr.Hint = hintFor(lerr.Kind, b.name(), b.modelName, b.baseURL)
		return "", lerr
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", httpError(b.name(), b.modelName, b.baseURL, resp.StatusCode, string(body))
	}

	var ollamaResp struct {
		Response string `json:"response"`
		Error    string `json:"error"`
	}
	if err := json.Unmarshal(body, &ollamaResp); err != nil {
		return "", &Error{
			Kind:     KindBadResponse,
			Provider: b.name(),
			Model:    b.modelName,
			Message:  fmt.Sprintf("undecodable body: %v", err),
			Hint:     hintFor(KindBadResponse, b.name(), b.modelName, b.baseURL),
			Err:      err,
		}
	}
	if ollamaResp.Error != "" {
		kind := classify(fmt.Errorf("%s", ollamaResp.Error))
		return "", &Error{
			Kind:     kind,
			Provider: b.name(),
			Model:    b.modelName,
			Message:  ollamaResp.Error,
			Hint:     hintFor(kind, b.name(), b.modelName, b.baseURL),
		}
	}
	return ollamaResp.Response, nil
}
