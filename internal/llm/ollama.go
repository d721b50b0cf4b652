package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"hanpin/internal/escalate"
	"hanpin/internal/tagger"
)

// OllamaClient talks to a local Ollama server over its chat API.
type OllamaClient struct {
	client   *http.Client
	model    string
	endpoint string
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Stream   bool                `json:"stream"`
	Messages []ollamaChatMessage `json:"messages"`
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatResponse struct {
	Message ollamaChatMessage `json:"message"`
}

func NewOllamaClient(model, baseURL string) *OllamaClient {
	url := strings.TrimSpace(baseURL)
	if url == "" {
		url = "http://127.0.0.1:11434"
	}
	url = strings.TrimRight(url, "/")
	if !strings.HasSuffix(url, "/api/chat") {
		url += "/api/chat"
	}

	return &OllamaClient{
		client: &http.Client{
			Timeout: 90 * time.Second,
		},
		model:    model,
		endpoint: url,
	}
}

func (o *OllamaClient) SegmentAndTag(ctx context.Context, req tagger.Request) (json.RawMessage, error) {
	return o.completeJSON(ctx, tagSystemPrompt, req)
}

func (o *OllamaClient) DoubleCheck(ctx context.Context, req escalate.VerifyRequest) (json.RawMessage, error) {
	return o.completeJSON(ctx, doubleCheckSystemPrompt, req)
}

func (o *OllamaClient) completeJSON(ctx context.Context, system string, payload any) (json.RawMessage, error) {
	if strings.TrimSpace(o.model) == "" {
		return nil, fmt.Errorf("ollama model is required")
	}
	user, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, err
	}

	reqBody := ollamaChatRequest{
		Model:  o.model,
		Stream: false,
		Messages: []ollamaChatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: string(user)},
		},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("ollama chat request failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var parsed ollamaChatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, err
	}
	if strings.TrimSpace(parsed.Message.Content) == "" {
		return nil, fmt.Errorf("ollama chat response missing content")
	}
	return ExtractJSON(parsed.Message.Content)
}
