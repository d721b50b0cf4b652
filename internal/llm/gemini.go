package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"hanpin/internal/escalate"
	"hanpin/internal/tagger"
)

// GeminiClient runs both collaborator tasks on Google's Gemini API.
type GeminiClient struct {
	client *genai.Client
	model  string
}

func NewGeminiClient(ctx context.Context, apiKey, modelName string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiClient{
		client: client,
		model:  modelName,
	}, nil
}

func (g *GeminiClient) SegmentAndTag(ctx context.Context, req tagger.Request) (json.RawMessage, error) {
	return g.completeJSON(ctx, tagSystemPrompt, req)
}

func (g *GeminiClient) DoubleCheck(ctx context.Context, req escalate.VerifyRequest) (json.RawMessage, error) {
	return g.completeJSON(ctx, doubleCheckSystemPrompt, req)
}

func (g *GeminiClient) completeJSON(ctx context.Context, system string, payload any) (json.RawMessage, error) {
	user, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, err
	}

	model := g.client.GenerativeModel(g.model)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(system)},
	}
	model.ResponseMIMEType = "application/json"

	resp, err := model.GenerateContent(ctx, genai.Text(string(user)))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("gemini response has no candidates")
	}
	text := fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0])
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("gemini response missing content")
	}
	return ExtractJSON(text)
}
