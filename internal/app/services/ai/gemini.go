package ai

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/R3E-Network/studio_layer/internal/app/domain/chat"
)

// Model names used by the studio tools.
const (
	ImageEditModel  = "gemini-2.5-flash-image"
	ImageModel      = "imagen-4.0-generate-001"
	ConsultantModel = "gemini-3-pro-preview"
)

// Generator is the subset of the Gemini models API the studio uses.
// *genai.Models satisfies it.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	GenerateImages(ctx context.Context, model, prompt string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error)
}

// NewGemini dials the Gemini API with an API key.
func NewGemini(ctx context.Context, apiKey string) (Generator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return client.Models, nil
}

// firstInlineImage returns the first inline blob of the first candidate.
func firstInlineImage(resp *genai.GenerateContentResponse) (*genai.Blob, bool) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, false
	}
	c := resp.Candidates[0]
	if c == nil || c.Content == nil {
		return nil, false
	}
	for _, part := range c.Content.Parts {
		if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
			return part.InlineData, true
		}
	}
	return nil, false
}

// groundingSources collects the web citations of the first candidate.
func groundingSources(resp *genai.GenerateContentResponse) []chat.Source {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return nil
	}
	meta := resp.Candidates[0].GroundingMetadata
	if meta == nil {
		return nil
	}
	var out []chat.Source
	seen := make(map[string]struct{})
	for _, chunk := range meta.GroundingChunks {
		if chunk == nil || chunk.Web == nil || chunk.Web.URI == "" {
			continue
		}
		if _, dup := seen[chunk.Web.URI]; dup {
			continue
		}
		seen[chunk.Web.URI] = struct{}{}
		out = append(out, chat.Source{URI: chunk.Web.URI, Title: chunk.Web.Title})
	}
	return out
}
