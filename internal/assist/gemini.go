package assist

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/generativelanguage/v1beta"
	"google.golang.org/api/option"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gemini-1.5-flash"

var (
	errEmptyResponse = errors.New("empty model response")
	errMissingAPIKey = errors.New("missing Gemini API key")
)

// Gemini generates text through the Generative Language API.
type Gemini struct {
	svc   *generativelanguage.Service
	model string
}

func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errMissingAPIKey
	}
	if model == "" {
		model = DefaultModel
	}
	svc, err := generativelanguage.NewService(ctx,
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Timeout: 60 * time.Second}),
	)
	if err != nil {
		return nil, fmt.Errorf("create generative language service: %w", err)
	}
	return &Gemini{svc: svc, model: model}, nil
}

// NewFromKey returns a client backed by Gemini, or a disabled client when
// apiKey is empty.
func NewFromKey(ctx context.Context, apiKey, model string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return New(nil), nil
	}
	g, err := NewGemini(ctx, apiKey, model)
	if err != nil {
		return nil, err
	}
	return New(g), nil
}

func (g *Gemini) Generate(ctx context.Context, prompt string, jsonOutput bool) (string, error) {
	req := &generativelanguage.GenerateContentRequest{
		Contents: []*generativelanguage.Content{{
			Role:  "user",
			Parts: []*generativelanguage.Part{{Text: prompt}},
		}},
	}
	if jsonOutput {
		req.GenerationConfig = &generativelanguage.GenerationConfig{ResponseMimeType: "application/json"}
	}

	resp, err := g.svc.Models.GenerateContent("models/"+g.model, req).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	return responseText(resp)
}

func responseText(resp *generativelanguage.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", errEmptyResponse
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		var b strings.Builder
		for _, p := range cand.Content.Parts {
			if p != nil {
				b.WriteString(p.Text)
			}
		}
		if b.Len() > 0 {
			return b.String(), nil
		}
	}
	return "", errEmptyResponse
}
