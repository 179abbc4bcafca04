// Package textgen wraps the Gemini API for the JSON-shaped completions used
// by template drafting and insight generation.
package textgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// ErrNotConfigured is returned when no API key was supplied.
var ErrNotConfigured = errors.New("text generation is not configured")

// ErrInvalidOutput wraps model responses that are not the requested JSON.
var ErrInvalidOutput = errors.New("model returned invalid JSON")

const defaultModel = "gemini-2.0-flash"

type Generator interface {
	// GenerateJSON asks the model for a JSON document and decodes it into out.
	GenerateJSON(ctx context.Context, prompt string, out any) error
}

type GeminiGenerator struct {
	client *genai.Client
	model  string
}

func NewGemini(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, ErrNotConfigured
	}
	if model == "" {
		model = defaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiGenerator{client: client, model: model}, nil
}

func (g *GeminiGenerator) GenerateJSON(ctx context.Context, prompt string, out any) error {
	result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.7),
	})
	if err != nil {
		return fmt.Errorf("genai generate: %w", err)
	}
	return DecodeJSON(result.Text(), out)
}

func (g *GeminiGenerator) Model() string {
	return g.model
}

// DecodeJSON tolerates a fenced ```json block around the payload.
func DecodeJSON(raw string, out any) error {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	if text == "" {
		return fmt.Errorf("%w: empty response", ErrInvalidOutput)
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	return nil
}

// Func adapts a plain function to Generator.
type Func func(ctx context.Context, prompt string) (string, error)

func (f Func) GenerateJSON(ctx context.Context, prompt string, out any) error {
	raw, err := f(ctx, prompt)
	if err != nil {
		return err
	}
	return DecodeJSON(raw, out)
}
