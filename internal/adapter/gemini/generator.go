package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Generator wraps the generative model used by the strategy composer. It
// takes a prompt string and returns the model's text response verbatim.
type Generator struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

func NewGenerator(ctx context.Context, apiKey, model string, timeout time.Duration, opts ...option.ClientOption) (*Generator, error) {
	all := append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	client, err := genai.NewClient(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Generator{client: client, model: model, timeout: timeout}, nil
}

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	model := g.client.GenerativeModel(g.model)
	res, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if len(res.Candidates) == 0 || res.Candidates[0].Content == nil {
		return "", fmt.Errorf("empty response from model %s", g.model)
	}

	var b strings.Builder
	for _, part := range res.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String(), nil
}

func (g *Generator) Close() error {
	return g.client.Close()
}
