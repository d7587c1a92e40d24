package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/agritool/internal/domain"
	"google.golang.org/genai"
)

// DefaultModelName is the Gemini model used when none is configured.
const DefaultModelName = "gemini-2.5-flash"

// NewClient creates a Gemini API client. An empty apiKey lets the SDK fall
// back to GEMINI_API_KEY / GOOGLE_API_KEY from the environment.
func NewClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("NewClient: create genai client: %w", err)
	}
	return client, nil
}

// Gemini is the Model backed by the Gemini API.
type Gemini struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGemini creates a Gemini model. A zero timeout leaves the caller's
// context deadline as the only bound.
func NewGemini(client *genai.Client, model string, timeout time.Duration) *Gemini {
	if model == "" {
		model = DefaultModelName
	}
	return &Gemini{
		client:  client,
		model:   model,
		timeout: timeout,
	}
}

// Generate implements Model.
func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	parts := []*genai.Part{{Text: req.Prompt}}
	if req.Image != nil {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{
				MIMEType: req.Image.MIMEType,
				Data:     req.Image.Data,
			},
		})
	}
	contents := []*genai.Content{{Role: "user", Parts: parts}}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("Generate: generate content: %w: %v", domain.ErrExternalService, err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("Generate: %w: empty response from model", domain.ErrExternalService)
	}
	return text, nil
}

var _ Model = (*Gemini)(nil)
