// Package ai wraps the Gemini API for retrospective generation
package ai

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/wonny/aegis/v14/pkg/config"
	"github.com/wonny/aegis/v14/pkg/logger"
)

// Generator produces free-form text from a prompt. Satisfied by the
// Gemini client and by test fakes.
type Generator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// Client calls the Gemini API
// ⭐ SSOT: LLM 호출은 여기서만
type Client struct {
	client *genai.Client
	model  string
	logger *logger.Logger
}

// NewClient builds a Gemini client from config
func NewClient(ctx context.Context, cfg config.GeminiConfig, log *logger.Logger) (*Client, error) {
	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &Client{
		client: genaiClient,
		model:  cfg.Model,
		logger: log.WithComponent("ai"),
	}, nil
}

// GenerateContent sends one prompt and returns the concatenated text
func (c *Client) GenerateContent(ctx context.Context, prompt string) (string, error) {
	c.logger.WithField("model", c.model).Debug("Generating content")

	result, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no content generated")
	}

	var sb strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}

// StripCodeFence removes a markdown code fence the model sometimes
// wraps JSON responses in.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if i := strings.Index(s, "\n"); i >= 0 {
			s = s[i+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
