package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"cookiesentinel/internal/logging"
)

// GenAIClient classifies identifiers with a Gemini model.
type GenAIClient struct {
	client *genai.Client
	model  string
}

// NewGenAIClient creates a Gemini-backed classifier client.
func NewGenAIClient(ctx context.Context, apiKey, model string) (*GenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key not configured")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GenAIClient{client: client, model: model}, nil
}

// Name returns the provider name.
func (c *GenAIClient) Name() string { return "gemini" }

// Classify sends one identifier to Gemini and parses the JSON verdict.
func (c *GenAIClient) Classify(ctx context.Context, id Identifier) (rawResult, error) {
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(0.1)),
		MaxOutputTokens: 150,
	}

	contents := []*genai.Content{
		genai.NewContentFromText(classifyPrompt(id), genai.RoleUser),
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
			return rawResult{}, &RateLimitError{Provider: "gemini"}
		}
		return rawResult{}, fmt.Errorf("generate content: %w", err)
	}

	content := stripCodeFences(resp.Text())
	if content == "" {
		return rawResult{}, fmt.Errorf("empty response")
	}

	var result rawResult
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return rawResult{}, fmt.Errorf("parse verdict %q: %w", truncate(content, 120), err)
	}

	logging.APIDebug("gemini classified %q as %s (%.0f%%)", id.Name, result.Category, result.Confidence*100)
	return result, nil
}
