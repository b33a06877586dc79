package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"cookiesentinel/internal/logging"
)

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint.
// Groq exposes one, so this client serves both the groq and openai
// providers.
type OpenAIClient struct {
	apiKey      string
	baseURL     string
	model       string
	provider    string
	httpClient  *http.Client
	mu          sync.Mutex
	lastRequest time.Time
}

// OpenAIConfig configures an OpenAIClient.
type OpenAIConfig struct {
	APIKey   string
	BaseURL  string
	Model    string
	Provider string
	Timeout  time.Duration
}

// NewOpenAIClient creates a client for an OpenAI-compatible endpoint.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.groq.com/openai/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "llama-3.1-8b-instant"
	}
	if cfg.Provider == "" {
		cfg.Provider = "groq"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &OpenAIClient{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		provider:   cfg.Provider,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Name returns the provider name.
func (c *OpenAIClient) Name() string { return c.provider }

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Classify sends one identifier to the endpoint and parses the JSON verdict.
func (c *OpenAIClient) Classify(ctx context.Context, id Identifier) (rawResult, error) {
	if c.apiKey == "" {
		return rawResult{}, fmt.Errorf("API key not configured")
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	// Space requests out even when callers fan in.
	c.mu.Lock()
	elapsed := time.Since(c.lastRequest)
	if elapsed < 100*time.Millisecond {
		time.Sleep(100*time.Millisecond - elapsed)
	}
	c.lastRequest = time.Now()
	c.mu.Unlock()

	reqBody := openAIRequest{
		Model:       c.model,
		Messages:    []openAIMessage{{Role: "user", Content: classifyPrompt(id)}},
		Temperature: 0.1,
		MaxTokens:   150,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return rawResult{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return rawResult{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return rawResult{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return rawResult{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return rawResult{}, &RateLimitError{Provider: c.provider}
	}
	if resp.StatusCode != http.StatusOK {
		logging.APIError("%s returned %d: %s", c.provider, resp.StatusCode, truncate(string(body), 200))
		return rawResult{}, fmt.Errorf("API error: %d", resp.StatusCode)
	}

	var parsed openAIResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return rawResult{}, fmt.Errorf("parse response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return rawResult{}, fmt.Errorf("empty response")
	}

	content := stripCodeFences(parsed.Choices[0].Message.Content)

	var result rawResult
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return rawResult{}, fmt.Errorf("parse verdict %q: %w", truncate(content, 120), err)
	}

	logging.APIDebug("%s classified %q as %s (%.0f%%)", c.provider, id.Name, result.Category, result.Confidence*100)
	return result, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
