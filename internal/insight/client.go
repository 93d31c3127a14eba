package insight

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxCompletionResponseBytes = 4 << 20

// ErrNoCredential is returned before any network call when the completion
// API key is not configured.
var ErrNoCredential = errors.New("completion API key not configured")

// ClientConfig configures the completion client.
type ClientConfig struct {
	APIKey   string
	Model    string
	Endpoint string
}

func (c *ClientConfig) defaults() {
	if c.Model == "" {
		c.Model = "claude-3-5-sonnet-20241022"
	}
	if c.Endpoint == "" {
		c.Endpoint = "https://api.anthropic.com/v1/messages"
	}
}

// Client calls the Anthropic messages API and returns the first generated
// text block verbatim. No streaming, no retries, no conversation memory.
type Client struct {
	config ClientConfig
	client *http.Client
}

// NewClient builds a completion client around a shared HTTP client.
func NewClient(cfg ClientConfig, client *http.Client) *Client {
	cfg.defaults()
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{config: cfg, client: client}
}

type completionRequest struct {
	Model     string              `json:"model"`
	MaxTokens int                 `json:"max_tokens"`
	System    string              `json:"system,omitempty"`
	Messages  []completionMessage `json:"messages"`
}

type completionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends one user message with an optional system prompt and a
// bounded output-token budget.
func (c *Client) Complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	if c.config.APIKey == "" {
		return "", ErrNoCredential
	}

	payload := completionRequest{
		Model:     c.config.Model,
		MaxTokens: maxTokens,
		System:    system,
		Messages:  []completionMessage{{Role: "user", Content: user}},
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(buf))
	if err != nil {
		return "", fmt.Errorf("create completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.config.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxCompletionResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read completion response: %w", err)
	}

	var parsed completionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode completion response (status %d)", resp.StatusCode)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		msg := strings.TrimSpace(string(raw))
		if parsed.Error != nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		return "", fmt.Errorf("completion failed (status %d): %s", resp.StatusCode, msg)
	}

	for _, block := range parsed.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", errors.New("completion response contained no text")
}
