// Package chat proxies chat completions to the Mistral API and carries the
// owner-scoped conversation and message pass-through endpoints.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/clarity-ai/backend/internal/config"
	"github.com/clarity-ai/backend/internal/utils"
	"golang.org/x/oauth2"
)

const systemPrompt = `You are Clarity AI, a helpful, knowledgeable, and intelligent AI assistant. Structure your responses clearly using markdown:
- Use **bold** for key terms and important points
- Use bullet lists (- item) or numbered lists (1. item) to organize information
- Use ` + "`inline code`" + ` for commands, variables, or short code snippets
- Use fenced code blocks with language names for multi-line code (e.g. ` + "```python" + `)
- Use ## for main section headers and ### for subsections when the response is long
- Use > blockquotes for important callouts or quotes
- Keep responses concise, clear, and well-structured
- Be friendly, professional, and accurate`

// Turn is one prior exchange in the conversation history.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completer is the client for the completion API. It holds no conversation
// state; history travels with each request.
type Completer struct {
	cfg  config.MistralConfig
	http *http.Client
}

func NewCompleter(cfg *config.MistralConfig) *Completer {
	return &Completer{
		cfg: *cfg,
		http: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Configured reports whether an API key is present.
func (c *Completer) Configured() bool {
	return c.cfg.APIKey != ""
}

// client attaches the API key as a bearer token.
func (c *Completer) client(ctx context.Context) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: c.cfg.APIKey,
		TokenType:   "Bearer",
	}))
}

// Complete sends the system prompt, the prior history, and the new user
// message, and returns the assistant's reply. Upstream failures keep their
// status so the handler can propagate it.
func (c *Completer) Complete(ctx context.Context, message string, history []Turn) (string, error) {
	messages := make([]Turn, 0, len(history)+2)
	messages = append(messages, Turn{Role: "system", Content: systemPrompt})
	messages = append(messages, history...)
	messages = append(messages, Turn{Role: "user", Content: message})

	payload := map[string]interface{}{
		"model":       c.cfg.Model,
		"messages":    messages,
		"temperature": 0.7,
		"max_tokens":  2048,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client(ctx).Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 400 {
		var upstream struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&upstream)
		if upstream.Message == "" {
			upstream.Message = fmt.Sprintf("Mistral API error (%d)", resp.StatusCode)
		}
		return "", utils.Upstream(resp.StatusCode, upstream.Message, nil)
	}

	var result struct {
		Choices []struct {
			Message Turn `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode completion: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}
	return result.Choices[0].Message.Content, nil
}
