package narrative

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ChatGenerator talks to an OpenAI-compatible /chat/completions endpoint
// with a bearer credential.
type ChatGenerator struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

func NewChatGenerator(apiKey, baseURL, model string) *ChatGenerator {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &ChatGenerator{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content json.RawMessage `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (c *ChatGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", ErrOffline
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("generator returned status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var out chatResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("API error: %s (%s)", out.Error.Message, out.Error.Type)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("no choices in response")
	}
	return messageText(out.Choices[0].Message.Content)
}

// messageText accepts content as a plain string or as an array whose first
// element is a string or a {"text": ...} part.
func messageText(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", errors.New("empty message content")
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if strings.TrimSpace(s) == "" {
			return "", errors.New("empty message content")
		}
		return s, nil
	}

	var parts []json.RawMessage
	if err := json.Unmarshal(raw, &parts); err != nil || len(parts) == 0 {
		return "", errors.New("unsupported message content format")
	}
	if err := json.Unmarshal(parts[0], &s); err == nil {
		return s, nil
	}
	var part struct {
		Text *string `json:"text"`
	}
	if err := json.Unmarshal(parts[0], &part); err == nil && part.Text != nil {
		return *part.Text, nil
	}
	return "", errors.New("unsupported message content format")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
