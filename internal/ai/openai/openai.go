package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client talks to the OpenAI completion APIs. Chat models go through
// /v1/chat/completions, legacy models through /v1/completions.
type Client struct {
	apiKey       string
	baseURL      string
	model        string
	systemPrompt string
	http         *http.Client
}

func New(apiKey, baseURL, model, systemPrompt string) *Client {
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	if model == "" {
		model = "gpt-3.5-turbo"
	}
	return &Client{
		apiKey:       apiKey,
		baseURL:      strings.TrimRight(baseURL, "/"),
		model:        model,
		systemPrompt: systemPrompt,
		http:         &http.Client{Timeout: 20 * time.Second},
	}
}

func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", errors.New("missing OPENAI_API_KEY")
	}
	if strings.Contains(c.model, "gpt") {
		return c.chatComplete(ctx, prompt)
	}
	return c.textComplete(ctx, prompt)
}

func (c *Client) chatComplete(ctx context.Context, prompt string) (string, error) {
	messages := []map[string]string{}
	if c.systemPrompt != "" {
		messages = append(messages, map[string]string{"role": "system", "content": c.systemPrompt})
	}
	messages = append(messages, map[string]string{"role": "user", "content": prompt})
	payload := map[string]any{
		"model":       c.model,
		"messages":    messages,
		"temperature": 0.8,
		"max_tokens":  200,
	}
	b, _ := json.Marshal(payload)
	req, _ := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/chat/completions", bytes.NewReader(b))
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("openai status %d", resp.StatusCode)
	}
	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", errors.New("no choices")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

func (c *Client) textComplete(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"model":       c.model,
		"prompt":      prompt,
		"temperature": 0.8,
		"max_tokens":  200,
	}
	b, _ := json.Marshal(payload)
	req, _ := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/completions", bytes.NewReader(b))
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("openai status %d", resp.StatusCode)
	}
	var out struct {
		Choices []struct {
			Text string `json:"text"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", errors.New("no choices")
	}
	return strings.TrimSpace(out.Choices[0].Text), nil
}
