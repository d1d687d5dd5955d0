package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client talks to a local Ollama instance via its chat endpoint.
type Client struct {
	host         string
	model        string
	systemPrompt string
	http         *http.Client
}

func New(host, model, systemPrompt string) *Client {
	if host == "" {
		host = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3"
	}
	return &Client{
		host:         strings.TrimRight(host, "/"),
		model:        model,
		systemPrompt: systemPrompt,
		http:         &http.Client{Timeout: 20 * time.Second},
	}
}

func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	messages := []map[string]string{}
	if c.systemPrompt != "" {
		messages = append(messages, map[string]string{"role": "system", "content": c.systemPrompt})
	}
	messages = append(messages, map[string]string{"role": "user", "content": prompt})
	payload := map[string]any{
		"model":    c.model,
		"messages": messages,
		"stream":   false,
	}
	b, _ := json.Marshal(payload)
	req, _ := http.NewRequestWithContext(ctx, "POST", c.host+"/api/chat", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("ollama status %d", resp.StatusCode)
	}
	var out struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Message.Content), nil
}
