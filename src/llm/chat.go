package llm

import (
	"context"
	"errors"
	"fmt"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ResponseFormat struct {
	Type string `json:"type"`
}

type ChatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// ErrEmptyCompletion means the API answered without any choice content.
var ErrEmptyCompletion = errors.New("no choices in API response")

// Chat runs a chat completion and returns the first choice's content.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (string, error) {
	if req.Model == "" {
		return "", errors.New("model is required")
	}

	var out chatResponse
	if err := c.postJSON(ctx, "/v1/chat/completions", req, &out); err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return "", ErrEmptyCompletion
	}
	return out.Choices[0].Message.Content, nil
}

// ChatJSON is Chat with the JSON-object response format.
func (c *Client) ChatJSON(ctx context.Context, model, prompt string) (string, error) {
	return c.Chat(ctx, ChatRequest{
		Model:          model,
		Messages:       []Message{{Role: "user", Content: prompt}},
		ResponseFormat: &ResponseFormat{Type: "json_object"},
	})
}
