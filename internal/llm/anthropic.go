package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const anthropicVersion = "2023-06-01"

// AnthropicClient speaks the Anthropic Messages API.
type AnthropicClient struct {
	endpoint
}

type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	System      string    `json:"system,omitempty"`
	Messages    []chatMsg `json:"messages"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type messagesResponse struct {
	Model      string         `json:"model"`
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Complete posts one user message and returns the text of the first content
// block. A reply whose first block is not text is ErrUnexpectedShape.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (Response, error) {
	c.logPrompt(req)
	payload := messagesRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		System:      req.System,
		Messages:    []chatMsg{{Role: "user", Content: req.User}},
	}
	header := http.Header{}
	header.Set("x-api-key", c.apiKey)
	header.Set("anthropic-version", anthropicVersion)

	raw, err := c.post(ctx, "/v1/messages", header, payload)
	if err != nil {
		return Response{}, err
	}

	var msg messagesResponse
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Response{}, fmt.Errorf("%w: unmarshal response: %v", ErrUnexpectedShape, err)
	}

	if len(msg.Content) == 0 || msg.Content[0].Type != "text" {
		kinds := make([]string, 0, len(msg.Content))
		for _, b := range msg.Content {
			kinds = append(kinds, b.Type)
		}
		return Response{}, fmt.Errorf("%w: first content block is not text, content types [%s]", ErrUnexpectedShape, strings.Join(kinds, ", "))
	}

	out := Response{
		Text:       msg.Content[0].Text,
		StopReason: msg.StopReason,
		Model:      msg.Model,
		Usage: Usage{
			InputTokens:  msg.Usage.InputTokens,
			OutputTokens: msg.Usage.OutputTokens,
		},
	}
	if out.Model == "" {
		out.Model = req.Model
	}
	c.logResponse(out)
	return out, nil
}
