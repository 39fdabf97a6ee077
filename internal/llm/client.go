package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

// Provider selects the wire protocol spoken to the model endpoint.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
)

const (
	defaultAnthropicURL = "https://api.anthropic.com"
	defaultOpenAIURL    = "https://api.openai.com/v1"
	defaultTimeout      = 10 * time.Minute
)

// Config describes how to reach one provider endpoint.
type Config struct {
	Provider Provider
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
	Label    string // log prefix, e.g. "LLM" or "REVIEW"
}

// envPrefix returns the shared environment prefix for p.
func (p Provider) envPrefix() string {
	if p == ProviderOpenAI {
		return "OPENAI"
	}
	return "ANTHROPIC"
}

// ConfigFromEnv builds a Config for provider p. For each key it first tries
// {prefix}_{KEY}; if unset it falls back to the provider's shared variable.
//
// Example, provider anthropic and prefix "REVIEW":
//
//	REVIEW_API_KEY   → ANTHROPIC_API_KEY
//	REVIEW_BASE_URL  → ANTHROPIC_BASE_URL
//
// Expectations:
//   - Uses {prefix}_API_KEY / _BASE_URL when set and non-empty
//   - Falls back to ANTHROPIC_* or OPENAI_* for any unset tier-specific var
//   - Empty prefix reads only the shared vars and labels the config "LLM"
//   - Unknown providers resolve as anthropic
func ConfigFromEnv(p Provider, prefix string) Config {
	if p != ProviderOpenAI {
		p = ProviderAnthropic
	}
	shared := p.envPrefix()
	get := func(suffix string) string {
		if prefix != "" {
			if v := os.Getenv(prefix + "_" + suffix); v != "" {
				return v
			}
		}
		return os.Getenv(shared + "_" + suffix)
	}
	label := prefix
	if label == "" {
		label = "LLM"
	}
	return Config{
		Provider: p,
		BaseURL:  get("BASE_URL"),
		APIKey:   get("API_KEY"),
		Label:    label,
	}
}

// Validate reports missing settings that would make every call fail.
//
// Expectations:
//   - Returns nil when the API key is set (base URL has a provider default)
//   - Names the label and every missing field, comma-separated
//   - Rejects unknown providers
//   - Wraps ErrMissingCredentials
func (c Config) Validate() error {
	var missing []string
	switch c.Provider {
	case ProviderAnthropic, ProviderOpenAI:
	default:
		missing = append(missing, fmt.Sprintf("provider (got %q)", c.Provider))
	}
	if c.APIKey == "" {
		missing = append(missing, "API key")
	}
	if len(missing) == 0 {
		return nil
	}
	label := c.Label
	if label == "" {
		label = "LLM"
	}
	return fmt.Errorf("%w [%s]: missing %s", ErrMissingCredentials, label, strings.Join(missing, ", "))
}

// New returns the Model for cfg.Provider after validating cfg.
func New(cfg Config, logger *slog.Logger) (Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Label == "" {
		cfg.Label = "LLM"
	}
	ep := endpoint{
		apiKey:     cfg.APIKey,
		label:      cfg.Label,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
	switch cfg.Provider {
	case ProviderOpenAI:
		ep.baseURL = normalizeBaseURL(cfg.BaseURL)
		if ep.baseURL == "" {
			ep.baseURL = defaultOpenAIURL
		}
		return &OpenAIClient{endpoint: ep}, nil
	default:
		ep.baseURL = strings.TrimRight(cfg.BaseURL, "/")
		if ep.baseURL == "" {
			ep.baseURL = defaultAnthropicURL
		}
		return &AnthropicClient{endpoint: ep}, nil
	}
}

// normalizeBaseURL strips trailing slashes and the "/chat/completions" suffix
// from a raw OPENAI_BASE_URL value so the path is never doubled when the
// client appends "/chat/completions" itself.
//
// Expectations:
//   - Strips a trailing "/chat/completions" suffix
//   - Strips a trailing slash without "/chat/completions"
//   - Strips trailing slash AND "/chat/completions" when both are present
//   - Returns the URL unchanged when neither suffix is present
//   - Returns "" for empty input
func normalizeBaseURL(raw string) string {
	s := strings.TrimRight(raw, "/")
	return strings.TrimSuffix(s, "/chat/completions")
}

// endpoint is the HTTP plumbing shared by both providers.
type endpoint struct {
	baseURL    string
	apiKey     string
	label      string
	httpClient *http.Client
	logger     *slog.Logger
}

// post sends payload as JSON and returns the body of a 200 response.
// Every failure is a *TransportError.
func (e endpoint) post(ctx context.Context, path string, header http.Header, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("llm: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("llm: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{Status: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}

func (e endpoint) logPrompt(req Request) {
	e.logger.Debug(fmt.Sprintf("[%s] prompt", e.label),
		"model", req.Model, "system", req.System, "user", req.User)
}

func (e endpoint) logResponse(resp Response) {
	e.logger.Debug(fmt.Sprintf("[%s] response", e.label),
		"model", resp.Model, "input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens, "stop_reason", resp.StopReason,
		"text", resp.Text)
}

// OpenAIClient speaks the OpenAI-compatible chat/completions protocol.
type OpenAIClient struct {
	endpoint
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []chatMsg `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
}

type chatMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends a system + user prompt and returns the assistant's text.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (Response, error) {
	c.logPrompt(req)
	payload := chatRequest{
		Model: req.Model,
		Messages: []chatMsg{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.apiKey)

	raw, err := c.post(ctx, "/chat/completions", header, payload)
	if err != nil {
		return Response{}, err
	}

	var chatResp chatResponse
	if err := json.Unmarshal(raw, &chatResp); err != nil {
		return Response{}, fmt.Errorf("%w: unmarshal response: %v", ErrUnexpectedShape, err)
	}
	if chatResp.Error != nil {
		return Response{}, &TransportError{Status: http.StatusOK, Body: chatResp.Error.Message}
	}
	if len(chatResp.Choices) == 0 || chatResp.Choices[0].Message.Content == nil {
		return Response{}, fmt.Errorf("%w: no text choice in response", ErrUnexpectedShape)
	}

	out := Response{
		Text:       *chatResp.Choices[0].Message.Content,
		StopReason: chatResp.Choices[0].FinishReason,
		Model:      chatResp.Model,
		Usage: Usage{
			InputTokens:  chatResp.Usage.PromptTokens,
			OutputTokens: chatResp.Usage.CompletionTokens,
		},
	}
	if out.Model == "" {
		out.Model = req.Model
	}
	c.logResponse(out)
	return out, nil
}
