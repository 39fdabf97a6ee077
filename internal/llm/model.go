package llm

import "context"

// Request is one single-turn model invocation: a system instruction and one
// user message. There is no streaming and no conversation state.
type Request struct {
	Model       string
	MaxTokens   int
	Temperature float64
	System      string
	User        string
}

// Usage reports token consumption for one call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Total returns input + output tokens.
func (u Usage) Total() int { return u.InputTokens + u.OutputTokens }

// Response is the generated text plus the accounting the provider reports.
type Response struct {
	Text       string
	Usage      Usage
	StopReason string
	Model      string // model id echoed by the provider; may differ from the requested alias
}

// Model is a hosted language model. Implementations must honor ctx.
type Model interface {
	Complete(ctx context.Context, req Request) (Response, error)
}
