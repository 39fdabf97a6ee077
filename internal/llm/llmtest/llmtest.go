// Package llmtest provides an in-memory llm.Model for tests.
package llmtest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/haricheung/grantflow/internal/llm"
)

// Reply is one scripted outcome.
type Reply struct {
	Text       string
	Err        error
	StopReason string
	Usage      llm.Usage
}

// JSON returns a Reply whose text is v wrapped in a ```json fence.
func JSON(v any) Reply {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		panic(err)
	}
	return Reply{
		Text:       "```json\n" + string(b) + "\n```",
		StopReason: "end_turn",
		Usage:      llm.Usage{InputTokens: 100, OutputTokens: 50},
	}
}

// Model replays Replies in order, or calls Func when set.
type Model struct {
	mu       sync.Mutex
	replies  []Reply
	Func     func(req llm.Request) Reply
	Requests []llm.Request
}

// New returns a Model that answers with replies in order.
func New(replies ...Reply) *Model {
	return &Model{replies: replies}
}

// Complete records req and returns the next scripted reply.
func (m *Model) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	var r Reply
	switch {
	case m.Func != nil:
		m.mu.Unlock()
		r = m.Func(req)
	case len(m.replies) > 0:
		r = m.replies[0]
		m.replies = m.replies[1:]
		m.mu.Unlock()
	default:
		m.mu.Unlock()
		return llm.Response{}, fmt.Errorf("llmtest: no reply scripted for call %d", len(m.Requests))
	}
	if err := ctx.Err(); err != nil {
		return llm.Response{}, &llm.TransportError{Err: err}
	}
	if r.Err != nil {
		return llm.Response{}, r.Err
	}
	return llm.Response{Text: r.Text, Usage: r.Usage, StopReason: r.StopReason, Model: req.Model}, nil
}

// Calls returns how many requests were made.
func (m *Model) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}
