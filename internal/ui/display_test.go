package ui

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/haricheung/grantflow/internal/types"
)

// --- stageLine ---

func TestStageLine_Success(t *testing.T) {
	// Finished stages show label, iteration, model, duration and total tokens
	got := stageLine(types.StageEvent{
		Stage: types.StageWriting, Iteration: 2, Model: "claude-opus-4-1", Success: true,
		DurationMs: 12340, InputTokens: 1000, OutputTokens: 500,
	})
	for _, want := range []string{"✓", "WRITING", "#2", "claude-opus-4-1", "12.3s", "1500 tok"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in %q", want, got)
		}
	}
}

func TestStageLine_FailureShowsCode(t *testing.T) {
	// Failed stages show the error code and a clipped message
	got := stageLine(types.StageEvent{
		Stage: types.StageReview, Code: "REVIEW_ERROR", Error: strings.Repeat("x", 200),
	})
	if !strings.Contains(got, "✗") || !strings.Contains(got, "REVIEW_ERROR: ") {
		t.Errorf("got %q", got)
	}
	if !strings.Contains(got, "…") {
		t.Errorf("expected clipped error, got %q", got)
	}
}

// --- verdictLine ---

func TestVerdictLine(t *testing.T) {
	// Verdicts show pct, raw score, readiness and gate outcome
	got := verdictLine(types.IterationVerdict{Iteration: 1, OverallScore: 71, MaxScore: 100, ScorePct: 71})
	if !strings.Contains(got, "71% (71/100)") || !strings.Contains(got, "ready: no") || !strings.Contains(got, "gate: no") {
		t.Errorf("got %q", got)
	}
	got = verdictLine(types.IterationVerdict{OverallScore: 70, MaxScore: 100, ScorePct: 70, ReadyToSubmit: true, GatePassed: true})
	if !strings.Contains(got, "gate: passed") {
		t.Errorf("got %q", got)
	}
}

// --- clip ---

func TestClip_WideRunes(t *testing.T) {
	// Width is measured in display columns, not bytes or runes
	if got := clip("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	got := clip("资助申请资助申请", 9)
	if !strings.HasSuffix(got, "…") || len([]rune(got)) != 5 {
		t.Errorf("got %q", got)
	}
}

// --- payload ---

func TestPayload_AcceptsValueOrMap(t *testing.T) {
	// Typed payloads and their JSON map forms decode the same
	typed := types.Message{Payload: types.RunEnd{State: types.StateDone, Iterations: 2}}
	asMap := types.Message{Payload: map[string]any{"state": "DONE", "iterations": 2}}
	a, okA := payload[types.RunEnd](typed)
	b, okB := payload[types.RunEnd](asMap)
	if !okA || !okB || a != b {
		t.Errorf("got %+v/%v and %+v/%v", a, okA, b, okB)
	}
}

// --- Run ---

func TestRun_DrainsOnCancelAndClosesBox(t *testing.T) {
	// Messages published before cancellation are still rendered, and the box is closed
	tap := make(chan types.Message, 8)
	var out bytes.Buffer
	d := New(tap, &out)

	tap <- types.Message{Type: types.MsgRunBegin, Payload: types.RunBegin{Namespace: "ffplus"}}
	tap <- types.Message{Type: types.MsgStageEnd, Payload: types.StageEvent{Stage: types.StageAnalysis, Success: true}}
	tap <- types.Message{Type: types.MsgRunEnd, Payload: types.RunEnd{State: types.StateDone}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Run(ctx)
	<-d.Done()

	got := out.String()
	for _, want := range []string{"grantflow · ffplus", "ANALYSIS", "└───", "✅"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in %q", want, got)
		}
	}
}
