package reviewer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/haricheung/grantflow/internal/llm"
	"github.com/haricheung/grantflow/internal/llm/llmtest"
	"github.com/haricheung/grantflow/internal/stage"
	"github.com/haricheung/grantflow/internal/types"
)

type captured struct{ recs []types.StageRunRecord }

func (c *captured) Record(_ context.Context, r types.StageRunRecord) error {
	c.recs = append(c.recs, r)
	return nil
}

type staticMemory struct{ topic string }

func (m *staticMemory) Digest(_ context.Context, _ types.Stage, topic string) (string, error) {
	m.topic = topic
	return "Run 1 (2026-05-01): review - SUCCESS", nil
}

func input() Input {
	return Input{
		Analysis: types.GrantAnalysis{GrantTitle: "FFplus Call 2"},
		Proposal: types.ScientificProposal{Abstract: "We will port the solver to GPUs."},
	}
}

func TestExecute_UsesMemoryKeyedByGrantTitle(t *testing.T) {
	// The digest is fetched for the grant title and injected into the prompt
	mem := &staticMemory{}
	model := llmtest.New(llmtest.JSON(types.ReviewReport{OverallScore: 60, MaxScore: 100}))
	res := New(model, stage.DefaultSettings(types.StageReview), nil, stage.WithMemory(mem)).
		Execute(context.Background(), input())
	if !res.OK() {
		t.Fatalf("unexpected failure: %v", res.Err())
	}
	if mem.topic != "FFplus Call 2" {
		t.Errorf("digest topic: got %q", mem.topic)
	}
	if !strings.Contains(model.Requests[0].User, "=== PREVIOUS RUN HISTORY ===\nRun 1 (2026-05-01)") {
		t.Error("memory not injected")
	}
}

func TestExecute_RecordsScoreVerdictAndFeedback(t *testing.T) {
	// Summary is "Review: a/b, readyToSubmit: x"; feedback lists serious weaknesses then up to 5 missing elements
	rec := &captured{}
	report := types.ReviewReport{
		OverallScore: 72, MaxScore: 100, ReadyToSubmit: true,
		Weaknesses: []types.ReviewIssue{
			{Section: "Impact", Issue: "no KPIs", Severity: types.SeverityMajor},
			{Section: "Format", Issue: "typos", Severity: types.SeverityMinor},
		},
		MissingElements: []string{"m1", "m2", "m3", "m4", "m5", "m6"},
	}
	res := New(llmtest.New(llmtest.JSON(report)), stage.DefaultSettings(types.StageReview), nil, stage.WithRecorder(rec)).
		Execute(context.Background(), input())
	if !res.OK() {
		t.Fatalf("unexpected failure: %v", res.Err())
	}
	r := rec.recs[0]
	if r.Summary != "Review: 72/100, readyToSubmit: true" {
		t.Errorf("summary: got %q", r.Summary)
	}
	want := []string{"[Impact] no KPIs", "m1", "m2", "m3", "m4", "m5"}
	if strings.Join(r.Feedback, "|") != strings.Join(want, "|") {
		t.Errorf("feedback: got %v, want %v", r.Feedback, want)
	}
	if *r.Score != 72 || *r.MaxScore != 100 {
		t.Errorf("score: got %v/%v", *r.Score, *r.MaxScore)
	}
}

func TestCheck_CriticalWeaknessForcesNotReady(t *testing.T) {
	// A report with a critical weakness is never ready to submit
	r := &types.ReviewReport{OverallScore: 90, MaxScore: 100, ReadyToSubmit: true,
		Weaknesses: []types.ReviewIssue{{Severity: types.SeverityCritical}}}
	if err := Check(r); err != nil {
		t.Fatal(err)
	}
	if r.ReadyToSubmit {
		t.Error("expected readyToSubmit forced to false")
	}
}

func TestExecute_ScoreAboveMaxFailsValidation(t *testing.T) {
	// overallScore above maxScore is a REVIEW_ERROR validation failure
	res := New(llmtest.New(llmtest.JSON(types.ReviewReport{OverallScore: 120, MaxScore: 100})),
		stage.DefaultSettings(types.StageReview), nil).Execute(context.Background(), input())
	if !errors.Is(res.Err(), llm.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", res.Err())
	}
	if res.Failure().Code != stage.CodeReview {
		t.Errorf("code: got %s", res.Failure().Code)
	}
}
