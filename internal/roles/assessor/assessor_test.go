package assessor

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

func input() Input {
	return Input{
		Analysis:     types.GrantAnalysis{GrantTitle: "FFplus Call 2"},
		Organization: types.OrganizationProfile{Name: "Acme Labs", Country: "UA"},
	}
}

func TestRender_EmbedsBothArtifactsAsJSON(t *testing.T) {
	// Analysis and organization are embedded as indented JSON; memory only when non-empty
	got := Render(input(), "")
	if !strings.Contains(got, "GRANT ANALYSIS:\n{\n  \"grantTitle\": \"FFplus Call 2\"") {
		t.Errorf("analysis missing: %q", got)
	}
	if !strings.Contains(got, "\"name\": \"Acme Labs\"") {
		t.Error("organization missing")
	}
	if strings.Contains(got, "PREVIOUS RUN HISTORY") {
		t.Error("unexpected memory section")
	}
	if !strings.Contains(Render(input(), "Run 1 ..."), "=== PREVIOUS RUN HISTORY ===\nRun 1 ...") {
		t.Error("memory section missing")
	}
}

func TestExecute_RecordsChanceAndSeriousGaps(t *testing.T) {
	// The record carries overallChance/100 and critical or major gaps as feedback
	rec := &captured{}
	model := llmtest.New(llmtest.JSON(types.FeasibilityEvaluation{
		OverallChance:  62,
		Recommendation: types.RecRecommended,
		Gaps: []types.Gap{
			{Type: types.GapType("team"), Description: "no HPC engineer", Severity: types.SeverityMajor},
			{Type: types.GapType("administrative"), Description: "PIC pending", Severity: types.SeverityMinor},
		},
	}))
	res := New(model, stage.DefaultSettings(types.StageFeasibility), nil, stage.WithRecorder(rec)).
		Execute(context.Background(), input())
	if !res.OK() {
		t.Fatalf("unexpected failure: %v", res.Err())
	}
	if len(rec.recs) != 1 {
		t.Fatalf("expected one record, got %d", len(rec.recs))
	}
	r := rec.recs[0]
	if r.Score == nil || *r.Score != 62 || *r.MaxScore != 100 {
		t.Errorf("score: got %v/%v", r.Score, r.MaxScore)
	}
	if r.Summary != "Feasibility: 62%, recommended" || r.Topic != "FFplus Call 2" {
		t.Errorf("summary/topic: got %q / %q", r.Summary, r.Topic)
	}
	if len(r.Feedback) != 1 || r.Feedback[0] != "[team] no HPC engineer" {
		t.Errorf("feedback: got %v", r.Feedback)
	}
}

func TestExecute_ChanceOutOfRangeFailsValidation(t *testing.T) {
	// overallChance outside 0-100 is rejected with the feasibility code
	res := New(llmtest.New(llmtest.JSON(map[string]any{"overallChance": 140})),
		stage.DefaultSettings(types.StageFeasibility), nil).Execute(context.Background(), input())
	if !errors.Is(res.Err(), llm.ErrValidation) || res.Failure().Code != stage.CodeFeasibility {
		t.Fatalf("got %v", res.Err())
	}
}
