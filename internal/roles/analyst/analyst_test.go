package analyst

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

func TestRender_EmbedsGrantTextAndSchema(t *testing.T) {
	// The grant text appears verbatim under GRANT TEXT, followed by the schema
	got := Render(Input{GrantText: "Call: HPC for SMEs\nBudget: 200k EUR"}, "ignored")
	if !strings.Contains(got, "GRANT TEXT:\nCall: HPC for SMEs\nBudget: 200k EUR\n") {
		t.Errorf("grant text missing: %q", got)
	}
	if !strings.Contains(got, `"evaluationCriteria"`) {
		t.Error("schema missing")
	}
	if strings.Contains(got, "ignored") {
		t.Error("analysis prompt must not carry memory")
	}
}

func TestExecute_NormalizesAnalysis(t *testing.T) {
	// Decoded analyses carry empty lists instead of nil
	model := llmtest.New(llmtest.JSON(map[string]any{
		"grantTitle": "FFplus Call 2",
		"summary":    "Supports SMEs adopting HPC.",
		"requirements": []map[string]any{
			{"category": "eligibility", "description": "SME", "mandatory": true},
		},
	}))
	res := New(model, stage.DefaultSettings(types.StageAnalysis), nil).Execute(context.Background(), Input{GrantText: "x"})
	if !res.OK() {
		t.Fatalf("unexpected failure: %v", res.Err())
	}
	g := res.Data()
	if g.GrantTitle != "FFplus Call 2" || len(g.MandatoryRequirements()) != 1 {
		t.Errorf("got %+v", g)
	}
	if g.Objectives == nil || g.Budget.Categories == nil || g.KeyThemes == nil {
		t.Error("expected normalized slices")
	}
	if model.Requests[0].Model != "claude-sonnet-4-5" || model.Requests[0].MaxTokens != 8192 {
		t.Errorf("settings: got %+v", model.Requests[0])
	}
}

func TestExecute_EmptyAnalysisFailsValidation(t *testing.T) {
	// An analysis with neither a title nor a summary is a validation failure
	res := New(llmtest.New(llmtest.JSON(map[string]any{})), stage.DefaultSettings(types.StageAnalysis), nil).
		Execute(context.Background(), Input{GrantText: "x"})
	if !errors.Is(res.Err(), llm.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", res.Err())
	}
	if res.Failure().Code != stage.CodeGrantAnalysis {
		t.Errorf("code: got %s", res.Failure().Code)
	}
}
