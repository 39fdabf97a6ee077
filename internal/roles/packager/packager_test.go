package packager

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/haricheung/grantflow/internal/llm"
	"github.com/haricheung/grantflow/internal/llm/llmtest"
	"github.com/haricheung/grantflow/internal/stage"
	"github.com/haricheung/grantflow/internal/types"
)

func input() Input {
	return Input{
		Analysis: types.GrantAnalysis{GrantTitle: "FFplus Call 2"},
		Proposal: types.ScientificProposal{Abstract: "a"},
		Review:   types.ReviewReport{OverallScore: 75, MaxScore: 100, ReadyToSubmit: true},
	}
}

func TestRender_EmbedsAllFourArtifacts(t *testing.T) {
	// Analysis, organization, proposal and review all appear in the prompt
	got := Render(input(), "")
	for _, title := range []string{"GRANT ANALYSIS:", "ORGANIZATION INFORMATION:", "SCIENTIFIC PROPOSAL:", "REVIEW RESULTS:"} {
		if !strings.Contains(got, title) {
			t.Errorf("missing %s", title)
		}
	}
	if !strings.Contains(got, "\"overallScore\": 75") {
		t.Error("review not embedded")
	}
}

func TestExecute_FillsMissingIdentity(t *testing.T) {
	// Missing packageId gets a fresh UUID; missing grantTitle falls back to the analysis title
	model := llmtest.New(llmtest.JSON(map[string]any{
		"generatedDocuments": []map[string]any{{"type": "cover_letter", "filename": "cover.md", "content": "Dear"}},
	}))
	s := New(model, stage.DefaultSettings(types.StagePackage), nil)
	s.now = func() time.Time { return time.Date(2026, 5, 1, 9, 30, 0, 0, time.FixedZone("EEST", 3*3600)) }

	res := s.Execute(context.Background(), input())
	if !res.OK() {
		t.Fatalf("unexpected failure: %v", res.Err())
	}
	p := res.Data()
	if _, err := uuid.Parse(p.PackageID); err != nil {
		t.Errorf("packageId %q is not a UUID", p.PackageID)
	}
	if p.GrantTitle != "FFplus Call 2" {
		t.Errorf("grantTitle: got %q", p.GrantTitle)
	}
	if p.CreatedAt != "2026-05-01T06:30:00Z" {
		t.Errorf("createdAt: got %q", p.CreatedAt)
	}
	d := p.GeneratedDocuments[0]
	if d.Format != types.FormatMarkdown || d.Status != types.DocGenerated {
		t.Errorf("document defaults: got %+v", d)
	}
	if p.QualityChecks == nil || p.NextSteps == nil {
		t.Error("expected normalized slices")
	}
}

func TestExecute_KeepsModelSuppliedIdentity(t *testing.T) {
	// A model-supplied packageId is kept
	model := llmtest.New(llmtest.JSON(types.ApplicationPackage{PackageID: "pkg-1", GrantTitle: "T", CreatedAt: "2026-01-01T00:00:00Z"}))
	p := New(model, stage.DefaultSettings(types.StagePackage), nil).Execute(context.Background(), input()).Data()
	if p.PackageID != "pkg-1" || p.GrantTitle != "T" || p.CreatedAt != "2026-01-01T00:00:00Z" {
		t.Errorf("got %+v", p)
	}
}

func TestExecute_FailurePassesThrough(t *testing.T) {
	// Failures pass through unchanged with the package code
	res := New(llmtest.New(llmtest.Reply{Err: &llm.TransportError{Status: 503}}), stage.DefaultSettings(types.StagePackage), nil).
		Execute(context.Background(), input())
	if res.OK() || res.Failure().Code != stage.CodePackage {
		t.Fatalf("got ok=%v err=%v", res.OK(), res.Err())
	}
	if res.Data().PackageID != "" {
		t.Error("failed result must not carry a stamped package")
	}
}
