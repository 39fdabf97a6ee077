package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/haricheung/grantflow/internal/artifact"
	"github.com/haricheung/grantflow/internal/history"
	"github.com/haricheung/grantflow/internal/pipeline"
	"github.com/haricheung/grantflow/internal/profile"
	"github.com/haricheung/grantflow/internal/tasklog"
	"github.com/haricheung/grantflow/internal/types"
)

// workdir moves the test into an empty directory so the default artifact
// root and history path land in it.
func workdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := root.Execute()
	return out.String(), err
}

func ptr(f float64) *float64 { return &f }

func seedHistory(t *testing.T) {
	t.Helper()
	store, err := history.Open(history.BackendLevelDB, filepath.Join(".grantflow", "history"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	recs := []types.StageRunRecord{
		{RunID: "run-1", Agent: types.StageWriting, Topic: "FFplus Call 2", Iteration: 1, Success: true,
			InputTokens: 900, OutputTokens: 4000, DurationMs: 61000, Model: "claude-opus-4-1", CreatedAt: base},
		{RunID: "run-1", Agent: types.StageReview, Topic: "FFplus Call 2", Iteration: 1, Success: true,
			Score: ptr(58), MaxScore: ptr(100), Feedback: []string{"[Impact] no KPIs"}, Model: "claude-opus-4-1",
			CreatedAt: base.Add(time.Minute)},
		{RunID: "run-1", Agent: types.StageReview, Topic: "FFplus Call 2", Iteration: 2, Success: true,
			Score: ptr(81), MaxScore: ptr(100), Model: "claude-opus-4-1", CreatedAt: base.Add(2 * time.Minute)},
		{RunID: "run-2", Agent: types.StageReview, Topic: "Horizon Pathfinder", Iteration: 1, Success: false,
			ErrorMessage: "timeout", Model: "claude-opus-4-1", CreatedAt: base.Add(3 * time.Minute)},
	}
	for _, r := range recs {
		if err := store.Record(context.Background(), r); err != nil {
			t.Fatal(err)
		}
	}
}

func TestHistoryCmd_TableFiltersByStageAndTopic(t *testing.T) {
	// Rows show score, iteration and result for the selected stage and topic only
	workdir(t)
	seedHistory(t)

	out, err := execute(t, "history", "--stage", "review", "--topic", "FFplus Call 2")
	if err != nil {
		t.Fatalf("history: %v\n%s", err, out)
	}
	for _, want := range []string{"81/100", "58/100", "FFplus Call 2", "ok"} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Horizon") || strings.Contains(out, "4900") {
		t.Errorf("output has rows of other topics or stages:\n%s", out)
	}
	if strings.Index(out, "81/100") > strings.Index(out, "58/100") {
		t.Error("rows must be newest first")
	}
}

func TestHistoryCmd_JSONAndEmpty(t *testing.T) {
	// --json prints the records; an empty history says so
	workdir(t)
	out, err := execute(t, "history")
	if err != nil || !strings.Contains(out, "no recorded runs") {
		t.Fatalf("empty history: %v %q", err, out)
	}

	seedHistory(t)
	out, err = execute(t, "--json", "history", "--limit", "2")
	if err != nil {
		t.Fatal(err)
	}
	var recs []types.StageRunRecord
	if err := json.Unmarshal([]byte(out), &recs); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(recs) != 2 || recs[0].Topic != "Horizon Pathfinder" || recs[0].Success {
		t.Errorf("records = %+v", recs)
	}
}

func TestHistoryCmd_UnknownStage(t *testing.T) {
	// An unknown --stage is rejected before the store is opened
	workdir(t)
	if _, err := execute(t, "history", "--stage", "drafting"); err == nil || !strings.Contains(err.Error(), "drafting") {
		t.Fatalf("err = %v", err)
	}
}

func TestMemoryCmd_PrintsDigest(t *testing.T) {
	// The digest lists the stage's runs on the topic oldest first with feedback
	workdir(t)
	seedHistory(t)

	out, err := execute(t, "memory", "--stage", "review", "--topic", "FFplus Call 2")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "=== MEMORY: Previous runs ===") {
		t.Errorf("digest header missing:\n%s", out)
	}
	first, second := strings.Index(out, "Run 1"), strings.Index(out, "Run 2")
	if first < 0 || second < first || !strings.Contains(out, "no KPIs") || strings.Contains(out, "Run 3") {
		t.Errorf("digest:\n%s", out)
	}

	out, err = execute(t, "memory", "--stage", "package", "--topic", "FFplus Call 2")
	if err != nil || !strings.Contains(out, "no history for package") {
		t.Errorf("empty digest: %v %q", err, out)
	}
	if _, err := execute(t, "memory", "--stage", "review"); err == nil {
		t.Error("expected error without --topic")
	}
}

func TestArtifactsCmd_ShowsStates(t *testing.T) {
	// Each fixed artifact is listed as ready, invalid or missing
	workdir(t)
	store, err := artifact.NewStore("output", "ffplus")
	if err != nil {
		t.Fatal(err)
	}
	meta := artifact.Metadata{RunID: "run-abcdef123", Stage: types.StageAnalysis}
	if err := store.WriteJSON(artifact.Analysis, types.GrantAnalysis{GrantTitle: "FFplus"}, meta); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(store.Path(artifact.Feasibility), []byte(`{"overallChance":60}`), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "artifacts", "ffplus")
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(out, "\n")
	row := func(file string) string {
		for _, l := range lines {
			if strings.Contains(l, file) {
				return l
			}
		}
		return ""
	}
	if r := row(artifact.Analysis.File); !strings.Contains(r, "ready") || !strings.Contains(r, "run-abc") {
		t.Errorf("analysis row = %q", r)
	}
	if r := row(artifact.Feasibility.File); !strings.Contains(r, "invalid") {
		t.Errorf("feasibility row = %q", r)
	}
	if r := row(artifact.Package.File); !strings.Contains(r, "missing") {
		t.Errorf("package row = %q", r)
	}
}

func TestProfileShowCmd(t *testing.T) {
	// A valid profile prints as normalized JSON; a nameless one is ErrNoName
	dir := workdir(t)
	good := filepath.Join(dir, "org.yaml")
	if err := os.WriteFile(good, []byte("name: Acme Labs\ntype: company\ncountry: UA\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "profile", "show", good)
	if err != nil {
		t.Fatal(err)
	}
	var p types.OrganizationProfile
	if err := json.Unmarshal([]byte(out), &p); err != nil || p.Name != "Acme Labs" || p.Partnerships == nil {
		t.Errorf("profile = %+v, %v", p, err)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"country":"UA"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, "profile", "show", bad); !errors.Is(err, profile.ErrNoName) {
		t.Errorf("err = %v", err)
	}
}

func TestPrintSummary_FailedRun(t *testing.T) {
	// A failed run shows where it stopped and the per-stage usage table
	var buf bytes.Buffer
	printSummary(&buf, pipeline.Summary{
		RunID: "run-1", State: types.StateFailed, GrantTitle: "FFplus Call 2", Organization: "Acme Labs",
		Iterations: 1, MaxIterations: 2, FinalScore: 58, MaxScore: 100, ScorePct: 58, MinScorePct: 70,
		InputTokens: 1200, OutputTokens: 300, DurationMs: 61400,
		Stages:   []tasklog.StageStat{{Stage: types.StageWriting, Calls: 1, InputTokens: 900, OutputTokens: 250, ElapsedMs: 41000}},
		FailedAt: types.StageReview, ErrorCode: "REVIEW_ERROR", Error: "timeout",
	}, "output/ffplus")
	out := buf.String()
	for _, want := range []string{"FAILED", "1 / 2", "58 / 100 (58%, gate 70%)", "1200 in / 300 out",
		"1m1s", "review [REVIEW_ERROR]", "output/ffplus", "writing", "41s"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary lacks %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Feasibility") {
		t.Error("feasibility row must be absent without a recommendation")
	}
}
