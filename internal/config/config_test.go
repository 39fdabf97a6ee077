package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/haricheung/grantflow/internal/stage"
	"github.com/haricheung/grantflow/internal/types"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	// With no file and no environment every default applies
	t.Chdir(t.TempDir())
	c, err := Load(viper.New(), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Lang() != types.LangEnglish || c.MaxIterations != 2 || c.MinScorePercentage != 70 {
		t.Errorf("got %+v", c)
	}
	if c.History.Backend != "leveldb" || c.Provider != "anthropic" || c.Timeout != 10*time.Minute {
		t.Errorf("got %+v", c)
	}
	if got := c.Stage(types.StageWriting); got.Model != "claude-opus-4-1" || got.MaxTokens != 32768 {
		t.Errorf("writing settings = %+v", got)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	// GRANTFLOW_* variables win over the file, which wins over defaults
	path := writeFile(t, "grantflow.yaml", `
language: uk
max_iterations: 3
min_score_percentage: 80
stages:
  review:
    model: claude-sonnet-4-5
    max_tokens: 4096
`)
	t.Setenv("GRANTFLOW_MIN_SCORE_PERCENTAGE", "65")
	t.Setenv("GRANTFLOW_HISTORY_BACKEND", "sqlite")

	c, err := Load(viper.New(), path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Lang() != types.LangUkrainian || c.MaxIterations != 3 {
		t.Errorf("file values lost: %+v", c)
	}
	if c.MinScorePercentage != 65 || c.History.Backend != "sqlite" {
		t.Errorf("env overrides lost: %+v", c)
	}
	rv := c.Stage(types.StageReview)
	if rv.Model != "claude-sonnet-4-5" || rv.MaxTokens != 4096 {
		t.Errorf("review settings = %+v", rv)
	}
	if got := c.Stage(types.StageAnalysis).Model; got != "claude-sonnet-4-5" {
		t.Errorf("analysis default lost: %q", got)
	}
}

func TestLoad_StageModelEnv(t *testing.T) {
	// <STAGE>_MODEL overrides the model of that stage only
	t.Chdir(t.TempDir())
	t.Setenv("WRITING_MODEL", "my-writer")
	c, err := Load(viper.New(), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := c.Stage(types.StageWriting).Model; got != "my-writer" {
		t.Errorf("writing model = %q", got)
	}
	if got := c.Stage(types.StageReview).Model; got != "claude-opus-4-1" {
		t.Errorf("review model = %q", got)
	}
}

func TestLoad_RejectsStageTemperature(t *testing.T) {
	// A per-stage temperature in the file is an ErrInvalid naming the key
	path := writeFile(t, "c.yaml", "stages:\n  writing:\n    temperature: 0.2\n")
	_, err := Load(viper.New(), path)
	if !errors.Is(err, ErrInvalid) || !strings.Contains(err.Error(), "stages.writing.temperature") {
		t.Fatalf("expected ErrInvalid for temperature, got %v", err)
	}
}

func TestLoad_ZeroMinScoreIsInvalid(t *testing.T) {
	// min_score_percentage 0 is rejected rather than silently disabling the gate
	path := writeFile(t, "c.yaml", "min_score_percentage: 0\n")
	_, err := Load(viper.New(), path)
	if !errors.Is(err, ErrInvalid) || !strings.Contains(err.Error(), "min_score_percentage") {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	// An explicit config path that does not exist is an error
	if _, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error")
	}
}

func TestLoad_InvalidWrapsSentinel(t *testing.T) {
	// Out-of-range values fail validation with ErrInvalid
	path := writeFile(t, "c.yaml", "language: fr\nmax_iterations: 0\n")
	_, err := Load(viper.New(), path)
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	for _, want := range []string{"language", "max_iterations"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	// All problems are listed in one ErrInvalid error, separated by "; "
	c := Config{
		Language: "en", MaxIterations: 1, MinScorePercentage: 101,
		Provider: "gemini", History: History{Backend: "redis"}, Log: Log{Format: "xml"},
		Stages: map[string]stage.Settings{"drafting": {Model: "m", MaxTokens: 1}},
	}
	err := c.Validate()
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	for _, want := range []string{"min_score_percentage", "provider", "history.backend", "log.format", "stages.drafting"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
	if n := strings.Count(err.Error(), "; "); n != 4 {
		t.Errorf("expected 5 problems, got %d separators in %q", n, err)
	}
}

func TestResolveBusinessContext(t *testing.T) {
	// Plain values are returned trimmed; "@path" reads the file
	c := Config{BusinessContext: "  we build sensors  "}
	if got, err := c.ResolveBusinessContext(); err != nil || got != "we build sensors" {
		t.Errorf("got %q, %v", got, err)
	}
	path := writeFile(t, "ctx.md", "\nfrom file\n")
	c.BusinessContext = "@" + path
	if got, err := c.ResolveBusinessContext(); err != nil || got != "from file" {
		t.Errorf("got %q, %v", got, err)
	}
	c.BusinessContext = "@" + filepath.Join(t.TempDir(), "missing")
	if _, err := c.ResolveBusinessContext(); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestModel_UsesStageLabelPrefix(t *testing.T) {
	// Stage-specific credentials win over the shared provider variable
	t.Setenv("ANTHROPIC_API_KEY", "shared")
	t.Setenv("REVIEW_API_KEY", "review-key")
	c := Config{Provider: "anthropic", Timeout: time.Minute}
	if got := c.Model(types.StageReview); got.APIKey != "review-key" || got.Timeout != time.Minute {
		t.Errorf("review = %+v", got)
	}
	if got := c.Model(types.StageAnalysis); got.APIKey != "shared" {
		t.Errorf("analysis = %+v", got)
	}
}
