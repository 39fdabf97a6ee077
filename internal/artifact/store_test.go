package artifact

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/haricheung/grantflow/internal/types"
)

var fixed = time.Date(2026, 5, 1, 12, 30, 0, 0, time.UTC)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), "ffplus call 2", WithClock(func() time.Time { return fixed }))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestNewStore_SanitizesNamespace(t *testing.T) {
	// The namespace becomes a single safe directory under root
	root := t.TempDir()
	s, err := NewStore(root, "../etc/passwd")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Dir(s.Dir()) != root {
		t.Errorf("namespace escaped root: %s", s.Dir())
	}
}

func TestJSON_RoundTripIgnoresMetadata(t *testing.T) {
	// ReadJSON returns what WriteJSON stored; the metadata block does not leak into v
	s := newStore(t)
	in := types.ReviewReport{OverallScore: 71, MaxScore: 100, Strengths: []string{"clear"}}
	if err := s.WriteJSON(Review, in, Metadata{RunID: "r1", Stage: types.StageReview, Iteration: 2}); err != nil {
		t.Fatal(err)
	}
	var out types.ReviewReport
	if err := s.ReadJSON(Review, &out); err != nil {
		t.Fatal(err)
	}
	if out.OverallScore != 71 || len(out.Strengths) != 1 {
		t.Errorf("got %+v", out)
	}
}

func TestReadJSON_MissingIsErrNotFound(t *testing.T) {
	// Reads of artifacts never written return ErrNotFound
	s := newStore(t)
	var v map[string]any
	if err := s.ReadJSON(Package, &v); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.ReadText(GrantText); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCheck_States(t *testing.T) {
	// Missing file → StateMissing with a nil error
	s := newStore(t)
	res, err := s.Check(Analysis)
	if err != nil || res.State != StateMissing {
		t.Fatalf("got %v %v", res.State, err)
	}

	if err := s.WriteJSON(Analysis, types.GrantAnalysis{GrantTitle: "T"}, Metadata{RunID: "r1"}); err != nil {
		t.Fatal(err)
	}
	res, err = s.Check(Analysis)
	if err != nil || res.State != StateReady || res.Metadata.RunID != "r1" || !res.Metadata.CreatedAt.Equal(fixed) {
		t.Fatalf("got %+v %v", res, err)
	}

	// JSON or document whose metadata names a different artifact → StateInvalid
	data, _ := os.ReadFile(s.Path(Analysis))
	if err := os.WriteFile(s.Path(Feasibility), data, 0o644); err != nil {
		t.Fatal(err)
	}
	if res, _ := s.Check(Feasibility); res.State != StateInvalid {
		t.Errorf("expected invalid, got %s", res.State)
	}

	// Text artifacts are ready whenever the file exists
	if err := s.WriteText(GrantText, "call"); err != nil {
		t.Fatal(err)
	}
	if res, _ := s.Check(GrantText); res.State != StateReady {
		t.Errorf("text: got %s", res.State)
	}
}

func TestDocument_FrontMatterRoundTrip(t *testing.T) {
	// Documents carry YAML frontmatter that ReadDocument and Check both parse
	s := newStore(t)
	if err := s.WriteDocument(ProposalMD, "# Title\n", Metadata{RunID: "r1", Iteration: 2, Notes: map[string]string{"score": "71%"}}); err != nil {
		t.Fatal(err)
	}
	raw, _ := os.ReadFile(s.Path(ProposalMD))
	if !strings.HasPrefix(string(raw), "---\ngrantflow:\n    artifact: proposal-md\n") {
		t.Errorf("unexpected frontmatter: %q", raw)
	}
	meta, body, err := s.ReadDocument(ProposalMD)
	if err != nil {
		t.Fatal(err)
	}
	if body != "# Title\n" || meta.Iteration != 2 || meta.Notes["score"] != "71%" {
		t.Errorf("got meta=%+v body=%q", meta, body)
	}
	if res, _ := s.Check(ProposalMD); res.State != StateReady {
		t.Errorf("check: got %s", res.State)
	}
}

func TestParseFrontMatter_Errors(t *testing.T) {
	// Plain markdown is missing frontmatter; an unterminated fence is malformed
	if _, _, err := ParseFrontMatter([]byte("# hi")); !errors.Is(err, ErrMissingFrontMatter) {
		t.Errorf("got %v", err)
	}
	if _, _, err := ParseFrontMatter([]byte("---\ngrantflow:\n  artifact: x\n")); !errors.Is(err, ErrMalformedFrontMatter) {
		t.Errorf("got %v", err)
	}
}

func TestWritePackageFile_StaysInPackageDir(t *testing.T) {
	// Generated document names cannot escape the package directory
	s := newStore(t)
	path, err := s.WritePackageFile("../../cover letter.md", "Dear")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Dir(path) != filepath.Join(s.Dir(), PackageDir) || filepath.Base(path) != "cover-letter.md" {
		t.Errorf("got %s", path)
	}
}

func TestRef_Iteration(t *testing.T) {
	// Per-cycle refs insert -iterN before the extension
	r := Proposal.Iteration(2)
	if r.File != "scientific-proposal-iter2.json" || r.ID != "proposal-iter2" || r.Kind != KindJSON {
		t.Errorf("got %+v", r)
	}
}
