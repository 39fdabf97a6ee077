// Package artifact persists the outputs of a pipeline run under one namespace
// directory. Every artifact has a stable reference; JSON artifacts carry an
// embedded metadata block and markdown documents carry YAML frontmatter, so
// Check can tell a finished artifact from a stray file.
package artifact

import (
	"fmt"
	"strings"
	"time"

	"github.com/haricheung/grantflow/internal/types"
)

// Kind is the storage shape of an artifact.
type Kind string

const (
	// KindJSON is an indented JSON object with a "_grantflow" metadata block.
	KindJSON Kind = "json"
	// KindDocument is markdown with YAML frontmatter.
	KindDocument Kind = "document"
	// KindText is plain text without metadata.
	KindText Kind = "text"
)

// Ref names an artifact and where it lives inside the namespace.
type Ref struct {
	ID   string
	Kind Kind
	File string
}

// Iteration returns the per-cycle variant of r: "scientific-proposal.json"
// becomes "scientific-proposal-iter2.json".
func (r Ref) Iteration(n int) Ref {
	ext := ""
	base := r.File
	if i := strings.LastIndex(base, "."); i > 0 {
		base, ext = r.File[:i], r.File[i:]
	}
	return Ref{
		ID:   fmt.Sprintf("%s-iter%d", r.ID, n),
		Kind: r.Kind,
		File: fmt.Sprintf("%s-iter%d%s", base, n, ext),
	}
}

var (
	GrantText   = Ref{ID: "grant-text", Kind: KindText, File: "grant-text.txt"}
	Analysis    = Ref{ID: "analysis", Kind: KindJSON, File: "grant-analysis.json"}
	Feasibility = Ref{ID: "feasibility", Kind: KindJSON, File: "feasibility-evaluation.json"}
	Proposal    = Ref{ID: "proposal", Kind: KindJSON, File: "scientific-proposal.json"}
	Review      = Ref{ID: "review", Kind: KindJSON, File: "review-report.json"}
	Package     = Ref{ID: "package", Kind: KindJSON, File: "application-package.json"}
	Summary     = Ref{ID: "summary", Kind: KindJSON, File: "pipeline-summary.json"}
	ProposalMD  = Ref{ID: "proposal-md", Kind: KindDocument, File: "scientific-proposal.md"}
	ReviewMD    = Ref{ID: "review-md", Kind: KindDocument, File: "review-report.md"}
	ChecklistMD = Ref{ID: "checklist-md", Kind: KindDocument, File: "submission-checklist.md"}
)

// PackageDir is the subdirectory holding generated submission documents.
const PackageDir = "application-package"

// All lists the fixed references in the order a run produces them.
var All = []Ref{GrantText, Analysis, Feasibility, Proposal, Review, Package, Summary, ProposalMD, ReviewMD, ChecklistMD}

// Lookup returns the fixed reference with id.
func Lookup(id string) (Ref, bool) {
	for _, r := range All {
		if r.ID == id {
			return r, true
		}
	}
	return Ref{}, false
}

// Metadata is the provenance stored with an artifact.
type Metadata struct {
	ArtifactID string            `yaml:"artifact" json:"artifact"`
	RunID      string            `yaml:"run,omitempty" json:"run,omitempty"`
	Stage      types.Stage       `yaml:"stage,omitempty" json:"stage,omitempty"`
	Iteration  int               `yaml:"iteration,omitempty" json:"iteration,omitempty"`
	CreatedAt  time.Time         `yaml:"created" json:"created"`
	Notes      map[string]string `yaml:"notes,omitempty" json:"notes,omitempty"`
}

func (m Metadata) withDefaults(ref Ref, now time.Time) Metadata {
	out := m
	if out.ArtifactID == "" {
		out.ArtifactID = ref.ID
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = now
	}
	out.CreatedAt = out.CreatedAt.UTC().Truncate(time.Second)
	return out
}

// State is the readiness of an artifact on disk.
type State string

const (
	StateMissing State = "missing"
	StateReady   State = "ready"
	StateInvalid State = "invalid"
	StateError   State = "error"
)

// CheckResult is what Store.Check found.
type CheckResult struct {
	Ref      Ref
	Path     string
	State    State
	Metadata *Metadata
	Err      error
}
