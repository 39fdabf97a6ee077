// Package packager is the package stage: it assembles the submission bundle
// (supporting documents, checklist, quality checks) from the final draft.
package packager

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/haricheung/grantflow/internal/llm"
	"github.com/haricheung/grantflow/internal/prompt"
	"github.com/haricheung/grantflow/internal/stage"
	"github.com/haricheung/grantflow/internal/types"
)

const systemPrompt = `You prepare grant application packages for submission.

You:
- assemble complete application packages
- write supporting documents such as cover letters and summaries
- build checklists and submission guidelines
- check compliance with the call's submission rules
- review documents for quality

Always answer with a single JSON object matching the requested schema.`

const schema = `{
  "packageId": "string (unique identifier)",
  "grantTitle": "string",
  "createdAt": "string (ISO 8601 datetime)",
  "documentChecklist": [
    {"item": "string", "status": "complete|in_progress|not_started", "responsible": "string (optional)", "deadline": "string (optional)", "notes": "string (optional)"}
  ],
  "generatedDocuments": [
    {
      "type": "cover_letter|project_summary|budget_justification|team_cv|work_plan|risk_assessment|impact_statement|ethics_statement|data_management_plan",
      "filename": "string",
      "content": "string (full document text)",
      "format": "markdown",
      "status": "generated"
    }
  ],
  "manualDocuments": [
    {"type": "string", "description": "string", "required": boolean, "instructions": "string (what the applicant must prepare)"}
  ],
  "submissionGuidelines": ["string (step by step)"],
  "qualityChecks": [
    {"check": "string", "status": "passed|failed|not_checked", "notes": "string (optional)"}
  ],
  "nextSteps": ["string"]
}`

const documents = `Write these documents in full:
1. COVER LETTER: introduce the applicant, summarise the project, show the fit
2. PROJECT SUMMARY: a one to two page executive summary
3. BUDGET JUSTIFICATION: each budget category and its costs explained
4. TEAM CV: consolidated CVs with the relevant expertise
5. WORK PLAN: tasks, milestones and a timeline or Gantt chart
6. RISK ASSESSMENT: risks and their mitigation
7. IMPACT STATEMENT: the expected impact in detail
8. ETHICS STATEMENT: ethical considerations and compliance, if applicable
9. DATA MANAGEMENT PLAN: how data is handled, stored and shared, if applicable

Keep the documents consistent with the proposal and with each other.
The checklist must cover required documents, administrative requirements, submission procedure and deadlines.
Quality checks must cover completeness, consistency, formatting and compliance.`

// Input is the final state of the refine loop.
type Input struct {
	Analysis     types.GrantAnalysis
	Organization types.OrganizationProfile
	Proposal     types.ScientificProposal
	Review       types.ReviewReport
}

// Render builds the user prompt.
func Render(in Input, memory string) string {
	return "Prepare the complete application package for this grant.\n\n" +
		prompt.Section("GRANT ANALYSIS", prompt.JSON(in.Analysis)) + "\n" +
		prompt.Section("ORGANIZATION INFORMATION", prompt.JSON(in.Organization)) + "\n" +
		prompt.Section("SCIENTIFIC PROPOSAL", prompt.JSON(in.Proposal)) + "\n" +
		prompt.Section("REVIEW RESULTS", prompt.JSON(in.Review)) + "\n" +
		prompt.Memory(memory) +
		"Answer in this JSON format:\n" + schema + "\n\n" + documents
}

// Normalize fills list and document defaults: format markdown, status generated.
func Normalize(p *types.ApplicationPackage) {
	p.Normalize()
	for i := range p.GeneratedDocuments {
		d := &p.GeneratedDocuments[i]
		if d.Format == "" {
			d.Format = types.FormatMarkdown
		}
		if d.Status == "" {
			d.Status = types.DocGenerated
		}
	}
}

// Config returns the stage definition for settings.
func Config(settings stage.Settings) stage.Config[Input, types.ApplicationPackage] {
	return stage.Config[Input, types.ApplicationPackage]{
		Stage:     types.StagePackage,
		System:    systemPrompt,
		Render:    Render,
		Settings:  settings,
		Normalize: Normalize,
		Topic:     func(in Input) string { return in.Analysis.GrantTitle },
		Assess: func(_ Input, p types.ApplicationPackage) stage.Assessment {
			fb := make([]string, 0, len(p.QualityChecks))
			for _, q := range p.QualityChecks {
				if q.Status == types.CheckFailed {
					fb = append(fb, "quality check failed: "+q.Check)
				}
			}
			return stage.Assessment{
				Summary:  fmt.Sprintf("Package: %d generated, %d manual documents", len(p.GeneratedDocuments), len(p.ManualDocuments)),
				Feedback: fb,
			}
		},
	}
}

// Stage wraps the generic stage and stamps identity fields the model may omit.
type Stage struct {
	*stage.Stage[Input, types.ApplicationPackage]
	now   func() time.Time
	newID func() string
}

// New builds the package stage.
func New(model llm.Model, settings stage.Settings, logger *slog.Logger, opts ...stage.Option) *Stage {
	return &Stage{
		Stage: stage.New(Config(settings), model, logger, opts...),
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Execute runs the stage and fills a missing packageId, grantTitle or createdAt.
//
// Expectations:
//   - Missing packageId gets a fresh UUID; a model-supplied one is kept
//   - Missing grantTitle falls back to the analysis title
//   - Missing createdAt is the current UTC time in RFC 3339
//   - Failures pass through unchanged
func (s *Stage) Execute(ctx context.Context, in Input) stage.Result[types.ApplicationPackage] {
	res := s.Stage.Execute(ctx, in)
	if !res.OK() {
		return res
	}
	p := res.Data()
	if p.PackageID == "" {
		p.PackageID = s.newID()
	}
	if p.GrantTitle == "" {
		p.GrantTitle = in.Analysis.GrantTitle
	}
	if p.CreatedAt == "" {
		p.CreatedAt = s.now().UTC().Format(time.RFC3339)
	}
	return stage.Succeeded(p, res.Meta)
}
