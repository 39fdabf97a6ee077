// Package reviewer is the review stage: it scores a proposal draft against
// the grant's evaluation criteria and decides whether it is ready to submit.
package reviewer

import (
	"fmt"
	"log/slog"

	"github.com/haricheung/grantflow/internal/llm"
	"github.com/haricheung/grantflow/internal/prompt"
	"github.com/haricheung/grantflow/internal/stage"
	"github.com/haricheung/grantflow/internal/types"
)

const systemPrompt = `You are an experienced grant reviewer who evaluates research proposals for funding bodies.

You:
- evaluate proposals strictly against the funding criteria
- name strengths and weaknesses precisely
- judge scientific merit, feasibility and impact
- give feedback the applicant can act on
- score each section using the call's evaluation framework
- decide whether the proposal is ready for submission

Be rigorous but fair. Always answer with a single JSON object matching the requested schema.`

const schema = `{
  "overallScore": number (total score achieved),
  "maxScore": number (maximum possible score),
  "readyToSubmit": boolean,
  "executiveSummary": "string (2-3 paragraphs)",
  "sectionScores": [
    {"section": "string (e.g. Excellence, Impact, Implementation)", "score": number, "maxScore": number, "feedback": "string"}
  ],
  "strengths": ["string"],
  "weaknesses": [
    {"section": "string", "issue": "string", "severity": "critical|major|minor", "suggestion": "string"}
  ],
  "missingElements": ["string (required elements that are missing or insufficient)"],
  "improvementPriorities": [
    {"priority": "critical|high|medium|low", "area": "string", "recommendation": "string"}
  ],
  "detailedFeedback": [
    {"section": "string", "comments": ["string"]}
  ]
}`

const guidelines = `Evaluation guidelines:
1. Score every criterion from the grant analysis
2. Check alignment with the grant objectives
3. Judge scientific quality and rigour
4. Check completeness and clarity
5. Judge innovation and added value
6. Judge feasibility and risk management
7. Judge potential impact
8. Check that the methodology is sound
9. Check that the team's capability is demonstrated
10. Verify every mandatory element is present

Set "readyToSubmit" to true ONLY when all of these hold:
- every mandatory requirement is met
- there are no critical weaknesses
- the score exceeds 70% of the maximum
- the proposal is clear, complete and compelling`

// missingInFeedback caps the missing elements copied into the history record.
const missingInFeedback = 5

// Input is the grant analysis and the draft under review.
type Input struct {
	Analysis types.GrantAnalysis
	Proposal types.ScientificProposal
}

// Render builds the user prompt.
func Render(in Input, memory string) string {
	return "Review this scientific proposal against the grant requirements.\n\n" +
		prompt.Section("GRANT ANALYSIS (evaluation criteria)", prompt.JSON(in.Analysis)) + "\n" +
		prompt.Section("SCIENTIFIC PROPOSAL", prompt.JSON(in.Proposal)) + "\n" +
		prompt.Memory(memory) +
		"Answer in this JSON format:\n" + schema + "\n\n" + guidelines + "\n\n" +
		"Say exactly what must improve and how."
}

// Check enforces the score invariant and never lets a report with a
// critical weakness claim to be ready.
func Check(r *types.ReviewReport) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if r.ReadyToSubmit && r.HasCritical() {
		r.ReadyToSubmit = false
	}
	return nil
}

// Assess builds the history record for a review: the score, a one-line
// verdict, and the serious weaknesses followed by missing elements.
func Assess(_ Input, r types.ReviewReport) stage.Assessment {
	score, maxScore := r.OverallScore, r.MaxScore
	fb := make([]string, 0, len(r.Weaknesses)+missingInFeedback)
	for _, w := range r.Weaknesses {
		if w.Severity == types.SeverityCritical || w.Severity == types.SeverityMajor {
			fb = append(fb, fmt.Sprintf("[%s] %s", w.Section, w.Issue))
		}
	}
	missing := r.MissingElements
	if len(missing) > missingInFeedback {
		missing = missing[:missingInFeedback]
	}
	fb = append(fb, missing...)
	return stage.Assessment{
		Score:    &score,
		MaxScore: &maxScore,
		Summary:  fmt.Sprintf("Review: %g/%g, readyToSubmit: %t", r.OverallScore, r.MaxScore, r.ReadyToSubmit),
		Feedback: fb,
	}
}

// Config returns the stage definition for settings.
func Config(settings stage.Settings) stage.Config[Input, types.ReviewReport] {
	return stage.Config[Input, types.ReviewReport]{
		Stage:     types.StageReview,
		System:    systemPrompt,
		Render:    Render,
		Settings:  settings,
		Normalize: (*types.ReviewReport).Normalize,
		Check:     Check,
		Topic:     func(in Input) string { return in.Analysis.GrantTitle },
		Assess:    Assess,
	}
}

// New builds the review stage.
func New(model llm.Model, settings stage.Settings, logger *slog.Logger, opts ...stage.Option) *stage.Stage[Input, types.ReviewReport] {
	return stage.New(Config(settings), model, logger, opts...)
}
