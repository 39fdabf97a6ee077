// Package writer is the writing stage: it drafts the scientific proposal and,
// on later refine cycles, revises it against the previous review.
package writer

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/haricheung/grantflow/internal/llm"
	"github.com/haricheung/grantflow/internal/prompt"
	"github.com/haricheung/grantflow/internal/stage"
	"github.com/haricheung/grantflow/internal/types"
)

const systemPrompt = `You are a scientific writer who specialises in competitive grant proposals.

You know how to:
- tell a convincing research story
- structure a proposal around the funder's evaluation criteria
- keep technical depth readable for reviewers from other fields
- make innovation and impact explicit
- argue why the project deserves funding

Always answer with a single JSON object holding the proposal sections.`

const schema = `{
  "abstract": "string (200-300 words, compelling summary)",
  "introduction": "string (context, problem statement, objectives)",
  "stateOfTheArt": "string (current state, gaps, how this project moves beyond it)",
  "methodology": "string (technical approach, methods, tools)",
  "workPlan": "string (phases, tasks, timeline, deliverables, milestones)",
  "expectedResults": "string (concrete outcomes, outputs, KPIs)",
  "impact": "string (scientific, societal and economic impact)",
  "bibliography": ["string (key references, properly formatted)"]
}`

const requirements = `Requirements:
1. Address every evaluation criterion from the grant analysis
2. Build on every strength from the feasibility evaluation
3. Show clear innovation and added value
4. Plan realistically and manage risk
5. Show the team's expertise and resources
6. Prefer measurable outcomes over general claims
7. Give specific technical detail
8. Include concrete numbers, metrics and timelines
9. Cite relevant state-of-the-art work
10. Make the case fundable`

// maxWeaknesses caps the weaknesses listed in improvement instructions.
const maxWeaknesses = 5

// summaryRunes caps the abstract prefix stored as the history summary.
const summaryRunes = 200

// Input is everything the writer needs for one draft.
type Input struct {
	Analysis        types.GrantAnalysis
	Organization    types.OrganizationProfile
	Feasibility     types.FeasibilityEvaluation
	Language        types.Language
	BusinessContext string
	// Previous is the review of the prior draft; nil on the first cycle.
	Previous *types.ReviewReport
}

// Render builds the user prompt.
//
// Expectations:
//   - Language codes outside {en, ru, uk} render exactly like ""
//   - BUSINESS CONTEXT section only when BusinessContext is non-blank
//   - IMPROVEMENT INSTRUCTIONS section only when Previous is set
//   - Memory section only when memory is non-empty
func Render(in Input, memory string) string {
	var b strings.Builder
	b.WriteString("Write a complete scientific proposal for this grant application.\n\n")
	b.WriteString(prompt.LanguageDirective(in.Language) + "\n\n")
	b.WriteString(prompt.Section("GRANT ANALYSIS", prompt.JSON(in.Analysis)) + "\n")
	b.WriteString(prompt.Section("ORGANIZATION INFORMATION", prompt.JSON(in.Organization)) + "\n")
	b.WriteString(prompt.Section("FEASIBILITY EVALUATION", prompt.JSON(in.Feasibility)) + "\n")
	if strings.TrimSpace(in.BusinessContext) != "" {
		b.WriteString(prompt.Section("BUSINESS CONTEXT", in.BusinessContext))
		b.WriteString("Tailor the proposal to this context and show how the project serves real business needs.\n\n")
	}
	if in.Previous != nil {
		b.WriteString(Improvements(*in.Previous) + "\n")
	}
	b.WriteString(prompt.Memory(memory))
	b.WriteString("Answer in this JSON format:\n" + schema + "\n\n")
	b.WriteString(requirements + "\n\n")
	b.WriteString(prompt.StyleDirective(in.Language) + "\n")
	b.WriteString("Write content that would earn full marks from the evaluators.")
	return b.String()
}

// Improvements renders the revision instructions derived from a review:
// the previous score, priorities ordered by urgency, the most serious
// weaknesses, and missing elements.
func Improvements(r types.ReviewReport) string {
	var b strings.Builder
	b.WriteString("IMPROVEMENT INSTRUCTIONS BASED ON REVIEW FEEDBACK:\n\n")
	fmt.Fprintf(&b, "PREVIOUS SCORE: %g/%g (%d%%), ready to submit: %t\n", r.OverallScore, r.MaxScore, r.ScorePct(), r.ReadyToSubmit)
	b.WriteString("Revise the previous draft so that every point below is resolved.\n")

	if len(r.ImprovementPriorities) > 0 {
		prios := append([]types.ImprovementPriority(nil), r.ImprovementPriorities...)
		sort.SliceStable(prios, func(i, j int) bool { return prios[i].Priority.Rank() > prios[j].Priority.Rank() })
		items := make([]string, len(prios))
		for i, p := range prios {
			items[i] = fmt.Sprintf("[%s] %s: %s", strings.ToUpper(string(p.Priority)), p.Area, p.Recommendation)
		}
		b.WriteString("\nPRIORITIES TO FIX:\n" + prompt.Numbered(items))
	}

	var weak []string
	for _, w := range r.Weaknesses {
		if w.Severity.Rank() < types.SeverityMajor.Rank() {
			continue
		}
		line := fmt.Sprintf("[%s] %s: %s", w.Severity, w.Section, w.Issue)
		if w.Suggestion != "" {
			line += " -> " + w.Suggestion
		}
		weak = append(weak, line)
		if len(weak) == maxWeaknesses {
			break
		}
	}
	if len(weak) > 0 {
		b.WriteString("\nKEY WEAKNESSES:\n" + prompt.Numbered(weak))
	}
	if len(r.MissingElements) > 0 {
		b.WriteString("\nMISSING ELEMENTS TO ADD:\n" + prompt.Numbered(r.MissingElements))
	}
	return b.String()
}

// Config returns the stage definition for settings.
func Config(settings stage.Settings) stage.Config[Input, types.ScientificProposal] {
	return stage.Config[Input, types.ScientificProposal]{
		Stage:     types.StageWriting,
		System:    systemPrompt,
		Render:    Render,
		Settings:  settings,
		Normalize: (*types.ScientificProposal).Normalize,
		Check: func(p *types.ScientificProposal) error {
			if strings.TrimSpace(p.Abstract) == "" && strings.TrimSpace(p.Methodology) == "" {
				return fmt.Errorf("proposal has neither an abstract nor a methodology")
			}
			return nil
		},
		Topic: func(in Input) string { return in.Analysis.GrantTitle },
		Assess: func(in Input, p types.ScientificProposal) stage.Assessment {
			a := stage.Assessment{Summary: clip(p.Abstract, summaryRunes)}
			if in.Previous != nil {
				a.Feedback = []string{fmt.Sprintf("revised after %d%%", in.Previous.ScorePct())}
			}
			return a
		},
	}
}

// New builds the writing stage.
func New(model llm.Model, settings stage.Settings, logger *slog.Logger, opts ...stage.Option) *stage.Stage[Input, types.ScientificProposal] {
	return stage.New(Config(settings), model, logger, opts...)
}

func clip(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
