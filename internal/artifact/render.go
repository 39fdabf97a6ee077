package artifact

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/haricheung/grantflow/internal/types"
)

func numbered(b *strings.Builder, items []string) {
	for i, it := range items {
		fmt.Fprintf(b, "%d. %s\n", i+1, it)
	}
}

func pct(score, maxScore float64) int {
	return types.ReviewReport{OverallScore: score, MaxScore: maxScore}.ScorePct()
}

func yesNo(ok bool) string {
	if ok {
		return "YES ✓"
	}
	return "NO ✗"
}

// ProposalMarkdown renders a proposal as a markdown document titled title.
func ProposalMarkdown(title string, p types.ScientificProposal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", title)
	for _, s := range []struct{ heading, body string }{
		{"Abstract", p.Abstract},
		{"Introduction", p.Introduction},
		{"State of the Art", p.StateOfTheArt},
		{"Methodology", p.Methodology},
		{"Work Plan", p.WorkPlan},
		{"Expected Results", p.ExpectedResults},
		{"Impact", p.Impact},
	} {
		fmt.Fprintf(&b, "\n## %s\n\n%s\n", s.heading, strings.TrimSpace(s.body))
	}
	b.WriteString("\n## Bibliography\n\n")
	numbered(&b, p.Bibliography)
	return b.String()
}

// ReviewMarkdown renders a review report for grantTitle.
func ReviewMarkdown(grantTitle string, r types.ReviewReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Proposal Review Report\n# %s\n\n## Overall Assessment\n\n", grantTitle)
	fmt.Fprintf(&b, "**Score:** %g/%g (%d%%)\n**Ready to Submit:** %s\n", r.OverallScore, r.MaxScore, r.ScorePct(), yesNo(r.ReadyToSubmit))
	fmt.Fprintf(&b, "\n## Executive Summary\n\n%s\n", strings.TrimSpace(r.ExecutiveSummary))

	b.WriteString("\n## Section Scores\n")
	for _, s := range r.SectionScores {
		fmt.Fprintf(&b, "\n### %s: %g/%g (%d%%)\n\n%s\n", s.Section, s.Score, s.MaxScore, pct(s.Score, s.MaxScore), s.Feedback)
	}

	b.WriteString("\n## Strengths\n\n")
	numbered(&b, r.Strengths)

	b.WriteString("\n## Weaknesses\n")
	for _, w := range r.Weaknesses {
		fmt.Fprintf(&b, "\n### [%s] %s\n\n**Issue:** %s\n\n**Suggestion:** %s\n",
			strings.ToUpper(string(w.Severity)), w.Section, w.Issue, w.Suggestion)
	}

	b.WriteString("\n## Missing Elements\n\n")
	if len(r.MissingElements) == 0 {
		b.WriteString("None\n")
	}
	numbered(&b, r.MissingElements)

	b.WriteString("\n## Improvement Priorities\n")
	for _, p := range r.ImprovementPriorities {
		fmt.Fprintf(&b, "\n### [%s] %s\n\n%s\n", strings.ToUpper(string(p.Priority)), p.Area, p.Recommendation)
	}

	b.WriteString("\n## Detailed Feedback by Section\n")
	for _, df := range r.DetailedFeedback {
		fmt.Fprintf(&b, "\n### %s\n\n", df.Section)
		numbered(&b, df.Comments)
	}
	return b.String()
}

// ChecklistMarkdown renders the submission checklist of an application package.
func ChecklistMarkdown(p types.ApplicationPackage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Application Submission Checklist\n# %s\n\n", p.GrantTitle)
	fmt.Fprintf(&b, "**Package ID:** %s\n**Created:** %s\n", p.PackageID, p.CreatedAt)

	b.WriteString("\n## Document Checklist\n\n")
	for _, it := range p.DocumentChecklist {
		line := fmt.Sprintf("- [%s] %s", it.Status.Mark(), it.Item)
		if it.Responsible != "" {
			line += " (" + it.Responsible + ")"
		}
		if it.Deadline != "" {
			line += " - Deadline: " + it.Deadline
		}
		if it.Notes != "" {
			line += "\n  " + it.Notes
		}
		b.WriteString(line + "\n")
	}

	b.WriteString("\n## Generated Documents\n\n")
	for _, d := range p.GeneratedDocuments {
		mark := "☐"
		if d.Status == types.DocGenerated {
			mark = "✓"
		}
		fmt.Fprintf(&b, "- [%s] %s (%s)\n", mark, d.Filename, d.Type)
	}

	b.WriteString("\n## Manual Documents Required\n")
	for _, d := range p.ManualDocuments {
		req := "[OPTIONAL]"
		if d.Required {
			req = "[REQUIRED]"
		}
		fmt.Fprintf(&b, "\n### %s %s\n\n**Description:** %s\n\n**Instructions:** %s\n", req, d.Type, d.Description, d.Instructions)
	}

	b.WriteString("\n## Quality Checks\n\n")
	for _, q := range p.QualityChecks {
		fmt.Fprintf(&b, "- [%s] %s\n", q.Status.Mark(), q.Check)
		if q.Notes != "" {
			fmt.Fprintf(&b, "  %s\n", q.Notes)
		}
	}

	b.WriteString("\n## Submission Guidelines\n\n")
	numbered(&b, p.SubmissionGuidelines)
	b.WriteString("\n## Next Steps\n\n")
	numbered(&b, p.NextSteps)
	return b.String()
}

// DocumentFilename returns the on-disk name of a generated document: the
// model-supplied filename, or "<type><ext>" when it is blank.
func DocumentFilename(d types.GeneratedDocument) string {
	if strings.TrimSpace(d.Filename) != "" {
		return d.Filename
	}
	return string(d.Type) + d.Format.Ext()
}

// PackageFilenames returns the sanitized file name of every document with
// content, in order; documents without content get "". A name that repeats
// gets "-2", "-3", ... before its extension.
func PackageFilenames(docs []types.GeneratedDocument) []string {
	names := make([]string, len(docs))
	seen := make(map[string]bool, len(docs))
	for i, d := range docs {
		if d.Content == "" {
			continue
		}
		name := SafeName(DocumentFilename(d))
		ext := filepath.Ext(name)
		base := strings.TrimSuffix(name, ext)
		for n := 2; seen[name]; n++ {
			name = fmt.Sprintf("%s-%d%s", base, n, ext)
		}
		seen[name] = true
		names[i] = name
	}
	return names
}
