package types

import (
	"fmt"
	"math"
)

// orEmpty returns s, or an empty non-nil slice when s is nil, so encoded
// artifacts always carry [] instead of null.
func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// Normalize replaces every absent list with an empty one.
func (g *GrantAnalysis) Normalize() {
	g.Objectives = orEmpty(g.Objectives)
	g.Requirements = orEmpty(g.Requirements)
	g.EvaluationCriteria = orEmpty(g.EvaluationCriteria)
	for i := range g.EvaluationCriteria {
		g.EvaluationCriteria[i].KeyIndicators = orEmpty(g.EvaluationCriteria[i].KeyIndicators)
	}
	g.Budget.Categories = orEmpty(g.Budget.Categories)
	for i := range g.Budget.Categories {
		g.Budget.Categories[i].Rules = orEmpty(g.Budget.Categories[i].Rules)
	}
	g.Timeline = orEmpty(g.Timeline)
	for i := range g.Timeline {
		g.Timeline[i].Deliverables = orEmpty(g.Timeline[i].Deliverables)
	}
	g.TargetBeneficiaries = orEmpty(g.TargetBeneficiaries)
	g.EligibleCountries = orEmpty(g.EligibleCountries)
	g.KeyThemes = orEmpty(g.KeyThemes)
	g.AdditionalNotes = orEmpty(g.AdditionalNotes)
}

// MandatoryRequirements returns the requirements flagged mandatory.
func (g GrantAnalysis) MandatoryRequirements() []Requirement {
	out := []Requirement{}
	for _, r := range g.Requirements {
		if r.Mandatory {
			out = append(out, r)
		}
	}
	return out
}

func normalizeMembers(ms []TeamMember) []TeamMember {
	ms = orEmpty(ms)
	for i := range ms {
		ms[i].Expertise = orEmpty(ms[i].Expertise)
		ms[i].RelevantProjects = orEmpty(ms[i].RelevantProjects)
	}
	return ms
}

// Normalize replaces every absent list with an empty one.
func (o *OrganizationProfile) Normalize() {
	o.TeamInfo.CoreTeam = normalizeMembers(o.TeamInfo.CoreTeam)
	o.TeamInfo.Advisors = normalizeMembers(o.TeamInfo.Advisors)
	o.TeamInfo.ExternalExperts = normalizeMembers(o.TeamInfo.ExternalExperts)
	o.TeamInfo.KeyCompetencies = orEmpty(o.TeamInfo.KeyCompetencies)
	o.Resources.Technical.Infrastructure = orEmpty(o.Resources.Technical.Infrastructure)
	o.Resources.Technical.Equipment = orEmpty(o.Resources.Technical.Equipment)
	o.Resources.Technical.Software = orEmpty(o.Resources.Technical.Software)
	o.Resources.Technical.ComputingResources = orEmpty(o.Resources.Technical.ComputingResources)
	o.Resources.Financial.FundingSources = orEmpty(o.Resources.Financial.FundingSources)
	o.Resources.Facilities = orEmpty(o.Resources.Facilities)
	o.Resources.Partnerships = orEmpty(o.Resources.Partnerships)
	o.TrackRecord.PreviousProjects = orEmpty(o.TrackRecord.PreviousProjects)
	o.TrackRecord.Publications = orEmpty(o.TrackRecord.Publications)
	o.TrackRecord.Awards = orEmpty(o.TrackRecord.Awards)
	o.TrackRecord.Patents = orEmpty(o.TrackRecord.Patents)
	o.TrackRecord.SuccessMetrics = orEmpty(o.TrackRecord.SuccessMetrics)
	o.Partnerships = orEmpty(o.Partnerships)
	o.SupportingDocuments = orEmpty(o.SupportingDocuments)
}

// Normalize replaces every absent list with an empty one.
func (f *FeasibilityEvaluation) Normalize() {
	f.MatchScore.Breakdown = orEmpty(f.MatchScore.Breakdown)
	f.Strengths = orEmpty(f.Strengths)
	f.Weaknesses = orEmpty(f.Weaknesses)
	f.Gaps = orEmpty(f.Gaps)
	f.Risks = orEmpty(f.Risks)
	f.RequiredActions = orEmpty(f.RequiredActions)
	f.StrategicRecommendations = orEmpty(f.StrategicRecommendations)
}

// Normalize replaces every absent list with an empty one.
func (p *ScientificProposal) Normalize() {
	p.Bibliography = orEmpty(p.Bibliography)
}

// Normalize replaces every absent list with an empty one.
func (r *ReviewReport) Normalize() {
	r.SectionScores = orEmpty(r.SectionScores)
	r.Strengths = orEmpty(r.Strengths)
	r.Weaknesses = orEmpty(r.Weaknesses)
	r.MissingElements = orEmpty(r.MissingElements)
	r.ImprovementPriorities = orEmpty(r.ImprovementPriorities)
	r.DetailedFeedback = orEmpty(r.DetailedFeedback)
	for i := range r.DetailedFeedback {
		r.DetailedFeedback[i].Comments = orEmpty(r.DetailedFeedback[i].Comments)
	}
}

// ScorePct is round(100 * overall / max), or 0 when max is not positive.
//
// Expectations:
//   - 71/100 → 71, 2/3 → 67, 1/200 → 1 (half rounds away from zero)
//   - maxScore <= 0 → 0
func (r ReviewReport) ScorePct() int {
	if r.MaxScore <= 0 {
		return 0
	}
	return int(math.Round(100 * r.OverallScore / r.MaxScore))
}

// HasCritical reports whether any weakness is critical.
func (r ReviewReport) HasCritical() bool {
	for _, w := range r.Weaknesses {
		if w.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// Validate checks the score invariant 0 <= overallScore <= maxScore with a
// positive maxScore.
func (r ReviewReport) Validate() error {
	if r.MaxScore <= 0 {
		return fmt.Errorf("maxScore must be positive, got %g", r.MaxScore)
	}
	if r.OverallScore < 0 || r.OverallScore > r.MaxScore {
		return fmt.Errorf("overallScore %g outside [0, %g]", r.OverallScore, r.MaxScore)
	}
	return nil
}

// Normalize replaces every absent list with an empty one.
func (a *ApplicationPackage) Normalize() {
	a.DocumentChecklist = orEmpty(a.DocumentChecklist)
	a.GeneratedDocuments = orEmpty(a.GeneratedDocuments)
	a.ManualDocuments = orEmpty(a.ManualDocuments)
	a.SubmissionGuidelines = orEmpty(a.SubmissionGuidelines)
	a.QualityChecks = orEmpty(a.QualityChecks)
	a.NextSteps = orEmpty(a.NextSteps)
}
