// Package assessor is the feasibility stage: it scores how well an
// organization fits an analyzed grant and how likely it is to win.
package assessor

import (
	"fmt"
	"log/slog"

	"github.com/haricheung/grantflow/internal/llm"
	"github.com/haricheung/grantflow/internal/prompt"
	"github.com/haricheung/grantflow/internal/stage"
	"github.com/haricheung/grantflow/internal/types"
)

const systemPrompt = `You are a grant consultant who judges whether an organization should apply for a funding call.

Assess:
- compliance: can the organization apply at all
- competitiveness: can it win against likely applicants
- strengths and competitive advantages
- weaknesses, gaps and risks, each with a way to address them
- a realistic probability of success

Geographic eligibility follows the call. Countries associated with a programme are eligible even when they are not members; do not treat them as a weakness.

Be honest and specific. Always answer with a single JSON object matching the requested schema.`

const schema = `{
  "overallChance": number (0-100, realistic probability of winning),
  "recommendation": "highly_recommended|recommended|proceed_with_caution|not_recommended",
  "executiveSummary": "string (2-3 paragraphs)",
  "matchScore": {
    "overall": number (0-100),
    "breakdown": [
      {"category": "string", "score": number (0-100), "maxScore": 100, "explanation": "string"}
    ]
  },
  "strengths": [{"area": "string", "description": "string", "impact": "high|medium|low"}],
  "weaknesses": [{"area": "string", "description": "string", "severity": "critical|major|minor", "mitigation": "string (optional)"}],
  "gaps": [{"type": "team|resources|experience|technical|administrative", "description": "string", "severity": "critical|major|minor", "recommendation": "string"}],
  "risks": [{"category": "string", "description": "string", "probability": "high|medium|low", "impact": "high|medium|low", "mitigation": "string"}],
  "requiredActions": [{"priority": "critical|high|medium|low", "action": "string", "timeline": "string"}],
  "strategicRecommendations": ["string"]
}`

const considerations = `Weigh in particular:
1. Geographic eligibility
2. Technical and scientific capability
3. Team expertise and track record
4. Available resources
5. Compliance with every mandatory requirement
6. Position against likely competitors
7. Risks and how they can be mitigated`

// Input is an analyzed grant and the applicant.
type Input struct {
	Analysis     types.GrantAnalysis
	Organization types.OrganizationProfile
}

// Render builds the user prompt.
func Render(in Input, memory string) string {
	return "Evaluate whether this organization should apply for the analyzed grant.\n\n" +
		prompt.Section("GRANT ANALYSIS", prompt.JSON(in.Analysis)) + "\n" +
		prompt.Section("ORGANIZATION INFORMATION", prompt.JSON(in.Organization)) + "\n" +
		prompt.Memory(memory) +
		"Answer in this JSON format:\n" + schema + "\n\n" + considerations
}

// Config returns the stage definition for settings.
func Config(settings stage.Settings) stage.Config[Input, types.FeasibilityEvaluation] {
	return stage.Config[Input, types.FeasibilityEvaluation]{
		Stage:     types.StageFeasibility,
		System:    systemPrompt,
		Render:    Render,
		Settings:  settings,
		Normalize: (*types.FeasibilityEvaluation).Normalize,
		Check: func(f *types.FeasibilityEvaluation) error {
			if f.OverallChance < 0 || f.OverallChance > 100 {
				return fmt.Errorf("overallChance %v outside 0-100", f.OverallChance)
			}
			return nil
		},
		Topic: func(in Input) string { return in.Analysis.GrantTitle },
		Assess: func(_ Input, f types.FeasibilityEvaluation) stage.Assessment {
			score, maxScore := f.OverallChance, 100.0
			fb := make([]string, 0, len(f.Gaps))
			for _, g := range f.Gaps {
				if g.Severity == types.SeverityCritical || g.Severity == types.SeverityMajor {
					fb = append(fb, fmt.Sprintf("[%s] %s", g.Type, g.Description))
				}
			}
			return stage.Assessment{
				Score:    &score,
				MaxScore: &maxScore,
				Summary:  fmt.Sprintf("Feasibility: %.0f%%, %s", f.OverallChance, f.Recommendation.Label()),
				Feedback: fb,
			}
		},
	}
}

// New builds the feasibility stage.
func New(model llm.Model, settings stage.Settings, logger *slog.Logger, opts ...stage.Option) *stage.Stage[Input, types.FeasibilityEvaluation] {
	return stage.New(Config(settings), model, logger, opts...)
}
