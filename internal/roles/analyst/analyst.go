// Package analyst is the analysis stage: it turns raw grant-call text into a
// structured GrantAnalysis.
package analyst

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/haricheung/grantflow/internal/llm"
	"github.com/haricheung/grantflow/internal/prompt"
	"github.com/haricheung/grantflow/internal/stage"
	"github.com/haricheung/grantflow/internal/types"
)

const systemPrompt = `You are a senior grant analyst. You read calls for proposals and extract what an applicant needs to know.

For every call, extract:
- the objectives and scope of the programme
- eligibility rules and other requirements, marking which are mandatory
- the evaluation criteria with their weights and maximum scores
- budget ceilings, categories and co-funding rules
- the timeline and its deliverables
- the geographic and thematic scope

Be complete and literal. Do not invent facts the call does not state; leave optional fields empty instead.

Always answer with a single JSON object matching the requested schema.`

const schema = `{
  "grantTitle": "string",
  "grantingOrganization": "string",
  "programName": "string (optional)",
  "deadline": "string (optional, ISO date when known)",
  "summary": "string (2-3 sentences)",
  "objectives": ["string"],
  "requirements": [
    {
      "category": "eligibility|technical|administrative|financial|other",
      "description": "string",
      "mandatory": boolean,
      "evidence": "string (optional, evidence the applicant must provide)"
    }
  ],
  "evaluationCriteria": [
    {
      "name": "string",
      "description": "string",
      "weight": number (0-100),
      "maxScore": number,
      "keyIndicators": ["string"]
    }
  ],
  "budget": {
    "totalAmount": "string (optional)",
    "categories": [
      {
        "category": "string",
        "description": "string",
        "minAmount": number (optional),
        "maxAmount": number (optional),
        "rules": ["string"]
      }
    ],
    "coFundingRequired": boolean,
    "coFundingPercentage": number (optional)
  },
  "timeline": [
    {"phase": "string", "duration": "string", "deliverables": ["string"]}
  ],
  "targetBeneficiaries": ["string"],
  "geographicScope": "string (optional)",
  "eligibleCountries": ["string"],
  "keyThemes": ["string"],
  "additionalNotes": ["string (details not captured elsewhere)"]
}`

var errEmpty = errors.New("analysis has neither a title nor a summary")

// Input is the raw grant call.
type Input struct {
	GrantText string
	// Source names where the text came from (file path or URL); used as the
	// history topic until a title is known.
	Source string
}

// Render builds the user prompt. memory is ignored: the analysis stage has no
// topic before it runs.
func Render(in Input, _ string) string {
	return "Analyze the grant call below and extract every relevant detail in structured form.\n\n" +
		prompt.Section("GRANT TEXT", in.GrantText) + "\n" +
		"Answer in this JSON format:\n" + schema + "\n\n" +
		"When the call does not state something, omit the optional field rather than guessing."
}

// Config returns the stage definition for settings.
func Config(settings stage.Settings) stage.Config[Input, types.GrantAnalysis] {
	return stage.Config[Input, types.GrantAnalysis]{
		Stage:     types.StageAnalysis,
		System:    systemPrompt,
		Render:    Render,
		Settings:  settings,
		Normalize: (*types.GrantAnalysis).Normalize,
		Check: func(g *types.GrantAnalysis) error {
			if g.GrantTitle == "" && g.Summary == "" {
				return errEmpty
			}
			return nil
		},
		Topic: func(in Input) string { return in.Source },
		Assess: func(_ Input, g types.GrantAnalysis) stage.Assessment {
			return stage.Assessment{
				Summary: g.GrantTitle + " (" + g.GrantingOrganization + ")",
				Feedback: []string{
					fmt.Sprintf("requirements: %d (%d mandatory)", len(g.Requirements), len(g.MandatoryRequirements())),
					fmt.Sprintf("evaluation criteria: %d", len(g.EvaluationCriteria)),
				},
			}
		},
	}
}

// New builds the analysis stage.
func New(model llm.Model, settings stage.Settings, logger *slog.Logger, opts ...stage.Option) *stage.Stage[Input, types.GrantAnalysis] {
	return stage.New(Config(settings), model, logger, opts...)
}
