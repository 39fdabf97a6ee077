package pipeline

import (
	"time"

	"github.com/haricheung/grantflow/internal/tasklog"
	"github.com/haricheung/grantflow/internal/types"
)

// Summary is the condensed record of a run, written as pipeline-summary.json.
type Summary struct {
	RunID              string                   `json:"runId"`
	ExecutedAt         string                   `json:"executedAt"`
	State              types.State              `json:"state"`
	Source             string                   `json:"source,omitempty"`
	Namespace          string                   `json:"namespace,omitempty"`
	GrantTitle         string                   `json:"grantTitle"`
	Organization       string                   `json:"organization"`
	Language           types.Language           `json:"language"`
	Iterations         int                      `json:"iterations"`
	MaxIterations      int                      `json:"maxIterations"`
	FinalScore         float64                  `json:"finalScore"`
	MaxScore           float64                  `json:"maxScore"`
	ScorePct           int                      `json:"scorePct"`
	MinScorePct        int                      `json:"minScorePercentage"`
	ReadyToSubmit      bool                     `json:"readyToSubmit"`
	GatePassed         bool                     `json:"gatePassed"`
	FeasibilityChance  float64                  `json:"feasibilityChance"`
	Recommendation     string                   `json:"recommendation"`
	GeneratedDocuments int                      `json:"generatedDocuments"`
	ManualDocuments    int                      `json:"manualDocuments"`
	Trajectory         []types.IterationVerdict `json:"trajectory"`
	InputTokens        int                      `json:"inputTokens"`
	OutputTokens       int                      `json:"outputTokens"`
	DurationMs         int64                    `json:"durationMs"`
	Stages             []tasklog.StageStat      `json:"stages"`
	FailedAt           types.Stage              `json:"failedAt,omitempty"`
	ErrorCode          string                   `json:"errorCode,omitempty"`
	Error              string                   `json:"error,omitempty"`
}

// summarize condenses the outcome so far. It is valid for failed runs too.
func (r *run) summarize(iterations int) Summary {
	s := Summary{
		RunID:         r.id,
		ExecutedAt:    r.started.UTC().Format(time.RFC3339),
		State:         r.out.State,
		Source:        r.in.Source,
		Namespace:     r.in.Namespace,
		Organization:  r.in.Organization.Name,
		Language:      r.opts.Language,
		Iterations:    iterations,
		MaxIterations: r.opts.MaxIterations,
		MinScorePct:   r.opts.MinScorePercentage,
		GatePassed:    r.out.GatePassed,
		Trajectory:    r.out.Trajectory,
		DurationMs:    r.now().Sub(r.started).Milliseconds(),
		Stages:        []tasklog.StageStat{},
	}
	if s.Trajectory == nil {
		s.Trajectory = []types.IterationVerdict{}
	}
	if a := r.out.Analysis; a != nil {
		s.GrantTitle = a.GrantTitle
	}
	if f := r.out.Feasibility; f != nil {
		s.FeasibilityChance = f.OverallChance
		s.Recommendation = string(f.Recommendation)
	}
	if rev := r.out.Review; rev != nil {
		s.FinalScore, s.MaxScore = rev.OverallScore, rev.MaxScore
		s.ScorePct = rev.ScorePct()
		s.ReadyToSubmit = rev.ReadyToSubmit
	}
	if p := r.out.Package; p != nil {
		s.GeneratedDocuments = len(p.GeneratedDocuments)
		s.ManualDocuments = len(p.ManualDocuments)
	}
	for _, st := range types.Stages {
		u, ok := r.usage[st]
		if !ok {
			continue
		}
		s.Stages = append(s.Stages, *u)
		s.InputTokens += u.InputTokens
		s.OutputTokens += u.OutputTokens
	}
	if f := r.out.Failure; f != nil {
		s.FailedAt, s.ErrorCode, s.Error = f.Stage, string(f.Code), f.Message
	}
	return s
}
