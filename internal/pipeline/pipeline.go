// Package pipeline drives one grant application run through its stages:
// analysis, feasibility, a quality-gated write/review loop, and packaging.
//
// Design constraints:
//   - Stages run strictly in sequence on the caller's goroutine
//   - Any stage failure is terminal: state FAILED, packaging never runs
//   - Artifact, bus and run-log side effects never change the outcome
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/haricheung/grantflow/internal/artifact"
	"github.com/haricheung/grantflow/internal/bus"
	"github.com/haricheung/grantflow/internal/roles/analyst"
	"github.com/haricheung/grantflow/internal/roles/assessor"
	"github.com/haricheung/grantflow/internal/roles/packager"
	"github.com/haricheung/grantflow/internal/roles/reviewer"
	"github.com/haricheung/grantflow/internal/roles/writer"
	"github.com/haricheung/grantflow/internal/stage"
	"github.com/haricheung/grantflow/internal/tasklog"
	"github.com/haricheung/grantflow/internal/types"
)

// Defaults of Options.
const (
	DefaultMaxIterations      = 2
	DefaultMinScorePercentage = 70
)

// Analyzer turns a grant call into a GrantAnalysis.
type Analyzer interface {
	Execute(ctx context.Context, in analyst.Input) stage.Result[types.GrantAnalysis]
}

// Assessor judges the organization's fit.
type Assessor interface {
	Execute(ctx context.Context, in assessor.Input) stage.Result[types.FeasibilityEvaluation]
}

// Writer drafts the proposal.
type Writer interface {
	Execute(ctx context.Context, in writer.Input) stage.Result[types.ScientificProposal]
}

// Reviewer scores a draft.
type Reviewer interface {
	Execute(ctx context.Context, in reviewer.Input) stage.Result[types.ReviewReport]
}

// Packager assembles the submission package.
type Packager interface {
	Execute(ctx context.Context, in packager.Input) stage.Result[types.ApplicationPackage]
}

// Stages are the five steps of a run.
type Stages struct {
	Analysis    Analyzer
	Feasibility Assessor
	Writing     Writer
	Review      Reviewer
	Package     Packager
}

// Options are the run parameters. A zero MaxIterations or MinScorePercentage
// takes its default.
type Options struct {
	Language           types.Language
	MaxIterations      int
	MinScorePercentage int
	BusinessContext    string
}

func (o Options) withDefaults() Options {
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	if o.MinScorePercentage <= 0 || o.MinScorePercentage > 100 {
		o.MinScorePercentage = DefaultMinScorePercentage
	}
	o.Language = types.ParseLanguage(string(o.Language))
	return o
}

// Deps are the optional collaborators of a Pipeline. Every field may be nil.
type Deps struct {
	Store   *artifact.Store
	Bus     *bus.Bus
	RunLogs *tasklog.Registry
	Logger  *slog.Logger
	Now     func() time.Time
	NewID   func() string
}

// Input is one run request.
type Input struct {
	GrantText    string
	Source       string
	Namespace    string
	Organization types.OrganizationProfile
}

// Outcome is everything a run produced. Artifact fields are nil for stages
// that never succeeded.
type Outcome struct {
	RunID       string
	State       types.State
	Analysis    *types.GrantAnalysis
	Feasibility *types.FeasibilityEvaluation
	Proposal    *types.ScientificProposal
	Review      *types.ReviewReport
	Package     *types.ApplicationPackage
	Trajectory  []types.IterationVerdict
	GatePassed  bool
	Failure     *stage.Error
	Summary     Summary
}

// Pipeline runs grant applications end to end.
type Pipeline struct {
	stages Stages
	opts   Options
	store  *artifact.Store
	bus    *bus.Bus
	logs   *tasklog.Registry
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// New builds a Pipeline. Out-of-range options fall back to their defaults.
func New(stages Stages, opts Options, deps Deps) *Pipeline {
	p := &Pipeline{
		stages: stages,
		opts:   opts.withDefaults(),
		store:  deps.Store,
		bus:    deps.Bus,
		logs:   deps.RunLogs,
		logger: deps.Logger,
		now:    deps.Now,
		newID:  deps.NewID,
	}
	if p.logger == nil {
		p.logger = slog.New(slog.DiscardHandler)
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.newID == nil {
		p.newID = uuid.NewString
	}
	return p
}

// Options returns the effective run parameters.
func (p *Pipeline) Options() Options { return p.opts }

// Gate returns the review's score percentage and whether it clears the
// quality gate: pct >= minPct and the reviewer marked it ready to submit.
func Gate(r types.ReviewReport, minPct int) (int, bool) {
	pct := r.ScorePct()
	return pct, pct >= minPct && r.ReadyToSubmit
}

// run is the mutable state of one Run call.
type run struct {
	*Pipeline
	id      string
	in      Input
	out     *Outcome
	started time.Time
	log     *tasklog.RunLog
	usage   map[types.Stage]*tasklog.StageStat
}

// Run executes the state machine
//
//	ANALYZE → ASSESS_FEASIBILITY → (GENERATE → REVIEW)* → PACKAGE → DONE
//
// with FAILED reachable from every non-terminal state.
//
// Expectations:
//   - The refine loop stops when the gate passes or after MaxIterations cycles
//   - A run that exhausts its iterations without passing is still packaged
//   - From the second cycle on the writer receives the previous review
//   - A stage failure returns the Outcome so far and a *stage.Error naming the stage
//   - A cancelled ctx fails the stage that was about to start
func (p *Pipeline) Run(ctx context.Context, in Input) (*Outcome, error) {
	r := &run{
		Pipeline: p,
		id:       p.newID(),
		in:       in,
		started:  p.now(),
		usage:    make(map[types.Stage]*tasklog.StageStat),
	}
	r.out = &Outcome{RunID: r.id, State: types.StateAnalyze}
	r.log = p.logs.Open(r.id, in.Source)
	r.begin()

	iteration := 0
	for state := types.StateAnalyze; !state.Terminal(); {
		if err := ctx.Err(); err != nil {
			state = r.cancelled(state, iteration, err)
			r.out.State = state
			break
		}
		r.out.State = state
		p.logger.Debug("[PIPELINE] state", "run_id", r.id, "state", state, "iteration", iteration)

		switch state {
		case types.StateAnalyze:
			state = r.analyze(ctx)
		case types.StateAssessFeasibility:
			state = r.assess(ctx)
		case types.StateGenerate:
			iteration++
			state = r.generate(ctx, iteration)
		case types.StateReview:
			state = r.review(ctx, iteration)
		case types.StatePackage:
			state = r.pack(ctx)
		default:
			state = types.StateFailed
		}
		r.out.State = state
	}

	r.finish(iteration)
	if r.out.Failure != nil {
		return r.out, r.out.Failure
	}
	return r.out, nil
}

func (r *run) analyze(ctx context.Context) types.State {
	r.persistText(artifact.GrantText, r.in.GrantText)
	a, ok := execute(ctx, r, types.StageAnalysis, 0, r.stages.Analysis.Execute,
		analyst.Input{GrantText: r.in.GrantText, Source: r.in.Source})
	if !ok {
		return types.StateFailed
	}
	r.out.Analysis = &a
	r.persistJSON(artifact.Analysis, a, types.StageAnalysis, 0)
	return types.StateAssessFeasibility
}

func (r *run) assess(ctx context.Context) types.State {
	f, ok := execute(ctx, r, types.StageFeasibility, 0, r.stages.Feasibility.Execute,
		assessor.Input{Analysis: *r.out.Analysis, Organization: r.in.Organization})
	if !ok {
		return types.StateFailed
	}
	r.out.Feasibility = &f
	r.persistJSON(artifact.Feasibility, f, types.StageFeasibility, 0)
	return types.StateGenerate
}

func (r *run) generate(ctx context.Context, iteration int) types.State {
	in := writer.Input{
		Analysis:        *r.out.Analysis,
		Organization:    r.in.Organization,
		Feasibility:     *r.out.Feasibility,
		Language:        r.opts.Language,
		BusinessContext: r.opts.BusinessContext,
		Previous:        r.out.Review,
	}
	prop, ok := execute(ctx, r, types.StageWriting, iteration, r.stages.Writing.Execute, in)
	if !ok {
		return types.StateFailed
	}
	r.out.Proposal = &prop
	r.persistJSON(artifact.Proposal, prop, types.StageWriting, iteration)
	r.persistJSON(artifact.Proposal.Iteration(iteration), prop, types.StageWriting, iteration)
	r.persistDocument(artifact.ProposalMD, artifact.ProposalMarkdown(r.out.Analysis.GrantTitle, prop), types.StageWriting, iteration)
	return types.StateReview
}

func (r *run) review(ctx context.Context, iteration int) types.State {
	rev, ok := execute(ctx, r, types.StageReview, iteration, r.stages.Review.Execute,
		reviewer.Input{Analysis: *r.out.Analysis, Proposal: *r.out.Proposal})
	if !ok {
		return types.StateFailed
	}
	r.out.Review = &rev
	r.persistJSON(artifact.Review, rev, types.StageReview, iteration)
	r.persistJSON(artifact.Review.Iteration(iteration), rev, types.StageReview, iteration)
	r.persistDocument(artifact.ReviewMD, artifact.ReviewMarkdown(r.out.Analysis.GrantTitle, rev), types.StageReview, iteration)

	pct, passed := Gate(rev, r.opts.MinScorePercentage)
	v := types.IterationVerdict{
		Iteration:     iteration,
		OverallScore:  rev.OverallScore,
		MaxScore:      rev.MaxScore,
		ScorePct:      pct,
		ReadyToSubmit: rev.ReadyToSubmit,
		GatePassed:    passed,
	}
	r.out.Trajectory = append(r.out.Trajectory, v)
	r.out.GatePassed = passed
	r.log.Iteration(v)
	r.publish(types.MsgIteration, types.StageReview, v)
	r.logger.Info("[PIPELINE] review verdict",
		"run_id", r.id, "iteration", iteration, "score", rev.OverallScore, "max_score", rev.MaxScore,
		"score_pct", pct, "ready_to_submit", rev.ReadyToSubmit, "gate_passed", passed)

	switch {
	case passed:
		return types.StatePackage
	case iteration >= r.opts.MaxIterations:
		r.logger.Warn("[PIPELINE] iteration cap reached without passing the quality gate; packaging the last draft",
			"run_id", r.id, "iterations", iteration, "score_pct", pct, "min_score_pct", r.opts.MinScorePercentage)
		return types.StatePackage
	default:
		return types.StateGenerate
	}
}

func (r *run) pack(ctx context.Context) types.State {
	pkg, ok := execute(ctx, r, types.StagePackage, 0, r.stages.Package.Execute, packager.Input{
		Analysis:     *r.out.Analysis,
		Organization: r.in.Organization,
		Proposal:     *r.out.Proposal,
		Review:       *r.out.Review,
	})
	if !ok {
		return types.StateFailed
	}
	r.out.Package = &pkg
	r.persistJSON(artifact.Package, pkg, types.StagePackage, 0)
	r.persistDocument(artifact.ChecklistMD, artifact.ChecklistMarkdown(pkg), types.StagePackage, 0)
	r.persistPackageFiles(pkg)
	return types.StateDone
}

// cancelled converts a context error into a failure of the stage that state
// would have run.
func (r *run) cancelled(state types.State, iteration int, err error) types.State {
	s := stageOf(state)
	ferr := &stage.Error{Stage: s, Code: stage.CodeFor(s), Message: err.Error(), Err: err}
	r.fail(ferr, iteration)
	return types.StateFailed
}

func (r *run) fail(ferr *stage.Error, iteration int) {
	r.out.Failure = ferr
	r.logger.Error("[PIPELINE] stage failed; aborting run",
		"run_id", r.id, "stage", ferr.Stage, "code", ferr.Code, "iteration", iteration, "error", ferr.Message)
}

func stageOf(state types.State) types.Stage {
	switch state {
	case types.StateAnalyze:
		return types.StageAnalysis
	case types.StateAssessFeasibility:
		return types.StageFeasibility
	case types.StateGenerate:
		return types.StageWriting
	case types.StateReview:
		return types.StageReview
	default:
		return types.StagePackage
	}
}

// execute runs one stage call with its bookkeeping: bus and run-log events,
// token accounting, and failure capture.
func execute[In, Out any](ctx context.Context, r *run, s types.Stage, iteration int,
	fn func(context.Context, In) stage.Result[Out], in In) (Out, bool) {

	r.log.StageBegin(s, iteration)
	r.publish(types.MsgStageBegin, s, types.StageEvent{Stage: s, Iteration: iteration})

	res := fn(stage.WithRun(ctx, stage.Run{ID: r.id, Iteration: iteration}), in)
	m := res.Meta
	r.account(s, m)
	r.log.LLMCall(tasklog.Call{
		Stage:        s,
		Iteration:    iteration,
		Model:        m.Model,
		System:       m.System,
		User:         m.User,
		Response:     m.Response,
		InputTokens:  m.InputTokens,
		OutputTokens: m.OutputTokens,
		StopReason:   m.StopReason,
		ElapsedMs:    m.Duration.Milliseconds(),
	})

	ev := types.StageEvent{
		Stage:        s,
		Iteration:    iteration,
		Model:        m.Model,
		Success:      res.OK(),
		DurationMs:   m.Duration.Milliseconds(),
		InputTokens:  m.InputTokens,
		OutputTokens: m.OutputTokens,
		StopReason:   m.StopReason,
	}
	if f := res.Failure(); f != nil {
		ev.Code, ev.Error = string(f.Code), f.Message
		r.log.StageEnd(s, iteration, string(f.Code), f.Message)
		r.publish(types.MsgStageEnd, s, ev)
		r.fail(f, iteration)
		var zero Out
		return zero, false
	}
	r.log.StageEnd(s, iteration, "", "")
	r.publish(types.MsgStageEnd, s, ev)
	return res.Data(), true
}

func (r *run) account(s types.Stage, m stage.Meta) {
	u := r.usage[s]
	if u == nil {
		u = &tasklog.StageStat{Stage: s}
		r.usage[s] = u
	}
	u.Calls++
	u.InputTokens += m.InputTokens
	u.OutputTokens += m.OutputTokens
	u.ElapsedMs += m.Duration.Milliseconds()
}

func (r *run) publish(t types.MessageType, s types.Stage, payload any) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(types.Message{RunID: r.id, Stage: s, Type: t, Payload: payload})
}

func (r *run) begin() {
	r.logger.Info("[PIPELINE] run started",
		"run_id", r.id, "source", r.in.Source, "namespace", r.in.Namespace, "organization", r.in.Organization.Name,
		"language", r.opts.Language, "max_iterations", r.opts.MaxIterations, "min_score_pct", r.opts.MinScorePercentage)
	r.publish(types.MsgRunBegin, "", types.RunBegin{
		Namespace:     r.in.Namespace,
		Organization:  r.in.Organization.Name,
		Language:      r.opts.Language,
		MaxIterations: r.opts.MaxIterations,
		MinScorePct:   r.opts.MinScorePercentage,
	})
}

func (r *run) finish(iterations int) {
	r.out.Summary = r.summarize(iterations)
	r.persistJSON(artifact.Summary, r.out.Summary, "", 0)

	end := types.RunEnd{
		State:      r.out.State,
		Iterations: iterations,
		ScorePct:   r.out.Summary.ScorePct,
		GatePassed: r.out.GatePassed,
		DurationMs: r.out.Summary.DurationMs,
	}
	if f := r.out.Failure; f != nil {
		end.FailedAt, end.Error = f.Stage, f.Error()
	}
	r.publish(types.MsgRunEnd, "", end)
	r.logs.Close(r.id, string(r.out.State))

	r.logger.Info("[PIPELINE] run finished",
		"run_id", r.id, "state", r.out.State, "iterations", iterations, "score_pct", end.ScorePct,
		"gate_passed", end.GatePassed, "duration_ms", end.DurationMs,
		"input_tokens", r.out.Summary.InputTokens, "output_tokens", r.out.Summary.OutputTokens)
}
