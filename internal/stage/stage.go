// Package stage is the shared shape of every pipeline step: render a prompt,
// invoke the model, parse the reply into a typed artifact, and wrap the
// outcome as a Result carrying a stage-specific error code.
package stage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/haricheung/grantflow/internal/llm"
	"github.com/haricheung/grantflow/internal/types"
)

// Temperature is the sampling temperature of every stage.
const Temperature = 1.0

// Settings is the model configuration of one stage.
type Settings struct {
	Model     string `mapstructure:"model" json:"model"`
	MaxTokens int    `mapstructure:"max_tokens" json:"max_tokens"`
}

// DefaultSettings returns the built-in model configuration of s.
func DefaultSettings(s types.Stage) Settings {
	switch s {
	case types.StageWriting:
		return Settings{Model: "claude-opus-4-1", MaxTokens: 32768}
	case types.StageReview:
		return Settings{Model: "claude-opus-4-1", MaxTokens: 16384}
	case types.StageAnalysis, types.StageFeasibility, types.StagePackage:
		return Settings{Model: "claude-sonnet-4-5", MaxTokens: 8192}
	default:
		return Settings{Model: "claude-sonnet-4-5", MaxTokens: 8192}
	}
}

// Memory supplies a digest of prior runs for a stage and topic.
type Memory interface {
	Digest(ctx context.Context, stage types.Stage, topic string) (string, error)
}

// Recorder persists one record per invocation.
type Recorder interface {
	Record(ctx context.Context, rec types.StageRunRecord) error
}

// Assessment is the stage-specific part of a success record.
type Assessment struct {
	Score    *float64
	MaxScore *float64
	Summary  string
	Feedback []string
}

// Config binds the pure parts of a stage. Render must be deterministic.
type Config[In, Out any] struct {
	Stage     types.Stage
	System    string
	Render    func(in In, memory string) string
	Settings  Settings
	Normalize func(*Out)
	Check     func(*Out) error
	Topic     func(In) string
	Assess    func(In, Out) Assessment
}

type options struct {
	memory   Memory
	recorder Recorder
	now      func() time.Time
}

// Option configures the collaborators of a Stage.
type Option func(*options)

// WithMemory makes the stage fetch a digest before rendering. Requires Config.Topic.
func WithMemory(m Memory) Option { return func(o *options) { o.memory = m } }

// WithRecorder makes the stage persist a StageRunRecord on success and failure.
func WithRecorder(r Recorder) Option { return func(o *options) { o.recorder = r } }

// WithClock overrides time.Now for durations and record timestamps.
func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

// Stage is a generic runner over a Config.
type Stage[In, Out any] struct {
	cfg    Config[In, Out]
	model  llm.Model
	logger *slog.Logger
	tag    string
	code   Code
	opts   options
}

// New builds a Stage. A nil logger discards output.
func New[In, Out any](cfg Config[In, Out], model llm.Model, logger *slog.Logger, opts ...Option) *Stage[In, Out] {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	o := options{now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}
	return &Stage[In, Out]{
		cfg:    cfg,
		model:  model,
		logger: logger.With("stage", string(cfg.Stage)),
		tag:    "[" + cfg.Stage.Label() + "]",
		code:   CodeFor(cfg.Stage),
		opts:   o,
	}
}

// Name returns the stage identity.
func (s *Stage[In, Out]) Name() types.Stage { return s.cfg.Stage }

// Settings returns the model configuration in effect.
func (s *Stage[In, Out]) Settings() Settings { return s.cfg.Settings }

// Execute renders, invokes, parses and wraps. It never panics on model or
// parse failures and always returns exactly one of data or failure.
//
// Expectations:
//   - Fetches a memory digest first when WithMemory and Config.Topic are set; digest errors degrade to ""
//   - Sends Settings and the rendered prompt as one request
//   - Decodes via llm.Decode, then applies Normalize and Check
//   - Wraps transport, shape, parse and validation errors as *Error with the stage code
//   - Records a StageRunRecord on both paths when WithRecorder is set; record errors are logged and ignored
func (s *Stage[In, Out]) Execute(ctx context.Context, in In) Result[Out] {
	run := RunFrom(ctx)
	start := s.opts.now()
	meta := Meta{
		Stage:     s.cfg.Stage,
		Iteration: run.Iteration,
		Model:     s.cfg.Settings.Model,
		MaxTokens: s.cfg.Settings.MaxTokens,
	}

	var topic string
	if s.cfg.Topic != nil {
		topic = s.cfg.Topic(in)
	}
	memory := s.digest(ctx, topic)

	req := llm.Request{
		Model:       s.cfg.Settings.Model,
		MaxTokens:   s.cfg.Settings.MaxTokens,
		Temperature: Temperature,
		System:      s.cfg.System,
		User:        s.cfg.Render(in, memory),
	}
	meta.System, meta.User = req.System, req.User

	s.logger.Info(s.tag+" calling model",
		"model", req.Model, "max_tokens", req.MaxTokens, "temperature", req.Temperature,
		"prompt_chars", len(req.User), "memory", memory != "", "iteration", run.Iteration)

	resp, err := s.model.Complete(ctx, req)
	meta.Duration = s.opts.now().Sub(start)
	if err != nil {
		s.logger.Error(s.tag+" model call failed", "duration_ms", meta.Duration.Milliseconds(), "error", err)
		return s.fail(ctx, run, topic, meta, err)
	}
	meta.Response = resp.Text
	meta.InputTokens = resp.Usage.InputTokens
	meta.OutputTokens = resp.Usage.OutputTokens
	meta.StopReason = resp.StopReason
	if resp.Model != "" {
		meta.Model = resp.Model
	}
	s.logger.Info(s.tag+" model responded",
		"duration_ms", meta.Duration.Milliseconds(), "input_tokens", meta.InputTokens,
		"output_tokens", meta.OutputTokens, "stop_reason", meta.StopReason)

	out, err := llm.Decode[Out](resp.Text)
	if err != nil {
		s.logger.Error(s.tag+" response did not parse", "stop_reason", meta.StopReason, "error", err)
		return s.fail(ctx, run, topic, meta, err)
	}
	if s.cfg.Normalize != nil {
		s.cfg.Normalize(&out)
	}
	if s.cfg.Check != nil {
		if err := s.cfg.Check(&out); err != nil {
			err = fmt.Errorf("%w: %v", llm.ErrValidation, err)
			s.logger.Error(s.tag+" response failed validation", "error", err)
			return s.fail(ctx, run, topic, meta, err)
		}
	}

	var a Assessment
	if s.cfg.Assess != nil {
		a = s.cfg.Assess(in, out)
	}
	s.record(ctx, run, topic, meta, a, nil)
	return Succeeded(out, meta)
}

func (s *Stage[In, Out]) fail(ctx context.Context, run Run, topic string, meta Meta, err error) Result[Out] {
	serr := &Error{Stage: s.cfg.Stage, Code: s.code, Message: err.Error(), Err: err}
	s.record(ctx, run, topic, meta, Assessment{}, serr)
	return Failed[Out](serr, meta)
}

func (s *Stage[In, Out]) digest(ctx context.Context, topic string) string {
	if s.opts.memory == nil || s.cfg.Topic == nil {
		return ""
	}
	d, err := s.opts.memory.Digest(ctx, s.cfg.Stage, topic)
	if err != nil {
		s.logger.Warn(s.tag+" memory unavailable; continuing without it", "topic", topic, "error", err)
		return ""
	}
	return d
}

func (s *Stage[In, Out]) record(ctx context.Context, run Run, topic string, meta Meta, a Assessment, failure *Error) {
	if s.opts.recorder == nil {
		return
	}
	rec := types.StageRunRecord{
		RunID:        run.ID,
		Agent:        s.cfg.Stage,
		Topic:        topic,
		Iteration:    run.Iteration,
		Success:      failure == nil,
		Score:        a.Score,
		MaxScore:     a.MaxScore,
		InputTokens:  meta.InputTokens,
		OutputTokens: meta.OutputTokens,
		DurationMs:   meta.Duration.Milliseconds(),
		Model:        meta.Model,
		StopReason:   meta.StopReason,
		Summary:      a.Summary,
		Feedback:     a.Feedback,
		CreatedAt:    s.opts.now().UTC(),
	}
	if failure != nil {
		rec.ErrorMessage = failure.Message
	}
	if rec.Feedback == nil {
		rec.Feedback = []string{}
	}
	if err := s.opts.recorder.Record(ctx, rec); err != nil {
		s.logger.Warn(s.tag+" failed to record run; result unaffected", "error", err)
	}
}
