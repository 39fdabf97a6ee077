// Package tasklog writes one JSONL file per pipeline run.
//
// Events capture every step of a run: stage begin/end, each model call with
// its full prompts and response, and the reviewer verdict of each refine
// cycle. The file is the raw record for debugging a run after the fact.
//
// Design constraints:
//   - All RunLog methods are nil-safe (no-op on nil receiver), so the pipeline
//     does not need nil checks before every log call.
//   - Registry is the sole owner of JSONL persistence; nothing else opens the files.
package tasklog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/haricheung/grantflow/internal/types"
)

// EventKind labels a single structured event in the run log.
type EventKind string

const (
	KindRunBegin   EventKind = "run_begin"
	KindRunEnd     EventKind = "run_end"
	KindStageBegin EventKind = "stage_begin"
	KindStageEnd   EventKind = "stage_end"
	KindLLMCall    EventKind = "llm_call"
	KindIteration  EventKind = "iteration"
)

// Event is one JSONL line in the run log.
// Fields are omitempty so each event only serialises relevant data.
type Event struct {
	Kind      EventKind `json:"kind"`
	Timestamp string    `json:"ts"`

	// run_begin / run_end
	RunID       string      `json:"run_id,omitempty"`
	Source      string      `json:"source,omitempty"`
	Status      string      `json:"status,omitempty"` // run: "DONE" | "FAILED"; stage: "ok" | "failed"
	ElapsedMs   int64       `json:"elapsed_ms,omitempty"`
	TotalTokens int         `json:"total_tokens,omitempty"`
	StageStats  []StageStat `json:"stage_stats,omitempty"` // run_end only

	// stage_begin / stage_end / llm_call
	Stage     types.Stage `json:"stage,omitempty"`
	Iteration int         `json:"iteration,omitempty"`
	Code      string      `json:"code,omitempty"`
	Error     string      `json:"error,omitempty"`

	// llm_call
	Model        string `json:"model,omitempty"`
	SystemPrompt string `json:"system_prompt,omitempty"`
	UserPrompt   string `json:"user_prompt,omitempty"`
	Response     string `json:"response,omitempty"`
	InputTokens  int    `json:"input_tokens,omitempty"`
	OutputTokens int    `json:"output_tokens,omitempty"`
	StopReason   string `json:"stop_reason,omitempty"`

	// iteration
	Score         *float64 `json:"score,omitempty"`
	MaxScore      *float64 `json:"max_score,omitempty"`
	ScorePct      *int     `json:"score_pct,omitempty"`
	ReadyToSubmit *bool    `json:"ready_to_submit,omitempty"` // pointer: false must be serialised
	GatePassed    *bool    `json:"gate_passed,omitempty"`
}

// StageStat summarises model usage for one stage across all calls in a run.
type StageStat struct {
	Stage        types.Stage `json:"stage"`
	Calls        int         `json:"calls"`
	InputTokens  int         `json:"input_tokens"`
	OutputTokens int         `json:"output_tokens"`
	ElapsedMs    int64       `json:"elapsed_ms"`
}

type stageStat struct {
	calls        int
	inputTokens  int
	outputTokens int
	elapsedMs    int64
}

// RunLog is a handle for writing structured events for one run.
//
// Expectations:
//   - All methods are nil-safe (no-op when called on nil *RunLog)
//   - Concurrent writes are safe (mutex-protected)
//   - TotalTokens returns the running sum of input+output tokens across all LLMCall events
type RunLog struct {
	runID        string
	started      time.Time
	mu           sync.Mutex
	f            *os.File
	logger       *slog.Logger
	inputTokens  int
	outputTokens int
	stageStats   map[types.Stage]*stageStat
}

// Registry maps run IDs to open RunLogs.
//
// Expectations:
//   - Open creates the log directory if absent
//   - Open writes a run_begin event as the first JSONL line
//   - Open returns the existing log without re-opening when called twice for the same runID
//   - Get returns nil for unknown run IDs
//   - Close writes run_end with status, elapsed_ms, total_tokens and stage stats before flushing
//   - Close removes the runID from the registry so subsequent Get returns nil
//   - Close no-ops gracefully when runID is not registered
type Registry struct {
	dir    string
	logger *slog.Logger
	mu     sync.Mutex
	logs   map[string]*RunLog
	cache  map[string][]StageStat
}

// NewRegistry creates a Registry that writes one JSONL file per run under dir.
// A nil logger discards write errors.
func NewRegistry(dir string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{
		dir:    dir,
		logger: logger,
		logs:   make(map[string]*RunLog),
		cache:  make(map[string][]StageStat),
	}
}

// Path returns the JSONL file of runID.
func (r *Registry) Path(runID string) string {
	return filepath.Join(r.dir, runID+".jsonl")
}

// Open creates a RunLog for runID, writes a run_begin event, and registers it.
// It returns nil (a valid no-op log) when the file cannot be created.
func (r *Registry) Open(runID, source string) *RunLog {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if rl, ok := r.logs[runID]; ok {
		return rl
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		r.logger.Error("[RUNLOG] could not create dir", "dir", r.dir, "error", err)
		return nil
	}
	path := r.Path(runID)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		r.logger.Error("[RUNLOG] could not open log file", "path", path, "error", err)
		return nil
	}

	rl := &RunLog{runID: runID, started: time.Now(), f: f, logger: r.logger, stageStats: make(map[types.Stage]*stageStat)}
	r.logs[runID] = rl
	rl.write(Event{Kind: KindRunBegin, RunID: runID, Source: source})
	return rl
}

// Get returns the RunLog for runID, or nil if not found.
func (r *Registry) Get(runID string) *RunLog {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.logs[runID]
}

// Close writes a run_end event, closes the file, and removes the entry from
// the registry. Safe on a nil *Registry or unknown runID.
func (r *Registry) Close(runID, status string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	rl, ok := r.logs[runID]
	if !ok {
		r.mu.Unlock()
		return
	}
	stats := rl.StageStats()
	r.cache[runID] = stats
	delete(r.logs, runID)
	r.mu.Unlock()

	rl.write(Event{
		Kind:        KindRunEnd,
		RunID:       runID,
		Status:      status,
		ElapsedMs:   time.Since(rl.started).Milliseconds(),
		TotalTokens: rl.TotalTokens(),
		StageStats:  stats,
	})

	rl.mu.Lock()
	if rl.f != nil {
		_ = rl.f.Close()
		rl.f = nil
	}
	rl.mu.Unlock()
}

// GetStats returns and removes the stage stats cached by Close.
//
// Expectations:
//   - Returns nil for unknown runID
//   - Deletes the cache entry on first call (subsequent calls return nil)
func (r *Registry) GetStats(runID string) []StageStat {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.cache[runID]
	delete(r.cache, runID)
	return s
}

// StageBegin writes a stage_begin event.
func (rl *RunLog) StageBegin(s types.Stage, iteration int) {
	if rl == nil {
		return
	}
	rl.write(Event{Kind: KindStageBegin, Stage: s, Iteration: iteration})
}

// StageEnd writes a stage_end event. code and errMsg are empty on success.
func (rl *RunLog) StageEnd(s types.Stage, iteration int, code, errMsg string) {
	if rl == nil {
		return
	}
	status := "ok"
	if code != "" || errMsg != "" {
		status = "failed"
	}
	rl.write(Event{Kind: KindStageEnd, Stage: s, Iteration: iteration, Status: status, Code: code, Error: errMsg})
}

// Call is one model exchange as recorded in the log.
type Call struct {
	Stage        types.Stage
	Iteration    int
	Model        string
	System       string
	User         string
	Response     string
	InputTokens  int
	OutputTokens int
	StopReason   string
	ElapsedMs    int64
}

// LLMCall writes an llm_call event with full prompts, response and token counts.
//
// Expectations:
//   - Accumulates per-stage calls, tokens and elapsed time
//   - No-op on nil receiver
func (rl *RunLog) LLMCall(c Call) {
	if rl == nil {
		return
	}
	rl.mu.Lock()
	rl.inputTokens += c.InputTokens
	rl.outputTokens += c.OutputTokens
	ss := rl.stageStats[c.Stage]
	if ss == nil {
		ss = &stageStat{}
		rl.stageStats[c.Stage] = ss
	}
	ss.calls++
	ss.inputTokens += c.InputTokens
	ss.outputTokens += c.OutputTokens
	ss.elapsedMs += c.ElapsedMs
	rl.mu.Unlock()
	rl.write(Event{
		Kind:         KindLLMCall,
		Stage:        c.Stage,
		Iteration:    c.Iteration,
		Model:        c.Model,
		SystemPrompt: c.System,
		UserPrompt:   c.User,
		Response:     c.Response,
		InputTokens:  c.InputTokens,
		OutputTokens: c.OutputTokens,
		StopReason:   c.StopReason,
		ElapsedMs:    c.ElapsedMs,
	})
}

// Iteration writes the reviewer verdict of one refine cycle.
func (rl *RunLog) Iteration(v types.IterationVerdict) {
	if rl == nil {
		return
	}
	score, maxScore, pct := v.OverallScore, v.MaxScore, v.ScorePct
	ready, gate := v.ReadyToSubmit, v.GatePassed
	rl.write(Event{
		Kind:          KindIteration,
		Iteration:     v.Iteration,
		Score:         &score,
		MaxScore:      &maxScore,
		ScorePct:      &pct,
		ReadyToSubmit: &ready,
		GatePassed:    &gate,
	})
}

// StageStats returns per-stage usage in pipeline order. Stages that made no
// calls are omitted.
//
// Expectations:
//   - Returns one entry per stage that called LLMCall, ordered as types.Stages
//   - Calls, tokens and ElapsedMs are sums across that stage's calls
func (rl *RunLog) StageStats() []StageStat {
	if rl == nil {
		return nil
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	var out []StageStat
	for _, s := range types.Stages {
		ss, ok := rl.stageStats[s]
		if !ok {
			continue
		}
		out = append(out, StageStat{
			Stage:        s,
			Calls:        ss.calls,
			InputTokens:  ss.inputTokens,
			OutputTokens: ss.outputTokens,
			ElapsedMs:    ss.elapsedMs,
		})
	}
	return out
}

// TotalTokens returns the total token count accumulated so far.
//
// Expectations:
//   - Returns 0 on nil receiver
func (rl *RunLog) TotalTokens() int {
	if rl == nil {
		return 0
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.inputTokens + rl.outputTokens
}

// write appends one JSON line to the run log file.
func (rl *RunLog) write(e Event) {
	e.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	data, err := json.Marshal(e)
	if err != nil {
		rl.logger.Error("[RUNLOG] marshal event", "error", err)
		return
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.f == nil {
		return
	}
	if _, err = fmt.Fprintf(rl.f, "%s\n", data); err != nil {
		rl.logger.Error("[RUNLOG] write event", "error", err)
	}
}
