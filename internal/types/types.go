package types

import "time"

// Stage identifies one pipeline stage. The value doubles as the agent name in
// run-history records and as the artifact key of the stage's output.
type Stage string

const (
	StageAnalysis    Stage = "analysis"
	StageFeasibility Stage = "feasibility"
	StageWriting     Stage = "writing"
	StageReview      Stage = "review"
	StagePackage     Stage = "package"
)

// Stages lists every stage in execution order.
var Stages = []Stage{StageAnalysis, StageFeasibility, StageWriting, StageReview, StagePackage}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	switch s {
	case StageAnalysis, StageFeasibility, StageWriting, StageReview, StagePackage:
		return true
	}
	return false
}

// Label is the upper-case log prefix for s, e.g. "REVIEW".
func (s Stage) Label() string {
	switch s {
	case StageAnalysis:
		return "ANALYSIS"
	case StageFeasibility:
		return "FEASIBILITY"
	case StageWriting:
		return "WRITING"
	case StageReview:
		return "REVIEW"
	case StagePackage:
		return "PACKAGE"
	default:
		return "STAGE"
	}
}

// State is a pipeline state.
type State string

const (
	StateAnalyze           State = "ANALYZE"
	StateAssessFeasibility State = "ASSESS_FEASIBILITY"
	StateGenerate          State = "GENERATE"
	StateReview            State = "REVIEW"
	StatePackage           State = "PACKAGE"
	StateDone              State = "DONE"
	StateFailed            State = "FAILED"
)

// Terminal reports whether no further transition leaves s.
func (s State) Terminal() bool { return s == StateDone || s == StateFailed }

// Language selects the localization directive of the writing prompt.
type Language string

const (
	LangEnglish   Language = "en"
	LangRussian   Language = "ru"
	LangUkrainian Language = "uk"
)

// ParseLanguage maps s onto the closed language set. Unknown or empty codes
// resolve to English.
func ParseLanguage(s string) Language {
	switch l := Language(s); l {
	case LangEnglish, LangRussian, LangUkrainian:
		return l
	default:
		return LangEnglish
	}
}

// Valid reports whether l is one of the supported codes.
func (l Language) Valid() bool {
	switch l {
	case LangEnglish, LangRussian, LangUkrainian:
		return true
	}
	return false
}

// StageRunRecord is the audit record of one stage invocation.
type StageRunRecord struct {
	ID           string    `json:"id"`
	RunID        string    `json:"run_id"`
	Agent        Stage     `json:"agent"`
	Topic        string    `json:"topic"` // grant title
	Iteration    int       `json:"iteration"`
	Success      bool      `json:"success"`
	Score        *float64  `json:"score,omitempty"`
	MaxScore     *float64  `json:"max_score,omitempty"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	DurationMs   int64     `json:"duration_ms"`
	Model        string    `json:"model"`
	StopReason   string    `json:"stop_reason,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	Summary      string    `json:"summary,omitempty"`
	Feedback     []string  `json:"feedback"`
	CreatedAt    time.Time `json:"created_at"`
}

// MessageType identifies the payload type of a bus message
type MessageType string

const (
	MsgRunBegin   MessageType = "RunBegin"   // payload RunBegin
	MsgStageBegin MessageType = "StageBegin" // payload StageEvent
	MsgStageEnd   MessageType = "StageEnd"   // payload StageEvent
	MsgIteration  MessageType = "Iteration"  // payload IterationVerdict
	MsgRunEnd     MessageType = "RunEnd"     // payload RunEnd
)

// Message is the envelope for every progress event on the bus
type Message struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	RunID     string      `json:"run_id"`
	Stage     Stage       `json:"stage,omitempty"`
	Type      MessageType `json:"type"`
	Payload   any         `json:"payload"`
}

// RunBegin opens a pipeline run.
type RunBegin struct {
	Namespace     string   `json:"namespace"`
	Organization  string   `json:"organization"`
	Language      Language `json:"language"`
	MaxIterations int      `json:"max_iterations"`
	MinScorePct   int      `json:"min_score_percentage"`
}

// StageEvent describes a stage starting or finishing.
type StageEvent struct {
	Stage        Stage  `json:"stage"`
	Iteration    int    `json:"iteration,omitempty"`
	Model        string `json:"model,omitempty"`
	Success      bool   `json:"success"`
	Code         string `json:"code,omitempty"`
	Error        string `json:"error,omitempty"`
	DurationMs   int64  `json:"duration_ms,omitempty"`
	InputTokens  int    `json:"input_tokens,omitempty"`
	OutputTokens int    `json:"output_tokens,omitempty"`
	StopReason   string `json:"stop_reason,omitempty"`
}

// IterationVerdict is one point of the refine-loop trajectory.
type IterationVerdict struct {
	Iteration     int     `json:"iteration"`
	OverallScore  float64 `json:"overall_score"`
	MaxScore      float64 `json:"max_score"`
	ScorePct      int     `json:"score_pct"`
	ReadyToSubmit bool    `json:"ready_to_submit"`
	GatePassed    bool    `json:"gate_passed"`
}

// RunEnd closes a pipeline run.
type RunEnd struct {
	State      State  `json:"state"`
	Iterations int    `json:"iterations"`
	ScorePct   int    `json:"score_pct"`
	GatePassed bool   `json:"gate_passed"`
	FailedAt   Stage  `json:"failed_at,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}
