package stage

import (
	"fmt"
	"time"

	"github.com/haricheung/grantflow/internal/types"
)

// Code is the stage-specific error code carried by a failed Result.
type Code string

const (
	CodeGrantAnalysis Code = "GRANT_ANALYSIS_ERROR"
	CodeFeasibility   Code = "FEASIBILITY_EVALUATION_ERROR"
	CodeProposal      Code = "PROPOSAL_GENERATION_ERROR"
	CodeReview        Code = "REVIEW_ERROR"
	CodePackage       Code = "APPLICATION_PACKAGE_ERROR"
)

// CodeFor returns the error code of s.
func CodeFor(s types.Stage) Code {
	switch s {
	case types.StageAnalysis:
		return CodeGrantAnalysis
	case types.StageFeasibility:
		return CodeFeasibility
	case types.StageWriting:
		return CodeProposal
	case types.StageReview:
		return CodeReview
	case types.StagePackage:
		return CodePackage
	default:
		return Code(fmt.Sprintf("%s_ERROR", s.Label()))
	}
}

// Error is the failure half of a Result.
type Error struct {
	Stage   types.Stage
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s [%s]: %s", e.Stage, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Meta is the accounting of one Execute call, present on both outcomes.
// Token counts and stop reason are zero when the model was never reached.
type Meta struct {
	Stage        types.Stage
	Iteration    int
	Model        string
	MaxTokens    int
	InputTokens  int
	OutputTokens int
	StopReason   string
	Duration     time.Duration
	System       string
	User         string
	Response     string
}

// Result holds exactly one of data or a failure.
type Result[T any] struct {
	data T
	err  *Error
	Meta Meta
}

// Succeeded wraps data.
func Succeeded[T any](data T, meta Meta) Result[T] {
	return Result[T]{data: data, Meta: meta}
}

// Failed wraps err, which must be non-nil.
func Failed[T any](err *Error, meta Meta) Result[T] {
	if err == nil {
		err = &Error{Stage: meta.Stage, Code: CodeFor(meta.Stage), Message: "unknown failure"}
	}
	return Result[T]{err: err, Meta: meta}
}

// OK reports success.
func (r Result[T]) OK() bool { return r.err == nil }

// Data returns the payload; the zero value when the stage failed.
func (r Result[T]) Data() T { return r.data }

// Failure returns the stage error, or nil on success.
func (r Result[T]) Failure() *Error { return r.err }

// Err returns the failure as an error, or a nil interface on success.
func (r Result[T]) Err() error {
	if r.err == nil {
		return nil
	}
	return r.err
}
