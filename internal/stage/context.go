package stage

import "context"

// Run identifies the pipeline run and refine iteration an Execute call belongs to.
type Run struct {
	ID        string
	Iteration int
}

type runKey struct{}

// WithRun returns a context carrying r.
func WithRun(ctx context.Context, r Run) context.Context {
	return context.WithValue(ctx, runKey{}, r)
}

// RunFrom returns the Run stored in ctx, or the zero Run.
func RunFrom(ctx context.Context) Run {
	r, _ := ctx.Value(runKey{}).(Run)
	return r
}
