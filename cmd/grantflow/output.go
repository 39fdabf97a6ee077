package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/haricheung/grantflow/internal/pipeline"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printSummary renders the outcome of a run followed by its per-stage usage.
func printSummary(w io.Writer, s pipeline.Summary, dir string) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Field", "Value"})
	tw.AppendRow(table.Row{"Run", s.RunID})
	tw.AppendRow(table.Row{"State", s.State})
	if s.GrantTitle != "" {
		tw.AppendRow(table.Row{"Grant", s.GrantTitle})
	}
	tw.AppendRow(table.Row{"Organization", s.Organization})
	if s.Recommendation != "" {
		tw.AppendRow(table.Row{"Feasibility", fmt.Sprintf("%.0f%% (%s)", s.FeasibilityChance, s.Recommendation)})
	}
	tw.AppendRow(table.Row{"Iterations", fmt.Sprintf("%d / %d", s.Iterations, s.MaxIterations)})
	if s.MaxScore > 0 {
		tw.AppendRow(table.Row{"Score", fmt.Sprintf("%.0f / %.0f (%d%%, gate %d%%)", s.FinalScore, s.MaxScore, s.ScorePct, s.MinScorePct)})
	}
	tw.AppendRow(table.Row{"Ready to submit", yesNo(s.ReadyToSubmit)})
	tw.AppendRow(table.Row{"Gate passed", yesNo(s.GatePassed)})
	tw.AppendRow(table.Row{"Documents", fmt.Sprintf("%d generated, %d manual", s.GeneratedDocuments, s.ManualDocuments)})
	tw.AppendRow(table.Row{"Tokens", fmt.Sprintf("%d in / %d out", s.InputTokens, s.OutputTokens)})
	tw.AppendRow(table.Row{"Duration", (time.Duration(s.DurationMs) * time.Millisecond).Round(time.Second)})
	if s.Error != "" {
		tw.AppendRow(table.Row{"Failed at", fmt.Sprintf("%s [%s]", s.FailedAt, s.ErrorCode)})
	}
	tw.AppendRow(table.Row{"Artifacts", dir})
	tw.Render()

	if len(s.Stages) == 0 {
		return
	}
	st := table.NewWriter()
	st.SetOutputMirror(w)
	st.AppendHeader(table.Row{"Stage", "Calls", "Input", "Output", "Elapsed"})
	for _, stat := range s.Stages {
		st.AppendRow(table.Row{stat.Stage, stat.Calls, stat.InputTokens, stat.OutputTokens,
			(time.Duration(stat.ElapsedMs) * time.Millisecond).Round(time.Millisecond)})
	}
	st.Render()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
