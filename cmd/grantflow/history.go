package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/haricheung/grantflow/internal/artifact"
	"github.com/haricheung/grantflow/internal/history"
	"github.com/haricheung/grantflow/internal/types"
)

func parseStageFlag(v string) (types.Stage, error) {
	if v == "" {
		return "", nil
	}
	s := types.Stage(v)
	if !s.Valid() {
		return "", fmt.Errorf("unknown stage %q", v)
	}
	return s, nil
}

func historyCmd() *cobra.Command {
	var (
		stageName string
		topic     string
		limit     int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded stage runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := parseStageFlag(stageName)
			if err != nil {
				return err
			}
			hist, err := openHistory()
			if err != nil {
				return err
			}
			defer hist.Close()

			recs, err := hist.Recent(context.Background(), history.Query{Agent: s, Topic: topic, Limit: limit})
			if err != nil {
				return err
			}
			if vip.GetBool("json") {
				return printJSON(cmd.OutOrStdout(), recs)
			}
			if len(recs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no recorded runs")
				return nil
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(cmd.OutOrStdout())
			tw.AppendHeader(table.Row{"Time", "Stage", "Iter", "Topic", "Result", "Score", "Tokens", "Duration", "Model"})
			for _, r := range recs {
				result := "ok"
				if !r.Success {
					result = "failed"
				}
				score := "-"
				if r.Score != nil && r.MaxScore != nil {
					score = fmt.Sprintf("%.0f/%.0f", *r.Score, *r.MaxScore)
				}
				tw.AppendRow(table.Row{
					r.CreatedAt.Local().Format("2006-01-02 15:04"), r.Agent, r.Iteration, clip(r.Topic, 40),
					result, score, r.InputTokens + r.OutputTokens,
					(time.Duration(r.DurationMs) * time.Millisecond).Round(time.Second), r.Model,
				})
			}
			tw.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&stageName, "stage", "", "only this stage")
	cmd.Flags().StringVar(&topic, "topic", "", "only this grant title")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum records (0 for all)")
	return cmd
}

func memoryCmd() *cobra.Command {
	var (
		stageName string
		topic     string
	)
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Print the history digest a stage sees for a grant",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := parseStageFlag(stageName)
			if err != nil {
				return err
			}
			if s == "" || topic == "" {
				return errors.New("--stage and --topic are required")
			}
			hist, err := openHistory()
			if err != nil {
				return err
			}
			defer hist.Close()

			digest, err := history.NewMemory(hist).Digest(context.Background(), s, topic)
			if err != nil {
				return err
			}
			if digest == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "no history for", s, "on", topic)
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), digest)
			return nil
		},
	}
	cmd.Flags().StringVar(&stageName, "stage", "", "stage whose digest to print")
	cmd.Flags().StringVar(&topic, "topic", "", "grant title")
	return cmd
}

func artifactsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "artifacts <namespace>",
		Short: "Show which artifacts of a namespace are ready",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := artifact.NewStore(cfg.ArtifactsRoot, args[0])
			if err != nil {
				return err
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(cmd.OutOrStdout())
			tw.AppendHeader(table.Row{"Artifact", "File", "State", "Run", "Iter", "Created", "Problem"})
			for _, ref := range artifact.All {
				res, _ := store.Check(ref)
				row := table.Row{ref.ID, ref.File, res.State, "", "", "", ""}
				if res.Metadata != nil {
					row[3], row[4] = clip(res.Metadata.RunID, 8), res.Metadata.Iteration
					row[5] = res.Metadata.CreatedAt.Local().Format("2006-01-02 15:04")
				}
				if res.Err != nil {
					row[6] = clip(res.Err.Error(), 50)
				}
				tw.AppendRow(row)
			}
			tw.Render()
			return nil
		},
	}
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
