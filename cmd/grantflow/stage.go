package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/haricheung/grantflow/internal/artifact"
	"github.com/haricheung/grantflow/internal/history"
	"github.com/haricheung/grantflow/internal/llm"
	"github.com/haricheung/grantflow/internal/profile"
	"github.com/haricheung/grantflow/internal/roles/analyst"
	"github.com/haricheung/grantflow/internal/roles/assessor"
	"github.com/haricheung/grantflow/internal/roles/packager"
	"github.com/haricheung/grantflow/internal/roles/reviewer"
	"github.com/haricheung/grantflow/internal/roles/writer"
	"github.com/haricheung/grantflow/internal/stage"
	"github.com/haricheung/grantflow/internal/types"
)

// stageRun is one stage invocation against a stored namespace.
type stageRun struct {
	store   *artifact.Store
	org     types.OrganizationProfile
	model   llm.Model
	hist    history.Store
	improve bool
}

func stageCmd() *cobra.Command {
	var (
		profilePath string
		namespace   string
		iteration   int
		improve     bool
	)
	cmd := &cobra.Command{
		Use:   "stage <analysis|feasibility|writing|review|package>",
		Short: "Run one stage against the artifacts of an earlier run",
		Long: `Runs a single stage using the artifacts already stored in a namespace and
overwrites that stage's artifact. analysis reads grant-text.txt; every later
stage reads the analysis and whatever else it needs. writing --improve feeds
the stored review back to the writer.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := types.Stage(args[0])
			if !s.Valid() {
				return fmt.Errorf("unknown stage %q", args[0])
			}
			if namespace == "" {
				return errors.New("--namespace is required")
			}
			store, err := artifact.NewStore(cfg.ArtifactsRoot, namespace)
			if err != nil {
				return err
			}
			sr := &stageRun{store: store, improve: improve}
			if s != types.StageAnalysis && s != types.StageReview {
				if profilePath == "" {
					return fmt.Errorf("--profile is required for %s", s)
				}
				if sr.org, err = profile.Load(profilePath); err != nil {
					return err
				}
			}
			ms, err := models(s)
			if err != nil {
				return err
			}
			sr.model = ms[s]
			if sr.hist, err = openHistory(); err != nil {
				return err
			}
			defer sr.hist.Close()

			ctx, cancel := signalContext()
			defer cancel()
			ctx = stage.WithRun(ctx, stage.Run{ID: uuid.NewString(), Iteration: iteration})

			out, err := sr.execute(ctx, s)
			if err != nil {
				var serr *stage.Error
				if errors.As(err, &serr) {
					fmt.Fprintf(cmd.ErrOrStderr(), "stage failed [%s]: %s\n", serr.Code, serr.Message)
					return errReported
				}
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVarP(&profilePath, "profile", "p", "", "organization profile (YAML or JSON)")
	cmd.Flags().StringVarP(&namespace, "namespace", "n", "", "artifact namespace of the earlier run")
	cmd.Flags().IntVar(&iteration, "iteration", 1, "iteration number recorded in the run history")
	cmd.Flags().BoolVar(&improve, "improve", false, "writing: use the stored review as improvement instructions")
	return cmd
}

func (sr *stageRun) execute(ctx context.Context, s types.Stage) (any, error) {
	settings := cfg.Stage(s)
	rec := stage.WithRecorder(sr.hist)
	mem := stage.WithMemory(history.NewMemory(sr.hist))
	meta := artifact.Metadata{RunID: stage.RunFrom(ctx).ID, Stage: s, Iteration: stage.RunFrom(ctx).Iteration}

	if s == types.StageAnalysis {
		text, err := sr.store.ReadText(artifact.GrantText)
		if err != nil {
			return nil, err
		}
		res := analyst.New(sr.model, settings, logger, rec).Execute(ctx, analyst.Input{GrantText: text, Source: sr.store.Dir()})
		if !res.OK() {
			return nil, res.Err()
		}
		return res.Data(), sr.store.WriteJSON(artifact.Analysis, res.Data(), meta)
	}

	var analysis types.GrantAnalysis
	if err := sr.store.ReadJSON(artifact.Analysis, &analysis); err != nil {
		return nil, err
	}

	switch s {
	case types.StageFeasibility:
		res := assessor.New(sr.model, settings, logger, rec, mem).
			Execute(ctx, assessor.Input{Analysis: analysis, Organization: sr.org})
		if !res.OK() {
			return nil, res.Err()
		}
		return res.Data(), sr.store.WriteJSON(artifact.Feasibility, res.Data(), meta)

	case types.StageWriting:
		in := writer.Input{Analysis: analysis, Organization: sr.org, Language: cfg.Lang()}
		if err := sr.store.ReadJSON(artifact.Feasibility, &in.Feasibility); err != nil {
			return nil, err
		}
		bc, err := cfg.ResolveBusinessContext()
		if err != nil {
			return nil, err
		}
		in.BusinessContext = bc
		if sr.improve {
			var prev types.ReviewReport
			if err := sr.store.ReadJSON(artifact.Review, &prev); err != nil {
				return nil, err
			}
			in.Previous = &prev
		}
		res := writer.New(sr.model, settings, logger, rec, mem).Execute(ctx, in)
		if !res.OK() {
			return nil, res.Err()
		}
		if err := sr.store.WriteJSON(artifact.Proposal, res.Data(), meta); err != nil {
			return nil, err
		}
		return res.Data(), sr.store.WriteDocument(artifact.ProposalMD, artifact.ProposalMarkdown(analysis.GrantTitle, res.Data()), meta)

	case types.StageReview:
		var proposal types.ScientificProposal
		if err := sr.store.ReadJSON(artifact.Proposal, &proposal); err != nil {
			return nil, err
		}
		res := reviewer.New(sr.model, settings, logger, rec, mem).
			Execute(ctx, reviewer.Input{Analysis: analysis, Proposal: proposal})
		if !res.OK() {
			return nil, res.Err()
		}
		if err := sr.store.WriteJSON(artifact.Review, res.Data(), meta); err != nil {
			return nil, err
		}
		return res.Data(), sr.store.WriteDocument(artifact.ReviewMD, artifact.ReviewMarkdown(analysis.GrantTitle, res.Data()), meta)

	default:
		in := packager.Input{Analysis: analysis, Organization: sr.org}
		if err := sr.store.ReadJSON(artifact.Proposal, &in.Proposal); err != nil {
			return nil, err
		}
		if err := sr.store.ReadJSON(artifact.Review, &in.Review); err != nil {
			return nil, err
		}
		res := packager.New(sr.model, settings, logger, rec, mem).Execute(ctx, in)
		if !res.OK() {
			return nil, res.Err()
		}
		pkg := res.Data()
		if err := sr.store.WriteJSON(artifact.Package, pkg, meta); err != nil {
			return nil, err
		}
		for i, name := range artifact.PackageFilenames(pkg.GeneratedDocuments) {
			if name == "" {
				continue
			}
			if _, err := sr.store.WritePackageFile(name, pkg.GeneratedDocuments[i].Content); err != nil {
				return nil, err
			}
		}
		return pkg, sr.store.WriteDocument(artifact.ChecklistMD, artifact.ChecklistMarkdown(pkg), meta)
	}
}
