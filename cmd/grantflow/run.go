package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/haricheung/grantflow/internal/bus"
	"github.com/haricheung/grantflow/internal/pipeline"
	"github.com/haricheung/grantflow/internal/profile"
	"github.com/haricheung/grantflow/internal/stage"
	"github.com/haricheung/grantflow/internal/tasklog"
	"github.com/haricheung/grantflow/internal/ui"
)

// signalContext is cancelled on the first SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\ngrantflow: shutting down")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

func runCmd() *cobra.Command {
	var (
		profilePath string
		namespace   string
		quiet       bool
	)
	cmd := &cobra.Command{
		Use:   "run <grant file or URL>",
		Short: "Run the full pipeline for one grant call",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if profilePath == "" {
				return errors.New("--profile is required")
			}
			org, err := profile.Load(profilePath)
			if err != nil {
				return err
			}
			opts, err := options()
			if err != nil {
				return err
			}
			ms, err := models()
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			doc, err := newLoader().Load(ctx, args[0])
			if err != nil {
				return err
			}
			store, err := openStore(namespace, doc.Source)
			if err != nil {
				return err
			}
			hist, err := openHistory()
			if err != nil {
				return err
			}
			defer hist.Close()

			b := bus.New(logger)
			var display *ui.Display
			displayCtx, stopDisplay := context.WithCancel(ctx)
			defer stopDisplay()
			if !quiet && !vip.GetBool("json") {
				display = ui.New(b.Tap(), cmd.OutOrStdout())
				go display.Run(displayCtx)
			}

			p := pipeline.New(buildStages(ms, hist), opts, pipeline.Deps{
				Store:   store,
				Bus:     b,
				RunLogs: tasklog.NewRegistry(cfg.RunLogDir, logger),
				Logger:  logger,
			})
			out, runErr := p.Run(ctx, pipeline.Input{
				GrantText:    doc.Text,
				Source:       doc.Source,
				Namespace:    store.Dir(),
				Organization: org,
			})
			if display != nil {
				stopDisplay()
				<-display.Done()
			}

			if vip.GetBool("json") {
				if err := printJSON(cmd.OutOrStdout(), out.Summary); err != nil {
					return err
				}
			} else {
				printSummary(cmd.OutOrStdout(), out.Summary, store.Dir())
			}
			if runErr != nil {
				var serr *stage.Error
				if errors.As(runErr, &serr) {
					fmt.Fprintf(cmd.ErrOrStderr(), "pipeline failed at %s [%s]: %s\n", serr.Stage, serr.Code, strings.TrimSpace(serr.Message))
					return errReported
				}
				return runErr
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&profilePath, "profile", "p", "", "organization profile (YAML or JSON)")
	cmd.Flags().StringVarP(&namespace, "namespace", "n", "", "artifact namespace (default derived from the grant source)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "no live progress display")
	return cmd
}
