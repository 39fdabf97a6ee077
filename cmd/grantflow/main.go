package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/haricheung/grantflow/internal/config"
	"github.com/haricheung/grantflow/internal/logging"
)

// errReported marks a failure whose message was already printed.
var errReported = errors.New("reported")

// Resolved by the root command before any subcommand runs.
var (
	cfgFile string
	vip     *viper.Viper
	cfg     *config.Config
	logger  *slog.Logger
)

func newRootCmd() *cobra.Command {
	vip = viper.New()
	root := &cobra.Command{
		Use:   "grantflow",
		Short: "Turn a grant call into a complete application package",
		Long: `grantflow runs a grant call through five model-backed stages:
analysis of the call, feasibility of the applicant, a proposal draft, a review
of that draft, and the submission package. Drafting and review repeat until the
review clears the quality gate or the iteration cap is reached.

Every run writes its artifacts under <artifacts_root>/<namespace>, records each
stage call in the run history, and logs the full model exchange to a JSONL file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(vip, cfgFile)
			if err != nil {
				return err
			}
			cfg = c
			logger = logging.New(c.Log.Level, c.Log.Format)
			return nil
		},
	}
	addPersistentFlags(root)
	registerCommands(root)
	return root
}

func main() {
	_ = godotenv.Load(".env")

	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func addPersistentFlags(root *cobra.Command) {
	pf := root.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default ./grantflow.yaml)")
	pf.String("language", "", "proposal language: en, ru or uk")
	pf.Int("max-iterations", 0, "maximum write/review cycles")
	pf.Int("min-score", 0, "minimum review score percentage for the quality gate")
	pf.String("business-context", "", "business context text, or @file")
	pf.String("provider", "", "model provider: anthropic or openai")
	pf.String("artifacts", "", "artifacts root directory")
	pf.String("history-backend", "", "run history backend: leveldb or sqlite")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("log-format", "", "log format: text or json")
	pf.Bool("json", false, "output JSON")

	bind := map[string]string{
		"language":             "language",
		"max_iterations":       "max-iterations",
		"min_score_percentage": "min-score",
		"business_context":     "business-context",
		"provider":             "provider",
		"artifacts_root":       "artifacts",
		"history.backend":      "history-backend",
		"log.level":            "log-level",
		"log.format":           "log-format",
		"json":                 "json",
	}
	for key, flag := range bind {
		_ = vip.BindPFlag(key, pf.Lookup(flag))
	}
}

func registerCommands(root *cobra.Command) {
	root.AddCommand(runCmd())
	root.AddCommand(stageCmd())
	root.AddCommand(artifactsCmd())
	root.AddCommand(historyCmd())
	root.AddCommand(memoryCmd())
	root.AddCommand(profileCmd())
}
