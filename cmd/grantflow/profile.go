package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/haricheung/grantflow/internal/profile"
)

func profileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage organization profiles",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Create an organization profile interactively",
		Long: `Asks for the essentials of an organization and writes them to path
(default organization.yaml). A .json path writes JSON. Team members,
partnerships and supporting documents are left for editing by hand.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "organization.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s exists (use --force to overwrite)", path)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}

			rl, err := profile.NewTerminal(nil, nil)
			if err != nil {
				return err
			}
			defer rl.Close()

			p, err := profile.NewWizard(rl, cmd.OutOrStdout()).Run()
			if err != nil {
				return fmt.Errorf("profile: aborted: %w", err)
			}
			if err := profile.Save(path, p); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "wrote", path)
			return nil
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show <path>",
		Short: "Validate a profile and print it as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := profile.Load(args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), p)
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}
