// Command twig is a content-addressed version control tool.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/odvcencio/twig/pkg/repo"
)

const version = "twig 0.1.0-dev"

// app carries the global flags shared by every subcommand.
type app struct {
	dir     string
	verbose bool
	log     *slog.Logger
}

func (a *app) open() (*repo.Repo, error) {
	return repo.Open(a.dir, repo.Options{Logger: a.log})
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "twig",
		Short:         "Content-addressed version control",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if a.verbose {
				level = slog.LevelDebug
			}
			a.log = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
		},
	}
	root.PersistentFlags().StringVarP(&a.dir, "dir", "C", ".", "run as if started in this directory")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(a),
		newStatusCmd(a),
		newCommitCmd(a),
		newLogCmd(a),
		newShowCmd(a),
		newCatObjectCmd(a),
		newHashObjectCmd(a),
		newDiffCmd(a),
		newBranchCmd(a),
		newTagCmd(a),
		newCheckoutCmd(a),
		newMergeCmd(a),
		newRebaseCmd(a),
		newCherryPickCmd(a),
		newResetCmd(a),
		newReflogCmd(a),
		newVerifyCmd(a),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
