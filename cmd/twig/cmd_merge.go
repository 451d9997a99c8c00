package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/odvcencio/twig/pkg/merge"
	"github.com/odvcencio/twig/pkg/repo"
)

func newMergeCmd(a *app) *cobra.Command {
	var abort bool

	cmd := &cobra.Command{
		Use:   "merge <rev>",
		Short: "Merge a branch or commit into HEAD",
		Args: func(cmd *cobra.Command, args []string) error {
			if abort {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.open()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if abort {
				if err := r.MergeAbort(); err != nil {
					return err
				}
				fmt.Fprintln(out, "merge aborted")
				return nil
			}

			res, err := r.Merge(args[0])
			if errors.Is(err, repo.ErrMergeConflict) {
				printConflicts(out, res.Conflicts)
				fmt.Fprintln(out, "fix conflicts and run twig commit, or twig merge --abort")
				return err
			}
			if err != nil {
				return err
			}
			switch res.Outcome {
			case repo.OutcomeUpToDate:
				fmt.Fprintln(out, "already up to date")
			case repo.OutcomeFastForward:
				fmt.Fprintf(out, "%s: %s\n", res.Outcome, res.Head.Short())
			default:
				fmt.Fprintf(out, "%s: %s Merge branch '%s'\n", res.Outcome, res.Head.Short(), args[0])
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&abort, "abort", false, "abandon a conflicted merge")
	return cmd
}

func printConflicts(out io.Writer, conflicts []merge.Conflict) {
	for _, c := range conflicts {
		fmt.Fprintf(out, "CONFLICT (%s): %s\n", c.Kind, c.Path)
	}
}

func newRebaseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rebase <onto>",
		Short: "Replay HEAD's commits on top of another branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.open()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			res, err := r.Rebase(args[0])
			var rce *repo.RebaseConflictError
			if errors.As(err, &rce) {
				for _, p := range rce.Paths {
					fmt.Fprintf(out, "CONFLICT: %s\n", p)
				}
				fmt.Fprintf(out, "rebase stopped at %s; nothing was changed\n", rce.Commit.Short())
				return err
			}
			if err != nil {
				return err
			}
			switch res.Outcome {
			case repo.OutcomeUpToDate:
				fmt.Fprintln(out, "already up to date")
			case repo.OutcomeFastForward:
				fmt.Fprintf(out, "%s: %s\n", res.Outcome, res.Head.Short())
			default:
				for _, s := range res.Replayed {
					fmt.Fprintf(out, "%s -> %s\n", s.Original.Short(), s.New.Short())
				}
				fmt.Fprintf(out, "%s: %s onto %s\n", res.Outcome, res.Head.Short(), res.Onto.Short())
			}
			return nil
		},
	}
}

func newCherryPickCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cherry-pick <rev>",
		Short: "Apply the change of one commit on top of HEAD",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.open()
			if err != nil {
				return err
			}
			h, err := r.CherryPick(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "picked %s as %s\n", args[0], h.Short())
			return nil
		},
	}
}
