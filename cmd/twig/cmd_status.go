package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/twig/pkg/diff"
)

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show working tree changes against HEAD",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.open()
			if err != nil {
				return err
			}
			st, err := r.Status()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch {
			case st.Head.Detached():
				fmt.Fprintf(out, "HEAD detached at %s\n", st.Head.Hash.Short())
			case st.Head.Unborn():
				fmt.Fprintf(out, "on branch %s (no commits yet)\n", st.Head.Branch)
			default:
				fmt.Fprintf(out, "on branch %s\n", st.Head.Branch)
			}
			if st.Merging() {
				fmt.Fprintf(out, "merging %s\n", st.MergeHead.Short())
			}
			if st.Clean() {
				fmt.Fprintln(out, "nothing to commit, working tree clean")
				return nil
			}
			fmt.Fprint(out, diff.FormatSummary(st.Changes))
			return nil
		},
	}
}

func newDiffCmd(a *app) *cobra.Command {
	var stat bool
	var context int

	cmd := &cobra.Command{
		Use:   "diff [from [to]]",
		Short: "Show changes between revisions or against the working tree",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.open()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			var changes []diff.Change
			var text string
			if len(args) == 0 {
				changes, text, err = r.DiffWorktree(context)
				if err != nil {
					return err
				}
			} else {
				to := "HEAD"
				if len(args) == 2 {
					to = args[1]
				}
				if changes, err = r.Diff(args[0], to); err != nil {
					return err
				}
				if !stat {
					if text, err = diff.FormatUnified(r.Store, changes, context); err != nil {
						return err
					}
				}
			}
			if stat {
				fmt.Fprint(out, diff.FormatSummary(changes))
				return nil
			}
			fmt.Fprint(out, text)
			return nil
		},
	}
	cmd.Flags().BoolVar(&stat, "stat", false, "list changed paths only")
	cmd.Flags().IntVarP(&context, "unified", "U", diff.DefaultContext, "lines of context")
	return cmd
}
