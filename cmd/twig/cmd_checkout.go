package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckoutCmd(a *app) *cobra.Command {
	var create bool

	cmd := &cobra.Command{
		Use:   "checkout <branch|rev>",
		Short: "Switch branches or detach HEAD at a commit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.open()
			if err != nil {
				return err
			}
			target := args[0]
			if create {
				if _, err := r.CreateBranch(target, ""); err != nil {
					return err
				}
			}
			if err := r.Checkout(target); err != nil {
				return err
			}

			head, err := r.Refs.Head()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if head.Detached() {
				fmt.Fprintf(out, "HEAD is now at %s (detached)\n", head.Hash.Short())
			} else {
				fmt.Fprintf(out, "switched to branch '%s'\n", head.Branch)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&create, "branch", "b", false, "create the branch at HEAD first")
	return cmd
}

func newResetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <rev>",
		Short: "Move the current branch to rev and discard working tree changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.open()
			if err != nil {
				return err
			}
			h, err := r.Reset(args[0])
			if err != nil {
				return err
			}
			c, err := r.Graph.Commit(h)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "HEAD is now at %s %s\n", h.Short(), firstLine(c.Message))
			return nil
		},
	}
}
