package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newBranchCmd(a *app) *cobra.Command {
	var deleteBranch string

	cmd := &cobra.Command{
		Use:   "branch [name [start]]",
		Short: "List, create, or delete branches",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.open()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if deleteBranch != "" {
				if err := r.DeleteBranch(deleteBranch); err != nil {
					return err
				}
				fmt.Fprintf(out, "deleted branch '%s'\n", deleteBranch)
				return nil
			}

			if len(args) > 0 {
				start := ""
				if len(args) == 2 {
					start = args[1]
				}
				h, err := r.CreateBranch(args[0], start)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "created branch '%s' at %s\n", args[0], h.Short())
				return nil
			}

			branches, err := r.Branches()
			if err != nil {
				return err
			}
			current, _ := r.Refs.CurrentBranch()
			for _, b := range branches {
				marker := " "
				if b.Short() == current {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %s %s\n", marker, b.Short(), b.Hash.Short())
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&deleteBranch, "delete", "d", "", "delete the named branch")
	return cmd
}

func newTagCmd(a *app) *cobra.Command {
	var deleteTag string

	cmd := &cobra.Command{
		Use:   "tag [name [rev]]",
		Short: "List, create, or delete immutable tags",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.open()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if deleteTag != "" {
				if err := r.DeleteTag(deleteTag); err != nil {
					return err
				}
				fmt.Fprintf(out, "deleted tag '%s'\n", deleteTag)
				return nil
			}

			if len(args) > 0 {
				rev := ""
				if len(args) == 2 {
					rev = args[1]
				}
				h, err := r.CreateTag(args[0], rev)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "created tag '%s' at %s\n", args[0], h.Short())
				return nil
			}

			tags, err := r.Tags()
			if err != nil {
				return err
			}
			for _, t := range tags {
				fmt.Fprintf(out, "%s %s\n", t.Short(), t.Hash.Short())
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&deleteTag, "delete", "d", "", "delete the named tag")
	return cmd
}
