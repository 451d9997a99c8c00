package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newCommitCmd(a *app) *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Record the working tree as a new commit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(message) == "" {
				return fmt.Errorf("commit message is required (-m)")
			}
			r, err := a.open()
			if err != nil {
				return err
			}
			h, err := r.Commit(message)
			if err != nil {
				return err
			}

			label := "HEAD"
			if branch, err := r.Refs.CurrentBranch(); err == nil && branch != "" {
				label = branch
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[%s %s] %s\n", label, h.Short(), firstLine(message))
			return nil
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	return cmd
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimSpace(line)
}
