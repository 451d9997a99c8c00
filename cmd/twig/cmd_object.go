package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/odvcencio/twig/pkg/object"
)

func newHashObjectCmd(a *app) *cobra.Command {
	var write bool

	cmd := &cobra.Command{
		Use:   "hash-object [-w] <file>",
		Short: "Compute the blob hash of a file, optionally storing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := args[0]
			if !filepath.IsAbs(p) {
				p = filepath.Join(a.dir, p)
			}
			data, err := os.ReadFile(p)
			if err != nil {
				return fmt.Errorf("hash-object: %w", err)
			}

			var w object.Writer = object.HashOnly{}
			if write {
				r, err := a.open()
				if err != nil {
					return err
				}
				w = r.Store
			}
			h, err := w.Write(object.KindBlob, data)
			if err != nil {
				return fmt.Errorf("hash-object: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), h)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&write, "write", "w", false, "store the blob in the repository")
	return cmd
}
