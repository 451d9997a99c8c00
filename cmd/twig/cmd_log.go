package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/odvcencio/twig/pkg/diff"
	"github.com/odvcencio/twig/pkg/object"
	"github.com/odvcencio/twig/pkg/repo"
)

func newLogCmd(a *app) *cobra.Command {
	var oneline bool
	var limit int

	cmd := &cobra.Command{
		Use:   "log [rev]",
		Short: "Show first-parent commit history",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.open()
			if err != nil {
				return err
			}
			rev := ""
			if len(args) == 1 {
				rev = args[0]
			}
			entries, err := r.Log(rev, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "no commits yet")
				return nil
			}
			for _, e := range entries {
				if oneline {
					fmt.Fprintf(out, "%s %s\n", e.Hash.Short(), firstLine(e.Commit.Message))
					continue
				}
				printCommit(out, e.Hash, e.Commit)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&oneline, "oneline", false, "show one line per commit")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of commits (0 = all)")
	return cmd
}

func printCommit(out io.Writer, h object.Hash, c *object.Commit) {
	fmt.Fprintf(out, "commit %s\n", h)
	if c.IsMerge() {
		parents := make([]string, len(c.Parents))
		for i, p := range c.Parents {
			parents[i] = p.Short()
		}
		fmt.Fprintf(out, "Merge: %s\n", strings.Join(parents, " "))
	}
	fmt.Fprintf(out, "Author: %s\n", c.Author)
	fmt.Fprintf(out, "Date:   %s\n", time.Unix(c.Timestamp, 0).UTC().Format("2006-01-02 15:04:05 -0700"))
	if c.Signature != "" {
		fmt.Fprintln(out, "Signed: yes")
	}
	fmt.Fprintln(out)
	for _, line := range strings.Split(strings.TrimRight(c.Message, "\n"), "\n") {
		fmt.Fprintf(out, "    %s\n", line)
	}
	fmt.Fprintln(out)
}

func newShowCmd(a *app) *cobra.Command {
	var stat bool

	cmd := &cobra.Command{
		Use:   "show [rev]",
		Short: "Show a commit and its changes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.open()
			if err != nil {
				return err
			}
			rev := "HEAD"
			if len(args) == 1 {
				rev = args[0]
			}
			res, err := r.Show(rev)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printCommit(out, res.Hash, res.Commit)
			if stat {
				fmt.Fprint(out, diff.FormatSummary(res.Changes))
				return nil
			}
			text, err := diff.FormatUnified(r.Store, res.Changes, diff.DefaultContext)
			if err != nil {
				return err
			}
			fmt.Fprint(out, text)
			return nil
		},
	}
	cmd.Flags().BoolVar(&stat, "stat", false, "list changed paths only")
	return cmd
}

func newCatObjectCmd(a *app) *cobra.Command {
	var kindOnly bool

	cmd := &cobra.Command{
		Use:   "cat-object <rev>[:<path>]",
		Short: "Print the canonical payload of an object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.open()
			if err != nil {
				return err
			}
			kind, payload, err := r.CatObject(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if kindOnly {
				fmt.Fprintln(out, kind)
				return nil
			}
			if kind == object.KindTree {
				return printTree(out, payload)
			}
			_, err = out.Write(payload)
			return err
		},
	}
	cmd.Flags().BoolVarP(&kindOnly, "type", "t", false, "print the object kind only")
	return cmd
}

func printTree(out io.Writer, payload []byte) error {
	tr, err := object.UnmarshalTree(payload)
	if err != nil {
		return err
	}
	for _, e := range tr.Entries {
		fmt.Fprintf(out, "%s %s %s\t%s\n", e.Mode, e.Kind, e.Hash, e.Name)
	}
	return nil
}

func newReflogCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "reflog [ref]",
		Short: "Show recorded movements of a ref",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.open()
			if err != nil {
				return err
			}
			ref := ""
			if len(args) == 1 {
				ref = args[0]
			}
			entries, err := r.Reflog(ref, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for i, e := range entries {
				fmt.Fprintf(out, "%s %s@{%d}: %s\n", e.NewHash.Short(), refLabel(e.Ref), i, e.Reason)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of entries (0 = all)")
	return cmd
}

func refLabel(ref string) string {
	if s, ok := strings.CutPrefix(ref, "refs/heads/"); ok {
		return s
	}
	if s, ok := strings.CutPrefix(ref, "refs/tags/"); ok {
		return s
	}
	return ref
}

func newVerifyCmd(a *app) *cobra.Command {
	var commitRev string
	var unreachable bool

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check object integrity, or a commit signature with --commit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.open()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if commitRev != "" {
				h, err := r.ResolveCommit(commitRev)
				if err != nil {
					return err
				}
				c, err := r.Graph.Commit(h)
				if err != nil {
					return err
				}
				return printCommitSignature(out, h, c)
			}
			if err := r.Verify(); err != nil {
				return err
			}
			if unreachable {
				dangling, err := r.Unreachable()
				if err != nil {
					return err
				}
				for _, h := range dangling {
					kind, _, err := r.Store.Read(h)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "unreachable %s %s\n", kind, h)
				}
			}
			hashes, err := r.Store.List()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "ok: verified %d object(s)\n", len(hashes))
			return nil
		},
	}
	cmd.Flags().StringVar(&commitRev, "commit", "", "verify the SSH signature of this commit")
	cmd.Flags().BoolVar(&unreachable, "unreachable", false, "also list objects no ref can reach")
	return cmd
}

func printCommitSignature(out io.Writer, h object.Hash, c *object.Commit) error {
	pub, err := repo.VerifyCommitSignature(c)
	if err != nil {
		return fmt.Errorf("commit %s: %w", h.Short(), err)
	}
	fmt.Fprintf(out, "commit %s: good %s signature\n", h.Short(), pub.Type())
	return nil
}
