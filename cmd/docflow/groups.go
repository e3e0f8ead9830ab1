package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/docflow/docflow/client/internal/nav"
	"github.com/spf13/cobra"
)

func newGroupsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "groups", Short: "Realms, reviewers and users"}

	names := &cobra.Command{
		Use:   "names",
		Short: "Names of the realms you belong to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.dir.GroupNames(ctxOf(cmd))
			if err != nil {
				return err
			}
			return a.emit(cmd, m, func(w io.Writer) {
				ids := make([]string, 0, len(m))
				for id := range m {
					ids = append(ids, id)
				}
				sort.Strings(ids)
				for _, id := range ids {
					fmt.Fprintf(w, "%s\t%s\n", id, m[id])
				}
			})
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "Every realm (admin only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			groups, err := a.dir.Groups(ctxOf(cmd))
			if err != nil {
				return err
			}
			return a.emit(cmd, groups, func(w io.Writer) {
				for _, g := range groups {
					fmt.Fprintf(w, "%s\t%s\n", g.ID, g.Name)
				}
			})
		},
	}

	reviewers := &cobra.Command{
		Use:   "reviewers GROUP",
		Short: "Reviewers of a realm",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rs, err := a.dir.Reviewers(ctxOf(cmd), args[0])
			if err != nil {
				return err
			}
			return a.emit(cmd, rs, func(w io.Writer) {
				for _, r := range rs {
					fmt.Fprintf(w, "%s\t%s\n", r.ID, r.Username)
				}
			})
		},
	}

	user := &cobra.Command{
		Use:   "user ID",
		Short: "Username of a user id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := a.dir.Username(ctxOf(cmd), args[0])
			if err != nil {
				return err
			}
			return a.emit(cmd, map[string]string{"id": args[0], "username": name}, func(w io.Writer) {
				fmt.Fprintln(w, name)
			})
		},
	}

	for _, c := range []*cobra.Command{names, list, reviewers, user} {
		cmd.AddCommand(routed(c, nav.Home))
	}
	return cmd
}
