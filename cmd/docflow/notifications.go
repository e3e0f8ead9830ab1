package main

import (
	"fmt"
	"io"

	"github.com/docflow/docflow/client/internal/nav"
	"github.com/docflow/docflow/client/internal/notification"
	"github.com/spf13/cobra"
)

func newNotificationsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "notifications", Aliases: []string{"notes"}, Short: "Workflow notifications"}
	cmd.AddCommand(newNotificationsListCmd(a), newNotificationsReadCmd(a))
	return cmd
}

func newNotificationsListCmd(a *app) *cobra.Command {
	var (
		unread bool
		kind   string
		f      notification.Filter
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your notifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if unread {
				isRead := false
				f.IsRead = &isRead
			}
			f.Type = notification.Type(kind)
			list, err := a.notifications().List(ctxOf(cmd), f)
			if err != nil {
				return err
			}
			return a.emit(cmd, list, func(w io.Writer) {
				fmt.Fprintln(w, "ID\tREAD\tTYPE\tDOCUMENT\tMESSAGE")
				for _, n := range list {
					doc := "-"
					if n.DocumentID != nil {
						doc = string(*n.DocumentID)
					}
					read := " "
					if n.IsRead {
						read = "x"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", n.ID, read, n.Type, doc, n.Message)
				}
			})
		},
	}
	cmd.Flags().BoolVar(&unread, "unread", false, "only unread notifications")
	cmd.Flags().StringVar(&kind, "type", "", "only notifications of this type")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "page size")
	cmd.Flags().IntVar(&f.Offset, "offset", 0, "page offset")
	return routed(cmd, nav.Notifications)
}

func newNotificationsReadCmd(a *app) *cobra.Command {
	var unread bool
	cmd := &cobra.Command{
		Use:   "read ID",
		Short: "Mark a notification as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := a.notifications().MarkRead(ctxOf(cmd), args[0], !unread)
			if err != nil {
				return err
			}
			return a.emit(cmd, n, func(w io.Writer) {
				fmt.Fprintf(w, "notification %s read=%v\n", n.ID, n.IsRead)
			})
		},
	}
	cmd.Flags().BoolVar(&unread, "unread", false, "mark as unread instead")
	return routed(cmd, nav.Notifications)
}
