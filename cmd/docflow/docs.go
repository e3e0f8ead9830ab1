package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/docflow/docflow/client/internal/document"
	"github.com/docflow/docflow/client/internal/document/service"
	"github.com/docflow/docflow/client/internal/nav"
	"github.com/docflow/docflow/client/internal/token"
	"github.com/spf13/cobra"
)

var errNotAuthor = errors.New("a user or admin role is needed to create documents")

func newDocsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "docs", Short: "List, edit and review documents"}
	cmd.AddCommand(
		newDocsListCmd(a),
		newDocsShowCmd(a),
		newDocsCreateCmd(a),
		newDocsUpdateCmd(a),
		newDocsSubmitCmd(a),
		newDocsReviewCmd(a),
		newDocsHistoryCmd(a),
	)
	return cmd
}

func printDocuments(w io.Writer, docs []document.Document) {
	fmt.Fprintln(w, "ID\tREALM\tSTATUS\tREVIEWER\tTITLE")
	for _, d := range docs {
		reviewer := "-"
		if d.CurrentReviewerID != nil {
			reviewer = string(*d.CurrentReviewerID)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", d.ID, d.RealmID, d.Status, reviewer, d.Title)
	}
}

func printDocument(w io.Writer, d document.Document) {
	fmt.Fprintf(w, "id:\t%s\n", d.ID)
	fmt.Fprintf(w, "title:\t%s\n", d.Title)
	fmt.Fprintf(w, "description:\t%s\n", d.Description)
	fmt.Fprintf(w, "status:\t%s\n", d.Status)
	fmt.Fprintf(w, "realm:\t%s\n", d.RealmID)
	fmt.Fprintf(w, "creator:\t%s\n", d.CreatorID)
	if d.CurrentReviewerID != nil {
		fmt.Fprintf(w, "reviewer:\t%s\n", *d.CurrentReviewerID)
	}
	if d.UpdatedAt != nil {
		fmt.Fprintf(w, "updated:\t%s\n", d.UpdatedAt.Format("2006-01-02 15:04"))
	}
}

func newDocsListCmd(a *app) *cobra.Command {
	var (
		opts   service.ListOptions
		status string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the documents of every realm you belong to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Status = document.Status(status)
			agg, err := a.documents().Collect(ctxOf(cmd), opts)
			if err != nil {
				return err
			}
			for _, f := range agg.Failures {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", f)
			}
			return a.emit(cmd, agg.Documents, func(w io.Writer) { printDocuments(w, agg.Documents) })
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only documents in this status")
	cmd.Flags().StringVar(&opts.CreatorID, "creator", "", "only documents created by this user id")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "page size per realm")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "page offset per realm")
	return routed(cmd, nav.Home)
}

func newDocsShowCmd(a *app) *cobra.Command {
	var content bool
	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Show one document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docs := a.documents()
			d, err := docs.GetDocumentDetail(ctxOf(cmd), args[0])
			if err != nil {
				return err
			}
			if !content {
				return a.emit(cmd, d, func(w io.Writer) { printDocument(w, d) })
			}
			body, err := docs.GetContent(ctxOf(cmd), d)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(body)
			return err
		},
	}
	cmd.Flags().BoolVar(&content, "content", false, "print the markdown body instead of the metadata")
	return routed(cmd, nav.Viewer)
}

func newDocsCreateCmd(a *app) *cobra.Command {
	var (
		realm string
		in    service.NewDocument
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a draft in a realm",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stored, err := a.tokens.Token(ctxOf(cmd))
			if err != nil {
				return err
			}
			if stored == "" {
				return errLoginRequired
			}
			if c, err := token.Decode(stored); err == nil && !c.CanAuthor(realm) {
				return fmt.Errorf("%w: realm %s", errNotAuthor, realm)
			}
			raw, err := a.documents().CreateDocument(ctxOf(cmd), realm, in)
			if err != nil {
				return err
			}
			var created interface{}
			if err := json.Unmarshal(raw, &created); err != nil {
				return fmt.Errorf("decode created document: %w", err)
			}
			return a.emit(cmd, created, func(w io.Writer) {
				if d, err := document.Normalize(raw, realm); err == nil {
					fmt.Fprintf(w, "created document %s in realm %s\n", d.ID, d.RealmID)
					return
				}
				fmt.Fprintln(w, string(raw))
			})
		},
	}
	cmd.Flags().StringVar(&realm, "realm", "", "realm (group) id")
	cmd.Flags().StringVar(&in.Title, "title", "", "document title")
	cmd.Flags().StringVar(&in.Description, "description", "", "document description")
	_ = cmd.MarkFlagRequired("realm")
	_ = cmd.MarkFlagRequired("title")
	return routed(cmd, nav.Home)
}

func newDocsUpdateCmd(a *app) *cobra.Command {
	var (
		title, description, status, reviewer string
		clearReviewer, full                  bool
	)
	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change the title, description, status or reviewer of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields := map[string]interface{}{}
			flags := cmd.Flags()
			if flags.Changed("title") {
				fields["title"] = title
			}
			if flags.Changed("description") {
				fields["description"] = description
			}
			if flags.Changed("status") {
				fields["status"] = status
			}
			if flags.Changed("reviewer") {
				fields["current_reviewer_id"] = document.ID(reviewer)
			}
			if clearReviewer {
				fields["current_reviewer_id"] = nil
			}
			docs := a.documents()
			var (
				d   document.Document
				err error
			)
			if full {
				d, err = docs.UpdateDocument(ctxOf(cmd), args[0], fields)
			} else {
				d, err = docs.UpdateDocumentFields(ctxOf(cmd), args[0], fields)
			}
			if err != nil {
				return err
			}
			return a.emit(cmd, d, func(w io.Writer) { printDocument(w, d) })
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	cmd.Flags().StringVar(&status, "status", "", "new status")
	cmd.Flags().StringVar(&reviewer, "reviewer", "", "new reviewer user id")
	cmd.Flags().BoolVar(&clearReviewer, "clear-reviewer", false, "unassign the reviewer")
	cmd.Flags().BoolVar(&full, "put", false, "send a full update (PUT) instead of a patch")
	return routed(cmd, nav.Editor)
}

func newDocsSubmitCmd(a *app) *cobra.Command {
	var reviewer string
	cmd := &cobra.Command{
		Use:   "submit ID",
		Short: "Submit a draft for review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.documents().SubmitForReview(ctxOf(cmd), args[0], reviewer)
			if err != nil {
				return err
			}
			return a.emit(cmd, d, func(w io.Writer) {
				fmt.Fprintf(w, "document %s is %s, reviewer %s\n", d.ID, d.Status, reviewer)
			})
		},
	}
	cmd.Flags().StringVar(&reviewer, "reviewer", "", "reviewer user id")
	_ = cmd.MarkFlagRequired("reviewer")
	return routed(cmd, nav.Editor)
}

func newDocsReviewCmd(a *app) *cobra.Command {
	var action, reason string
	cmd := &cobra.Command{
		Use:   "review ID",
		Short: "Approve or reject a document assigned to you",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.documents().ReviewDocument(ctxOf(cmd), args[0], document.ReviewAction(action), reason)
			if err != nil {
				return err
			}
			return a.emit(cmd, res, func(w io.Writer) {
				fmt.Fprintf(w, "document %s is now %s\n", res.Document.ID, res.Document.Status)
			})
		},
	}
	cmd.Flags().StringVar(&action, "action", "", "approve|reject")
	cmd.Flags().StringVar(&reason, "reason", "", "rejection reason (required to reject)")
	_ = cmd.MarkFlagRequired("action")
	return routed(cmd, nav.Review)
}

func newDocsHistoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history ID",
		Short: "Show the review history of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := a.documents().ReviewHistory(ctxOf(cmd), args[0])
			if err != nil {
				return err
			}
			return a.emit(cmd, recs, func(w io.Writer) {
				fmt.Fprintln(w, "WHEN\tREVIEWER\tACTION\tREASON")
				for _, r := range recs {
					when := "-"
					if r.ReviewedAt != nil {
						when = r.ReviewedAt.Format("2006-01-02 15:04")
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", when, r.ReviewerID, r.Action, r.RejectionReason)
				}
			})
		},
	}
	return routed(cmd, nav.Viewer)
}
