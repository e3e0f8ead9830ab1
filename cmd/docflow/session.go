package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/docflow/docflow/client/internal/nav"
	"github.com/docflow/docflow/client/internal/token"
	"github.com/spf13/cobra"
)

func newLoginCmd(a *app) *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" || password == "-" {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && err != io.EOF {
					return fmt.Errorf("read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			raw, err := a.loginDirectory().Login(ctxOf(cmd), username, password)
			if err != nil {
				return err
			}
			if err := a.tokens.Save(ctxOf(cmd), raw); err != nil {
				return fmt.Errorf("store token: %w", err)
			}
			a.dir.Invalidate()
			a.loc.Visit(nav.Home.Pattern, true)
			c, err := token.Decode(raw)
			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s\n", username)
				return nil
			}
			return a.emit(cmd, c, func(w io.Writer) {
				fmt.Fprintf(w, "logged in as %s (uid %s), realms: %s\n", c.Username, c.UserID, strings.Join(c.RealmIDs(), ", "))
			})
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password; read from stdin when empty or -")
	_ = cmd.MarkFlagRequired("username")
	return routed(cmd, nav.Login)
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.tokens.Clear(ctxOf(cmd)); err != nil {
				return err
			}
			a.dir.Invalidate()
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		},
	}
}

func newWhoAmICmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the identity in the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := a.tokens.Token(ctxOf(cmd))
			if err != nil {
				return err
			}
			if raw == "" {
				return errLoginRequired
			}
			c, err := token.Decode(raw)
			if err != nil {
				return fmt.Errorf("stored token cannot be decoded: %w", err)
			}
			return a.emit(cmd, c, func(w io.Writer) { printClaims(w, c) })
		},
	}
}

func printClaims(w io.Writer, c *token.Claims) {
	fmt.Fprintf(w, "uid:\t%s\n", c.UserID)
	fmt.Fprintf(w, "username:\t%s\n", c.Username)
	fmt.Fprintf(w, "global role:\t%s\n", c.GlobalRole)
	for _, rr := range c.RealmRoles {
		fmt.Fprintf(w, "realm %s:\t%s\n", rr.Realm, strings.Join(rr.Roles, ", "))
	}
	if c.ExpiresAt != nil {
		state := "valid"
		if c.Expired(time.Now()) {
			state = "expired"
		}
		fmt.Fprintf(w, "expires:\t%s (%s)\n", c.ExpiresAt.Time.Format(time.RFC3339), state)
	}
}
