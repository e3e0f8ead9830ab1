package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/docflow/docflow/client/internal/token"
	"github.com/spf13/cobra"
)

func newTokenCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "token", Short: "Inspect or mint access tokens"}

	var verify bool
	inspect := &cobra.Command{
		Use:   "inspect [TOKEN]",
		Short: "Decode a token, the stored one by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw string
			if len(args) == 1 {
				raw = args[0]
			} else {
				stored, err := a.tokens.Token(ctxOf(cmd))
				if err != nil {
					return err
				}
				raw = stored
			}
			var (
				c   *token.Claims
				err error
			)
			if verify {
				if a.cfg.JWT.Secret == "" {
					return fmt.Errorf("JWT_SECRET is required to verify")
				}
				c, err = token.Verify(raw, []byte(a.cfg.JWT.Secret))
			} else {
				c, err = token.Decode(raw)
			}
			if err != nil {
				return err
			}
			return a.emit(cmd, c, func(w io.Writer) { printClaims(w, c) })
		},
	}
	inspect.Flags().BoolVar(&verify, "verify", false, "check the signature with JWT_SECRET")

	var (
		claims token.Claims
		uid    string
		realms []string
		ttl    time.Duration
		store  bool
	)
	mint := &cobra.Command{
		Use:   "mint",
		Short: "Sign a token with JWT_SECRET (development backends only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.JWT.Secret == "" {
				return fmt.Errorf("JWT_SECRET is required to mint")
			}
			claims.UserID = token.UserID(uid)
			claims.RealmRoles = nil
			for _, entry := range realms {
				realm, role, ok := strings.Cut(entry, ":")
				if !ok || realm == "" || role == "" {
					return fmt.Errorf("--realm wants REALM:ROLE, got %q", entry)
				}
				claims.RealmRoles = append(claims.RealmRoles, token.RealmRole{Realm: realm, Roles: strings.Split(role, "+")})
			}
			raw, err := token.Sign([]byte(a.cfg.JWT.Secret), &claims, ttl)
			if err != nil {
				return err
			}
			if store {
				if err := a.tokens.Save(ctxOf(cmd), raw); err != nil {
					return err
				}
			}
			return a.emit(cmd, map[string]string{"access_token": raw}, func(w io.Writer) {
				fmt.Fprintln(w, raw)
			})
		},
	}
	mint.Flags().StringVar(&uid, "uid", "", "user id")
	mint.Flags().StringVar(&claims.Username, "username", "", "username")
	mint.Flags().StringVar(&claims.GlobalRole, "global-role", "user", "global role (admin|user)")
	mint.Flags().StringArrayVar(&realms, "realm", nil, "REALM:ROLE[+ROLE], repeatable and kept in order")
	mint.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	mint.Flags().BoolVar(&store, "store", false, "also store the token as the current session")
	_ = mint.MarkFlagRequired("uid")

	cmd.AddCommand(inspect, mint)
	return cmd
}
