package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/docflow/docflow/client/internal/api"
	"github.com/docflow/docflow/client/internal/config"
	"github.com/docflow/docflow/client/internal/directory"
	"github.com/docflow/docflow/client/internal/document/service"
	"github.com/docflow/docflow/client/internal/nav"
	"github.com/docflow/docflow/client/internal/notification"
	"github.com/docflow/docflow/client/internal/session"
	"github.com/docflow/docflow/client/pkg/logger"
	"github.com/spf13/cobra"
)

const routeAnnotation = "route"

var errLoginRequired = errors.New("login required")

// app is the state shared by every command of one invocation.
type app struct {
	cfg        *config.Config
	format     string
	baseURL    string
	timeout    time.Duration
	store      session.Store
	closeStore func()
	tokens     *session.Handle
	loc        *nav.Location
	client     *api.Client
	dir        *directory.Service
}

// setup loads configuration, opens the token store and runs the route guard
// for the command about to execute.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	if a.format != "text" && a.format != "json" {
		return fmt.Errorf("--out must be text or json, got %q", a.format)
	}
	if a.cfg == nil {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}
		a.cfg = cfg
	}
	if a.baseURL != "" {
		a.cfg.API.BaseURL = strings.TrimRight(a.baseURL, "/")
	}
	if a.timeout > 0 {
		a.cfg.API.RequestTimeout = a.timeout
	}
	if a.store == nil {
		store, closeFn, err := session.Open(cmd.Context(), a.cfg)
		if err != nil {
			return fmt.Errorf("open token store: %w", err)
		}
		a.store, a.closeStore = store, closeFn
	}
	a.tokens = session.NewHandle(a.store, session.TokenKey)

	stderr := cmd.ErrOrStderr()
	logger.SetOutput(stderr)
	a.loc = nav.NewLocation(nav.Home.Pattern, func(path string) {
		fmt.Fprintf(stderr, "session expired, redirected to %s: run `docflow login`\n", path)
	})
	a.client = api.New(api.Options{
		BaseURL:   a.cfg.API.BaseURL,
		Timeout:   a.cfg.API.RequestTimeout,
		Tokens:    a.tokens,
		Navigator: a.loc,
		LoginPath: a.loginPath(),
		RPS:       a.cfg.API.ClientRPS,
		Burst:     a.cfg.API.ClientBurst,
	})
	a.dir = directory.New(a.client, a.tokens, a.cfg.API.DirectoryTTL)
	return a.guard(cmd, args)
}

// guard visits the command's route. Protected routes need a stored token.
func (a *app) guard(cmd *cobra.Command, args []string) error {
	pattern, ok := cmd.Annotations[routeAnnotation]
	if !ok {
		return nil
	}
	to, _, _ := nav.Match(pattern)
	params := make([]string, len(args))
	for i, arg := range args {
		params[i] = url.PathEscape(arg)
	}
	path := to.Path(params...)
	raw, err := a.tokens.Token(cmd.Context())
	if err != nil {
		return fmt.Errorf("read token store: %w", err)
	}
	got := a.loc.Visit(path, raw != "")
	if got.Name == nav.Login.Name && to.Name != nav.Login.Name {
		return errLoginRequired
	}
	return nil
}

func (a *app) loginPath() string {
	if a.cfg.API.LoginPath == "" {
		return nav.Login.Pattern
	}
	return a.cfg.API.LoginPath
}

// loginDirectory talks to the auth service from the login page itself, so a
// rejected password is not a forced logout of the token already stored.
func (a *app) loginDirectory() *directory.Service {
	client := api.New(api.Options{
		BaseURL:   a.cfg.API.BaseURL,
		Timeout:   a.cfg.API.RequestTimeout,
		Navigator: nav.NewLocation(a.loginPath(), nil),
		LoginPath: a.loginPath(),
		RPS:       a.cfg.API.ClientRPS,
		Burst:     a.cfg.API.ClientBurst,
	})
	return directory.NewWithCache(client, nil, nil)
}

func (a *app) teardown(*cobra.Command, []string) {
	if a.closeStore != nil {
		a.closeStore()
	}
}

func (a *app) documents() *service.Service {
	return service.New(a.client, a.tokens, a.dir, service.Options{
		AdminPolicy:  a.cfg.API.AdminRealmPolicy,
		DefaultRealm: a.cfg.API.DefaultRealm,
		Concurrency:  a.cfg.API.FetchConcurrency,
	})
}

func (a *app) notifications() *notification.Service {
	return notification.New(a.client)
}

// emit writes v as indented JSON, or calls text with a tab-aligned writer.
func (a *app) emit(cmd *cobra.Command, v interface{}, text func(w io.Writer)) error {
	out := cmd.OutOrStdout()
	if a.format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	text(tw)
	return tw.Flush()
}

func ctxOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:               "docflow",
		Short:             "Document review workflow client",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: a.teardown,
	}
	root.PersistentFlags().StringVar(&a.format, "out", "text", "output format: text|json")
	root.PersistentFlags().StringVar(&a.baseURL, "api-url", "", "API base URL (env DOCFLOW_API_BASE_URL)")
	root.PersistentFlags().DurationVar(&a.timeout, "timeout", 0, "per-request timeout (env DOCFLOW_REQUEST_TIMEOUT)")

	root.AddCommand(newLoginCmd(a), newLogoutCmd(a), newWhoAmICmd(a))
	root.AddCommand(newDocsCmd(a), newNotificationsCmd(a), newGroupsCmd(a))
	root.AddCommand(newUploadCmd(a), newTokenCmd(a))
	return root
}

func routed(cmd *cobra.Command, r nav.Route) *cobra.Command {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations[routeAnnotation] = r.Pattern
	return cmd
}
