// Package service aggregates documents across realms and forwards
// single-document writes to the flow service.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/docflow/docflow/client/internal/api"
	"github.com/docflow/docflow/client/internal/config"
	"github.com/docflow/docflow/client/internal/document"
	"github.com/docflow/docflow/client/internal/token"
	"github.com/docflow/docflow/client/pkg/logger"
	"github.com/docflow/docflow/client/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// RealmLister reports every realm known to the backend. Admin users fan out
// over it under the "all" policy.
type RealmLister interface {
	RealmIDs(ctx context.Context) ([]string, error)
}

type Options struct {
	// AdminPolicy is config.AdminRealmsAll or config.AdminRealmsDefault.
	AdminPolicy  string
	DefaultRealm string
	Concurrency  int
}

// ListOptions are the optional filters of the per-realm listing endpoint.
type ListOptions struct {
	Status    document.Status
	CreatorID string
	Limit     int
	Offset    int
}

func (o ListOptions) query() url.Values {
	q := url.Values{}
	if o.Status != "" {
		q.Set("status_filter", string(o.Status))
	}
	if o.CreatorID != "" {
		q.Set("creator_id_filter", o.CreatorID)
	}
	if o.Limit > 0 {
		q.Set("limit", strconv.Itoa(o.Limit))
	}
	if o.Offset > 0 {
		q.Set("offset", strconv.Itoa(o.Offset))
	}
	return q
}

// Aggregate is the outcome of one fan-out. Failures never make it an error.
type Aggregate struct {
	Realms    []string
	Documents []document.Document
	Failures  []*api.PartialFetchError
}

type Service struct {
	client *api.Client
	tokens api.TokenSource
	realms RealmLister
	opts   Options
}

func New(client *api.Client, tokens api.TokenSource, realms RealmLister, opts Options) *Service {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	if opts.AdminPolicy == "" {
		opts.AdminPolicy = config.AdminRealmsAll
	}
	return &Service{client: client, tokens: tokens, realms: realms, opts: opts}
}

// GetAllDocuments returns every document visible to the session's token,
// realm by realm in token order, each tagged with its realm.
func (s *Service) GetAllDocuments(ctx context.Context) ([]document.Document, error) {
	agg, err := s.Collect(ctx, ListOptions{})
	if err != nil {
		return nil, err
	}
	return agg.Documents, nil
}

// Collect is GetAllDocuments with filters and the per-realm failures.
func (s *Service) Collect(ctx context.Context, opts ListOptions) (*Aggregate, error) {
	claims, err := s.claims(ctx)
	if err != nil {
		return nil, err
	}

	realms := s.targetRealms(ctx, claims)
	agg := &Aggregate{Realms: realms, Documents: []document.Document{}}
	if len(realms) == 0 {
		logger.Warnf("token for uid %q carries no realm roles, nothing to fetch", claims.UserID)
		return agg, nil
	}

	results := make([][]document.Document, len(realms))
	failures := make([]*api.PartialFetchError, len(realms))

	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	for i, realm := range realms {
		i, realm := i, realm
		g.Go(func() error {
			docs, err := s.ListRealm(ctx, realm, opts)
			if err != nil {
				failures[i] = &api.PartialFetchError{Realm: realm, Err: err}
				return nil
			}
			results[i] = docs
			return nil
		})
	}
	_ = g.Wait()

	for i := range realms {
		if f := failures[i]; f != nil {
			logger.Warnw("realm fetch failed", "realm", f.Realm, "error", f.Err)
			metrics.RealmFetchFailures.WithLabelValues(f.Realm).Inc()
			agg.Failures = append(agg.Failures, f)
			continue
		}
		agg.Documents = append(agg.Documents, results[i]...)
	}
	logger.Debugf("aggregated %d documents from %d realms (%d failed)", len(agg.Documents), len(realms), len(agg.Failures))
	return agg, nil
}

// ListRealm fetches one realm's documents tagged with realm.
func (s *Service) ListRealm(ctx context.Context, realm string, opts ListOptions) ([]document.Document, error) {
	var raw json.RawMessage
	if err := s.client.Get(ctx, "/flow/documents/"+url.PathEscape(realm), opts.query(), &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return []document.Document{}, nil
	}
	docs, err := document.NormalizeList(raw, realm)
	if err != nil {
		return nil, fmt.Errorf("decode realm %s documents: %w", realm, err)
	}
	return docs, nil
}

func (s *Service) claims(ctx context.Context) (*token.Claims, error) {
	if s.tokens == nil {
		return nil, &api.AuthenticationError{Reason: "no token"}
	}
	raw, err := s.tokens.Token(ctx)
	if err != nil {
		return nil, &api.AuthenticationError{Reason: "token store unavailable", Err: err}
	}
	if token.Strip(raw) == "" {
		return nil, &api.AuthenticationError{Reason: "no token"}
	}
	c, err := token.Decode(raw)
	if err != nil {
		return nil, &api.AuthenticationError{Reason: "token cannot be decoded", Err: err}
	}
	return c, nil
}

func (s *Service) targetRealms(ctx context.Context, c *token.Claims) []string {
	if !c.IsAdmin() {
		return c.RealmIDs()
	}
	if s.opts.AdminPolicy == config.AdminRealmsDefault || s.realms == nil {
		return []string{s.opts.DefaultRealm}
	}
	ids, err := s.realms.RealmIDs(ctx)
	if err != nil {
		logger.Warnf("listing realms for admin failed, using default realm %s: %v", s.opts.DefaultRealm, err)
		return []string{s.opts.DefaultRealm}
	}
	return ids
}
