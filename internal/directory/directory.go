// Package directory talks to the auth service: login, realms (groups),
// usernames and reviewers. Lookups are cached for a short TTL.
package directory

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/docflow/docflow/client/internal/api"
	"github.com/docflow/docflow/client/internal/document"
	"github.com/docflow/docflow/client/internal/token"
	"github.com/patrickmn/go-cache"
)

var ErrNoAccessToken = errors.New("login response carried no access token")

type Group struct {
	ID        document.ID    `json:"id"`
	Name      string         `json:"name"`
	CreatedAt *document.Time `json:"createdAt,omitempty"`
	UpdatedAt *document.Time `json:"updatedAt,omitempty"`
}

type wireGroup struct {
	ID        document.ID    `json:"id"`
	GroupName string         `json:"group_name"`
	CreatedAt *document.Time `json:"created_at"`
	UpdatedAt *document.Time `json:"updated_at"`
}

type Reviewer struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type Service struct {
	client *api.Client
	tokens api.TokenSource
	cache  *cache.Cache
}

// New returns a directory client. A ttl of zero disables caching.
func New(client *api.Client, tokens api.TokenSource, ttl time.Duration) *Service {
	s := &Service{client: client, tokens: tokens}
	if ttl > 0 {
		s.cache = cache.New(ttl, 2*ttl)
	}
	return s
}

// NewWithCache shares c between services built per request. A nil c
// disables caching.
func NewWithCache(client *api.Client, tokens api.TokenSource, c *cache.Cache) *Service {
	return &Service{client: client, tokens: tokens, cache: c}
}

// Login exchanges credentials for an access token.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	if username == "" || password == "" {
		return "", fmt.Errorf("%w: username and password are required", api.ErrInvalidInput)
	}
	var resp struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	form := url.Values{"username": {username}, "password": {password}}
	if err := s.client.Post(ctx, "/auth/login", form, &resp); err != nil {
		return "", err
	}
	tok := token.Strip(resp.AccessToken)
	if tok == "" {
		return "", ErrNoAccessToken
	}
	s.Invalidate()
	return tok, nil
}

// Invalidate drops every cached lookup.
func (s *Service) Invalidate() {
	if s.cache != nil {
		s.cache.Flush()
	}
}

// Groups lists every realm known to the auth service.
func (s *Service) Groups(ctx context.Context) ([]Group, error) {
	if v, ok := s.lookup("groups"); ok {
		return v.([]Group), nil
	}
	var ws []wireGroup
	if err := s.client.Get(ctx, "/auth/admin/groups/all/", nil, &ws); err != nil {
		return nil, err
	}
	out := make([]Group, 0, len(ws))
	for _, w := range ws {
		out = append(out, Group{ID: w.ID, Name: w.GroupName, CreatedAt: w.CreatedAt, UpdatedAt: w.UpdatedAt})
	}
	s.store("groups", out)
	return out, nil
}

// RealmIDs returns the ids of Groups in backend order.
func (s *Service) RealmIDs(ctx context.Context) ([]string, error) {
	groups, err := s.Groups(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(groups))
	for _, g := range groups {
		ids = append(ids, string(g.ID))
	}
	return ids, nil
}

// GroupNames maps the caller's realm ids to their names.
func (s *Service) GroupNames(ctx context.Context) (map[string]string, error) {
	key := "names:" + s.subject(ctx)
	if v, ok := s.lookup(key); ok {
		return v.(map[string]string), nil
	}
	out := map[string]string{}
	if err := s.client.Get(ctx, "/auth/admin/groups/names", nil, &out); err != nil {
		return nil, err
	}
	s.store(key, out)
	return out, nil
}

func (s *Service) Username(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: user id is required", api.ErrInvalidInput)
	}
	key := "user:" + userID
	if v, ok := s.lookup(key); ok {
		return v.(string), nil
	}
	var resp struct {
		Username string `json:"username"`
	}
	if err := s.client.Get(ctx, "/auth/admin/users/"+url.PathEscape(userID)+"/username", nil, &resp); err != nil {
		return "", err
	}
	s.store(key, resp.Username)
	return resp.Username, nil
}

// Reviewers lists the users holding the reviewer role in a group, by id.
func (s *Service) Reviewers(ctx context.Context, groupID string) ([]Reviewer, error) {
	if groupID == "" {
		return nil, fmt.Errorf("%w: group id is required", api.ErrInvalidInput)
	}
	key := "reviewers:" + groupID
	if v, ok := s.lookup(key); ok {
		return v.([]Reviewer), nil
	}
	byID := map[string]string{}
	if err := s.client.Get(ctx, "/auth/admin/groups/"+url.PathEscape(groupID)+"/reviewers", nil, &byID); err != nil {
		return nil, err
	}
	out := make([]Reviewer, 0, len(byID))
	for id, name := range byID {
		out = append(out, Reviewer{ID: id, Username: name})
	}
	sort.Slice(out, func(i, j int) bool { return lessID(out[i].ID, out[j].ID) })
	s.store(key, out)
	return out, nil
}

func lessID(a, b string) bool {
	x, errA := strconv.Atoi(a)
	y, errB := strconv.Atoi(b)
	if errA == nil && errB == nil {
		return x < y
	}
	return a < b
}

// subject keys per-user cache entries; tokens that do not decode share one.
func (s *Service) subject(ctx context.Context) string {
	if s.tokens == nil {
		return "anonymous"
	}
	raw, err := s.tokens.Token(ctx)
	if err != nil {
		return "anonymous"
	}
	c, err := token.Decode(raw)
	if err != nil || c.UserID == "" {
		return "anonymous"
	}
	return string(c.UserID)
}

func (s *Service) lookup(key string) (interface{}, bool) {
	if s.cache == nil {
		return nil, false
	}
	return s.cache.Get(key)
}

func (s *Service) store(key string, v interface{}) {
	if s.cache != nil {
		s.cache.SetDefault(key, v)
	}
}
