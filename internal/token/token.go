// Package token decodes, verifies and mints the bearer tokens issued by the
// auth service. Decode is the only place the client reads token payloads.
package token

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	BearerPrefix = "Bearer "
	RoleAdmin    = "admin"
)

var (
	ErrEmpty     = errors.New("token is empty")
	ErrMalformed = errors.New("token is malformed")
)

// UserID accepts both numeric and string identifiers from the auth service.
type UserID string

func (u *UserID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*u = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*u = UserID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("uid: %w", err)
	}
	*u = UserID(n.String())
	return nil
}

func (u UserID) MarshalJSON() ([]byte, error) {
	// only canonical integers go out bare; "007" or "+3" stay strings
	if n, err := strconv.ParseInt(string(u), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(u) {
		return []byte(u), nil
	}
	return json.Marshal(string(u))
}

// RealmRole is one entry of the realm_roles claim.
type RealmRole struct {
	Realm string
	Roles []string
}

// RealmRoles keeps the realm_roles object in the order the issuer wrote it.
type RealmRoles []RealmRole

// UnmarshalJSON reads {"<realm>": "role"} or {"<realm>": ["role", ...]}.
// Anything other than an object decodes to no roles. A repeated realm keeps
// its first position and takes the last value.
func (r *RealmRoles) UnmarshalJSON(b []byte) error {
	*r = nil
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil
	}
	seen := map[string]int{}
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := kt.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		if i, ok := seen[key]; ok {
			(*r)[i].Roles = parseRoles(raw)
			continue
		}
		seen[key] = len(*r)
		*r = append(*r, RealmRole{Realm: key, Roles: parseRoles(raw)})
	}
	_, err = dec.Token()
	return err
}

func parseRoles(raw json.RawMessage) []string {
	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		return []string{one}
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		return many
	}
	return nil
}

func (r RealmRoles) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, rr := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(rr.Realm)
		if err != nil {
			return nil, err
		}
		roles := rr.Roles
		if roles == nil {
			roles = []string{}
		}
		v, err := json.Marshal(roles)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Claims is the decoded payload of an auth service token.
type Claims struct {
	UserID     UserID     `json:"uid,omitempty"`
	Username   string     `json:"username,omitempty"`
	GlobalRole string     `json:"global_role,omitempty"`
	RealmRoles RealmRoles `json:"realm_roles,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) IsAdmin() bool {
	return strings.EqualFold(c.GlobalRole, RoleAdmin)
}

// RealmIDs returns the realm identifiers in token order.
func (c *Claims) RealmIDs() []string {
	out := make([]string, 0, len(c.RealmRoles))
	for _, rr := range c.RealmRoles {
		out = append(out, rr.Realm)
	}
	return out
}

func (c *Claims) HasRole(realm, role string) bool {
	for _, rr := range c.RealmRoles {
		if rr.Realm != realm {
			continue
		}
		for _, r := range rr.Roles {
			if strings.EqualFold(r, role) {
				return true
			}
		}
	}
	return false
}

// CanAuthor reports whether the flow service lets c create documents in
// realm, which takes a user or admin role there.
func (c *Claims) CanAuthor(realm string) bool {
	return c.HasRole(realm, "user") || c.HasRole(realm, RoleAdmin)
}

// Expired reports whether exp is set and lies before now.
func (c *Claims) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && now.After(c.ExpiresAt.Time)
}

// Strip removes a leading "Bearer " so stored values never carry it twice.
func Strip(raw string) string {
	raw = strings.TrimSpace(raw)
	for strings.HasPrefix(raw, BearerPrefix) {
		raw = strings.TrimSpace(strings.TrimPrefix(raw, BearerPrefix))
	}
	return raw
}

// Decode parses the payload without verifying the signature. The client only
// uses the result for realm derivation and diagnostics; the backend verifies.
func Decode(raw string) (*Claims, error) {
	raw = Strip(raw)
	if raw == "" {
		return nil, ErrEmpty
	}
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return claims, nil
}

// Verify checks an HS256 signature and the registered time claims.
func Verify(raw string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(Strip(raw), claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// Sign mints an HS256 token for c valid for ttl.
func Sign(secret []byte, c *Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	c.IssuedAt = jwt.NewNumericDate(now)
	if ttl > 0 {
		c.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(secret)
}
