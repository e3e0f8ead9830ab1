// Package nav holds the client's route table, the route guard and the
// Location the request guard redirects.
package nav

import (
	"strings"
	"sync"
)

type Route struct {
	Name         string
	Pattern      string
	RequiresAuth bool
}

var (
	Home          = Route{Name: "Home", Pattern: "/"}
	Login         = Route{Name: "Login", Pattern: "/login"}
	Editor        = Route{Name: "Editor", Pattern: "/editor/:id", RequiresAuth: true}
	Viewer        = Route{Name: "Viewer", Pattern: "/viewer/:id", RequiresAuth: true}
	Notifications = Route{Name: "Notifications", Pattern: "/notifications", RequiresAuth: true}
	Review        = Route{Name: "Review", Pattern: "/review/:id", RequiresAuth: true}
)

var Routes = []Route{Home, Login, Editor, Viewer, Notifications, Review}

// Path fills the route's parameters in order.
func (r Route) Path(params ...string) string {
	segs := strings.Split(r.Pattern, "/")
	i := 0
	for n, s := range segs {
		if strings.HasPrefix(s, ":") && i < len(params) {
			segs[n] = params[i]
			i++
		}
	}
	return strings.Join(segs, "/")
}

// Match finds the route for path and extracts its parameters.
func Match(path string) (Route, map[string]string, bool) {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if path != "/" {
		path = strings.TrimRight(path, "/")
	}
	want := strings.Split(path, "/")
	for _, r := range Routes {
		pat := strings.Split(r.Pattern, "/")
		if len(pat) != len(want) {
			continue
		}
		params := map[string]string{}
		ok := true
		for i, p := range pat {
			switch {
			case strings.HasPrefix(p, ":"):
				if want[i] == "" {
					ok = false
				}
				params[p[1:]] = want[i]
			case p != want[i]:
				ok = false
			}
			if !ok {
				break
			}
		}
		if ok {
			return r, params, true
		}
	}
	return Route{}, nil, false
}

// Resolve applies the route guard: protected routes need a token and a
// signed-in user is sent from Login to Home.
func Resolve(to Route, hasToken bool) Route {
	if to.RequiresAuth {
		if !hasToken {
			return Login
		}
		return to
	}
	if to.Name == Login.Name && hasToken {
		return Home
	}
	return to
}

// Location is the navigator of a single client: the current path plus a
// hook fired on forced redirects.
type Location struct {
	mu         sync.Mutex
	path       string
	onRedirect func(path string)
}

func NewLocation(path string, onRedirect func(string)) *Location {
	if path == "" {
		path = Home.Pattern
	}
	return &Location{path: path, onRedirect: onRedirect}
}

func (l *Location) Location() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.path
}

func (l *Location) Redirect(path string) {
	l.mu.Lock()
	l.path = path
	hook := l.onRedirect
	l.mu.Unlock()
	if hook != nil {
		hook(path)
	}
}

// Visit navigates to path through the route guard and returns the route
// actually reached. Unknown paths fall through to Home.
func (l *Location) Visit(path string, hasToken bool) Route {
	to, _, ok := Match(path)
	if !ok {
		to = Home
		path = Home.Pattern
	}
	got := Resolve(to, hasToken)
	if got.Name != to.Name {
		path = got.Pattern
	}
	l.mu.Lock()
	l.path = path
	l.mu.Unlock()
	return got
}
