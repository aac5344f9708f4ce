package router

import (
	"context"
	"strings"
)

// Params are the named values extracted from a ":param" pattern route.
type Params map[string]string

// Loader fetches route data. It receives the extracted params and the
// navigation's context, which is cancelled when a newer navigation starts.
type Loader func(ctx context.Context, params Params) (any, error)

// Guard decides whether a route may be entered.
type Guard func(ctx context.Context) (bool, error)

// Route declares how a slug is loaded.
type Route struct {
	// ViewPath keys the view factory in the Registry.
	ViewPath string

	// Loader and DataKey are optional; data is fetched only when both are set.
	Loader  Loader
	DataKey string

	// Guard is optional; a false result redirects to the login route.
	Guard Guard
}

// DefaultDepth is used for slugs missing from Table.Depths when no
// "default" entry exists.
const DefaultDepth = 1

// unorderedPosition is the position of a slug absent from Table.Order.
const unorderedPosition = 99

// Table is the static route table.
type Table struct {
	// Routes maps a slug or a pattern such as "course/:id" to its Route.
	Routes map[string]Route

	// Depths maps slug -> nesting depth. The "default" entry applies to
	// slugs without their own depth.
	Depths map[string]int

	// Order is the declared navigation order used for the direction heuristic.
	Order []string

	// Default is the slug used for the empty path and "index".
	Default string

	// Login is the slug guarded navigations redirect to.
	Login string

	// NotFound is the slug shown when loading fails.
	NotFound string
}

// Depth returns the nesting depth of slug.
func (t Table) Depth(slug string) int {
	if d, ok := t.Depths[slug]; ok {
		return d
	}
	if d, ok := t.Depths["default"]; ok {
		return d
	}
	return DefaultDepth
}

// Position returns the index of slug in Order, or 99 when absent.
func (t Table) Position(slug string) int {
	for i, s := range t.Order {
		if s == slug {
			return i
		}
	}
	return unorderedPosition
}

// withDefaults fills the fallback slugs.
func (t Table) withDefaults() Table {
	if t.Default == "" {
		t.Default = "home"
	}
	if t.Login == "" {
		t.Login = "login"
	}
	if t.NotFound == "" {
		t.NotFound = "not-found"
	}
	if t.Routes == nil {
		t.Routes = make(map[string]Route)
	}
	return t
}

// isPattern reports whether a route key declares ":param" segments.
func isPattern(key string) bool {
	return strings.Contains(key, ":")
}

// matchPattern matches path against pattern segment by segment and returns
// the extracted params, or nil when they do not match.
func matchPattern(pattern, path string) Params {
	p := splitSegments(pattern)
	u := splitSegments(path)
	if len(p) != len(u) {
		return nil
	}

	params := Params{}
	for i, part := range p {
		if name, ok := strings.CutPrefix(part, ":"); ok {
			params[name] = u[i]
			continue
		}
		if part != u[i] {
			return nil
		}
	}
	return params
}

func splitSegments(path string) []string {
	var out []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
