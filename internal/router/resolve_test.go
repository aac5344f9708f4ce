package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testTable() Table {
	return Table{
		Routes: map[string]Route{
			"home":       {ViewPath: "home/home"},
			"about":      {ViewPath: "about/about"},
			"course/:id": {ViewPath: "course/course"},
			"login":      {ViewPath: "login/login"},
			"not-found":  {ViewPath: "not-found/not-found"},
		},
		Depths:  map[string]int{"home": 0, "default": 1},
		Order:   []string{"home", "about", "dashboard"},
		Default: "home",
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		path     string
		slug     string
		view     string
		params   Params
		fallback bool
	}{
		{name: "root", base: "/", path: "/", slug: "home", view: "home/home"},
		{name: "trailing slash", base: "/", path: "/about/", slug: "about", view: "about/about"},
		{name: "query string", base: "/", path: "/about?tab=2", slug: "about", view: "about/about"},
		{name: "index file", base: "/", path: "/index.html", slug: "home", view: "home/home"},
		{name: "extension", base: "/", path: "/about.html", slug: "about", view: "about/about"},
		{
			name:   "pattern",
			base:   "/",
			path:   "/course/42",
			slug:   "course/:id",
			view:   "course/course",
			params: Params{"id": "42"},
		},
		{name: "unknown", base: "/", path: "/reports", slug: "reports", view: "reports/reports", fallback: true},
		{name: "accents folded", base: "/", path: "/Café", slug: "Cafe", view: "Cafe/Cafe", fallback: true},
		{name: "under base", base: "/app/", path: "/app/about", slug: "about", view: "about/about"},
		{name: "base without slash", base: "/app", path: "/app", slug: "home", view: "home/home"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := testTable().Resolve(tt.base, tt.path)
			assert.Equal(t, tt.slug, res.Slug)
			assert.Equal(t, tt.view, res.Route.ViewPath)
			assert.Equal(t, tt.fallback, res.Fallback)
			if tt.params == nil {
				assert.Empty(t, res.Params)
			} else {
				assert.Equal(t, tt.params, res.Params)
			}
		})
	}
}

func TestMatchPattern(t *testing.T) {
	assert.Equal(t, Params{"id": "7", "page": "3"}, matchPattern("course/:id/page/:page", "course/7/page/3"))
	assert.Nil(t, matchPattern("course/:id", "course/7/extra"))
	assert.Nil(t, matchPattern("course/:id", "lesson/7"))
}

func TestTable_DepthAndPosition(t *testing.T) {
	tbl := testTable()
	assert.Equal(t, 0, tbl.Depth("home"))
	assert.Equal(t, 1, tbl.Depth("about"))
	assert.Equal(t, 1, Table{}.Depth("anything"))

	assert.Equal(t, 1, tbl.Position("about"))
	assert.Equal(t, 99, tbl.Position("login"))
}

func TestURL(t *testing.T) {
	assert.Equal(t, "/", URL("/", ""))
	assert.Equal(t, "/about", URL("/", "about"))
	assert.Equal(t, "/app/about", URL("/app", "about"))
}
