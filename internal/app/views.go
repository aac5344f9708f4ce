package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/axiom/internal/router"
	"github.com/roach88/axiom/internal/store"
)

// View paths registered by every App.
const (
	ViewHome     = "home"
	ViewCourse   = "course"
	ViewGlossary = "glossary"
	ViewLogin    = "login"
	ViewNotFound = "not-found"
)

func (a *App) registerViews() {
	a.views.Register(ViewHome, func(router.Params) (router.View, error) {
		return &homeView{app: a}, nil
	})
	a.views.Register(ViewCourse, func(router.Params) (router.View, error) {
		return a.player, nil
	})
	a.views.Register(ViewGlossary, func(router.Params) (router.View, error) {
		return &glossaryView{app: a}, nil
	})
	a.views.Register(ViewLogin, func(router.Params) (router.View, error) {
		return router.StaticView("# Sign in\nA learner id is required to continue.\n"), nil
	})
	a.views.Register(ViewNotFound, func(router.Params) (router.View, error) {
		return router.StaticView("# Not found\nThe page you asked for does not exist.\n"), nil
	})

	// Routes backed by API data render whatever their loader cached.
	for slug, rc := range a.cfg.Routes {
		if rc.DataKey == "" || a.registered(rc.View) {
			continue
		}
		slug, key := slug, rc.DataKey
		a.views.Register(rc.View, func(router.Params) (router.View, error) {
			return &dataView{store: a.store, title: slug, key: key}, nil
		})
	}
}

func (a *App) registered(path string) bool {
	for _, p := range a.views.Paths() {
		if p == path {
			return true
		}
	}
	return false
}

// homeView greets the learner with the course title once it is known.
type homeView struct {
	app   *App
	title string
}

// Ready fetches the course document without entering a page.
func (v *homeView) Ready(ctx context.Context) error {
	c, err := v.app.player.Document(ctx)
	if err != nil {
		return err
	}
	v.title = c.Meta.Title
	return nil
}

func (v *homeView) Render() string {
	var b strings.Builder
	b.WriteString("# Home\n")
	if v.title != "" {
		fmt.Fprintf(&b, "Course: %s\n", v.title)
	}
	if id, _ := store.GetAs[string](v.app.store, KeyLearner); id != "" {
		fmt.Fprintf(&b, "Learner: %s\n", id)
	}
	return b.String()
}

// glossaryView lists the course glossary.
type glossaryView struct {
	app *App
}

func (v *glossaryView) Ready(ctx context.Context) error {
	_, err := v.app.player.Document(ctx)
	return err
}

func (v *glossaryView) Render() string {
	var b strings.Builder
	b.WriteString("# Glossary\n")
	terms := v.app.player.Engine().Glossary()
	if len(terms) == 0 {
		b.WriteString("(no terms)\n")
	}
	for _, t := range terms {
		fmt.Fprintf(&b, "- %s: %s\n", t.Term, t.Definition)
	}
	return b.String()
}

// dataView renders the route data cached under key as indented JSON.
type dataView struct {
	store *store.Store
	title string
	key   string
}

func (v *dataView) Render() string {
	var data any
	if r, ok := v.store.Get(v.key).(store.Resource); ok {
		data = r.Data
	}
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("# %s\n! %v\n", v.title, err)
	}
	return fmt.Sprintf("# %s\n%s\n", v.title, out)
}
