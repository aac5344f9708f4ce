package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/axiom/internal/store"
)

// Phase is the router's position in the navigation state machine.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseResolving   Phase = "resolving"
	PhaseGuarded     Phase = "guarded"
	PhaseRedirecting Phase = "redirecting"
	PhaseLoading     Phase = "loading"
	PhaseCommitted   Phase = "committed"
	PhaseAborted     Phase = "aborted"
	PhasePanicked    Phase = "panicked"
)

// Panic screen messages.
const (
	PanicNotFoundFailed = "System Panic: 404 Component Failed"
	PanicNotFoundBroken = "System Panic: 404 Logic Broken"
)

// DefaultDataTTL is the cache lifetime of route data.
const DefaultDataTTL = store.DefaultQueryTTL

// Request is one navigation call.
type Request struct {
	Path string

	// Push appends a history entry. Pop-state and the initial navigation
	// do not push.
	Push bool

	// Direction overrides the computed transition direction when set.
	Direction Direction
}

// Outcome reports how a navigation ended.
type Outcome struct {
	// Phase is PhaseCommitted, PhaseAborted, PhaseRedirecting (only when
	// the login navigation was itself aborted) or PhasePanicked.
	Phase     Phase
	Slug      string
	Direction Direction

	// Index is the history index after the navigation.
	Index int

	// Redirected is true when a guard sent the navigation to the login route.
	Redirected bool

	// Err is the recovered failure when the not-found view was shown.
	Err error
}

// Click describes an activated anchor element.
type Click struct {
	Href                   string
	Meta, Ctrl, Shift, Alt bool
}

// Router resolves paths, runs guards, loads views and route data, and
// commits the result to the store.
//
// Thread-safety: Navigate may be called from any goroutine. A newer call
// cancels the context of the one in flight, which then exits as Aborted
// without committing.
//
// INVARIANTS:
//   - At most one navigation commits per Navigate call
//   - A cancelled navigation never writes the route key
//   - The history index only grows on push navigations
//   - Once Panicked, every further Navigate fails with ErrCodePanic
type Router struct {
	mu        sync.Mutex
	seq       uint64
	cancel    context.CancelFunc
	phase     Phase
	lastIndex int
	view      View
	current   string

	table       Table
	base        string
	origin      string
	store       *store.Store
	views       *Registry
	history     History
	doc         Document
	scroll      ScrollStore
	transitions TransitionRunner
	ttl         time.Duration
}

// Option configures a Router.
type Option func(*Router)

// WithBase sets the application base path (default "/").
func WithBase(base string) Option {
	return func(r *Router) {
		r.base = NormalizeBase(base)
	}
}

// WithOrigin sets the origin absolute links must match to be intercepted.
func WithOrigin(origin string) Option {
	return func(r *Router) {
		r.origin = strings.TrimSuffix(origin, "/")
	}
}

// WithHistory sets the history capability.
func WithHistory(h History) Option {
	return func(r *Router) {
		r.history = h
	}
}

// WithDocument sets the document capability.
func WithDocument(d Document) Option {
	return func(r *Router) {
		r.doc = d
	}
}

// WithScrollStore sets where per-path scroll positions are kept.
func WithScrollStore(s ScrollStore) Option {
	return func(r *Router) {
		r.scroll = s
	}
}

// WithTransitionRunner sets the view transition capability.
func WithTransitionRunner(t TransitionRunner) Option {
	return func(r *Router) {
		r.transitions = t
	}
}

// WithDataTTL sets the cache lifetime of route data.
func WithDataTTL(ttl time.Duration) Option {
	return func(r *Router) {
		r.ttl = ttl
	}
}

// New creates a router. Capabilities default to in-memory history,
// a headless document and no transition animation.
func New(st *store.Store, table Table, views *Registry, opts ...Option) *Router {
	r := &Router{
		phase:       PhaseIdle,
		table:       table.withDefaults(),
		base:        "/",
		store:       st,
		views:       views,
		doc:         &HeadlessDocument{},
		scroll:      NewMemoryScroll(),
		transitions: NoTransition{},
		ttl:         DefaultDataTTL,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.history == nil {
		r.history = NewMemoryHistory(r.base)
	}
	return r
}

// Phase returns the current phase.
func (r *Router) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// View returns the mounted view, or nil before the first commit.
func (r *Router) View() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.view
}

// LastIndex returns the last history index the router has seen.
func (r *Router) LastIndex() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastIndex
}

// Base returns the normalized base path.
func (r *Router) Base() string {
	return r.base
}

// Resolve resolves path without navigating.
func (r *Router) Resolve(path string) Resolution {
	return r.table.Resolve(r.base, path)
}

// Start seeds the history index of the current entry and performs the
// initial non-push navigation to the current URL.
func (r *Router) Start(ctx context.Context) (Outcome, error) {
	st, ok := r.history.State()
	if !ok {
		st = HistoryState{Index: 0}
		r.history.Replace(st, "")
	}
	r.mu.Lock()
	r.lastIndex = st.Index
	r.mu.Unlock()

	return r.Navigate(ctx, Request{Path: r.history.Path()})
}

// Push navigates to path with a new history entry.
func (r *Router) Push(ctx context.Context, path string) (Outcome, error) {
	return r.Navigate(ctx, Request{Path: path, Push: true})
}

// PopState handles a back/forward move to path. With a state the direction
// compares its index with the last seen index; without one it is Fade.
func (r *Router) PopState(ctx context.Context, path string, state *HistoryState) (Outcome, error) {
	dir := Fade
	if state != nil {
		r.mu.Lock()
		if state.Index < r.lastIndex {
			dir = Backward
		} else {
			dir = Forward
		}
		r.lastIndex = state.Index
		r.mu.Unlock()
	}
	return r.Navigate(ctx, Request{Path: path, Direction: dir})
}

// Intercept routes a same-origin link click through Navigate. It reports
// false, leaving the click to the browser, when a modifier key is held,
// the link points to another origin, or the target is outside the base path.
func (r *Router) Intercept(ctx context.Context, c Click) (bool, error) {
	if c.Meta || c.Ctrl || c.Shift || c.Alt {
		return false, nil
	}

	ref, err := url.Parse(c.Href)
	if err != nil {
		return false, nil
	}
	if ref.Scheme != "" || ref.Host != "" {
		if ref.Scheme+"://"+ref.Host != r.origin {
			return false, nil
		}
	}

	current, err := url.Parse(r.history.Path())
	if err != nil {
		current = &url.URL{Path: r.base}
	}
	target := current.ResolveReference(ref)
	if r.base != "/" && !strings.HasPrefix(target.Path, r.base) && target.Path+"/" != r.base {
		return false, nil
	}

	path := target.Path
	if target.RawQuery != "" {
		path += "?" + target.RawQuery
	}
	_, err = r.Push(ctx, path)
	return true, err
}

// Navigate runs one navigation to completion.
//
// The returned error is non-nil only when the router panics. Recovered
// failures are reported in Outcome.Err; cancellation is reported as
// PhaseAborted with no error.
func (r *Router) Navigate(ctx context.Context, req Request) (Outcome, error) {
	if r.Phase() == PhasePanicked {
		return Outcome{Phase: PhasePanicked}, &NavigationError{Code: ErrCodePanic, Path: req.Path}
	}

	y := r.doc.ScrollY()
	if req.Push {
		st, _ := r.history.State()
		st.ScrollY = y
		r.history.Replace(st, "")
	}
	if leaving := r.currentPath(); leaving != "" {
		r.scroll.Save(leaving, y)
	}

	navCtx, seq := r.begin(ctx)
	defer r.end(seq)

	res := r.table.Resolve(r.base, req.Path)
	dir := r.direction(req, res.Slug)
	slog.Debug("navigation resolved",
		"path", req.Path,
		"slug", res.Slug,
		"fallback", res.Fallback,
		"push", req.Push,
		"direction", dir)

	var (
		out      Outcome
		redirect bool
	)
	err := r.transitions.Run(navCtx, func() error {
		var err error
		out, redirect, err = r.perform(navCtx, seq, req, res, dir)
		return err
	})
	r.doc.ClearTransition()

	if redirect {
		login, lerr := r.Navigate(ctx, Request{
			Path:      URL(r.base, r.table.Login),
			Push:      true,
			Direction: Fade,
		})
		login.Redirected = true
		if login.Phase == PhaseAborted {
			login.Phase = PhaseRedirecting
		}
		return login, lerr
	}
	return out, err
}

func (r *Router) currentPath() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

func (r *Router) begin(ctx context.Context) (context.Context, uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
	}
	navCtx, cancel := context.WithCancel(ctx)
	r.seq++
	r.cancel = cancel
	r.phase = PhaseResolving
	return navCtx, r.seq
}

func (r *Router) end(seq uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seq != seq {
		return
	}
	r.cancel()
	r.cancel = nil
	if r.phase != PhasePanicked {
		r.phase = PhaseIdle
	}
}

// setPhase records p unless a newer navigation has started or the router
// has panicked.
func (r *Router) setPhase(seq uint64, p Phase) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seq != seq || r.phase == PhasePanicked {
		return
	}
	r.phase = p
	slog.Debug("router phase", "phase", p)
}

func (r *Router) direction(req Request, slug string) Direction {
	if req.Direction != "" {
		return req.Direction
	}
	if !req.Push {
		return Fade
	}

	current, _ := store.GetAs[string](r.store, store.KeyRoute)
	if current == "" {
		current = r.table.Default
	}

	cd, nd := r.table.Depth(current), r.table.Depth(slug)
	if nd != cd {
		if nd > cd {
			return Forward
		}
		return Backward
	}
	if r.table.Position(slug) > r.table.Position(current) {
		return Forward
	}
	return Backward
}

func (r *Router) perform(ctx context.Context, seq uint64, req Request, res Resolution, dir Direction) (Outcome, bool, error) {
	out := Outcome{Slug: res.Slug, Direction: dir}

	if guard := res.Route.Guard; guard != nil {
		r.setPhase(seq, PhaseGuarded)
		ok, err := guard(ctx)
		if ctx.Err() != nil {
			return r.aborted(seq, out), false, nil
		}
		if err != nil {
			return r.fallback(seq, res, dir, &NavigationError{
				Code: ErrCodeGuardFailed, Slug: res.Slug, Path: req.Path, Err: err,
			})
		}
		if !ok {
			r.setPhase(seq, PhaseRedirecting)
			slog.Warn("access denied, redirecting to login", "slug", res.Slug, "path", req.Path)
			r.store.Set(store.KeyRedirectAfterAuth, req.Path)
			r.store.Notify("Authentication Required", store.KindWarning, store.DefaultNotifyDuration)
			out.Phase = PhaseRedirecting
			return out, true, nil
		}
	}

	if ctx.Err() != nil {
		return r.aborted(seq, out), false, nil
	}

	r.store.Set(store.KeyTransitioning, true)
	r.store.Set(store.KeyParams, res.Params)
	r.setPhase(seq, PhaseLoading)

	view, err := r.load(ctx, req, res)
	if ctx.Err() != nil {
		return r.aborted(seq, out), false, nil
	}
	if err != nil {
		var ne *NavigationError
		if !errors.As(err, &ne) {
			ne = &NavigationError{Code: ErrCodeViewFailed, Slug: res.Slug, Path: req.Path, Err: err}
		}
		return r.fallback(seq, res, dir, ne)
	}

	return r.commit(ctx, seq, req, res, dir, view), false, nil
}

// load builds the view and fetches route data concurrently. Only the data
// branch observes ctx; a view factory always runs to completion.
func (r *Router) load(ctx context.Context, req Request, res Resolution) (View, error) {
	g, gctx := errgroup.WithContext(ctx)

	var view View
	g.Go(func() error {
		v, err := r.views.Build(res.Route.ViewPath, res.Params)
		if err != nil {
			code := ErrCodeViewFailed
			if errors.Is(err, ErrViewNotFound) {
				code = ErrCodeViewNotFound
			}
			return &NavigationError{Code: code, Slug: res.Slug, Path: req.Path, Err: err}
		}
		view = v
		return nil
	})

	if loader, key := res.Route.Loader, res.Route.DataKey; loader != nil && key != "" {
		g.Go(func() error {
			_, err := r.store.Query(gctx, key, func(fctx context.Context) (any, error) {
				if err := fctx.Err(); err != nil {
					return nil, err
				}
				return loader(fctx, res.Params)
			}, r.ttl)
			if err != nil && !IsCancelled(err) {
				return &NavigationError{Code: ErrCodeDataFetchFailed, Slug: res.Slug, Path: req.Path, Err: err}
			}
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return view, nil
}

func (r *Router) commit(ctx context.Context, seq uint64, req Request, res Resolution, dir Direction, view View) Outcome {
	r.setPhase(seq, PhaseCommitted)

	r.mu.Lock()
	if req.Push {
		r.lastIndex++
		r.history.Push(HistoryState{Index: r.lastIndex}, URL(r.base, res.CleanPath))
	}
	idx := r.lastIndex
	r.view = view
	r.current = req.Path
	r.mu.Unlock()

	r.doc.SetTransition(dir)
	r.store.Set(store.KeyRoute, res.Slug)

	if rd, ok := view.(Readier); ok {
		if err := rd.Ready(ctx); err != nil {
			slog.Warn("view not ready", "slug", res.Slug, "error", err)
		}
	}

	y, _ := r.scroll.Load(req.Path)
	r.doc.ScrollTo(y)
	r.store.Set(store.KeyTransitioning, false)
	r.doc.Focus()

	slog.Info("route committed", "slug", res.Slug, "index", idx, "direction", dir)
	return Outcome{Phase: PhaseCommitted, Slug: res.Slug, Direction: dir, Index: idx}
}

func (r *Router) aborted(seq uint64, out Outcome) Outcome {
	r.setPhase(seq, PhaseAborted)
	slog.Debug("navigation aborted", "slug", out.Slug)
	out.Phase = PhaseAborted
	out.Index = r.LastIndex()
	return out
}

// fallback shows the not-found view after a failed load. The history entry
// is rewritten in place; the index does not move.
func (r *Router) fallback(seq uint64, res Resolution, dir Direction, cause *NavigationError) (Outcome, bool, error) {
	slog.Error("navigation failed", "slug", res.Slug, "code", cause.Code, "error", cause)
	r.store.Set(store.KeyTransitioning, false)

	notFound := r.table.NotFound
	if res.Slug == notFound {
		out, err := r.enterPanic(res.Slug, PanicNotFoundBroken, cause)
		return out, false, err
	}

	r.store.Notify(fmt.Sprintf("Route not found: %s", res.Slug), store.KindWarning, store.DefaultNotifyDuration)

	view, err := r.views.Build(r.notFoundViewPath(), Params{})
	if err != nil {
		out, perr := r.enterPanic(res.Slug, PanicNotFoundFailed, err)
		return out, false, perr
	}

	r.mu.Lock()
	r.view = view
	r.current = URL(r.base, notFound)
	idx := r.lastIndex
	r.mu.Unlock()

	r.store.Set(store.KeyRoute, notFound)
	r.history.Replace(HistoryState{Index: idx}, URL(r.base, notFound))
	r.setPhase(seq, PhaseCommitted)

	return Outcome{Phase: PhaseCommitted, Slug: notFound, Direction: dir, Index: idx, Err: cause}, false, nil
}

func (r *Router) notFoundViewPath() string {
	if route, ok := r.table.Routes[r.table.NotFound]; ok && route.ViewPath != "" {
		return route.ViewPath
	}
	return r.table.NotFound + "/" + r.table.NotFound
}

func (r *Router) enterPanic(slug, message string, cause error) (Outcome, error) {
	r.mu.Lock()
	r.phase = PhasePanicked
	r.mu.Unlock()

	slog.Error("router panic", "slug", slug, "message", message, "error", cause)
	r.doc.Panic(message)
	return Outcome{Phase: PhasePanicked, Slug: slug}, &NavigationError{
		Code: ErrCodePanic,
		Slug: slug,
		Err:  cause,
	}
}
