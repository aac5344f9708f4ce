// Package app is the composition root of the player shell.
//
// One App owns exactly one store, router and player. UI events are
// queued and applied by a single writer loop (Run), so store writes from
// navigation and page actions never interleave. The rendered frame of the
// mounted view is recomputed after every event that changed the route or
// any other store key.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/roach88/axiom/internal/config"
	"github.com/roach88/axiom/internal/course"
	"github.com/roach88/axiom/internal/gateway"
	"github.com/roach88/axiom/internal/player"
	"github.com/roach88/axiom/internal/router"
	"github.com/roach88/axiom/internal/session"
	"github.com/roach88/axiom/internal/store"
)

// KeyLearner holds the signed-in learner id. Guarded routes require it.
const KeyLearner = "learner"

// ErrClosed is returned by Send once the event loop has stopped.
var ErrClosed = errors.New("app: event loop closed")

// EventKind names a UI event.
type EventKind string

const (
	EventNavigate EventKind = "navigate"
	EventClick    EventKind = "click"
	EventBack     EventKind = "back"
	EventForward  EventKind = "forward"
	EventLogin    EventKind = "login"
	EventAnswer   EventKind = "answer"
	EventNext     EventKind = "next"
	EventPrev     EventKind = "prev"
	EventGoTo     EventKind = "goto"
	EventComment  EventKind = "comment"
	EventNotes    EventKind = "notes"
	EventReset    EventKind = "reset"
	EventFinish   EventKind = "finish"
)

// Event is one queued UI event. Only the fields relevant to Kind are read.
type Event struct {
	Kind EventKind

	// navigate
	Path string

	// click
	Click router.Click

	// answer
	Answer player.Answer

	// goto
	Index int

	// login (learner id), comment and notes
	Text string

	// comment
	Location string

	reply chan Result
}

// Result reports how an event was applied.
type Result struct {
	Outcome router.Outcome
	Handled bool
	Grade   course.Grade
	OK      bool
	Err     error
}

// App wires the store, router, player and session together.
//
// Thread-safety: Send and Enqueue may be called from any goroutine. Handle
// must only be called from the goroutine running Run, or when Run is not
// running at all.
type App struct {
	cfg     *config.Config
	store   *store.Store
	router  *router.Router
	player  *player.Player
	views   *router.Registry
	history *router.MemoryHistory
	doc     *router.HeadlessDocument
	session *Session
	client  *gateway.Client
	queue   *eventQueue

	mu          sync.Mutex
	frame       string
	dirty       bool
	onFrame     func(string)
	unsubscribe func()
}

type options struct {
	bridge     session.Bridge
	source     player.Source
	now        func() time.Time
	scheduler  store.Scheduler
	ids        store.IDGenerator
	historyURL string
	learner    string
	httpClient *http.Client
	onFrame    func(string)
}

// Option configures an App.
type Option func(*options)

// WithBridge uses b instead of opening the configured session backend.
func WithBridge(b session.Bridge) Option {
	return func(o *options) {
		o.bridge = b
	}
}

// WithSource overrides the configured course location.
func WithSource(src player.Source) Option {
	return func(o *options) {
		o.source = src
	}
}

// WithClock overrides the wall clock of the store, player and session.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithScheduler overrides the notification dismiss timer.
func WithScheduler(s store.Scheduler) Option {
	return func(o *options) {
		o.scheduler = s
	}
}

// WithIDGenerator overrides the notification id generator.
func WithIDGenerator(g store.IDGenerator) Option {
	return func(o *options) {
		o.ids = g
	}
}

// WithInitialURL sets the URL the history starts on. Defaults to the base path.
func WithInitialURL(url string) Option {
	return func(o *options) {
		o.historyURL = url
	}
}

// WithLearner signs a learner in before the first navigation.
func WithLearner(id string) Option {
	return func(o *options) {
		o.learner = id
	}
}

// WithHTTPClient sets the HTTP client used by the API gateway.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		o.httpClient = hc
	}
}

// WithFrameListener calls fn with each newly rendered frame.
func WithFrameListener(fn func(frame string)) Option {
	return func(o *options) {
		o.onFrame = fn
	}
}

// New builds an App from cfg. The session backend is opened here; call
// Close to release it.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	storeOpts := []store.Option{
		store.WithClock(o.now),
		store.WithValues(map[string]any{store.KeyTheme: cfg.Theme}),
	}
	if o.scheduler != nil {
		storeOpts = append(storeOpts, store.WithScheduler(o.scheduler))
	}
	if o.ids != nil {
		storeOpts = append(storeOpts, store.WithIDGenerator(o.ids))
	}
	st := store.New(storeOpts...)

	a := &App{
		cfg:     cfg,
		store:   st,
		views:   router.NewRegistry(),
		doc:     &router.HeadlessDocument{},
		queue:   newEventQueue(),
		onFrame: o.onFrame,
	}

	if cfg.APIBase != "" {
		gcfg := gateway.DefaultConfig(cfg.APIBase)
		gcfg.Version = cfg.Version
		var gopts []gateway.Option
		if o.httpClient != nil {
			gopts = append(gopts, gateway.WithHTTPClient(o.httpClient))
		}
		a.client = gateway.New(gcfg, gopts...)
	}

	src := o.source
	if src == nil {
		var err error
		if src, err = a.courseSource(); err != nil {
			return nil, err
		}
	}

	if o.bridge != nil {
		a.session = &Session{Bridge: o.bridge, Backend: "custom"}
	} else {
		s, err := OpenSession(ctx, cfg.Session, cfg.Registration, o.now)
		if err != nil {
			return nil, fmt.Errorf("open session: %w", err)
		}
		a.session = s
	}

	a.player = player.New(st, src,
		player.WithBridge(a.session.Bridge),
		player.WithClock(o.now),
		player.WithQueryTTL(cfg.QueryTTL.Std()),
	)

	if learner := a.learnerID(o.learner); learner != "" {
		st.Set(KeyLearner, learner)
	}

	a.registerViews()
	table, err := a.table()
	if err != nil {
		a.session.Close()
		return nil, err
	}

	initial := o.historyURL
	if initial == "" {
		initial = router.NormalizeBase(cfg.BasePath)
	}
	a.history = router.NewMemoryHistory(initial)
	a.router = router.New(st, table, a.views,
		router.WithBase(cfg.BasePath),
		router.WithHistory(a.history),
		router.WithDocument(a.doc),
		router.WithDataTTL(cfg.QueryTTL.Std()),
	)

	a.unsubscribe = st.Subscribe(func(store.Event) {
		a.mu.Lock()
		a.dirty = true
		a.mu.Unlock()
	})

	slog.Info("app ready",
		"base", cfg.BasePath,
		"course", src.Name(),
		"session", a.session.Backend)
	return a, nil
}

// courseSource resolves cfg.Course to a local file or an API endpoint.
func (a *App) courseSource() (player.Source, error) {
	loc := a.cfg.Course
	if loc == "" {
		return nil, errors.New("no course configured")
	}
	if endpoint, ok := strings.CutPrefix(loc, "api:"); ok {
		if a.client == nil {
			return nil, fmt.Errorf("course %q needs api_base", loc)
		}
		return gateway.CourseSource{Client: a.client, Endpoint: endpoint}, nil
	}
	return player.FileSource(loc), nil
}

// learnerID picks the explicit learner, else the session's learner id.
func (a *App) learnerID(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if !session.Live(a.session.Bridge) {
		return ""
	}
	id := a.session.Bridge.GetField(session.FieldLearnerID)
	if id == session.Sentinel {
		return ""
	}
	return id
}

// RouteTable builds the router table for cfg without loaders or guards.
func RouteTable(cfg *config.Config) router.Table {
	t := router.Table{
		Routes:   make(map[string]router.Route, len(cfg.Routes)),
		Depths:   cfg.RouteDepths,
		Order:    declaredOrder(cfg.RouteOrder),
		Default:  cfg.DefaultRoute,
		Login:    cfg.LoginRoute,
		NotFound: cfg.NotFoundRoute,
	}
	for slug, rc := range cfg.Routes {
		t.Routes[slug] = router.Route{ViewPath: rc.View, DataKey: rc.DataKey}
	}
	return t
}

// table builds the router table from the configured routes.
func (a *App) table() (router.Table, error) {
	t := RouteTable(a.cfg)
	for slug, rc := range a.cfg.Routes {
		r := t.Routes[slug]
		r.DataKey = ""
		if rc.Endpoint != "" {
			if a.client == nil {
				return router.Table{}, fmt.Errorf("route %q needs api_base", slug)
			}
			r.Loader = a.client.Loader(rc.Endpoint)
			r.DataKey = rc.DataKey
		}
		if rc.Guarded {
			r.Guard = a.signedIn
		}
		t.Routes[slug] = r
	}
	return t, nil
}

// declaredOrder sorts slugs by their configured position.
func declaredOrder(positions map[string]int) []string {
	out := make([]string, 0, len(positions))
	for slug := range positions {
		out = append(out, slug)
	}
	sort.Slice(out, func(i, j int) bool {
		pi, pj := positions[out[i]], positions[out[j]]
		if pi != pj {
			return pi < pj
		}
		return out[i] < out[j]
	})
	return out
}

func (a *App) signedIn(context.Context) (bool, error) {
	id, _ := store.GetAs[string](a.store, KeyLearner)
	return id != "", nil
}

// Start performs the initial navigation for the current history entry.
func (a *App) Start(ctx context.Context) (router.Outcome, error) {
	out, err := a.router.Start(ctx)
	a.refresh()
	return out, err
}

// Run applies queued events until ctx is cancelled or Stop is called.
//
// Events queued before Stop are still applied. Handler errors are returned
// to the sender through its Result and logged; they never stop the loop.
func (a *App) Run(ctx context.Context) error {
	slog.Info("event loop starting")

	for {
		ev, err := a.queue.Next(ctx)
		switch {
		case errors.Is(err, ErrClosed):
			slog.Info("event loop stopping: stopped")
			return nil
		case err != nil:
			slog.Info("event loop stopping: context cancelled")
			a.abandonQueue()
			return err
		}

		res := a.Handle(ctx, ev)
		if res.Err != nil && !router.IsCancelled(res.Err) {
			slog.Error("event failed", "kind", ev.Kind, "error", res.Err)
		}
		if ev.reply != nil {
			ev.reply <- res
		}
	}
}

// abandonQueue closes the queue and fails every sender still waiting.
func (a *App) abandonQueue() {
	for _, ev := range a.queue.abandon() {
		if ev.reply != nil {
			ev.reply <- Result{Err: ErrClosed}
		}
	}
}

// Stop closes the queue; Run returns once it has applied what was queued.
func (a *App) Stop() {
	a.queue.close()
}

// Stopped reports whether Stop or Close has been called.
func (a *App) Stopped() bool {
	return a.queue.isClosed()
}

// Enqueue queues ev without waiting for it to be applied.
func (a *App) Enqueue(ev Event) bool {
	ev.reply = nil
	return a.queue.push(ev)
}

// Send queues ev and waits for its Result. Run must be running.
func (a *App) Send(ctx context.Context, ev Event) (Result, error) {
	ev.reply = make(chan Result, 1)
	if !a.queue.push(ev) {
		return Result{}, ErrClosed
	}
	select {
	case res := <-ev.reply:
		return res, res.Err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Handle applies ev directly and re-renders the mounted view.
func (a *App) Handle(ctx context.Context, ev Event) Result {
	res := a.apply(ctx, ev)
	a.refresh()
	return res
}

func (a *App) apply(ctx context.Context, ev Event) Result {
	slog.Debug("event", "kind", ev.Kind)

	switch ev.Kind {
	case EventNavigate:
		out, err := a.router.Push(ctx, ev.Path)
		return Result{Outcome: out, OK: err == nil, Err: err}

	case EventClick:
		handled, err := a.router.Intercept(ctx, ev.Click)
		return Result{Handled: handled, OK: handled, Err: err}

	case EventBack, EventForward:
		step := a.history.Back
		if ev.Kind == EventForward {
			step = a.history.Forward
		}
		url, state, ok := step()
		if !ok {
			return Result{}
		}
		out, err := a.router.PopState(ctx, url, state)
		return Result{Outcome: out, OK: err == nil, Err: err}

	case EventLogin:
		return a.login(ctx, ev.Text)

	case EventAnswer:
		g, err := a.player.Answer(ctx, ev.Answer)
		return Result{Grade: g, OK: err == nil, Err: err}

	case EventNext:
		return Result{OK: a.player.Next(ctx)}

	case EventPrev:
		return Result{OK: a.player.Prev(ctx)}

	case EventGoTo:
		return Result{OK: a.player.GoTo(ctx, ev.Index)}

	case EventComment:
		return Result{OK: a.player.Engine().AddLearnerComment(ctx, ev.Text, ev.Location)}

	case EventNotes:
		err := a.player.Engine().SaveLearnerNotes(ctx, ev.Text)
		return Result{OK: err == nil, Err: err}

	case EventReset:
		err := a.player.Reset(ctx)
		return Result{OK: err == nil, Err: err}

	case EventFinish:
		err := a.player.Engine().Finish(ctx)
		return Result{OK: err == nil, Err: err}
	}
	return Result{Err: fmt.Errorf("unknown event %q", ev.Kind)}
}

// login signs the learner in and resumes the navigation a guard stopped.
func (a *App) login(ctx context.Context, learner string) Result {
	if learner == "" {
		return Result{Err: errors.New("login: empty learner id")}
	}
	a.store.Set(KeyLearner, learner)

	target, _ := store.GetAs[string](a.store, store.KeyRedirectAfterAuth)
	if target == "" {
		target = router.URL(a.router.Base(), a.cfg.DefaultRoute)
	}
	a.store.Set(store.KeyRedirectAfterAuth, nil)

	slog.Info("learner signed in", "learner", learner, "redirect", target)
	out, err := a.router.Push(ctx, target)
	return Result{Outcome: out, OK: err == nil, Err: err}
}

// refresh re-renders the mounted view when the store changed since the
// last render.
func (a *App) refresh() {
	a.mu.Lock()
	if !a.dirty {
		a.mu.Unlock()
		return
	}
	a.dirty = false
	a.mu.Unlock()

	frame := a.render()

	a.mu.Lock()
	changed := frame != a.frame
	a.frame = frame
	fn := a.onFrame
	a.mu.Unlock()

	if changed && fn != nil {
		fn(frame)
	}
}

func (a *App) render() string {
	if msg := a.doc.PanicMessage(); msg != "" {
		return msg + "\n"
	}
	v := a.router.View()
	if v == nil {
		return ""
	}
	return v.Render()
}

// Frame returns the last rendered frame.
func (a *App) Frame() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.frame
}

// Store returns the application store.
func (a *App) Store() *store.Store { return a.store }

// Router returns the application router.
func (a *App) Router() *router.Router { return a.router }

// Player returns the course player.
func (a *App) Player() *player.Player { return a.player }

// History returns the in-memory session history.
func (a *App) History() *router.MemoryHistory { return a.history }

// Session returns the opened session.
func (a *App) Session() *Session { return a.session }

// Close stops the loop, closes the player's session and releases the
// backend. It is safe to call more than once.
func (a *App) Close(ctx context.Context) error {
	a.queue.close()
	if a.unsubscribe != nil {
		a.unsubscribe()
		a.unsubscribe = nil
	}

	var errs []error
	if err := a.player.Close(ctx); err != nil && !errors.Is(err, session.ErrTerminated) {
		errs = append(errs, err)
	}
	if err := a.session.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
