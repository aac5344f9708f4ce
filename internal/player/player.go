package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/roach88/axiom/internal/course"
	"github.com/roach88/axiom/internal/session"
	"github.com/roach88/axiom/internal/store"
)

var (
	// ErrNotLoaded is returned by actions that need a loaded course.
	ErrNotLoaded = errors.New("course not loaded")

	// ErrNotGradable is returned when answering a page that takes no answer.
	ErrNotGradable = errors.New("page takes no answer")

	// ErrAlreadyAnswered is returned when answering a completed page.
	ErrAlreadyAnswered = errors.New("page already answered")
)

// EventKind names a template event.
type EventKind string

const (
	EventPageComplete      EventKind = "page-complete"
	EventInteractionSubmit EventKind = "interaction-submit"
)

// Event is raised by a page and applied by Dispatch.
type Event struct {
	Kind EventKind

	// page-complete
	Score    *float64
	Response any

	// interaction-submit
	Interaction course.Interaction
}

// Answer is a learner's answer to the current page. Only the field that
// matches the page type is read.
type Answer struct {
	Selected []string          `json:"selected,omitempty" yaml:"selected,omitempty"`
	Matches  map[string]string `json:"matches,omitempty" yaml:"matches,omitempty"`
	Blanks   map[string]string `json:"blanks,omitempty" yaml:"blanks,omitempty"`
}

// Frame is the rendered state of the current page.
type Frame struct {
	Position int    `json:"position"`
	Total    int    `json:"total"`
	Status   string `json:"status"`
	Type     string `json:"type"`
	Body     string `json:"body"`
	Complete bool   `json:"complete"`
	CanNext  bool   `json:"can_next"`
	CanPrev  bool   `json:"can_prev"`
	Error    string `json:"error,omitempty"`
}

// Summary reports the learner's standing.
type Summary struct {
	Title        string `json:"title"`
	Position     int    `json:"position"`
	Total        int    `json:"total"`
	Completed    int    `json:"completed"`
	Percent      int    `json:"completion_percent"`
	Score        int    `json:"score"`
	Passing      bool   `json:"passing"`
	Interactions int    `json:"interactions"`
}

// Player drives one course for one learner.
//
// Thread-safety: Player methods may be called from any goroutine; the
// application serializes learner events on its event loop.
type Player struct {
	mu        sync.Mutex
	store     *store.Store
	engine    *course.Engine
	source    Source
	templates *Templates
	bridge    session.Bridge
	now       func() time.Time
	ttl       time.Duration
	enteredAt time.Time
}

// Option configures a Player.
type Option func(*Player)

// WithTemplates replaces the default template registry.
func WithTemplates(t *Templates) Option {
	return func(p *Player) {
		p.templates = t
	}
}

// WithBridge sets the session bridge connected on Load.
func WithBridge(b session.Bridge) Option {
	return func(p *Player) {
		p.bridge = b
	}
}

// WithClock overrides the clock used for latency and timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Player) {
		p.now = now
	}
}

// WithQueryTTL sets how long a fetched course document stays fresh.
func WithQueryTTL(ttl time.Duration) Option {
	return func(p *Player) {
		p.ttl = ttl
	}
}

// New creates a player for the document served by src.
func New(st *store.Store, src Source, opts ...Option) *Player {
	p := &Player{
		store:     st,
		source:    src,
		templates: DefaultTemplates(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.engine = course.NewEngine(st, course.WithClock(p.now))
	return p
}

// Engine returns the underlying course engine.
func (p *Player) Engine() *course.Engine {
	return p.engine
}

// Ready implements router.Readier by loading the course.
func (p *Player) Ready(ctx context.Context) error {
	return p.Load(ctx)
}

// Document returns the parsed course, fetching it through the query cache
// when the cached copy is missing or stale. It has no session side effects.
func (p *Player) Document(ctx context.Context) (*course.Course, error) {
	data, err := p.store.Query(ctx, course.KeyData, func(ctx context.Context) (any, error) {
		raw, err := p.source.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		return course.Parse(raw, p.source.Name())
	}, p.ttl)
	if err != nil {
		return nil, fmt.Errorf("load course %s: %w", p.source.Name(), err)
	}
	c, ok := data.(*course.Course)
	if !ok {
		return nil, fmt.Errorf("load course %s: unexpected document %T", p.source.Name(), data)
	}
	return c, nil
}

// Load fetches and validates the course through the query cache, connects
// the session, restores suspend data and enters the current page.
func (p *Player) Load(ctx context.Context) error {
	if _, err := p.Document(ctx); err != nil {
		return err
	}

	p.store.Set(course.KeyActive, true)
	// Remounting the view reuses the connected session.
	if p.bridge != nil && p.engine.Bridge() == nil {
		p.engine.Connect(p.bridge)
		p.engine.Restore()
		p.store.Set(course.KeyAllComments, p.engine.AllComments())
	}

	slog.Info("course loaded",
		"source", p.source.Name(),
		"pages", p.engine.TotalPages(),
		"position", p.engine.Position())
	p.enter(ctx)
	return nil
}

// enter runs the entry behaviour of the current page.
func (p *Player) enter(ctx context.Context) {
	p.mu.Lock()
	p.enteredAt = p.now()
	p.mu.Unlock()

	page, ok := p.engine.CurrentPage()
	if !ok {
		return
	}
	switch page.Type {
	case course.TypeTitle:
		p.engine.MarkPageComplete(ctx, nil, nil)
	case course.TypeScorecard:
		if err := p.engine.Finalize(ctx); err != nil {
			slog.Warn("finalize failed", "error", err)
		}
	}
}

// Next advances to the next page when gating allows it.
func (p *Player) Next(ctx context.Context) bool {
	if !p.engine.NextPage(ctx) {
		return false
	}
	p.enter(ctx)
	return true
}

// Prev goes back one page.
func (p *Player) Prev(ctx context.Context) bool {
	if !p.engine.PrevPage(ctx) {
		return false
	}
	p.enter(ctx)
	return true
}

// GoTo jumps to index.
func (p *Player) GoTo(ctx context.Context, index int) bool {
	if !p.engine.GoToPage(ctx, index) {
		return false
	}
	p.enter(ctx)
	return true
}

// Reset clears the learner's progress and re-enters the first page.
func (p *Player) Reset(ctx context.Context) error {
	if err := p.engine.Reset(ctx); err != nil {
		return err
	}
	p.enter(ctx)
	return nil
}

// Answer grades a on the current page, records the interaction and
// completes the page.
func (p *Player) Answer(ctx context.Context, a Answer) (course.Grade, error) {
	page, ok := p.engine.CurrentPage()
	if !ok {
		return course.Grade{}, ErrNotLoaded
	}
	pos := p.engine.Position()
	if p.engine.Progress()[pos].Complete {
		return course.Grade{}, fmt.Errorf("%w: %s", ErrAlreadyAnswered, page.InteractionID(pos))
	}

	var g course.Grade
	switch page.Type {
	case course.TypeChoice:
		g = course.GradeChoice(page, a.Selected)
	case course.TypeMatch:
		g = course.GradeMatch(page, a.Matches)
	case course.TypeWordPuzzle:
		g = course.GradeFillIn(page, a.Blanks)
	default:
		return course.Grade{}, fmt.Errorf("%w: %s", ErrNotGradable, page.Type)
	}

	p.mu.Lock()
	now := p.now()
	latency := now.Sub(p.enteredAt)
	p.mu.Unlock()

	if err := p.Dispatch(ctx, Event{
		Kind:        EventInteractionSubmit,
		Interaction: g.Interaction(page, pos, latency, now),
	}); err != nil {
		return g, err
	}
	score := g.Score
	if err := p.Dispatch(ctx, Event{
		Kind:     EventPageComplete,
		Score:    &score,
		Response: a,
	}); err != nil {
		return g, err
	}

	slog.Info("page answered", "page", page.InteractionID(pos), "result", g.Result(), "score", g.Score)
	return g, nil
}

// Dispatch applies a template event.
func (p *Player) Dispatch(ctx context.Context, ev Event) error {
	switch ev.Kind {
	case EventPageComplete:
		p.engine.MarkPageComplete(ctx, ev.Score, ev.Response)
		return nil
	case EventInteractionSubmit:
		return p.engine.RecordInteraction(ev.Interaction)
	}
	return fmt.Errorf("unknown event %q", ev.Kind)
}

// Frame renders the current page. Unknown page types and template
// failures produce an error frame instead of an error.
func (p *Player) Frame() Frame {
	e := p.engine
	page, ok := e.CurrentPage()
	if !ok {
		return Frame{Error: ErrNotLoaded.Error()}
	}
	pos := e.Position()
	progress := e.Progress()[pos]

	f := Frame{
		Position: pos,
		Total:    e.TotalPages(),
		Status:   e.PageStatus(),
		Type:     page.Type,
		Complete: progress.Complete,
		CanNext:  e.CanNext(),
		CanPrev:  e.CanPrev(),
	}

	tmpl, ok := p.templates.Lookup(page.Type)
	if !ok {
		f.Error = fmt.Sprintf("Unknown page type: %s", page.Type)
		return f
	}
	body, err := tmpl(PageView{
		Page:         page,
		Position:     pos,
		Total:        f.Total,
		Progress:     progress,
		Meta:         e.Meta(),
		Score:        e.Score(),
		Passing:      e.IsPassing(),
		Interactions: e.Interactions(),
	})
	if err != nil {
		slog.Error("template failed", "type", page.Type, "error", err)
		f.Error = fmt.Sprintf("Error rendering %s page: %v", page.Type, err)
		return f
	}
	f.Body = body
	return f
}

// Render implements router.View.
func (p *Player) Render() string {
	f := p.Frame()
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s\n", f.Status, f.Type)
	if f.Error != "" {
		fmt.Fprintf(&b, "! %s\n", f.Error)
		return b.String()
	}
	b.WriteString(f.Body)
	fmt.Fprintf(&b, "prev:%s next:%s\n", onOff(f.CanPrev), onOff(f.CanNext))
	return b.String()
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

// Summary reports the current standing.
func (p *Player) Summary() Summary {
	e := p.engine
	return Summary{
		Title:        e.Meta().Title,
		Position:     e.Position(),
		Total:        e.TotalPages(),
		Completed:    e.Progress().Completed(),
		Percent:      e.CompletionPercent(),
		Score:        e.Score(),
		Passing:      e.IsPassing(),
		Interactions: len(e.Interactions()),
	}
}

// Close marks the course inactive, syncs and terminates the session.
func (p *Player) Close(ctx context.Context) error {
	p.store.Set(course.KeyActive, false)
	b := p.engine.Bridge()
	if !session.Live(b) {
		return nil
	}
	if err := p.engine.Sync(ctx); err != nil {
		return err
	}
	if err := b.Terminate(ctx); err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	slog.Info("session closed")
	return nil
}
