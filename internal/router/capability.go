package router

import (
	"context"
	"sync"
)

// Direction selects the visual transition for a view swap.
type Direction string

const (
	Forward  Direction = "forward"
	Backward Direction = "backward"
	Fade     Direction = "fade"
)

// HistoryState is the state object carried by a history entry.
type HistoryState struct {
	Index   int `json:"index"`
	ScrollY int `json:"scrollY,omitempty"`
}

// History is the session history capability.
//
// State reports false for entries that carry no router state, such as the
// entry the application was launched on. Replace with an empty url keeps
// the current URL.
type History interface {
	Path() string
	State() (HistoryState, bool)
	Push(state HistoryState, url string)
	Replace(state HistoryState, url string)
}

// Document is the viewport capability: scroll, focus, the transition hook
// attribute, and the panic screen.
type Document interface {
	ScrollY() int
	ScrollTo(y int)
	SetTransition(d Direction)
	ClearTransition()
	Focus()
	Panic(message string)
}

// ScrollStore keeps per-path scroll positions for the session.
type ScrollStore interface {
	Save(path string, y int)
	Load(path string) (int, bool)
}

// TransitionRunner wraps a view swap in an animated transition. Run must
// call update exactly once and return its error.
type TransitionRunner interface {
	Run(ctx context.Context, update func() error) error
}

// NoTransition runs the update without animation.
type NoTransition struct{}

// Run implements TransitionRunner.
func (NoTransition) Run(_ context.Context, update func() error) error {
	return update()
}

type historyEntry struct {
	url      string
	state    HistoryState
	hasState bool
}

// MemoryHistory is an in-process History with back/forward support.
//
// Thread-safety: MemoryHistory is safe for concurrent use via internal mutex.
type MemoryHistory struct {
	mu      sync.Mutex
	entries []historyEntry
	pos     int
}

// NewMemoryHistory starts a history at url with no router state.
func NewMemoryHistory(url string) *MemoryHistory {
	return &MemoryHistory{entries: []historyEntry{{url: url}}}
}

// Path implements History.
func (h *MemoryHistory) Path() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entries[h.pos].url
}

// State implements History.
func (h *MemoryHistory) State() (HistoryState, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e := h.entries[h.pos]
	return e.state, e.hasState
}

// Push implements History. Forward entries are discarded.
func (h *MemoryHistory) Push(state HistoryState, url string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries[:h.pos+1], historyEntry{url: url, state: state, hasState: true})
	h.pos++
}

// Replace implements History.
func (h *MemoryHistory) Replace(state HistoryState, url string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e := &h.entries[h.pos]
	if url != "" {
		e.url = url
	}
	e.state = state
	e.hasState = true
}

// Back moves one entry back and returns it the way a pop-state event
// would. ok is false at the first entry.
func (h *MemoryHistory) Back() (url string, state *HistoryState, ok bool) {
	return h.step(-1)
}

// Forward moves one entry forward. ok is false at the last entry.
func (h *MemoryHistory) Forward() (url string, state *HistoryState, ok bool) {
	return h.step(1)
}

func (h *MemoryHistory) step(delta int) (string, *HistoryState, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	next := h.pos + delta
	if next < 0 || next >= len(h.entries) {
		return "", nil, false
	}
	h.pos = next
	e := h.entries[next]
	if !e.hasState {
		return e.url, nil, true
	}
	st := e.state
	return e.url, &st, true
}

// Len returns the number of entries.
func (h *MemoryHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// MemoryScroll is an in-process ScrollStore.
type MemoryScroll struct {
	mu sync.Mutex
	y  map[string]int
}

// NewMemoryScroll creates an empty scroll store.
func NewMemoryScroll() *MemoryScroll {
	return &MemoryScroll{y: make(map[string]int)}
}

// Save implements ScrollStore.
func (s *MemoryScroll) Save(path string, y int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.y[path] = y
}

// Load implements ScrollStore.
func (s *MemoryScroll) Load(path string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	y, ok := s.y[path]
	return y, ok
}

// HeadlessDocument is a Document that records what the router asked of it.
// The CLI renders through it and tests assert against it.
//
// Thread-safety: HeadlessDocument is safe for concurrent use via internal mutex.
type HeadlessDocument struct {
	mu          sync.Mutex
	scrollY     int
	transition  Direction
	transitions []Direction
	focused     int
	panicked    string
}

// ScrollY implements Document.
func (d *HeadlessDocument) ScrollY() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.scrollY
}

// ScrollTo implements Document.
func (d *HeadlessDocument) ScrollTo(y int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scrollY = y
}

// SetTransition implements Document.
func (d *HeadlessDocument) SetTransition(dir Direction) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.transition = dir
	d.transitions = append(d.transitions, dir)
}

// ClearTransition implements Document.
func (d *HeadlessDocument) ClearTransition() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.transition = ""
}

// Focus implements Document.
func (d *HeadlessDocument) Focus() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.focused++
}

// Panic implements Document.
func (d *HeadlessDocument) Panic(message string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.panicked = message
}

// Transitions returns every direction set so far, in order.
func (d *HeadlessDocument) Transitions() []Direction {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Direction(nil), d.transitions...)
}

// Focused returns how many times focus moved to a mounted view.
func (d *HeadlessDocument) Focused() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.focused
}

// PanicMessage returns the panic screen text, or "" when not panicked.
func (d *HeadlessDocument) PanicMessage() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.panicked
}
