package course

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/roach88/axiom/internal/session"
	"github.com/roach88/axiom/internal/store"
)

// Engine drives course progression over the store.
//
// All learner state lives in the store under the Key* constants; the
// Engine itself only holds the session bridge. Every position or progress
// change is followed by Sync when a live bridge is connected.
//
// Thread-safety: Engine methods may be called from any goroutine, but
// read-modify-write actions (MarkPageComplete, RecordInteraction) are not
// atomic against each other. The application serializes them on its event
// loop.
type Engine struct {
	mu     sync.Mutex
	store  *store.Store
	bridge session.Bridge
	now    func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithBridge connects a session bridge at construction.
func WithBridge(b session.Bridge) Option {
	return func(e *Engine) {
		e.bridge = b
	}
}

// NewEngine creates an engine over st and fills the course defaults.
func NewEngine(st *store.Store, opts ...Option) *Engine {
	e := &Engine{
		store: st,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	InitState(st)
	return e
}

// Store returns the engine's store.
func (e *Engine) Store() *store.Store {
	return e.store
}

// Connect attaches a session bridge, replacing any previous one.
func (e *Engine) Connect(b session.Bridge) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bridge = b
}

// Bridge returns the connected bridge, or nil.
func (e *Engine) Bridge() session.Bridge {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bridge
}

// live returns the bridge when it is connected and active.
func (e *Engine) live() (session.Bridge, bool) {
	b := e.Bridge()
	return b, session.Live(b)
}

// Load stores c as the course document.
func (e *Engine) Load(c *Course) {
	e.store.Set(KeyData, c)
}

// ---------------------------------------------------------------------------
// Selectors
// ---------------------------------------------------------------------------

// Course returns the loaded course. The courseData key may hold the course
// directly or as the Data of a store.Resource written by Query.
func (e *Engine) Course() *Course {
	switch v := e.store.Get(KeyData).(type) {
	case *Course:
		return v
	case store.Resource:
		c, _ := v.Data.(*Course)
		return c
	}
	return nil
}

// Position returns the current page index.
func (e *Engine) Position() int {
	pos, _ := store.GetAs[int](e.store, KeyPosition)
	return pos
}

// Progress returns a copy of the progress map.
func (e *Engine) Progress() Progress {
	p, _ := store.GetAs[Progress](e.store, KeyProgress)
	return p.Clone()
}

// Interactions returns a copy of the interaction log.
func (e *Engine) Interactions() []Interaction {
	log, _ := store.GetAs[[]Interaction](e.store, KeyInteractions)
	return append([]Interaction(nil), log...)
}

// TotalPages returns the number of pages, 0 without a course.
func (e *Engine) TotalPages() int {
	if c := e.Course(); c != nil {
		return len(c.Pages)
	}
	return 0
}

// CurrentPage returns the page at the current position.
func (e *Engine) CurrentPage() (Page, bool) {
	c := e.Course()
	pos := e.Position()
	if c == nil || pos < 0 || pos >= len(c.Pages) {
		return Page{}, false
	}
	return c.Pages[pos], true
}

// Meta returns the course metadata.
func (e *Engine) Meta() Meta {
	if c := e.Course(); c != nil {
		return c.Meta
	}
	return Meta{}
}

// Settings returns the course settings.
func (e *Engine) Settings() Settings {
	if c := e.Course(); c != nil {
		return c.Settings
	}
	return Settings{}
}

// Glossary returns the glossary terms.
func (e *Engine) Glossary() []GlossaryTerm {
	if c := e.Course(); c != nil {
		return c.Glossary
	}
	return nil
}

// Resources returns the course resources.
func (e *Engine) Resources() []Resource {
	if c := e.Course(); c != nil {
		return c.Resources
	}
	return nil
}

// PageStatus formats the position as "N of M".
func (e *Engine) PageStatus() string {
	return fmt.Sprintf("%d of %d", e.Position()+1, e.TotalPages())
}

// CanNext reports whether the learner may advance from the current page.
func (e *Engine) CanNext() bool {
	pos := e.Position()
	if pos >= e.TotalPages()-1 {
		return false
	}
	page, _ := e.CurrentPage()
	entry := e.Progress()[pos]

	if e.Settings().RequiresAnswer() && IsInteractive(page.Type) && !entry.Complete {
		return false
	}
	return entry.Complete || IsAutoComplete(page.Type)
}

// CanPrev reports whether the learner may go back. forceSequential does
// not restrict going back.
func (e *Engine) CanPrev() bool {
	return e.Position() > 0
}

// Score returns the weighted accuracy over the interaction log.
func (e *Engine) Score() int {
	return Score(e.Interactions())
}

// IsPassing reports whether Score reaches the passing threshold.
func (e *Engine) IsPassing() bool {
	return float64(e.Score()) >= e.Meta().Threshold()
}

// CompletionPercent returns completed pages over total pages, rounded.
func (e *Engine) CompletionPercent() int {
	total := e.TotalPages()
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(e.Progress().Completed()) / float64(total) * 100))
}

// ---------------------------------------------------------------------------
// Actions
// ---------------------------------------------------------------------------

// GoToPage moves to index and syncs. Out-of-range indexes are ignored.
func (e *Engine) GoToPage(ctx context.Context, index int) bool {
	if index < 0 || index >= e.TotalPages() {
		return false
	}
	e.store.Set(KeyPosition, index)
	e.syncQuietly(ctx)
	return true
}

// NextPage advances when CanNext allows it.
func (e *Engine) NextPage(ctx context.Context) bool {
	if !e.CanNext() {
		return false
	}
	return e.GoToPage(ctx, e.Position()+1)
}

// PrevPage goes back when CanPrev allows it.
func (e *Engine) PrevPage(ctx context.Context) bool {
	if !e.CanPrev() {
		return false
	}
	return e.GoToPage(ctx, e.Position()-1)
}

// MarkPageComplete latches the current page complete with an optional
// score and response. A page already complete is left untouched and the
// call returns false.
func (e *Engine) MarkPageComplete(ctx context.Context, score *float64, response any) bool {
	pos := e.Position()
	progress := e.Progress()
	if progress[pos].Complete {
		slog.Debug("page already complete", "position", pos)
		return false
	}

	progress[pos] = PageProgress{
		Complete:  true,
		Score:     score,
		Timestamp: e.now().UnixMilli(),
		Response:  response,
	}
	e.store.Set(KeyProgress, progress)
	e.syncQuietly(ctx)
	return true
}

// RecordInteraction upserts rec by id and forwards it to a live session.
// The session write is staged; it is committed by the next Sync.
func (e *Engine) RecordInteraction(rec Interaction) error {
	e.store.Set(KeyInteractions, upsertInteraction(e.Interactions(), rec))

	b, ok := e.live()
	if !ok {
		return nil
	}
	if err := session.WriteInteraction(b, rec.fields()); err != nil {
		slog.Warn("interaction not forwarded", "id", rec.ID, "error", err)
		return fmt.Errorf("record interaction %s: %w", rec.ID, err)
	}
	return nil
}

func (rec Interaction) fields() session.InteractionFields {
	return session.InteractionFields{
		ID:              rec.ID,
		Type:            rec.Type,
		LearnerResponse: rec.LearnerResponse,
		Result:          rec.Result,
		Weighting:       rec.Weight.String(),
		Latency:         rec.Latency,
		Timestamp:       rec.Timestamp,
	}
}

// Sync mirrors position, suspend blob, completion and score to a live
// session and commits. It is a no-op without one.
func (e *Engine) Sync(ctx context.Context) error {
	b, ok := e.live()
	if !ok {
		return nil
	}

	pos := e.Position()
	blob, err := EncodeBlob(pos, e.Progress(), e.Interactions())
	if err != nil {
		return err
	}

	completion := session.CompletionIncomplete
	if e.CompletionPercent() == 100 {
		completion = session.CompletionCompleted
	}

	writes := [][2]string{
		{session.FieldLocation, strconv.Itoa(pos)},
		{session.FieldSuspendData, blob},
		{session.FieldCompletionStatus, completion},
	}
	if score := e.Score(); score > 0 {
		writes = append(writes, scoreFields(score, e.IsPassing())...)
	}

	if err := setAll(b, writes); err != nil {
		return fmt.Errorf("sync session: %w", err)
	}
	if err := b.Commit(ctx); err != nil {
		return fmt.Errorf("sync session: %w", err)
	}
	slog.Debug("session synced", "position", pos, "completion", completion)
	return nil
}

// syncQuietly runs Sync and logs a failure; progression never fails
// because the session is unavailable.
func (e *Engine) syncQuietly(ctx context.Context) {
	if err := e.Sync(ctx); err != nil {
		slog.Warn("session sync failed", "error", err)
	}
}

func scoreFields(score int, passing bool) [][2]string {
	success := session.SuccessFailed
	if passing {
		success = session.SuccessPassed
	}
	return [][2]string{
		{session.FieldScoreScaled, strconv.FormatFloat(float64(score)/100, 'f', -1, 64)},
		{session.FieldScoreRaw, strconv.Itoa(score)},
		{session.FieldScoreMax, "100"},
		{session.FieldScoreMin, "0"},
		{session.FieldSuccessStatus, success},
	}
}

func setAll(b session.Bridge, writes [][2]string) error {
	for _, w := range writes {
		if err := b.SetField(w[0], w[1]); err != nil {
			return fmt.Errorf("set %s: %w", w[0], err)
		}
	}
	return nil
}

// Restore applies the session's suspend blob. Each of progress,
// interactions and position is restored independently when present.
// It returns false when there is no live session, no blob, or the blob is
// malformed (logged, progress left empty).
func (e *Engine) Restore() bool {
	b, ok := e.live()
	if !ok {
		return false
	}
	raw := b.GetField(session.FieldSuspendData)
	if !session.Has(raw) {
		return false
	}

	blob, err := DecodeBlob(raw)
	if err != nil {
		slog.Warn("suspend data ignored", "error", err)
		return false
	}

	if blob.Progress != nil {
		e.store.Set(KeyProgress, blob.Progress)
	}
	if blob.Interactions != nil {
		e.store.Set(KeyInteractions, blob.Interactions)
	}
	if blob.Position != nil {
		e.store.Set(KeyPosition, *blob.Position)
	}

	slog.Info("session restored",
		"position", e.Position(),
		"completed", e.Progress().Completed(),
		"interactions", len(e.Interactions()))
	return true
}

// Reset clears progress, interactions and comments for a fresh attempt.
// A live session has its suspend data, location, learner comments, status
// and score fields blanked and is committed.
func (e *Engine) Reset(ctx context.Context) error {
	e.store.Set(KeyPosition, 0)
	e.store.Set(KeyProgress, Progress{})
	e.store.Set(KeyInteractions, []Interaction{})
	e.store.Set(KeyFeedbackOpen, false)
	e.store.Set(KeyToolsOpen, false)
	e.store.Set(KeyAllComments, []session.Comment{})
	e.store.Set(KeyLearnerComments, "")

	b, ok := e.live()
	if !ok {
		return nil
	}

	if err := setAll(b, [][2]string{
		{session.FieldSuspendData, ""},
		{session.FieldLocation, "0"},
	}); err != nil {
		return fmt.Errorf("reset session: %w", err)
	}
	if err := session.BlankLearnerComments(b); err != nil {
		return fmt.Errorf("reset session: %w", err)
	}
	if err := setAll(b, [][2]string{
		{session.FieldCompletionStatus, session.CompletionIncomplete},
		{session.FieldSuccessStatus, session.SuccessUnknown},
		{session.FieldScoreRaw, "0"},
		{session.FieldScoreScaled, "0"},
		{session.FieldProgressMeasure, "0"},
	}); err != nil {
		return fmt.Errorf("reset session: %w", err)
	}
	if err := b.Commit(ctx); err != nil {
		return fmt.Errorf("reset session: %w", err)
	}
	slog.Info("course reset")
	return nil
}

// Finalize latches the current page complete with the final score, then
// records score, completion and success status on a live session and
// commits. The final fields are written after the latch so its sync does
// not downgrade completion.
func (e *Engine) Finalize(ctx context.Context) error {
	score := e.Score()
	s := float64(score)
	e.MarkPageComplete(ctx, &s, nil)

	b, ok := e.live()
	if !ok {
		return nil
	}
	writes := scoreFields(score, e.IsPassing())
	writes = append(writes, [2]string{session.FieldCompletionStatus, session.CompletionCompleted})
	if err := setAll(b, writes); err != nil {
		return fmt.Errorf("finalize: %w", err)
	}
	if err := b.Commit(ctx); err != nil {
		return fmt.Errorf("finalize: %w", err)
	}
	slog.Info("course finalized", "score", score, "passed", e.IsPassing())
	return nil
}

// Finish syncs and terminates the session, then tells the learner.
func (e *Engine) Finish(ctx context.Context) error {
	if b, ok := e.live(); ok {
		if err := e.Sync(ctx); err != nil {
			return err
		}
		if err := b.Terminate(ctx); err != nil {
			return fmt.Errorf("finish: %w", err)
		}
	}
	e.store.Notify("Course completed! You may close this window.", store.KindSuccess, store.DefaultNotifyDuration)
	return nil
}

// ---------------------------------------------------------------------------
// Comments
// ---------------------------------------------------------------------------

// LMSComments returns the instructor comments of a live session.
func (e *Engine) LMSComments() []session.Comment {
	b, _ := e.live()
	return session.LMSComments(b)
}

// LearnerComments returns the learner's comments of a live session.
func (e *Engine) LearnerComments() []session.Comment {
	b, _ := e.live()
	return session.LearnerComments(b)
}

// AllComments returns both comment lists merged oldest first.
func (e *Engine) AllComments() []session.Comment {
	return session.MergeComments(e.LMSComments(), e.LearnerComments())
}

// AddLearnerComment appends a learner comment, commits, and notifies the
// learner of the outcome.
func (e *Engine) AddLearnerComment(ctx context.Context, text, location string) bool {
	b, ok := e.live()
	if !ok {
		e.store.Notify("Unable to save comment - not connected", store.KindError, store.DefaultNotifyDuration)
		return false
	}

	if !session.AddLearnerComment(b, text, location, e.now()) {
		e.store.Notify("Failed to save comment", store.KindError, store.DefaultNotifyDuration)
		return false
	}
	if err := b.Commit(ctx); err != nil {
		slog.Warn("comment commit failed", "error", err)
		e.store.Notify("Failed to save comment", store.KindError, store.DefaultNotifyDuration)
		return false
	}

	e.store.Set(KeyAllComments, e.AllComments())
	e.store.Notify("Comment saved!", store.KindSuccess, store.DefaultNotifyDuration)
	return true
}

// SaveLearnerNotes stores a single free-text note in the first learner
// comment slot.
func (e *Engine) SaveLearnerNotes(ctx context.Context, text string) error {
	e.store.Set(KeyLearnerComments, text)

	if b, ok := e.live(); ok {
		if err := setAll(b, [][2]string{
			{session.IndexedField(session.CollectionLearnerComments, 0, "comment"), text},
			{session.IndexedField(session.CollectionLearnerComments, 0, "timestamp"), e.now().UTC().Format(time.RFC3339)},
		}); err != nil {
			return fmt.Errorf("save notes: %w", err)
		}
		if err := b.Commit(ctx); err != nil {
			return fmt.Errorf("save notes: %w", err)
		}
	}

	e.store.Notify("Notes saved!", store.KindSuccess, store.DefaultNotifyDuration)
	return nil
}
