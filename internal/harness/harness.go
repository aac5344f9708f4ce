package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/axiom/internal/app"
	"github.com/roach88/axiom/internal/config"
	"github.com/roach88/axiom/internal/session"
	"github.com/roach88/axiom/internal/testutil"
)

// reportFields are read back from bridges that cannot snapshot themselves.
var reportFields = []string{
	session.FieldLocation,
	session.FieldSuspendData,
	session.FieldCompletionStatus,
	session.FieldSuccessStatus,
	session.FieldScoreRaw,
	session.FieldScoreScaled,
	session.FieldScoreMin,
	session.FieldScoreMax,
}

type snapshotter interface {
	Snapshot() map[string]string
}

type options struct {
	bridge  session.Bridge
	out     io.Writer
	cfg     *config.Config
	learner string
}

// Option configures a run.
type Option func(*options)

// WithBridge runs the script against b instead of a fresh in-memory
// session seeded from the script.
func WithBridge(b session.Bridge) Option {
	return func(o *options) {
		o.bridge = b
	}
}

// WithConfig runs the script over cfg instead of the default
// configuration. The script's course and routes still take precedence.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) {
		o.cfg = cfg
	}
}

// WithLearner signs id in when the script names no learner.
func WithLearner(id string) Option {
	return func(o *options) {
		o.learner = id
	}
}

// WithOutput writes every new frame to w as the script runs.
func WithOutput(w io.Writer) Option {
	return func(o *options) {
		o.out = w
	}
}

// harness holds one run's moving parts.
type harness struct {
	app    *app.App
	clock  *testutil.Clock
	bridge session.Bridge
	result *Result
}

// Run executes s and returns its result. The returned error covers setup
// failures only; failed expectations and assertions are reported in the
// Result.
//
// Execution flow:
//  1. Build an App on a frozen clock and the session
//  2. Perform the initial navigation
//  3. Start the event loop and send each step through it
//  4. Stop the loop, capture frame, summary and session fields
//  5. Evaluate assertions
func Run(ctx context.Context, s *Script, opts ...Option) (*Result, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	bridge := o.bridge
	if bridge == nil {
		bridge = session.NewMemory(s.Session)
	}

	cfg := config.Default()
	if o.cfg != nil {
		c := *o.cfg
		c.Routes = make(map[string]config.Route, len(o.cfg.Routes))
		for slug, r := range o.cfg.Routes {
			c.Routes[slug] = r
		}
		cfg = &c
	}
	cfg.Course = s.Course
	for slug, r := range s.Routes {
		cfg.Routes[slug] = r
	}

	learner := s.Learner
	if learner == "" {
		learner = o.learner
	}

	h := &harness{
		clock:  testutil.NewClock(testutil.Epoch),
		bridge: bridge,
		result: NewResult(),
	}

	a, err := app.New(ctx, cfg,
		app.WithBridge(bridge),
		app.WithClock(h.clock.Now),
		app.WithScheduler(h.clock),
		app.WithIDGenerator(testutil.NewSequenceIDs("toast")),
		app.WithInitialURL(s.Start),
		app.WithLearner(learner),
		app.WithFrameListener(func(frame string) {
			h.result.Frames = append(h.result.Frames, frame)
			if o.out != nil {
				fmt.Fprintf(o.out, "%s\n", frame)
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build app: %w", err)
	}
	h.app = a

	if _, err := a.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.Run(gctx)
	})

	stepErr := h.steps(gctx, s.Steps)

	a.Stop()
	if err := g.Wait(); err != nil && stepErr == nil {
		stepErr = err
	}
	if stepErr != nil {
		return nil, stepErr
	}

	h.capture()
	for _, msg := range EvaluateAssertions(h.result, s.Assertions) {
		h.result.AddError(msg)
	}

	if err := a.Close(ctx); err != nil {
		slog.Warn("close after run", "script", s.Name, "error", err)
	}
	return h.result, nil
}

// steps sends each step through the event loop and checks its expectation.
func (h *harness) steps(ctx context.Context, steps []Step) error {
	for i, step := range steps {
		if step.Do == StepAdvance {
			h.clock.Advance(step.Duration.Std())
			h.result.AddTrace(TraceEvent{Kind: step.Do, OK: true})
			continue
		}

		res, err := h.app.Send(ctx, toEvent(step))
		if ctx.Err() != nil {
			return fmt.Errorf("steps[%d]: %w", i, ctx.Err())
		}

		ev := TraceEvent{
			Kind:  step.Do,
			OK:    res.OK,
			Route: res.Outcome.Slug,
		}
		if step.Do == StepAnswer && err == nil {
			ev.Result = res.Grade.Result()
		}
		if err != nil {
			ev.Error = err.Error()
		}
		h.result.AddTrace(ev)

		if step.Expect != nil {
			for _, msg := range h.check(i, step.Expect, res, err) {
				h.result.AddError(msg)
			}
		}
	}
	return nil
}

func toEvent(s Step) app.Event {
	ev := app.Event{Kind: app.EventKind(s.Do)}
	switch s.Do {
	case StepNavigate:
		ev.Path = s.Path
	case StepClick:
		ev.Click.Href = s.Href
	case StepAnswer:
		ev.Answer = *s.Answer
	case StepGoTo:
		ev.Index = s.Index
	case StepLogin, StepComment, StepNotes:
		ev.Text = s.Text
		ev.Location = s.Location
	}
	return ev
}

// check compares one step's outcome with its expectation.
func (h *harness) check(index int, want *Expect, res app.Result, err error) []string {
	var errs []string
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf("steps[%d]: ", index)+fmt.Sprintf(format, args...))
	}

	if want.OK != nil && *want.OK != res.OK {
		fail("expected ok=%t, got %t", *want.OK, res.OK)
	}
	if want.Correct != nil && *want.Correct != res.Grade.Correct {
		fail("expected correct=%t, got %t", *want.Correct, res.Grade.Correct)
	}
	if want.Route != "" && want.Route != res.Outcome.Slug {
		fail("expected route %q, got %q", want.Route, res.Outcome.Slug)
	}
	if want.Frame != "" && !strings.Contains(h.app.Frame(), want.Frame) {
		fail("expected frame to contain %q, got:\n%s", want.Frame, h.app.Frame())
	}
	switch {
	case want.Error != "" && err == nil:
		fail("expected error containing %q, got none", want.Error)
	case want.Error != "" && !strings.Contains(err.Error(), want.Error):
		fail("expected error containing %q, got %q", want.Error, err.Error())
	case want.Error == "" && err != nil:
		fail("unexpected error: %v", err)
	}
	return errs
}

// capture records the state the run left behind.
func (h *harness) capture() {
	r := h.result
	r.Frame = h.app.Frame()
	r.Summary = h.app.Player().Summary()

	if snap, ok := h.bridge.(snapshotter); ok {
		r.Fields = snap.Snapshot()
	} else {
		for _, name := range reportFields {
			if v := h.bridge.GetField(name); v != session.Sentinel {
				r.Fields[name] = v
			}
		}
	}
	r.SuspendData = r.Fields[session.FieldSuspendData]

	for _, n := range h.app.Store().Notifications() {
		r.Notifications = append(r.Notifications, fmt.Sprintf("%s: %s", n.Kind, n.Message))
	}
}
