package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/axiom/internal/config"
	"github.com/roach88/axiom/internal/player"
	"github.com/roach88/axiom/internal/router"
	"github.com/roach88/axiom/internal/session"
	"github.com/roach88/axiom/internal/store"
	"github.com/roach88/axiom/internal/testutil"
)

const titleFrame = "[1 of 4] title-page\n# Knots\nThree you should know\nprev:off next:on\n"

type appFixture struct {
	app    *App
	bridge *session.Memory
	clock  *testutil.Clock
	frames []string
}

func newAppFixture(t *testing.T, mutate func(*config.Config), opts ...Option) *appFixture {
	t.Helper()

	cfg := config.Default()
	cfg.Course = "testdata/course.json"
	if mutate != nil {
		mutate(cfg)
	}

	f := &appFixture{
		bridge: session.NewMemory(nil),
		clock:  testutil.NewClock(testutil.Epoch),
	}
	base := []Option{
		WithBridge(f.bridge),
		WithClock(f.clock.Now),
		WithScheduler(f.clock),
		WithIDGenerator(testutil.NewSequenceIDs("toast")),
		WithFrameListener(func(frame string) {
			f.frames = append(f.frames, frame)
		}),
	}

	a, err := New(context.Background(), cfg, append(base, opts...)...)
	require.NoError(t, err)
	f.app = a
	return f
}

// run starts the event loop and stops it when the test ends.
func (f *appFixture) run(t *testing.T) {
	t.Helper()
	done := make(chan error, 1)
	go func() {
		done <- f.app.Run(context.Background())
	}()
	t.Cleanup(func() {
		f.app.Stop()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("event loop did not stop")
		}
	})
}

func (f *appFixture) send(t *testing.T, ev Event) Result {
	t.Helper()
	res, err := f.app.Send(context.Background(), ev)
	require.NoError(t, err)
	return res
}

func TestStart_RendersHome(t *testing.T) {
	f := newAppFixture(t, nil)

	out, err := f.app.Start(context.Background())
	require.NoError(t, err)

	assert.Equal(t, router.PhaseCommitted, out.Phase)
	assert.Equal(t, "home", out.Slug)
	assert.Equal(t, "# Home\nCourse: Knots\n", f.app.Frame())
	assert.Equal(t, []string{"# Home\nCourse: Knots\n"}, f.frames)
	assert.Equal(t, "dark", f.app.Store().Get(store.KeyTheme))
}

func TestNavigate_CourseMountsPlayer(t *testing.T) {
	f := newAppFixture(t, nil)
	f.run(t)
	_, err := f.app.Start(context.Background())
	require.NoError(t, err)

	res := f.send(t, Event{Kind: EventNavigate, Path: "/course"})

	assert.True(t, res.OK)
	assert.Equal(t, "course", res.Outcome.Slug)
	assert.Equal(t, titleFrame, f.app.Frame())
	assert.Equal(t, "/course", f.app.History().Path())
}

func TestPlayThrough_FinalizesSession(t *testing.T) {
	f := newAppFixture(t, nil)
	f.run(t)
	_, err := f.app.Start(context.Background())
	require.NoError(t, err)

	f.send(t, Event{Kind: EventNavigate, Path: "/course"})
	assert.True(t, f.send(t, Event{Kind: EventNext}).OK)

	res := f.send(t, Event{Kind: EventAnswer, Answer: player.Answer{Selected: []string{"bowline"}}})
	assert.True(t, res.Grade.Correct)
	assert.True(t, f.send(t, Event{Kind: EventNext}).OK)

	res = f.send(t, Event{Kind: EventAnswer, Answer: player.Answer{Blanks: map[string]string{"b1": "Reef"}}})
	assert.True(t, res.Grade.Correct)
	assert.True(t, f.send(t, Event{Kind: EventNext}).OK)

	assert.Contains(t, f.app.Frame(), "[4 of 4] scorecard")

	sum := f.app.Player().Summary()
	assert.Equal(t, 100, sum.Score)
	assert.Equal(t, 100, sum.Percent)
	assert.True(t, sum.Passing)

	snap := f.bridge.Snapshot()
	assert.Equal(t, session.CompletionCompleted, snap[session.FieldCompletionStatus])
	assert.Equal(t, session.SuccessPassed, snap[session.FieldSuccessStatus])
	assert.Equal(t, "100", snap[session.FieldScoreRaw])
	assert.Equal(t, "3", snap[session.FieldLocation])
}

func TestNext_BlockedUntilAnswered(t *testing.T) {
	f := newAppFixture(t, nil, WithInitialURL("/course"))
	_, err := f.app.Start(context.Background())
	require.NoError(t, err)

	ctx := context.Background()
	require.True(t, f.app.Handle(ctx, Event{Kind: EventNext}).OK)
	assert.False(t, f.app.Handle(ctx, Event{Kind: EventNext}).OK)
	assert.Contains(t, f.app.Frame(), "prev:on next:off")

	assert.True(t, f.app.Handle(ctx, Event{Kind: EventGoTo, Index: 0}).OK)
	assert.Equal(t, titleFrame, f.app.Frame())
}

func TestGuardedRoute_RedirectsAndResumesAfterLogin(t *testing.T) {
	f := newAppFixture(t, func(cfg *config.Config) {
		cfg.Routes["course"] = config.Route{View: ViewCourse, Guarded: true}
	})
	f.run(t)
	_, err := f.app.Start(context.Background())
	require.NoError(t, err)

	res := f.send(t, Event{Kind: EventNavigate, Path: "/course"})
	assert.True(t, res.Outcome.Redirected)
	assert.Contains(t, f.app.Frame(), "# Sign in")
	assert.Equal(t, "/course", f.app.Store().Get(store.KeyRedirectAfterAuth))

	res = f.send(t, Event{Kind: EventLogin, Text: "ada"})
	assert.True(t, res.OK)
	assert.Equal(t, "course", res.Outcome.Slug)
	assert.Equal(t, titleFrame, f.app.Frame())
	assert.Nil(t, f.app.Store().Get(store.KeyRedirectAfterAuth))
	assert.Equal(t, "ada", f.app.Store().Get(KeyLearner))
}

func TestGuardedRoute_LearnerFromSession(t *testing.T) {
	cfg := config.Default()
	cfg.Course = "testdata/course.json"
	cfg.Routes["course"] = config.Route{View: ViewCourse, Guarded: true}

	bridge := session.NewMemory(map[string]string{session.FieldLearnerID: "L-7"})
	a, err := New(context.Background(), cfg, WithBridge(bridge), WithInitialURL("/course"))
	require.NoError(t, err)

	out, err := a.Start(context.Background())
	require.NoError(t, err)
	assert.False(t, out.Redirected)
	assert.Equal(t, "course", out.Slug)
	assert.Equal(t, "L-7", a.Store().Get(KeyLearner))
}

func TestLogin_EmptyLearner(t *testing.T) {
	f := newAppFixture(t, nil)

	res := f.app.Handle(context.Background(), Event{Kind: EventLogin})
	assert.Error(t, res.Err)
}

func TestBackForward(t *testing.T) {
	f := newAppFixture(t, nil)
	f.run(t)
	_, err := f.app.Start(context.Background())
	require.NoError(t, err)

	f.send(t, Event{Kind: EventNavigate, Path: "/glossary"})
	glossary := "# Glossary\n- Bight: A curved section of rope.\n"
	assert.Equal(t, glossary, f.app.Frame())

	res := f.send(t, Event{Kind: EventBack})
	assert.Equal(t, "home", res.Outcome.Slug)
	assert.Equal(t, router.Backward, res.Outcome.Direction)
	assert.Equal(t, "# Home\nCourse: Knots\n", f.app.Frame())

	res = f.send(t, Event{Kind: EventForward})
	assert.Equal(t, "glossary", res.Outcome.Slug)
	assert.Equal(t, glossary, f.app.Frame())

	// Nothing further forward.
	res = f.send(t, Event{Kind: EventForward})
	assert.False(t, res.OK)
}

func TestNavigate_UnknownRouteShowsNotFound(t *testing.T) {
	f := newAppFixture(t, nil)
	_, err := f.app.Start(context.Background())
	require.NoError(t, err)

	res := f.app.Handle(context.Background(), Event{Kind: EventNavigate, Path: "/nope"})

	require.NoError(t, res.Err)
	assert.Error(t, res.Outcome.Err)
	assert.Equal(t, "not-found", res.Outcome.Slug)
	assert.Contains(t, f.app.Frame(), "# Not found")
}

func TestClick(t *testing.T) {
	f := newAppFixture(t, nil)
	_, err := f.app.Start(context.Background())
	require.NoError(t, err)
	ctx := context.Background()

	res := f.app.Handle(ctx, Event{Kind: EventClick, Click: router.Click{Href: "/glossary", Ctrl: true}})
	assert.False(t, res.Handled)
	assert.Equal(t, "# Home\nCourse: Knots\n", f.app.Frame())

	res = f.app.Handle(ctx, Event{Kind: EventClick, Click: router.Click{Href: "glossary"}})
	assert.True(t, res.Handled)
	assert.Contains(t, f.app.Frame(), "# Glossary")
}

func TestDataRoute_RendersLoaderResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stats/ada", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"streak": 3}`))
	}))
	defer srv.Close()

	f := newAppFixture(t, func(cfg *config.Config) {
		cfg.APIBase = srv.URL
		cfg.Routes["stats/:learner"] = config.Route{View: "stats", DataKey: "stats", Endpoint: "/stats/:learner"}
	})
	_, err := f.app.Start(context.Background())
	require.NoError(t, err)

	res := f.app.Handle(context.Background(), Event{Kind: EventNavigate, Path: "/stats/ada"})
	require.NoError(t, res.Outcome.Err)
	assert.Equal(t, "# stats/:learner\n{\n  \"streak\": 3\n}\n", f.app.Frame())
}

func TestNew_EndpointWithoutAPIBase(t *testing.T) {
	cfg := config.Default()
	cfg.Course = "testdata/course.json"
	cfg.Routes["stats"] = config.Route{View: "stats", DataKey: "stats", Endpoint: "/stats"}

	_, err := New(context.Background(), cfg, WithBridge(session.NewMemory(nil)))
	assert.ErrorContains(t, err, "needs api_base")
}

func TestNew_CourseSources(t *testing.T) {
	cfg := config.Default()
	_, err := New(context.Background(), cfg)
	assert.ErrorContains(t, err, "no course configured")

	cfg.Course = "api:/courses/knots"
	_, err = New(context.Background(), cfg)
	assert.ErrorContains(t, err, "needs api_base")
}

func TestComment_Reset_Finish(t *testing.T) {
	f := newAppFixture(t, nil, WithInitialURL("/course"))
	_, err := f.app.Start(context.Background())
	require.NoError(t, err)
	ctx := context.Background()
	eng := f.app.Player().Engine()

	assert.True(t, f.app.Handle(ctx, Event{Kind: EventComment, Text: "tricky", Location: "1"}).OK)
	assert.Len(t, eng.LearnerComments(), 1)

	f.app.Handle(ctx, Event{Kind: EventNext})
	f.app.Handle(ctx, Event{Kind: EventAnswer, Answer: player.Answer{Selected: []string{"hitch"}}})
	require.Len(t, eng.Interactions(), 1)

	res := f.app.Handle(ctx, Event{Kind: EventReset})
	require.NoError(t, res.Err)
	assert.Equal(t, 0, eng.Position())
	assert.Empty(t, eng.Interactions())
	assert.True(t, eng.Progress()[0].Complete)
	assert.Equal(t, titleFrame, f.app.Frame())

	res = f.app.Handle(ctx, Event{Kind: EventFinish})
	require.NoError(t, res.Err)
	assert.False(t, f.bridge.IsActive())
}

func TestHandle_UnknownEvent(t *testing.T) {
	f := newAppFixture(t, nil)

	res := f.app.Handle(context.Background(), Event{Kind: "dance"})
	assert.ErrorContains(t, res.Err, `unknown event "dance"`)
}

func TestSend_AfterStop(t *testing.T) {
	f := newAppFixture(t, nil)
	done := make(chan error, 1)
	go func() {
		done <- f.app.Run(context.Background())
	}()

	f.app.Stop()
	require.NoError(t, <-done)

	_, err := f.app.Send(context.Background(), Event{Kind: EventNext})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestRun_KeepsServingAfterBacklog(t *testing.T) {
	f := newAppFixture(t, nil)
	ctx := context.Background()
	_, err := f.app.Start(ctx)
	require.NoError(t, err)
	require.True(t, f.app.Handle(ctx, Event{Kind: EventNavigate, Path: "/course"}).OK)

	require.True(t, f.app.Enqueue(Event{Kind: EventNext}))
	require.True(t, f.app.Enqueue(Event{Kind: EventPrev}))
	f.run(t)

	res := f.send(t, Event{Kind: EventNext})
	assert.True(t, res.OK)
	assert.Contains(t, f.app.Frame(), "[2 of 4] choice")
	assert.False(t, f.app.Stopped())

	res = f.send(t, Event{Kind: EventPrev})
	assert.True(t, res.OK)
	assert.Equal(t, titleFrame, f.app.Frame())
}

func TestStop_AppliesQueuedEvents(t *testing.T) {
	f := newAppFixture(t, nil)
	ctx := context.Background()
	_, err := f.app.Start(ctx)
	require.NoError(t, err)
	require.True(t, f.app.Handle(ctx, Event{Kind: EventNavigate, Path: "/course"}).OK)

	require.True(t, f.app.Enqueue(Event{Kind: EventNext}))
	f.app.Stop()
	assert.True(t, f.app.Stopped())
	assert.False(t, f.app.Enqueue(Event{Kind: EventPrev}))

	require.NoError(t, f.app.Run(ctx))
	assert.Contains(t, f.app.Frame(), "[2 of 4] choice")
}

func TestRun_ContextCancelled(t *testing.T) {
	f := newAppFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- f.app.Run(ctx)
	}()

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.False(t, f.app.Enqueue(Event{Kind: EventNext}))
}

func TestClose_TerminatesSession(t *testing.T) {
	f := newAppFixture(t, nil, WithInitialURL("/course"))
	_, err := f.app.Start(context.Background())
	require.NoError(t, err)

	require.NoError(t, f.app.Close(context.Background()))
	assert.False(t, f.bridge.IsActive())
	assert.Equal(t, false, f.app.Store().Get("courseActive"))

	require.NoError(t, f.app.Close(context.Background()))
}

func TestDeclaredOrder(t *testing.T) {
	got := declaredOrder(map[string]int{"glossary": 2, "home": 0, "course": 1, "about": 1})
	assert.Equal(t, []string{"home", "about", "course", "glossary"}, got)
}

func TestRouteTable(t *testing.T) {
	cfg := config.Default()
	cfg.APIBase = "https://api.example"
	cfg.Routes["stats/:learner"] = config.Route{View: "stats", DataKey: "stats", Endpoint: "/stats/:learner", Guarded: true}

	table := RouteTable(cfg)

	assert.Equal(t, []string{"home", "course", "glossary"}, table.Order)
	assert.Equal(t, "home", table.Default)
	r := table.Routes["stats/:learner"]
	assert.Equal(t, "stats", r.ViewPath)
	assert.Equal(t, "stats", r.DataKey)
	assert.Nil(t, r.Loader)
	assert.Nil(t, r.Guard)

	res := table.Resolve(cfg.BasePath, "/stats/ada")
	assert.Equal(t, "stats/:learner", res.Slug)
	assert.Equal(t, router.Params{"learner": "ada"}, res.Params)
}

func TestOpenSession(t *testing.T) {
	ctx := context.Background()

	s, err := OpenSession(ctx, "memory:", "reg-1", nil)
	require.NoError(t, err)
	assert.Equal(t, "memory", s.Backend)
	assert.True(t, s.Bridge.IsActive())
	assert.NoError(t, s.Close())

	dsn := "sqlite:" + filepath.Join(t.TempDir(), "sessions.db")
	s, err = OpenSession(ctx, dsn, "reg-1", testutil.NewClock(testutil.Epoch).Now)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", s.Backend)
	assert.True(t, s.Bridge.IsActive())
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())

	_, err = OpenSession(ctx, "ftp://example.com", "reg-1", nil)
	assert.ErrorContains(t, err, "unsupported backend")
}

func TestOpenBackend(t *testing.T) {
	ctx := context.Background()

	_, err := OpenBackend(ctx, "memory:")
	assert.ErrorContains(t, err, "nothing to inspect")

	_, err = OpenBackend(ctx, "ftp://example.com")
	assert.ErrorContains(t, err, "unsupported backend")

	b, err := OpenBackend(ctx, "sqlite:"+filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	defer b.Close()

	regs, err := b.Registrations(ctx)
	require.NoError(t, err)
	assert.Empty(t, regs)
}
