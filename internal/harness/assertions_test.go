package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/axiom/internal/player"
)

func sampleResult() *Result {
	r := NewResult()
	r.Frame = "[4 of 4] scorecard\n# Results\nScore: 100% (pass mark 50%)\n"
	r.Fields = map[string]string{"cmi.success_status": "passed"}
	r.Summary = player.Summary{Title: "Knots", Score: 100, Passing: true, Total: 4}
	r.Notifications = []string{"success: Comment saved!"}
	r.AddTrace(TraceEvent{Kind: StepNext, OK: true})
	r.AddTrace(TraceEvent{Kind: StepAnswer, OK: true, Result: "correct"})
	r.AddTrace(TraceEvent{Kind: StepNext, OK: false, Route: "course", Error: "boom"})
	return r
}

func TestEvaluateAssertions_Pass(t *testing.T) {
	r := sampleResult()

	errs := EvaluateAssertions(r, []Assertion{
		{Type: AssertFrameContains, Text: "Score: 100%"},
		{Type: AssertFieldEquals, Field: "cmi.success_status", Value: "passed"},
		{Type: AssertSummary, Expect: map[string]any{"score": 100, "passing": true, "title": "Knots"}},
		{Type: AssertTraceCount, Kind: StepNext, Count: 2},
		{Type: AssertTraceCount, Kind: StepReset, Count: 0},
		{Type: AssertNotification, Text: "Comment saved"},
	})

	assert.Empty(t, errs)
}

func TestEvaluateAssertions_Fail(t *testing.T) {
	r := sampleResult()

	errs := EvaluateAssertions(r, []Assertion{
		{Type: AssertFrameContains, Text: "Well tied."},
		{Type: AssertFieldEquals, Field: "cmi.success_status", Value: "failed"},
		{Type: AssertSummary, Expect: map[string]any{"passing": false, "grade": "A"}},
		{Type: AssertTraceCount, Kind: StepAnswer, Count: 2},
		{Type: AssertNotification, Text: "Notes saved"},
		{Type: "vibes"},
	})

	assert.Len(t, errs, 6)
	assert.Contains(t, errs[1], `Actual: "passed"`)
	assert.Contains(t, errs[2], "grade: no such summary field")
	assert.Contains(t, errs[2], "passing: want false, got true")
	assert.Contains(t, errs[3], "Actual: applied 1 times")
	assert.Contains(t, errs[5], `unknown assertion type "vibes"`)
}

func TestAssertionError_IncludesSteps(t *testing.T) {
	r := sampleResult()

	err := assertTraceCount(r, Assertion{Type: AssertTraceCount, Kind: StepPrev, Count: 1})

	assert.Equal(t, "Assertion failed: trace_count\n"+
		"  Expected: prev applied 1 times\n"+
		"  Actual: applied 0 times\n"+
		"\nSteps:\n"+
		"  [1] next ok=true\n"+
		"  [2] answer ok=true\n"+
		"  [3] next ok=false route=course error=\"boom\"\n", err.Error())
}

func TestValuesEqual(t *testing.T) {
	assert.True(t, valuesEqual(float64(3), 3))
	assert.True(t, valuesEqual(float64(3), uint64(3)))
	assert.False(t, valuesEqual(float64(3), "3"))
	assert.True(t, valuesEqual("a", "a"))
	assert.True(t, valuesEqual(true, true))
	assert.False(t, valuesEqual(true, false))
}
