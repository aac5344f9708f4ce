package harness

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// AssertionError is returned when an assertion fails. It carries the
// step trace to help debug the failure.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nSteps:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s ok=%t", ev.Seq, ev.Kind, ev.OK)
			if ev.Route != "" {
				fmt.Fprintf(&buf, " route=%s", ev.Route)
			}
			if ev.Error != "" {
				fmt.Fprintf(&buf, " error=%q", ev.Error)
			}
			buf.WriteString("\n")
		}
	}
	return buf.String()
}

func assertFrameContains(r *Result, a Assertion) error {
	if strings.Contains(r.Frame, a.Text) {
		return nil
	}
	return &AssertionError{
		Type:     AssertFrameContains,
		Expected: fmt.Sprintf("frame containing %q", a.Text),
		Actual:   fmt.Sprintf("%q", r.Frame),
		Trace:    r.Trace,
	}
}

func assertFieldEquals(r *Result, a Assertion) error {
	got, ok := r.Fields[a.Field]
	if ok && got == a.Value {
		return nil
	}
	actual := fmt.Sprintf("%q", got)
	if !ok {
		actual = "field not set"
	}
	return &AssertionError{
		Type:     AssertFieldEquals,
		Expected: fmt.Sprintf("%s = %q", a.Field, a.Value),
		Actual:   actual,
		Trace:    r.Trace,
	}
}

// assertSummary subset-matches the summary in its JSON form, so keys are
// the summary's JSON names.
func assertSummary(r *Result, a Assertion) error {
	data, err := json.Marshal(r.Summary)
	if err != nil {
		return err
	}
	var actual map[string]any
	if err := json.Unmarshal(data, &actual); err != nil {
		return err
	}

	var mismatches []string
	for _, key := range sortedKeys(a.Expect) {
		want := a.Expect[key]
		got, ok := actual[key]
		if !ok {
			mismatches = append(mismatches, fmt.Sprintf("%s: no such summary field", key))
			continue
		}
		if !valuesEqual(got, want) {
			mismatches = append(mismatches, fmt.Sprintf("%s: want %v, got %v", key, want, got))
		}
	}
	if len(mismatches) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertSummary,
		Expected: fmt.Sprintf("summary matching %v", a.Expect),
		Actual:   strings.Join(mismatches, "; "),
		Trace:    r.Trace,
	}
}

func assertTraceCount(r *Result, a Assertion) error {
	n := 0
	for _, ev := range r.Trace {
		if ev.Kind == a.Kind {
			n++
		}
	}
	if n == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceCount,
		Expected: fmt.Sprintf("%s applied %d times", a.Kind, a.Count),
		Actual:   fmt.Sprintf("applied %d times", n),
		Trace:    r.Trace,
	}
}

func assertNotification(r *Result, a Assertion) error {
	for _, n := range r.Notifications {
		if strings.Contains(n, a.Text) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertNotification,
		Expected: fmt.Sprintf("notification containing %q", a.Text),
		Actual:   fmt.Sprintf("%q", r.Notifications),
		Trace:    r.Trace,
	}
}

// valuesEqual compares a decoded JSON value with a YAML value. Numbers
// compare by value regardless of their Go type.
func valuesEqual(actual, expected any) bool {
	if af, ok := toFloat(actual); ok {
		ef, ok := toFloat(expected)
		return ok && af == ef
	}
	return reflect.DeepEqual(actual, expected)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// EvaluateAssertions runs every assertion against r and returns the
// failure messages in assertion order.
func EvaluateAssertions(r *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertFrameContains:
			err = assertFrameContains(r, a)
		case AssertFieldEquals:
			err = assertFieldEquals(r, a)
		case AssertSummary:
			err = assertSummary(r, a)
		case AssertTraceCount:
			err = assertTraceCount(r, a)
		case AssertNotification:
			err = assertNotification(r, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}
