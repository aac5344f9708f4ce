package harness

import "github.com/roach88/axiom/internal/player"

// TraceEvent records one applied step.
type TraceEvent struct {
	Seq    int    `json:"seq"`
	Kind   string `json:"kind"`
	OK     bool   `json:"ok"`
	Route  string `json:"route,omitempty"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Result is the outcome of a script run.
type Result struct {
	// Pass is true when every step expectation and assertion held.
	Pass bool `json:"pass"`

	Trace  []TraceEvent `json:"trace"`
	Errors []string     `json:"errors,omitempty"`

	// Frames lists each distinct frame in render order; Frame is the last.
	Frames []string `json:"-"`
	Frame  string   `json:"frame"`

	Summary       player.Summary    `json:"summary"`
	SuspendData   string            `json:"suspend_data"`
	Fields        map[string]string `json:"fields"`
	Notifications []string          `json:"notifications,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		Fields: make(map[string]string),
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a step outcome.
func (r *Result) AddTrace(ev TraceEvent) {
	ev.Seq = len(r.Trace) + 1
	r.Trace = append(r.Trace, ev)
}
