package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/axiom/internal/config"
	"github.com/roach88/axiom/internal/player"
)

// Script is a scripted learner session.
type Script struct {
	// Name uniquely identifies the script and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the script exercises.
	Description string `yaml:"description"`

	// Course is the course document path, relative to the script file.
	Course string `yaml:"course"`

	// Start is the URL the session opens on. Defaults to the base path.
	Start string `yaml:"start,omitempty"`

	// Learner signs a learner in before the first navigation.
	Learner string `yaml:"learner,omitempty"`

	// Session seeds the in-memory session fields.
	Session map[string]string `yaml:"session,omitempty"`

	// Routes are merged over the default route table.
	Routes map[string]config.Route `yaml:"routes,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one learner action. Only the fields its kind reads are set.
type Step struct {
	Do string `yaml:"do"`

	Path     string          `yaml:"path,omitempty"`
	Href     string          `yaml:"href,omitempty"`
	Answer   *player.Answer  `yaml:"answer,omitempty"`
	Index    int             `yaml:"index,omitempty"`
	Text     string          `yaml:"text,omitempty"`
	Location string          `yaml:"location,omitempty"`
	Duration config.Duration `yaml:"duration,omitempty"`

	// Expect is checked right after the step is applied.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect describes the outcome of a single step.
type Expect struct {
	OK      *bool  `yaml:"ok,omitempty"`
	Correct *bool  `yaml:"correct,omitempty"`
	Route   string `yaml:"route,omitempty"`
	Frame   string `yaml:"frame,omitempty"`
	Error   string `yaml:"error,omitempty"`
}

// Assertion checks the state a script leaves behind.
type Assertion struct {
	Type string `yaml:"type"`

	// Text is used by frame_contains and notification.
	Text string `yaml:"text,omitempty"`

	// Field and Value are used by field_equals.
	Field string `yaml:"field,omitempty"`
	Value string `yaml:"value,omitempty"`

	// Kind and Count are used by trace_count.
	Kind  string `yaml:"kind,omitempty"`
	Count int    `yaml:"count,omitempty"`

	// Expect is a subset of the summary (used by summary).
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Step kinds.
const (
	StepNavigate = "navigate"
	StepClick    = "click"
	StepBack     = "back"
	StepForward  = "forward"
	StepLogin    = "login"
	StepAnswer   = "answer"
	StepNext     = "next"
	StepPrev     = "prev"
	StepGoTo     = "goto"
	StepComment  = "comment"
	StepNotes    = "notes"
	StepReset    = "reset"
	StepFinish   = "finish"
	StepAdvance  = "advance"
)

// Assertion types.
const (
	AssertFrameContains = "frame_contains"
	AssertFieldEquals   = "field_equals"
	AssertSummary       = "summary"
	AssertTraceCount    = "trace_count"
	AssertNotification  = "notification"
)

// LoadScript reads and validates a script file. Unknown keys are
// rejected. The course path is resolved against the script's directory.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script file: %w", err)
	}

	var s Script
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if s.Course != "" && !filepath.IsAbs(s.Course) {
		s.Course = filepath.Join(filepath.Dir(path), s.Course)
	}

	if err := validateScript(&s); err != nil {
		return nil, fmt.Errorf("invalid script: %w", err)
	}
	return &s, nil
}

func validateScript(s *Script) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Course == "" {
		return fmt.Errorf("course is required")
	}
	if _, err := os.Stat(s.Course); err != nil {
		return fmt.Errorf("course file not found: %s", s.Course)
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, s Step) error {
	switch s.Do {
	case "":
		return fmt.Errorf("steps[%d]: do is required", index)
	case StepNavigate:
		if s.Path == "" {
			return fmt.Errorf("steps[%d]: path is required for navigate", index)
		}
	case StepClick:
		if s.Href == "" {
			return fmt.Errorf("steps[%d]: href is required for click", index)
		}
	case StepAnswer:
		if s.Answer == nil {
			return fmt.Errorf("steps[%d]: answer is required for answer", index)
		}
	case StepLogin, StepComment, StepNotes:
		if s.Text == "" {
			return fmt.Errorf("steps[%d]: text is required for %s", index, s.Do)
		}
	case StepAdvance:
		if s.Duration <= 0 {
			return fmt.Errorf("steps[%d]: duration must be positive for advance", index)
		}
	case StepBack, StepForward, StepNext, StepPrev, StepGoTo, StepReset, StepFinish:
	default:
		return fmt.Errorf("steps[%d]: unknown step %q", index, s.Do)
	}
	return nil
}

func validateAssertion(index int, a Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertFrameContains, AssertNotification:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for %s", index, a.Type)
		}
	case AssertFieldEquals:
		if a.Field == "" {
			return fmt.Errorf("assertions[%d]: field is required for field_equals", index)
		}
	case AssertSummary:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for summary", index)
		}
	case AssertTraceCount:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
