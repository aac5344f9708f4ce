package player

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/roach88/axiom/internal/course"
)

// PageView is everything a template may read.
type PageView struct {
	Page         course.Page
	Position     int
	Total        int
	Progress     course.PageProgress
	Meta         course.Meta
	Score        int
	Passing      bool
	Interactions []course.Interaction
}

// Template renders the body of one page type.
type Template func(v PageView) (string, error)

// Templates maps page types to their template.
//
// Thread-safety: Templates is safe for concurrent use via internal mutex.
type Templates struct {
	mu    sync.RWMutex
	byTyp map[string]Template
}

// NewTemplates creates an empty registry.
func NewTemplates() *Templates {
	return &Templates{byTyp: make(map[string]Template)}
}

// DefaultTemplates returns a registry with a template for every built-in
// page type.
func DefaultTemplates() *Templates {
	t := NewTemplates()
	t.Register(course.TypeTitle, renderTitle)
	t.Register(course.TypeChoice, renderChoice)
	t.Register(course.TypeMatch, renderMatch)
	t.Register(course.TypeWordPuzzle, renderWordPuzzle)
	t.Register(course.TypeScorecard, renderScorecard)
	return t
}

// Register binds pageType to tmpl, replacing any previous binding.
func (t *Templates) Register(pageType string, tmpl Template) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byTyp[pageType] = tmpl
}

// Lookup returns the template for pageType.
func (t *Templates) Lookup(pageType string) (Template, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	tmpl, ok := t.byTyp[pageType]
	return tmpl, ok
}

// Types returns the registered page types, sorted.
func (t *Templates) Types() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.byTyp))
	for typ := range t.byTyp {
		out = append(out, typ)
	}
	sort.Strings(out)
	return out
}

func renderTitle(v PageView) (string, error) {
	var b strings.Builder
	title := v.Page.Title
	if title == "" {
		title = v.Meta.Title
	}
	fmt.Fprintf(&b, "# %s\n", title)
	if v.Page.Subtitle != "" {
		fmt.Fprintf(&b, "%s\n", v.Page.Subtitle)
	}
	if v.Page.Content != "" {
		fmt.Fprintf(&b, "\n%s\n", v.Page.Content)
	}
	return b.String(), nil
}

func renderChoice(v PageView) (string, error) {
	var b strings.Builder
	writeQuestion(&b, v.Page)
	if v.Page.MultiSelect {
		b.WriteString("(select all that apply)\n")
	}
	for _, c := range v.Page.Choices {
		fmt.Fprintf(&b, "  [%s] %s\n", c.ID, c.Text)
	}
	writeAnswered(&b, v)
	return b.String(), nil
}

func renderMatch(v PageView) (string, error) {
	var b strings.Builder
	writeQuestion(&b, v.Page)

	targets := make([]course.Pair, len(v.Page.Pairs))
	copy(targets, v.Page.Pairs)
	sort.Slice(targets, func(i, j int) bool { return targets[i].TargetID < targets[j].TargetID })

	for _, p := range v.Page.Pairs {
		fmt.Fprintf(&b, "  %s: %s\n", p.SourceID, label(p.SourceText, p.SourceID))
	}
	b.WriteString("  --\n")
	for _, p := range targets {
		fmt.Fprintf(&b, "  %s: %s\n", p.TargetID, label(p.TargetText, p.TargetID))
	}
	writeAnswered(&b, v)
	return b.String(), nil
}

func renderWordPuzzle(v PageView) (string, error) {
	var b strings.Builder
	writeQuestion(&b, v.Page)
	ids := make([]string, len(v.Page.Blanks))
	for i, blank := range v.Page.Blanks {
		ids[i] = blank.ID
	}
	fmt.Fprintf(&b, "  blanks: %s\n", strings.Join(ids, ", "))
	writeAnswered(&b, v)
	return b.String(), nil
}

func renderScorecard(v PageView) (string, error) {
	var b strings.Builder
	title := v.Page.Title
	if title == "" {
		title = "Results"
	}
	fmt.Fprintf(&b, "# %s\n", title)
	fmt.Fprintf(&b, "Score: %d%% (pass mark %g%%)\n", v.Score, v.Meta.Threshold())

	msg := v.Page.FailMessage
	if v.Passing {
		msg = v.Page.PassMessage
	}
	if msg != "" {
		fmt.Fprintf(&b, "%s\n", msg)
	}

	if v.Page.ShowDetails && len(v.Interactions) > 0 {
		b.WriteString("\n")
		for _, in := range v.Interactions {
			fmt.Fprintf(&b, "  %-12s %s\n", in.ID, in.Result)
		}
	}
	return b.String(), nil
}

func writeQuestion(b *strings.Builder, p course.Page) {
	if p.Title != "" {
		fmt.Fprintf(b, "# %s\n", p.Title)
	}
	for _, s := range []string{p.Question, p.Text, p.Content} {
		if s != "" {
			fmt.Fprintf(b, "%s\n", s)
		}
	}
}

func writeAnswered(b *strings.Builder, v PageView) {
	if !v.Progress.Complete {
		return
	}
	if v.Progress.Score != nil {
		fmt.Fprintf(b, "answered: %g%%\n", *v.Progress.Score)
	} else {
		b.WriteString("answered\n")
	}
	if msg := feedback(v); msg != "" {
		fmt.Fprintf(b, "%s\n", msg)
	}
}

// feedback picks the page's feedback message for its recorded result.
func feedback(v PageView) string {
	fb := v.Page.Feedback
	if fb == nil {
		return ""
	}
	id := v.Page.InteractionID(v.Position)
	for _, in := range v.Interactions {
		if in.ID != id {
			continue
		}
		if in.Result == course.ResultCorrect {
			return fb.Correct
		}
		return fb.Incorrect
	}
	return ""
}

func label(text, id string) string {
	if text != "" {
		return text
	}
	return id
}
