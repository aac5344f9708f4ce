package course

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
)

// Page types.
const (
	TypeTitle      = "title-page"
	TypeChoice     = "choice"
	TypeMatch      = "match"
	TypeWordPuzzle = "wordpuzzle"
	TypeScorecard  = "scorecard"
)

// DefaultPassingScore applies when meta.passingScore is absent or zero.
const DefaultPassingScore = 80

var (
	autoCompleteTypes = []string{TypeTitle, TypeScorecard}
	interactiveTypes  = []string{TypeChoice, TypeMatch, TypeWordPuzzle}
)

// IsAutoComplete reports whether pages of this type never block advancement.
func IsAutoComplete(pageType string) bool {
	return slices.Contains(autoCompleteTypes, pageType)
}

// IsInteractive reports whether pages of this type need an answer.
func IsInteractive(pageType string) bool {
	return slices.Contains(interactiveTypes, pageType)
}

// Course is a loaded course document.
type Course struct {
	Meta      Meta           `json:"meta"`
	Settings  Settings       `json:"settings"`
	Pages     []Page         `json:"pages"`
	Glossary  []GlossaryTerm `json:"glossary,omitempty"`
	Resources []Resource     `json:"resources,omitempty"`
}

// Meta describes the course.
type Meta struct {
	ID           string  `json:"id,omitempty"`
	Title        string  `json:"title"`
	Description  string  `json:"description,omitempty"`
	Version      string  `json:"version,omitempty"`
	PassingScore float64 `json:"passingScore,omitempty"`
}

// Threshold returns the passing score, defaulting to 80.
func (m Meta) Threshold() float64 {
	if m.PassingScore <= 0 {
		return DefaultPassingScore
	}
	return m.PassingScore
}

// Settings are the course behaviour switches. Nil means "not set".
type Settings struct {
	RequireAnswerToAdvance *bool `json:"requireAnswerToAdvance,omitempty"`
	ForceSequential        *bool `json:"forceSequential,omitempty"`
	AllowReview            *bool `json:"allowReview,omitempty"`
}

// RequiresAnswer reports whether interactive pages block advancement.
// Only an explicit false disables it.
func (s Settings) RequiresAnswer() bool {
	return s.RequireAnswerToAdvance == nil || *s.RequireAnswerToAdvance
}

// Page is one entry of the course sequence. Fields beyond ID, Type and the
// text fields only apply to the matching page type.
type Page struct {
	ID         string    `json:"id,omitempty"`
	Type       string    `json:"type"`
	Title      string    `json:"title,omitempty"`
	Subtitle   string    `json:"subtitle,omitempty"`
	Content    string    `json:"content,omitempty"`
	Text       string    `json:"text,omitempty"`
	Question   string    `json:"question,omitempty"`
	Weight     float64   `json:"weight,omitempty"`
	Objectives []string  `json:"objectives,omitempty"`
	Feedback   *Feedback `json:"feedback,omitempty"`

	// choice
	Choices     []Choice `json:"choices,omitempty"`
	MultiSelect bool     `json:"multiSelect,omitempty"`

	// match
	Pairs []Pair `json:"pairs,omitempty"`

	// wordpuzzle
	Blanks []Blank `json:"blanks,omitempty"`

	// scorecard
	PassMessage string `json:"passMessage,omitempty"`
	FailMessage string `json:"failMessage,omitempty"`
	ShowDetails bool   `json:"showDetails,omitempty"`
}

// Choice is an option of a choice page.
type Choice struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct,omitempty"`
}

// Pair is a source/target pair of a match page.
type Pair struct {
	SourceID   string `json:"sourceId"`
	SourceText string `json:"sourceText,omitempty"`
	TargetID   string `json:"targetId"`
	TargetText string `json:"targetText,omitempty"`
}

// Blank is a gap of a wordpuzzle page with its accepted answers.
type Blank struct {
	ID      string   `json:"id"`
	Answers []string `json:"answers"`
}

// Feedback holds the messages shown after grading.
type Feedback struct {
	Correct   string `json:"correct,omitempty"`
	Incorrect string `json:"incorrect,omitempty"`
}

// GlossaryTerm is a glossary entry.
type GlossaryTerm struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
}

// Resource is a downloadable or linked course resource.
type Resource struct {
	Title string `json:"title"`
	URL   string `json:"url,omitempty"`
	Type  string `json:"type,omitempty"`
}

// Parse validates data against the course schema and decodes it.
// filename is used in error positions only.
func Parse(data []byte, filename string) (*Course, error) {
	if errs := Validate(data, filename); len(errs) > 0 {
		return nil, errs
	}
	var c Course
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode course %s: %w", filename, err)
	}
	return &c, nil
}

// LoadFile reads and parses a course document from disk.
func LoadFile(path string) (*Course, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read course: %w", err)
	}
	return Parse(data, path)
}

// InteractionID returns the id used for the interaction of the page at
// position: the page id, or "page-<position>" when the page has none.
func (p Page) InteractionID(position int) string {
	if p.ID != "" {
		return p.ID
	}
	return fmt.Sprintf("page-%d", position)
}

// EffectiveWeight returns the page weight, defaulting to 1.
func (p Page) EffectiveWeight() float64 {
	if p.Weight <= 0 {
		return 1
	}
	return p.Weight
}
