package course

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// Grade is the outcome of grading one answer.
type Grade struct {
	Correct bool

	// Score is the page score in percent.
	Score float64

	// Response is the learner response in data-model form.
	Response string
}

// Result returns ResultCorrect or ResultIncorrect.
func (g Grade) Result() string {
	if g.Correct {
		return ResultCorrect
	}
	return ResultIncorrect
}

// Interaction builds the interaction record for this grade on page at
// position, answered after latency and recorded at at.
func (g Grade) Interaction(page Page, position int, latency time.Duration, at time.Time) Interaction {
	return Interaction{
		ID:              page.InteractionID(position),
		Type:            interactionType(page.Type),
		LearnerResponse: g.Response,
		Result:          g.Result(),
		Weight:          Weight(page.EffectiveWeight()),
		Latency:         Latency(latency),
		Timestamp:       at.UTC().Format(time.RFC3339),
	}
}

func interactionType(pageType string) string {
	switch pageType {
	case TypeChoice:
		return "choice"
	case TypeMatch:
		return "matching"
	case TypeWordPuzzle:
		return "fill-in"
	}
	return "other"
}

// Latency formats d as an ISO-8601 duration in whole seconds.
func Latency(d time.Duration) string {
	return fmt.Sprintf("PT%dS", int64(math.Round(d.Seconds())))
}

// GradeChoice grades a choice page. The selection is correct when it
// equals the set of correct choices exactly.
func GradeChoice(page Page, selected []string) Grade {
	var correct []string
	for _, c := range page.Choices {
		if c.Correct {
			correct = append(correct, c.ID)
		}
	}
	picked := slices.Clone(selected)
	slices.Sort(picked)
	picked = slices.Compact(picked)
	slices.Sort(correct)

	g := Grade{
		Correct:  slices.Equal(picked, correct),
		Response: strings.Join(picked, ","),
	}
	if g.Correct {
		g.Score = 100
	}
	return g
}

// GradeMatch grades a match page. matches maps source id to the chosen
// target id. Score is the share of correctly matched pairs.
func GradeMatch(page Page, matches map[string]string) Grade {
	if len(page.Pairs) == 0 {
		return Grade{}
	}
	right := 0
	parts := make([]string, 0, len(page.Pairs))
	for _, p := range page.Pairs {
		target, ok := matches[p.SourceID]
		if !ok {
			continue
		}
		parts = append(parts, p.SourceID+"."+target)
		if target == p.TargetID {
			right++
		}
	}
	return Grade{
		Correct:  right == len(page.Pairs),
		Score:    percent(right, len(page.Pairs)),
		Response: strings.Join(parts, ","),
	}
}

// GradeFillIn grades a wordpuzzle page. answers maps blank id to the
// learner's text, compared case-insensitively against every accepted answer.
func GradeFillIn(page Page, answers map[string]string) Grade {
	if len(page.Blanks) == 0 {
		return Grade{}
	}
	fold := cases.Fold()
	right := 0
	parts := make([]string, 0, len(page.Blanks))
	for _, b := range page.Blanks {
		given := strings.TrimSpace(answers[b.ID])
		parts = append(parts, b.ID+":"+given)
		want := fold.String(given)
		for _, a := range b.Answers {
			if fold.String(strings.TrimSpace(a)) == want {
				right++
				break
			}
		}
	}
	return Grade{
		Correct:  right == len(page.Blanks),
		Score:    percent(right, len(page.Blanks)),
		Response: strings.Join(parts, ","),
	}
}

func percent(n, total int) float64 {
	return math.Round(float64(n) / float64(total) * 100)
}
