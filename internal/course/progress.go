package course

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"strconv"
)

// PageProgress is the progress entry of one page.
type PageProgress struct {
	Complete bool `json:"complete"`

	// Score is nil for pages completed without a grade.
	Score *float64 `json:"score"`

	// Timestamp is the completion time in Unix milliseconds.
	Timestamp int64 `json:"timestamp,omitempty"`

	// Response is the learner's answer kept for review mode.
	Response any `json:"response,omitempty"`
}

// Progress maps page index to its progress entry.
type Progress map[int]PageProgress

// Clone returns a shallow copy.
func (p Progress) Clone() Progress {
	out := make(Progress, len(p))
	maps.Copy(out, p)
	return out
}

// Completed counts entries marked complete.
func (p Progress) Completed() int {
	n := 0
	for _, e := range p {
		if e.Complete {
			n++
		}
	}
	return n
}

// Result values of an interaction.
const (
	ResultCorrect   = "correct"
	ResultIncorrect = "incorrect"
)

// Interaction is a learner response to a gradable page.
type Interaction struct {
	ID              string `json:"id"`
	Type            string `json:"type,omitempty"`
	LearnerResponse string `json:"learner_response,omitempty"`
	Result          string `json:"result"`
	Weight          Weight `json:"weight"`
	Latency         string `json:"latency,omitempty"`
	Timestamp       string `json:"timestamp,omitempty"`
}

// Weight is an interaction weight. It is written as a string, as the
// session data model requires, and read from either a string or a number.
type Weight float64

// Value returns the weight used for scoring: anything not positive counts as 1.
func (w Weight) Value() float64 {
	f := float64(w)
	if math.IsNaN(f) || f <= 0 {
		return 1
	}
	return f
}

// String formats the weight the way it is stored.
func (w Weight) String() string {
	return strconv.FormatFloat(float64(w), 'f', -1, 64)
}

// MarshalJSON implements json.Marshaler.
func (w Weight) MarshalJSON() ([]byte, error) {
	return json.Marshal(w.String())
}

// UnmarshalJSON implements json.Unmarshaler. Unparseable strings decode
// to 0, which scores as 1.
func (w *Weight) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*w = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			*w = 0
			return nil
		}
		*w = Weight(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("weight: %w", err)
	}
	*w = Weight(f)
	return nil
}

// Score is the weighted accuracy of interactions as a whole percent.
// An empty log scores 0.
func Score(interactions []Interaction) int {
	if len(interactions) == 0 {
		return 0
	}
	var total, earned float64
	for _, in := range interactions {
		w := in.Weight.Value()
		total += w
		if in.Result == ResultCorrect {
			earned += w
		}
	}
	if total <= 0 {
		return 0
	}
	return int(math.Round(earned / total * 100))
}

// upsertInteraction replaces the entry with rec.ID in place or appends rec.
func upsertInteraction(log []Interaction, rec Interaction) []Interaction {
	out := make([]Interaction, len(log), len(log)+1)
	copy(out, log)
	for i := range out {
		if out[i].ID == rec.ID {
			out[i] = rec
			return out
		}
	}
	return append(out, rec)
}
