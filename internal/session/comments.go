package session

import (
	"sort"
	"time"
)

// Comment is one entry of a comments collection.
type Comment struct {
	Comment   string `json:"comment"`
	Location  string `json:"location"`
	Timestamp string `json:"timestamp"`
	From      string `json:"from"`
}

// Comment sources.
const (
	FromLearner = "learner"
	FromLMS     = "lms"
)

// LearnerComments reads the learner's comments, tagged FromLearner.
// An inactive bridge yields nil.
func LearnerComments(b Bridge) []Comment {
	return readComments(b, CollectionLearnerComments, FromLearner)
}

// LMSComments reads instructor comments, tagged FromLMS.
func LMSComments(b Bridge) []Comment {
	return readComments(b, CollectionLMSComments, FromLMS)
}

func readComments(b Bridge, collection, from string) []Comment {
	if !Live(b) {
		return nil
	}
	n := Count(b, collection)
	out := make([]Comment, 0, n)
	for i := 0; i < n; i++ {
		text := b.GetField(IndexedField(collection, i, "comment"))
		if !Has(text) {
			continue
		}
		out = append(out, Comment{
			Comment:   text,
			Location:  value(b.GetField(IndexedField(collection, i, "location"))),
			Timestamp: value(b.GetField(IndexedField(collection, i, "timestamp"))),
			From:      from,
		})
	}
	return out
}

// AddLearnerComment appends a learner comment stamped with at.
// Returns false when the bridge is not live or a write fails.
func AddLearnerComment(b Bridge, text, location string, at time.Time) bool {
	if !Live(b) {
		return false
	}
	n := Count(b, CollectionLearnerComments)
	writes := [][2]string{
		{IndexedField(CollectionLearnerComments, n, "comment"), text},
		{IndexedField(CollectionLearnerComments, n, "location"), location},
		{IndexedField(CollectionLearnerComments, n, "timestamp"), at.UTC().Format(time.RFC3339)},
	}
	for _, w := range writes {
		if err := b.SetField(w[0], w[1]); err != nil {
			return false
		}
	}
	return true
}

// BlankLearnerComments overwrites every learner comment with empty values.
// The data model has no delete, so a reset blanks entries in place.
func BlankLearnerComments(b Bridge) error {
	n := Count(b, CollectionLearnerComments)
	for i := 0; i < n; i++ {
		for _, leaf := range []string{"comment", "location", "timestamp"} {
			if err := b.SetField(IndexedField(CollectionLearnerComments, i, leaf), ""); err != nil {
				return err
			}
		}
	}
	return nil
}

// MergeComments returns lms and learner comments sorted oldest first.
// Entries without a parseable timestamp sort before everything else.
func MergeComments(lms, learner []Comment) []Comment {
	all := make([]Comment, 0, len(lms)+len(learner))
	all = append(all, lms...)
	all = append(all, learner...)
	sort.SliceStable(all, func(i, j int) bool {
		return commentTime(all[i]).Before(commentTime(all[j]))
	})
	return all
}

func commentTime(c Comment) time.Time {
	t, err := time.Parse(time.RFC3339, c.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}

func value(v string) string {
	if v == Sentinel {
		return ""
	}
	return v
}
