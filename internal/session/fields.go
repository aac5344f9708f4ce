package session

import (
	"errors"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Sentinel is returned for absent fields and failed reads.
const Sentinel = "false"

// Data model field names.
const (
	FieldLocation         = "cmi.location"
	FieldSuspendData      = "cmi.suspend_data"
	FieldCompletionStatus = "cmi.completion_status"
	FieldSuccessStatus    = "cmi.success_status"
	FieldScoreRaw         = "cmi.score.raw"
	FieldScoreScaled      = "cmi.score.scaled"
	FieldScoreMin         = "cmi.score.min"
	FieldScoreMax         = "cmi.score.max"
	FieldProgressMeasure  = "cmi.progress_measure"
	FieldExit             = "cmi.exit"
	FieldEntry            = "cmi.entry"
	FieldLearnerID        = "cmi.learner_id"
	FieldLearnerName      = "cmi.learner_name"

	CollectionInteractions    = "cmi.interactions"
	CollectionLearnerComments = "cmi.comments_from_learner"
	CollectionLMSComments     = "cmi.comments_from_lms"
)

// Status values.
const (
	CompletionCompleted  = "completed"
	CompletionIncomplete = "incomplete"
	SuccessPassed        = "passed"
	SuccessFailed        = "failed"
	SuccessUnknown       = "unknown"
)

var (
	// ErrNotActive is returned when writing to a bridge that is not initialised.
	ErrNotActive = errors.New("session: not active")
	// ErrTerminated is returned when using a bridge after Terminate.
	ErrTerminated = errors.New("session: terminated")
	// ErrReadOnly is returned when writing a computed field such as "_count".
	ErrReadOnly = errors.New("session: field is read-only")
)

var indexedField = regexp.MustCompile(`^(.+)\.(\d+)\.[A-Za-z_.]+$`)

// CountField returns the "_count" field name for a collection.
func CountField(collection string) string {
	return collection + "._count"
}

// IndexedField returns "<collection>.<n>.<leaf>".
func IndexedField(collection string, n int, leaf string) string {
	return collection + "." + strconv.Itoa(n) + "." + leaf
}

// Fields is the in-memory field table shared by all bridge backends.
// It is not safe for concurrent use; backends guard it with their own lock.
type Fields struct {
	values map[string]string
	dirty  map[string]bool
}

// NewFields creates a table seeded with values. Seeded values are clean.
func NewFields(values map[string]string) *Fields {
	f := &Fields{
		values: make(map[string]string, len(values)),
		dirty:  make(map[string]bool),
	}
	for k, v := range values {
		f.values[k] = v
	}
	return f
}

// Get returns the value of name and whether it is set.
func (f *Fields) Get(name string) (string, bool) {
	v, ok := f.values[name]
	return v, ok
}

// Set writes name, marking it dirty. Writing an indexed collection entry
// raises the collection's "_count" to cover the index.
func (f *Fields) Set(name, value string) error {
	if strings.HasSuffix(name, "._count") || strings.HasSuffix(name, "._children") {
		return ErrReadOnly
	}
	f.values[name] = value
	f.dirty[name] = true

	if m := indexedField.FindStringSubmatch(name); m != nil {
		n, _ := strconv.Atoi(m[2])
		countName := CountField(m[1])
		current, _ := strconv.Atoi(f.values[countName])
		if n+1 > current {
			f.values[countName] = strconv.Itoa(n + 1)
			f.dirty[countName] = true
		}
	}
	return nil
}

// Dirty returns the names written since the last MarkClean, sorted.
func (f *Fields) Dirty() []string {
	names := make([]string, 0, len(f.dirty))
	for name := range f.dirty {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MarkClean forgets the dirty set, typically after a successful commit.
func (f *Fields) MarkClean() {
	f.dirty = make(map[string]bool)
}

// Snapshot returns a copy of every field.
func (f *Fields) Snapshot() map[string]string {
	out := make(map[string]string, len(f.values))
	for k, v := range f.values {
		out[k] = v
	}
	return out
}

// Reset drops all values and marks nothing dirty.
func (f *Fields) Reset() {
	f.values = make(map[string]string)
	f.dirty = make(map[string]bool)
}
