package course

import (
	"github.com/roach88/axiom/internal/session"
	"github.com/roach88/axiom/internal/store"
)

// Store keys owned by the course engine.
const (
	KeyActive          = "courseActive"
	KeyData            = "courseData"
	KeyPosition        = "coursePosition"
	KeyProgress        = "courseProgress"
	KeyInteractions    = "interactions"
	KeyFeedbackOpen    = "feedbackOpen"
	KeyToolsOpen       = "toolsOpen"
	KeyGlossaryOpen    = "glossaryOpen"
	KeyLearnerComments = "learnerComments"
	KeyLMSComments     = "lmsComments"
	KeyAllComments     = "allComments"
)

func courseDefaults() map[string]any {
	return map[string]any{
		KeyActive:          false,
		KeyData:            nil,
		KeyPosition:        0,
		KeyProgress:        Progress{},
		KeyInteractions:    []Interaction{},
		KeyFeedbackOpen:    false,
		KeyToolsOpen:       false,
		KeyGlossaryOpen:    false,
		KeyLearnerComments: "",
		KeyLMSComments:     "",
		KeyAllComments:     []session.Comment{},
	}
}

// InitState writes the course defaults for every key that is still unset.
func InitState(st *store.Store) {
	for key, value := range courseDefaults() {
		if _, ok := st.Lookup(key); !ok {
			st.Set(key, value)
		}
	}
}
