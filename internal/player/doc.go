// Package player renders a course page by page and turns learner answers
// into progress.
//
// A Player loads the course document through the store's query cache,
// connects the session bridge, restores any suspend data and then renders
// the current page through a Templates registry keyed by page type. It is
// a router.View, so the application mounts it like any other feature.
//
// Page lifecycle:
//
//	load ──► enter(page) ──► render ──► answer ──► interaction-submit
//	              │                                 page-complete
//	              ├─ title-page: completes on entry
//	              └─ scorecard:  finalizes on entry
//
// Templates never touch the engine directly. They render a PageView and
// the Player dispatches the resulting events.
package player
