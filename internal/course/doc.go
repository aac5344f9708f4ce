// Package course implements the course progression engine.
//
// A Course is an immutable document of typed pages. The Engine keeps the
// learner's position, per-page progress and interaction log in the
// reactive store and mirrors every change to a session.Bridge as a
// suspend blob plus status and score fields.
//
// Gating rules:
//   - The last page never advances.
//   - title-page and scorecard pages never block.
//   - choice, match and wordpuzzle pages block until complete, unless the
//     course sets requireAnswerToAdvance to false.
//   - Going back is allowed whenever the position is above zero,
//     whatever forceSequential says.
//
// Completion is a latch: once a page is complete its progress entry is
// only cleared by Reset.
package course
