// Package harness runs scripted learner sessions against the player shell.
//
// A play script drives one App through navigation and page events on a
// frozen clock with an in-memory session, then checks the rendered frame,
// the learner's standing and the session fields it left behind.
//
// # Script Format
//
// Scripts are YAML files with the following structure:
//
//	name: knots_pass
//	description: "Learner answers everything correctly"
//	course: ../course.json
//	start: /course
//	learner: ada
//	session:
//	  cmi.learner_name: "Lovelace, Ada"
//	steps:
//	  - do: next
//	  - do: advance
//	    duration: 4s
//	  - do: answer
//	    answer: { selected: [bowline] }
//	    expect: { ok: true, correct: true }
//	  - do: navigate
//	    path: /glossary
//	    expect: { route: glossary, frame: "# Glossary" }
//	assertions:
//	  - type: frame_contains
//	    text: "Score: 100%"
//	  - type: field_equals
//	    field: cmi.success_status
//	    value: passed
//	  - type: summary
//	    expect: { score: 100, passing: true }
//
// # Step Kinds
//
//   - navigate (path), click (href), back, forward, login (text)
//   - answer (answer), next, prev, goto (index)
//   - comment (text, location), notes (text), reset, finish
//   - advance (duration): moves the frozen clock forward
//
// # Assertion Types
//
//   - frame_contains: the final frame contains text
//   - field_equals: a session field holds value
//   - summary: subset match over the final player summary
//   - trace_count: kind was applied exactly count times
//   - notification: a pending notification contains text
//
// # Deterministic Runs
//
// Every run starts its clock at testutil.Epoch and numbers notifications
// from a fixed sequence, so the suspend data a script leaves behind is
// byte-for-byte reproducible and can be compared with a golden file.
package harness
