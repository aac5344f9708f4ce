// Package session defines the session-tracking bridge used by the course
// engine to persist learner progress.
//
// A Bridge speaks a field-based protocol modelled on SCORM 2004 runtime data:
// every value is a string addressed by a dotted name ("cmi.location",
// "cmi.interactions.0.id"). Absent values read back as the Sentinel string,
// never as a missing key.
//
// Backends:
//   - Memory: process-local, used for standalone runs and tests
//   - sqlitebridge: durable local store (one row per field per registration)
//   - redisbridge: remote store (one hash per registration)
//
// All backends share the Fields table, which tracks the "_count" field of
// indexed collections (interactions, comments) as entries are written.
package session
