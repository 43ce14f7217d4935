// Package preflight provides readiness checks for the filesystem paths and
// notification backends that Scriptorium depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll once at startup and logs every failed check.
//     Failures are reported, not fatal; the scheduler still starts.
//   - The CLI "scriptorium status" command uses RunAll plus the runtime
//     helpers (CheckQueueDatabase) to display service health.
//
// Notification checks are gated by configuration; unset backends are skipped.
package preflight
