// Package services defines shared utilities consumed by the import pipeline,
// the scheduler, and the CLI.
//
// Key responsibilities:
//   - Context helpers that stamp work identifiers, action record IDs, action
//     names, and correlation identifiers for logging and tracing.
//   - The closed error-kind taxonomy (invalid_timespan, work_exists,
//     unknown_action, ...) plus the Wrap helper that tags failures with a
//     marker so callers can classify them with KindOf and map them to CLI
//     exit codes with ExitCode.
//
// Use these helpers when wiring new components so operational behaviour (error
// handling, observability) stays uniform across the system.
package services
