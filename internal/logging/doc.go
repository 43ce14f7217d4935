// Package logging assembles structured slog loggers and formatting helpers used
// across Scriptorium.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so scheduler and import code can
// tag log lines with work identifiers, action record IDs, and correlation IDs.
// CronLogger bridges robfig/cron diagnostics into the same handlers. A no-op
// logger is provided for tests and wiring code that cannot fail.
package logging
