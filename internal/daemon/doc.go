// Package daemon coordinates the long-running Scriptorium process.
//
// It wires configuration, queue storage, the import pipeline, and the
// scheduler into a single lifecycle with flock-based locking to prevent
// multiple instances. The daemon exposes queue maintenance helpers, fails
// records left running by a previous crashed instance, and owns the
// notification service used by imports and action outcomes.
//
// Keep orchestration logic here: action execution lives in the workflow and
// actions packages while the daemon focuses on startup, shutdown, and high
// level coordination.
package daemon
