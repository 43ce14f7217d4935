// Package actions holds the registry of named executors the scheduler
// dispatches to.
//
// An Executor performs one named action against a work and returns free-form
// result text. The set of executors is open: anything registered under a
// unique name becomes dispatchable without touching the scheduler or the
// queue model. Executors that accept parameters may implement
// ParameterDescriber so administrative callers can validate query-syntax
// parameter strings before a record is enqueued.
package actions
