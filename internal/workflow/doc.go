// Package workflow dispatches due action records to their executors.
//
// The Scheduler ticks at a fixed rate. Each tick runs one dispatch cycle:
// stale running records are reclaimed via heartbeats, due pending records are
// selected in (scheduled_at, id) order, each is claimed with an atomic
// pending -> running compare-and-set, and claimed records run on a bounded
// worker pool. Only the dispatcher that wins the claim executes a record, so
// several schedulers may share one queue database.
//
// Dispatch-time failures (unknown action, executor error, deadline expiry)
// are recorded on the record as failed with an error kind; they never stop
// the loop. Storage errors abort the current cycle and are retried on the
// next tick. There is no automatic retry of failed records.
package workflow
