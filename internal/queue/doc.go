// Package queue persists works and their action records in SQLite and exposes
// the operations that drive an action record's lifecycle.
//
// The Store manages database connections, schema initialization, the atomic
// pending to running claim, heartbeat tracking, stale-record reclamation,
// administrative cancel and retry, and stats queries. Status transitions are
// monotonic (pending, running, then succeeded or failed; pending may also be
// cancelled) and are enforced twice: by guarded UPDATE statements and by a
// trigger in schema.sql.
//
// Schema changes bump the version in schema.go; users clear the database to
// adopt the new schema.
package queue
