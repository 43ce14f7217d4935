// Package ingest registers new works and guards against duplicate imports.
//
// Pipeline.Import consults a Checker before persisting a candidate. A work
// whose identifier is already registered is rejected with a DuplicateError
// carrying the stored record, which the CLI reports with a dedicated exit
// code. Storage failures are never mistaken for absence. When an
// OnImportAction is supplied, a pending action record is enqueued after the
// work is saved, scheduled at now plus the configured delay.
//
// Manifests (YAML lists of works) feed the same pipeline one entry at a time.
package ingest
