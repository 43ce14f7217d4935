// Package notifications delivers scheduler and import events via pluggable
// notifiers.
//
// Two transports are supported: ntfy (HTTP POST to the configured topic URL)
// and NATS (JSON events published under a configured subject prefix). Either,
// both, or neither may be enabled; with nothing configured NewService returns
// a no-op implementation so callers never need nil checks.
//
// Workflow code depends only on the Service interface.
package notifications
