package logging

import "log/slog"

// FieldSessionID identifies one daemon run across all of its log lines.
const FieldSessionID = "session_id"

// withSessionID binds the run's session id ahead of any group so it stays a
// top-level field on every record.
func withSessionID(base slog.Handler, sessionID string) slog.Handler {
	if base == nil {
		return NoopHandler{}
	}
	return base.WithAttrs([]slog.Attr{slog.String(FieldSessionID, sessionID)})
}
