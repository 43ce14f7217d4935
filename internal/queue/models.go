package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of an action record.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Result texts recorded by the store and scheduler.
const (
	CancelledResult        = "cancelled by operator"
	HeartbeatExpiredResult = "heartbeat expired"
	DaemonStopReason       = "daemon stopped"
	ResetStuckResult       = "reset while not running"
)

var allStatuses = []Status{
	StatusPending,
	StatusRunning,
	StatusSucceeded,
	StatusFailed,
	StatusCancelled,
}

var transitions = map[Status][]Status{
	StatusPending: {StatusRunning, StatusCancelled},
	StatusRunning: {StatusSucceeded, StatusFailed},
}

// AllStatuses returns every status in lifecycle order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus resolves a user-supplied status name.
func ParseStatus(value string) (Status, bool) {
	candidate := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == candidate {
			return status, true
		}
	}
	return "", false
}

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCancelled
}

// CanTransition reports whether from -> to is a legal monotonic step.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Work is one digitized object tracked by a stable identifier. Metadata is
// opaque descriptive data.
type Work struct {
	ID        string            `json:"id"`
	Title     string            `json:"title,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// ActionRecord is one scheduled or executed action against a work. The work
// is referenced by identifier and resolved through the store when needed.
type ActionRecord struct {
	ID            int64             `json:"id"`
	WorkID        string            `json:"work_id"`
	Action        string            `json:"action"`
	Parameters    map[string]string `json:"parameters,omitempty"`
	Status        Status            `json:"status"`
	ScheduledAt   time.Time         `json:"scheduled_at"`
	Result        string            `json:"result,omitempty"`
	ErrorKind     string            `json:"error_kind,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	RetryOf       int64             `json:"retry_of,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
	StartedAt     *time.Time        `json:"started_at,omitempty"`
	FinishedAt    *time.Time        `json:"finished_at,omitempty"`
	LastHeartbeat *time.Time        `json:"last_heartbeat,omitempty"`
}

// Due reports whether the record may be dispatched at now.
func (r *ActionRecord) Due(now time.Time) bool {
	return r != nil && r.Status == StatusPending && !r.ScheduledAt.After(now)
}

// WorkFilter is a compiled WHERE clause over the works table.
type WorkFilter struct {
	Where string
	Args  []any
	Limit int
}

// ActionFilter narrows ListActions.
type ActionFilter struct {
	WorkID   string
	Action   string
	Statuses []Status
	Limit    int
}

// HealthSummary aggregates action record counts by lifecycle bucket.
type HealthSummary struct {
	Works     int `json:"works"`
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
}

// DatabaseHealth is diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath           string   `json:"db_path"`
	DatabaseExists   bool     `json:"database_exists"`
	DatabaseReadable bool     `json:"database_readable"`
	SchemaVersion    int      `json:"schema_version"`
	TablesPresent    []string `json:"tables_present,omitempty"`
	MissingTables    []string `json:"missing_tables,omitempty"`
	TotalWorks       int      `json:"total_works"`
	TotalActions     int      `json:"total_actions"`
	IntegrityCheck   bool     `json:"integrity_check"`
	Error            string   `json:"error,omitempty"`
}
