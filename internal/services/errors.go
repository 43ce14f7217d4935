package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"scriptorium/internal/timespan"
)

// Kind is one entry of the closed error taxonomy.
type Kind string

const (
	KindInvalidTimespan    Kind = "invalid_timespan"
	KindWorkExists         Kind = "work_exists"
	KindUnknownAction      Kind = "unknown_action"
	KindDuplicateAction    Kind = "duplicate_action"
	KindStorageUnavailable Kind = "storage_unavailable"
	KindExecutionFailed    Kind = "execution_failed"
	KindTimeout            Kind = "timeout"
	KindValidation         Kind = "validation"
	KindConfiguration      Kind = "configuration"
	KindNotFound           Kind = "not_found"
	KindUnknown            Kind = "unknown"
)

// ErrorClassifier is implemented by errors that know their own kind.
type ErrorClassifier interface {
	ErrorKind() string
}

type marker struct {
	kind Kind
	text string
}

func (m *marker) Error() string     { return m.text }
func (m *marker) ErrorKind() string { return string(m.kind) }

var (
	ErrWorkExists         error = &marker{KindWorkExists, "work already exists"}
	ErrUnknownAction      error = &marker{KindUnknownAction, "unknown action"}
	ErrDuplicateAction    error = &marker{KindDuplicateAction, "duplicate action name"}
	ErrStorageUnavailable error = &marker{KindStorageUnavailable, "storage unavailable"}
	ErrExecutionFailed    error = &marker{KindExecutionFailed, "execution failed"}
	ErrTimeout            error = &marker{KindTimeout, "timeout"}
	ErrValidation         error = &marker{KindValidation, "validation error"}
	ErrConfiguration      error = &marker{KindConfiguration, "configuration error"}
	ErrNotFound           error = &marker{KindNotFound, "not found"}
)

// Wrap builds an error message that includes component context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrExecutionFailed
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// KindOf classifies err into the taxonomy. It returns an empty Kind for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if errors.Is(err, timespan.ErrInvalidFormat) {
		return KindInvalidTimespan
	}
	var classifier ErrorClassifier
	if errors.As(err, &classifier) {
		if kind := strings.TrimSpace(classifier.ErrorKind()); kind != "" {
			return Kind(kind)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindUnknown
}

// ExitCode maps an error to the process exit status used by the CLI.
//
//	0 success
//	1 generic failure
//	2 usage and parse errors
//	3 duplicate import
//	4 storage unavailable
func ExitCode(err error) int {
	switch KindOf(err) {
	case "":
		return 0
	case KindInvalidTimespan, KindValidation:
		return 2
	case KindWorkExists:
		return 3
	case KindStorageUnavailable:
		return 4
	default:
		return 1
	}
}

var severity = map[Kind]int{
	KindInvalidTimespan:    1,
	KindValidation:         1,
	KindWorkExists:         2,
	KindStorageUnavailable: 4,
}

// Severity ranks err for reporting when several errors combine: storage
// failures above generic failures, then duplicates, then usage errors. Nil
// ranks 0.
func Severity(err error) int {
	if err == nil {
		return 0
	}
	if r, ok := severity[KindOf(err)]; ok {
		return r
	}
	return 3
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
