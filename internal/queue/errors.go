package queue

import (
	"errors"
	"fmt"
	"strings"

	"scriptorium/internal/services"
)

var (
	// ErrDuplicateWork reports an insert for an identifier that is already registered.
	ErrDuplicateWork = errors.New("work identifier already registered")
	// ErrWorkNotFound reports a reference to an unregistered work.
	ErrWorkNotFound = fmt.Errorf("%w: work", services.ErrNotFound)
	// ErrInvalidTransition reports a status change that would break monotonicity
	// or whose expected status no longer holds.
	ErrInvalidTransition = errors.New("invalid status transition")
)

const (
	sqliteConstraintPrimaryKey = 1555
	sqliteConstraintUnique     = 2067
	sqliteConstraintForeignKey = 787
)

func sqliteCode(err error) int {
	var coder interface{ Code() int }
	if errors.As(err, &coder) {
		return coder.Code()
	}
	return 0
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	switch sqliteCode(err) {
	case sqliteConstraintPrimaryKey, sqliteConstraintUnique:
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	return sqliteCode(err) == sqliteConstraintForeignKey ||
		strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

// storageError tags a database failure as storage_unavailable.
func storageError(operation string, err error) error {
	return services.Wrap(services.ErrStorageUnavailable, "queue", operation, "", err)
}
