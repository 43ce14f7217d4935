package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"scriptorium/internal/textutil"
)

// SaveAction persists record. A record without an ID is inserted as pending.
// A record with an ID must carry a terminal outcome (succeeded or failed) and
// is only written while the stored record is still running, which keeps
// status transitions monotonic.
func (s *Store) SaveAction(ctx context.Context, record *ActionRecord) (*ActionRecord, error) {
	if record == nil {
		return nil, errors.New("save action: nil record")
	}
	if record.ID == 0 {
		return s.insertAction(ctx, record)
	}
	return s.finishAction(ctx, record)
}

func (s *Store) insertAction(ctx context.Context, record *ActionRecord) (*ActionRecord, error) {
	if record.Status != "" && record.Status != StatusPending {
		return nil, fmt.Errorf("%w: new records start pending, got %s", ErrInvalidTransition, record.Status)
	}
	action := strings.TrimSpace(record.Action)
	if action == "" {
		return nil, errors.New("save action: action name is required")
	}
	params, err := encodeParameters(record.Parameters)
	if err != nil {
		return nil, fmt.Errorf("encode parameters: %w", err)
	}

	now := s.now().UTC()
	saved := &ActionRecord{
		WorkID:      textutil.NormalizeIdentifier(record.WorkID),
		Action:      action,
		Parameters:  copyStrings(record.Parameters),
		Status:      StatusPending,
		ScheduledAt: record.ScheduledAt.UTC().Truncate(time.Second),
		RetryOf:     record.RetryOf,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if saved.ScheduledAt.IsZero() {
		saved.ScheduledAt = now.Truncate(time.Second)
	}
	if saved.Parameters == nil {
		saved.Parameters = map[string]string{}
	}

	res, err := s.execWithRetry(ctx,
		`INSERT INTO action_records (work_id, action, parameters, status, scheduled_at, retry_of, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		saved.WorkID,
		saved.Action,
		params,
		saved.Status,
		saved.ScheduledAt.Unix(),
		nullableInt64(saved.RetryOf),
		formatTimestamp(now),
		formatTimestamp(now),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrWorkNotFound, saved.WorkID)
		}
		return nil, storageError("insert action", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, storageError("insert action", err)
	}
	saved.ID = id
	return saved, nil
}

func (s *Store) finishAction(ctx context.Context, record *ActionRecord) (*ActionRecord, error) {
	if record.Status != StatusSucceeded && record.Status != StatusFailed {
		return nil, fmt.Errorf("%w: cannot save action %d as %s", ErrInvalidTransition, record.ID, record.Status)
	}
	now := s.now().UTC()
	res, err := s.execWithRetry(ctx,
		`UPDATE action_records
         SET status = ?, result = ?, error_kind = ?, finished_at = ?, updated_at = ?, last_heartbeat = NULL
         WHERE id = ? AND status = ?`,
		record.Status,
		record.Result,
		nullableString(record.ErrorKind),
		formatTimestamp(now),
		formatTimestamp(now),
		record.ID,
		StatusRunning,
	)
	if err != nil {
		return nil, storageError("finish action", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, storageError("finish action", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("%w: action %d is no longer running", ErrInvalidTransition, record.ID)
	}
	record.FinishedAt = &now
	record.UpdatedAt = now
	record.LastHeartbeat = nil
	return record, nil
}

// FindDueActions returns pending records whose scheduled time is at or before
// now, ordered by scheduled time then creation order. limit <= 0 means no limit.
func (s *Store) FindDueActions(ctx context.Context, now time.Time, limit int) ([]*ActionRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	return s.queryActions(ctx, "find due actions",
		`SELECT `+actionColumns+` FROM action_records
         WHERE status = ? AND scheduled_at <= ?
         ORDER BY scheduled_at ASC, id ASC
         LIMIT ?`,
		StatusPending, now.UTC().Unix(), limit,
	)
}

// CompareAndSetStatus atomically moves record from expected to next. It
// returns false without error when the stored status is no longer expected,
// which is how a losing dispatcher learns another one claimed the record.
// On success the in-memory record is updated to match.
func (s *Store) CompareAndSetStatus(ctx context.Context, record *ActionRecord, expected, next Status) (bool, error) {
	if record == nil || record.ID == 0 {
		return false, errors.New("compare and set: record has no id")
	}
	if !CanTransition(expected, next) {
		return false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, expected, next)
	}

	now := s.now().UTC()
	stamp := formatTimestamp(now)
	var (
		query string
		args  []any
	)
	switch next {
	case StatusRunning:
		query = `UPDATE action_records
                 SET status = ?, started_at = ?, last_heartbeat = ?, correlation_id = ?, updated_at = ?
                 WHERE id = ? AND status = ?`
		args = []any{next, stamp, stamp, nullableString(record.CorrelationID), stamp, record.ID, expected}
	default:
		query = `UPDATE action_records
                 SET status = ?, result = ?, error_kind = ?, finished_at = ?, updated_at = ?, last_heartbeat = NULL
                 WHERE id = ? AND status = ?`
		args = []any{next, nullableString(record.Result), nullableString(record.ErrorKind), stamp, stamp, record.ID, expected}
	}

	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return false, storageError("compare and set status", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, storageError("compare and set status", err)
	}
	if affected != 1 {
		return false, nil
	}

	record.Status = next
	record.UpdatedAt = now
	if next == StatusRunning {
		record.StartedAt = &now
		record.LastHeartbeat = &now
	} else {
		record.FinishedAt = &now
		record.LastHeartbeat = nil
	}
	return true, nil
}

// EnqueueAction creates a pending record for workID.
func (s *Store) EnqueueAction(ctx context.Context, workID, action string, params map[string]string, scheduledAt time.Time) (*ActionRecord, error) {
	return s.SaveAction(ctx, &ActionRecord{
		WorkID:      workID,
		Action:      action,
		Parameters:  params,
		ScheduledAt: scheduledAt,
	})
}

// GetAction returns a record by id, or nil when absent.
func (s *Store) GetAction(ctx context.Context, id int64) (*ActionRecord, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+actionColumns+` FROM action_records WHERE id = ?`, id)
	record, err := scanAction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageError("get action", err)
	}
	return record, nil
}

// ListActions returns records matching filter, newest first.
func (s *Store) ListActions(ctx context.Context, filter ActionFilter) ([]*ActionRecord, error) {
	var (
		clauses []string
		args    []any
	)
	if id := textutil.NormalizeIdentifier(filter.WorkID); id != "" {
		clauses = append(clauses, "work_id = ?")
		args = append(args, id)
	}
	if action := strings.TrimSpace(filter.Action); action != "" {
		clauses = append(clauses, "action = ?")
		args = append(args, action)
	}
	if len(filter.Statuses) > 0 {
		clauses = append(clauses, "status IN ("+makePlaceholders(len(filter.Statuses))+")")
		for _, status := range filter.Statuses {
			args = append(args, status)
		}
	}
	query := `SELECT ` + actionColumns + ` FROM action_records`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	return s.queryActions(ctx, "list actions", query, args...)
}

func (s *Store) queryActions(ctx context.Context, operation, query string, args ...any) ([]*ActionRecord, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageError(operation, err)
	}
	defer rows.Close()

	var records []*ActionRecord
	for rows.Next() {
		record, err := scanAction(rows)
		if err != nil {
			return nil, storageError(operation, err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError(operation, err)
	}
	return records, nil
}
