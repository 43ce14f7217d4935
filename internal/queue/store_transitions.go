package queue

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"scriptorium/internal/services"
)

// CancelPending moves the given pending records to cancelled. Records that are
// already running or terminal are left untouched; the count of cancelled
// records is returned.
func (s *Store) CancelPending(ctx context.Context, ids ...int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	stamp := formatTimestamp(s.now())
	args := []any{StatusCancelled, CancelledResult, stamp, stamp}
	args = append(args, int64Args(ids)...)
	args = append(args, StatusPending)
	res, err := s.execWithRetry(ctx,
		`UPDATE action_records
         SET status = ?, result = ?, finished_at = ?, updated_at = ?
         WHERE id IN (`+makePlaceholders(len(ids))+`) AND status = ?`,
		args...,
	)
	if err != nil {
		return 0, storageError("cancel pending", err)
	}
	return res.RowsAffected()
}

// RetryFailed enqueues a fresh pending copy of each failed record, scheduled
// at now. The failed originals stay failed. With no ids, every failed record
// without an existing retry is copied. A record is never retried twice.
func (s *Store) RetryFailed(ctx context.Context, now time.Time, ids ...int64) ([]*ActionRecord, error) {
	query := `SELECT ` + actionColumns + ` FROM action_records a
              WHERE a.status = ?
                AND NOT EXISTS (SELECT 1 FROM action_records r WHERE r.retry_of = a.id)`
	args := []any{StatusFailed}
	if len(ids) > 0 {
		query += ` AND a.id IN (` + makePlaceholders(len(ids)) + `)`
		args = append(args, int64Args(ids)...)
	}
	query += ` ORDER BY a.id ASC`

	failed, err := s.queryActions(ctx, "retry failed", query, args...)
	if err != nil {
		return nil, err
	}

	retried := make([]*ActionRecord, 0, len(failed))
	for _, original := range failed {
		record, err := s.SaveAction(ctx, &ActionRecord{
			WorkID:      original.WorkID,
			Action:      original.Action,
			Parameters:  original.Parameters,
			ScheduledAt: now,
			RetryOf:     original.ID,
		})
		if err != nil {
			return retried, fmt.Errorf("retry action %d: %w", original.ID, err)
		}
		retried = append(retried, record)
	}
	return retried, nil
}

// UpdateHeartbeat refreshes the heartbeat of a running record.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	stamp := formatTimestamp(s.now())
	if _, err := s.execWithRetry(ctx,
		`UPDATE action_records SET last_heartbeat = ?, updated_at = ? WHERE id = ? AND status = ?`,
		stamp, stamp, id, StatusRunning,
	); err != nil {
		return storageError("update heartbeat", err)
	}
	return nil
}

// ReclaimStale fails running records whose heartbeat is older than cutoff and
// returns their ids.
func (s *Store) ReclaimStale(ctx context.Context, cutoff time.Time) ([]int64, error) {
	return s.failRunning(ctx, "reclaim stale",
		`status = ? AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
		[]any{StatusRunning, formatTimestamp(cutoff)},
		HeartbeatExpiredResult, services.KindTimeout,
	)
}

// ResetStuck fails every running record. It is meant for use while no daemon
// is running, for example at daemon startup after a crash.
func (s *Store) ResetStuck(ctx context.Context, reason string) ([]int64, error) {
	if reason == "" {
		reason = ResetStuckResult
	}
	return s.failRunning(ctx, "reset stuck", `status = ?`, []any{StatusRunning}, reason, services.KindExecutionFailed)
}

func (s *Store) failRunning(ctx context.Context, operation, where string, whereArgs []any, result string, kind services.Kind) ([]int64, error) {
	stamp := formatTimestamp(s.now())
	var ids []int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		ids = ids[:0]
		rows, err := tx.QueryContext(ctx, `SELECT id FROM action_records WHERE `+where+` ORDER BY id`, whereArgs...)
		if err != nil {
			return err
		}
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			ids = append(ids, id)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()
		if len(ids) == 0 {
			return nil
		}
		args := []any{StatusFailed, result, string(kind), stamp, stamp}
		args = append(args, int64Args(ids)...)
		args = append(args, StatusRunning)
		_, err = tx.ExecContext(ctx,
			`UPDATE action_records
             SET status = ?, result = ?, error_kind = ?, finished_at = ?, updated_at = ?, last_heartbeat = NULL
             WHERE id IN (`+makePlaceholders(len(ids))+`) AND status = ?`,
			args...,
		)
		return err
	})
	if err != nil {
		return nil, storageError(operation, err)
	}
	return ids, nil
}
