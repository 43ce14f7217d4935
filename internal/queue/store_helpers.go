package queue

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// timestampLayout is fixed width so stored timestamps sort lexically.
const timestampLayout = "2006-01-02T15:04:05.000000Z"

const workColumns = "id, title, metadata_json, created_at"

const actionColumns = "id, work_id, action, parameters, status, scheduled_at, result, error_kind, correlation_id, retry_of, created_at, updated_at, started_at, finished_at, last_heartbeat"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWork(scanner rowScanner) (*Work, error) {
	var (
		work       Work
		metadata   sql.NullString
		createdRaw string
	)
	if err := scanner.Scan(&work.ID, &work.Title, &metadata, &createdRaw); err != nil {
		return nil, err
	}
	if metadata.Valid && metadata.String != "" && metadata.String != "{}" {
		if err := json.Unmarshal([]byte(metadata.String), &work.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata for %s: %w", work.ID, err)
		}
	}
	if created, err := parseTimestamp(createdRaw); err == nil {
		work.CreatedAt = created
	}
	return &work, nil
}

func scanAction(scanner rowScanner) (*ActionRecord, error) {
	var (
		record        ActionRecord
		parameters    []byte
		status        string
		scheduledUnix int64
		result        sql.NullString
		errorKind     sql.NullString
		correlationID sql.NullString
		retryOf       sql.NullInt64
		createdRaw    string
		updatedRaw    string
		startedRaw    sql.NullString
		finishedRaw   sql.NullString
		heartbeatRaw  sql.NullString
	)
	if err := scanner.Scan(
		&record.ID,
		&record.WorkID,
		&record.Action,
		&parameters,
		&status,
		&scheduledUnix,
		&result,
		&errorKind,
		&correlationID,
		&retryOf,
		&createdRaw,
		&updatedRaw,
		&startedRaw,
		&finishedRaw,
		&heartbeatRaw,
	); err != nil {
		return nil, err
	}

	params, err := decodeParameters(parameters)
	if err != nil {
		return nil, fmt.Errorf("decode parameters for action %d: %w", record.ID, err)
	}
	record.Parameters = params
	record.Status = Status(status)
	record.ScheduledAt = time.Unix(scheduledUnix, 0).UTC()
	record.Result = result.String
	record.ErrorKind = errorKind.String
	record.CorrelationID = correlationID.String
	record.RetryOf = retryOf.Int64
	if created, err := parseTimestamp(createdRaw); err == nil {
		record.CreatedAt = created
	}
	if updated, err := parseTimestamp(updatedRaw); err == nil {
		record.UpdatedAt = updated
	}
	record.StartedAt = parseNullableTimestamp(startedRaw)
	record.FinishedAt = parseNullableTimestamp(finishedRaw)
	record.LastHeartbeat = parseNullableTimestamp(heartbeatRaw)
	return &record, nil
}

func encodeParameters(params map[string]string) ([]byte, error) {
	if len(params) == 0 {
		return nil, nil
	}
	return msgpack.Marshal(params)
}

func decodeParameters(data []byte) (map[string]string, error) {
	if len(data) == 0 {
		return map[string]string{}, nil
	}
	params := map[string]string{}
	if err := msgpack.Unmarshal(data, &params); err != nil {
		return nil, err
	}
	return params, nil
}

func encodeMetadata(metadata map[string]string) (string, error) {
	if len(metadata) == 0 {
		return "{}", nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(metadata); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// FormatTimestamp renders t the way timestamp columns store it, for callers
// that build WorkFilter clauses over created_at.
func FormatTimestamp(t time.Time) string {
	return formatTimestamp(t)
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(timestampLayout, value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}

func parseNullableTimestamp(value sql.NullString) *time.Time {
	if !value.Valid {
		return nil
	}
	t, err := parseTimestamp(value.String)
	if err != nil {
		return nil
	}
	return &t
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableInt64(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func copyStrings(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
