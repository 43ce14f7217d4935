package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"scriptorium/internal/textutil"
)

// FindWork returns the work registered under id, or nil when absent. The id is
// NFC-normalized before lookup so it matches the stored key.
func (s *Store) FindWork(ctx context.Context, id string) (*Work, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		`SELECT `+workColumns+` FROM works WHERE id = ?`,
		textutil.NormalizeIdentifier(id),
	)
	work, err := scanWork(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageError("find work", err)
	}
	return work, nil
}

// SaveWork inserts a new work. It never overwrites: an existing identifier
// yields ErrDuplicateWork, so two imports of the same id cannot both succeed.
func (s *Store) SaveWork(ctx context.Context, work *Work) (*Work, error) {
	if work == nil {
		return nil, errors.New("save work: nil work")
	}
	id, err := textutil.ValidateIdentifier(work.ID)
	if err != nil {
		return nil, fmt.Errorf("save work: %w", err)
	}
	metadata, err := encodeMetadata(work.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}

	saved := &Work{
		ID:        id,
		Title:     strings.TrimSpace(work.Title),
		Metadata:  copyStrings(work.Metadata),
		CreatedAt: s.now().UTC(),
	}
	if !work.CreatedAt.IsZero() {
		saved.CreatedAt = work.CreatedAt.UTC()
	}

	_, err = s.execWithRetry(ctx,
		`INSERT INTO works (id, title, metadata_json, created_at) VALUES (?, ?, ?, ?)`,
		saved.ID, saved.Title, metadata, formatTimestamp(saved.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateWork, saved.ID)
		}
		return nil, storageError("save work", err)
	}
	return saved, nil
}

// ListWorks returns the most recently imported works first.
func (s *Store) ListWorks(ctx context.Context, limit int) ([]*Work, error) {
	return s.SelectWorks(ctx, WorkFilter{Limit: limit})
}

// SelectWorks returns works matching filter, most recent first.
func (s *Store) SelectWorks(ctx context.Context, filter WorkFilter) ([]*Work, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + workColumns + ` FROM works`
	args := append([]any(nil), filter.Args...)
	if where := strings.TrimSpace(filter.Where); where != "" {
		query += ` WHERE ` + where
	}
	query += ` ORDER BY created_at DESC, id ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageError("select works", err)
	}
	defer rows.Close()

	var works []*Work
	for rows.Next() {
		work, err := scanWork(rows)
		if err != nil {
			return nil, storageError("scan work", err)
		}
		works = append(works, work)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("select works", err)
	}
	return works, nil
}
