package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/avielmenter/CritiQL/internal/domain/model"
)

// AppendRequestLog stores one gate decision. Entries are never updated.
func (s *Store) AppendRequestLog(ctx context.Context, entry model.RequestLogEntry) error {
	defer observeWrite(time.Now())
	if entry.ID == "" {
		entry.ID = s.newID()
	}
	if entry.At.IsZero() {
		entry.At = s.now()
	}
	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO request_log (id, at, origin, fetched) VALUES (?, ?, ?, ?)",
		entry.ID, toMillis(entry.At), entry.Origin, boolInt(entry.Fetched),
	); err != nil {
		return fmt.Errorf("append request log: %w", err)
	}
	return nil
}

// LastFetchAt returns the time of the most recent entry that triggered a
// fetch.
func (s *Store) LastFetchAt(ctx context.Context) (time.Time, bool, error) {
	defer observeRead(time.Now())
	var at sql.NullInt64
	if err := s.db.QueryRowContext(ctx,
		"SELECT MAX(at) FROM request_log WHERE fetched = 1",
	).Scan(&at); err != nil {
		return time.Time{}, false, fmt.Errorf("last fetch: %w", err)
	}
	if !at.Valid {
		return time.Time{}, false, nil
	}
	return fromMillis(at.Int64), true, nil
}

// RecentRequests returns up to limit log entries, newest first.
func (s *Store) RecentRequests(ctx context.Context, limit int) ([]model.RequestLogEntry, error) {
	defer observeRead(time.Now())
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", ErrInvalidInput)
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, at, origin, fetched FROM request_log ORDER BY at DESC, rowid DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("recent requests: %w", err)
	}
	defer rows.Close()

	out := []model.RequestLogEntry{}
	for rows.Next() {
		var (
			e       model.RequestLogEntry
			at      int64
			fetched int
		)
		if err := rows.Scan(&e.ID, &at, &e.Origin, &fetched); err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		e.At = fromMillis(at)
		e.Fetched = fetched != 0
		out = append(out, e)
	}
	return out, rows.Err()
}
