package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avielmenter/CritiQL/internal/domain/model"
	"github.com/avielmenter/CritiQL/internal/domain/query"
)

const episodeColumns = "id, title, ordinal, campaign, rolls_recorded"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEpisode(row rowScanner) (model.Episode, error) {
	var (
		ep       model.Episode
		ordinal  sql.NullInt64
		recorded int
	)
	if err := row.Scan(&ep.ID, &ep.Title, &ordinal, &ep.Campaign, &recorded); err != nil {
		return model.Episode{}, err
	}
	ep.Ordinal = intPtr(ordinal)
	ep.RollsRecorded = recorded != 0
	return ep, nil
}

// UpsertEpisode inserts ep or, when its title exists, refreshes ordinal and
// campaign. The recorded flag of an existing episode is left alone. The
// stored episode is returned.
func (s *Store) UpsertEpisode(ctx context.Context, ep model.Episode) (model.Episode, error) {
	defer observeWrite(time.Now())
	title := strings.TrimSpace(ep.Title)
	if title == "" {
		return model.Episode{}, fmt.Errorf("%w: episode title is required", ErrInvalidInput)
	}
	id := ep.ID
	if id == "" {
		id = s.newID()
	}
	now := toMillis(s.now())

	row := s.db.QueryRowContext(ctx,
		`INSERT INTO episodes (id, title, ordinal, campaign, rolls_recorded, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 0, ?, ?)
		 ON CONFLICT(title) DO UPDATE SET
		   ordinal = excluded.ordinal,
		   campaign = excluded.campaign,
		   updated_at = excluded.updated_at
		 RETURNING `+episodeColumns,
		id, title, nullInt(ep.Ordinal), ep.Campaign, now, now,
	)
	stored, err := scanEpisode(row)
	if err != nil {
		return model.Episode{}, fmt.Errorf("upsert episode %q: %w", title, err)
	}
	return stored, nil
}

// GetEpisode returns one episode by ID.
func (s *Store) GetEpisode(ctx context.Context, id string) (model.Episode, error) {
	defer observeRead(time.Now())
	row := s.db.QueryRowContext(ctx, "SELECT "+episodeColumns+" FROM episodes WHERE id = ?", id)
	ep, err := scanEpisode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Episode{}, fmt.Errorf("%w: episode %s", ErrNotFound, id)
	}
	if err != nil {
		return model.Episode{}, fmt.Errorf("get episode: %w", err)
	}
	return ep, nil
}

// LatestEpisode returns the campaign's episode with the highest ordinal.
// Episodes without an ordinal are never latest.
func (s *Store) LatestEpisode(ctx context.Context, campaign int) (model.Episode, bool, error) {
	defer observeRead(time.Now())
	row := s.db.QueryRowContext(ctx,
		"SELECT "+episodeColumns+` FROM episodes
		 WHERE campaign = ? AND ordinal IS NOT NULL
		 ORDER BY ordinal DESC, title DESC LIMIT 1`,
		campaign,
	)
	ep, err := scanEpisode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Episode{}, false, nil
	}
	if err != nil {
		return model.Episode{}, false, fmt.Errorf("latest episode: %w", err)
	}
	return ep, true, nil
}

// ClearEpisodeRolls deletes every record of the episode and clears its
// recorded flag in one transaction. It returns the number of deleted records.
func (s *Store) ClearEpisodeRolls(ctx context.Context, episodeID string) (int64, error) {
	defer observeWrite(time.Now())
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin clear: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, "DELETE FROM roll_records WHERE episode_id = ?", episodeID)
	if err != nil {
		return 0, fmt.Errorf("delete rolls: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete rolls: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE episodes SET rolls_recorded = 0, updated_at = ? WHERE id = ?",
		toMillis(s.now()), episodeID,
	); err != nil {
		return 0, fmt.Errorf("clear recorded flag: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit clear: %w", err)
	}
	return deleted, nil
}

// MarkRecorded sets the recorded flag on every listed episode.
func (s *Store) MarkRecorded(ctx context.Context, episodeIDs []string) error {
	if len(episodeIDs) == 0 {
		return nil
	}
	defer observeWrite(time.Now())
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin mark: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, "UPDATE episodes SET rolls_recorded = 1, updated_at = ? WHERE id = ?")
	if err != nil {
		return fmt.Errorf("prepare mark: %w", err)
	}
	defer stmt.Close()

	now := toMillis(s.now())
	for _, id := range episodeIDs {
		if _, err := stmt.ExecContext(ctx, now, id); err != nil {
			return fmt.Errorf("mark episode %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit mark: %w", err)
	}
	return nil
}

// FindEpisodes lists episodes matching p.
func (s *Store) FindEpisodes(ctx context.Context, p query.Predicate) ([]model.Episode, error) {
	defer observeRead(time.Now())
	stmt, args, err := episodeCollection.selectSQL(episodeColumns, p)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("find episodes: %w", err)
	}
	defer rows.Close()

	out := []model.Episode{}
	for rows.Next() {
		ep, err := scanEpisode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		out = append(out, ep)
	}
	return out, rows.Err()
}
