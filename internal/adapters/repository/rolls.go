package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/avielmenter/CritiQL/internal/domain/model"
	"github.com/avielmenter/CritiQL/internal/domain/query"
	"github.com/avielmenter/CritiQL/internal/domain/taxonomy"
)

const rollColumns = `id, episode_id, participant_id, time_hours, time_minutes, time_seconds,
	roll_type, raw_type, total_value, natural_value, crit, damage, kills, notes`

// InsertRolls stores every record in one transaction and returns how many
// were written. Records without an ID get a fresh one.
func (s *Store) InsertRolls(ctx context.Context, records []model.RollRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	defer observeWrite(time.Now())
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO roll_records (`+rollColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	for i := range records {
		r := &records[i]
		if r.EpisodeID == "" || r.ParticipantID == "" {
			return 0, fmt.Errorf("%w: roll %d lacks episode or participant", ErrInvalidInput, i)
		}
		if r.ID == "" {
			r.ID = s.newID()
		}
		var h, m, sec sql.NullInt64
		if r.Time != nil {
			h = sql.NullInt64{Int64: int64(r.Time.Hours), Valid: true}
			m = sql.NullInt64{Int64: int64(r.Time.Minutes), Valid: true}
			sec = sql.NullInt64{Int64: int64(r.Time.Seconds), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			r.ID, r.EpisodeID, r.ParticipantID, h, m, sec,
			int(r.RollType), r.RawType, nullInt(r.Total), nullInt(r.Natural),
			boolInt(r.Crit), nullString(r.Damage), r.Kills, nullString(r.Notes),
		); err != nil {
			return 0, fmt.Errorf("insert roll %d: %w", i, err)
		}
		inserted++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit insert: %w", err)
	}
	return inserted, nil
}

func scanRoll(row rowScanner) (model.RollRecord, error) {
	var (
		r              model.RollRecord
		h, m, sec      sql.NullInt64
		rollType, crit int
		total, natural sql.NullInt64
		damage, notes  sql.NullString
	)
	if err := row.Scan(&r.ID, &r.EpisodeID, &r.ParticipantID, &h, &m, &sec,
		&rollType, &r.RawType, &total, &natural, &crit, &damage, &r.Kills, &notes); err != nil {
		return model.RollRecord{}, err
	}
	if h.Valid && m.Valid && sec.Valid {
		r.Time = &model.RollTime{Hours: int(h.Int64), Minutes: int(m.Int64), Seconds: int(sec.Int64)}
	}
	r.RollType = taxonomy.Code(rollType)
	r.Total = intPtr(total)
	r.Natural = intPtr(natural)
	r.Crit = crit != 0
	r.Damage = stringPtr(damage)
	r.Notes = stringPtr(notes)
	return r, nil
}

// FindRolls lists roll records matching p in insertion order.
func (s *Store) FindRolls(ctx context.Context, p query.Predicate) ([]model.RollRecord, error) {
	defer observeRead(time.Now())
	stmt, args, err := rollCollection.selectSQL(rollColumns, p)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("find rolls: %w", err)
	}
	defer rows.Close()

	out := []model.RollRecord{}
	for rows.Next() {
		r, err := scanRoll(rows)
		if err != nil {
			return nil, fmt.Errorf("scan roll: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountRolls counts records matching p. The limit is ignored.
func (s *Store) CountRolls(ctx context.Context, p query.Predicate) (int64, error) {
	defer observeRead(time.Now())
	where, args, err := rollCollection.where(p)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM roll_records"+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count rolls: %w", err)
	}
	return n, nil
}

// AggregateRolls summarizes the non-null values of field over records
// matching p. The limit is ignored.
func (s *Store) AggregateRolls(ctx context.Context, field query.Field, p query.Predicate) (query.Aggregate, error) {
	defer observeRead(time.Now())
	expr, err := aggregateExpr(field)
	if err != nil {
		return query.Aggregate{}, err
	}
	where, args, err := rollCollection.where(p)
	if err != nil {
		return query.Aggregate{}, err
	}

	var (
		agg         query.Aggregate
		sum, lo, hi sql.NullInt64
		avg         sql.NullFloat64
	)
	stmt := "SELECT COUNT(v), SUM(v), AVG(v), MIN(v), MAX(v) FROM (SELECT " + expr + " AS v FROM roll_records" + where + ")"
	if err := s.db.QueryRowContext(ctx, stmt, args...).Scan(&agg.Count, &sum, &avg, &lo, &hi); err != nil {
		return query.Aggregate{}, fmt.Errorf("aggregate rolls: %w", err)
	}
	agg.Sum = sum.Int64
	agg.Avg = avg.Float64
	agg.Min = lo.Int64
	agg.Max = hi.Int64
	return agg, nil
}
