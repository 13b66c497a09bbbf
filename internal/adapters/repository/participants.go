package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/avielmenter/CritiQL/internal/domain/canon"
	"github.com/avielmenter/CritiQL/internal/domain/model"
	"github.com/avielmenter/CritiQL/internal/domain/query"
)

// UpsertParticipant returns the participant with the given canonical name,
// creating it when missing.
func (s *Store) UpsertParticipant(ctx context.Context, name string) (model.Participant, error) {
	defer observeWrite(time.Now())
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Participant{}, fmt.Errorf("%w: participant name is required", ErrInvalidInput)
	}

	var p model.Participant
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO participants (id, name, name_key, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET name = excluded.name
		 RETURNING id, name`,
		s.newID(), name, canon.NameKey(name), toMillis(s.now()),
	).Scan(&p.ID, &p.Name)
	if err != nil {
		return model.Participant{}, fmt.Errorf("upsert participant %q: %w", name, err)
	}
	return p, nil
}

// FindParticipants lists participants matching p.
func (s *Store) FindParticipants(ctx context.Context, p query.Predicate) ([]model.Participant, error) {
	defer observeRead(time.Now())
	stmt, args, err := participantCollection.selectSQL("id, name", p)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("find participants: %w", err)
	}
	defer rows.Close()

	out := []model.Participant{}
	for rows.Next() {
		var part model.Participant
		if err := rows.Scan(&part.ID, &part.Name); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		out = append(out, part)
	}
	return out, rows.Err()
}
