package query

import (
	"fmt"
	"strings"

	"github.com/avielmenter/CritiQL/internal/domain/canon"
	"github.com/avielmenter/CritiQL/internal/domain/taxonomy"
	"github.com/google/uuid"
)

// EpisodeFilter selects episodes. Nil fields are ignored.
type EpisodeFilter struct {
	ID             *string
	Campaign       *int
	Ordinal        *int
	Title          *string
	OrdinalAtLeast *int
	OrdinalAtMost  *int
	Limit          int
}

// ParticipantFilter selects participants. Name matches the canonical name,
// Key the folded ASCII key.
type ParticipantFilter struct {
	ID    *string
	Name  *string
	Key   *string
	Limit int
}

// RollFilter selects roll records.
type RollFilter struct {
	ID             *string
	RollType       *string
	SkillGroup     *string
	NaturalValue   *int
	NaturalAtLeast *int
	NaturalAtMost  *int
	TotalValue     *int
	TotalAtLeast   *int
	TotalAtMost    *int
	Crit           *bool
	Limit          int
}

type scopeKind int

const (
	scopeNone scopeKind = iota
	scopeEpisode
	scopeParticipant
)

// Scope restricts roll queries to one parent entity. The zero value is
// unscoped.
type Scope struct {
	kind scopeKind
	id   string
}

// EpisodeScope restricts rolls to one episode.
func EpisodeScope(episodeID string) Scope {
	return Scope{kind: scopeEpisode, id: episodeID}
}

// ParticipantScope restricts rolls to one participant.
func ParticipantScope(participantID string) Scope {
	return Scope{kind: scopeParticipant, id: participantID}
}

// IsZero reports whether the scope is unrestricted.
func (s Scope) IsZero() bool { return s.kind == scopeNone }

func (s Scope) apply(p *Predicate) error {
	switch s.kind {
	case scopeEpisode:
		if err := checkID(s.id); err != nil {
			return err
		}
		p.add(FieldEpisodeID, OpEq, s.id)
	case scopeParticipant:
		if err := checkID(s.id); err != nil {
			return err
		}
		p.add(FieldParticipantID, OpEq, s.id)
	}
	return nil
}

func checkID(id string) error {
	if _, err := uuid.Parse(strings.TrimSpace(id)); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

func checkLimit(limit, maxLimit int) error {
	if limit < 0 || (maxLimit > 0 && limit > maxLimit) {
		return fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	return nil
}

// numeric adds an exact match when given, otherwise whichever range bounds
// are present.
func numeric(p *Predicate, f Field, exact, atLeast, atMost *int) {
	if exact != nil {
		p.add(f, OpEq, *exact)
		return
	}
	if atLeast != nil {
		p.add(f, OpGte, *atLeast)
	}
	if atMost != nil {
		p.add(f, OpLte, *atMost)
	}
}

// CompileEpisodes builds the predicate for an episode filter.
func CompileEpisodes(f EpisodeFilter, maxLimit int) (Predicate, error) {
	if err := checkLimit(f.Limit, maxLimit); err != nil {
		return Predicate{}, err
	}
	p := Predicate{Limit: f.Limit}
	if f.ID != nil {
		if err := checkID(*f.ID); err != nil {
			return Predicate{}, err
		}
		p.add(FieldID, OpEq, strings.TrimSpace(*f.ID))
		return p, nil
	}
	if f.Campaign != nil {
		p.add(FieldCampaign, OpEq, *f.Campaign)
	}
	numeric(&p, FieldOrdinal, f.Ordinal, f.OrdinalAtLeast, f.OrdinalAtMost)
	if f.Title != nil && strings.TrimSpace(*f.Title) != "" {
		p.add(FieldTitle, OpContains, strings.TrimSpace(*f.Title))
	}
	return p, nil
}

// CompileParticipants builds the predicate for a participant filter.
func CompileParticipants(f ParticipantFilter, maxLimit int) (Predicate, error) {
	if err := checkLimit(f.Limit, maxLimit); err != nil {
		return Predicate{}, err
	}
	p := Predicate{Limit: f.Limit}
	if f.ID != nil {
		if err := checkID(*f.ID); err != nil {
			return Predicate{}, err
		}
		p.add(FieldID, OpEq, strings.TrimSpace(*f.ID))
		return p, nil
	}
	if f.Name != nil {
		p.add(FieldName, OpEq, canon.Name(*f.Name))
	}
	if f.Key != nil {
		p.add(FieldNameKey, OpEq, strings.TrimSpace(*f.Key))
	}
	return p, nil
}

// CompileRolls builds the predicate for a roll filter within scope.
//
// Precedence: an ID short-circuits every other criterion (the scope still
// applies); RollType beats SkillGroup; exact numeric values beat ranges.
func CompileRolls(f RollFilter, scope Scope, maxLimit int) (Predicate, error) {
	if err := checkLimit(f.Limit, maxLimit); err != nil {
		return Predicate{}, err
	}
	p := Predicate{Limit: f.Limit}
	if err := scope.apply(&p); err != nil {
		return Predicate{}, err
	}
	if f.ID != nil {
		if err := checkID(*f.ID); err != nil {
			return Predicate{}, err
		}
		p.add(FieldID, OpEq, strings.TrimSpace(*f.ID))
		return p, nil
	}

	switch {
	case f.RollType != nil:
		code, ok := taxonomy.Lookup(strings.ToUpper(strings.TrimSpace(*f.RollType)))
		if !ok {
			return Predicate{}, fmt.Errorf("%w: %q", ErrUnknownRollType, *f.RollType)
		}
		p.add(FieldRollType, OpEq, int(code))
	case f.SkillGroup != nil:
		g, ok := taxonomy.Group(strings.ToUpper(strings.TrimSpace(*f.SkillGroup)))
		if !ok {
			return Predicate{}, fmt.Errorf("%w: %q", ErrUnknownSkillGroup, *f.SkillGroup)
		}
		p.add(FieldRollType, OpGte, int(g.From))
		p.add(FieldRollType, OpLt, int(g.To))
	}

	numeric(&p, FieldNatural, f.NaturalValue, f.NaturalAtLeast, f.NaturalAtMost)
	numeric(&p, FieldTotal, f.TotalValue, f.TotalAtLeast, f.TotalAtMost)
	if f.Crit != nil {
		p.add(FieldCrit, OpEq, *f.Crit)
	}
	return p, nil
}
