// Package query compiles sparse filter objects into storage predicates and
// evaluates them as lists, counts and field aggregates.
package query

// Field names a filterable attribute. Stores map fields to their own
// columns and must reject fields they do not know.
type Field string

// Filterable fields.
const (
	FieldID            Field = "id"
	FieldEpisodeID     Field = "episode_id"
	FieldParticipantID Field = "participant_id"
	FieldRollType      Field = "roll_type"
	FieldNatural       Field = "natural"
	FieldTotal         Field = "total"
	FieldCrit          Field = "crit"
	FieldDamage        Field = "damage"
	FieldKills         Field = "kills"
	FieldCampaign      Field = "campaign"
	FieldOrdinal       Field = "ordinal"
	FieldTitle         Field = "title"
	FieldName          Field = "name"
	FieldNameKey       Field = "name_key"
)

// Op is a comparison operator.
type Op string

// Operators.
const (
	OpEq       Op = "="
	OpGte      Op = ">="
	OpLte      Op = "<="
	OpLt       Op = "<"
	OpContains Op = "contains"
)

// Clause is one conjunct of a predicate.
type Clause struct {
	Field Field
	Op    Op
	Value any
}

// Predicate is a conjunction of clauses plus an optional row limit. A zero
// Limit means unbounded.
type Predicate struct {
	Clauses []Clause
	Limit   int
}

func (p *Predicate) add(f Field, op Op, v any) {
	p.Clauses = append(p.Clauses, Clause{Field: f, Op: op, Value: v})
}

// Unlimited returns a copy of p without its limit.
func (p Predicate) Unlimited() Predicate {
	p.Limit = 0
	return p
}
