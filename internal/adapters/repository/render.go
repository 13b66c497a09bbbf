package repository

import (
	"fmt"
	"strings"

	"github.com/avielmenter/CritiQL/internal/domain/query"
)

// collection maps filterable fields to the columns of one table.
type collection struct {
	table   string
	columns map[query.Field]string
	orderBy string
}

var (
	episodeCollection = collection{
		table: "episodes",
		columns: map[query.Field]string{
			query.FieldID:       "id",
			query.FieldCampaign: "campaign",
			query.FieldOrdinal:  "ordinal",
			query.FieldTitle:    "title",
		},
		orderBy: "campaign, ordinal IS NULL, ordinal, title",
	}

	participantCollection = collection{
		table: "participants",
		columns: map[query.Field]string{
			query.FieldID:      "id",
			query.FieldName:    "name",
			query.FieldNameKey: "name_key",
		},
		orderBy: "name",
	}

	rollCollection = collection{
		table: "roll_records",
		columns: map[query.Field]string{
			query.FieldID:            "id",
			query.FieldEpisodeID:     "episode_id",
			query.FieldParticipantID: "participant_id",
			query.FieldRollType:      "roll_type",
			query.FieldNatural:       "natural_value",
			query.FieldTotal:         "total_value",
			query.FieldCrit:          "crit",
			query.FieldDamage:        "damage",
			query.FieldKills:         "kills",
		},
		orderBy: "rowid",
	}
)

// where renders p as a WHERE clause (empty when unconstrained) plus its
// bind arguments.
func (c collection) where(p query.Predicate) (string, []any, error) {
	if len(p.Clauses) == 0 {
		return "", nil, nil
	}
	parts := make([]string, 0, len(p.Clauses))
	args := make([]any, 0, len(p.Clauses))
	for _, cl := range p.Clauses {
		col, ok := c.columns[cl.Field]
		if !ok {
			return "", nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, c.table, cl.Field)
		}
		value := cl.Value
		if b, isBool := value.(bool); isBool {
			value = boolInt(b)
		}
		switch cl.Op {
		case query.OpEq, query.OpGte, query.OpLte, query.OpLt:
			parts = append(parts, col+" "+string(cl.Op)+" ?")
		case query.OpContains:
			parts = append(parts, "instr(lower("+col+"), lower(?)) > 0")
		default:
			return "", nil, fmt.Errorf("%w: operator %q", ErrInvalidInput, cl.Op)
		}
		args = append(args, value)
	}
	return " WHERE " + strings.Join(parts, " AND "), args, nil
}

// selectSQL renders a full list query over columns.
func (c collection) selectSQL(columns string, p query.Predicate) (string, []any, error) {
	where, args, err := c.where(p)
	if err != nil {
		return "", nil, err
	}
	stmt := "SELECT " + columns + " FROM " + c.table + where + " ORDER BY " + c.orderBy
	if p.Limit > 0 {
		stmt += " LIMIT ?"
		args = append(args, p.Limit)
	}
	return stmt, args, nil
}

// aggregateExpr returns the SQL expression summarized for field. Damage is
// free text, so only values made purely of digits take part.
func aggregateExpr(field query.Field) (string, error) {
	if field == query.FieldDamage {
		return "CASE WHEN trim(damage) <> '' AND trim(damage) NOT GLOB '*[^0-9]*' " +
			"THEN CAST(trim(damage) AS INTEGER) END", nil
	}
	switch field {
	case query.FieldTotal, query.FieldNatural, query.FieldKills:
		return rollCollection.columns[field], nil
	}
	return "", fmt.Errorf("%w: cannot aggregate %s", ErrUnknownField, field)
}
