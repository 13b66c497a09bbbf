package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/avielmenter/CritiQL/internal/domain/model"
	"github.com/avielmenter/CritiQL/internal/domain/query"
)

// RollDependencies answers roll queries.
type RollDependencies interface {
	FindRolls(ctx context.Context, f query.RollFilter, scope query.Scope) ([]model.RollRecord, error)
	CountRolls(ctx context.Context, f query.RollFilter, scope query.Scope) (int64, error)
	AggregateRollField(ctx context.Context, field string, f query.RollFilter, scope query.Scope) (query.Aggregate, bool, error)
}

// CountResponse is returned by GET /rolls/count.
type CountResponse struct {
	Count int64 `json:"count"`
}

// AggregateResponse is returned by GET /rolls/aggregate. Aggregate is nil
// when no roll carries a value for the field.
type AggregateResponse struct {
	Field     string           `json:"field"`
	Aggregate *query.Aggregate `json:"aggregate"`
}

// RollHandler serves roll queries.
type RollHandler struct {
	deps RollDependencies
}

// NewRollHandler creates a new roll handler.
func NewRollHandler(deps RollDependencies) *RollHandler {
	return &RollHandler{deps: deps}
}

// rollQuery reads the roll filter and the optional parent scope.
func rollQuery(r *http.Request) (query.RollFilter, query.Scope, error) {
	p := newParams(r.URL.Query())
	f := query.RollFilter{
		ID:             p.str("id"),
		RollType:       p.str("roll_type"),
		SkillGroup:     p.str("skill_group"),
		NaturalValue:   p.integer("natural"),
		NaturalAtLeast: p.integer("natural_min"),
		NaturalAtMost:  p.integer("natural_max"),
		TotalValue:     p.integer("total"),
		TotalAtLeast:   p.integer("total_min"),
		TotalAtMost:    p.integer("total_max"),
		Crit:           p.boolean("crit"),
		Limit:          p.limit(),
	}
	episodeID := p.str("episode_id")
	participantID := p.str("participant_id")
	if p.err != nil {
		return query.RollFilter{}, query.Scope{}, p.err
	}

	var scope query.Scope
	switch {
	case episodeID != nil && participantID != nil:
		return query.RollFilter{}, query.Scope{}, fmt.Errorf("%w: episode_id and participant_id are exclusive", ErrBadRequest)
	case episodeID != nil:
		scope = query.EpisodeScope(*episodeID)
	case participantID != nil:
		scope = query.ParticipantScope(*participantID)
	}
	return f, scope, nil
}

// HandleRolls handles GET /rolls.
func (h *RollHandler) HandleRolls(w http.ResponseWriter, r *http.Request) {
	f, scope, err := rollQuery(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	rolls, err := h.deps.FindRolls(r.Context(), f, scope)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if rolls == nil {
		rolls = []model.RollRecord{}
	}
	writeJSON(w, http.StatusOK, rolls)
}

// HandleCount handles GET /rolls/count.
func (h *RollHandler) HandleCount(w http.ResponseWriter, r *http.Request) {
	f, scope, err := rollQuery(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	n, err := h.deps.CountRolls(r.Context(), f, scope)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: n})
}

// HandleAggregate handles GET /rolls/aggregate?field=.
func (h *RollHandler) HandleAggregate(w http.ResponseWriter, r *http.Request) {
	field := r.URL.Query().Get("field")
	if field == "" {
		writeFailure(w, fmt.Errorf("%w: field is required", ErrBadRequest))
		return
	}
	f, scope, err := rollQuery(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	agg, ok, err := h.deps.AggregateRollField(r.Context(), field, f, scope)
	if err != nil {
		writeFailure(w, err)
		return
	}
	resp := AggregateResponse{Field: field}
	if ok {
		resp.Aggregate = &agg
	}
	writeJSON(w, http.StatusOK, resp)
}
