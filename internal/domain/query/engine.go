package query

import (
	"context"
	"fmt"
	"time"

	"github.com/avielmenter/CritiQL/internal/domain/model"
	"github.com/avielmenter/CritiQL/pkg/metrics"
)

// Default engine configuration constants.
const (
	defaultMaxLimit = 1000
)

// Aggregate holds summary statistics over the non-null values of a field.
type Aggregate struct {
	Count int64   `json:"count"`
	Sum   int64   `json:"sum"`
	Avg   float64 `json:"avg"`
	Min   int64   `json:"min"`
	Max   int64   `json:"max"`
}

// Reader evaluates compiled predicates against storage.
type Reader interface {
	FindEpisodes(ctx context.Context, p Predicate) ([]model.Episode, error)
	FindParticipants(ctx context.Context, p Predicate) ([]model.Participant, error)
	FindRolls(ctx context.Context, p Predicate) ([]model.RollRecord, error)
	CountRolls(ctx context.Context, p Predicate) (int64, error)
	// AggregateRolls must skip rows where field is null. A zero Count means
	// no row qualified.
	AggregateRolls(ctx context.Context, field Field, p Predicate) (Aggregate, error)
}

// aggregateFields lists the roll fields that can be summarized.
var aggregateFields = map[string]Field{
	"total":   FieldTotal,
	"natural": FieldNatural,
	"damage":  FieldDamage,
	"kills":   FieldKills,
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithMaxLimit caps the limit a caller may request.
func WithMaxLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxLimit = n
		}
	}
}

// Engine answers read queries. It holds no mutable state and is safe for
// concurrent use.
type Engine struct {
	reader   Reader
	maxLimit int
}

// NewEngine creates an Engine over reader.
func NewEngine(reader Reader, opts ...Option) *Engine {
	e := &Engine{reader: reader, maxLimit: defaultMaxLimit}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func observe(op string, start time.Time) {
	metrics.RecordQueryLatency(op, float64(time.Since(start).Milliseconds()))
}

// FindEpisodes lists episodes matching f.
func (e *Engine) FindEpisodes(ctx context.Context, f EpisodeFilter) ([]model.Episode, error) {
	defer observe("find_episodes", time.Now())
	p, err := CompileEpisodes(f, e.maxLimit)
	if err != nil {
		return nil, err
	}
	return e.reader.FindEpisodes(ctx, p)
}

// FindParticipants lists participants matching f.
func (e *Engine) FindParticipants(ctx context.Context, f ParticipantFilter) ([]model.Participant, error) {
	defer observe("find_participants", time.Now())
	p, err := CompileParticipants(f, e.maxLimit)
	if err != nil {
		return nil, err
	}
	return e.reader.FindParticipants(ctx, p)
}

// FindRolls lists roll records matching f within scope.
func (e *Engine) FindRolls(ctx context.Context, f RollFilter, scope Scope) ([]model.RollRecord, error) {
	defer observe("find_rolls", time.Now())
	p, err := CompileRolls(f, scope, e.maxLimit)
	if err != nil {
		return nil, err
	}
	return e.reader.FindRolls(ctx, p)
}

// CountRolls counts every record matching f within scope. The filter's
// limit only bounds list results and is ignored here.
func (e *Engine) CountRolls(ctx context.Context, f RollFilter, scope Scope) (int64, error) {
	defer observe("count_rolls", time.Now())
	p, err := CompileRolls(f, scope, e.maxLimit)
	if err != nil {
		return 0, err
	}
	return e.reader.CountRolls(ctx, p.Unlimited())
}

// AggregateRollField summarizes field over the matching records. ok is
// false when no record has a value for field. Like CountRolls, the limit is
// ignored.
func (e *Engine) AggregateRollField(ctx context.Context, field string, f RollFilter, scope Scope) (Aggregate, bool, error) {
	defer observe("aggregate_rolls", time.Now())
	target, known := aggregateFields[field]
	if !known {
		return Aggregate{}, false, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	p, err := CompileRolls(f, scope, e.maxLimit)
	if err != nil {
		return Aggregate{}, false, err
	}
	agg, err := e.reader.AggregateRolls(ctx, target, p.Unlimited())
	if err != nil {
		return Aggregate{}, false, err
	}
	if agg.Count == 0 {
		return Aggregate{}, false, nil
	}
	return agg, true, nil
}
