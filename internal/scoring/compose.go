package scoring

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/stwalsh4118/redraw/internal/contiguity"
	"github.com/stwalsh4118/redraw/internal/logger"
	"github.com/stwalsh4118/redraw/internal/models"
	"github.com/stwalsh4118/redraw/internal/repository"
)

// Engine evaluates named score functions against plans and districts,
// resolving score-typed arguments recursively. Broken configuration
// (unknown functions, unknown calculators, reference cycles) surfaces
// as a *ConfigurationError.
type Engine struct {
	functions repository.ScoreFunctionRepository
	ref       repository.ReferenceRepository
	log       *logger.Logger
}

// NewEngine creates a score evaluation engine.
func NewEngine(functions repository.ScoreFunctionRepository, ref repository.ReferenceRepository, log *logger.Logger) *Engine {
	return &Engine{functions: functions, ref: ref, log: log}
}

// Score evaluates the named score function against the target and
// returns the calculator alongside the result so callers can render
// it. A district-level function evaluated against a plan target yields
// a per-district value list.
func (e *Engine) Score(ctx context.Context, name string, t Target) (Calculator, *Result, error) {
	eval := &evaluation{engine: e, path: make(map[string]bool)}
	return eval.score(ctx, name, t)
}

// evaluation is the per-call state of one Score invocation: the
// recursion path for cycle detection and the lazily loaded contiguity
// overrides shared by every calculator in the tree.
type evaluation struct {
	engine          *Engine
	path            map[string]bool
	overrides       []contiguity.Override
	overridesLoaded bool
}

func (ev *evaluation) score(ctx context.Context, name string, t Target) (Calculator, *Result, error) {
	if ev.path[name] {
		return nil, nil, &ConfigurationError{Function: name, Reason: "score function reference cycle"}
	}
	fn, err := ev.engine.functions.GetScoreFunction(ctx, name)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load score function %q: %w", name, err)
	}
	if fn == nil {
		return nil, nil, &ConfigurationError{Function: name, Reason: "unknown score function"}
	}
	if fn.IsPlanScore && t.Plan == nil {
		return nil, nil, &ConfigurationError{Function: name, Reason: "plan-level function evaluated against a district"}
	}

	calc, err := New(fn.Calculator)
	if err != nil {
		if ce, ok := err.(*ConfigurationError); ok {
			ce.Function = name
		}
		return nil, nil, err
	}

	ev.path[name] = true
	defer delete(ev.path, name)

	for _, arg := range fn.Arguments {
		bound, err := ev.bind(ctx, fn, arg, t)
		if err != nil {
			return nil, nil, err
		}
		calc.SetArg(arg.Name, bound)
	}

	if consumer, ok := calc.(OverrideConsumer); ok {
		overrides, err := ev.loadOverrides(ctx)
		if err != nil {
			return nil, nil, err
		}
		consumer.SetOverrides(overrides)
	}

	// A district-level function under a plan target evaluates once per
	// real district.
	if !fn.IsPlanScore && t.Plan != nil && t.District == nil {
		values, err := ev.perDistrict(ctx, calc, t)
		if err != nil {
			return nil, nil, err
		}
		if values == nil {
			return calc, nil, nil
		}
		return calc, &Result{Value: values}, nil
	}

	result, err := calc.Compute(ctx, t)
	if err != nil {
		return nil, nil, err
	}
	return calc, result, nil
}

// bind turns one stored argument into its runtime form, evaluating
// score references recursively.
func (ev *evaluation) bind(ctx context.Context, fn *models.ScoreFunction, arg models.ScoreArgument, t Target) (Arg, error) {
	switch arg.Type {
	case models.ArgLiteral:
		return Literal(arg.Value), nil
	case models.ArgSubject:
		return SubjectRef(arg.Value), nil
	case models.ArgScore:
		return ev.bindScore(ctx, arg.Value, t)
	default:
		return Arg{}, &ConfigurationError{
			Function: fn.Name,
			Reason:   fmt.Sprintf("argument %q has unknown type %q", arg.Name, arg.Type),
		}
	}
}

func (ev *evaluation) bindScore(ctx context.Context, name string, t Target) (Arg, error) {
	if ev.path[name] {
		return Arg{}, &ConfigurationError{Function: name, Reason: "score function reference cycle"}
	}
	child, err := ev.engine.functions.GetScoreFunction(ctx, name)
	if err != nil {
		return Arg{}, fmt.Errorf("failed to load score function %q: %w", name, err)
	}
	if child == nil {
		return Arg{}, &ConfigurationError{Function: name, Reason: "unknown score function"}
	}

	// A district-level child referenced from a plan context yields one
	// value per district; everything else yields a single value.
	if !child.IsPlanScore && t.Plan != nil && t.District == nil {
		var scores []float64
		for _, d := range t.Plan.Districts() {
			if d.DistrictID() == models.UnassignedDistrictID {
				continue
			}
			_, r, err := ev.score(ctx, name, Target{District: d, Plan: t.Plan, Version: t.Version})
			if err != nil {
				return Arg{}, err
			}
			if v, ok := resultNumber(r); ok {
				scores = append(scores, v)
			}
		}
		return Arg{Kind: ArgKindScores, Value: name, Scores: scores}, nil
	}

	_, r, err := ev.score(ctx, name, t)
	if err != nil {
		return Arg{}, err
	}
	if v, ok := resultNumber(r); ok {
		return Arg{Kind: ArgKindScores, Value: name, Scores: []float64{v}}, nil
	}
	return Arg{Kind: ArgKindScores, Value: name}, nil
}

// perDistrict evaluates a district-level calculator once per real
// district of the plan target. Districts with no result are skipped;
// nil is returned when none produced one.
func (ev *evaluation) perDistrict(ctx context.Context, calc Calculator, t Target) ([]float64, error) {
	var values []float64
	for _, d := range t.Plan.Districts() {
		if d.DistrictID() == models.UnassignedDistrictID {
			continue
		}
		r, err := calc.Compute(ctx, Target{District: d, Plan: t.Plan, Version: t.Version})
		if err != nil {
			return nil, err
		}
		if v, ok := resultNumber(r); ok {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return nil, nil
	}
	return values, nil
}

// loadOverrides resolves the configured contiguity overrides to their
// geounit geometries, once per Score call.
func (ev *evaluation) loadOverrides(ctx context.Context) ([]contiguity.Override, error) {
	if ev.overridesLoaded {
		return ev.overrides, nil
	}
	rows, err := ev.engine.ref.ContiguityOverrides(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load contiguity overrides: %w", err)
	}
	ev.overridesLoaded = true
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, 0, len(rows)*2)
	seen := make(map[uuid.UUID]bool)
	for _, row := range rows {
		for _, id := range []uuid.UUID{row.OverrideGeounitID, row.ConnectToGeounitID} {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	units, err := ev.engine.ref.GeounitsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load override geounits: %w", err)
	}
	geoms := make(map[uuid.UUID]models.Geounit, len(units))
	for _, u := range units {
		geoms[u.ID] = u
	}
	for _, row := range rows {
		over, okO := geoms[row.OverrideGeounitID]
		connect, okC := geoms[row.ConnectToGeounitID]
		if !okO || !okC {
			ev.engine.log.Warn("Contiguity override references missing geounit", map[string]interface{}{
				"override_geounit_id": row.OverrideGeounitID.String(),
				"connect_geounit_id":  row.ConnectToGeounitID.String(),
			})
			continue
		}
		ev.overrides = append(ev.overrides, contiguity.Override{
			OverrideUnit:  over.Geom.Geom,
			ConnectToUnit: connect.Geom.Geom,
		})
	}
	return ev.overrides, nil
}

// resultNumber extracts a single numeric value from a result for use
// as a nested-score argument.
func resultNumber(r *Result) (float64, bool) {
	if r == nil || r.Value == nil {
		return 0, false
	}
	switch v := r.Value.(type) {
	case float64:
		return v, true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}
