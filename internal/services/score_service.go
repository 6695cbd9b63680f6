// Package services implements the application services layered over
// the repositories: score evaluation with caching, and leaderboards.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/stwalsh4118/redraw/internal/cache"
	"github.com/stwalsh4118/redraw/internal/logger"
	"github.com/stwalsh4118/redraw/internal/models"
	"github.com/stwalsh4118/redraw/internal/plan"
	"github.com/stwalsh4118/redraw/internal/repository"
	"github.com/stwalsh4118/redraw/internal/scoring"
)

// ErrPlanNotFound mirrors the plan service sentinel for callers that
// only import this package.
var ErrPlanNotFound = plan.ErrPlanNotFound

// ErrDistrictNotFound is returned when a district score targets a
// district id the plan does not have.
var ErrDistrictNotFound = plan.ErrDistrictNotFound

// ScoreReport is one evaluated score, ready for transport.
type ScoreReport struct {
	Function string          `json:"function"`
	Label    string          `json:"label,omitempty"`
	PlanID   uuid.UUID       `json:"planId"`
	Version  int             `json:"version"`
	Result   json.RawMessage `json:"result"`
	Display  string          `json:"display"`
	SortKey  float64         `json:"sortKey"`
}

// LeaderboardEntry ranks one plan for a score function.
type LeaderboardEntry struct {
	Rank     int       `json:"rank"`
	PlanID   uuid.UUID `json:"planId"`
	PlanName string    `json:"planName"`
	Report   ScoreReport `json:"score"`
}

// ScoreOptions tunes the score service.
type ScoreOptions struct {
	// BaseGeolevel is the geolevel of the smallest assignable units.
	// Defaults to 1.
	BaseGeolevel int
	// CacheTTL bounds how long evaluated scores are kept. Zero keeps
	// them until eviction.
	CacheTTL time.Duration
}

// ScoreService evaluates score functions against plans, memoizing
// results in the cache. Cache keys embed the plan version, so edits
// never serve stale results.
type ScoreService struct {
	engine    *scoring.Engine
	plans     repository.PlanRepository
	ref       repository.ReferenceRepository
	functions repository.ScoreFunctionRepository
	cache     cache.Cache
	log       *logger.Logger
	opts      ScoreOptions
}

// NewScoreService creates a score service.
func NewScoreService(
	plans repository.PlanRepository,
	ref repository.ReferenceRepository,
	functions repository.ScoreFunctionRepository,
	c cache.Cache,
	log *logger.Logger,
	opts ScoreOptions,
) *ScoreService {
	if opts.BaseGeolevel == 0 {
		opts.BaseGeolevel = 1
	}
	return &ScoreService{
		engine:    scoring.NewEngine(functions, ref, log),
		plans:     plans,
		ref:       ref,
		functions: functions,
		cache:     c,
		log:       log,
		opts:      opts,
	}
}

// ScorePlan evaluates the named score function against a plan's
// current version.
func (s *ScoreService) ScorePlan(ctx context.Context, planID uuid.UUID, functionName string) (*ScoreReport, error) {
	p, err := s.plans.GetPlan(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to load plan %s: %w", planID, err)
	}
	if p == nil {
		return nil, ErrPlanNotFound
	}

	key := fmt.Sprintf("score:%s:%d:%s", p.ID, p.Version, functionName)
	if report, ok := s.cached(ctx, key); ok {
		return report, nil
	}

	reader, err := newPlanReader(ctx, s.plans, s.ref, p, s.opts.BaseGeolevel)
	if err != nil {
		return nil, err
	}
	report, err := s.evaluate(ctx, functionName, scoring.Target{Plan: reader, Version: p.Version}, p)
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, report)
	return report, nil
}

// ScoreDistrict evaluates the named score function against a single
// district of a plan's current version.
func (s *ScoreService) ScoreDistrict(ctx context.Context, planID uuid.UUID, districtID int, functionName string) (*ScoreReport, error) {
	p, err := s.plans.GetPlan(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to load plan %s: %w", planID, err)
	}
	if p == nil {
		return nil, ErrPlanNotFound
	}

	key := fmt.Sprintf("score:%s:%d:%s:d%d", p.ID, p.Version, functionName, districtID)
	if report, ok := s.cached(ctx, key); ok {
		return report, nil
	}

	reader, err := newPlanReader(ctx, s.plans, s.ref, p, s.opts.BaseGeolevel)
	if err != nil {
		return nil, err
	}
	var district scoring.DistrictReader
	for _, d := range reader.Districts() {
		if d.DistrictID() == districtID {
			district = d
			break
		}
	}
	if district == nil {
		return nil, ErrDistrictNotFound
	}
	report, err := s.evaluate(ctx, functionName, scoring.Target{District: district, Plan: reader, Version: p.Version}, p)
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, report)
	return report, nil
}

// ListFunctions returns every configured score function.
func (s *ScoreService) ListFunctions(ctx context.Context) ([]models.ScoreFunction, error) {
	fns, err := s.functions.ListScoreFunctions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list score functions: %w", err)
	}
	return fns, nil
}

// Leaderboard scores every plan of a legislative body with the named
// function and ranks them: best sort key first, names breaking ties.
// Plans the function cannot score (broken configuration aside) are
// skipped.
func (s *ScoreService) Leaderboard(ctx context.Context, legislativeBodyID uint, functionName string, limit int) ([]LeaderboardEntry, error) {
	plans, err := s.plans.ListPlans(ctx, legislativeBodyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans for body %d: %w", legislativeBodyID, err)
	}

	type scored struct {
		plan   models.Plan
		report *ScoreReport
	}
	var results []scored
	for _, p := range plans {
		report, err := s.ScorePlan(ctx, p.ID, functionName)
		if err != nil {
			var confErr *scoring.ConfigurationError
			if errors.As(err, &confErr) {
				return nil, err
			}
			s.log.Warn("Skipping unscorable plan in leaderboard", map[string]interface{}{
				"plan_id":  p.ID.String(),
				"function": functionName,
				"error":    err.Error(),
			})
			continue
		}
		results = append(results, scored{plan: p, report: report})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].report.SortKey != results[j].report.SortKey {
			return results[i].report.SortKey > results[j].report.SortKey
		}
		return results[i].plan.Name < results[j].plan.Name
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	entries := make([]LeaderboardEntry, len(results))
	for i, r := range results {
		entries[i] = LeaderboardEntry{
			Rank:     i + 1,
			PlanID:   r.plan.ID,
			PlanName: r.plan.Name,
			Report:   *r.report,
		}
	}
	return entries, nil
}

func (s *ScoreService) evaluate(ctx context.Context, functionName string, target scoring.Target, p *models.Plan) (*ScoreReport, error) {
	calc, result, err := s.engine.Score(ctx, functionName, target)
	if err != nil {
		return nil, err
	}
	encoded, err := calc.JSON(result)
	if err != nil {
		return nil, err
	}
	fn, err := s.functions.GetScoreFunction(ctx, functionName)
	if err != nil {
		return nil, fmt.Errorf("failed to load score function %q: %w", functionName, err)
	}
	// Missing results sort with -Inf, which JSON cannot carry; clamp
	// to the most negative finite value.
	sortKey := calc.SortKey(result)
	if math.IsInf(sortKey, -1) {
		sortKey = -math.MaxFloat64
	}
	report := &ScoreReport{
		Function: functionName,
		PlanID:   p.ID,
		Version:  p.Version,
		Result:   encoded,
		Display:  calc.HTML(result),
		SortKey:  sortKey,
	}
	if fn != nil {
		report.Label = fn.Label
	}
	return report, nil
}

func (s *ScoreService) cached(ctx context.Context, key string) (*ScoreReport, bool) {
	data, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.Warn("Score cache read failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var report ScoreReport
	if err := json.Unmarshal(data, &report); err != nil {
		s.log.Warn("Score cache entry corrupt", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		return nil, false
	}
	return &report, true
}

func (s *ScoreService) store(ctx context.Context, key string, report *ScoreReport) {
	data, err := json.Marshal(report)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, s.opts.CacheTTL); err != nil {
		s.log.Warn("Score cache write failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
}
