// Package generation produces a week of shifts: it collects constraints, asks
// a strategy for assignments, persists them through the validator and fills
// whatever is still uncovered.
package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arnavshah/rota-engine/pkg/apperror"
	"github.com/arnavshah/rota-engine/pkg/constraints"
	"github.com/arnavshah/rota-engine/pkg/events"
	"github.com/arnavshah/rota-engine/pkg/lock"
	"github.com/arnavshah/rota-engine/pkg/models"
	"github.com/arnavshah/rota-engine/pkg/solver"
	"github.com/arnavshah/rota-engine/pkg/store"
	"github.com/arnavshah/rota-engine/pkg/timeutil"
	"github.com/arnavshah/rota-engine/pkg/validation"
	"go.uber.org/zap"
)

// Config holds the pipeline switches.
type Config struct {
	// UseSolver selects the primary strategy. When false the fallback runs
	// directly.
	UseSolver     bool
	SolverTimeout time.Duration
	LockTTL       time.Duration
}

// Quota is the usage gate consulted once per generation request.
type Quota interface {
	Check(ctx context.Context, organizationID string) error
	Record(ctx context.Context, organizationID string) error
}

// Request selects the week to generate.
type Request struct {
	OrganizationID string                `json:"organization_id"`
	WeekStart      string                `json:"week_start"`
	Mode           models.GenerationMode `json:"mode"`
	LocationIDs    []string              `json:"location_ids"`
}

// Pipeline runs GenerateWeek.
type Pipeline struct {
	store     *store.Store
	collector *constraints.Collector
	cfg       Config
	primary   solver.Strategy
	fallback  solver.Strategy
	locker    lock.Locker
	quota     Quota
	events    *events.Dispatcher
	log       *zap.Logger
	valOpts   []validation.Option
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithPrimary sets the strategy used when Config.UseSolver is true.
func WithPrimary(s solver.Strategy) Option {
	return func(p *Pipeline) { p.primary = s }
}

// WithFallback replaces the default heuristic fallback.
func WithFallback(s solver.Strategy) Option {
	return func(p *Pipeline) { p.fallback = s }
}

func WithLocker(l lock.Locker) Option {
	return func(p *Pipeline) { p.locker = l }
}

func WithQuota(q Quota) Option {
	return func(p *Pipeline) { p.quota = q }
}

func WithEvents(d *events.Dispatcher) Option {
	return func(p *Pipeline) { p.events = d }
}

func WithLogger(log *zap.Logger) Option {
	return func(p *Pipeline) { p.log = log }
}

// WithValidatorOptions is passed to every validator the pipeline builds.
func WithValidatorOptions(opts ...validation.Option) Option {
	return func(p *Pipeline) { p.valOpts = append(p.valOpts, opts...) }
}

// New returns a pipeline over st.
func New(st *store.Store, cfg Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:     st,
		collector: constraints.NewCollector(st),
		cfg:       cfg,
		fallback:  solver.NewHeuristic(2 * time.Second),
		locker:    lock.NewLocalLocker(),
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.cfg.LockTTL <= 0 {
		p.cfg.LockTTL = 5 * time.Minute
	}
	return p
}

// Generate runs GenerateWeek. Partial success is returned as a result with
// errors, not as an error.
func (p *Pipeline) Generate(ctx context.Context, req Request) (*models.GenerateResult, error) {
	switch req.Mode {
	case "":
		req.Mode = models.ModeFull
	case models.ModeFull, models.ModeFillGaps:
	default:
		return nil, apperror.Newf(apperror.CodeValidation, "unknown mode %q", req.Mode)
	}
	weekStart, err := timeutil.WeekStartOf(req.WeekStart)
	if err != nil {
		return nil, apperror.Newf(apperror.CodeValidation, "invalid week_start %q", req.WeekStart)
	}

	if p.quota != nil {
		if err := p.quota.Check(ctx, req.OrganizationID); err != nil {
			return nil, err
		}
	}

	sched, err := p.store.EnsureSchedule(ctx, req.OrganizationID, weekStart)
	if err != nil {
		return nil, err
	}
	release, err := p.locker.Acquire(ctx, "generate:"+sched.ID, p.cfg.LockTTL)
	if errors.Is(err, lock.ErrLocked) {
		return nil, apperror.Precondition("a generation for this week is already running")
	}
	if err != nil {
		return nil, fmt.Errorf("acquire generation lock: %w", err)
	}
	defer release()

	log := p.log.With(
		zap.String("organization_id", req.OrganizationID),
		zap.String("schedule_id", sched.ID),
		zap.String("week_start", weekStart),
		zap.String("mode", string(req.Mode)),
	)

	c, err := p.collector.Collect(ctx, constraints.Target{
		OrganizationID: req.OrganizationID,
		ScheduleID:     sched.ID,
		WeekStart:      weekStart,
		LocationIDs:    req.LocationIDs,
	})
	if err != nil {
		return nil, err
	}
	if len(c.Employees) == 0 {
		return nil, apperror.Precondition("no active employees")
	}
	if !c.HasDemand() {
		return nil, apperror.Precondition("no staffing requirements configured")
	}

	if p.quota != nil {
		if err := p.quota.Record(ctx, req.OrganizationID); err != nil {
			return nil, err
		}
	}

	var pinned []models.Shift
	if req.Mode == models.ModeFillGaps {
		pinned = c.ExistingShifts
	}
	sreq := solver.NewRequest(c, pinned)

	res, method, err := p.solve(ctx, log, sreq)
	if err != nil {
		return nil, err
	}
	if res.Status == solver.StatusInfeasible {
		log.Info("week is infeasible", zap.String("reason", res.Reason))
		return nil, apperror.Infeasible(res.Reason)
	}

	result := &models.GenerateResult{
		ScheduleID:   sched.ID,
		Errors:       []string{},
		Method:       method,
		SolverStatus: string(res.Status),
	}
	assignments := ResolveEmployees(res.Assignments, c.Employees)

	err = p.store.WithScheduleLock(ctx, sched.ID, func(tx *store.Store) error {
		w := &writer{
			tx:         tx,
			validator:  validation.New(tx, p.valOpts...),
			c:          c,
			scheduleID: sched.ID,
			result:     result,
		}
		if err := w.load(ctx); err != nil {
			return err
		}
		if err := w.persist(ctx, assignments); err != nil {
			return err
		}
		if err := w.fill(ctx); err != nil {
			return err
		}
		result.LaborCost = w.cost.Round(2)
		if result.Saved+result.Filled > 0 {
			return tx.MarkScheduleModified(ctx, sched.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("week generated",
		zap.String("method", string(result.Method)),
		zap.String("strategy", res.Strategy),
		zap.Int("saved", result.Saved),
		zap.Int("skipped", result.Skipped),
		zap.Int("filled", result.Filled),
		zap.Int("errors", len(result.Errors)),
	)
	p.events.Dispatch(events.Event{
		Type:           events.ScheduleGenerated,
		OrganizationID: req.OrganizationID,
		ScheduleID:     sched.ID,
		Payload:        result,
	})
	return result, nil
}

// solve runs the primary strategy with a bounded timeout and falls back on
// any error. An infeasible primary result is final.
func (p *Pipeline) solve(ctx context.Context, log *zap.Logger, req solver.Request) (solver.Result, models.GenerationMethod, error) {
	if p.cfg.UseSolver && p.primary != nil {
		sctx, cancel := ctx, context.CancelFunc(func() {})
		if p.cfg.SolverTimeout > 0 {
			sctx, cancel = context.WithTimeout(ctx, p.cfg.SolverTimeout)
		}
		res, err := p.primary.Generate(sctx, req)
		cancel()
		if err == nil && (res.Status.Usable() || res.Status == solver.StatusInfeasible) {
			return res, models.MethodSolver, nil
		}
		if err == nil {
			err = errors.New(res.Reason)
		}
		log.Warn("solver unavailable, using fallback", zap.Error(err))
	}
	if err := ctx.Err(); err != nil {
		return solver.Result{}, "", err
	}

	res, err := p.fallback.Generate(ctx, req)
	if err != nil {
		return res, models.MethodFallback, fmt.Errorf("fallback generation: %w", err)
	}
	if res.Status == solver.StatusError {
		return res, models.MethodFallback, fmt.Errorf("fallback generation: %s", res.Reason)
	}
	return res, models.MethodFallback, nil
}
