package advisory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mleventi/wheelhouse/internal/domain"
	"github.com/mleventi/wheelhouse/internal/modules/notify"
	"github.com/mleventi/wheelhouse/internal/modules/snapshots"
	"github.com/mleventi/wheelhouse/internal/modules/throttle"
	"github.com/rs/zerolog"
)

// ErrRunInProgress is returned when a run is requested while another run is
// still executing. Runs never queue.
var ErrRunInProgress = errors.New("advisory run already in progress")

// snapshotTTL is how long a recommendation stays actionable before readers
// should treat it as stale.
const snapshotTTL = 7 * 24 * time.Hour

type contextBuilder interface {
	MarketContext(today time.Time, defaultPremium, profitThreshold float64) (*domain.MarketContext, error)
}

type configStore interface {
	All() (map[string]*domain.StrategyConfig, error)
}

type snapshotStore interface {
	Create(rec domain.Recommendation, createdAt time.Time, expiresAt *time.Time) error
	MarkNotified(id string, track snapshots.NotificationTrack, at time.Time) error
}

type throttler interface {
	ShouldSend(strategyType, recommendationID string, potentialProfit float64, now time.Time) (throttle.Decision, error)
	RecordSent(strategyType, recommendationID string, potentialProfit float64, sentAt time.Time) error
}

type dispatcher interface {
	Dispatch(ctx context.Context, rec domain.Recommendation, cfg *domain.StrategyConfig, priorityFloor domain.Priority, now time.Time) (notify.Result, error)
}

// RunOptions tune a single advisory run.
type RunOptions struct {
	// Now is the run timestamp. Zero means wall clock.
	Now time.Time
	// DryRun stores snapshots and evaluates throttle decisions but never
	// dispatches or consumes throttle budget.
	DryRun bool
	// PriorityFloor suppresses notifications below it. Zero value means low.
	PriorityFloor domain.Priority
	// DefaultPremium and ProfitThreshold override the configured defaults
	// when non-nil.
	DefaultPremium  *float64
	ProfitThreshold *float64
}

// RunReport summarizes one advisory run.
type RunReport struct {
	RanAt           time.Time               `json:"ran_at"`
	DryRun          bool                    `json:"dry_run"`
	Generated       int                     `json:"generated"`
	Notified        int                     `json:"notified"`
	Throttled       int                     `json:"throttled"`
	Recommendations []domain.Recommendation `json:"recommendations"`
}

// Service orchestrates advisory runs. At most one run executes at a time.
type Service struct {
	engine    *Engine
	portfolio contextBuilder
	configs   configStore
	store     snapshotStore
	throttle  throttler
	dispatch  dispatcher

	defaultPremium  float64
	profitThreshold float64
	priorityFloor   domain.Priority

	running sync.Mutex
	log     zerolog.Logger
}

// NewService creates the run orchestrator. defaultPremium and profitThreshold
// are the configured fallbacks a run uses absent per-run overrides.
func NewService(
	engine *Engine,
	portfolio contextBuilder,
	configs configStore,
	store snapshotStore,
	throttleSvc throttler,
	dispatch dispatcher,
	defaultPremium, profitThreshold float64,
	log zerolog.Logger,
) *Service {
	return &Service{
		engine:          engine,
		portfolio:       portfolio,
		configs:         configs,
		store:           store,
		throttle:        throttleSvc,
		dispatch:        dispatch,
		defaultPremium:  defaultPremium,
		profitThreshold: profitThreshold,
		priorityFloor:   domain.PriorityLow,
		log:             log.With().Str("service", "advisory").Logger(),
	}
}

// Run executes one full advisory pass: build context, generate, snapshot
// everything, then throttle and dispatch the survivors. Every generated
// recommendation is persisted before any notification decision is made.
func (s *Service) Run(ctx context.Context, opts RunOptions) (*RunReport, error) {
	if !s.running.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.running.Unlock()

	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	defaultPremium := s.defaultPremium
	if opts.DefaultPremium != nil {
		defaultPremium = *opts.DefaultPremium
	}
	profitThreshold := s.profitThreshold
	if opts.ProfitThreshold != nil {
		profitThreshold = *opts.ProfitThreshold
	}
	priorityFloor := opts.PriorityFloor
	if !priorityFloor.Valid() {
		priorityFloor = s.priorityFloor
	}

	marketCtx, err := s.portfolio.MarketContext(now, defaultPremium, profitThreshold)
	if err != nil {
		return nil, err
	}

	configs, err := s.configs.All()
	if err != nil {
		return nil, err
	}

	recs := s.engine.Generate(marketCtx, configs)
	report := &RunReport{
		RanAt:           now,
		DryRun:          opts.DryRun,
		Generated:       len(recs),
		Recommendations: recs,
	}

	expiresAt := now.Add(snapshotTTL)
	for _, rec := range recs {
		if err := s.store.Create(rec, now, &expiresAt); err != nil {
			// A lost snapshot breaks reconciliation, so this aborts the run.
			return nil, err
		}
	}

	for _, rec := range recs {
		decision, err := s.throttle.ShouldSend(rec.StrategyType, rec.ID, rec.PotentialIncome, now)
		if err != nil {
			return report, err
		}
		if !decision.Allowed {
			report.Throttled++
			s.log.Debug().
				Str("recommendation_id", rec.ID).
				Str("reason", decision.Reason).
				Msg("Recommendation throttled")
			continue
		}

		if opts.DryRun {
			// A dry run still counts what would have gone out, but nothing is
			// dispatched and the throttle budget stays untouched.
			report.Notified++
			continue
		}

		result, err := s.dispatch.Dispatch(ctx, rec, configs[rec.StrategyType], priorityFloor, now)
		if err != nil {
			return report, err
		}
		if !result.VerboseSent {
			continue
		}

		report.Notified++
		if err := s.throttle.RecordSent(rec.StrategyType, rec.ID, rec.PotentialIncome, now); err != nil {
			return report, err
		}
		if err := s.store.MarkNotified(rec.ID, snapshots.TrackVerbose, now); err != nil {
			return report, err
		}
		if result.SmartSent {
			if err := s.store.MarkNotified(rec.ID, snapshots.TrackSmart, now); err != nil {
				return report, err
			}
		}
	}

	s.log.Info().
		Bool("dry_run", report.DryRun).
		Int("generated", report.Generated).
		Int("notified", report.Notified).
		Int("throttled", report.Throttled).
		Msg("Advisory run complete")

	return report, nil
}
