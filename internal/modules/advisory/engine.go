// Package advisory runs the recommendation pipeline: evaluate every enabled
// strategy against the portfolio, persist snapshots, throttle, and dispatch.
package advisory

import (
	"sort"

	"github.com/mleventi/wheelhouse/internal/domain"
	"github.com/mleventi/wheelhouse/internal/modules/strategies"
	"github.com/rs/zerolog"
)

// Engine evaluates strategies in registry order and produces a deduplicated,
// ranked recommendation list. The engine itself has no persistence; the run
// orchestrator owns that.
type Engine struct {
	registry *strategies.Registry
	log      zerolog.Logger
}

// NewEngine creates a recommendation engine over the registry.
func NewEngine(registry *strategies.Registry, log zerolog.Logger) *Engine {
	return &Engine{
		registry: registry,
		log:      log.With().Str("service", "engine").Logger(),
	}
}

// Generate runs every enabled strategy against the market context. A strategy
// that returns an error is logged and skipped; the rest of the run proceeds.
// configs may omit strategies, which then run with defaults.
func (e *Engine) Generate(ctx *domain.MarketContext, configs map[string]*domain.StrategyConfig) []domain.Recommendation {
	byID := make(map[string]domain.Recommendation)
	var order []string

	for _, strategy := range e.registry.All() {
		cfg := configs[strategy.Type()]
		if cfg != nil && !cfg.Enabled {
			e.log.Debug().Str("strategy", strategy.Type()).Msg("Strategy disabled, skipping")
			continue
		}

		params := mergeParams(strategy.DefaultParameters(), cfg)

		recs, err := strategy.Generate(ctx, params)
		if err != nil {
			e.log.Error().Err(err).Str("strategy", strategy.Type()).Msg("Strategy failed, skipping")
			continue
		}

		for _, rec := range recs {
			rec.GeneratedAt = ctx.Today
			if _, seen := byID[rec.ID]; !seen {
				order = append(order, rec.ID)
			}
			// Later strategies win on id collision.
			byID[rec.ID] = rec
		}

		e.log.Debug().
			Str("strategy", strategy.Type()).
			Int("recommendations", len(recs)).
			Msg("Strategy evaluated")
	}

	recs := make([]domain.Recommendation, 0, len(order))
	for _, id := range order {
		recs = append(recs, byID[id])
	}

	Rank(recs)
	return recs
}

// Rank sorts recommendations in place: priority first, then higher potential
// income, then id as the deterministic tie-break.
func Rank(recs []domain.Recommendation) {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Priority.Rank() != recs[j].Priority.Rank() {
			return recs[i].Priority.Rank() < recs[j].Priority.Rank()
		}
		if recs[i].PotentialIncome != recs[j].PotentialIncome {
			return recs[i].PotentialIncome > recs[j].PotentialIncome
		}
		return recs[i].ID < recs[j].ID
	})
}

// mergeParams overlays stored configuration onto the strategy defaults.
// Stored values win key by key.
func mergeParams(defaults map[string]interface{}, cfg *domain.StrategyConfig) map[string]interface{} {
	merged := make(map[string]interface{}, len(defaults))
	for k, v := range defaults {
		merged[k] = v
	}
	if cfg != nil {
		for k, v := range cfg.Parameters {
			merged[k] = v
		}
	}
	return merged
}
