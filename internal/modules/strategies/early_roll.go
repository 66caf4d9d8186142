package strategies

import (
	"fmt"
	"time"

	"github.com/mleventi/wheelhouse/internal/domain"
	"github.com/rs/zerolog"
)

// EarlyRollStrategy identifies short options that have captured most of their
// maximum profit with meaningful time still on the clock. Closing or rolling
// early redeploys the capital instead of holding for the last few percent.
type EarlyRollStrategy struct {
	log zerolog.Logger
}

// NewEarlyRollStrategy creates a new early roll strategy.
func NewEarlyRollStrategy(log zerolog.Logger) *EarlyRollStrategy {
	return &EarlyRollStrategy{
		log: log.With().Str("strategy", "early_roll_opportunity").Logger(),
	}
}

// Type returns the strategy identifier.
func (s *EarlyRollStrategy) Type() string {
	return "early_roll_opportunity"
}

// Category returns the advice category.
func (s *EarlyRollStrategy) Category() domain.Category {
	return domain.CategoryOptimization
}

// DefaultParameters returns the built-in parameter values.
func (s *EarlyRollStrategy) DefaultParameters() map[string]interface{} {
	return map[string]interface{}{
		"profit_threshold":   0.80, // fraction of max profit captured
		"min_days_remaining": 7,    // rolling with less time left is not worth the friction
		"roll_out_days":      28,
	}
}

// Generate emits one roll recommendation per qualifying short option.
func (s *EarlyRollStrategy) Generate(ctx *domain.MarketContext, params map[string]interface{}) ([]domain.Recommendation, error) {
	defaultThreshold := 0.80
	if ctx.ProfitThreshold > 0 {
		defaultThreshold = ctx.ProfitThreshold
	}
	profitThreshold := GetFloatParam(params, "profit_threshold", defaultThreshold)
	minDaysRemaining := GetIntParam(params, "min_days_remaining", 7)
	rollOutDays := GetIntParam(params, "roll_out_days", 28)

	var recs []domain.Recommendation

	for _, pos := range ctx.OptionPositions {
		if !pos.Short() {
			continue
		}

		profit := pos.ProfitPercent()
		daysLeft := pos.DaysToExpiry(ctx.Today)

		if profit < profitThreshold {
			continue
		}
		if daysLeft < minDaysRemaining {
			continue
		}

		exp, err := time.ParseInLocation("2006-01-02", pos.Expiration, ctx.Today.Location())
		if err != nil {
			s.log.Warn().
				Str("symbol", pos.Symbol).
				Str("expiration", pos.Expiration).
				Msg("Skipping position with malformed expiration")
			continue
		}
		newExpiration := exp.AddDate(0, 0, rollOutDays).Format("2006-01-02")

		newPremium := ctx.DefaultPremium
		potentialIncome := newPremium * 100 * float64(pos.Contracts)

		recs = append(recs, domain.Recommendation{
			ID:           domain.RecommendationID(s.Type(), pos.Symbol, ctx.Today),
			StrategyType: s.Type(),
			Category:     s.Category(),
			Priority:     domain.PriorityHigh,
			Title:        fmt.Sprintf("Roll %s %s $%.0f early", pos.Symbol, pos.OptionType, pos.Strike),
			Description: fmt.Sprintf("%s %s $%.2f %s has captured %.0f%% of max profit with %d days remaining",
				pos.Symbol, pos.OptionType, pos.Strike, pos.Expiration, profit*100, daysLeft),
			Rationale: fmt.Sprintf("Only %.0f%% of premium left to earn over %d days; rolling to %s restarts income",
				(1-profit)*100, daysLeft, newExpiration),
			Action: fmt.Sprintf("Buy to close %s %s $%.2f %s, sell to open %s",
				pos.Symbol, pos.OptionType, pos.Strike, pos.Expiration, newExpiration),
			ActionType:      "roll",
			PotentialIncome: potentialIncome,
			PotentialRisk:   pos.Strike * 100 * float64(pos.Contracts),
			TimeHorizon:     fmt.Sprintf("%d days", rollOutDays),
			Context: domain.RecommendationContext{
				Symbol:        pos.Symbol,
				OptionType:    pos.OptionType,
				Strike:        pos.Strike,
				Expiration:    pos.Expiration,
				Premium:       pos.OpenPremium,
				Contracts:     pos.Contracts,
				ProfitPercent: profit,
				DaysToExpiry:  daysLeft,
				NewStrike:     pos.Strike,
				NewExpiration: newExpiration,
				NewPremium:    newPremium,
				MaxProfit:     potentialIncome,
			},
			GeneratedAt: ctx.Today,
		})
	}

	s.log.Debug().Int("recommendations", len(recs)).Msg("Early roll scan complete")
	return recs, nil
}
