package strategies

import (
	"fmt"
	"math"
	"sort"

	"github.com/mleventi/wheelhouse/internal/domain"
	"github.com/rs/zerolog"
)

// CoveredCallStrategy finds share lots sitting uncovered and recommends
// selling calls against them. 100 uncovered shares is one missed contract of
// premium income per cycle.
type CoveredCallStrategy struct {
	log zerolog.Logger
}

// NewCoveredCallStrategy creates a new covered call income strategy.
func NewCoveredCallStrategy(log zerolog.Logger) *CoveredCallStrategy {
	return &CoveredCallStrategy{
		log: log.With().Str("strategy", "covered_call_income").Logger(),
	}
}

// Type returns the strategy identifier.
func (s *CoveredCallStrategy) Type() string {
	return "covered_call_income"
}

// Category returns the advice category.
func (s *CoveredCallStrategy) Category() domain.Category {
	return domain.CategoryIncomeGeneration
}

// DefaultParameters returns the built-in parameter values.
func (s *CoveredCallStrategy) DefaultParameters() map[string]interface{} {
	return map[string]interface{}{
		"otm_buffer":            0.05, // strike = spot * (1 + buffer)
		"expiry_days":           30,
		"high_income_threshold": 200.0, // income above this bumps priority to high
	}
}

// Generate emits one covered call recommendation per symbol with uncovered lots.
func (s *CoveredCallStrategy) Generate(ctx *domain.MarketContext, params map[string]interface{}) ([]domain.Recommendation, error) {
	otmBuffer := GetFloatParam(params, "otm_buffer", 0.05)
	expiryDays := GetIntParam(params, "expiry_days", 30)
	highIncomeThreshold := GetFloatParam(params, "high_income_threshold", 200.0)

	// Contracts of short calls already written per symbol
	coveredContracts := make(map[string]int)
	for _, op := range ctx.OptionPositions {
		if op.Short() && op.OptionType == domain.OptionTypeCall {
			coveredContracts[op.Symbol] += op.Contracts
		}
	}

	// Sorted copy keeps output order independent of snapshot load order
	positions := make([]domain.Position, len(ctx.Positions))
	copy(positions, ctx.Positions)
	sort.Slice(positions, func(i, j int) bool { return positions[i].Symbol < positions[j].Symbol })

	var recs []domain.Recommendation

	for _, pos := range positions {
		if pos.CurrentPrice <= 0 {
			s.log.Debug().Str("symbol", pos.Symbol).Msg("No current price, skipping")
			continue
		}

		uncoveredShares := int(pos.Quantity) - coveredContracts[pos.Symbol]*100
		contracts := uncoveredShares / 100
		if contracts <= 0 {
			continue
		}

		premium := ctx.DefaultPremium
		strike := math.Ceil(pos.CurrentPrice * (1 + otmBuffer))
		expiration := ctx.Today.AddDate(0, 0, expiryDays).Format("2006-01-02")
		income := premium * 100 * float64(contracts)

		priority := domain.PriorityMedium
		if income >= highIncomeThreshold {
			priority = domain.PriorityHigh
		}

		recs = append(recs, domain.Recommendation{
			ID:           domain.RecommendationID(s.Type(), pos.Symbol, ctx.Today),
			StrategyType: s.Type(),
			Category:     s.Category(),
			Priority:     priority,
			Title:        fmt.Sprintf("Sell %d covered call(s) on %s", contracts, pos.Symbol),
			Description: fmt.Sprintf("%d uncovered shares of %s at %.2f; a $%.0f call expiring %s earns roughly %.0f",
				uncoveredShares, pos.Symbol, pos.CurrentPrice, strike, expiration, income),
			Rationale: fmt.Sprintf("Shares held without calls written generate no premium; %.0f%% OTM strike keeps upside room",
				otmBuffer*100),
			Action:          fmt.Sprintf("SELL %d %s $%.0f CALL %s", contracts, pos.Symbol, strike, expiration),
			ActionType:      "sell_to_open",
			PotentialIncome: income,
			PotentialRisk:   0, // covered: assignment sells shares already held
			TimeHorizon:     fmt.Sprintf("%d days", expiryDays),
			Context: domain.RecommendationContext{
				Symbol:       pos.Symbol,
				OptionType:   domain.OptionTypeCall,
				Strike:       strike,
				Expiration:   expiration,
				Premium:      premium,
				Contracts:    contracts,
				CurrentPrice: pos.CurrentPrice,
				MaxProfit:    income,
			},
			GeneratedAt: ctx.Today,
		})
	}

	s.log.Debug().Int("recommendations", len(recs)).Msg("Covered call scan complete")
	return recs, nil
}
