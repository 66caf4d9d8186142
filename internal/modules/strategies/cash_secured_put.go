package strategies

import (
	"fmt"
	"math"
	"sort"

	"github.com/mleventi/wheelhouse/internal/domain"
	"github.com/rs/zerolog"
)

// CashSecuredPutStrategy puts idle settled cash to work by recommending
// cash-secured puts on symbols already held. Restricting candidates to held
// symbols avoids advising entries the user never chose.
type CashSecuredPutStrategy struct {
	log zerolog.Logger
}

// NewCashSecuredPutStrategy creates a new cash-secured put strategy.
func NewCashSecuredPutStrategy(log zerolog.Logger) *CashSecuredPutStrategy {
	return &CashSecuredPutStrategy{
		log: log.With().Str("strategy", "cash_secured_put").Logger(),
	}
}

// Type returns the strategy identifier.
func (s *CashSecuredPutStrategy) Type() string {
	return "cash_secured_put"
}

// Category returns the advice category.
func (s *CashSecuredPutStrategy) Category() domain.Category {
	return domain.CategoryIncomeGeneration
}

// DefaultParameters returns the built-in parameter values.
func (s *CashSecuredPutStrategy) DefaultParameters() map[string]interface{} {
	return map[string]interface{}{
		"cash_reserve":  1000.0, // never commit the last of the cash
		"otm_buffer":    0.05,   // strike = spot * (1 - buffer)
		"expiry_days":   30,
		"max_positions": 2,
	}
}

// Generate emits cash-secured put recommendations while collateral remains.
func (s *CashSecuredPutStrategy) Generate(ctx *domain.MarketContext, params map[string]interface{}) ([]domain.Recommendation, error) {
	cashReserve := GetFloatParam(params, "cash_reserve", 1000.0)
	otmBuffer := GetFloatParam(params, "otm_buffer", 0.05)
	expiryDays := GetIntParam(params, "expiry_days", 30)
	maxPositions := GetIntParam(params, "max_positions", 2)

	available := ctx.CashAvailable - cashReserve
	if available <= 0 {
		s.log.Debug().Float64("cash", ctx.CashAvailable).Msg("No deployable cash")
		return nil, nil
	}

	// Symbols with an open short put already secured by this cash
	hasShortPut := make(map[string]bool)
	for _, op := range ctx.OptionPositions {
		if op.Short() && op.OptionType == domain.OptionTypePut {
			hasShortPut[op.Symbol] = true
		}
	}

	positions := make([]domain.Position, len(ctx.Positions))
	copy(positions, ctx.Positions)
	sort.Slice(positions, func(i, j int) bool { return positions[i].Symbol < positions[j].Symbol })

	var recs []domain.Recommendation
	expiration := ctx.Today.AddDate(0, 0, expiryDays).Format("2006-01-02")

	for _, pos := range positions {
		if len(recs) >= maxPositions {
			break
		}
		if pos.CurrentPrice <= 0 || hasShortPut[pos.Symbol] {
			continue
		}

		strike := math.Floor(pos.CurrentPrice * (1 - otmBuffer))
		collateral := strike * 100
		if collateral <= 0 || collateral > available {
			continue
		}

		contracts := int(available / collateral)
		if contracts < 1 {
			continue
		}

		premium := ctx.DefaultPremium
		income := premium * 100 * float64(contracts)
		available -= collateral * float64(contracts)

		recs = append(recs, domain.Recommendation{
			ID:           domain.RecommendationID(s.Type(), pos.Symbol, ctx.Today),
			StrategyType: s.Type(),
			Category:     s.Category(),
			Priority:     domain.PriorityMedium,
			Title:        fmt.Sprintf("Sell %d cash-secured put(s) on %s", contracts, pos.Symbol),
			Description: fmt.Sprintf("Idle cash can secure %d x %s $%.0f PUT %s for about %.0f in premium",
				contracts, pos.Symbol, strike, expiration, income),
			Rationale: fmt.Sprintf("Cash above the %.0f reserve earns nothing; assignment adds shares %.0f%% below the current price",
				cashReserve, otmBuffer*100),
			Action:          fmt.Sprintf("SELL %d %s $%.0f PUT %s", contracts, pos.Symbol, strike, expiration),
			ActionType:      "sell_to_open",
			PotentialIncome: income,
			PotentialRisk:   collateral * float64(contracts),
			TimeHorizon:     fmt.Sprintf("%d days", expiryDays),
			Context: domain.RecommendationContext{
				Symbol:       pos.Symbol,
				OptionType:   domain.OptionTypePut,
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

	s.log.Debug().Int("recommendations", len(recs)).Msg("Cash-secured put scan complete")
	return recs, nil
}
