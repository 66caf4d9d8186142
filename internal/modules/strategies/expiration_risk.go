package strategies

import (
	"fmt"
	"time"

	"github.com/mleventi/wheelhouse/internal/domain"
	"github.com/rs/zerolog"
)

// ExpirationRiskStrategy flags short options close to expiry that are in the
// money. Letting them ride into expiration week risks assignment at an
// unfavorable price; the advice is to close or roll while liquidity is good.
type ExpirationRiskStrategy struct {
	log zerolog.Logger
}

// NewExpirationRiskStrategy creates a new expiration risk strategy.
func NewExpirationRiskStrategy(log zerolog.Logger) *ExpirationRiskStrategy {
	return &ExpirationRiskStrategy{
		log: log.With().Str("strategy", "expiration_risk").Logger(),
	}
}

// Type returns the strategy identifier.
func (s *ExpirationRiskStrategy) Type() string {
	return "expiration_risk"
}

// Category returns the advice category.
func (s *ExpirationRiskStrategy) Category() domain.Category {
	return domain.CategoryRiskManagement
}

// DefaultParameters returns the built-in parameter values.
func (s *ExpirationRiskStrategy) DefaultParameters() map[string]interface{} {
	return map[string]interface{}{
		"warning_days":  5,
		"urgent_days":   2,
		"roll_out_days": 28,
	}
}

// Generate emits a close-or-roll recommendation per threatened short option.
func (s *ExpirationRiskStrategy) Generate(ctx *domain.MarketContext, params map[string]interface{}) ([]domain.Recommendation, error) {
	warningDays := GetIntParam(params, "warning_days", 5)
	urgentDays := GetIntParam(params, "urgent_days", 2)
	rollOutDays := GetIntParam(params, "roll_out_days", 28)

	spot := make(map[string]float64)
	for _, pos := range ctx.Positions {
		spot[pos.Symbol] = pos.CurrentPrice
	}

	var recs []domain.Recommendation

	for _, pos := range ctx.OptionPositions {
		if !pos.Short() {
			continue
		}

		daysLeft := pos.DaysToExpiry(ctx.Today)
		if daysLeft > warningDays {
			continue
		}

		price, ok := spot[pos.Symbol]
		if !ok || price <= 0 {
			s.log.Debug().Str("symbol", pos.Symbol).Msg("No underlying price, cannot assess moneyness")
			continue
		}

		inTheMoney := false
		var intrinsic float64
		switch pos.OptionType {
		case domain.OptionTypeCall:
			inTheMoney = price > pos.Strike
			intrinsic = price - pos.Strike
		case domain.OptionTypePut:
			inTheMoney = price < pos.Strike
			intrinsic = pos.Strike - price
		}
		if !inTheMoney {
			continue
		}

		priority := domain.PriorityHigh
		if daysLeft <= urgentDays {
			priority = domain.PriorityUrgent
		}

		exp, err := time.ParseInLocation("2006-01-02", pos.Expiration, ctx.Today.Location())
		if err != nil {
			continue
		}
		newExpiration := exp.AddDate(0, 0, rollOutDays).Format("2006-01-02")
		assignmentExposure := intrinsic * 100 * float64(pos.Contracts)

		recs = append(recs, domain.Recommendation{
			ID:           domain.RecommendationID(s.Type(), pos.Symbol, ctx.Today),
			StrategyType: s.Type(),
			Category:     s.Category(),
			Priority:     priority,
			Title:        fmt.Sprintf("%s %s $%.0f is ITM with %d days left", pos.Symbol, pos.OptionType, pos.Strike, daysLeft),
			Description: fmt.Sprintf("Short %s %s $%.2f %s is %.2f in the money (spot %.2f)",
				pos.Symbol, pos.OptionType, pos.Strike, pos.Expiration, intrinsic, price),
			Rationale: fmt.Sprintf("Assignment exposure of %.0f if held through expiry; rolling to %s buys time for the position to recover",
				assignmentExposure, newExpiration),
			Action: fmt.Sprintf("Buy to close %s %s $%.2f %s, or roll out to %s",
				pos.Symbol, pos.OptionType, pos.Strike, pos.Expiration, newExpiration),
			ActionType:      "close_or_roll",
			PotentialIncome: ctx.DefaultPremium * 100 * float64(pos.Contracts),
			PotentialRisk:   assignmentExposure,
			TimeHorizon:     fmt.Sprintf("%d days", daysLeft),
			Context: domain.RecommendationContext{
				Symbol:        pos.Symbol,
				OptionType:    pos.OptionType,
				Strike:        pos.Strike,
				Expiration:    pos.Expiration,
				Premium:       pos.OpenPremium,
				Contracts:     pos.Contracts,
				CurrentPrice:  price,
				ProfitPercent: pos.ProfitPercent(),
				DaysToExpiry:  daysLeft,
				NewStrike:     pos.Strike,
				NewExpiration: newExpiration,
				NewPremium:    ctx.DefaultPremium,
				MaxProfit:     ctx.DefaultPremium * 100 * float64(pos.Contracts),
			},
			GeneratedAt: ctx.Today,
		})
	}

	s.log.Debug().Int("recommendations", len(recs)).Msg("Expiration risk scan complete")
	return recs, nil
}
