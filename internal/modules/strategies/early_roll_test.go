package strategies

import (
	"testing"
	"time"

	"github.com/mleventi/wheelhouse/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext(today time.Time) *domain.MarketContext {
	return &domain.MarketContext{
		Today:           today,
		DefaultPremium:  1.50,
		ProfitThreshold: 0.80,
	}
}

func shortPut(symbol string, strike, openPremium, currentPremium float64, expiration string) domain.OptionPosition {
	return domain.OptionPosition{
		Symbol:         symbol,
		OptionType:     domain.OptionTypePut,
		Side:           "short",
		Strike:         strike,
		Expiration:     expiration,
		Contracts:      1,
		OpenPremium:    openPremium,
		CurrentPremium: currentPremium,
	}
}

func TestEarlyRoll_EmitsAtThreshold(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	strategy := NewEarlyRollStrategy(log)
	today := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	ctx := testContext(today)
	// 85% of max profit captured, 10 days remaining
	ctx.OptionPositions = []domain.OptionPosition{
		shortPut("AVGO", 370, 4.00, 0.60, "2026-03-12"),
	}

	recs, err := strategy.Generate(ctx, strategy.DefaultParameters())
	require.NoError(t, err)
	require.Len(t, recs, 1)

	rec := recs[0]
	assert.Equal(t, domain.PriorityHigh, rec.Priority)
	assert.Equal(t, "early_roll_opportunity_AVGO_2026-03-02", rec.ID)
	assert.Equal(t, "roll", rec.ActionType)
	assert.True(t, rec.Context.IsRoll())
	assert.Equal(t, "2026-04-09", rec.Context.NewExpiration)
	assert.InDelta(t, 0.85, rec.Context.ProfitPercent, 1e-9)
	// potential_income recomputable from context
	assert.InDelta(t, rec.Context.NewPremium*100*float64(rec.Context.Contracts), rec.PotentialIncome, 1e-9)
}

func TestEarlyRoll_NoOpportunityBelowThreshold(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	strategy := NewEarlyRollStrategy(log)
	today := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	ctx := testContext(today)
	// only 60% captured
	ctx.OptionPositions = []domain.OptionPosition{
		shortPut("AVGO", 370, 4.00, 1.60, "2026-03-12"),
	}

	recs, err := strategy.Generate(ctx, strategy.DefaultParameters())
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestEarlyRoll_TooCloseToExpiry(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	strategy := NewEarlyRollStrategy(log)
	today := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	ctx := testContext(today)
	// 85% captured but only 3 days left: not worth the friction
	ctx.OptionPositions = []domain.OptionPosition{
		shortPut("AVGO", 370, 4.00, 0.60, "2026-03-05"),
	}

	recs, err := strategy.Generate(ctx, strategy.DefaultParameters())
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestEarlyRoll_IgnoresLongPositions(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	strategy := NewEarlyRollStrategy(log)
	today := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	ctx := testContext(today)
	long := shortPut("AVGO", 370, 4.00, 0.60, "2026-03-12")
	long.Side = "long"
	ctx.OptionPositions = []domain.OptionPosition{long}

	recs, err := strategy.Generate(ctx, strategy.DefaultParameters())
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestEarlyRoll_ConfigOverridesThreshold(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	strategy := NewEarlyRollStrategy(log)
	today := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	ctx := testContext(today)
	ctx.OptionPositions = []domain.OptionPosition{
		shortPut("AVGO", 370, 4.00, 1.60, "2026-03-12"), // 60%
	}

	params := strategy.DefaultParameters()
	params["profit_threshold"] = 0.50

	recs, err := strategy.Generate(ctx, params)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}
