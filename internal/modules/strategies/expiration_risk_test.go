package strategies

import (
	"testing"
	"time"

	"github.com/mleventi/wheelhouse/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpirationRisk_ITMNearExpiry(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	strategy := NewExpirationRiskStrategy(log)
	today := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	ctx := testContext(today)
	ctx.Positions = []domain.Position{
		{Symbol: "NVDA", Quantity: 100, CurrentPrice: 118},
	}
	ctx.OptionPositions = []domain.OptionPosition{
		// short 120 put, spot 118: ITM, 4 days left
		{Symbol: "NVDA", OptionType: domain.OptionTypePut, Side: "short", Contracts: 1,
			Strike: 120, Expiration: "2026-03-06", OpenPremium: 2.0, CurrentPremium: 2.6},
	}

	recs, err := strategy.Generate(ctx, strategy.DefaultParameters())
	require.NoError(t, err)
	require.Len(t, recs, 1)

	rec := recs[0]
	assert.Equal(t, domain.PriorityHigh, rec.Priority)
	assert.Equal(t, domain.CategoryRiskManagement, rec.Category)
	// intrinsic 2.00 * 100 * 1
	assert.InDelta(t, 200.0, rec.PotentialRisk, 1e-9)
	assert.True(t, rec.Context.IsRoll())
}

func TestExpirationRisk_UrgentInsideTwoDays(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	strategy := NewExpirationRiskStrategy(log)
	today := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	ctx := testContext(today)
	ctx.Positions = []domain.Position{
		{Symbol: "NVDA", Quantity: 100, CurrentPrice: 118},
	}
	ctx.OptionPositions = []domain.OptionPosition{
		{Symbol: "NVDA", OptionType: domain.OptionTypePut, Side: "short", Contracts: 1,
			Strike: 120, Expiration: "2026-03-03", OpenPremium: 2.0, CurrentPremium: 2.6},
	}

	recs, err := strategy.Generate(ctx, strategy.DefaultParameters())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, domain.PriorityUrgent, recs[0].Priority)
}

func TestExpirationRisk_OTMIsQuiet(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	strategy := NewExpirationRiskStrategy(log)
	today := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	ctx := testContext(today)
	ctx.Positions = []domain.Position{
		{Symbol: "NVDA", Quantity: 100, CurrentPrice: 125},
	}
	ctx.OptionPositions = []domain.OptionPosition{
		// short 120 put, spot 125: OTM, no action needed
		{Symbol: "NVDA", OptionType: domain.OptionTypePut, Side: "short", Contracts: 1,
			Strike: 120, Expiration: "2026-03-06", OpenPremium: 2.0, CurrentPremium: 0.4},
	}

	recs, err := strategy.Generate(ctx, strategy.DefaultParameters())
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestExpirationRisk_NoSpotPriceSkips(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	strategy := NewExpirationRiskStrategy(log)
	today := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	ctx := testContext(today)
	ctx.OptionPositions = []domain.OptionPosition{
		{Symbol: "XYZ", OptionType: domain.OptionTypePut, Side: "short", Contracts: 1,
			Strike: 120, Expiration: "2026-03-06", OpenPremium: 2.0, CurrentPremium: 2.6},
	}

	recs, err := strategy.Generate(ctx, strategy.DefaultParameters())
	require.NoError(t, err)
	assert.Empty(t, recs)
}
