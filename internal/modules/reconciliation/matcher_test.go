package reconciliation

import (
	"testing"
	"time"

	"github.com/mleventi/wheelhouse/internal/domain"
	"github.com/mleventi/wheelhouse/internal/modules/snapshots"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snap(id, symbol string, optionType domain.OptionType, strike float64, expiration string, createdAt time.Time) snapshots.Snapshot {
	s := snapshots.Snapshot{}
	s.ID = id
	s.StrategyType = "cash_secured_put"
	s.CreatedAt = createdAt
	s.Context = domain.RecommendationContext{
		Symbol:     symbol,
		OptionType: optionType,
		Strike:     strike,
		Expiration: expiration,
		Premium:    1.50,
	}
	return s
}

func exec(id int64, symbol string, optionType domain.OptionType, strike float64, expiration string) domain.OptionExecution {
	return domain.OptionExecution{
		ID:         id,
		OrderID:    "ord",
		Symbol:     symbol,
		OptionType: optionType,
		Side:       "sell",
		Strike:     strike,
		Expiration: expiration,
		Quantity:   1,
		Premium:    1.45,
		ExecutedAt: time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC),
	}
}

func matchesByType(matches []Match, t domain.MatchType) []Match {
	var out []Match
	for _, m := range matches {
		if m.MatchType == t {
			out = append(out, m)
		}
	}
	return out
}

func TestExactMatchLeavesOthersIndependent(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	snaps := []snapshots.Snapshot{
		snap("cash_secured_put_AVGO_2026-03-02", "AVGO", domain.OptionTypePut, 370, "2026-04-09", day),
	}
	execs := []domain.OptionExecution{
		exec(1, "AVGO", domain.OptionTypePut, 370, "2026-04-09"),
		exec(2, "AVGO", domain.OptionTypePut, 375, "2026-04-09"),
	}

	matches := MatchDay(day, snaps, execs)
	require.Len(t, matches, 2)

	exact := matchesByType(matches, domain.MatchExact)
	require.Len(t, exact, 1)
	assert.Equal(t, "cash_secured_put_AVGO_2026-03-02", *exact[0].RecommendationSnapshotID)
	assert.Equal(t, int64(1), *exact[0].ExecutionID)
	assert.Equal(t, 370.0, exact[0].ExecutedStrike)

	independent := matchesByType(matches, domain.MatchIndependent)
	require.Len(t, independent, 1)
	assert.Equal(t, int64(2), *independent[0].ExecutionID)
	assert.Nil(t, independent[0].RecommendationSnapshotID)
}

func TestPartialMatchNearestStrike(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	snaps := []snapshots.Snapshot{
		snap("cash_secured_put_AVGO_2026-03-02", "AVGO", domain.OptionTypePut, 370, "2026-04-09", day),
	}
	execs := []domain.OptionExecution{
		exec(1, "AVGO", domain.OptionTypePut, 380, "2026-04-09"),
		exec(2, "AVGO", domain.OptionTypePut, 365, "2026-04-09"),
	}

	matches := MatchDay(day, snaps, execs)

	partial := matchesByType(matches, domain.MatchPartial)
	require.Len(t, partial, 1)
	// 365 is 5 away, 380 is 10 away.
	assert.Equal(t, int64(2), *partial[0].ExecutionID)
	assert.Len(t, matchesByType(matches, domain.MatchIndependent), 1)
}

func TestPartialMatchTieGoesToEarliestRecommendation(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	snaps := []snapshots.Snapshot{
		snap("cash_secured_put_AVGO_2026-03-02", "AVGO", domain.OptionTypePut, 380, "2026-04-09", day),
		snap("cash_secured_put_AVGO_2026-03-01", "AVGO", domain.OptionTypePut, 360, "2026-04-09", day.AddDate(0, 0, -1)),
	}
	execs := []domain.OptionExecution{
		exec(1, "AVGO", domain.OptionTypePut, 370, "2026-04-09"),
	}

	matches := MatchDay(day, snaps, execs)

	partial := matchesByType(matches, domain.MatchPartial)
	require.Len(t, partial, 1)
	// Both recommendations are 10 away; the earlier id wins.
	assert.Equal(t, "cash_secured_put_AVGO_2026-03-01", *partial[0].RecommendationSnapshotID)

	missed := matchesByType(matches, domain.MatchMissed)
	require.Len(t, missed, 1)
	assert.Equal(t, "cash_secured_put_AVGO_2026-03-02", *missed[0].RecommendationSnapshotID)
}

func TestDifferentOptionTypeNeverPairs(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	snaps := []snapshots.Snapshot{
		snap("cash_secured_put_AVGO_2026-03-02", "AVGO", domain.OptionTypePut, 370, "2026-04-09", day),
	}
	execs := []domain.OptionExecution{
		exec(1, "AVGO", domain.OptionTypeCall, 370, "2026-04-09"),
	}

	matches := MatchDay(day, snaps, execs)

	assert.Len(t, matchesByType(matches, domain.MatchMissed), 1)
	assert.Len(t, matchesByType(matches, domain.MatchIndependent), 1)
	assert.Empty(t, matchesByType(matches, domain.MatchExact))
}

func TestRollMatchesOnNewLeg(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	roll := snapshots.Snapshot{}
	roll.ID = "early_roll_opportunity_AVGO_2026-03-02"
	roll.StrategyType = "early_roll_opportunity"
	roll.CreatedAt = day
	roll.Context = domain.RecommendationContext{
		Symbol:        "AVGO",
		OptionType:    domain.OptionTypePut,
		Strike:        370,
		Expiration:    "2026-03-12",
		NewStrike:     370,
		NewExpiration: "2026-04-09",
		NewPremium:    1.20,
	}

	execs := []domain.OptionExecution{
		exec(1, "AVGO", domain.OptionTypePut, 370, "2026-04-09"),
	}

	matches := MatchDay(day, []snapshots.Snapshot{roll}, execs)

	exact := matchesByType(matches, domain.MatchExact)
	require.Len(t, exact, 1)
	assert.Equal(t, "2026-04-09", exact[0].RecommendedExpiration)
	assert.Equal(t, 1.20, exact[0].RecommendedPremium)
}

func TestSnapshotWithoutOptionLegIgnored(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	bare := snapshots.Snapshot{}
	bare.ID = "note_2026-03-02"
	bare.CreatedAt = day
	bare.Context = domain.RecommendationContext{Symbol: "AVGO"}

	matches := MatchDay(day, []snapshots.Snapshot{bare}, nil)
	assert.Empty(t, matches)
}

func TestNoInputsNoMatches(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	assert.Empty(t, MatchDay(day, nil, nil))
}
