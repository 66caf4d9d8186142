package strategyconfig

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
	"github.com/mleventi/wheelhouse/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE strategy_configs (
			strategy_type TEXT PRIMARY KEY,
			enabled INTEGER NOT NULL DEFAULT 1,
			notification_enabled INTEGER NOT NULL DEFAULT 1,
			notification_priority_threshold TEXT NOT NULL DEFAULT 'low',
			parameters TEXT NOT NULL DEFAULT '{}',
			updated_at INTEGER NOT NULL
		)
	`)
	require.NoError(t, err)

	return db
}

func testRepo(t *testing.T) *Repository {
	return NewRepository(setupTestDB(t), zerolog.New(nil).Level(zerolog.Disabled))
}

func TestUpsertAndGet(t *testing.T) {
	repo := testRepo(t)

	err := repo.Upsert(domain.StrategyConfig{
		StrategyType:                  "covered_call",
		Enabled:                       true,
		NotificationEnabled:           true,
		NotificationPriorityThreshold: domain.PriorityMedium,
		Parameters:                    map[string]interface{}{"profit_threshold": 0.85},
	})
	require.NoError(t, err)

	cfg, err := repo.Get("covered_call")
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, domain.PriorityMedium, cfg.NotificationPriorityThreshold)
	assert.Equal(t, 0.85, cfg.Parameters["profit_threshold"])
	assert.False(t, cfg.UpdatedAt.IsZero())
}

func TestGetMissingReturnsNil(t *testing.T) {
	repo := testRepo(t)

	cfg, err := repo.Get("cash_secured_put")
	require.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestUpsertReplacesExisting(t *testing.T) {
	repo := testRepo(t)

	require.NoError(t, repo.Upsert(domain.StrategyConfig{
		StrategyType:                  "early_roll",
		Enabled:                       true,
		NotificationEnabled:           true,
		NotificationPriorityThreshold: domain.PriorityLow,
	}))
	require.NoError(t, repo.Upsert(domain.StrategyConfig{
		StrategyType:                  "early_roll",
		Enabled:                       false,
		NotificationEnabled:           false,
		NotificationPriorityThreshold: domain.PriorityHigh,
	}))

	cfg, err := repo.Get("early_roll")
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.False(t, cfg.Enabled)
	assert.False(t, cfg.NotificationEnabled)
	assert.Equal(t, domain.PriorityHigh, cfg.NotificationPriorityThreshold)
}

func TestUpsertRejectsInvalidThreshold(t *testing.T) {
	repo := testRepo(t)

	err := repo.Upsert(domain.StrategyConfig{
		StrategyType:                  "covered_call",
		NotificationPriorityThreshold: "critical",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid notification priority threshold")
}

func TestAll(t *testing.T) {
	repo := testRepo(t)

	for _, st := range []string{"covered_call", "cash_secured_put"} {
		require.NoError(t, repo.Upsert(domain.StrategyConfig{
			StrategyType:                  st,
			Enabled:                       true,
			NotificationEnabled:           true,
			NotificationPriorityThreshold: domain.PriorityLow,
		}))
	}

	configs, err := repo.All()
	require.NoError(t, err)
	require.Len(t, configs, 2)
	assert.Contains(t, configs, "covered_call")
	assert.Contains(t, configs, "cash_secured_put")
}
