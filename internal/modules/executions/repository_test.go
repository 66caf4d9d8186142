package executions

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"
	"github.com/mleventi/wheelhouse/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE option_executions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			order_id TEXT NOT NULL UNIQUE,
			symbol TEXT NOT NULL,
			option_type TEXT NOT NULL,
			side TEXT NOT NULL,
			strike REAL NOT NULL CHECK(strike > 0),
			expiration TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			premium REAL NOT NULL,
			executed_at INTEGER NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		)
	`)
	require.NoError(t, err)

	return db
}

func sampleExecution(orderID string, executedAt time.Time) domain.OptionExecution {
	return domain.OptionExecution{
		OrderID:    orderID,
		Symbol:     "AVGO",
		OptionType: domain.OptionTypePut,
		Side:       "sell",
		Strike:     370,
		Expiration: "2026-04-09",
		Quantity:   1,
		Premium:    1.20,
		ExecutedAt: executedAt,
		Source:     "broker",
	}
}

func TestCreateAndListRecent(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	now := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(sampleExecution("ord-1", now)))
	require.NoError(t, repo.Create(sampleExecution("ord-2", now.Add(time.Hour))))

	execs, err := repo.ListRecent(10)
	require.NoError(t, err)
	require.Len(t, execs, 2)
	assert.Equal(t, "ord-2", execs[0].OrderID)
	assert.Equal(t, "AVGO", execs[0].Symbol)
	assert.Equal(t, domain.OptionTypePut, execs[0].OptionType)
	assert.Equal(t, 370.0, execs[0].Strike)
}

func TestCreateDuplicateOrderIgnored(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	now := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(sampleExecution("ord-1", now)))
	require.NoError(t, repo.Create(sampleExecution("ord-1", now)))

	execs, err := repo.ListRecent(10)
	require.NoError(t, err)
	assert.Len(t, execs, 1)
}

func TestListForReconciliation(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	reconDate := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)

	inWindow := sampleExecution("ord-in", time.Date(2026, 3, 3, 15, 0, 0, 0, time.UTC))
	onDate := sampleExecution("ord-today", time.Date(2026, 3, 5, 15, 0, 0, 0, time.UTC))
	tooOld := sampleExecution("ord-old", time.Date(2026, 2, 20, 15, 0, 0, 0, time.UTC))
	future := sampleExecution("ord-future", time.Date(2026, 3, 6, 15, 0, 0, 0, time.UTC))

	for _, e := range []domain.OptionExecution{inWindow, onDate, tooOld, future} {
		require.NoError(t, repo.Create(e))
	}

	execs, err := repo.ListForReconciliation(reconDate, 3)
	require.NoError(t, err)
	require.Len(t, execs, 2)
	assert.Equal(t, "ord-in", execs[0].OrderID)
	assert.Equal(t, "ord-today", execs[1].OrderID)
}
