package throttle

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE weekly_recommendation_tracking (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			strategy_type TEXT NOT NULL,
			week_start_date TEXT NOT NULL,
			recommendation_id TEXT NOT NULL,
			potential_profit REAL NOT NULL DEFAULT 0,
			sent_at INTEGER NOT NULL,
			UNIQUE(strategy_type, recommendation_id)
		)
	`)
	require.NoError(t, err)

	return db
}

func testService(t *testing.T, minProfitDelta float64) *Service {
	repo := NewRepository(setupTestDB(t))
	return NewService(repo, minProfitDelta, zerolog.New(nil).Level(zerolog.Disabled))
}

func TestWeekStart(t *testing.T) {
	// 2026-03-08 is the US spring-forward date; the week around it must
	// still align on calendar Mondays in the local zone.
	newYork, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	tests := []struct {
		name string
		in   time.Time
		want string
	}{
		{"monday is its own week start", time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC), "2026-03-02"},
		{"wednesday aligns back to monday", time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC), "2026-03-02"},
		{"sunday belongs to previous monday", time.Date(2026, 3, 8, 23, 59, 0, 0, time.UTC), "2026-03-02"},
		{"next monday starts a new week", time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), "2026-03-09"},
		{"sunday evening after spring forward", time.Date(2026, 3, 8, 20, 0, 0, 0, newYork), "2026-03-02"},
		{"wednesday after the dst week", time.Date(2026, 3, 11, 9, 0, 0, 0, newYork), "2026-03-09"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WeekStart(tt.in)
			assert.Equal(t, tt.want, got.Format("2006-01-02"))
			assert.Equal(t, time.Monday, got.Weekday())
		})
	}
}

func TestFirstNotificationAllowed(t *testing.T) {
	svc := testService(t, 10.0)
	now := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

	d, err := svc.ShouldSend("early_roll_opportunity", "rec_a", 100.0, now)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestDuplicateIDRejected(t *testing.T) {
	svc := testService(t, 10.0)
	now := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

	require.NoError(t, svc.RecordSent("early_roll_opportunity", "rec_a", 100.0, now))

	d, err := svc.ShouldSend("early_roll_opportunity", "rec_a", 500.0, now.Add(26*time.Hour))
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, "already sent this week", d.Reason)
}

func TestProfitDelta(t *testing.T) {
	svc := testService(t, 10.0)
	monday := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

	require.NoError(t, svc.RecordSent("early_roll_opportunity", "rec_a", 100.0, monday))
	tuesday := monday.Add(24 * time.Hour)

	// 105 does not clear 100 + 10.
	d, err := svc.ShouldSend("early_roll_opportunity", "rec_b", 105.0, tuesday)
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	// 115 does.
	d, err = svc.ShouldSend("early_roll_opportunity", "rec_c", 115.0, tuesday)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	// Exactly at the threshold is rejected: a candidate must strictly
	// exceed floor + delta.
	d, err = svc.ShouldSend("early_roll_opportunity", "rec_d", 110.0, tuesday)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestProfitDeltaUsesWeakestSent(t *testing.T) {
	svc := testService(t, 10.0)
	monday := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

	require.NoError(t, svc.RecordSent("early_roll_opportunity", "rec_a", 100.0, monday))
	require.NoError(t, svc.RecordSent("early_roll_opportunity", "rec_b", 200.0, monday.Add(24*time.Hour)))
	wednesday := monday.Add(48 * time.Hour)

	// The bar is the weakest entry (100), not the strongest (200).
	d, err := svc.ShouldSend("early_roll_opportunity", "rec_c", 115.0, wednesday)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = svc.ShouldSend("early_roll_opportunity", "rec_d", 108.0, wednesday)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestDailyLimit(t *testing.T) {
	svc := testService(t, 10.0)
	now := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

	require.NoError(t, svc.RecordSent("early_roll_opportunity", "rec_a", 100.0, now))

	d, err := svc.ShouldSend("early_roll_opportunity", "rec_b", 500.0, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, "daily limit reached", d.Reason)

	// Next day is fine.
	d, err = svc.ShouldSend("early_roll_opportunity", "rec_b", 500.0, now.Add(24*time.Hour))
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestWeeklyLimit(t *testing.T) {
	svc := testService(t, 10.0)
	monday := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

	require.NoError(t, svc.RecordSent("early_roll_opportunity", "rec_a", 100.0, monday))
	require.NoError(t, svc.RecordSent("early_roll_opportunity", "rec_b", 120.0, monday.Add(24*time.Hour)))
	require.NoError(t, svc.RecordSent("early_roll_opportunity", "rec_c", 140.0, monday.Add(48*time.Hour)))

	d, err := svc.ShouldSend("early_roll_opportunity", "rec_d", 9999.0, monday.Add(72*time.Hour))
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, "weekly limit of 3 reached", d.Reason)

	// Counters reset the following Monday.
	nextMonday := time.Date(2026, 3, 9, 9, 30, 0, 0, time.UTC)
	d, err = svc.ShouldSend("early_roll_opportunity", "rec_d", 50.0, nextMonday)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestStrategiesThrottledIndependently(t *testing.T) {
	svc := testService(t, 10.0)
	now := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

	require.NoError(t, svc.RecordSent("early_roll_opportunity", "rec_a", 100.0, now))

	d, err := svc.ShouldSend("covered_call_income", "rec_x", 50.0, now)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestRecordSentIdempotent(t *testing.T) {
	svc := testService(t, 10.0)
	now := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

	require.NoError(t, svc.RecordSent("early_roll_opportunity", "rec_a", 100.0, now))
	require.NoError(t, svc.RecordSent("early_roll_opportunity", "rec_a", 100.0, now.Add(time.Hour)))

	sent, err := svc.repo.SentThisWeek("early_roll_opportunity", now)
	require.NoError(t, err)
	assert.Len(t, sent, 1)
}

func TestPruneBefore(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	old := time.Date(2026, 1, 5, 9, 30, 0, 0, time.UTC)
	recent := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

	_, err := repo.Record("early_roll_opportunity", "rec_old", 100.0, old)
	require.NoError(t, err)
	_, err = repo.Record("early_roll_opportunity", "rec_new", 100.0, recent)
	require.NoError(t, err)

	deleted, err := repo.PruneBefore(recent)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	sent, err := repo.SentThisWeek("early_roll_opportunity", recent)
	require.NoError(t, err)
	assert.Len(t, sent, 1)
	assert.Equal(t, "rec_new", sent[0].RecommendationID)
}
