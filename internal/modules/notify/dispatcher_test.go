package notify

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"
	"github.com/mleventi/wheelhouse/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureChannel struct {
	name string
	fail bool
	sent []Notification
}

func (c *captureChannel) Name() string { return c.name }

func (c *captureChannel) Send(_ context.Context, n Notification) error {
	if c.fail {
		return errors.New("channel down")
	}
	c.sent = append(c.sent, n)
	return nil
}

func setupStateDB(t *testing.T) *StateRepository {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE notification_state (
			strategy_type TEXT NOT NULL,
			symbol TEXT NOT NULL,
			track TEXT NOT NULL,
			last_priority TEXT NOT NULL,
			last_potential_income REAL NOT NULL DEFAULT 0,
			last_sent_at INTEGER NOT NULL,
			PRIMARY KEY (strategy_type, symbol, track)
		)
	`)
	require.NoError(t, err)

	return NewStateRepository(db)
}

func testRec(income float64, priority domain.Priority) domain.Recommendation {
	return domain.Recommendation{
		ID:              "early_roll_opportunity_AVGO_2026-03-02",
		StrategyType:    "early_roll_opportunity",
		Category:        domain.CategoryOptimization,
		Priority:        priority,
		Title:           "Roll AVGO put",
		PotentialIncome: income,
		Context:         domain.RecommendationContext{Symbol: "AVGO"},
	}
}

func TestFirstDispatchSendsBothTracks(t *testing.T) {
	state := setupStateDB(t)
	ch := &captureChannel{name: "test"}
	d := NewDispatcher(state, []Channel{ch}, zerolog.New(nil).Level(zerolog.Disabled))
	now := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

	result, err := d.Dispatch(context.Background(), testRec(150, domain.PriorityHigh), nil, domain.PriorityLow, now)
	require.NoError(t, err)

	assert.True(t, result.VerboseSent)
	assert.True(t, result.SmartSent)
	assert.True(t, result.ChannelSuccess["test"])
	require.Len(t, ch.sent, 2)
	assert.Equal(t, TrackVerbose, ch.sent[0].Track)
	assert.Equal(t, TrackSmart, ch.sent[1].Track)
}

func TestUnchangedRepeatSkipsSmartTrack(t *testing.T) {
	state := setupStateDB(t)
	ch := &captureChannel{name: "test"}
	d := NewDispatcher(state, []Channel{ch}, zerolog.New(nil).Level(zerolog.Disabled))
	now := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

	_, err := d.Dispatch(context.Background(), testRec(150, domain.PriorityHigh), nil, domain.PriorityLow, now)
	require.NoError(t, err)

	// Next day, same priority, income moved 5%.
	result, err := d.Dispatch(context.Background(), testRec(157.5, domain.PriorityHigh), nil, domain.PriorityLow, now.Add(24*time.Hour))
	require.NoError(t, err)
	assert.True(t, result.VerboseSent)
	assert.False(t, result.SmartSent)
}

func TestMaterialChangeFiresSmartTrack(t *testing.T) {
	state := setupStateDB(t)
	ch := &captureChannel{name: "test"}
	d := NewDispatcher(state, []Channel{ch}, zerolog.New(nil).Level(zerolog.Disabled))
	now := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

	_, err := d.Dispatch(context.Background(), testRec(150, domain.PriorityMedium), nil, domain.PriorityLow, now)
	require.NoError(t, err)

	// Priority escalated.
	result, err := d.Dispatch(context.Background(), testRec(150, domain.PriorityHigh), nil, domain.PriorityLow, now.Add(24*time.Hour))
	require.NoError(t, err)
	assert.True(t, result.SmartSent)

	// Income moved more than 10%.
	result, err = d.Dispatch(context.Background(), testRec(180, domain.PriorityHigh), nil, domain.PriorityLow, now.Add(48*time.Hour))
	require.NoError(t, err)
	assert.True(t, result.SmartSent)
}

func TestPriorityFloors(t *testing.T) {
	state := setupStateDB(t)
	ch := &captureChannel{name: "test"}
	d := NewDispatcher(state, []Channel{ch}, zerolog.New(nil).Level(zerolog.Disabled))
	now := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

	// Run-level floor.
	result, err := d.Dispatch(context.Background(), testRec(150, domain.PriorityMedium), nil, domain.PriorityHigh, now)
	require.NoError(t, err)
	assert.False(t, result.VerboseSent)
	assert.Empty(t, ch.sent)

	// Strategy-level threshold.
	cfg := &domain.StrategyConfig{
		StrategyType:                  "early_roll_opportunity",
		Enabled:                       true,
		NotificationEnabled:           true,
		NotificationPriorityThreshold: domain.PriorityUrgent,
	}
	result, err = d.Dispatch(context.Background(), testRec(150, domain.PriorityHigh), cfg, domain.PriorityLow, now)
	require.NoError(t, err)
	assert.False(t, result.VerboseSent)

	// Notifications disabled entirely.
	cfg.NotificationPriorityThreshold = domain.PriorityLow
	cfg.NotificationEnabled = false
	result, err = d.Dispatch(context.Background(), testRec(150, domain.PriorityHigh), cfg, domain.PriorityLow, now)
	require.NoError(t, err)
	assert.False(t, result.VerboseSent)
}

func TestChannelFailureIsolated(t *testing.T) {
	state := setupStateDB(t)
	bad := &captureChannel{name: "bad", fail: true}
	good := &captureChannel{name: "good"}
	d := NewDispatcher(state, []Channel{bad, good}, zerolog.New(nil).Level(zerolog.Disabled))
	now := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

	result, err := d.Dispatch(context.Background(), testRec(150, domain.PriorityHigh), nil, domain.PriorityLow, now)
	require.NoError(t, err)

	assert.True(t, result.VerboseSent)
	assert.False(t, result.ChannelSuccess["bad"])
	assert.True(t, result.ChannelSuccess["good"])
	assert.Len(t, good.sent, 2)
}

func TestAllChannelsFailingLeavesStateUntouched(t *testing.T) {
	state := setupStateDB(t)
	bad := &captureChannel{name: "bad", fail: true}
	d := NewDispatcher(state, []Channel{bad}, zerolog.New(nil).Level(zerolog.Disabled))
	now := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

	result, err := d.Dispatch(context.Background(), testRec(150, domain.PriorityHigh), nil, domain.PriorityLow, now)
	require.NoError(t, err)
	assert.False(t, result.VerboseSent)
	assert.False(t, result.SmartSent)

	prev, err := state.Get("early_roll_opportunity", "AVGO", TrackSmart)
	require.NoError(t, err)
	assert.Nil(t, prev)
}

func TestLogChannelSend(t *testing.T) {
	ch := NewLogChannel(zerolog.New(nil).Level(zerolog.Disabled))
	assert.Equal(t, "log", ch.Name())
	assert.NoError(t, ch.Send(context.Background(), Notification{
		Track:          TrackVerbose,
		Recommendation: testRec(150, domain.PriorityHigh),
	}))
}
