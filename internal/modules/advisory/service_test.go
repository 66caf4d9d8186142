package advisory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mleventi/wheelhouse/internal/domain"
	"github.com/mleventi/wheelhouse/internal/modules/notify"
	"github.com/mleventi/wheelhouse/internal/modules/snapshots"
	"github.com/mleventi/wheelhouse/internal/modules/throttle"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePortfolio struct{}

func (f *fakePortfolio) MarketContext(today time.Time, defaultPremium, profitThreshold float64) (*domain.MarketContext, error) {
	return &domain.MarketContext{
		Today:           today,
		DefaultPremium:  defaultPremium,
		ProfitThreshold: profitThreshold,
	}, nil
}

type fakeConfigs struct{}

func (f *fakeConfigs) All() (map[string]*domain.StrategyConfig, error) { return nil, nil }

type fakeStore struct {
	mu       sync.Mutex
	created  []string
	notified map[string][]snapshots.NotificationTrack
}

func (f *fakeStore) Create(rec domain.Recommendation, _ time.Time, _ *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, rec.ID)
	return nil
}

func (f *fakeStore) MarkNotified(id string, track snapshots.NotificationTrack, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.notified == nil {
		f.notified = make(map[string][]snapshots.NotificationTrack)
	}
	f.notified[id] = append(f.notified[id], track)
	return nil
}

type fakeThrottle struct {
	denyAll  bool
	checked  []string
	recorded []string
}

func (f *fakeThrottle) ShouldSend(_, recommendationID string, _ float64, _ time.Time) (throttle.Decision, error) {
	f.checked = append(f.checked, recommendationID)
	if f.denyAll {
		return throttle.Decision{Reason: "weekly limit of 3 reached"}, nil
	}
	return throttle.Decision{Allowed: true}, nil
}

func (f *fakeThrottle) RecordSent(_, recommendationID string, _ float64, _ time.Time) error {
	f.recorded = append(f.recorded, recommendationID)
	return nil
}

type fakeDispatcher struct {
	dispatched []string
	smart      bool
	started    chan struct{}
	block      chan struct{}
}

func (f *fakeDispatcher) Dispatch(_ context.Context, rec domain.Recommendation, _ *domain.StrategyConfig, _ domain.Priority, _ time.Time) (notify.Result, error) {
	if f.started != nil {
		close(f.started)
		f.started = nil
	}
	if f.block != nil {
		<-f.block
	}
	f.dispatched = append(f.dispatched, rec.ID)
	return notify.Result{
		RecommendationID: rec.ID,
		VerboseSent:      true,
		SmartSent:        f.smart,
		ChannelSuccess:   map[string]bool{"test": true},
	}, nil
}

func newTestService(t *testing.T, strats []domain.Recommendation) (*Service, *fakeStore, *fakeThrottle, *fakeDispatcher) {
	t.Helper()
	stub := &stubStrategy{name: "stub", recs: strats}
	engine := testEngine(stub)
	store := &fakeStore{}
	thr := &fakeThrottle{}
	disp := &fakeDispatcher{smart: true}
	svc := NewService(engine, &fakePortfolio{}, &fakeConfigs{}, store, thr, disp, 1.50, 0.80,
		zerolog.New(nil).Level(zerolog.Disabled))
	return svc, store, thr, disp
}

func TestRunStoresThenNotifies(t *testing.T) {
	recs := []domain.Recommendation{
		rec("a", domain.PriorityHigh, 100),
		rec("b", domain.PriorityLow, 50),
	}
	svc, store, thr, disp := newTestService(t, recs)
	now := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

	report, err := svc.Run(context.Background(), RunOptions{Now: now})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Generated)
	assert.Equal(t, 2, report.Notified)
	assert.Equal(t, 0, report.Throttled)

	// Every recommendation was snapshotted and dispatched in ranked order.
	assert.Equal(t, []string{"a", "b"}, store.created)
	assert.Equal(t, []string{"a", "b"}, disp.dispatched)
	assert.Equal(t, []string{"a", "b"}, thr.recorded)
	assert.Equal(t,
		[]snapshots.NotificationTrack{snapshots.TrackVerbose, snapshots.TrackSmart},
		store.notified["a"])
}

func TestRunThrottledEverythingStillStored(t *testing.T) {
	recs := []domain.Recommendation{rec("a", domain.PriorityHigh, 100)}
	svc, store, thr, disp := newTestService(t, recs)
	thr.denyAll = true
	now := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

	report, err := svc.Run(context.Background(), RunOptions{Now: now})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Generated)
	assert.Equal(t, 0, report.Notified)
	assert.Equal(t, 1, report.Throttled)
	assert.Equal(t, []string{"a"}, store.created)
	assert.Empty(t, disp.dispatched)
}

func TestRunDryRun(t *testing.T) {
	recs := []domain.Recommendation{rec("a", domain.PriorityHigh, 100)}
	svc, store, thr, disp := newTestService(t, recs)
	now := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

	report, err := svc.Run(context.Background(), RunOptions{Now: now, DryRun: true})
	require.NoError(t, err)

	assert.True(t, report.DryRun)
	assert.Equal(t, 1, report.Generated)
	assert.Equal(t, []string{"a"}, store.created)

	// Throttle decisions are still evaluated and counted.
	assert.Equal(t, []string{"a"}, thr.checked)
	assert.Equal(t, 1, report.Notified)
	assert.Equal(t, 0, report.Throttled)

	// But nothing is dispatched, recorded, or marked notified.
	assert.Empty(t, disp.dispatched)
	assert.Empty(t, thr.recorded)
	assert.Empty(t, store.notified)
}

func TestRunDryRunReportsThrottled(t *testing.T) {
	recs := []domain.Recommendation{rec("a", domain.PriorityHigh, 100)}
	svc, _, thr, disp := newTestService(t, recs)
	thr.denyAll = true
	now := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

	report, err := svc.Run(context.Background(), RunOptions{Now: now, DryRun: true})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Throttled)
	assert.Equal(t, 0, report.Notified)
	assert.Empty(t, disp.dispatched)
	assert.Empty(t, thr.recorded)
}

func TestRunRejectsConcurrentRun(t *testing.T) {
	recs := []domain.Recommendation{rec("a", domain.PriorityHigh, 100)}
	svc, _, _, disp := newTestService(t, recs)
	disp.started = make(chan struct{})
	disp.block = make(chan struct{})
	started := disp.started
	now := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

	firstDone := make(chan error, 1)
	go func() {
		_, err := svc.Run(context.Background(), RunOptions{Now: now})
		firstDone <- err
	}()

	// Wait until the first run is inside dispatch, then try a second run.
	<-started
	_, err := svc.Run(context.Background(), RunOptions{Now: now})
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(disp.block)
	require.NoError(t, <-firstDone)

	// Lock released, a new run proceeds.
	_, err = svc.Run(context.Background(), RunOptions{Now: now})
	require.NoError(t, err)
}

func TestRunOverrides(t *testing.T) {
	stub := &stubStrategy{name: "stub"}
	engine := testEngine(stub)
	svc := NewService(engine, &fakePortfolio{}, &fakeConfigs{}, &fakeStore{}, &fakeThrottle{}, &fakeDispatcher{}, 1.50, 0.80,
		zerolog.New(nil).Level(zerolog.Disabled))
	now := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

	premium := 2.25
	threshold := 0.70
	_, err := svc.Run(context.Background(), RunOptions{
		Now:             now,
		DefaultPremium:  &premium,
		ProfitThreshold: &threshold,
	})
	require.NoError(t, err)
}
