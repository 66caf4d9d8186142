package notify

import (
	"context"
	"math"
	"time"

	"github.com/mleventi/wheelhouse/internal/domain"
	"github.com/rs/zerolog"
)

// smartIncomeChangeFraction is how much potential income must move, relative
// to the last smart send, before a repeat recommendation is material again.
const smartIncomeChangeFraction = 0.10

// Result reports delivery of one recommendation: which tracks fired and how
// each channel fared.
type Result struct {
	RecommendationID string
	VerboseSent      bool
	SmartSent        bool
	// ChannelSuccess is keyed by channel name; false means the send failed.
	ChannelSuccess map[string]bool
}

// Dispatcher routes recommendations that cleared the throttle to the
// configured channels. A failing channel never blocks the others.
type Dispatcher struct {
	state    *StateRepository
	channels []Channel
	log      zerolog.Logger
}

// NewDispatcher creates a dispatcher over the given channels.
func NewDispatcher(state *StateRepository, channels []Channel, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		state:    state,
		channels: channels,
		log:      log.With().Str("service", "dispatcher").Logger(),
	}
}

// Dispatch delivers one recommendation. The verbose track always fires; the
// smart track fires only when the recommendation is materially different from
// the last smart send for the same strategy and symbol. cfg may be nil when
// the strategy has no stored configuration.
func (d *Dispatcher) Dispatch(ctx context.Context, rec domain.Recommendation, cfg *domain.StrategyConfig, priorityFloor domain.Priority, now time.Time) (Result, error) {
	result := Result{
		RecommendationID: rec.ID,
		ChannelSuccess:   make(map[string]bool),
	}

	if cfg != nil {
		if !cfg.NotificationEnabled {
			d.log.Debug().Str("strategy", rec.StrategyType).Msg("Notifications disabled for strategy")
			return result, nil
		}
		if !rec.Priority.AtLeast(cfg.NotificationPriorityThreshold) {
			return result, nil
		}
	}
	if !rec.Priority.AtLeast(priorityFloor) {
		return result, nil
	}

	smart, err := d.smartWorthy(rec)
	if err != nil {
		return result, err
	}

	sent, err := d.deliver(ctx, rec, TrackVerbose, now, &result)
	if err != nil {
		return result, err
	}
	result.VerboseSent = sent

	if smart {
		sent, err = d.deliver(ctx, rec, TrackSmart, now, &result)
		if err != nil {
			return result, err
		}
		result.SmartSent = sent
	}

	return result, nil
}

// smartWorthy reports whether the smart track should fire: first sighting of
// the key, a priority change, or a potential income move beyond the change
// fraction.
func (d *Dispatcher) smartWorthy(rec domain.Recommendation) (bool, error) {
	prev, err := d.state.Get(rec.StrategyType, rec.Context.Symbol, TrackSmart)
	if err != nil {
		return false, err
	}
	if prev == nil {
		return true, nil
	}
	if prev.LastPriority != rec.Priority {
		return true, nil
	}
	if prev.LastPotentialIncome == 0 {
		return rec.PotentialIncome != 0, nil
	}
	change := math.Abs(rec.PotentialIncome-prev.LastPotentialIncome) / math.Abs(prev.LastPotentialIncome)
	return change > smartIncomeChangeFraction, nil
}

// deliver sends on every channel and reports whether at least one channel
// accepted the message. State only advances after a successful send, so a
// fully failed delivery is retried on the next run.
func (d *Dispatcher) deliver(ctx context.Context, rec domain.Recommendation, track Track, now time.Time, result *Result) (bool, error) {
	n := Notification{Track: track, Recommendation: rec, SentAt: now}

	anySucceeded := false
	for _, ch := range d.channels {
		if err := ch.Send(ctx, n); err != nil {
			d.log.Error().Err(err).
				Str("channel", ch.Name()).
				Str("track", string(track)).
				Str("recommendation_id", rec.ID).
				Msg("Channel send failed")
			result.ChannelSuccess[ch.Name()] = false
			continue
		}
		result.ChannelSuccess[ch.Name()] = true
		anySucceeded = true
	}

	if !anySucceeded {
		return false, nil
	}

	err := d.state.Upsert(State{
		StrategyType:        rec.StrategyType,
		Symbol:              rec.Context.Symbol,
		Track:               track,
		LastPriority:        rec.Priority,
		LastPotentialIncome: rec.PotentialIncome,
		LastSentAt:          now,
	})
	return true, err
}
