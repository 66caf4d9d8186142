package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// LogChannel writes notifications to the structured log. Always configured so
// every delivery attempt leaves an audit trail even when no external channel
// is wired up.
type LogChannel struct {
	log zerolog.Logger
}

// NewLogChannel creates a log-backed notification channel.
func NewLogChannel(log zerolog.Logger) *LogChannel {
	return &LogChannel{log: log.With().Str("channel", "log").Logger()}
}

func (c *LogChannel) Name() string { return "log" }

func (c *LogChannel) Send(_ context.Context, n Notification) error {
	rec := n.Recommendation
	c.log.Info().
		Str("track", string(n.Track)).
		Str("recommendation_id", rec.ID).
		Str("strategy", rec.StrategyType).
		Str("priority", string(rec.Priority)).
		Str("symbol", rec.Context.Symbol).
		Float64("potential_income", rec.PotentialIncome).
		Str("action", rec.Action).
		Msg(rec.Title)
	return nil
}
