package notify

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mleventi/wheelhouse/internal/domain"
)

// State is the last-sent record for one (strategy, symbol, track) key. The
// smart track compares candidates against it to decide materiality.
type State struct {
	StrategyType        string
	Symbol              string
	Track               Track
	LastPriority        domain.Priority
	LastPotentialIncome float64
	LastSentAt          time.Time
}

// StateRepository persists per-key notification state.
// Database: advisory.db (notification_state table)
type StateRepository struct {
	db *sql.DB
}

// NewStateRepository creates a new notification state repository.
func NewStateRepository(db *sql.DB) *StateRepository {
	return &StateRepository{db: db}
}

// Get returns the state for one key, or nil when nothing was sent yet.
func (r *StateRepository) Get(strategyType, symbol string, track Track) (*State, error) {
	var s State
	var lastSentAtUnix int64
	err := r.db.QueryRow(`
		SELECT strategy_type, symbol, track, last_priority, last_potential_income, last_sent_at
		FROM notification_state
		WHERE strategy_type = ? AND symbol = ? AND track = ?
	`, strategyType, symbol, string(track)).Scan(
		&s.StrategyType,
		&s.Symbol,
		(*string)(&s.Track),
		(*string)(&s.LastPriority),
		&s.LastPotentialIncome,
		&lastSentAtUnix,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query notification state: %w", err)
	}

	s.LastSentAt = time.Unix(lastSentAtUnix, 0).UTC()
	return &s, nil
}

// Upsert replaces the state for one key.
func (r *StateRepository) Upsert(s State) error {
	_, err := r.db.Exec(`
		INSERT INTO notification_state
			(strategy_type, symbol, track, last_priority, last_potential_income, last_sent_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(strategy_type, symbol, track) DO UPDATE SET
			last_priority = excluded.last_priority,
			last_potential_income = excluded.last_potential_income,
			last_sent_at = excluded.last_sent_at
	`, s.StrategyType, s.Symbol, string(s.Track), string(s.LastPriority), s.LastPotentialIncome, s.LastSentAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert notification state: %w", err)
	}
	return nil
}
