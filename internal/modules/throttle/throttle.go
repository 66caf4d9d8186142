// Package throttle rations recommendation notifications per strategy so a
// noisy strategy cannot flood the user. Limits are evaluated against a
// Monday-aligned week recorded in advisory.db.
package throttle

import (
	"database/sql"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// MaxPerWeek caps notifications per strategy per Monday-aligned week.
	MaxPerWeek = 3
	// MaxPerDay caps notifications per strategy per calendar day.
	MaxPerDay = 1

	lockStripes = 16
)

// Decision explains one throttle verdict.
type Decision struct {
	Allowed bool
	Reason  string
}

// SentRecommendation is one row of weekly notification history.
type SentRecommendation struct {
	StrategyType     string    `json:"strategy_type"`
	WeekStartDate    string    `json:"week_start_date"`
	RecommendationID string    `json:"recommendation_id"`
	PotentialProfit  float64   `json:"potential_profit"`
	SentAt           time.Time `json:"sent_at"`
}

// WeekStart returns the Monday 00:00 of the week containing t, in t's
// location. A Sunday belongs to the week started the previous Monday.
func WeekStart(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// Repository persists per-week notification history.
// Database: advisory.db (weekly_recommendation_tracking table)
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new throttle repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Record stores a sent notification. Returns false when the recommendation id
// was already recorded for this strategy, which makes recording idempotent
// across retried runs.
func (r *Repository) Record(strategyType, recommendationID string, potentialProfit float64, sentAt time.Time) (bool, error) {
	result, err := r.db.Exec(`
		INSERT OR IGNORE INTO weekly_recommendation_tracking
			(strategy_type, week_start_date, recommendation_id, potential_profit, sent_at)
		VALUES (?, ?, ?, ?, ?)
	`, strategyType, WeekStart(sentAt).Format("2006-01-02"), recommendationID, potentialProfit, sentAt.Unix())
	if err != nil {
		return false, fmt.Errorf("failed to record sent recommendation: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

// SentThisWeek returns the notifications already recorded for the strategy in
// the week containing now, ordered by send time.
func (r *Repository) SentThisWeek(strategyType string, now time.Time) ([]SentRecommendation, error) {
	rows, err := r.db.Query(`
		SELECT strategy_type, week_start_date, recommendation_id, potential_profit, sent_at
		FROM weekly_recommendation_tracking
		WHERE strategy_type = ? AND week_start_date = ?
		ORDER BY sent_at ASC, recommendation_id ASC
	`, strategyType, WeekStart(now).Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("failed to query weekly tracking: %w", err)
	}
	defer rows.Close()

	var sent []SentRecommendation
	for rows.Next() {
		var s SentRecommendation
		var sentAtUnix int64
		if err := rows.Scan(&s.StrategyType, &s.WeekStartDate, &s.RecommendationID, &s.PotentialProfit, &sentAtUnix); err != nil {
			return nil, fmt.Errorf("failed to scan weekly tracking row: %w", err)
		}
		s.SentAt = time.Unix(sentAtUnix, 0).UTC()
		sent = append(sent, s)
	}

	return sent, rows.Err()
}

// PruneBefore deletes tracking rows for weeks that started before the cutoff
// date. Old weeks have no effect on throttling, so this is purely hygiene.
func (r *Repository) PruneBefore(cutoff time.Time) (int64, error) {
	result, err := r.db.Exec(`
		DELETE FROM weekly_recommendation_tracking WHERE week_start_date < ?
	`, WeekStart(cutoff).Format("2006-01-02"))
	if err != nil {
		return 0, fmt.Errorf("failed to prune weekly tracking: %w", err)
	}
	return result.RowsAffected()
}

// Service applies the throttle policy. Decisions for the same strategy are
// serialized through striped locks so concurrent runs cannot both pass the
// weekly cap.
type Service struct {
	repo           *Repository
	minProfitDelta float64
	locks          [lockStripes]sync.Mutex
	log            zerolog.Logger
}

// NewService creates a throttle service. minProfitDelta is how much a
// candidate's potential profit must exceed the weakest notification already
// sent this week once any notification has gone out.
func NewService(repo *Repository, minProfitDelta float64, log zerolog.Logger) *Service {
	return &Service{
		repo:           repo,
		minProfitDelta: minProfitDelta,
		log:            log.With().Str("service", "throttle").Logger(),
	}
}

// ShouldSend evaluates the throttle policy for one candidate. Checks run in
// order: duplicate id, weekly cap, daily cap, then profit improvement.
func (s *Service) ShouldSend(strategyType, recommendationID string, potentialProfit float64, now time.Time) (Decision, error) {
	lock := s.lockFor(strategyType)
	lock.Lock()
	defer lock.Unlock()

	sent, err := s.repo.SentThisWeek(strategyType, now)
	if err != nil {
		return Decision{}, err
	}

	for _, prev := range sent {
		if prev.RecommendationID == recommendationID {
			return Decision{Reason: "already sent this week"}, nil
		}
	}

	if len(sent) >= MaxPerWeek {
		return Decision{Reason: fmt.Sprintf("weekly limit of %d reached", MaxPerWeek)}, nil
	}

	today := now.Format("2006-01-02")
	for _, prev := range sent {
		if prev.SentAt.In(now.Location()).Format("2006-01-02") == today {
			return Decision{Reason: "daily limit reached"}, nil
		}
	}

	if len(sent) > 0 {
		// The bar is the week's weakest notification: a candidate must beat
		// it by the delta, not beat the strongest.
		floor := sent[0].PotentialProfit
		for _, prev := range sent[1:] {
			if prev.PotentialProfit < floor {
				floor = prev.PotentialProfit
			}
		}
		if potentialProfit <= floor+s.minProfitDelta {
			return Decision{Reason: fmt.Sprintf(
				"potential profit %.2f does not improve on %.2f by more than %.2f",
				potentialProfit, floor, s.minProfitDelta)}, nil
		}
	}

	return Decision{Allowed: true}, nil
}

// RecordSent marks a recommendation as notified for throttling purposes.
// Safe to call again for the same id.
func (s *Service) RecordSent(strategyType, recommendationID string, potentialProfit float64, sentAt time.Time) error {
	lock := s.lockFor(strategyType)
	lock.Lock()
	defer lock.Unlock()

	inserted, err := s.repo.Record(strategyType, recommendationID, potentialProfit, sentAt)
	if err != nil {
		return err
	}
	if !inserted {
		s.log.Debug().
			Str("strategy", strategyType).
			Str("recommendation_id", recommendationID).
			Msg("Recommendation already recorded for this week")
	}
	return nil
}

func (s *Service) lockFor(strategyType string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(strategyType))
	return &s.locks[h.Sum32()%lockStripes]
}
