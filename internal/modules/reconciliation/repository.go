package reconciliation

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mleventi/wheelhouse/internal/database"
	"github.com/rs/zerolog"
)

// SupersedeFlag keeps replaced matches with superseded = 1; SupersedeDelete
// removes them outright.
const (
	SupersedeFlag   = "flag"
	SupersedeDelete = "delete"
)

// Repository persists reconciliation matches.
// Database: advisory.db (recommendation_execution_matches table)
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new match repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "reconciliation").Logger(),
	}
}

// ReplaceDay atomically replaces the active matches for one reconciliation
// date. Prior matches for the date, and prior matches from other dates that
// reference the same recommendation or execution, are superseded according to
// behavior before the new matches are inserted. Re-running a day is safe, and
// a late fill upgrades an earlier missed verdict instead of conflicting with
// it.
func (r *Repository) ReplaceDay(date string, matches []Match, behavior string, now time.Time) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		supersede := func(clause string, args ...interface{}) error {
			var query string
			switch behavior {
			case SupersedeDelete:
				query = `DELETE FROM recommendation_execution_matches WHERE superseded = 0 AND ` + clause
			case SupersedeFlag:
				query = `UPDATE recommendation_execution_matches SET superseded = 1 WHERE superseded = 0 AND ` + clause
			default:
				return fmt.Errorf("unknown supersede behavior: %s", behavior)
			}
			if _, err := tx.Exec(query, args...); err != nil {
				return fmt.Errorf("failed to supersede prior matches: %w", err)
			}
			return nil
		}

		if err := supersede(`reconciliation_date = ?`, date); err != nil {
			return err
		}
		for _, m := range matches {
			if m.RecommendationSnapshotID != nil {
				if err := supersede(`recommendation_snapshot_id = ?`, *m.RecommendationSnapshotID); err != nil {
					return err
				}
			}
			if m.ExecutionID != nil {
				if err := supersede(`execution_id = ?`, *m.ExecutionID); err != nil {
					return err
				}
			}
		}

		for i := range matches {
			m := &matches[i]
			if m.ID == "" {
				m.ID = uuid.NewString()
			}
			m.CreatedAt = now

			var executedAtUnix interface{}
			if m.ExecutedAt != nil {
				executedAtUnix = m.ExecutedAt.Unix()
			}

			_, err := tx.Exec(`
				INSERT INTO recommendation_execution_matches
					(id, reconciliation_date, match_type, algorithm_version,
					 recommendation_snapshot_id, recommendation_date,
					 recommended_symbol, recommended_option_type, recommended_strike,
					 recommended_expiration, recommended_premium,
					 execution_id, executed_symbol, executed_option_type,
					 executed_strike, executed_expiration, executed_premium,
					 executed_quantity, executed_at, superseded, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
			`,
				m.ID, m.ReconciliationDate, string(m.MatchType), m.AlgorithmVersion,
				m.RecommendationSnapshotID, m.RecommendationDate,
				m.RecommendedSymbol, string(m.RecommendedOptionType), m.RecommendedStrike,
				m.RecommendedExpiration, m.RecommendedPremium,
				m.ExecutionID, m.ExecutedSymbol, string(m.ExecutedOptionType),
				m.ExecutedStrike, m.ExecutedExpiration, m.ExecutedPremium,
				m.ExecutedQuantity, executedAtUnix, now.Unix(),
			)
			if err != nil {
				return fmt.Errorf("failed to insert match %s: %w", m.ID, err)
			}
		}

		return nil
	})
}

// GetByDate returns matches for one reconciliation date. Superseded rows are
// included only when requested.
func (r *Repository) GetByDate(date string, includeSuperseded bool) ([]Match, error) {
	clause := `WHERE reconciliation_date = ?`
	if !includeSuperseded {
		clause += ` AND superseded = 0`
	}
	return r.query(clause+` ORDER BY match_type ASC, id ASC`, date)
}

// ActiveSince returns non-superseded matches reconciled on or after the given
// date, oldest first. Used by learning aggregation.
func (r *Repository) ActiveSince(date string) ([]Match, error) {
	return r.query(`
		WHERE reconciliation_date >= ? AND superseded = 0
		ORDER BY reconciliation_date ASC, id ASC`, date)
}

// MarkReviewed timestamps manual review of one match.
func (r *Repository) MarkReviewed(id string, at time.Time) error {
	result, err := r.db.Exec(`
		UPDATE recommendation_execution_matches SET reviewed_at = ? WHERE id = ?
	`, at.Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to mark match reviewed: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("match not found: %s", id)
	}
	return nil
}

// Exclude flags a match out of learning aggregates, keeping the row for
// audit.
func (r *Repository) Exclude(id, reason string, at time.Time) error {
	result, err := r.db.Exec(`
		UPDATE recommendation_execution_matches
		SET excluded_from_learning = 1, exclusion_reason = ?, excluded_at = ?
		WHERE id = ?
	`, reason, at.Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to exclude match %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("match not found: %s", id)
	}

	r.log.Warn().Str("id", id).Str("reason", reason).Msg("Match excluded from learning")
	return nil
}

func (r *Repository) query(clause string, args ...interface{}) ([]Match, error) {
	rows, err := r.db.Query(`
		SELECT id, reconciliation_date, match_type, algorithm_version,
		       recommendation_snapshot_id, recommendation_date,
		       recommended_symbol, recommended_option_type, recommended_strike,
		       recommended_expiration, recommended_premium,
		       execution_id, executed_symbol, executed_option_type,
		       executed_strike, executed_expiration, executed_premium,
		       executed_quantity, executed_at, superseded, reviewed_at,
		       excluded_from_learning, exclusion_reason, excluded_at, created_at
		FROM recommendation_execution_matches
	`+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		var snapshotID, recDate, exclusionReason sql.NullString
		var executionID sql.NullInt64
		var executedAtUnix, reviewedAtUnix, excludedAtUnix sql.NullInt64
		var superseded, excluded int
		var createdAtUnix int64

		err := rows.Scan(
			&m.ID, &m.ReconciliationDate, (*string)(&m.MatchType), &m.AlgorithmVersion,
			&snapshotID, &recDate,
			&m.RecommendedSymbol, (*string)(&m.RecommendedOptionType), &m.RecommendedStrike,
			&m.RecommendedExpiration, &m.RecommendedPremium,
			&executionID, &m.ExecutedSymbol, (*string)(&m.ExecutedOptionType),
			&m.ExecutedStrike, &m.ExecutedExpiration, &m.ExecutedPremium,
			&m.ExecutedQuantity, &executedAtUnix, &superseded, &reviewedAtUnix,
			&excluded, &exclusionReason, &excludedAtUnix, &createdAtUnix,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}

		if snapshotID.Valid {
			m.RecommendationSnapshotID = &snapshotID.String
		}
		if recDate.Valid {
			m.RecommendationDate = recDate.String
		}
		if executionID.Valid {
			m.ExecutionID = &executionID.Int64
		}
		m.ExecutedAt = nullUnix(executedAtUnix)
		m.ReviewedAt = nullUnix(reviewedAtUnix)
		m.Superseded = superseded != 0
		m.ExcludedFromLearning = excluded != 0
		if exclusionReason.Valid {
			m.ExclusionReason = exclusionReason.String
		}
		m.ExcludedAt = nullUnix(excludedAtUnix)
		m.CreatedAt = time.Unix(createdAtUnix, 0).UTC()

		matches = append(matches, m)
	}

	return matches, rows.Err()
}

func nullUnix(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}
