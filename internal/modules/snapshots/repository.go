// Package snapshots provides write-once persistence for every recommendation
// the advisory engine produces, regardless of throttle outcome.
package snapshots

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mleventi/wheelhouse/internal/domain"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// NotificationTrack identifies one of the two independent notification tracks
// maintained per snapshot.
type NotificationTrack string

const (
	TrackVerbose NotificationTrack = "verbose"
	TrackSmart   NotificationTrack = "smart"
)

// Snapshot is a persisted, append-only copy of a Recommendation.
// Only status, notification flags, and exclusion fields ever change after
// creation; snapshots are never deleted.
type Snapshot struct {
	domain.Recommendation

	Status    domain.SnapshotStatus `json:"status"`
	CreatedAt time.Time             `json:"created_at"`
	ExpiresAt *time.Time            `json:"expires_at,omitempty"`

	VerboseNotificationSent   bool       `json:"verbose_notification_sent"`
	VerboseNotificationSentAt *time.Time `json:"verbose_notification_sent_at,omitempty"`
	SmartNotificationSent     bool       `json:"smart_notification_sent"`
	SmartNotificationSentAt   *time.Time `json:"smart_notification_sent_at,omitempty"`

	ExcludedFromLearning bool       `json:"excluded_from_learning"`
	ExclusionReason      string     `json:"exclusion_reason,omitempty"`
	ExcludedAt           *time.Time `json:"excluded_at,omitempty"`
}

// Repository owns the snapshot lifecycle.
// Database: advisory.db (recommendation_snapshots table)
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new snapshot repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "snapshots").Logger(),
	}
}

// Create persists one recommendation as an immutable snapshot. A repeated id
// on the same day replaces the earlier snapshot's advisory fields (the run
// regenerated the same opportunity); history fields are preserved.
func (r *Repository) Create(rec domain.Recommendation, createdAt time.Time, expiresAt *time.Time) error {
	contextBlob, err := msgpack.Marshal(rec.Context)
	if err != nil {
		return fmt.Errorf("failed to encode context for %s: %w", rec.ID, err)
	}

	var expiresAtUnix interface{}
	if expiresAt != nil {
		expiresAtUnix = expiresAt.Unix()
	}

	_, err = r.db.Exec(`
		INSERT INTO recommendation_snapshots
			(id, strategy_type, category, priority, title, description, rationale,
			 action, action_type, potential_income, potential_risk, time_horizon,
			 context, status, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'new', ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			priority = excluded.priority,
			title = excluded.title,
			description = excluded.description,
			rationale = excluded.rationale,
			action = excluded.action,
			action_type = excluded.action_type,
			potential_income = excluded.potential_income,
			potential_risk = excluded.potential_risk,
			time_horizon = excluded.time_horizon,
			context = excluded.context,
			expires_at = excluded.expires_at
	`,
		rec.ID,
		rec.StrategyType,
		string(rec.Category),
		string(rec.Priority),
		rec.Title,
		rec.Description,
		rec.Rationale,
		rec.Action,
		rec.ActionType,
		rec.PotentialIncome,
		rec.PotentialRisk,
		rec.TimeHorizon,
		contextBlob,
		createdAt.Unix(),
		expiresAtUnix,
	)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot %s: %w", rec.ID, err)
	}

	return nil
}

// Get returns one snapshot by id, or nil when not found.
func (r *Repository) Get(id string) (*Snapshot, error) {
	snaps, err := r.query(`WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, nil
	}
	return &snaps[0], nil
}

// GetByDate returns all snapshots created on the given calendar date,
// evaluated in the date's location.
func (r *Repository) GetByDate(date time.Time) ([]Snapshot, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)
	return r.query(
		`WHERE created_at >= ? AND created_at < ? ORDER BY id ASC`,
		dayStart.Unix(), dayEnd.Unix(),
	)
}

// LatestPerStrategy returns the most recent snapshot for each strategy type.
func (r *Repository) LatestPerStrategy() ([]Snapshot, error) {
	return r.query(`
		WHERE created_at = (
			SELECT MAX(s2.created_at)
			FROM recommendation_snapshots s2
			WHERE s2.strategy_type = recommendation_snapshots.strategy_type
		)
		ORDER BY strategy_type ASC, id ASC`)
}

// UpdateStatus advances a snapshot's lifecycle status, enforcing the
// new -> acknowledged -> acted|dismissed transitions.
func (r *Repository) UpdateStatus(id string, next domain.SnapshotStatus) error {
	snap, err := r.Get(id)
	if err != nil {
		return err
	}
	if snap == nil {
		return fmt.Errorf("snapshot not found: %s", id)
	}
	if !snap.Status.CanTransitionTo(next) {
		return fmt.Errorf("invalid status transition %s -> %s for %s", snap.Status, next, id)
	}

	_, err = r.db.Exec(`UPDATE recommendation_snapshots SET status = ? WHERE id = ?`, string(next), id)
	if err != nil {
		return fmt.Errorf("failed to update status for %s: %w", id, err)
	}

	r.log.Info().Str("id", id).Str("status", string(next)).Msg("Snapshot status updated")
	return nil
}

// MarkNotified records that a notification was sent for a snapshot on one of
// the two tracks.
func (r *Repository) MarkNotified(id string, track NotificationTrack, at time.Time) error {
	var query string
	switch track {
	case TrackVerbose:
		query = `UPDATE recommendation_snapshots
			SET verbose_notification_sent = 1, verbose_notification_sent_at = ?
			WHERE id = ?`
	case TrackSmart:
		query = `UPDATE recommendation_snapshots
			SET smart_notification_sent = 1, smart_notification_sent_at = ?
			WHERE id = ?`
	default:
		return fmt.Errorf("unknown notification track: %s", track)
	}

	if _, err := r.db.Exec(query, at.Unix(), id); err != nil {
		return fmt.Errorf("failed to mark %s notification for %s: %w", track, id, err)
	}
	return nil
}

// Exclude flags a snapshot out of downstream learning aggregates without
// deleting it. This is the sanctioned response to a discovered strategy bug:
// the decision stays on record for audit.
func (r *Repository) Exclude(id, reason string, at time.Time) error {
	result, err := r.db.Exec(`
		UPDATE recommendation_snapshots
		SET excluded_from_learning = 1, exclusion_reason = ?, excluded_at = ?
		WHERE id = ?
	`, reason, at.Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to exclude snapshot %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("snapshot not found: %s", id)
	}

	r.log.Warn().Str("id", id).Str("reason", reason).Msg("Snapshot excluded from learning")
	return nil
}

// Count returns the total number of stored snapshots.
func (r *Repository) Count() (int, error) {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM recommendation_snapshots`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return count, nil
}

func (r *Repository) query(clause string, args ...interface{}) ([]Snapshot, error) {
	rows, err := r.db.Query(`
		SELECT id, strategy_type, category, priority, title, description, rationale,
		       action, action_type, potential_income, potential_risk, time_horizon,
		       context, status, created_at, expires_at,
		       verbose_notification_sent, verbose_notification_sent_at,
		       smart_notification_sent, smart_notification_sent_at,
		       excluded_from_learning, exclusion_reason, excluded_at
		FROM recommendation_snapshots
	`+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []Snapshot
	for rows.Next() {
		var s Snapshot
		var contextBlob []byte
		var createdAtUnix int64
		var expiresAtUnix, verboseSentAtUnix, smartSentAtUnix, excludedAtUnix sql.NullInt64
		var verboseSent, smartSent, excluded int
		var exclusionReason sql.NullString

		err := rows.Scan(
			&s.ID,
			&s.StrategyType,
			(*string)(&s.Category),
			(*string)(&s.Priority),
			&s.Title,
			&s.Description,
			&s.Rationale,
			&s.Action,
			&s.ActionType,
			&s.PotentialIncome,
			&s.PotentialRisk,
			&s.TimeHorizon,
			&contextBlob,
			(*string)(&s.Status),
			&createdAtUnix,
			&expiresAtUnix,
			&verboseSent,
			&verboseSentAtUnix,
			&smartSent,
			&smartSentAtUnix,
			&excluded,
			&exclusionReason,
			&excludedAtUnix,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}

		if err := msgpack.Unmarshal(contextBlob, &s.Context); err != nil {
			return nil, fmt.Errorf("failed to decode context for %s: %w", s.ID, err)
		}

		s.CreatedAt = time.Unix(createdAtUnix, 0).UTC()
		s.GeneratedAt = s.CreatedAt
		s.ExpiresAt = unixPtr(expiresAtUnix)
		s.VerboseNotificationSent = verboseSent != 0
		s.VerboseNotificationSentAt = unixPtr(verboseSentAtUnix)
		s.SmartNotificationSent = smartSent != 0
		s.SmartNotificationSentAt = unixPtr(smartSentAtUnix)
		s.ExcludedFromLearning = excluded != 0
		if exclusionReason.Valid {
			s.ExclusionReason = exclusionReason.String
		}
		s.ExcludedAt = unixPtr(excludedAtUnix)

		snaps = append(snaps, s)
	}

	return snaps, rows.Err()
}

func unixPtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}
