package reconciliation

import (
	"database/sql"
	"fmt"
	"time"
)

// AlgorithmChange records one revision of the recommendation logic. Matches
// are stamped with the version that was active when the recommendation was
// created, so learning can segment results across revisions.
type AlgorithmChange struct {
	ID              int64     `json:"id"`
	ChangedAt       time.Time `json:"changed_at"`
	Description     string    `json:"description"`
	PreviousVersion int       `json:"previous_version"`
	NewVersion      int       `json:"new_version"`
}

// AlgorithmLog persists the revision history.
// Database: advisory.db (algorithm_changes table)
type AlgorithmLog struct {
	db *sql.DB
}

// NewAlgorithmLog creates a new algorithm change log.
func NewAlgorithmLog(db *sql.DB) *AlgorithmLog {
	return &AlgorithmLog{db: db}
}

// CurrentVersion returns the active version. An empty log is version 1.
func (l *AlgorithmLog) CurrentVersion() (int, error) {
	var version sql.NullInt64
	err := l.db.QueryRow(`SELECT MAX(new_version) FROM algorithm_changes`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to query current algorithm version: %w", err)
	}
	if !version.Valid {
		return 1, nil
	}
	return int(version.Int64), nil
}

// VersionAt returns the version that was active at the given time.
func (l *AlgorithmLog) VersionAt(t time.Time) (int, error) {
	var version sql.NullInt64
	err := l.db.QueryRow(`
		SELECT new_version FROM algorithm_changes
		WHERE changed_at <= ?
		ORDER BY changed_at DESC, id DESC
		LIMIT 1
	`, t.Unix()).Scan(&version)
	if err == sql.ErrNoRows {
		return 1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query algorithm version: %w", err)
	}
	return int(version.Int64), nil
}

// RecordChange logs a revision and returns the new version number.
func (l *AlgorithmLog) RecordChange(description string, at time.Time) (int, error) {
	current, err := l.CurrentVersion()
	if err != nil {
		return 0, err
	}
	next := current + 1

	_, err = l.db.Exec(`
		INSERT INTO algorithm_changes (changed_at, description, previous_version, new_version)
		VALUES (?, ?, ?, ?)
	`, at.Unix(), description, current, next)
	if err != nil {
		return 0, fmt.Errorf("failed to record algorithm change: %w", err)
	}

	return next, nil
}

// Changes returns the full revision history, oldest first.
func (l *AlgorithmLog) Changes() ([]AlgorithmChange, error) {
	rows, err := l.db.Query(`
		SELECT id, changed_at, description, previous_version, new_version
		FROM algorithm_changes
		ORDER BY changed_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query algorithm changes: %w", err)
	}
	defer rows.Close()

	var changes []AlgorithmChange
	for rows.Next() {
		var c AlgorithmChange
		var changedAtUnix int64
		if err := rows.Scan(&c.ID, &changedAtUnix, &c.Description, &c.PreviousVersion, &c.NewVersion); err != nil {
			return nil, fmt.Errorf("failed to scan algorithm change: %w", err)
		}
		c.ChangedAt = time.Unix(changedAtUnix, 0).UTC()
		changes = append(changes, c)
	}

	return changes, rows.Err()
}
