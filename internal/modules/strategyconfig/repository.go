// Package strategyconfig persists per-strategy configuration.
// Configs are edited by configuration management; the advisory engine only
// reads them at the start of a run.
package strategyconfig

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mleventi/wheelhouse/internal/domain"
	"github.com/rs/zerolog"
)

// Repository handles CRUD operations for strategy configs.
// Database: config.db (strategy_configs table)
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new strategy config repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "strategy_config").Logger(),
	}
}

// Get returns the config for a strategy type, or nil when none is stored.
func (r *Repository) Get(strategyType string) (*domain.StrategyConfig, error) {
	row := r.db.QueryRow(`
		SELECT strategy_type, enabled, notification_enabled,
		       notification_priority_threshold, parameters, updated_at
		FROM strategy_configs
		WHERE strategy_type = ?
	`, strategyType)

	cfg, err := scanConfig(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get strategy config %s: %w", strategyType, err)
	}
	return cfg, nil
}

// All returns every stored config keyed by strategy type.
func (r *Repository) All() (map[string]*domain.StrategyConfig, error) {
	rows, err := r.db.Query(`
		SELECT strategy_type, enabled, notification_enabled,
		       notification_priority_threshold, parameters, updated_at
		FROM strategy_configs
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query strategy configs: %w", err)
	}
	defer rows.Close()

	configs := make(map[string]*domain.StrategyConfig)
	for rows.Next() {
		cfg, err := scanConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan strategy config: %w", err)
		}
		configs[cfg.StrategyType] = cfg
	}

	return configs, rows.Err()
}

// Upsert creates or replaces the config for a strategy type.
func (r *Repository) Upsert(cfg domain.StrategyConfig) error {
	if !cfg.NotificationPriorityThreshold.Valid() {
		return fmt.Errorf("invalid notification priority threshold: %s", cfg.NotificationPriorityThreshold)
	}

	paramsJSON, err := json.Marshal(cfg.Parameters)
	if err != nil {
		return fmt.Errorf("failed to marshal parameters for %s: %w", cfg.StrategyType, err)
	}

	_, err = r.db.Exec(`
		INSERT INTO strategy_configs
			(strategy_type, enabled, notification_enabled,
			 notification_priority_threshold, parameters, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(strategy_type) DO UPDATE SET
			enabled = excluded.enabled,
			notification_enabled = excluded.notification_enabled,
			notification_priority_threshold = excluded.notification_priority_threshold,
			parameters = excluded.parameters,
			updated_at = excluded.updated_at
	`,
		cfg.StrategyType,
		boolToInt(cfg.Enabled),
		boolToInt(cfg.NotificationEnabled),
		string(cfg.NotificationPriorityThreshold),
		string(paramsJSON),
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert strategy config %s: %w", cfg.StrategyType, err)
	}

	r.log.Info().Str("strategy", cfg.StrategyType).Bool("enabled", cfg.Enabled).Msg("Strategy config updated")
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanConfig(row rowScanner) (*domain.StrategyConfig, error) {
	var cfg domain.StrategyConfig
	var enabled, notificationEnabled int
	var threshold, paramsJSON string
	var updatedAtUnix int64

	err := row.Scan(
		&cfg.StrategyType,
		&enabled,
		&notificationEnabled,
		&threshold,
		&paramsJSON,
		&updatedAtUnix,
	)
	if err != nil {
		return nil, err
	}

	cfg.Enabled = enabled != 0
	cfg.NotificationEnabled = notificationEnabled != 0
	cfg.NotificationPriorityThreshold = domain.Priority(threshold)
	cfg.UpdatedAt = time.Unix(updatedAtUnix, 0).UTC()

	cfg.Parameters = make(map[string]interface{})
	if paramsJSON != "" {
		if err := json.Unmarshal([]byte(paramsJSON), &cfg.Parameters); err != nil {
			return nil, fmt.Errorf("malformed parameters JSON: %w", err)
		}
	}

	return &cfg, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
