// Package executions records option trades actually filled at the broker.
// Rows are append-only input for reconciliation.
package executions

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mleventi/wheelhouse/internal/domain"
)

// Repository owns the option execution ledger.
// Database: ledger.db (option_executions table)
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new executions repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create records one filled order. A repeated order id is ignored so broker
// feeds can be replayed safely.
func (r *Repository) Create(e domain.OptionExecution) error {
	_, err := r.db.Exec(`
		INSERT OR IGNORE INTO option_executions
			(order_id, symbol, option_type, side, strike, expiration, quantity,
			 premium, executed_at, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.OrderID,
		e.Symbol,
		string(e.OptionType),
		e.Side,
		e.Strike,
		e.Expiration,
		e.Quantity,
		e.Premium,
		e.ExecutedAt.Unix(),
		e.Source,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert execution %s: %w", e.OrderID, err)
	}
	return nil
}

// ListForReconciliation returns executions filled on the reconciliation date
// or within the preceding grace window, ordered by execution time.
func (r *Repository) ListForReconciliation(date time.Time, graceDays int) ([]domain.OptionExecution, error) {
	dayEnd := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location()).AddDate(0, 0, 1)
	windowStart := dayEnd.AddDate(0, 0, -(graceDays + 1))
	return r.list(`WHERE executed_at >= ? AND executed_at < ? ORDER BY executed_at ASC, id ASC`,
		windowStart.Unix(), dayEnd.Unix())
}

// ListRecent returns the most recent executions, newest first.
func (r *Repository) ListRecent(limit int) ([]domain.OptionExecution, error) {
	return r.list(`ORDER BY executed_at DESC, id DESC LIMIT ?`, limit)
}

func (r *Repository) list(clause string, args ...interface{}) ([]domain.OptionExecution, error) {
	rows, err := r.db.Query(`
		SELECT id, order_id, symbol, option_type, side, strike, expiration,
		       quantity, premium, executed_at, source
		FROM option_executions
	`+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}
	defer rows.Close()

	var execs []domain.OptionExecution
	for rows.Next() {
		var e domain.OptionExecution
		var executedAtUnix int64
		err := rows.Scan(
			&e.ID,
			&e.OrderID,
			&e.Symbol,
			(*string)(&e.OptionType),
			&e.Side,
			&e.Strike,
			&e.Expiration,
			&e.Quantity,
			&e.Premium,
			&executedAtUnix,
			&e.Source,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		e.ExecutedAt = time.Unix(executedAtUnix, 0).UTC()
		execs = append(execs, e)
	}

	return execs, rows.Err()
}
