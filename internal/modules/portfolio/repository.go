// Package portfolio holds the current view of equity positions, open option
// positions, and cash. This is the raw material the strategies evaluate.
package portfolio

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mleventi/wheelhouse/internal/domain"
)

// Repository reads and writes the portfolio snapshot.
// Database: portfolio.db (positions, option_positions, cash_balances tables)
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new portfolio repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Positions returns all equity positions ordered by symbol.
func (r *Repository) Positions() ([]domain.Position, error) {
	rows, err := r.db.Query(`
		SELECT symbol, quantity, average_cost, current_price
		FROM positions
		ORDER BY symbol ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		var p domain.Position
		if err := rows.Scan(&p.Symbol, &p.Quantity, &p.AverageCost, &p.CurrentPrice); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, p)
	}

	return positions, rows.Err()
}

// UpsertPosition creates or replaces an equity position.
func (r *Repository) UpsertPosition(p domain.Position) error {
	_, err := r.db.Exec(`
		INSERT INTO positions (symbol, quantity, average_cost, current_price, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			quantity = excluded.quantity,
			average_cost = excluded.average_cost,
			current_price = excluded.current_price,
			updated_at = excluded.updated_at
	`, p.Symbol, p.Quantity, p.AverageCost, p.CurrentPrice, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert position %s: %w", p.Symbol, err)
	}
	return nil
}

// OptionPositions returns all open option positions ordered by symbol then
// expiration.
func (r *Repository) OptionPositions() ([]domain.OptionPosition, error) {
	rows, err := r.db.Query(`
		SELECT id, symbol, option_type, side, strike, expiration, contracts,
		       open_premium, current_premium
		FROM option_positions
		ORDER BY symbol ASC, expiration ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query option positions: %w", err)
	}
	defer rows.Close()

	var positions []domain.OptionPosition
	for rows.Next() {
		var p domain.OptionPosition
		err := rows.Scan(
			&p.ID,
			&p.Symbol,
			(*string)(&p.OptionType),
			&p.Side,
			&p.Strike,
			&p.Expiration,
			&p.Contracts,
			&p.OpenPremium,
			&p.CurrentPremium,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan option position: %w", err)
		}
		positions = append(positions, p)
	}

	return positions, rows.Err()
}

// UpsertOptionPosition creates or updates an open option position.
func (r *Repository) UpsertOptionPosition(p domain.OptionPosition) (int64, error) {
	now := time.Now().Unix()
	if p.ID != 0 {
		_, err := r.db.Exec(`
			UPDATE option_positions
			SET current_premium = ?, contracts = ?, updated_at = ?
			WHERE id = ?
		`, p.CurrentPremium, p.Contracts, now, p.ID)
		if err != nil {
			return 0, fmt.Errorf("failed to update option position %d: %w", p.ID, err)
		}
		return p.ID, nil
	}

	result, err := r.db.Exec(`
		INSERT INTO option_positions
			(symbol, option_type, side, strike, expiration, contracts,
			 open_premium, current_premium, opened_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.Symbol, string(p.OptionType), p.Side, p.Strike, p.Expiration,
		p.Contracts, p.OpenPremium, p.CurrentPremium, now, now)
	if err != nil {
		return 0, fmt.Errorf("failed to insert option position: %w", err)
	}
	return result.LastInsertId()
}

// CloseOptionPosition removes a position that expired or was bought back.
func (r *Repository) CloseOptionPosition(id int64) error {
	result, err := r.db.Exec(`DELETE FROM option_positions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to close option position %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("option position not found: %d", id)
	}
	return nil
}

// CashAvailable returns unreserved cash summed across currencies.
func (r *Repository) CashAvailable() (float64, error) {
	var available sql.NullFloat64
	err := r.db.QueryRow(`SELECT SUM(amount - reserved) FROM cash_balances`).Scan(&available)
	if err != nil {
		return 0, fmt.Errorf("failed to query cash balances: %w", err)
	}
	return available.Float64, nil
}

// SetCashBalance creates or replaces the balance for one currency.
func (r *Repository) SetCashBalance(currency string, amount, reserved float64) error {
	_, err := r.db.Exec(`
		INSERT INTO cash_balances (currency, amount, reserved, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(currency) DO UPDATE SET
			amount = excluded.amount,
			reserved = excluded.reserved,
			updated_at = excluded.updated_at
	`, currency, amount, reserved, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to set cash balance %s: %w", currency, err)
	}
	return nil
}

// MarketContext assembles the read-only view of the portfolio that strategies
// evaluate. Today is stamped by the caller so runs are reproducible.
func (r *Repository) MarketContext(today time.Time, defaultPremium, profitThreshold float64) (*domain.MarketContext, error) {
	positions, err := r.Positions()
	if err != nil {
		return nil, err
	}

	optionPositions, err := r.OptionPositions()
	if err != nil {
		return nil, err
	}

	cash, err := r.CashAvailable()
	if err != nil {
		return nil, err
	}

	return &domain.MarketContext{
		Today:           today,
		Positions:       positions,
		OptionPositions: optionPositions,
		CashAvailable:   cash,
		DefaultPremium:  defaultPremium,
		ProfitThreshold: profitThreshold,
	}, nil
}
