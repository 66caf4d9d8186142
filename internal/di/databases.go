package di

import (
	"fmt"

	"github.com/mleventi/wheelhouse/internal/config"
	"github.com/mleventi/wheelhouse/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens all 4 databases and applies schemas
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// 1. config.db - Strategy configuration and settings
	configDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/config.db",
		Profile: database.ProfileStandard,
		Name:    "config",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize config database: %w", err)
	}
	container.ConfigDB = configDB

	// 2. portfolio.db - Current portfolio state (positions, options, cash)
	portfolioDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/portfolio.db",
		Profile: database.ProfileStandard,
		Name:    "portfolio",
	})
	if err != nil {
		configDB.Close()
		return nil, fmt.Errorf("failed to initialize portfolio database: %w", err)
	}
	container.PortfolioDB = portfolioDB

	// 3. ledger.db - Immutable record of executed option trades
	ledgerDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/ledger.db",
		Profile: database.ProfileLedger, // Maximum safety for immutable audit trail
		Name:    "ledger",
	})
	if err != nil {
		configDB.Close()
		portfolioDB.Close()
		return nil, fmt.Errorf("failed to initialize ledger database: %w", err)
	}
	container.LedgerDB = ledgerDB

	// 4. advisory.db - Recommendation snapshots, throttle tracking, matches
	advisoryDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/advisory.db",
		Profile: database.ProfileLedger, // Snapshots are the reconciliation audit trail
		Name:    "advisory",
	})
	if err != nil {
		configDB.Close()
		portfolioDB.Close()
		ledgerDB.Close()
		return nil, fmt.Errorf("failed to initialize advisory database: %w", err)
	}
	container.AdvisoryDB = advisoryDB

	container.Databases = map[string]*database.DB{
		"config":    configDB,
		"portfolio": portfolioDB,
		"ledger":    ledgerDB,
		"advisory":  advisoryDB,
	}

	// Apply embedded schemas
	for name, db := range container.Databases {
		if err := db.Migrate(); err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to migrate %s database: %w", name, err)
		}
	}

	log.Info().
		Str("data_dir", cfg.DataDir).
		Int("databases", len(container.Databases)).
		Msg("Databases initialized")

	return container, nil
}
