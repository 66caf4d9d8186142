// Package di provides dependency injection wiring and initialization.
package di

import (
	"github.com/mleventi/wheelhouse/internal/database"
	"github.com/mleventi/wheelhouse/internal/modules/advisory"
	"github.com/mleventi/wheelhouse/internal/modules/executions"
	"github.com/mleventi/wheelhouse/internal/modules/notify"
	"github.com/mleventi/wheelhouse/internal/modules/portfolio"
	"github.com/mleventi/wheelhouse/internal/modules/reconciliation"
	"github.com/mleventi/wheelhouse/internal/modules/snapshots"
	"github.com/mleventi/wheelhouse/internal/modules/strategies"
	"github.com/mleventi/wheelhouse/internal/modules/strategyconfig"
	"github.com/mleventi/wheelhouse/internal/modules/throttle"
	"github.com/mleventi/wheelhouse/internal/reliability"
)

// Container holds all initialized dependencies
type Container struct {
	// Databases
	ConfigDB    *database.DB
	PortfolioDB *database.DB
	LedgerDB    *database.DB
	AdvisoryDB  *database.DB
	Databases   map[string]*database.DB

	// Repositories
	StrategyConfigs *strategyconfig.Repository
	PortfolioRepo   *portfolio.Repository
	SnapshotRepo    *snapshots.Repository
	ThrottleRepo    *throttle.Repository
	ExecutionRepo   *executions.Repository
	MatchRepo       *reconciliation.Repository
	AlgorithmLog    *reconciliation.AlgorithmLog
	NotifyState     *notify.StateRepository

	// Services
	StrategyRegistry      *strategies.Registry
	Engine                *advisory.Engine
	ThrottleService       *throttle.Service
	NotifyHub             *notify.Hub
	Dispatcher            *notify.Dispatcher
	AdvisoryService       *advisory.Service
	ReconciliationService *reconciliation.Service
	MaintenanceService    *reliability.MaintenanceService
	BackupService         *reliability.BackupService // nil when backups are not configured
}

// Close closes all database connections
func (c *Container) Close() {
	for _, db := range []*database.DB{c.AdvisoryDB, c.LedgerDB, c.PortfolioDB, c.ConfigDB} {
		if db != nil {
			db.Close()
		}
	}
}
