package di

import (
	"github.com/mleventi/wheelhouse/internal/modules/executions"
	"github.com/mleventi/wheelhouse/internal/modules/notify"
	"github.com/mleventi/wheelhouse/internal/modules/portfolio"
	"github.com/mleventi/wheelhouse/internal/modules/reconciliation"
	"github.com/mleventi/wheelhouse/internal/modules/snapshots"
	"github.com/mleventi/wheelhouse/internal/modules/strategyconfig"
	"github.com/mleventi/wheelhouse/internal/modules/throttle"
	"github.com/rs/zerolog"
)

// InitializeRepositories creates all repositories over the opened databases
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	container.StrategyConfigs = strategyconfig.NewRepository(container.ConfigDB.Conn(), log)
	container.PortfolioRepo = portfolio.NewRepository(container.PortfolioDB.Conn())
	container.ExecutionRepo = executions.NewRepository(container.LedgerDB.Conn())

	container.SnapshotRepo = snapshots.NewRepository(container.AdvisoryDB.Conn(), log)
	container.ThrottleRepo = throttle.NewRepository(container.AdvisoryDB.Conn())
	container.MatchRepo = reconciliation.NewRepository(container.AdvisoryDB.Conn(), log)
	container.AlgorithmLog = reconciliation.NewAlgorithmLog(container.AdvisoryDB.Conn())
	container.NotifyState = notify.NewStateRepository(container.AdvisoryDB.Conn())

	log.Debug().Msg("Repositories initialized")
	return nil
}
