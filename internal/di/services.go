package di

import (
	"context"
	"fmt"

	"github.com/mleventi/wheelhouse/internal/config"
	"github.com/mleventi/wheelhouse/internal/modules/advisory"
	"github.com/mleventi/wheelhouse/internal/modules/notify"
	"github.com/mleventi/wheelhouse/internal/modules/reconciliation"
	"github.com/mleventi/wheelhouse/internal/modules/strategies"
	"github.com/mleventi/wheelhouse/internal/modules/throttle"
	"github.com/mleventi/wheelhouse/internal/reliability"
	"github.com/rs/zerolog"
)

// InitializeServices creates all services over the repositories
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	container.StrategyRegistry = strategies.NewPopulatedRegistry(log)
	container.Engine = advisory.NewEngine(container.StrategyRegistry, log)

	container.ThrottleService = throttle.NewService(container.ThrottleRepo, cfg.MinProfitDelta, log)

	// Notifications go to the structured log and to connected dashboard clients.
	container.NotifyHub = notify.NewHub(log)
	container.Dispatcher = notify.NewDispatcher(
		container.NotifyState,
		[]notify.Channel{notify.NewLogChannel(log), container.NotifyHub},
		log,
	)

	container.AdvisoryService = advisory.NewService(
		container.Engine,
		container.PortfolioRepo,
		container.StrategyConfigs,
		container.SnapshotRepo,
		container.ThrottleService,
		container.Dispatcher,
		cfg.DefaultPremium,
		cfg.ProfitThreshold,
		log,
	)

	container.ReconciliationService = reconciliation.NewService(
		container.SnapshotRepo,
		container.ExecutionRepo,
		container.MatchRepo,
		container.AlgorithmLog,
		cfg.ReconcileGrace,
		cfg.SupersedeBehavior,
		log,
	)

	container.MaintenanceService = reliability.NewMaintenanceService(container.Databases, cfg.DataDir, log)

	if cfg.BackupEnabled() {
		s3Client, err := reliability.NewS3Client(context.Background(), reliability.S3Config{
			Bucket:    cfg.Backup.Bucket,
			Endpoint:  cfg.Backup.Endpoint,
			Region:    cfg.Backup.Region,
			AccessKey: cfg.Backup.AccessKey,
			SecretKey: cfg.Backup.SecretKey,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to initialize backup client: %w", err)
		}
		container.BackupService = reliability.NewBackupService(s3Client, container.Databases, cfg.DataDir, log)
		log.Info().Str("bucket", cfg.Backup.Bucket).Msg("Offsite backups enabled")
	} else {
		log.Info().Msg("Offsite backups not configured, skipping")
	}

	log.Debug().Msg("Services initialized")
	return nil
}
