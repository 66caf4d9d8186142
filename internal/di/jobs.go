package di

import (
	"context"
	"errors"
	"time"

	"github.com/mleventi/wheelhouse/internal/config"
	"github.com/mleventi/wheelhouse/internal/modules/advisory"
	"github.com/mleventi/wheelhouse/internal/scheduler"
	"github.com/rs/zerolog"
)

// throttle rows only matter within their week; keep a couple of months for
// inspection, then drop them.
const throttleRetention = 60 * 24 * time.Hour

// RegisterJobs wires the recurring work onto the scheduler.
// Advisory runs weekday mornings before the market opens, reconciliation
// runs weekday evenings after the ledger has the day's fills, and
// maintenance runs nightly.
func RegisterJobs(sched *scheduler.Scheduler, container *Container, cfg *config.Config, log zerolog.Logger) error {
	jobs := []scheduler.Job{
		{
			Name: "advisory_run",
			Spec: "0 10 * * 1-5",
			Run: func() error {
				report, err := container.AdvisoryService.Run(context.Background(), advisory.RunOptions{})
				if errors.Is(err, advisory.ErrRunInProgress) {
					log.Warn().Msg("Advisory run already in progress, skipping scheduled run")
					return nil
				}
				if err != nil {
					return err
				}
				log.Info().
					Int("generated", report.Generated).
					Int("notified", report.Notified).
					Int("throttled", report.Throttled).
					Msg("Scheduled advisory run complete")
				return nil
			},
		},
		{
			Name: "reconciliation",
			Spec: "30 22 * * 1-5",
			Run: func() error {
				now := time.Now()
				summary, _, err := container.ReconciliationService.Reconcile(now, now)
				if err != nil {
					return err
				}
				log.Info().
					Str("date", summary.Date).
					Int("exact", summary.Exact).
					Int("partial", summary.Partial).
					Int("missed", summary.Missed).
					Int("independent", summary.Independent).
					Msg("Scheduled reconciliation complete")
				return nil
			},
		},
		{
			Name: "maintenance",
			Spec: "15 2 * * *",
			Run: func() error {
				if err := container.MaintenanceService.Run(context.Background()); err != nil {
					return err
				}
				pruned, err := container.ThrottleRepo.PruneBefore(time.Now().Add(-throttleRetention))
				if err != nil {
					return err
				}
				if pruned > 0 {
					log.Info().Int64("pruned", pruned).Msg("Old throttle records pruned")
				}
				return nil
			},
		},
	}

	if container.BackupService != nil {
		jobs = append(jobs, scheduler.Job{
			Name: "backup",
			Spec: "45 2 * * *",
			Run: func() error {
				ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
				defer cancel()
				if err := container.BackupService.CreateAndUpload(ctx); err != nil {
					return err
				}
				return container.BackupService.RotateOldBackups(ctx, cfg.Backup.RetentionDays)
			},
		})
	}

	for _, job := range jobs {
		if err := sched.Register(job); err != nil {
			return err
		}
	}
	return nil
}
