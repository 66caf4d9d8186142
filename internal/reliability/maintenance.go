package reliability

import (
	"context"
	"fmt"
	"syscall"

	"github.com/mleventi/wheelhouse/internal/database"
	"github.com/rs/zerolog"
)

// Disk space thresholds for the data directory.
const (
	diskWarnFraction = 0.10
	diskHaltFraction = 0.05
)

// MaintenanceService runs the nightly database upkeep: integrity checks, WAL
// checkpoints, and a disk space guard.
type MaintenanceService struct {
	databases map[string]*database.DB
	dataDir   string
	log       zerolog.Logger
}

// NewMaintenanceService creates the maintenance service.
func NewMaintenanceService(databases map[string]*database.DB, dataDir string, log zerolog.Logger) *MaintenanceService {
	return &MaintenanceService{
		databases: databases,
		dataDir:   dataDir,
		log:       log.With().Str("service", "maintenance").Logger(),
	}
}

// Run executes one maintenance pass. A failed integrity check is fatal; a
// failed checkpoint is only logged.
func (s *MaintenanceService) Run(ctx context.Context) error {
	for name, db := range s.databases {
		if err := db.QuickCheck(ctx); err != nil {
			s.log.Error().Err(err).Str("database", name).Msg("Integrity check failed")
			return fmt.Errorf("integrity check failed for %s: %w", name, err)
		}

		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			s.log.Warn().Err(err).Str("database", name).Msg("WAL checkpoint failed")
		}
	}

	return s.checkDiskSpace()
}

func (s *MaintenanceService) checkDiskSpace() error {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(s.dataDir, &stat); err != nil {
		s.log.Warn().Err(err).Msg("Failed to stat filesystem")
		return nil
	}

	total := stat.Blocks * uint64(stat.Bsize)
	free := stat.Bavail * uint64(stat.Bsize)
	if total == 0 {
		return nil
	}
	fraction := float64(free) / float64(total)

	switch {
	case fraction < diskHaltFraction:
		return fmt.Errorf("disk critically low: %.1f%% free", fraction*100)
	case fraction < diskWarnFraction:
		s.log.Warn().Float64("free_percent", fraction*100).Msg("Disk space low")
	}
	return nil
}
