package reconciliation

import (
	"time"

	"github.com/mleventi/wheelhouse/internal/domain"
	"github.com/mleventi/wheelhouse/internal/modules/snapshots"
	"github.com/rs/zerolog"
)

type snapshotSource interface {
	GetByDate(date time.Time) ([]snapshots.Snapshot, error)
}

type executionSource interface {
	ListForReconciliation(date time.Time, graceDays int) ([]domain.OptionExecution, error)
}

type matchStore interface {
	ReplaceDay(date string, matches []Match, behavior string, now time.Time) error
	GetByDate(date string, includeSuperseded bool) ([]Match, error)
}

type versionSource interface {
	CurrentVersion() (int, error)
	VersionAt(t time.Time) (int, error)
}

// Summary counts one reconciliation run's outcomes.
type Summary struct {
	Date        string `json:"date"`
	Exact       int    `json:"exact"`
	Partial     int    `json:"partial"`
	Missed      int    `json:"missed"`
	Independent int    `json:"independent"`
}

// Service runs daily reconciliation: recommendations from the grace window
// against executions from the same window, with results replacing any prior
// run for the date.
type Service struct {
	snapshots  snapshotSource
	executions executionSource
	matches    matchStore
	versions   versionSource

	graceDays int
	behavior  string
	log       zerolog.Logger
}

// NewService creates the reconciliation service. graceDays widens the window
// so late fills still meet their recommendation; behavior is SupersedeFlag or
// SupersedeDelete.
func NewService(
	snapshotSrc snapshotSource,
	executionSrc executionSource,
	matchStore matchStore,
	versions versionSource,
	graceDays int,
	behavior string,
	log zerolog.Logger,
) *Service {
	return &Service{
		snapshots:  snapshotSrc,
		executions: executionSrc,
		matches:    matchStore,
		versions:   versions,
		graceDays:  graceDays,
		behavior:   behavior,
		log:        log.With().Str("service", "reconciliation").Logger(),
	}
}

// Reconcile matches one date and persists the result. Re-running the same
// date supersedes the earlier result instead of duplicating it.
func (s *Service) Reconcile(date time.Time, now time.Time) (*Summary, []Match, error) {
	var snaps []snapshots.Snapshot
	createdAt := make(map[string]time.Time)
	for back := s.graceDays; back >= 0; back-- {
		day := date.AddDate(0, 0, -back)
		daySnaps, err := s.snapshots.GetByDate(day)
		if err != nil {
			return nil, nil, err
		}
		for _, snap := range daySnaps {
			createdAt[snap.ID] = snap.CreatedAt
		}
		snaps = append(snaps, daySnaps...)
	}

	execs, err := s.executions.ListForReconciliation(date, s.graceDays)
	if err != nil {
		return nil, nil, err
	}

	matches := MatchDay(date, snaps, execs)

	currentVersion, err := s.versions.CurrentVersion()
	if err != nil {
		return nil, nil, err
	}
	for i := range matches {
		m := &matches[i]
		// Matches carry the version active when the recommendation was made,
		// not the version running today.
		if m.RecommendationSnapshotID != nil {
			if at, ok := createdAt[*m.RecommendationSnapshotID]; ok {
				version, err := s.versions.VersionAt(at)
				if err != nil {
					return nil, nil, err
				}
				m.AlgorithmVersion = version
				continue
			}
		}
		m.AlgorithmVersion = currentVersion
	}

	dateStr := date.Format("2006-01-02")
	if err := s.matches.ReplaceDay(dateStr, matches, s.behavior, now); err != nil {
		return nil, nil, err
	}

	summary := &Summary{Date: dateStr}
	for _, m := range matches {
		switch m.MatchType {
		case domain.MatchExact:
			summary.Exact++
		case domain.MatchPartial:
			summary.Partial++
		case domain.MatchMissed:
			summary.Missed++
		case domain.MatchIndependent:
			summary.Independent++
		}
	}

	s.log.Info().
		Str("date", dateStr).
		Int("exact", summary.Exact).
		Int("partial", summary.Partial).
		Int("missed", summary.Missed).
		Int("independent", summary.Independent).
		Msg("Reconciliation complete")

	return summary, matches, nil
}
