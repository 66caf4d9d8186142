package reconciliation

import (
	"sort"

	"github.com/mleventi/wheelhouse/internal/domain"
	"gonum.org/v1/gonum/stat"
)

// EpochSummary aggregates reconciliation outcomes for one algorithm version.
// Matches excluded from learning are left out, so a known-bad batch never
// skews the numbers.
type EpochSummary struct {
	AlgorithmVersion int     `json:"algorithm_version"`
	Exact            int     `json:"exact"`
	Partial          int     `json:"partial"`
	Missed           int     `json:"missed"`
	Independent      int     `json:"independent"`
	FollowRate       float64 `json:"follow_rate"`
	MeanStrikeDrift  float64 `json:"mean_strike_drift"`
	StdStrikeDrift   float64 `json:"std_strike_drift"`
	MeanPremiumDrift float64 `json:"mean_premium_drift"`
}

// SummarizeEpochs groups matches by algorithm version and computes follow
// rates and drift statistics per version. Drift is executed minus recommended
// on partial matches, where deviation is the signal.
func SummarizeEpochs(matches []Match) []EpochSummary {
	type acc struct {
		summary       EpochSummary
		strikeDrifts  []float64
		premiumDrifts []float64
	}
	byVersion := make(map[int]*acc)

	for _, m := range matches {
		if m.Superseded || m.ExcludedFromLearning {
			continue
		}
		a := byVersion[m.AlgorithmVersion]
		if a == nil {
			a = &acc{summary: EpochSummary{AlgorithmVersion: m.AlgorithmVersion}}
			byVersion[m.AlgorithmVersion] = a
		}

		switch m.MatchType {
		case domain.MatchExact:
			a.summary.Exact++
		case domain.MatchPartial:
			a.summary.Partial++
			a.strikeDrifts = append(a.strikeDrifts, m.ExecutedStrike-m.RecommendedStrike)
			a.premiumDrifts = append(a.premiumDrifts, m.ExecutedPremium-m.RecommendedPremium)
		case domain.MatchMissed:
			a.summary.Missed++
		case domain.MatchIndependent:
			a.summary.Independent++
		}
	}

	summaries := make([]EpochSummary, 0, len(byVersion))
	for _, a := range byVersion {
		followed := a.summary.Exact + a.summary.Partial
		total := followed + a.summary.Missed
		if total > 0 {
			a.summary.FollowRate = float64(followed) / float64(total)
		}
		if len(a.strikeDrifts) > 0 {
			a.summary.MeanStrikeDrift = stat.Mean(a.strikeDrifts, nil)
			a.summary.MeanPremiumDrift = stat.Mean(a.premiumDrifts, nil)
		}
		if len(a.strikeDrifts) > 1 {
			a.summary.StdStrikeDrift = stat.StdDev(a.strikeDrifts, nil)
		}
		summaries = append(summaries, a.summary)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].AlgorithmVersion < summaries[j].AlgorithmVersion
	})
	return summaries
}
