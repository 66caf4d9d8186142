// Package reconciliation compares what the engine recommended against what
// was actually traded, producing an auditable match record per pair.
package reconciliation

import (
	"math"
	"sort"
	"time"

	"github.com/mleventi/wheelhouse/internal/domain"
	"github.com/mleventi/wheelhouse/internal/modules/snapshots"
)

// Match is one reconciliation outcome. Exactly one of the recommendation and
// execution sides may be empty: missed matches have no execution, independent
// matches have no recommendation.
type Match struct {
	ID                 string           `json:"id"`
	ReconciliationDate string           `json:"reconciliation_date"` // YYYY-MM-DD
	MatchType          domain.MatchType `json:"match_type"`
	AlgorithmVersion   int              `json:"algorithm_version"`

	RecommendationSnapshotID *string           `json:"recommendation_snapshot_id,omitempty"`
	RecommendationDate       string            `json:"recommendation_date,omitempty"` // YYYY-MM-DD
	RecommendedSymbol        string            `json:"recommended_symbol,omitempty"`
	RecommendedOptionType    domain.OptionType `json:"recommended_option_type,omitempty"`
	RecommendedStrike        float64           `json:"recommended_strike,omitempty"`
	RecommendedExpiration    string            `json:"recommended_expiration,omitempty"` // YYYY-MM-DD
	RecommendedPremium       float64           `json:"recommended_premium,omitempty"`

	ExecutionID        *int64            `json:"execution_id,omitempty"`
	ExecutedSymbol     string            `json:"executed_symbol,omitempty"`
	ExecutedOptionType domain.OptionType `json:"executed_option_type,omitempty"`
	ExecutedStrike     float64           `json:"executed_strike,omitempty"`
	ExecutedExpiration string            `json:"executed_expiration,omitempty"` // YYYY-MM-DD
	ExecutedPremium    float64           `json:"executed_premium,omitempty"`
	ExecutedQuantity   int               `json:"executed_quantity,omitempty"`
	ExecutedAt         *time.Time        `json:"executed_at,omitempty"`

	Superseded bool       `json:"superseded"`
	ReviewedAt *time.Time `json:"reviewed_at,omitempty"`

	ExcludedFromLearning bool       `json:"excluded_from_learning"`
	ExclusionReason      string     `json:"exclusion_reason,omitempty"`
	ExcludedAt           *time.Time `json:"excluded_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// leg is the option contract a recommendation proposes. For rolls this is the
// new position, since that is what would show up as a fill.
type leg struct {
	snapshotID string
	date       string
	symbol     string
	optionType domain.OptionType
	strike     float64
	expiration string
	premium    float64
}

func recommendationLeg(s snapshots.Snapshot) (leg, bool) {
	c := s.Context
	if c.Symbol == "" || c.OptionType == "" {
		return leg{}, false
	}

	l := leg{
		snapshotID: s.ID,
		date:       s.CreatedAt.Format("2006-01-02"),
		symbol:     c.Symbol,
		optionType: c.OptionType,
		strike:     c.Strike,
		expiration: c.Expiration,
		premium:    c.Premium,
	}
	if c.IsRoll() {
		l.strike = c.NewStrike
		if l.strike == 0 {
			l.strike = c.Strike
		}
		l.expiration = c.NewExpiration
		l.premium = c.NewPremium
	}
	if l.strike == 0 || l.expiration == "" {
		return leg{}, false
	}
	return l, true
}

// MatchDay pairs recommendations with executions for one reconciliation date.
// Pairing is greedy: exact contract matches first, then same symbol and
// option type at the nearest strike. Unpaired recommendations become missed
// matches, unpaired executions become independent. Snapshots without an
// actionable option leg are ignored.
func MatchDay(reconDate time.Time, snaps []snapshots.Snapshot, execs []domain.OptionExecution) []Match {
	var legs []leg
	for _, s := range snaps {
		if l, ok := recommendationLeg(s); ok {
			legs = append(legs, l)
		}
	}
	sort.Slice(legs, func(i, j int) bool { return legs[i].snapshotID < legs[j].snapshotID })

	usedLeg := make([]bool, len(legs))
	usedExec := make([]bool, len(execs))
	dateStr := reconDate.Format("2006-01-02")

	var matches []Match

	// Exact pass: identical contract.
	for i, l := range legs {
		for j, e := range execs {
			if usedExec[j] {
				continue
			}
			if l.symbol == e.Symbol && l.optionType == e.OptionType &&
				l.strike == e.Strike && l.expiration == e.Expiration {
				matches = append(matches, pairMatch(dateStr, domain.MatchExact, l, execs[j]))
				usedLeg[i] = true
				usedExec[j] = true
				break
			}
		}
	}

	// Partial pass: same symbol and option type, nearest strike wins. Equal
	// distances resolve to the earliest recommendation id.
	type candidate struct {
		legIdx, execIdx int
		strikeDiff      float64
	}
	var candidates []candidate
	for i, l := range legs {
		if usedLeg[i] {
			continue
		}
		for j, e := range execs {
			if usedExec[j] {
				continue
			}
			if l.symbol == e.Symbol && l.optionType == e.OptionType {
				candidates = append(candidates, candidate{i, j, math.Abs(l.strike - e.Strike)})
			}
		}
	}
	sort.Slice(candidates, func(a, b int) bool {
		if candidates[a].strikeDiff != candidates[b].strikeDiff {
			return candidates[a].strikeDiff < candidates[b].strikeDiff
		}
		if legs[candidates[a].legIdx].snapshotID != legs[candidates[b].legIdx].snapshotID {
			return legs[candidates[a].legIdx].snapshotID < legs[candidates[b].legIdx].snapshotID
		}
		return execs[candidates[a].execIdx].ID < execs[candidates[b].execIdx].ID
	})
	for _, c := range candidates {
		if usedLeg[c.legIdx] || usedExec[c.execIdx] {
			continue
		}
		matches = append(matches, pairMatch(dateStr, domain.MatchPartial, legs[c.legIdx], execs[c.execIdx]))
		usedLeg[c.legIdx] = true
		usedExec[c.execIdx] = true
	}

	// Leftovers.
	for i, l := range legs {
		if usedLeg[i] {
			continue
		}
		snapshotID := l.snapshotID
		matches = append(matches, Match{
			ReconciliationDate:       dateStr,
			MatchType:                domain.MatchMissed,
			RecommendationSnapshotID: &snapshotID,
			RecommendationDate:       l.date,
			RecommendedSymbol:        l.symbol,
			RecommendedOptionType:    l.optionType,
			RecommendedStrike:        l.strike,
			RecommendedExpiration:    l.expiration,
			RecommendedPremium:       l.premium,
		})
	}
	for j, e := range execs {
		if usedExec[j] {
			continue
		}
		executionID := e.ID
		executedAt := e.ExecutedAt
		matches = append(matches, Match{
			ReconciliationDate: dateStr,
			MatchType:          domain.MatchIndependent,
			ExecutionID:        &executionID,
			ExecutedSymbol:     e.Symbol,
			ExecutedOptionType: e.OptionType,
			ExecutedStrike:     e.Strike,
			ExecutedExpiration: e.Expiration,
			ExecutedPremium:    e.Premium,
			ExecutedQuantity:   e.Quantity,
			ExecutedAt:         &executedAt,
		})
	}

	return matches
}

func pairMatch(dateStr string, matchType domain.MatchType, l leg, e domain.OptionExecution) Match {
	snapshotID := l.snapshotID
	executionID := e.ID
	executedAt := e.ExecutedAt
	return Match{
		ReconciliationDate:       dateStr,
		MatchType:                matchType,
		RecommendationSnapshotID: &snapshotID,
		RecommendationDate:       l.date,
		RecommendedSymbol:        l.symbol,
		RecommendedOptionType:    l.optionType,
		RecommendedStrike:        l.strike,
		RecommendedExpiration:    l.expiration,
		RecommendedPremium:       l.premium,
		ExecutionID:              &executionID,
		ExecutedSymbol:           e.Symbol,
		ExecutedOptionType:       e.OptionType,
		ExecutedStrike:           e.Strike,
		ExecutedExpiration:       e.Expiration,
		ExecutedPremium:          e.Premium,
		ExecutedQuantity:         e.Quantity,
		ExecutedAt:               &executedAt,
	}
}
