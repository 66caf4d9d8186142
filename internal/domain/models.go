// Package domain contains the core types shared across the advisory engine.
// The domain layer is pure: no infrastructure dependencies.
package domain

import (
	"fmt"
	"time"
)

// Priority expresses how urgently a recommendation should reach the user.
// Ordering: urgent < high < medium < low (urgent ranks first).
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Rank returns the sort rank of a priority. Lower ranks sort first.
// Unknown priorities rank after low so malformed data never outranks real advice.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	return p == PriorityUrgent || p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}

// AtLeast reports whether p is at least as urgent as floor.
func (p Priority) AtLeast(floor Priority) bool {
	return p.Rank() <= floor.Rank()
}

// Category groups strategies by the kind of advice they produce.
type Category string

const (
	CategoryIncomeGeneration Category = "income_generation"
	CategoryOptimization     Category = "optimization"
	CategoryRiskManagement   Category = "risk_management"
)

// OptionType is the contract type of an option leg.
type OptionType string

const (
	OptionTypeCall OptionType = "call"
	OptionTypePut  OptionType = "put"
)

// SnapshotStatus is the lifecycle state of a persisted recommendation snapshot.
type SnapshotStatus string

const (
	StatusNew          SnapshotStatus = "new"
	StatusAcknowledged SnapshotStatus = "acknowledged"
	StatusActed        SnapshotStatus = "acted"
	StatusDismissed    SnapshotStatus = "dismissed"
)

// CanTransitionTo reports whether the status transition is allowed.
// new -> acknowledged -> acted | dismissed. Terminal states never change.
func (s SnapshotStatus) CanTransitionTo(next SnapshotStatus) bool {
	switch s {
	case StatusNew:
		return next == StatusAcknowledged || next == StatusActed || next == StatusDismissed
	case StatusAcknowledged:
		return next == StatusActed || next == StatusDismissed
	default:
		return false
	}
}

// MatchType classifies the outcome of reconciling a recommendation
// against realized trades.
type MatchType string

const (
	MatchExact       MatchType = "exact"
	MatchPartial     MatchType = "partial"
	MatchIndependent MatchType = "independent"
	MatchMissed      MatchType = "missed"
)

// RecommendationContext carries every numeric input needed to reconstruct an
// advisory decision. Each strategy fills a fixed, known subset of fields; the
// throttle and the reconciliation matcher read typed fields out of it instead
// of digging through an untyped map.
type RecommendationContext struct {
	Symbol       string     `msgpack:"symbol" json:"symbol"`
	Account      string     `msgpack:"account,omitempty" json:"account,omitempty"`
	OptionType   OptionType `msgpack:"option_type" json:"option_type"`
	Strike       float64    `msgpack:"strike" json:"strike"`
	Expiration   string     `msgpack:"expiration" json:"expiration"` // YYYY-MM-DD
	Premium      float64    `msgpack:"premium" json:"premium"`       // per share
	Contracts    int        `msgpack:"contracts" json:"contracts"`
	CurrentPrice float64    `msgpack:"current_price,omitempty" json:"current_price,omitempty"`

	// Profit state of an existing position (early roll, expiration risk).
	ProfitPercent float64 `msgpack:"profit_percent,omitempty" json:"profit_percent,omitempty"`
	DaysToExpiry  int     `msgpack:"days_to_expiry,omitempty" json:"days_to_expiry,omitempty"`

	// Proposed new leg for roll recommendations. The reconciliation matcher
	// matches roll executions against these, not the closing leg.
	NewStrike     float64 `msgpack:"new_strike,omitempty" json:"new_strike,omitempty"`
	NewExpiration string  `msgpack:"new_expiration,omitempty" json:"new_expiration,omitempty"`
	NewPremium    float64 `msgpack:"new_premium,omitempty" json:"new_premium,omitempty"`

	// MaxProfit is the full premium capture of the proposed position; the
	// potential_income on the recommendation must be recomputable from here.
	MaxProfit float64 `msgpack:"max_profit" json:"max_profit"`
}

// IsRoll reports whether the context describes a roll (a proposed new leg).
func (c RecommendationContext) IsRoll() bool {
	return c.NewStrike != 0 || c.NewExpiration != ""
}

// Recommendation is one piece of advice produced by a strategy for a specific
// opportunity on a specific day. Transient: the snapshot store owns persistence.
type Recommendation struct {
	ID              string                `json:"id"`
	StrategyType    string                `json:"strategy_type"`
	Category        Category              `json:"category"`
	Priority        Priority              `json:"priority"`
	Title           string                `json:"title"`
	Description     string                `json:"description"`
	Rationale       string                `json:"rationale"`
	Action          string                `json:"action"`
	ActionType      string                `json:"action_type"`
	PotentialIncome float64               `json:"potential_income"`
	PotentialRisk   float64               `json:"potential_risk"`
	TimeHorizon     string                `json:"time_horizon"`
	Context         RecommendationContext `json:"context"`
	GeneratedAt     time.Time             `json:"generated_at"`
}

// RecommendationID builds the deterministic id for a strategy/symbol/day
// combination. Repeated runs on the same day for the same opportunity collide
// rather than duplicate.
func RecommendationID(strategyType, symbol string, day time.Time) string {
	return fmt.Sprintf("%s_%s_%s", strategyType, symbol, day.Format("2006-01-02"))
}

// Position is an equity holding in the portfolio snapshot.
type Position struct {
	Symbol       string  `json:"symbol"`
	Quantity     float64 `json:"quantity"`
	AverageCost  float64 `json:"average_cost"`
	CurrentPrice float64 `json:"current_price"`
}

// OptionPosition is an open option position in the portfolio snapshot.
type OptionPosition struct {
	ID             int64      `json:"id"`
	Symbol         string     `json:"symbol"`
	OptionType     OptionType `json:"option_type"`
	Side           string     `json:"side"` // short, long
	Strike         float64    `json:"strike"`
	Expiration     string     `json:"expiration"` // YYYY-MM-DD
	Contracts      int        `json:"contracts"`
	OpenPremium    float64    `json:"open_premium"`    // per share
	CurrentPremium float64    `json:"current_premium"` // per share mark
	OpenedAt       time.Time  `json:"opened_at"`
}

// Short reports whether the position is a short (sold) option.
func (p OptionPosition) Short() bool {
	return p.Side == "short"
}

// ProfitPercent returns the fraction of maximum profit captured so far on a
// short option: premium received vs what it costs to close now.
func (p OptionPosition) ProfitPercent() float64 {
	if !p.Short() || p.OpenPremium <= 0 {
		return 0
	}
	return (p.OpenPremium - p.CurrentPremium) / p.OpenPremium
}

// DaysToExpiry returns whole days from today until the expiration date.
// Malformed expirations count as zero days remaining.
func (p OptionPosition) DaysToExpiry(today time.Time) int {
	exp, err := time.ParseInLocation("2006-01-02", p.Expiration, today.Location())
	if err != nil {
		return 0
	}
	days := int(exp.Sub(today.Truncate(24*time.Hour)).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// MarketContext is the read-only portfolio snapshot one engine run evaluates.
// Strategies only read from it; it stays valid for the duration of the run.
type MarketContext struct {
	Today           time.Time
	Positions       []Position
	OptionPositions []OptionPosition
	CashAvailable   float64

	// Run-level overrides from the trigger surface.
	DefaultPremium  float64
	ProfitThreshold float64
}

// OptionExecution is a realized option trade from the ingestion log.
type OptionExecution struct {
	ID         int64      `json:"id"`
	OrderID    string     `json:"order_id"`
	Symbol     string     `json:"symbol"`
	OptionType OptionType `json:"option_type"`
	Side       string     `json:"side"`
	Strike     float64    `json:"strike"`
	Expiration string     `json:"expiration"` // YYYY-MM-DD
	Quantity   int        `json:"quantity"`
	Premium    float64    `json:"premium"` // per share
	ExecutedAt time.Time  `json:"executed_at"`
	Source     string     `json:"source"` // broker feed or manual entry
}

// StrategyConfig identifies a strategy and how it should behave for this user.
// Created and updated by configuration management; read-only to the engine.
type StrategyConfig struct {
	StrategyType                  string                 `json:"strategy_type"`
	Enabled                       bool                   `json:"enabled"`
	NotificationEnabled           bool                   `json:"notification_enabled"`
	NotificationPriorityThreshold Priority               `json:"notification_priority_threshold"`
	Parameters                    map[string]interface{} `json:"parameters"`
	UpdatedAt                     time.Time              `json:"updated_at"`
}
