// Package strategies contains the pluggable advice-generation rules and the
// closed registry that enumerates them.
package strategies

import (
	"github.com/mleventi/wheelhouse/internal/domain"
)

// Strategy is the interface every advice-generation rule implements. A
// strategy evaluates the portfolio snapshot and produces zero or more
// candidate recommendations. "No opportunity today" is an empty list, not an
// error; an error means the strategy itself failed and is isolated by the
// engine.
type Strategy interface {
	// Type returns the unique identifier for this strategy.
	Type() string

	// Category returns the category of advice this strategy produces.
	Category() domain.Category

	// DefaultParameters returns the built-in parameter values. Per-strategy
	// configuration is merged over these (config wins).
	DefaultParameters() map[string]interface{}

	// Generate evaluates the portfolio snapshot and returns candidate
	// recommendations.
	Generate(ctx *domain.MarketContext, params map[string]interface{}) ([]domain.Recommendation, error)
}

// GetFloatParam retrieves a float parameter with a default value.
func GetFloatParam(params map[string]interface{}, key string, defaultValue float64) float64 {
	if params == nil {
		return defaultValue
	}
	switch v := params[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return defaultValue
	}
}

// GetIntParam retrieves an integer parameter with a default value.
func GetIntParam(params map[string]interface{}, key string, defaultValue int) int {
	if params == nil {
		return defaultValue
	}
	switch v := params[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return defaultValue
	}
}
