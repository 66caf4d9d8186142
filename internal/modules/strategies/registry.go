package strategies

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Registry holds all installed strategies. The table is closed: it is built
// once at process start and the variant set changes only with a code change.
// Enumeration order is registration order, which makes engine runs
// deterministic regardless of map iteration.
type Registry struct {
	order      []string
	strategies map[string]Strategy
	log        zerolog.Logger
}

// NewRegistry creates an empty strategy registry.
func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		strategies: make(map[string]Strategy),
		log:        log.With().Str("component", "strategy_registry").Logger(),
	}
}

// Register adds a strategy. Registering the same type twice replaces the
// earlier entry without changing its position in the enumeration order.
func (r *Registry) Register(s Strategy) {
	t := s.Type()
	if _, exists := r.strategies[t]; !exists {
		r.order = append(r.order, t)
	}
	r.strategies[t] = s
	r.log.Debug().
		Str("strategy", t).
		Str("category", string(s.Category())).
		Msg("Registered strategy")
}

// Get retrieves a strategy by type.
func (r *Registry) Get(strategyType string) (Strategy, error) {
	s, ok := r.strategies[strategyType]
	if !ok {
		return nil, fmt.Errorf("strategy not found: %s", strategyType)
	}
	return s, nil
}

// All returns the installed strategies in registration order.
func (r *Registry) All() []Strategy {
	out := make([]Strategy, 0, len(r.order))
	for _, t := range r.order {
		out = append(out, r.strategies[t])
	}
	return out
}

// Types returns the installed strategy types in registration order.
func (r *Registry) Types() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// NewPopulatedRegistry creates a registry with all strategies registered.
// Adding a strategy to the system means adding one entry here.
func NewPopulatedRegistry(log zerolog.Logger) *Registry {
	registry := NewRegistry(log)

	registry.Register(NewEarlyRollStrategy(log))
	registry.Register(NewCoveredCallStrategy(log))
	registry.Register(NewCashSecuredPutStrategy(log))
	registry.Register(NewExpirationRiskStrategy(log))

	log.Info().
		Int("strategies", len(registry.order)).
		Msg("Strategy registry initialized")

	return registry
}
