package pioverride

import (
	"context"
	"math"
	"slices"
	"strconv"

	"go.uber.org/zap"
)

// CounterAttackMode selects how the enemy-count override treats counterattacks.
type CounterAttackMode int

const (
	// ForceOff pushes the configured bounds unscaled.
	ForceOff CounterAttackMode = iota
	// ForceOn pushes the bounds scaled by the counterattack multiplier.
	ForceOn
	// Query asks the game state whether a counterattack is running.
	Query
)

func (m CounterAttackMode) String() string {
	switch m {
	case ForceOff:
		return "FORCE_OFF"
	case ForceOn:
		return "FORCE_ON"
	case Query:
		return "QUERY"
	default:
		return "UNKNOWN"
	}
}

// PropertySetter pushes a game mode property to the server.
type PropertySetter interface {
	SetGameModeProperty(ctx context.Context, name, value string) error
}

// CounterAttackState reports whether a counterattack is currently active.
type CounterAttackState interface {
	IsCounterAttack() bool
}

// EnemyCount is the pair of bounds pushed by ApplyEnemyCountOverride.
type EnemyCount struct {
	Min           int
	Max           int
	CounterAttack bool
}

// Engine applies a RuleSet to a live server.
type Engine struct {
	rules  RuleSet
	setter PropertySetter
	state  CounterAttackState
	logger *zap.Logger
}

// NewEngine creates an engine for rules. The engine keeps its own copy of the
// overrides, capped at MaxOverrides slots. state may be nil, in which case
// Query resolves to ForceOff.
func NewEngine(rules RuleSet, setter PropertySetter, state CounterAttackState, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	overrides := rules.Overrides
	if len(overrides) > MaxOverrides {
		overrides = overrides[:MaxOverrides]
	}
	rules.Overrides = slices.Clone(overrides)
	return &Engine{
		rules:  rules,
		setter: setter,
		state:  state,
		logger: logger.Named("pioverride"),
	}
}

// ApplyPropertyOverrides pushes every valid override slot in order and returns
// how many pushes were attempted. A failed push does not stop later slots.
func (e *Engine) ApplyPropertyOverrides(ctx context.Context) int {
	if !e.rules.Enabled {
		return 0
	}

	pushed := 0
	for _, o := range e.rules.Overrides {
		if !o.Valid() {
			continue
		}
		pushed++
		e.push(ctx, o.Name, o.Value)
		e.logger.Info("setting game mode property",
			zap.Int("slot", o.Slot),
			zap.String("property", o.Name),
			zap.String("value", o.Value),
		)
	}
	return pushed
}

// ApplyEnemyCountOverride pushes minimumenemies and maximumenemies. It does
// nothing, returning false, unless the override is enabled with both bounds set.
func (e *Engine) ApplyEnemyCountOverride(ctx context.Context, mode CounterAttackMode) (EnemyCount, bool) {
	if !e.rules.Enabled || !e.rules.EnemyCountConfigured() {
		return EnemyCount{}, false
	}

	counterAttack := e.resolve(mode)
	count := EnemyCount{
		Min:           e.rules.MinEnemies,
		Max:           e.rules.MaxEnemies,
		CounterAttack: counterAttack,
	}
	if counterAttack {
		m := e.rules.EffectiveMultiplier()
		count.Min = toCount(math.Ceil(float64(count.Min) * m))
		count.Max = toCount(math.Ceil(float64(count.Max) * m))
	}

	e.push(ctx, PropertyMinimumEnemies, strconv.Itoa(count.Min))
	e.push(ctx, PropertyMaximumEnemies, strconv.Itoa(count.Max))
	e.logger.Info("overriding enemy count",
		zap.Int("minimum", count.Min),
		zap.Int("maximum", count.Max),
		zap.Bool("counterattack", count.CounterAttack),
		zap.Stringer("mode", mode),
	)
	return count, true
}

func (e *Engine) resolve(mode CounterAttackMode) bool {
	switch mode {
	case ForceOn:
		return true
	case ForceOff:
		return false
	default:
		return e.state != nil && e.state.IsCounterAttack()
	}
}

func (e *Engine) push(ctx context.Context, name, value string) {
	if e.setter == nil {
		return
	}
	if err := e.setter.SetGameModeProperty(ctx, name, value); err != nil {
		e.logger.Warn("game mode property push failed",
			zap.String("property", name),
			zap.String("value", value),
			zap.Error(err),
		)
	}
}
