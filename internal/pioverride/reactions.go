package pioverride

import (
	"context"

	"github.com/sissm-go/pioverride/internal/lifecycle"
	"go.uber.org/zap"
)

// HandleEvent reacts to a single lifecycle event.
func (e *Engine) HandleEvent(ctx context.Context, event lifecycle.Event) {
	if !e.rules.Enabled {
		return
	}

	switch event.Type {
	case lifecycle.EventGameStart:
		e.applyBaseline(ctx)

	case lifecycle.EventRoundStart:
		if e.rules.ApplyEveryRound {
			e.applyBaseline(ctx)
		}

	case lifecycle.EventCounterAttackStart:
		if e.rules.ScalesCounterAttack() {
			e.ApplyEnemyCountOverride(ctx, ForceOn)
		}

	case lifecycle.EventCounterAttackStop:
		if e.rules.ScalesCounterAttack() {
			e.ApplyEnemyCountOverride(ctx, ForceOff)
		}

	case lifecycle.EventClientAdd, lifecycle.EventClientDel,
		lifecycle.EventInit, lifecycle.EventRestart, lifecycle.EventMapChange,
		lifecycle.EventGameEnd, lifecycle.EventRoundEnd,
		lifecycle.EventObjectiveCaptured, lifecycle.EventPeriodic:
		// no reaction

	default:
		e.logger.Debug("ignoring unknown lifecycle event", zap.String("type", string(event.Type)))
	}
}

func (e *Engine) applyBaseline(ctx context.Context) {
	e.ApplyPropertyOverrides(ctx)
	e.ApplyEnemyCountOverride(ctx, ForceOff)
}

// Install subscribes the engine to bus. A disabled rule set installs nothing
// and returns ok=false.
func (e *Engine) Install(bus *lifecycle.Bus) (handle int, ok bool) {
	if !e.rules.Enabled {
		e.logger.Info("plugin disabled; no lifecycle reactions installed")
		return -1, false
	}
	handle = bus.Subscribe(e.HandleEvent)
	e.logger.Info("lifecycle reactions installed",
		zap.Int("overrides", len(e.rules.ValidOverrides())),
		zap.Bool("every_round", e.rules.ApplyEveryRound),
		zap.Bool("enemy_count", e.rules.EnemyCountConfigured()),
		zap.Float64("counterattack_multiplier", e.rules.CounterAttackMultiplier),
	)
	return handle, true
}

// Uninstall removes a subscription made by Install.
func (e *Engine) Uninstall(bus *lifecycle.Bus, handle int) {
	if handle < 0 {
		return
	}
	bus.Unsubscribe(handle)
}
