// Package gamestate keeps the small amount of live game state other
// components need to query between lifecycle events.
package gamestate

import (
	"context"
	"sync/atomic"

	"github.com/sissm-go/pioverride/internal/lifecycle"
	"go.uber.org/zap"
)

// Tracker follows counterattack start/stop events.
type Tracker struct {
	counterAttack atomic.Bool
	logger        *zap.Logger
}

// NewTracker creates a tracker with no counterattack in progress.
func NewTracker(logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{logger: logger.Named("gamestate")}
}

// IsCounterAttack reports whether a counterattack is in progress.
func (t *Tracker) IsCounterAttack() bool {
	return t.counterAttack.Load()
}

// Watch updates state from a lifecycle event.
func (t *Tracker) Watch(ctx context.Context, event lifecycle.Event) {
	switch event.Type {
	case lifecycle.EventCounterAttackStart:
		t.set(true, event)
	case lifecycle.EventCounterAttackStop,
		lifecycle.EventGameStart, lifecycle.EventGameEnd,
		lifecycle.EventRoundStart, lifecycle.EventRoundEnd,
		lifecycle.EventMapChange, lifecycle.EventRestart:
		t.set(false, event)
	}
}

func (t *Tracker) set(active bool, event lifecycle.Event) {
	if t.counterAttack.Swap(active) != active {
		t.logger.Debug("counterattack state changed",
			zap.Bool("active", active),
			zap.String("event", string(event.Type)),
		)
	}
}

// Attach subscribes the tracker to bus. Attach before any component that
// queries the tracker so state is current when they run.
func (t *Tracker) Attach(bus *lifecycle.Bus) int {
	return bus.Subscribe(t.Watch)
}
