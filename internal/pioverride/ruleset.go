// Package pioverride pushes configured game mode property overrides and
// enemy-count bounds to a game server as lifecycle events arrive.
package pioverride

import (
	"fmt"
	"math"
	"strings"

	"github.com/sissm-go/pioverride/internal/config"
)

// MaxOverrides is the number of override slots read from configuration.
const MaxOverrides = 10

// Configuration keys.
const (
	keyPluginState   = "pioverride.pluginState"
	keyCvarFormat    = "pioverride.cvar[%d]"
	keyEveryRound    = "pioverride.pokeEveryRound"
	keyOverrideEnemy = "pioverride.overrideEnemyCount"
	keyMinEnemies    = "pioverride.minimumEnemies"
	keyMaxEnemies    = "pioverride.maximumEnemies"
	keyCAMultiplier  = "pioverride.counterAttackEnemyMultiplier"
)

// Property names used for the enemy-count override.
const (
	PropertyMinimumEnemies = "minimumenemies"
	PropertyMaximumEnemies = "maximumenemies"
)

// float64 machine epsilon
const multiplierEpsilon = 0x1p-52

// Override is one configured "<gamemodeproperty> <value>" slot.
type Override struct {
	Slot  int
	Raw   string
	Name  string
	Value string
}

// Valid reports whether the slot names both a property and a value.
func (o Override) Valid() bool {
	return o.Name != "" && o.Value != ""
}

// ParseOverride splits a raw slot into property name and value. The first
// whitespace-separated word is the name, the second is the value; anything
// after the second word is ignored.
func ParseOverride(slot int, raw string) Override {
	o := Override{Slot: slot, Raw: raw}
	fields := strings.Fields(raw)
	if len(fields) >= 2 {
		o.Name = fields[0]
		o.Value = fields[1]
	}
	return o
}

// RuleSet is the immutable set of overrides loaded at startup.
type RuleSet struct {
	Enabled                 bool
	Overrides               []Override
	ApplyEveryRound         bool
	EnemyCountOverride      bool
	MinEnemies              int
	MaxEnemies              int
	CounterAttackMultiplier float64
}

// LoadRuleSet reads the plugin settings from src. Missing keys take their
// defaults. Values are not range checked beyond saturating enemy counts at
// the 32-bit bounds and reading a non-finite multiplier as unset.
func LoadRuleSet(src config.Source) RuleSet {
	rules := RuleSet{
		Enabled:                 src.FetchNumber(keyPluginState, 0) != 0,
		Overrides:               make([]Override, 0, MaxOverrides),
		ApplyEveryRound:         src.FetchNumber(keyEveryRound, 0) != 0,
		EnemyCountOverride:      src.FetchNumber(keyOverrideEnemy, 0) != 0,
		MinEnemies:              toCount(src.FetchNumber(keyMinEnemies, 0)),
		MaxEnemies:              toCount(src.FetchNumber(keyMaxEnemies, 0)),
		CounterAttackMultiplier: finiteOrZero(src.FetchNumber(keyCAMultiplier, 0.0)),
	}
	for slot := 0; slot < MaxOverrides; slot++ {
		raw := src.FetchString(fmt.Sprintf(keyCvarFormat, slot), "")
		rules.Overrides = append(rules.Overrides, ParseOverride(slot, raw))
	}
	return rules
}

// EffectiveMultiplier is the counterattack multiplier, or 1.0 when unset.
func (r RuleSet) EffectiveMultiplier() float64 {
	if r.CounterAttackMultiplier == 0 {
		return 1.0
	}
	return r.CounterAttackMultiplier
}

// ScalesCounterAttack reports whether counterattack events should rescale the enemy count.
func (r RuleSet) ScalesCounterAttack() bool {
	m := r.CounterAttackMultiplier
	return m != 0 && math.Abs(m-1.0) > multiplierEpsilon
}

// EnemyCountConfigured reports whether the enemy-count override is on and both bounds are set.
func (r RuleSet) EnemyCountConfigured() bool {
	return r.EnemyCountOverride && r.MinEnemies != 0 && r.MaxEnemies != 0
}

// ValidOverrides returns the slots that will be pushed, in slot order.
func (r RuleSet) ValidOverrides() []Override {
	valid := make([]Override, 0, len(r.Overrides))
	for _, o := range r.Overrides {
		if o.Valid() {
			valid = append(valid, o)
		}
	}
	return valid
}

// toCount truncates f to an enemy count, saturating at the 32-bit bounds the
// server's console accepts. NaN reads as zero.
func toCount(f float64) int {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt32:
		return math.MaxInt32
	case f <= math.MinInt32:
		return math.MinInt32
	}
	return int(f)
}

func finiteOrZero(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
