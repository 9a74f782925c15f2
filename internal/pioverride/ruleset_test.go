package pioverride

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapSource is a config.Source backed by a plain map.
type mapSource map[string]any

func (m mapSource) FetchNumber(key string, def float64) float64 {
	v, ok := m[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return float64(n)
	case float64:
		return n
	default:
		return 0
	}
}

func (m mapSource) FetchString(key string, def string) string {
	v, ok := m[key]
	if !ok {
		return def
	}
	s, _ := v.(string)
	return s
}

func TestLoadRuleSetDefaults(t *testing.T) {
	rules := LoadRuleSet(mapSource{})

	assert.False(t, rules.Enabled)
	assert.False(t, rules.ApplyEveryRound)
	assert.False(t, rules.EnemyCountOverride)
	assert.Equal(t, 0, rules.MinEnemies)
	assert.Equal(t, 0, rules.MaxEnemies)
	assert.Equal(t, 0.0, rules.CounterAttackMultiplier)
	require.Len(t, rules.Overrides, MaxOverrides)
	for i, o := range rules.Overrides {
		assert.Equal(t, i, o.Slot)
		assert.False(t, o.Valid())
	}
	assert.Empty(t, rules.ValidOverrides())
}

func TestLoadRuleSet(t *testing.T) {
	rules := LoadRuleSet(mapSource{
		"pioverride.pluginState":                  1,
		"pioverride.cvar[0]":                      "AllowBots 1",
		"pioverride.cvar[2]":                      "  RoundTime\t600  ",
		"pioverride.cvar[4]":                      "OnlyName",
		"pioverride.cvar[9]":                      "bDisableTeamKill true",
		"pioverride.pokeEveryRound":               1,
		"pioverride.overrideEnemyCount":           1,
		"pioverride.minimumEnemies":               5,
		"pioverride.maximumEnemies":               20,
		"pioverride.counterAttackEnemyMultiplier": 2.0,
	})

	assert.True(t, rules.Enabled)
	assert.True(t, rules.ApplyEveryRound)
	assert.True(t, rules.EnemyCountOverride)
	assert.Equal(t, 5, rules.MinEnemies)
	assert.Equal(t, 20, rules.MaxEnemies)
	assert.Equal(t, 2.0, rules.CounterAttackMultiplier)

	valid := rules.ValidOverrides()
	require.Len(t, valid, 3)
	assert.Equal(t, Override{Slot: 0, Raw: "AllowBots 1", Name: "AllowBots", Value: "1"}, valid[0])
	assert.Equal(t, "RoundTime", valid[1].Name)
	assert.Equal(t, "600", valid[1].Value)
	assert.Equal(t, 2, valid[1].Slot)
	assert.Equal(t, 9, valid[2].Slot)
}

func TestLoadRuleSetAcceptsInvertedBounds(t *testing.T) {
	rules := LoadRuleSet(mapSource{
		"pioverride.minimumEnemies": 30,
		"pioverride.maximumEnemies": 10,
	})
	assert.Equal(t, 30, rules.MinEnemies)
	assert.Equal(t, 10, rules.MaxEnemies)
}

func TestParseOverride(t *testing.T) {
	tests := []struct {
		raw       string
		wantName  string
		wantValue string
		valid     bool
	}{
		{"", "", "", false},
		{"   ", "", "", false},
		{"name", "", "", false},
		{"name ", "", "", false},
		{"name value", "name", "value", true},
		{"name    value", "name", "value", true},
		{"name value extra words", "name", "value", true},
		{"\tname\tvalue\n", "name", "value", true},
	}
	for i, tt := range tests {
		t.Run(fmt.Sprintf("case%d", i), func(t *testing.T) {
			o := ParseOverride(i, tt.raw)
			assert.Equal(t, tt.valid, o.Valid())
			assert.Equal(t, tt.wantName, o.Name)
			assert.Equal(t, tt.wantValue, o.Value)
			assert.Equal(t, tt.raw, o.Raw)
		})
	}
}

func TestEffectiveMultiplier(t *testing.T) {
	assert.Equal(t, 1.0, RuleSet{}.EffectiveMultiplier())
	assert.Equal(t, 1.5, RuleSet{CounterAttackMultiplier: 1.5}.EffectiveMultiplier())
}

func TestScalesCounterAttack(t *testing.T) {
	assert.False(t, RuleSet{}.ScalesCounterAttack())
	assert.False(t, RuleSet{CounterAttackMultiplier: 1.0}.ScalesCounterAttack())
	assert.True(t, RuleSet{CounterAttackMultiplier: 2.0}.ScalesCounterAttack())
	assert.True(t, RuleSet{CounterAttackMultiplier: 0.5}.ScalesCounterAttack())
	assert.True(t, RuleSet{CounterAttackMultiplier: 1.0001}.ScalesCounterAttack())
}

func TestEnemyCountConfigured(t *testing.T) {
	assert.True(t, RuleSet{EnemyCountOverride: true, MinEnemies: 1, MaxEnemies: 2}.EnemyCountConfigured())
	assert.False(t, RuleSet{EnemyCountOverride: false, MinEnemies: 1, MaxEnemies: 2}.EnemyCountConfigured())
	assert.False(t, RuleSet{EnemyCountOverride: true, MinEnemies: 0, MaxEnemies: 2}.EnemyCountConfigured())
	assert.False(t, RuleSet{EnemyCountOverride: true, MinEnemies: 1, MaxEnemies: 0}.EnemyCountConfigured())
}

func TestLoadRuleSetSanitizesOutOfRangeNumbers(t *testing.T) {
	rules := LoadRuleSet(mapSource{
		"pioverride.minimumEnemies":               1e12,
		"pioverride.maximumEnemies":               math.Inf(-1),
		"pioverride.counterAttackEnemyMultiplier": math.NaN(),
	})
	assert.Equal(t, math.MaxInt32, rules.MinEnemies)
	assert.Equal(t, math.MinInt32, rules.MaxEnemies)
	assert.Equal(t, 0.0, rules.CounterAttackMultiplier)
	assert.False(t, rules.ScalesCounterAttack())

	rules = LoadRuleSet(mapSource{
		"pioverride.minimumEnemies":               math.NaN(),
		"pioverride.counterAttackEnemyMultiplier": math.Inf(1),
	})
	assert.Equal(t, 0, rules.MinEnemies)
	assert.Equal(t, 0.0, rules.CounterAttackMultiplier)
}

func TestToCountTruncates(t *testing.T) {
	assert.Equal(t, 7, toCount(7.9))
	assert.Equal(t, -3, toCount(-3.5))
	assert.Equal(t, 0, toCount(0))
}
