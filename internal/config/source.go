package config

import "github.com/spf13/viper"

// Source is a read-only key/value view over configuration, keyed by dotted names
// such as "pioverride.cvar[0]". Missing keys resolve to the supplied default.
type Source interface {
	FetchNumber(key string, def float64) float64
	FetchString(key string, def string) string
}

type viperSource struct {
	v *viper.Viper
}

// NewSource wraps a viper instance as a Source.
func NewSource(v *viper.Viper) Source {
	return viperSource{v: v}
}

// FetchNumber returns the numeric value at key. Values that cannot be coerced read as 0.
func (s viperSource) FetchNumber(key string, def float64) float64 {
	if !s.v.IsSet(key) {
		return def
	}
	return s.v.GetFloat64(key)
}

// FetchString returns the string value at key.
func (s viperSource) FetchString(key string, def string) string {
	if !s.v.IsSet(key) {
		return def
	}
	return s.v.GetString(key)
}
