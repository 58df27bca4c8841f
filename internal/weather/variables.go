package weather

import (
	"errors"
	"fmt"
)

// Variable pairs a provider series key with its stable public name.
type Variable struct {
	Key  string `yaml:"key"`
	Name string `yaml:"name"`
}

// Variables is the ordered canonical variable map. It is built once at startup
// and never mutated; accessors return copies.
type Variables struct {
	list []Variable
}

// DefaultVariables returns the Open-Meteo daily series served by default.
func DefaultVariables() Variables {
	v, _ := NewVariables([]Variable{
		{Key: "temperature_2m_max", Name: "max_temperature"},
		{Key: "temperature_2m_mean", Name: "mean_temperature"},
		{Key: "temperature_2m_min", Name: "min_temperature"},
		{Key: "wind_speed_10m_max", Name: "wind_speed"},
	})
	return v
}

// NewVariables validates and freezes a variable map.
func NewVariables(list []Variable) (Variables, error) {
	if len(list) == 0 {
		return Variables{}, errors.New("variables: list is empty")
	}
	keys := make(map[string]struct{}, len(list))
	names := make(map[string]struct{}, len(list))
	for _, v := range list {
		if v.Key == "" || v.Name == "" {
			return Variables{}, fmt.Errorf("variables: key and name are required (got %q -> %q)", v.Key, v.Name)
		}
		if _, dup := keys[v.Key]; dup {
			return Variables{}, fmt.Errorf("variables: duplicate key %q", v.Key)
		}
		if _, dup := names[v.Name]; dup {
			return Variables{}, fmt.Errorf("variables: duplicate name %q", v.Name)
		}
		keys[v.Key] = struct{}{}
		names[v.Name] = struct{}{}
	}
	return Variables{list: append([]Variable(nil), list...)}, nil
}

// Keys returns the provider keys in configured order.
func (v Variables) Keys() []string {
	keys := make([]string, len(v.list))
	for i, item := range v.list {
		keys[i] = item.Key
	}
	return keys
}

// List returns a copy of the configured pairs.
func (v Variables) List() []Variable {
	return append([]Variable(nil), v.list...)
}

// PublicName maps a provider key to its public name.
func (v Variables) PublicName(key string) (string, bool) {
	for _, item := range v.list {
		if item.Key == key {
			return item.Name, true
		}
	}
	return "", false
}

// Len returns the number of configured variables.
func (v Variables) Len() int {
	return len(v.list)
}
