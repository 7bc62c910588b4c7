package simulation

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Descriptor is a simulation's parameter catalogue, loaded from
// simulation.yaml next to its entry point
type Descriptor struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Version     string      `yaml:"version"`
	Category    string      `yaml:"category"`
	Parameters  []Parameter `yaml:"parameters"`
}

// Parameter defines a configurable parameter for a simulation
type Parameter struct {
	Name        string      `yaml:"name"`
	Type        string      `yaml:"type"` // integer, float, string, duration, boolean
	Description string      `yaml:"description"`
	Default     interface{} `yaml:"default"`
	Required    bool        `yaml:"required"`
	Min         interface{} `yaml:"min,omitempty"`
	Max         interface{} `yaml:"max,omitempty"`
	Options     []string    `yaml:"options,omitempty"` // For string enums
}

// Parameter returns the named parameter
func (d *Descriptor) Parameter(name string) (Parameter, bool) {
	for _, p := range d.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}

// Defaults returns every parameter's default value keyed by name
func (d *Descriptor) Defaults() map[string]interface{} {
	out := make(map[string]interface{}, len(d.Parameters))
	for _, p := range d.Parameters {
		if p.Default != nil {
			out[p.Name] = p.Default
		}
	}
	return out
}

// Parse converts a raw string into the parameter's type and checks its bounds
func (p Parameter) Parse(raw string) (interface{}, error) {
	raw = strings.TrimSpace(raw)
	switch p.Type {
	case "integer":
		v, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: expected an integer, got %q", p.Name, raw)
		}
		if err := p.checkBounds(float64(v)); err != nil {
			return nil, err
		}
		return v, nil
	case "float":
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: expected a number, got %q", p.Name, raw)
		}
		if err := p.checkBounds(v); err != nil {
			return nil, err
		}
		return v, nil
	case "boolean":
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: expected true or false, got %q", p.Name, raw)
		}
		return v, nil
	case "duration":
		v, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: expected a duration, got %q", p.Name, raw)
		}
		return v, nil
	default:
		if len(p.Options) > 0 {
			for _, opt := range p.Options {
				if opt == raw {
					return raw, nil
				}
			}
			return nil, fmt.Errorf("%s: %q is not one of %v", p.Name, raw, p.Options)
		}
		return raw, nil
	}
}

func (p Parameter) checkBounds(v float64) error {
	if lo, ok := toFloat(p.Min); ok && v < lo {
		return fmt.Errorf("%s: %v is below the minimum %v", p.Name, v, lo)
	}
	if hi, ok := toFloat(p.Max); ok && v > hi {
		return fmt.Errorf("%s: %v is above the maximum %v", p.Name, v, hi)
	}
	return nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
