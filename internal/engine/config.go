package engine

import (
	"fmt"
)

// Config is the declarative form of the engine options, as read from a
// CLI config file or a test scenario. Zero fields keep the defaults.
type Config struct {
	MaxDepth      int    `yaml:"max_depth" json:"max_depth,omitempty"`
	MaxSteps      int64  `yaml:"max_steps" json:"max_steps,omitempty"`
	MaxIterations int    `yaml:"max_iterations" json:"max_iterations,omitempty"`
	Unknown       string `yaml:"unknown" json:"unknown,omitempty"`       // "fail" or "error"
	Arithmetic    string `yaml:"arithmetic" json:"arithmetic,omitempty"` // "fail" or "error"
	OccursCheck   *bool  `yaml:"occurs_check" json:"occurs_check,omitempty"`
}

// Options converts the config into engine options.
func (c Config) Options() ([]Option, error) {
	var opts []Option
	if c.MaxDepth < 0 || c.MaxSteps < 0 || c.MaxIterations < 0 {
		return nil, fmt.Errorf("engine limits must not be negative")
	}
	if c.MaxDepth > 0 {
		opts = append(opts, WithMaxDepth(c.MaxDepth))
	}
	if c.MaxSteps > 0 {
		opts = append(opts, WithMaxSteps(c.MaxSteps))
	}
	switch c.Unknown {
	case "", "fail":
	case "error":
		opts = append(opts, WithUnknown(UnknownError))
	default:
		return nil, fmt.Errorf("unknown: want fail or error, got %q", c.Unknown)
	}
	switch c.Arithmetic {
	case "", "fail":
	case "error":
		opts = append(opts, WithArithmetic(ArithError))
	default:
		return nil, fmt.Errorf("arithmetic: want fail or error, got %q", c.Arithmetic)
	}
	if c.OccursCheck != nil {
		opts = append(opts, WithOccursCheck(*c.OccursCheck))
	}
	return opts, nil
}

// Iterations returns the forward-chaining cap, DefaultMaxIterations when
// unset.
func (c Config) Iterations() int {
	if c.MaxIterations > 0 {
		return c.MaxIterations
	}
	return DefaultMaxIterations
}

// Merge overlays the non-zero fields of o onto c.
func (c Config) Merge(o Config) Config {
	if o.MaxDepth != 0 {
		c.MaxDepth = o.MaxDepth
	}
	if o.MaxSteps != 0 {
		c.MaxSteps = o.MaxSteps
	}
	if o.MaxIterations != 0 {
		c.MaxIterations = o.MaxIterations
	}
	if o.Unknown != "" {
		c.Unknown = o.Unknown
	}
	if o.Arithmetic != "" {
		c.Arithmetic = o.Arithmetic
	}
	if o.OccursCheck != nil {
		c.OccursCheck = o.OccursCheck
	}
	return c
}
