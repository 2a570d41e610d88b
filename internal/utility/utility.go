// Package utility scores candidate actions from blackboard inputs. An
// option's score is its base plus weighted considerations, each a response
// curve over a normalized blackboard value, times an archetype multiplier.
package utility

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/talgya/mini-city/internal/blackboard"
)

// Validation errors.
var (
	ErrUnknownKey   = errors.New("unknown blackboard key")
	ErrUnknownCurve = errors.New("unknown curve kind")
	ErrBadRange     = errors.New("consideration range is empty")
	ErrBadWeight    = errors.New("multiplier must be finite and non-negative")
	ErrNoName       = errors.New("option has no name")
)

// Consideration is one weighted input to an option's score.
type Consideration struct {
	Key    string  `yaml:"key"`
	Weight float64 `yaml:"weight"`
	// Input is mapped from [Min, Max] to [0, 1] before the curve.
	// Both zero means the raw value is already in [0, 1].
	Min   float64 `yaml:"min,omitempty"`
	Max   float64 `yaml:"max,omitempty"`
	Curve Curve   `yaml:"curve,omitempty"`
}

func (c Consideration) normalize(v float64) float64 {
	if c.Min == 0 && c.Max == 0 {
		return clamp01(v)
	}
	return clamp01((v - c.Min) / (c.Max - c.Min))
}

// Eval returns the weighted response for bb. Missing keys contribute 0.
func (c Consideration) Eval(bb *blackboard.Blackboard) float64 {
	v, ok := bb.Lookup(c.Key)
	if !ok {
		return 0
	}
	return c.Weight * c.Curve.Eval(c.normalize(v))
}

// Gate is a precondition; an option with a failing gate scores 0.
type Gate struct {
	Key string  `yaml:"key"`
	Min float64 `yaml:"min"` // Inclusive lower bound on the raw value
}

// Option is a scored candidate action.
type Option struct {
	Name           string          `yaml:"name"`
	Base           float64         `yaml:"base"`
	Considerations []Consideration `yaml:"considerations"`
	Require        []Gate          `yaml:"require,omitempty"`
	Multiplier     *float64        `yaml:"multiplier,omitempty"` // nil reads as 1; 0 disables the option
}

// Score implements bt.Scorer. The result is never negative or NaN.
func (o *Option) Score(bb *blackboard.Blackboard) float64 {
	for _, g := range o.Require {
		v, ok := bb.Lookup(g.Key)
		if !ok || v < g.Min {
			return 0
		}
	}
	s := o.Base
	for _, c := range o.Considerations {
		s += c.Eval(bb)
	}
	if o.Multiplier != nil {
		s *= *o.Multiplier
	}
	if math.IsNaN(s) || s < 0 {
		return 0
	}
	return s
}

// Validate checks keys, curves and ranges once at construction time.
func (o *Option) Validate() error {
	if o.Name == "" {
		return ErrNoName
	}
	for _, g := range o.Require {
		if !blackboard.Known(g.Key) {
			return fmt.Errorf("option %s gate: %w: %q", o.Name, ErrUnknownKey, g.Key)
		}
	}
	if m := o.Multiplier; m != nil && (*m < 0 || math.IsNaN(*m) || math.IsInf(*m, 0)) {
		return fmt.Errorf("option %s multiplier %g: %w", o.Name, *m, ErrBadWeight)
	}
	for _, c := range o.Considerations {
		if !blackboard.Known(c.Key) {
			return fmt.Errorf("option %s: %w: %q", o.Name, ErrUnknownKey, c.Key)
		}
		if (c.Min != 0 || c.Max != 0) && c.Max <= c.Min {
			return fmt.Errorf("option %s key %s: %w", o.Name, c.Key, ErrBadRange)
		}
		if err := c.Curve.Validate(); err != nil {
			return fmt.Errorf("option %s key %s: %w", o.Name, c.Key, err)
		}
	}
	return nil
}

// WithMultiplier returns a copy of o scaled by m. A multiplier of 0 makes
// the option ineligible.
func (o Option) WithMultiplier(m float64) *Option {
	cp := o
	cp.Considerations = append([]Consideration(nil), o.Considerations...)
	cp.Require = append([]Gate(nil), o.Require...)
	cp.Multiplier = &m
	return &cp
}

// Ranked is a scored option.
type Ranked struct {
	Name  string
	Score float64
}

// Rank scores every option and orders them by descending score. Ties keep
// the input order.
func Rank(bb *blackboard.Blackboard, options []*Option) []Ranked {
	out := make([]Ranked, len(options))
	for i, o := range options {
		out[i] = Ranked{Name: o.Name, Score: o.Score(bb)}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// Best returns the top-ranked option name, or "" when options is empty.
func Best(bb *blackboard.Blackboard, options []*Option) string {
	r := Rank(bb, options)
	if len(r) == 0 {
		return ""
	}
	return r[0].Name
}
