package utility

import (
	"fmt"
	"math"
)

// CurveKind selects a response curve shape.
type CurveKind string

const (
	CurveLinear   CurveKind = "linear"   // slope*x + intercept
	CurvePower    CurveKind = "power"    // x^exponent
	CurveInverse  CurveKind = "inverse"  // 1 - x
	CurveLogistic CurveKind = "logistic" // 1 / (1 + e^(-steepness*(x-mid)))
	CurveStep     CurveKind = "step"     // 1 when x >= mid
)

// Curve maps a normalized input in [0, 1] to a response in [0, 1].
// The zero Curve is the identity.
type Curve struct {
	Kind      CurveKind `yaml:"kind"`
	Slope     float64   `yaml:"slope,omitempty"`
	Intercept float64   `yaml:"intercept,omitempty"`
	Exponent  float64   `yaml:"exponent,omitempty"`
	Mid       float64   `yaml:"mid,omitempty"`
	Steepness float64   `yaml:"steepness,omitempty"`
}

// Eval applies the curve and clamps the result to [0, 1].
func (c Curve) Eval(x float64) float64 {
	var y float64
	switch c.Kind {
	case "", CurveLinear:
		slope := c.Slope
		if c.Kind == "" {
			slope = 1
		}
		y = slope*x + c.Intercept
	case CurvePower:
		y = math.Pow(math.Max(x, 0), c.Exponent)
	case CurveInverse:
		y = 1 - x
	case CurveLogistic:
		y = 1 / (1 + math.Exp(-c.Steepness*(x-c.Mid)))
	case CurveStep:
		if x >= c.Mid {
			y = 1
		}
	}
	return clamp01(y)
}

// Validate rejects unknown curve kinds.
func (c Curve) Validate() error {
	switch c.Kind {
	case "", CurveLinear, CurvePower, CurveInverse, CurveLogistic, CurveStep:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownCurve, c.Kind)
}

func clamp01(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
