// Package phi provides the golden-ratio constants the default tuning is
// derived from. Coefficients trace back to Φ instead of being picked ad hoc.
package phi

import "math"

// Phi is the golden ratio.
const Phi = 1.6180339887498948

var (
	// Agnosis (Φ⁻³) ~0.236: base rate of drift and decay.
	Agnosis = math.Pow(Phi, -3)

	// Psyche (Φ⁻²) ~0.382: threshold of meaningful attention.
	Psyche = math.Pow(Phi, -2)

	// Matter (Φ⁻¹) ~0.618: the fraction that persists through a step.
	Matter = math.Pow(Phi, -1)

	// Being (Φ) ~1.618: growth factor.
	Being = Phi
)
