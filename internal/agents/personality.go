package agents

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidPersonality is returned when a trait lies outside [0, 1].
var ErrInvalidPersonality = errors.New("personality trait out of range")

// Trait names a personality component.
type Trait uint8

const (
	TraitSociability Trait = iota
	TraitCaution
	TraitGreed
	TraitGenerosity
	TraitDiligence
	TraitCuriosity
)

// NumTraits is the number of personality traits.
const NumTraits = 6

// String returns the lowercase trait name.
func (t Trait) String() string {
	switch t {
	case TraitSociability:
		return "sociability"
	case TraitCaution:
		return "caution"
	case TraitGreed:
		return "greed"
	case TraitGenerosity:
		return "generosity"
	case TraitDiligence:
		return "diligence"
	case TraitCuriosity:
		return "curiosity"
	default:
		return "unknown"
	}
}

// Personality is the fixed set of traits that bias utility scoring.
// Traits are immutable after spawn.
type Personality struct {
	Sociability float64 `json:"sociability" yaml:"sociability"`
	Caution     float64 `json:"caution" yaml:"caution"`
	Greed       float64 `json:"greed" yaml:"greed"`
	Generosity  float64 `json:"generosity" yaml:"generosity"`
	Diligence   float64 `json:"diligence" yaml:"diligence"`
	Curiosity   float64 `json:"curiosity" yaml:"curiosity"`
}

// Trait returns the value of t.
func (p Personality) Trait(t Trait) float64 {
	switch t {
	case TraitSociability:
		return p.Sociability
	case TraitCaution:
		return p.Caution
	case TraitGreed:
		return p.Greed
	case TraitGenerosity:
		return p.Generosity
	case TraitDiligence:
		return p.Diligence
	case TraitCuriosity:
		return p.Curiosity
	default:
		return 0
	}
}

func (p *Personality) set(t Trait, v float64) {
	switch t {
	case TraitSociability:
		p.Sociability = v
	case TraitCaution:
		p.Caution = v
	case TraitGreed:
		p.Greed = v
	case TraitGenerosity:
		p.Generosity = v
	case TraitDiligence:
		p.Diligence = v
	case TraitCuriosity:
		p.Curiosity = v
	}
}

// Validate rejects non-finite traits and traits outside [0, 1].
func (p Personality) Validate() error {
	for t := Trait(0); t < NumTraits; t++ {
		v := p.Trait(t)
		if math.IsNaN(v) || v < 0 || v > 1 {
			return fmt.Errorf("%w: %s=%v", ErrInvalidPersonality, t, v)
		}
	}
	return nil
}

// Shifted returns p with each trait moved by the matching trait of delta
// and clamped to [0, 1].
func (p Personality) Shifted(delta Personality) Personality {
	out := p
	for t := Trait(0); t < NumTraits; t++ {
		out.set(t, Clamp01(p.Trait(t)+delta.Trait(t)))
	}
	return out
}
