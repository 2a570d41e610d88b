// Needs model: per-agent scalar drives clamped to [0, 1].
package agents

import "math"

// Need enumerates the scalar drives.
type Need uint8

const (
	NeedHunger      Need = iota // Rises over time; eating lowers it
	NeedEnergy                  // Falls over time; resting restores it
	NeedSocial                  // Loneliness; rises over time, company lowers it
	NeedSafety                  // Sense of security; threats lower it, it recovers slowly
	NeedAchievement             // Rises over time; work lowers it
	NeedWealth                  // Desire for money; rises over time, earning lowers it
)

// NumNeeds is the number of needs.
const NumNeeds = 6

// AllNeeds lists the needs in declaration order.
var AllNeeds = [NumNeeds]Need{NeedHunger, NeedEnergy, NeedSocial, NeedSafety, NeedAchievement, NeedWealth}

// String returns the lowercase need name.
func (n Need) String() string {
	switch n {
	case NeedHunger:
		return "hunger"
	case NeedEnergy:
		return "energy"
	case NeedSocial:
		return "social"
	case NeedSafety:
		return "safety"
	case NeedAchievement:
		return "achievement"
	case NeedWealth:
		return "wealth"
	default:
		return "unknown"
	}
}

// NeedsVector holds the current value of each need, all in [0, 1].
type NeedsVector [NumNeeds]float64

// Get returns the value of a need.
func (v *NeedsVector) Get(n Need) float64 {
	if int(n) >= NumNeeds {
		return 0
	}
	return v[n]
}

// Set stores a need value, clamped to [0, 1].
func (v *NeedsVector) Set(n Need, value float64) {
	if int(n) >= NumNeeds {
		return
	}
	v[n] = Clamp01(value)
}

// NeedSpec describes how a need evolves.
type NeedSpec struct {
	// Rate is added per unit dt; negative rates fall over time.
	Rate float64 `yaml:"rate"`
	// Threshold is the urgency at or above which the need is urgent.
	Threshold float64 `yaml:"threshold"`
	// Reserve needs are good when high (energy, safety): urgency is 1 - value.
	Reserve bool `yaml:"reserve"`
}

// NeedsModel applies the per-need specs.
type NeedsModel struct {
	Specs [NumNeeds]NeedSpec
}

// NewNeedsModel creates a model from specs.
func NewNeedsModel(specs [NumNeeds]NeedSpec) *NeedsModel {
	return &NeedsModel{Specs: specs}
}

// Update advances every need by rate*dt and clamps to [0, 1].
func (m *NeedsModel) Update(a *Agent, dt float64) {
	switch {
	case dt < 0 || math.IsNaN(dt):
		dt = 0
	case math.IsInf(dt, 1):
		dt = math.MaxFloat64
	}
	for i := range a.Needs {
		if r := m.Specs[i].Rate; r != 0 {
			a.Needs[i] = Clamp01(a.Needs[i] + r*dt)
		}
	}
}

// Satisfy lowers the urgency of a need by amount: drives are reduced,
// reserves are raised. Negative amounts make the need more urgent.
func (m *NeedsModel) Satisfy(a *Agent, n Need, amount float64) {
	if int(n) >= NumNeeds || math.IsNaN(amount) {
		return
	}
	if m.Specs[n].Reserve {
		a.Needs.Set(n, a.Needs[n]+amount)
	} else {
		a.Needs.Set(n, a.Needs[n]-amount)
	}
}

// Urgency returns how pressing a need is, in [0, 1].
func (m *NeedsModel) Urgency(v NeedsVector, n Need) float64 {
	if int(n) >= NumNeeds {
		return 0
	}
	if m.Specs[n].Reserve {
		return Clamp01(1 - v[n])
	}
	return Clamp01(v[n])
}

// Urgent reports whether a need is at or above its urgency threshold.
func (m *NeedsModel) Urgent(v NeedsVector, n Need) bool {
	if int(n) >= NumNeeds {
		return false
	}
	return m.Urgency(v, n) >= m.Specs[n].Threshold
}

// MostUrgent returns the need with the highest urgency; ties go to the
// earlier-declared need.
func (m *NeedsModel) MostUrgent(v NeedsVector) (Need, float64) {
	best, bestU := NeedHunger, -1.0
	for _, n := range AllNeeds {
		if u := m.Urgency(v, n); u > bestU {
			best, bestU = n, u
		}
	}
	return best, bestU
}

// Clamp01 clamps x to [0, 1]. NaN becomes 0.
func Clamp01(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
