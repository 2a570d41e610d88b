// Archetypes: behavioral templates that bias personality at spawn and
// reweight utility options in the archetype's behavior tree.
package agents

// Archetype names.
const (
	ArchWorker    = "Worker"
	ArchMerchant  = "Merchant"
	ArchSocialite = "Socialite"
	ArchDrifter   = "Drifter"
)

// Archetypes lists archetype names in a fixed order.
var Archetypes = []string{ArchWorker, ArchMerchant, ArchSocialite, ArchDrifter}

// Template defines how an archetype differs from the baseline agent.
type Template struct {
	// TraitBias is added to the randomly rolled personality, then clamped.
	TraitBias Personality

	// OptionWeights multiplies utility option scores by option name.
	// Missing entries weigh 1; a weight of 0 disables the option.
	OptionWeights map[string]float64

	// Share of the spawned population.
	Frequency float64

	HasWork    bool
	StartMoney int64
	StartFood  int
	StartWares int
	StartGifts int
}

// OptionWeight returns the multiplier for a utility option.
func (t Template) OptionWeight(option string) float64 {
	if w, ok := t.OptionWeights[option]; ok {
		return w
	}
	return 1
}

var templates = map[string]Template{
	ArchWorker: {
		TraitBias:     Personality{Diligence: 0.25, Caution: 0.05},
		OptionWeights: map[string]float64{"work": 1.3, "socialize": 0.8},
		Frequency:     0.4,
		HasWork:       true,
		StartMoney:    30,
		StartFood:     2,
	},
	ArchMerchant: {
		TraitBias:     Personality{Greed: 0.25, Sociability: 0.1},
		OptionWeights: map[string]float64{"trade": 1.5, "share": 0.7},
		Frequency:     0.2,
		HasWork:       true,
		StartMoney:    60,
		StartFood:     1,
		StartWares:    4,
	},
	ArchSocialite: {
		TraitBias:     Personality{Sociability: 0.3, Generosity: 0.2},
		OptionWeights: map[string]float64{"socialize": 1.4, "share": 1.3, "work": 0.8},
		Frequency:     0.25,
		HasWork:       true,
		StartMoney:    25,
		StartFood:     2,
		StartGifts:    3,
	},
	ArchDrifter: {
		TraitBias:     Personality{Curiosity: 0.3, Diligence: -0.25, Caution: -0.1},
		OptionWeights: map[string]float64{"wander": 1.6, "conflict": 1.5},
		Frequency:     0.15,
		StartMoney:    8,
	},
}

// TemplateFor returns the template for an archetype name.
func TemplateFor(name string) (Template, bool) {
	t, ok := templates[name]
	return t, ok
}
