package behavior

import (
	"fmt"

	"github.com/talgya/mini-city/internal/agents"
	"github.com/talgya/mini-city/internal/bt"
	"github.com/talgya/mini-city/internal/utility"
	"github.com/talgya/mini-city/internal/world"
)

// Config parameterizes the behavior library.
type Config struct {
	Options []utility.Option

	InteractRadius float64
	FleeRadius     float64 // Threat distance that triggers fleeing
	FleeCaution    float64 // Minimum caution to flee rather than stand
	FleeDistance   float64 // How far to run, in cells
	WanderRadius   int
	WanderPeriod   uint64 // Ticks a wander destination stays the same
}

// DefaultConfig returns the baseline library configuration.
func DefaultConfig() Config {
	return Config{
		Options:        utility.DefaultOptions(),
		InteractRadius: 1.5,
		FleeRadius:     4,
		FleeCaution:    0.6,
		FleeDistance:   8,
		WanderRadius:   6,
		WanderPeriod:   30,
	}
}

// Library holds one compiled tree per archetype. Trees are shared by every
// agent of the archetype; each agent gets its own bt.Instance.
type Library struct {
	trees map[string]*bt.Tree
}

// NewLibrary validates cfg and compiles a tree for every archetype.
func NewLibrary(cfg Config) (*Library, error) {
	for i := range cfg.Options {
		if err := cfg.Options[i].Validate(); err != nil {
			return nil, fmt.Errorf("behavior options: %w", err)
		}
	}
	lib := &Library{trees: make(map[string]*bt.Tree)}
	for _, name := range agents.Archetypes {
		tmpl, _ := agents.TemplateFor(name)
		t, err := BuildTree(name, cfg, tmpl.OptionWeight)
		if err != nil {
			return nil, err
		}
		lib.trees[name] = t
	}
	return lib, nil
}

// Tree returns the archetype's tree.
func (l *Library) Tree(archetype string) (*bt.Tree, bool) {
	t, ok := l.trees[archetype]
	return t, ok
}

// Instance creates per-agent runtime state for the archetype's tree.
func (l *Library) Instance(archetype string) (*bt.Instance, error) {
	t, ok := l.trees[archetype]
	if !ok {
		return nil, fmt.Errorf("no tree for archetype %q", archetype)
	}
	return bt.NewInstance(t), nil
}

// BuildTree compiles the city tree with option scores scaled by weight:
//
//	root (reactive selector)
//	├── flee: endangered? → flee
//	├── choose (reactive utility over the options)
//	└── wander
func BuildTree(name string, cfg Config, weight func(option string) float64) (*bt.Tree, error) {
	var branches []*bt.Node
	for _, opt := range cfg.Options {
		branch, ok := branchFor(opt.Name, cfg)
		if !ok {
			return nil, fmt.Errorf("tree %s: no behavior for option %q", name, opt.Name)
		}
		branches = append(branches, bt.Scored(opt.WithMultiplier(weight(opt.Name)), branch))
	}

	root := bt.ReactiveSelector("root",
		bt.Sequence("flee",
			bt.Check("endangered", []string{"threat.present", "threat.dist", "trait.caution"}, endangered(cfg)),
			bt.Action("flee", flee(cfg)),
		),
		bt.ReactiveUtility("choose", branches...),
		bt.Action("wander", wander(cfg)),
	)
	return bt.Compile(name, root)
}

// branchFor builds the subtree that carries out a utility option. Branch
// selectors are reactive so arriving ends a running seek on the same tick.
func branchFor(option string, cfg Config) (*bt.Node, bool) {
	switch option {
	case utility.OptEat:
		return bt.ReactiveSelector(option,
			bt.Sequence("eat-here",
				bt.Check("has-meal", []string{"item.food", "at.food", "money"}, hasMeal),
				bt.Action("eat", eat),
			),
			bt.Action("seek-food", seek(world.POIFood)),
		), true
	case utility.OptRest:
		return bt.ReactiveSelector(option,
			bt.Sequence("rest-home",
				bt.Condition("at-home", "at.home", bt.OpGE, 1),
				bt.Action("rest", rest),
			),
			bt.Action("seek-home", seek(world.POIHome)),
			bt.Action("rest-here", rest),
		), true
	case utility.OptWork:
		return bt.ReactiveSelector(option,
			bt.Sequence("work-here",
				bt.Condition("at-work", "at.work", bt.OpGE, 1),
				bt.Action("work", work),
			),
			bt.Action("seek-work", seek(world.POIWork)),
		), true
	case utility.OptSocialize:
		return bt.ReactiveSelector(option,
			bt.Action("talk", talk),
			bt.Sequence("park",
				bt.Condition("at-park", "at.park", bt.OpGE, 1),
				bt.Action("linger", linger),
			),
			bt.Action("seek-park", seek(world.POIPark)),
		), true
	case utility.OptShare:
		return bt.Action(option, share), true
	case utility.OptTrade:
		return bt.Action(option, trade), true
	case utility.OptConflict:
		return bt.Action(option, conflict(cfg.InteractRadius)), true
	case utility.OptWander:
		return bt.Action(option, wander(cfg)), true
	}
	return nil, false
}
