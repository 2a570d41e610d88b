// Agent memory: a bounded ring of significant events whose weight decays
// with age. Memory influences relationship-aware utility scoring.
package agents

import "math"

// EventKind classifies a remembered event.
type EventKind uint8

const (
	EventTalk EventKind = iota
	EventTrade
	EventShare
	EventConflict
	EventThreat
	EventMeal
	EventWork
	EventRelationship
)

// String returns the lowercase event kind name.
func (k EventKind) String() string {
	switch k {
	case EventTalk:
		return "talk"
	case EventTrade:
		return "trade"
	case EventShare:
		return "share"
	case EventConflict:
		return "conflict"
	case EventThreat:
		return "threat"
	case EventMeal:
		return "meal"
	case EventWork:
		return "work"
	case EventRelationship:
		return "relationship"
	default:
		return "unknown"
	}
}

// MemoryEvent is one remembered experience. Magnitude is signed:
// positive for pleasant events, negative for hostile ones.
type MemoryEvent struct {
	Tick         uint64    `json:"tick"`
	Kind         EventKind `json:"kind"`
	Participants []AgentID `json:"participants,omitempty"`
	Magnitude    float64   `json:"magnitude"`
}

// Involves reports whether id took part in the event.
func (e MemoryEvent) Involves(id AgentID) bool {
	for _, p := range e.Participants {
		if p == id {
			return true
		}
	}
	return false
}

// MemoryConfig bounds and decays a memory store.
type MemoryConfig struct {
	Capacity  int     `yaml:"capacity"`
	HalfLife  float64 `yaml:"half_life"`  // Ticks for weight to halve
	MinWeight float64 `yaml:"min_weight"` // Entries below this weight are pruned
}

// MemoryStore is a fixed-capacity ring of events ordered by tick.
// When full, recording evicts the oldest event. Decayed entries are
// pruned lazily the next time the store is read.
type MemoryStore struct {
	cfg      MemoryConfig
	buf      []MemoryEvent
	head     int
	size     int
	lastTick uint64
	now      uint64
	stale    bool
}

// NewMemoryStore creates an empty store. Capacity below 1 is raised to 1.
func NewMemoryStore(cfg MemoryConfig) *MemoryStore {
	if cfg.Capacity < 1 {
		cfg.Capacity = 1
	}
	return &MemoryStore{cfg: cfg, buf: make([]MemoryEvent, cfg.Capacity)}
}

// Config returns the store's configuration.
func (m *MemoryStore) Config() MemoryConfig { return m.cfg }

// Record appends an event and reports whether the oldest event was
// evicted to make room. A tick earlier than the last recorded tick is
// raised to it so stored ticks stay non-decreasing.
func (m *MemoryStore) Record(ev MemoryEvent) bool {
	if ev.Tick < m.lastTick {
		ev.Tick = m.lastTick
	}
	m.lastTick = ev.Tick
	if ev.Tick > m.now {
		m.now = ev.Tick
	}
	if len(ev.Participants) > 0 {
		ev.Participants = append([]AgentID(nil), ev.Participants...)
	}

	n := len(m.buf)
	if m.size < n {
		m.buf[(m.head+m.size)%n] = ev
		m.size++
		return false
	}
	m.buf[m.head] = ev
	m.head = (m.head + 1) % n
	return true
}

// Decay advances the store's clock. Weights are recomputed relative to now
// and entries that fell below the minimum weight are dropped on next read.
func (m *MemoryStore) Decay(now uint64) {
	if now < m.now {
		return
	}
	m.now = now
	m.stale = true
}

// Weight returns the decayed weight of ev at the store's current tick:
// |magnitude| * 2^(-age/halfLife).
func (m *MemoryStore) Weight(ev MemoryEvent) float64 {
	age := 0.0
	if m.now > ev.Tick {
		age = float64(m.now - ev.Tick)
	}
	w := math.Abs(ev.Magnitude)
	if m.cfg.HalfLife > 0 {
		w *= math.Exp2(-age / m.cfg.HalfLife)
	}
	return w
}

func (m *MemoryStore) prune() {
	if !m.stale {
		return
	}
	m.stale = false
	if m.cfg.MinWeight <= 0 {
		return
	}
	n := len(m.buf)
	kept := 0
	for i := 0; i < m.size; i++ {
		ev := m.buf[(m.head+i)%n]
		if m.Weight(ev) < m.cfg.MinWeight {
			continue
		}
		m.buf[(m.head+kept)%n] = ev
		kept++
	}
	for i := kept; i < m.size; i++ {
		m.buf[(m.head+i)%n] = MemoryEvent{}
	}
	m.size = kept
}

// Len returns the number of live events.
func (m *MemoryStore) Len() int {
	m.prune()
	return m.size
}

// Events returns a copy of the live events, oldest first.
func (m *MemoryStore) Events() []MemoryEvent {
	m.prune()
	out := make([]MemoryEvent, 0, m.size)
	n := len(m.buf)
	for i := 0; i < m.size; i++ {
		out = append(out, m.buf[(m.head+i)%n])
	}
	return out
}

// Recent returns up to count of the newest events, newest first.
func (m *MemoryStore) Recent(count int) []MemoryEvent {
	m.prune()
	if count > m.size {
		count = m.size
	}
	if count <= 0 {
		return nil
	}
	out := make([]MemoryEvent, 0, count)
	n := len(m.buf)
	for i := m.size - 1; i >= m.size-count; i-- {
		out = append(out, m.buf[(m.head+i)%n])
	}
	return out
}

// Influence returns the signed, decayed sum of events shared with other.
// Positive means pleasant history.
func (m *MemoryStore) Influence(other AgentID) float64 {
	m.prune()
	sum := 0.0
	n := len(m.buf)
	for i := 0; i < m.size; i++ {
		ev := m.buf[(m.head+i)%n]
		if !ev.Involves(other) {
			continue
		}
		w := m.Weight(ev)
		if ev.Magnitude < 0 {
			w = -w
		}
		sum += w
	}
	return sum
}

// Threat returns the decayed weight of recent threat and conflict events.
func (m *MemoryStore) Threat() float64 {
	m.prune()
	sum := 0.0
	n := len(m.buf)
	for i := 0; i < m.size; i++ {
		ev := m.buf[(m.head+i)%n]
		if ev.Kind == EventThreat || ev.Kind == EventConflict {
			sum += m.Weight(ev)
		}
	}
	return sum
}

// LastTick returns the tick of the most recently recorded event.
func (m *MemoryStore) LastTick() uint64 { return m.lastTick }

// Restore replaces the contents with events, keeping at most the newest
// Capacity of them. Used when loading a saved world.
func (m *MemoryStore) Restore(events []MemoryEvent, now uint64) {
	for i := range m.buf {
		m.buf[i] = MemoryEvent{}
	}
	m.head, m.size, m.lastTick, m.now = 0, 0, 0, 0
	if len(events) > len(m.buf) {
		events = events[len(events)-len(m.buf):]
	}
	for _, ev := range events {
		m.Record(ev)
	}
	m.Decay(now)
}
