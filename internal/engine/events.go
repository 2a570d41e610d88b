package engine

import (
	"errors"
	"sync"

	"github.com/talgya/mini-city/internal/agents"
)

// Lifecycle event kinds. Memory-derived events use agents.EventKind names.
const (
	KindSpawn   = "spawn"
	KindDespawn = "despawn"
)

// Event is a significant occurrence emitted to external consumers.
type Event struct {
	Seq       uint64         `json:"seq" db:"seq"`
	Tick      uint64         `json:"tick" db:"tick"`
	Kind      string         `json:"kind" db:"kind"`
	Actor     agents.AgentID `json:"actor" db:"actor"`
	Target    agents.AgentID `json:"target,omitempty" db:"target"`
	Magnitude float64        `json:"magnitude" db:"magnitude"`
	Detail    string         `json:"detail,omitempty" db:"detail"`
}

// Sink consumes emitted events. Emit must not call back into the simulation.
type Sink interface {
	Emit(Event)
}

// Flusher is implemented by sinks that buffer.
type Flusher interface {
	Flush() error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

// Emit calls f.
func (f SinkFunc) Emit(ev Event) { f(ev) }

// FanOut delivers each event to every sink in order.
type FanOut []Sink

// Emit forwards ev to every sink.
func (fo FanOut) Emit(ev Event) {
	for _, s := range fo {
		s.Emit(ev)
	}
}

// Flush flushes every buffering sink and joins their errors.
func (fo FanOut) Flush() error {
	var errs []error
	for _, s := range fo {
		if f, ok := s.(Flusher); ok {
			if err := f.Flush(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// significant reports whether a memory event is forwarded to the sink.
func significant(kind agents.EventKind, magnitude, threshold float64) bool {
	switch kind {
	case agents.EventTrade, agents.EventShare, agents.EventConflict, agents.EventRelationship:
		return true
	}
	if magnitude < 0 {
		magnitude = -magnitude
	}
	return magnitude >= threshold
}

// Recorder keeps the most recent events in a ring. Safe for concurrent use.
type Recorder struct {
	mu   sync.Mutex
	buf  []Event
	head int // Index of the oldest event
	size int
}

// NewRecorder creates a recorder holding up to capacity events.
func NewRecorder(capacity int) *Recorder {
	if capacity < 1 {
		capacity = 1
	}
	return &Recorder{buf: make([]Event, capacity)}
}

// Emit stores ev, evicting the oldest event when full.
func (r *Recorder) Emit(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.size < len(r.buf) {
		r.buf[(r.head+r.size)%len(r.buf)] = ev
		r.size++
		return
	}
	r.buf[r.head] = ev
	r.head = (r.head + 1) % len(r.buf)
}

// Len returns the number of stored events.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// All returns every stored event, oldest first.
func (r *Recorder) All() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tail(r.size)
}

// Recent returns up to n of the newest events, oldest first.
func (r *Recorder) Recent(n int) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n > r.size {
		n = r.size
	}
	return r.tail(n)
}

// Since returns up to limit events with Seq greater than seq, oldest first.
func (r *Recorder) Since(seq uint64, limit int) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for i := 0; i < r.size && len(out) < limit; i++ {
		ev := r.buf[(r.head+i)%len(r.buf)]
		if ev.Seq > seq {
			out = append(out, ev)
		}
	}
	return out
}

func (r *Recorder) tail(n int) []Event {
	if n <= 0 {
		return nil
	}
	out := make([]Event, n)
	start := r.size - n
	for i := 0; i < n; i++ {
		out[i] = r.buf[(r.head+start+i)%len(r.buf)]
	}
	return out
}
