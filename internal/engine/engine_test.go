package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvanceFiresLayers(t *testing.T) {
	e := NewEngine()
	var ticks, hours, days int
	e.OnTick = func(uint64) { ticks++ }
	e.OnHour = func(uint64) { hours++ }
	e.OnDay = func(uint64) { days++ }

	e.Advance(TicksPerSimDay + 1)
	assert.Equal(t, TicksPerSimDay+1, ticks)
	assert.Equal(t, 24, hours)
	assert.Equal(t, 1, days)
	assert.Equal(t, uint64(TicksPerSimDay+1), e.Tick())
}

func TestSetSpeed(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.SetSpeed(0))
	assert.Zero(t, e.Speed())
	require.NoError(t, e.SetSpeed(4))
	assert.Equal(t, 4.0, e.Speed())
	assert.ErrorIs(t, e.SetSpeed(-1), ErrBadSpeed)
	assert.ErrorIs(t, e.SetSpeed(MaxSpeed+1), ErrBadSpeed)
	assert.Equal(t, 4.0, e.Speed())
}

func TestRunStopsOnCancel(t *testing.T) {
	e := NewEngine()
	e.Interval = time.Millisecond
	require.NoError(t, e.SetSpeed(MaxSpeed))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return e.Tick() > 5 }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, e.Running())
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.False(t, e.Running())
}

func TestRunPaused(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.SetSpeed(0))
	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	e.Run(ctx)
	assert.Zero(t, e.Tick())
}

func TestSimTime(t *testing.T) {
	assert.Equal(t, "Day 1, 00:00", SimTime(0))
	assert.Equal(t, "Day 1, 07:15", SimTime(7*60+15))
	assert.Equal(t, "Day 2, 01:00", SimTime(TicksPerSimDay+60))
	assert.Equal(t, uint64(1), SimDay(TicksPerSimDay))
}

func TestRecorderRing(t *testing.T) {
	r := NewRecorder(3)
	for i := uint64(1); i <= 5; i++ {
		r.Emit(Event{Seq: i, Tick: i})
	}
	assert.Equal(t, 3, r.Len())
	all := r.All()
	require.Len(t, all, 3)
	assert.Equal(t, uint64(3), all[0].Seq)
	assert.Equal(t, uint64(5), all[2].Seq)

	recent := r.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, uint64(4), recent[0].Seq)
	assert.Len(t, r.Recent(10), 3)
	assert.Nil(t, r.Recent(0))

	since := r.Since(3, 10)
	require.Len(t, since, 2)
	assert.Equal(t, uint64(4), since[0].Seq)
	assert.Len(t, r.Since(0, 1), 1)
}

type flushCounter struct {
	events  []Event
	flushes int
}

func (f *flushCounter) Emit(ev Event) { f.events = append(f.events, ev) }
func (f *flushCounter) Flush() error  { f.flushes++; return nil }

func TestFanOut(t *testing.T) {
	a, b := &flushCounter{}, &flushCounter{}
	var seen int
	fo := FanOut{a, SinkFunc(func(Event) { seen++ }), b}
	fo.Emit(Event{Seq: 1})
	require.NoError(t, fo.Flush())
	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 1)
	assert.Equal(t, 1, seen)
	assert.Equal(t, 1, a.flushes)
	assert.Equal(t, 1, b.flushes)
}
