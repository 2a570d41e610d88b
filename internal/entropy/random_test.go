package entropy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStreamsAreReproducible(t *testing.T) {
	a := New(42).Stream(7, 100)
	b := New(42).Stream(7, 100)
	for i := 0; i < 50; i++ {
		assert.Equal(t, a.Int63(), b.Int63())
	}
}

func TestStreamsDiffer(t *testing.T) {
	src := New(42)
	assert.NotEqual(t, src.Stream(1).Int63(), src.Stream(2).Int63())
	assert.NotEqual(t, src.Stream(1, 2).Int63(), src.Stream(2, 1).Int63())
	assert.NotEqual(t, New(1).Stream(1).Int63(), New(2).Stream(1).Int63())
}

func TestFloatRange(t *testing.T) {
	r := New(3).Stream(9)
	for i := 0; i < 1000; i++ {
		f := r.Float64()
		assert.GreaterOrEqual(t, f, 0.0)
		assert.Less(t, f, 1.0)
	}
}
