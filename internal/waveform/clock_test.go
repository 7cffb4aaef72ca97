package waveform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClock_StartsAtZero(t *testing.T) {
	c := NewClock()
	assert.Equal(t, uint64(0), c.Current())
	assert.Equal(t, uint64(0), c.Next())
	assert.Equal(t, uint64(1), c.Next())
	assert.Equal(t, uint64(2), c.Current())
}

func TestClock_StrictlyIncreasing(t *testing.T) {
	c := NewClock()
	prev := c.Next()
	for i := 0; i < 100; i++ {
		next := c.Next()
		assert.Greater(t, next, prev)
		prev = next
	}
}
