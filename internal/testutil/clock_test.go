package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManualClock_StartsAtEpoch(t *testing.T) {
	clock := NewManualClock()
	assert.Equal(t, Epoch, clock.Now())
	assert.Equal(t, time.Duration(0), clock.Elapsed())
}

func TestManualClock_Advance(t *testing.T) {
	clock := NewManualClock()

	clock.Advance(500 * time.Millisecond)
	clock.Advance(2 * time.Second)

	assert.Equal(t, 2500*time.Millisecond, clock.Elapsed())
	assert.Equal(t, Epoch.Add(2500*time.Millisecond), clock.Now())
}

func TestManualClock_IgnoresNegativeAdvance(t *testing.T) {
	clock := NewManualClock()
	clock.Advance(time.Second)
	clock.Advance(-time.Hour)
	assert.Equal(t, time.Second, clock.Elapsed())
}

func TestManualClock_Reset(t *testing.T) {
	clock := NewManualClock()
	clock.Advance(time.Minute)
	clock.Reset()
	assert.Equal(t, Epoch, clock.Now())
}
