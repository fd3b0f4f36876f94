package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUnit_Duration_ScalesUnits(t *testing.T) {
	// GIVEN a 100ms unit
	u := Unit(100 * time.Millisecond)

	// WHEN 2.5 units are converted
	got := u.Duration(2.5)

	// THEN the wall duration is 250ms
	assert.Equal(t, 250*time.Millisecond, got)
}

func TestUnit_Units_InverseOfDuration(t *testing.T) {
	u := Unit(20 * time.Millisecond)
	assert.InDelta(t, 1.5, u.Units(u.Duration(1.5)), 1e-9)
}

func TestUnit_Units_ZeroUnit_ReturnsZero(t *testing.T) {
	var u Unit
	assert.Equal(t, 0.0, u.Units(time.Second))
}

func TestWall_Sleep_NonPositive_ReturnsImmediately(t *testing.T) {
	start := time.Now()
	Wall{}.Sleep(-time.Second)
	Wall{}.Sleep(0)
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}
