package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/inference-sim/ipc-sim/sim/internal/testutil"
)

func TestCalculatePercentile_EmptyInput_ReturnsZero(t *testing.T) {
	// GIVEN empty slices of both element kinds
	// WHEN CalculatePercentile is called
	// THEN it returns 0 (not panic)
	assert.Equal(t, 0.0, CalculatePercentile([]float64{}, 99))
	assert.Equal(t, 0.0, CalculatePercentile([]int64{}, 50))
}

func TestCalculatePercentile_SingleElement(t *testing.T) {
	assert.Equal(t, 1.5, CalculatePercentile([]float64{1.5}, 99))
	assert.Equal(t, 1.5, CalculatePercentile([]float64{1.5}, 0))
}

func TestCalculatePercentile_Interpolates(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5}
	assert.Equal(t, 3.0, CalculatePercentile(data, 50))
	assert.Equal(t, 5.0, CalculatePercentile(data, 100))
	testutil.AssertFloat64Equal(t, "p99", 4.96, CalculatePercentile(data, 99), 1e-9)
	testutil.AssertFloat64Equal(t, "p25 ints", 2.0, CalculatePercentile([]int{1, 2, 3, 4, 5}, 25), 1e-9)
}

func TestCalculateMean(t *testing.T) {
	assert.Equal(t, 0.0, CalculateMean([]float64{}))
	assert.Equal(t, 2.5, CalculateMean([]int{1, 2, 3, 4}))
}

func TestLatencyUnits_ConvertsAndSorts(t *testing.T) {
	unit := 100 * time.Millisecond
	got := latencyUnits(
		[]time.Duration{300 * time.Millisecond, 50 * time.Millisecond, 200 * time.Millisecond},
		func(d time.Duration) float64 { return float64(d) / float64(unit) },
	)
	assert.Equal(t, []float64{0.5, 2, 3}, got)
}
