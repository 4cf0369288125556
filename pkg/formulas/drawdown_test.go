package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaxDrawdown(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		expected float64
	}{
		{"empty", nil, 0},
		{"non-decreasing", []float64{100, 100, 101, 105}, 0},
		{"single trough", []float64{100, 120, 90, 130}, -0.25},
		{"deeper second trough", []float64{100, 80, 100, 110, 55}, -0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MaxDrawdown(tt.values)
			assert.InDelta(t, tt.expected, got, 1e-12)
			assert.LessOrEqual(t, got, 0.0)
		})
	}
}

func TestCalculateDrawdownMetrics(t *testing.T) {
	m := CalculateDrawdownMetrics([]float64{100, 120, 90, 108})

	assert.InDelta(t, -0.25, m.MaxDrawdown, 1e-12)
	assert.InDelta(t, -0.10, m.CurrentDrawdown, 1e-12)
	assert.Equal(t, 2, m.DaysInDrawdown)
	assert.Equal(t, 120.0, m.PeakValue)
	assert.Equal(t, 108.0, m.CurrentValue)
}
