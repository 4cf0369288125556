package formulas

// DrawdownMetrics represents drawdown analysis results.
// Drawdowns are negative fractions: -0.25 is a 25% fall from the running peak.
type DrawdownMetrics struct {
	MaxDrawdown     float64 `json:"max_drawdown"`
	CurrentDrawdown float64 `json:"current_drawdown"`
	DaysInDrawdown  int     `json:"days_in_drawdown"` // Observations since the last peak
	PeakValue       float64 `json:"peak_value"`
	CurrentValue    float64 `json:"current_value"`
}

// MaxDrawdown returns min over t of (value[t] / max(value[0..t]) - 1).
// Always <= 0; exactly 0 when the series never falls below a prior peak.
func MaxDrawdown(values []float64) float64 {
	return CalculateDrawdownMetrics(values).MaxDrawdown
}

// CalculateDrawdownMetrics calculates max and current drawdown together with
// the peak they are measured against.
func CalculateDrawdownMetrics(values []float64) DrawdownMetrics {
	if len(values) == 0 {
		return DrawdownMetrics{}
	}

	maxDrawdown := 0.0
	peak := values[0]
	peakIndex := 0

	for i, v := range values {
		if v > peak {
			peak = v
			peakIndex = i
		}
		if peak > 0 {
			if dd := v/peak - 1; dd < maxDrawdown {
				maxDrawdown = dd
			}
		}
	}

	current := values[len(values)-1]
	currentDrawdown := 0.0
	if peak > 0 && current < peak {
		currentDrawdown = current/peak - 1
	}

	return DrawdownMetrics{
		MaxDrawdown:     maxDrawdown,
		CurrentDrawdown: currentDrawdown,
		DaysInDrawdown:  len(values) - 1 - peakIndex,
		PeakValue:       peak,
		CurrentValue:    current,
	}
}
