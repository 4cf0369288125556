package formulas

import "sort"

// HerfindahlIndex is Σ w². 1/N for an equal-weight book of N holdings, 1 for a single holding.
func HerfindahlIndex(weights []float64) float64 {
	var hhi float64
	for _, w := range weights {
		hhi += w * w
	}
	return hhi
}

// TopNWeight sums the n largest weights.
func TopNWeight(weights []float64, n int) float64 {
	sorted := make([]float64, len(weights))
	copy(sorted, weights)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))

	var total float64
	for i := 0; i < n && i < len(sorted); i++ {
		total += sorted[i]
	}
	return total
}
