package formulas

import (
	"math"
)

// minVolatility is the smallest dispersion treated as non-zero. A flat series
// leaves floating-point residue well below it.
const minVolatility = 1e-12

// SharpeRatio calculates (annualReturn - riskFreeRate) / annualVolatility.
//
// Returns nil when the ratio is not computable: zero (below minVolatility) or
// non-finite volatility, or a non-finite return. nil is distinct from a valid 0.
func SharpeRatio(annualReturn, riskFreeRate, annualVolatility float64) *float64 {
	if annualVolatility < minVolatility || !IsFinite(annualVolatility) || !IsFinite(annualReturn) {
		return nil
	}

	sharpe := (annualReturn - riskFreeRate) / annualVolatility
	if !IsFinite(sharpe) {
		return nil
	}
	return &sharpe
}

// SortinoRatio calculates the Sortino Ratio (downside deviation version of Sharpe)
// Only considers downside volatility (returns below the periodic risk-free rate)
//
//	Sortino = (Mean Return - Risk-free Rate) / Downside Deviation, annualised by sqrt(periodsPerYear)
//
// Returns nil if there are fewer than two returns or no downside observations.
func SortinoRatio(returns []float64, riskFreeRate float64, periodsPerYear int) *float64 {
	if len(returns) < 2 || periodsPerYear <= 0 {
		return nil
	}

	periodicRiskFree := riskFreeRate / float64(periodsPerYear)

	var downsideSquaredSum float64
	downsideCount := 0
	for _, ret := range returns {
		if ret < periodicRiskFree {
			deviation := ret - periodicRiskFree
			downsideSquaredSum += deviation * deviation
			downsideCount++
		}
	}

	if downsideCount == 0 {
		return nil
	}

	downsideDeviation := math.Sqrt(downsideSquaredSum / float64(downsideCount))
	if downsideDeviation < minVolatility {
		return nil
	}

	sortino := (Mean(returns) - periodicRiskFree) / downsideDeviation * math.Sqrt(float64(periodsPerYear))
	return &sortino
}
