package scenario

import (
	"fmt"
	"math"
)

// VolatilityEstimator estimates portfolio volatility after a weight change.
// oldVol is the measured annualized volatility of the NAV series; the
// estimate is expressed on the same scale.
type VolatilityEstimator interface {
	Name() string
	Estimate(m *RiskModel, oldVol float64, before, after map[string]float64) float64
}

// Estimator names accepted by NewEstimator
const (
	EstimatorLinear     = "linear"
	EstimatorCovariance = "covariance"
)

// NewEstimator returns the estimator registered under name.
func NewEstimator(name string) (VolatilityEstimator, error) {
	switch name {
	case EstimatorLinear, "":
		return LinearEstimator{}, nil
	case EstimatorCovariance:
		return CovarianceEstimator{}, nil
	}
	return nil, fmt.Errorf("unknown volatility estimator %q", name)
}

// LinearEstimator scales current volatility by the change in weighted
// marginal risk: new ≈ old × (w'·MCR) / (w·MCR), with MCR held at the
// current weights. It ignores how the covariance shifts as weights move.
type LinearEstimator struct{}

// Name implements VolatilityEstimator
func (LinearEstimator) Name() string { return EstimatorLinear }

// Estimate implements VolatilityEstimator
func (LinearEstimator) Estimate(m *RiskModel, oldVol float64, before, after map[string]float64) float64 {
	mcr := m.Marginal(before)

	var den, num float64
	for symbol, r := range mcr {
		den += before[symbol] * r
		num += after[symbol] * r
	}
	if den == 0 {
		return oldVol
	}
	// hedging positions can push the linear estimate below zero
	return math.Max(0, oldVol*num/den)
}

// CovarianceEstimator recomputes sqrt(w'ᵀΣw') for the new weights and
// scales the measured volatility by its ratio to sqrt(wᵀΣw).
type CovarianceEstimator struct{}

// Name implements VolatilityEstimator
func (CovarianceEstimator) Name() string { return EstimatorCovariance }

// Estimate implements VolatilityEstimator
func (CovarianceEstimator) Estimate(m *RiskModel, oldVol float64, before, after map[string]float64) float64 {
	model := m.Volatility(before)
	if model <= 0 {
		return m.Volatility(after)
	}
	return oldVol * m.Volatility(after) / model
}
