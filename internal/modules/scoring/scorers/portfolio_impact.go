package scorers

// PortfolioImpactScorer rates how well a holding fits the portfolio on [0,25].
//
// Components:
//   - Risk balance (12.5): full marks while the holding's share of portfolio
//     volatility is at most its weight, zero once it carries twice its weight
//   - Size (12.5): full marks up to the position-size threshold, zero at twice it
type PortfolioImpactScorer struct {
	positionThreshold float64
}

// NewPortfolioImpactScorer creates a scorer using the position-size alert threshold
func NewPortfolioImpactScorer(positionThreshold float64) *PortfolioImpactScorer {
	return &PortfolioImpactScorer{positionThreshold: positionThreshold}
}

// Score rates a holding from its current weight and its share of portfolio
// risk (Σ over holdings is 1).
func (s *PortfolioImpactScorer) Score(weight, riskShare float64) float64 {
	riskPoints := neutralScore
	if weight > 0 {
		ratio := riskShare / weight
		riskPoints = neutralScore * clamp01(2-ratio)
	}

	sizePoints := neutralScore
	if s.positionThreshold > 0 && weight > s.positionThreshold {
		sizePoints = neutralScore * clamp01(1-(weight-s.positionThreshold)/s.positionThreshold)
	}

	return riskPoints + sizePoints
}
