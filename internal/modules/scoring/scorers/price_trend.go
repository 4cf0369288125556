// Package scorers provides the in-repo health sub-score implementations.
package scorers

import (
	"math"

	"github.com/aristath/folio/pkg/formulas"
)

// Half of the 25-point sub-score range
const neutralScore = 12.5

// PriceTrendScorer rates a symbol's recent price action on [0,25]
// from RSI(14) and the price's position against EMA(50) and EMA(200).
type PriceTrendScorer struct{}

// NewPriceTrendScorer creates a new price trend scorer
func NewPriceTrendScorer() *PriceTrendScorer {
	return &PriceTrendScorer{}
}

// MinBars is the history below which the scorer returns a neutral score.
const MinBars = 15

// Score rates closes (oldest first).
//
// Components:
//   - RSI (12.5): full marks up to RSI 60, fading to half at 90 (overbought);
//     scaled down linearly below 60
//   - EMA50 (6.25): half at the EMA, full 5% above, zero 5% below
//   - EMA200 (6.25): same mapping; neutral when history is too short
func (s *PriceTrendScorer) Score(closes []float64) float64 {
	if len(closes) < MinBars {
		return neutralScore
	}

	price := closes[len(closes)-1]

	rsiPoints := neutralScore / 2
	if rsi := formulas.CalculateRSI(closes, 14); rsi != nil {
		rsiPoints = rsiScore(*rsi)
	}

	return rsiPoints + emaScore(price, formulas.CalculateEMA(closes, 50)) + emaScore(price, formulas.CalculateEMA(closes, 200))
}

func rsiScore(rsi float64) float64 {
	if rsi <= 60 {
		return neutralScore * clamp01(rsi/60)
	}
	return neutralScore - neutralScore/2*clamp01((rsi-60)/30)
}

func emaScore(price float64, ema *float64) float64 {
	const full = neutralScore / 2
	if ema == nil || *ema <= 0 {
		return full / 2
	}
	return full * clamp01(0.5+(price/(*ema)-1)*10)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
