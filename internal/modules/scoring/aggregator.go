// Package scoring combines independently computed sub-scores into a
// position health score.
package scoring

import (
	"fmt"
	"math"

	"github.com/aristath/folio/internal/domain"
	"github.com/rs/zerolog"
)

// MaxSubScore is the upper bound of every sub-score.
const MaxSubScore = 25.0

// Band is the qualitative reading of a total score.
type Band string

const (
	BandStrong   Band = "Strong"   // total >= 75
	BandModerate Band = "Moderate" // 50 <= total < 75
	BandWeak     Band = "Weak"     // total < 50
)

// BandFor classifies a total score. Lower bounds are inclusive.
func BandFor(total float64) Band {
	switch {
	case total >= 75:
		return BandStrong
	case total >= 50:
		return BandModerate
	default:
		return BandWeak
	}
}

// Weights sets each sub-score's share of the total. They must sum to 1.0;
// equal shares reproduce a plain sum of the four sub-scores.
type Weights struct {
	Fundamentals    float64 `json:"fundamentals"`
	PriceTrend      float64 `json:"price_trend"`
	Sentiment       float64 `json:"sentiment"`
	PortfolioImpact float64 `json:"portfolio_impact"`
}

// EqualWeights gives each sub-score a quarter of the total.
func EqualWeights() Weights {
	return Weights{0.25, 0.25, 0.25, 0.25}
}

// WeightsFrom maps a config tuple (fundamentals, price trend, sentiment,
// portfolio impact) to Weights.
func WeightsFrom(w [4]float64) Weights {
	return Weights{w[0], w[1], w[2], w[3]}
}

// Validate checks the weights are non-negative and sum to 1.0
func (w Weights) Validate() error {
	parts := []float64{w.Fundamentals, w.PriceTrend, w.Sentiment, w.PortfolioImpact}
	var sum float64
	for _, p := range parts {
		if p < 0 || !isFinite(p) {
			return &domain.ValidationError{Field: "health_weights", Reason: fmt.Sprintf("weight %v must be a non-negative number", p)}
		}
		sum += p
	}
	if math.Abs(sum-1) > 1e-6 {
		return &domain.ValidationError{Field: "health_weights", Reason: fmt.Sprintf("weights sum to %v, want 1.0", sum)}
	}
	return nil
}

// SubScores are the four inputs, each expected in [0,25].
type SubScores struct {
	Fundamentals    float64 `json:"fundamentals"`
	PriceTrend      float64 `json:"price_trend"`
	Sentiment       float64 `json:"sentiment"`
	PortfolioImpact float64 `json:"portfolio_impact"`
}

// HealthScore is the composite score. The four components are always
// returned next to the total so the breakdown can be audited.
type HealthScore struct {
	Symbol          string           `json:"symbol"`
	Total           float64          `json:"total"`
	Band            Band             `json:"band"`
	Fundamentals    float64          `json:"fundamentals"`
	PriceTrend      float64          `json:"price_trend"`
	Sentiment       float64          `json:"sentiment"`
	PortfolioImpact float64          `json:"portfolio_impact"`
	Weights         Weights          `json:"weights"`
	Warnings        []domain.Warning `json:"warnings,omitempty"`
}

// Aggregator combines sub-scores with configurable weights.
type Aggregator struct {
	weights Weights
	log     zerolog.Logger
}

// NewAggregator creates a health score aggregator
func NewAggregator(weights Weights, log zerolog.Logger) (*Aggregator, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &Aggregator{
		weights: weights,
		log:     log.With().Str("component", "health_aggregator").Logger(),
	}, nil
}

// Weights returns the configured weights.
func (a *Aggregator) Weights() Weights {
	return a.weights
}

// Aggregate computes total = Σ (sub/25)·weight·100, clamped to [0,100].
// Sub-scores outside [0,25] are clamped and reported as warnings.
func (a *Aggregator) Aggregate(symbol string, s SubScores) HealthScore {
	hs := HealthScore{Symbol: symbol, Weights: a.weights}

	hs.Fundamentals = a.clamp(&hs, "fundamentals", s.Fundamentals)
	hs.PriceTrend = a.clamp(&hs, "price_trend", s.PriceTrend)
	hs.Sentiment = a.clamp(&hs, "sentiment", s.Sentiment)
	hs.PortfolioImpact = a.clamp(&hs, "portfolio_impact", s.PortfolioImpact)

	total := (hs.Fundamentals*a.weights.Fundamentals +
		hs.PriceTrend*a.weights.PriceTrend +
		hs.Sentiment*a.weights.Sentiment +
		hs.PortfolioImpact*a.weights.PortfolioImpact) / MaxSubScore * 100

	hs.Total = math.Max(0, math.Min(100, total))
	hs.Band = BandFor(hs.Total)

	a.log.Debug().
		Str("symbol", symbol).
		Float64("total", hs.Total).
		Str("band", string(hs.Band)).
		Msg("Aggregated health score")

	return hs
}

func (a *Aggregator) clamp(hs *HealthScore, name string, v float64) float64 {
	clamped := v
	switch {
	case !isFinite(v):
		clamped = 0
	case v < 0:
		clamped = 0
	case v > MaxSubScore:
		clamped = MaxSubScore
	}
	if clamped != v || !isFinite(v) {
		hs.Warnings = append(hs.Warnings, domain.Warning{
			Code:    domain.WarnSubScoreClamped,
			Message: fmt.Sprintf("%s sub-score %v outside [0,25], clamped to %v", name, v, clamped),
		})
	}
	return clamped
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
