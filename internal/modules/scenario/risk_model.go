package scenario

import (
	"fmt"
	"math"
	"sort"

	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/modules/nav"
	"github.com/aristath/folio/pkg/formulas"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// RiskModel holds the annualised covariance of the included symbols'
// daily returns over a NAV series.
type RiskModel struct {
	Symbols []string
	index   map[string]int
	cov     *mat.SymDense
}

// RiskContribution is one holding's part of portfolio volatility.
type RiskContribution struct {
	Rank   int     `json:"rank"`
	Symbol string  `json:"symbol"`
	Weight float64 `json:"weight"`
	// Marginal is ∂σ/∂w = (Σw)_i / σ
	Marginal     float64 `json:"marginal"`
	Contribution float64 `json:"contribution"` // weight × marginal; sums to σ
	Share        float64 `json:"share"`        // contribution / σ
}

// NewRiskModel estimates the covariance matrix from the series' aligned prices.
func NewRiskModel(s *nav.Series) (*RiskModel, error) {
	observations := s.Len() - 1
	if observations < 2 {
		return nil, fmt.Errorf("%w: risk model needs at least two daily returns, have %d", domain.ErrUndefinedMetric, observations)
	}

	n := len(s.Symbols)
	data := mat.NewDense(observations, n, nil)
	index := make(map[string]int, n)
	for j, symbol := range s.Symbols {
		index[symbol] = j
		for i, r := range s.AssetReturns(symbol) {
			data.Set(i, j, r)
		}
	}

	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, data, nil)
	cov.ScaleSym(formulas.TradingDaysPerYear, &cov)

	return &RiskModel{
		Symbols: append([]string(nil), s.Symbols...),
		index:   index,
		cov:     &cov,
	}, nil
}

func (m *RiskModel) vector(weights map[string]float64) *mat.VecDense {
	v := mat.NewVecDense(len(m.Symbols), nil)
	for symbol, w := range weights {
		if j, ok := m.index[symbol]; ok {
			v.SetVec(j, w)
		}
	}
	return v
}

// Volatility is sqrt(wᵀΣw), the annualised portfolio volatility.
func (m *RiskModel) Volatility(weights map[string]float64) float64 {
	w := m.vector(weights)
	var sw mat.VecDense
	sw.MulVec(m.cov, w)
	variance := mat.Dot(w, &sw)
	if variance <= 0 {
		return 0
	}
	return math.Sqrt(variance)
}

// Marginal returns each symbol's marginal contribution to volatility.
// All zero when the portfolio has no volatility.
func (m *RiskModel) Marginal(weights map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m.Symbols))
	vol := m.Volatility(weights)

	w := m.vector(weights)
	var sw mat.VecDense
	sw.MulVec(m.cov, w)

	for j, symbol := range m.Symbols {
		if vol > 0 {
			out[symbol] = sw.AtVec(j) / vol
		} else {
			out[symbol] = 0
		}
	}
	return out
}

// Contributions ranks holdings by their contribution to volatility, largest first.
func (m *RiskModel) Contributions(weights map[string]float64) []RiskContribution {
	vol := m.Volatility(weights)
	marginal := m.Marginal(weights)

	out := make([]RiskContribution, 0, len(m.Symbols))
	for _, symbol := range m.Symbols {
		rc := RiskContribution{
			Symbol:   symbol,
			Weight:   weights[symbol],
			Marginal: marginal[symbol],
		}
		rc.Contribution = rc.Weight * rc.Marginal
		if vol > 0 {
			rc.Share = rc.Contribution / vol
		}
		out = append(out, rc)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Contribution != out[j].Contribution {
			return out[i].Contribution > out[j].Contribution
		}
		return out[i].Symbol < out[j].Symbol
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}
