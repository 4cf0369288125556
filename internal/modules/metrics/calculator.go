// Package metrics derives performance and risk statistics from a NAV series.
package metrics

import (
	"fmt"

	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/pkg/formulas"
	"github.com/rs/zerolog"
)

// ShortWindowObservations is the number of daily returns below which
// volatility and Sharpe are labelled as short-window statistics.
const ShortWindowObservations = 60

// Result holds the statistics for one NAV window. Pointer fields are nil when
// the statistic is not computable; their names are listed in Undefined.
type Result struct {
	Window           string           `json:"window"`
	Start            string           `json:"start"`
	End              string           `json:"end"`
	Observations     int              `json:"observations"`
	Return           float64          `json:"return"`
	AnnualizedReturn *float64         `json:"annualized_return"`
	Volatility       float64          `json:"volatility"`
	MaxDrawdown      float64          `json:"max_drawdown"`
	CurrentDrawdown  float64          `json:"current_drawdown"`
	Sharpe           *float64         `json:"sharpe"`
	Sortino          *float64         `json:"sortino"`
	ShortWindow      bool             `json:"short_window"`
	Undefined        []string         `json:"undefined,omitempty"`
	Warnings         []domain.Warning `json:"warnings,omitempty"`
}

// Calculator computes metrics against a fixed annual risk-free rate.
type Calculator struct {
	riskFreeRate float64
	log          zerolog.Logger
}

// NewCalculator creates a metrics calculator
func NewCalculator(riskFreeRate float64, log zerolog.Logger) *Calculator {
	return &Calculator{
		riskFreeRate: riskFreeRate,
		log:          log.With().Str("component", "metrics_calculator").Logger(),
	}
}

// RiskFreeRate returns the annual rate used for Sharpe and Sortino.
func (c *Calculator) RiskFreeRate() float64 {
	return c.riskFreeRate
}

// Calculate derives return, volatility, drawdown and risk-adjusted ratios
// from gap-free NAV points. label names the window the points cover.
//
// Volatility is reported as measured, however large; short windows only set
// ShortWindow so the caller can explain the number.
func (c *Calculator) Calculate(points []domain.NAVPoint, label string) (*Result, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: no NAV points", domain.ErrUndefinedMetric)
	}

	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}

	res := &Result{
		Window: label,
		Start:  domain.FormatDate(points[0].Date),
		End:    domain.FormatDate(points[len(points)-1].Date),
	}

	total, ok := formulas.TotalReturn(values[0], values[len(values)-1])
	if !ok {
		return nil, fmt.Errorf("%w: NAV at %s is %v", domain.ErrUndefinedMetric, res.Start, values[0])
	}
	res.Return = total

	returns := formulas.CalculateReturns(values)
	res.Observations = len(returns)

	if annual, ok := formulas.AnnualizeReturn(total, len(returns)); ok {
		res.AnnualizedReturn = &annual
	} else {
		res.Undefined = append(res.Undefined, "annualized_return")
	}

	res.Volatility = formulas.AnnualizedVolatility(returns)

	dd := formulas.CalculateDrawdownMetrics(values)
	res.MaxDrawdown = dd.MaxDrawdown
	res.CurrentDrawdown = dd.CurrentDrawdown

	if res.AnnualizedReturn != nil {
		res.Sharpe = formulas.SharpeRatio(*res.AnnualizedReturn, c.riskFreeRate, res.Volatility)
	}
	if res.Sharpe == nil {
		res.Undefined = append(res.Undefined, "sharpe")
	}

	res.Sortino = formulas.SortinoRatio(returns, c.riskFreeRate, formulas.TradingDaysPerYear)
	if res.Sortino == nil {
		res.Undefined = append(res.Undefined, "sortino")
	}

	if res.Observations < ShortWindowObservations {
		res.ShortWindow = true
		res.Warnings = append(res.Warnings, domain.Warning{
			Code: domain.WarnShortWindow,
			Message: fmt.Sprintf("%d daily returns; annualized volatility and ratios from fewer than %d observations can look extreme",
				res.Observations, ShortWindowObservations),
		})
	}

	c.log.Debug().
		Str("window", label).
		Int("observations", res.Observations).
		Float64("return", res.Return).
		Float64("volatility", res.Volatility).
		Strs("undefined", res.Undefined).
		Msg("Calculated metrics")

	return res, nil
}
