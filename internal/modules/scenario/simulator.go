// Package scenario estimates the risk impact of a hypothetical position change.
package scenario

import (
	"fmt"
	"strings"

	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/modules/nav"
	"github.com/aristath/folio/pkg/formulas"
	"github.com/rs/zerolog"
)

// Action is a what-if change applied to one holding.
type Action string

const (
	ActionTrim25 Action = "trim_25"
	ActionTrim50 Action = "trim_50"
	ActionExit   Action = "exit"
	ActionAdd10  Action = "add_10"
)

var actionFactors = map[Action]float64{
	ActionTrim25: 0.75,
	ActionTrim50: 0.50,
	ActionExit:   0,
	ActionAdd10:  1.10,
}

// ParseAction validates an action name.
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := actionFactors[a]; !ok {
		return "", &domain.ValidationError{Field: "action", Reason: fmt.Sprintf("unknown action %q (trim_25, trim_50, exit, add_10)", s)}
	}
	return a, nil
}

// Factor is the multiplier applied to the target's weight.
func (a Action) Factor() float64 {
	return actionFactors[a]
}

// WeightChange is one holding's weight before and after the action.
type WeightChange struct {
	Symbol string  `json:"symbol"`
	Before float64 `json:"before"`
	After  float64 `json:"after"`
}

// Concentration summarises how concentrated a weight vector is.
type Concentration struct {
	Herfindahl      float64 `json:"herfindahl"`
	MaxWeight       float64 `json:"max_weight"`
	MaxWeightSymbol string  `json:"max_weight_symbol"`
}

// Result is the before/after comparison of a scenario. The shape does not
// depend on which volatility estimator produced it.
type Result struct {
	PortfolioID         string             `json:"portfolio_id"`
	Symbol              string             `json:"symbol"`
	Action              Action             `json:"action"`
	Estimator           string             `json:"estimator"`
	History             string             `json:"history"` // return history the estimate is based on
	Weights             []WeightChange     `json:"weights"`
	NewWeights          map[string]float64 `json:"new_weights"`
	BeforeVolatility    float64            `json:"before_volatility"`
	AfterVolatility     float64            `json:"after_volatility"`
	BeforeMaxDrawdown   float64            `json:"before_max_drawdown"`
	AfterMaxDrawdown    float64            `json:"after_max_drawdown"`
	BeforeConcentration Concentration      `json:"before_concentration"`
	AfterConcentration  Concentration      `json:"after_concentration"`
	RiskBefore          []RiskContribution `json:"risk_contributions_before"`
	RiskAfter           []RiskContribution `json:"risk_contributions"`
	Warnings            []domain.Warning   `json:"warnings,omitempty"`
}

// Simulator replays a NAV series' history under changed weights.
type Simulator struct {
	estimator VolatilityEstimator
	log       zerolog.Logger
}

// NewSimulator creates a scenario simulator
func NewSimulator(estimator VolatilityEstimator, log zerolog.Logger) *Simulator {
	return &Simulator{
		estimator: estimator,
		log:       log.With().Str("component", "scenario_simulator").Str("estimator", estimator.Name()).Logger(),
	}
}

// Simulate applies action to symbol using the series' current value weights.
func (s *Simulator) Simulate(series *nav.Series, symbol string, action Action) (*Result, error) {
	symbol = domain.NormalizeSymbol(symbol)
	if _, ok := actionFactors[action]; !ok {
		return nil, &domain.ValidationError{Field: "action", Reason: fmt.Sprintf("unknown action %q", action)}
	}
	if series.Len() == 0 {
		return nil, fmt.Errorf("%w: empty NAV series", domain.ErrUndefinedMetric)
	}

	before := series.Weights(series.Len() - 1)
	after, err := Reweight(before, symbol, action.Factor())
	if err != nil {
		return nil, err
	}

	model, err := NewRiskModel(series)
	if err != nil {
		return nil, err
	}

	res := &Result{
		PortfolioID: series.PortfolioID,
		Symbol:      symbol,
		Action:      action,
		Estimator:   s.estimator.Name(),
		History: fmt.Sprintf("%s → %s (%d daily returns)",
			domain.FormatDate(series.Start()), domain.FormatDate(series.End()), series.Len()-1),
		NewWeights: after,
		Warnings:   series.Warnings,
	}
	for _, sym := range series.Symbols {
		res.Weights = append(res.Weights, WeightChange{Symbol: sym, Before: before[sym], After: after[sym]})
	}

	// The baseline is the series as measured, the same figures the metrics report.
	res.BeforeVolatility = formulas.AnnualizedVolatility(series.Returns())
	res.AfterVolatility = s.estimator.Estimate(model, res.BeforeVolatility, before, after)
	res.BeforeMaxDrawdown = formulas.MaxDrawdown(series.Values())
	res.AfterMaxDrawdown = formulas.MaxDrawdown(Replay(series, after))
	res.BeforeConcentration = concentration(series.Symbols, before)
	res.AfterConcentration = concentration(series.Symbols, after)
	res.RiskBefore = model.Contributions(before)
	res.RiskAfter = model.Contributions(after)

	s.log.Debug().
		Str("portfolio_id", series.PortfolioID).
		Str("symbol", symbol).
		Str("action", string(action)).
		Float64("before_vol", res.BeforeVolatility).
		Float64("after_vol", res.AfterVolatility).
		Msg("Simulated scenario")

	return res, nil
}

// Reweight scales the target's weight by factor and rescales every other
// weight proportionally so the total returns to 1.0.
func Reweight(weights map[string]float64, symbol string, factor float64) (map[string]float64, error) {
	current, held := weights[symbol]
	if !held || current <= 0 {
		return nil, &domain.ValidationError{Field: "symbol", Reason: fmt.Sprintf("%s is not held", symbol)}
	}

	target := current * factor
	if target > 1+1e-12 {
		return nil, &domain.ValidationError{Field: "action", Reason: fmt.Sprintf("%s would exceed 100%% of the portfolio (%.4f)", symbol, target)}
	}

	others := 1 - current
	remaining := 1 - target
	if others <= 1e-12 {
		return nil, &domain.ValidationError{Field: "symbol", Reason: fmt.Sprintf("%s is the only holding; nothing to rebalance into", symbol)}
	}

	out := make(map[string]float64, len(weights))
	for sym, w := range weights {
		if sym == symbol {
			out[sym] = target
			continue
		}
		out[sym] = w * remaining / others
	}
	return out, nil
}

// Replay is the buy-and-hold value path from the series start with the
// given starting weights.
func Replay(series *nav.Series, weights map[string]float64) []float64 {
	values := make([]float64, series.Len())
	for i := range values {
		var v float64
		for _, symbol := range series.Symbols {
			p := series.Prices[symbol]
			v += weights[symbol] * p[i] / p[0]
		}
		values[i] = v
	}
	return values
}

func concentration(symbols []string, weights map[string]float64) Concentration {
	var c Concentration
	ws := make([]float64, 0, len(symbols))
	for _, symbol := range symbols {
		w := weights[symbol]
		ws = append(ws, w)
		if w > c.MaxWeight {
			c.MaxWeight = w
			c.MaxWeightSymbol = symbol
		}
	}
	c.Herfindahl = formulas.HerfindahlIndex(ws)
	return c
}
