// Package attribution decomposes a portfolio's return over a window into
// per-holding contributions and classifies what drove it.
package attribution

import (
	"fmt"
	"math"
	"sort"

	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/modules/nav"
	"github.com/rs/zerolog"
)

// Reconciliation tolerance between Σ contribution and the window's return
const (
	reconcileRelTolerance = 1e-6
	reconcileAbsTolerance = 1e-9
)

// Record is one holding's share of the window return.
type Record struct {
	Symbol string `json:"symbol"`
	// AvgWeight is the average capital weight over the window. With no flows
	// inside a version it equals the value weight at the window start.
	AvgWeight      float64 `json:"avg_weight"`
	EndWeight      float64 `json:"end_weight"`
	AssetReturn    float64 `json:"asset_return"`
	Contribution   float64 `json:"contribution"`    // fraction, sums to TotalReturn
	ContributionPP float64 `json:"contribution_pp"` // percentage points
}

// Result is the attribution of one window.
type Result struct {
	PortfolioID   string           `json:"portfolio_id"`
	Version       int              `json:"version"`
	Window        string           `json:"window"` // always states preset and actual dates
	Preset        string           `json:"preset"`
	Start         string           `json:"start"`
	End           string           `json:"end"`
	Sessions      int              `json:"sessions"`
	TotalReturn   float64          `json:"total_return"`
	TotalReturnPP float64          `json:"total_return_pp"`
	Records       []Record         `json:"records"`
	KeyDriver     KeyDriver        `json:"key_driver"`
	Narrative     string           `json:"narrative"`
	Excluded      []string         `json:"excluded,omitempty"`
	Warnings      []domain.Warning `json:"warnings,omitempty"`
}

// Calculator computes windowed attribution from a NAV series.
type Calculator struct {
	log zerolog.Logger
}

// NewCalculator creates an attribution calculator
func NewCalculator(log zerolog.Logger) *Calculator {
	return &Calculator{
		log: log.With().Str("component", "attribution_calculator").Logger(),
	}
}

// Calculate attributes the series' time-weighted return over r to its holdings.
//
// Fails with domain.ErrUndefinedMetric when r holds fewer than two points and
// with domain.ErrReconciliationDrift if the contributions do not sum to the
// window's return.
func (c *Calculator) Calculate(s *nav.Series, r nav.Range) (*Result, error) {
	if r.Last-r.First < 1 {
		return nil, fmt.Errorf("%w: attribution window %s has fewer than two NAV points", domain.ErrUndefinedMetric, r.Label)
	}

	startNAV := s.Points[r.First].Value
	endNAV := s.Points[r.Last].Value
	if startNAV <= 0 {
		return nil, fmt.Errorf("%w: NAV at window start is %v", domain.ErrUndefinedMetric, startNAV)
	}
	total := endNAV/startNAV - 1

	startWeights := s.Weights(r.First)
	endWeights := s.Weights(r.Last)

	records := make([]Record, 0, len(s.Symbols))
	var sum float64
	for _, symbol := range s.Symbols {
		prices := s.Prices[symbol]
		assetReturn := prices[r.Last]/prices[r.First] - 1
		contribution := startWeights[symbol] * assetReturn
		sum += contribution

		records = append(records, Record{
			Symbol:         symbol,
			AvgWeight:      startWeights[symbol],
			EndWeight:      endWeights[symbol],
			AssetReturn:    assetReturn,
			Contribution:   contribution,
			ContributionPP: contribution * 100,
		})
	}

	if drift := math.Abs(sum - total); drift > math.Max(reconcileRelTolerance*math.Abs(total), reconcileAbsTolerance) {
		c.log.Error().
			Str("portfolio_id", s.PortfolioID).
			Str("window", r.Label).
			Float64("sum", sum).
			Float64("total_return", total).
			Msg("Attribution does not reconcile")
		return nil, fmt.Errorf("%w: contributions sum to %.10f, window return is %.10f", domain.ErrReconciliationDrift, sum, total)
	}

	sort.SliceStable(records, func(i, j int) bool {
		ai, aj := math.Abs(records[i].Contribution), math.Abs(records[j].Contribution)
		if ai != aj {
			return ai > aj
		}
		return records[i].Symbol < records[j].Symbol
	})

	driver := ClassifyDrivers(records, total)

	res := &Result{
		PortfolioID:   s.PortfolioID,
		Version:       s.Version,
		Window:        r.Label,
		Preset:        r.Preset,
		Start:         domain.FormatDate(r.Start),
		End:           domain.FormatDate(r.End),
		Sessions:      r.Sessions,
		TotalReturn:   total,
		TotalReturnPP: total * 100,
		Records:       records,
		KeyDriver:     driver,
		Narrative:     Narrate(r.Label, total, driver),
		Excluded:      s.Excluded,
		Warnings:      s.Warnings,
	}

	c.log.Debug().
		Str("portfolio_id", s.PortfolioID).
		Str("window", r.Label).
		Str("classification", string(driver.Classification)).
		Float64("total_return", total).
		Msg("Calculated attribution")

	return res, nil
}
