// Package nav builds daily net asset value series for portfolio versions.
package nav

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/aristath/folio/internal/domain"
	"github.com/rs/zerolog"
)

// Builder combines a version's positions with stored daily bars.
type Builder struct {
	prices    domain.PriceSource
	baseNAV   float64
	tolerance float64
	log       zerolog.Logger
}

// NewBuilder creates a NAV builder. baseNAV is NAV(t0) for weight-mode versions;
// tolerance is the allowed |Σw - 1| of the included weights before a drift warning.
func NewBuilder(prices domain.PriceSource, baseNAV, tolerance float64, log zerolog.Logger) *Builder {
	return &Builder{
		prices:    prices,
		baseNAV:   baseNAV,
		tolerance: tolerance,
		log:       log.With().Str("component", "nav_builder").Logger(),
	}
}

// weightDrift reports included weights that no longer sum to 1.0, either as
// entered or after exclusions. NAV is then scaled by the included weight.
func (b *Builder) weightDrift(s *Series) *domain.Warning {
	if s.Mode == domain.AllocationQuantity {
		return nil
	}
	var sum float64
	for _, symbol := range s.Symbols {
		sum += s.Holdings[symbol]
	}
	if math.Abs(sum-1) <= b.tolerance {
		return nil
	}
	return &domain.Warning{
		Code:    domain.WarnWeightSumDrift,
		Message: fmt.Sprintf("included weights sum to %.4f; NAV is scaled by the included weight", sum),
		Symbols: append([]string(nil), s.Symbols...),
	}
}

// Build produces the NAV series of version v from its effective date through end.
//
// The series starts on the first date every included symbol has a bar, so a
// late-listed symbol never manufactures a return against a partial basket.
// Symbols with no bars at all are excluded with a warning; if every symbol is
// excluded the build fails with domain.ErrDataUnavailable.
func (b *Builder) Build(ctx context.Context, v domain.PortfolioVersion, end time.Time) (*Series, error) {
	if end.IsZero() {
		end = time.Now()
	}
	end = domain.NormalizeDate(end)
	effective := domain.NormalizeDate(v.EffectiveAt)
	if end.Before(effective) {
		return nil, fmt.Errorf("%w: end %s is before the version's effective date %s",
			domain.ErrDataUnavailable, domain.FormatDate(end), domain.FormatDate(effective))
	}

	series := &Series{
		PortfolioID: v.PortfolioID,
		Version:     v.Version,
		Mode:        v.Mode,
		Holdings:    make(map[string]float64),
		Prices:      make(map[string][]float64),
	}

	history := make(map[string][]domain.PriceBar)
	for _, pos := range v.Positions {
		if pos.Value == 0 {
			continue
		}

		bars, err := b.prices.GetBars(ctx, pos.Symbol, effective, end)
		if err != nil {
			return nil, fmt.Errorf("failed to load bars for %s: %w", pos.Symbol, err)
		}
		bars = usable(bars)

		if len(bars) == 0 {
			b.log.Warn().
				Str("portfolio_id", v.PortfolioID).
				Str("symbol", pos.Symbol).
				Msg("No price history in window, excluding symbol from NAV")
			series.Excluded = append(series.Excluded, pos.Symbol)
			continue
		}

		history[pos.Symbol] = bars
		series.Symbols = append(series.Symbols, pos.Symbol)
		series.Holdings[pos.Symbol] = pos.Value
	}

	if len(series.Excluded) > 0 {
		series.Warnings = append(series.Warnings, domain.Warning{
			Code:    domain.WarnDataUnavailable,
			Message: fmt.Sprintf("no price history between %s and %s; excluded from NAV", domain.FormatDate(effective), domain.FormatDate(end)),
			Symbols: series.Excluded,
		})
	}
	if len(series.Symbols) == 0 {
		return nil, fmt.Errorf("%w: no symbol in portfolio %s v%d has price history", domain.ErrDataUnavailable, v.PortfolioID, v.Version)
	}
	if w := b.weightDrift(series); w != nil {
		b.log.Warn().
			Str("portfolio_id", v.PortfolioID).
			Int("version", v.Version).
			Msg(w.Message)
		series.Warnings = append(series.Warnings, *w)
	}

	dates := commonDates(history)
	if len(dates) == 0 {
		return nil, fmt.Errorf("%w: symbols of portfolio %s v%d share no priced date", domain.ErrDataUnavailable, v.PortfolioID, v.Version)
	}

	var filled []string
	for _, symbol := range series.Symbols {
		aligned, gaps := align(history[symbol], dates)
		series.Prices[symbol] = aligned
		if gaps > 0 {
			filled = append(filled, symbol)
		}
	}
	if len(filled) > 0 {
		series.Warnings = append(series.Warnings, domain.Warning{
			Code:    domain.WarnForwardFilled,
			Message: "missing daily bars were filled with the previous close",
			Symbols: filled,
		})
	}

	series.Points = make([]domain.NAVPoint, len(dates))
	for i, d := range dates {
		series.Points[i] = domain.NAVPoint{Date: d, Value: b.value(series, i)}
	}

	b.log.Debug().
		Str("portfolio_id", v.PortfolioID).
		Int("version", v.Version).
		Int("points", len(series.Points)).
		Int("excluded", len(series.Excluded)).
		Msg("Built NAV series")

	return series, nil
}

func (b *Builder) value(s *Series, i int) float64 {
	switch s.Mode {
	case domain.AllocationQuantity:
		var total float64
		for _, symbol := range s.Symbols {
			total += s.Holdings[symbol] * s.Prices[symbol][i]
		}
		return total
	default:
		var weighted, included float64
		for _, symbol := range s.Symbols {
			p := s.Prices[symbol]
			weighted += s.Holdings[symbol] * p[i] / p[0]
			included += s.Holdings[symbol]
		}
		return b.baseNAV * weighted / included
	}
}

// usable drops bars without a positive price.
func usable(bars []domain.PriceBar) []domain.PriceBar {
	out := bars[:0:0]
	for _, bar := range bars {
		if bar.Price() > 0 {
			bar.Date = domain.NormalizeDate(bar.Date)
			out = append(out, bar)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// commonDates returns the union of bar dates on or after the first date all
// symbols have a bar.
func commonDates(history map[string][]domain.PriceBar) []time.Time {
	var start time.Time
	for _, bars := range history {
		if first := bars[0].Date; first.After(start) {
			start = first
		}
	}

	seen := make(map[time.Time]bool)
	var dates []time.Time
	for _, bars := range history {
		for _, bar := range bars {
			if bar.Date.Before(start) || seen[bar.Date] {
				continue
			}
			seen[bar.Date] = true
			dates = append(dates, bar.Date)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// align maps bars onto dates, carrying the last price forward over gaps.
// Every date must be on or after the first bar.
func align(bars []domain.PriceBar, dates []time.Time) ([]float64, int) {
	out := make([]float64, len(dates))
	gaps := 0
	j := 0
	last := bars[0].Price()
	for i, d := range dates {
		for j < len(bars) && !bars[j].Date.After(d) {
			last = bars[j].Price()
			j++
		}
		if j == 0 || !bars[j-1].Date.Equal(d) {
			gaps++
		}
		out[i] = last
	}
	return out, gaps
}

// String renders the series range for logs.
func (s *Series) String() string {
	if len(s.Points) == 0 {
		return "empty"
	}
	return fmt.Sprintf("%s..%s (%d points, %s)",
		domain.FormatDate(s.Points[0].Date), domain.FormatDate(s.Points[len(s.Points)-1].Date),
		len(s.Points), strings.Join(s.Symbols, ","))
}
