package nav

import (
	"time"

	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/pkg/formulas"
)

// Series is a NAV sequence together with the aligned prices it was built from.
type Series struct {
	PortfolioID string
	Version     int
	Mode        domain.AllocationMode
	Points      []domain.NAVPoint
	// Symbols included in the NAV, in version order
	Symbols []string
	// Holdings is each included symbol's weight or quantity as entered
	Holdings map[string]float64
	// Prices holds one price per point for each included symbol
	Prices   map[string][]float64
	Excluded []string
	Warnings []domain.Warning
}

// Len returns the number of points.
func (s *Series) Len() int {
	return len(s.Points)
}

// Values returns the NAV values in date order.
func (s *Series) Values() []float64 {
	values := make([]float64, len(s.Points))
	for i, p := range s.Points {
		values[i] = p.Value
	}
	return values
}

// Dates returns the point dates in order.
func (s *Series) Dates() []time.Time {
	dates := make([]time.Time, len(s.Points))
	for i, p := range s.Points {
		dates[i] = p.Date
	}
	return dates
}

// Returns are the daily simple returns of the NAV; the first day has none.
func (s *Series) Returns() []float64 {
	return formulas.CalculateReturns(s.Values())
}

// AssetReturns are the daily simple returns of one included symbol.
func (s *Series) AssetReturns(symbol string) []float64 {
	return formulas.CalculateReturns(s.Prices[symbol])
}

// Weights returns each included symbol's share of portfolio value at index i.
// With buy-and-hold the shares drift with relative prices.
func (s *Series) Weights(i int) map[string]float64 {
	values := make(map[string]float64, len(s.Symbols))
	var total float64
	for _, symbol := range s.Symbols {
		p := s.Prices[symbol]
		var v float64
		if s.Mode == domain.AllocationQuantity {
			v = s.Holdings[symbol] * p[i]
		} else {
			v = s.Holdings[symbol] * p[i] / p[0]
		}
		values[symbol] = v
		total += v
	}

	if total > 0 {
		for symbol, v := range values {
			values[symbol] = v / total
		}
	}
	return values
}

// IndexRange returns the first and last point indexes inside [from, to].
// Zero bounds are open. ok is false when no point falls inside.
func (s *Series) IndexRange(from, to time.Time) (int, int, bool) {
	first, last := -1, -1
	for i, p := range s.Points {
		if !from.IsZero() && p.Date.Before(from) {
			continue
		}
		if !to.IsZero() && p.Date.After(to) {
			break
		}
		if first < 0 {
			first = i
		}
		last = i
	}
	return first, last, first >= 0
}

// Start is the date of the first point.
func (s *Series) Start() time.Time {
	if len(s.Points) == 0 {
		return time.Time{}
	}
	return s.Points[0].Date
}

// End is the date of the last point.
func (s *Series) End() time.Time {
	if len(s.Points) == 0 {
		return time.Time{}
	}
	return s.Points[len(s.Points)-1].Date
}
