// Package domain provides core domain models and types.
package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// DateFormat is the ISO-8601 day format used on every boundary.
const DateFormat = "2006-01-02"

// AllocationMode says how a version's position values are read.
// It is fixed per portfolio and never mixed within a version.
type AllocationMode string

const (
	// AllocationWeight positions hold fractions in [0,1] summing to ~1.0
	AllocationWeight AllocationMode = "weight"
	// AllocationQuantity positions hold non-negative share counts
	AllocationQuantity AllocationMode = "quantity"
)

// ParseAllocationMode validates an allocation_type value.
func ParseAllocationMode(s string) (AllocationMode, error) {
	switch AllocationMode(strings.ToLower(strings.TrimSpace(s))) {
	case AllocationWeight:
		return AllocationWeight, nil
	case AllocationQuantity:
		return AllocationQuantity, nil
	}
	return "", &ValidationError{Field: "allocation_type", Reason: fmt.Sprintf("unknown allocation type %q", s)}
}

// Position is a symbol and its weight or share quantity.
type Position struct {
	Symbol string  `json:"symbol" msgpack:"symbol"`
	Value  float64 `json:"value" msgpack:"value"`
}

// PortfolioVersion is an immutable snapshot of a portfolio's positions.
type PortfolioVersion struct {
	PortfolioID string         `json:"portfolio_id"`
	Version     int            `json:"version"`
	EffectiveAt time.Time      `json:"effective_at"`
	Mode        AllocationMode `json:"allocation_type"`
	Positions   []Position     `json:"positions"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Symbols returns the position symbols in version order.
func (v PortfolioVersion) Symbols() []string {
	symbols := make([]string, len(v.Positions))
	for i, p := range v.Positions {
		symbols[i] = p.Symbol
	}
	return symbols
}

// ValueSum is Σ value across positions (the weight sum in weight mode).
func (v PortfolioVersion) ValueSum() float64 {
	var sum float64
	for _, p := range v.Positions {
		sum += p.Value
	}
	return sum
}

// Portfolio owns an append-only list of versions.
type Portfolio struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	BaseCurrency string             `json:"base_currency"`
	Mode         AllocationMode     `json:"allocation_type"`
	CreatedAt    time.Time          `json:"created_at"`
	Versions     []PortfolioVersion `json:"versions,omitempty"`
}

// Latest returns the version with the highest effective date; ties go to the
// higher version number.
func (p *Portfolio) Latest() (PortfolioVersion, bool) {
	if len(p.Versions) == 0 {
		return PortfolioVersion{}, false
	}
	latest := p.Versions[0]
	for _, v := range p.Versions[1:] {
		if v.EffectiveAt.After(latest.EffectiveAt) ||
			(v.EffectiveAt.Equal(latest.EffectiveAt) && v.Version > latest.Version) {
			latest = v
		}
	}
	return latest, true
}

// Version looks up a version by number.
func (p *Portfolio) Version(n int) (PortfolioVersion, bool) {
	for _, v := range p.Versions {
		if v.Version == n {
			return v, true
		}
	}
	return PortfolioVersion{}, false
}

// SortVersions orders versions by version number.
func (p *Portfolio) SortVersions() {
	sort.Slice(p.Versions, func(i, j int) bool {
		return p.Versions[i].Version < p.Versions[j].Version
	})
}

// PriceBar is one symbol's daily bar as supplied by the price provider.
type PriceBar struct {
	Date          time.Time `json:"date"`
	Open          float64   `json:"open"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Close         float64   `json:"close"`
	AdjustedClose float64   `json:"adjusted_close"`
	Volume        int64     `json:"volume"`
}

// Price is the adjusted close when the provider supplied one, else the close.
func (b PriceBar) Price() float64 {
	if b.AdjustedClose > 0 {
		return b.AdjustedClose
	}
	return b.Close
}

// NAVPoint is a derived net asset value for one day.
type NAVPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// NormalizeDate truncates t to midnight UTC of its calendar day.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses an ISO-8601 day.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateFormat, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want %s: %w", s, DateFormat, err)
	}
	return t, nil
}

// FormatDate renders a day as ISO-8601.
func FormatDate(t time.Time) string {
	return t.Format(DateFormat)
}

// NormalizeSymbol trims and upper-cases a ticker.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
