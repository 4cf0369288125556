// Package concentration flags sector overlap and oversized positions.
package concentration

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// AlertType identifies the rule that fired.
type AlertType string

const (
	AlertSectorOverlap AlertType = "sector_overlap"
	AlertPositionSize  AlertType = "position_size"
)

// Alert is a single concentration finding. Alerts are recomputed per request.
type Alert struct {
	Type           AlertType `json:"alert_type"`
	Message        string    `json:"message"`
	Symbols        []string  `json:"symbols"`
	Sector         string    `json:"sector,omitempty"`
	CombinedWeight float64   `json:"combined_weight"`
	Threshold      float64   `json:"threshold"`
}

// Thresholds are the policy limits, expressed as portfolio weight fractions.
type Thresholds struct {
	SectorOverlap float64
	PositionSize  float64
}

// Detector evaluates the concentration rules.
type Detector struct {
	thresholds Thresholds
	log        zerolog.Logger
}

// NewDetector creates a detector with the given limits
func NewDetector(thresholds Thresholds, log zerolog.Logger) *Detector {
	return &Detector{
		thresholds: thresholds,
		log:        log.With().Str("component", "concentration_detector").Logger(),
	}
}

// Thresholds returns the configured limits.
func (d *Detector) Thresholds() Thresholds {
	return d.thresholds
}

// Detect returns sector alerts by combined weight, then position alerts by
// weight, both largest first. Holdings without a sector are never grouped.
func (d *Detector) Detect(weights map[string]float64, sectors map[string]string) []Alert {
	alerts := append(d.sectorOverlap(weights, sectors), d.positionSize(weights)...)

	if len(alerts) > 0 {
		d.log.Debug().Int("alerts", len(alerts)).Msg("Concentration alerts raised")
	}
	return alerts
}

func (d *Detector) sectorOverlap(weights map[string]float64, sectors map[string]string) []Alert {
	// tags group case-insensitively
	groups := make(map[string][]string)
	for symbol, w := range weights {
		key := strings.ToLower(strings.TrimSpace(sectors[symbol]))
		if key == "" || w <= 0 {
			continue
		}
		groups[key] = append(groups[key], symbol)
	}

	var alerts []Alert
	for _, symbols := range groups {
		if len(symbols) < 2 {
			continue
		}
		var combined float64
		for _, symbol := range symbols {
			combined += weights[symbol]
		}
		if combined <= d.thresholds.SectorOverlap {
			continue
		}

		// heaviest first so the message reads in order of exposure
		sort.Slice(symbols, func(i, j int) bool {
			if weights[symbols[i]] != weights[symbols[j]] {
				return weights[symbols[i]] > weights[symbols[j]]
			}
			return symbols[i] < symbols[j]
		})
		// reported under the heaviest holding's tag as written
		sector := strings.TrimSpace(sectors[symbols[0]])
		alerts = append(alerts, Alert{
			Type:   AlertSectorOverlap,
			Sector: sector,
			Message: fmt.Sprintf("%d holdings in %s (%s) make up %.1f%% of the portfolio, above the %.0f%% limit",
				len(symbols), sector, strings.Join(symbols, ", "), combined*100, d.thresholds.SectorOverlap*100),
			Symbols:        symbols,
			CombinedWeight: combined,
			Threshold:      d.thresholds.SectorOverlap,
		})
	}

	sort.Slice(alerts, func(i, j int) bool {
		if alerts[i].CombinedWeight != alerts[j].CombinedWeight {
			return alerts[i].CombinedWeight > alerts[j].CombinedWeight
		}
		return alerts[i].Sector < alerts[j].Sector
	})
	return alerts
}

func (d *Detector) positionSize(weights map[string]float64) []Alert {
	var alerts []Alert
	for symbol, w := range weights {
		if w <= d.thresholds.PositionSize {
			continue
		}
		alerts = append(alerts, Alert{
			Type: AlertPositionSize,
			Message: fmt.Sprintf("%s is %.1f%% of the portfolio, above the %.0f%% single-position limit",
				symbol, w*100, d.thresholds.PositionSize*100),
			Symbols:        []string{symbol},
			CombinedWeight: w,
			Threshold:      d.thresholds.PositionSize,
		})
	}

	sort.Slice(alerts, func(i, j int) bool {
		if alerts[i].CombinedWeight != alerts[j].CombinedWeight {
			return alerts[i].CombinedWeight > alerts[j].CombinedWeight
		}
		return alerts[i].Symbols[0] < alerts[j].Symbols[0]
	})
	return alerts
}
