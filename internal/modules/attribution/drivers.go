package attribution

import (
	"math"
	"sort"
)

// Classification names the shape of an attribution.
type Classification string

const (
	// SingleDominantDriver: the top contributor exceeds |total|, so the rest
	// of the portfolio netted to the opposite direction.
	SingleDominantDriver Classification = "single_dominant_driver"
	// BroadBasedDecline: every holding contributed negatively.
	BroadBasedDecline Classification = "broad_based_decline"
	// NormalMixed: anything else.
	NormalMixed Classification = "normal_mixed"
)

// classifyEpsilon absorbs float noise when the top contributor is the whole return.
const classifyEpsilon = 1e-12

// KeyDriver is the outcome of the key-driver decision rule.
type KeyDriver struct {
	Classification Classification `json:"classification"`
	// Highlighted is the most positive contributor (the least negative one
	// in a broad decline).
	Highlighted  Record   `json:"highlighted"`
	TopPositive  []Record `json:"top_positive"`
	TopNegative  []Record `json:"top_negative"`
	Combined     float64  `json:"combined_contribution"`
	CombinedPP   float64  `json:"combined_contribution_pp"`
	RestCombined float64  `json:"rest_contribution"` // everything except Highlighted
}

// ClassifyDrivers applies the key-driver rule to records and total return.
// Branches test the sign of the highlighted contribution itself, never a
// ratio against total, so the narrative always agrees with the numbers.
func ClassifyDrivers(records []Record, total float64) KeyDriver {
	var kd KeyDriver
	if len(records) == 0 {
		kd.Classification = NormalMixed
		return kd
	}

	byContribution := make([]Record, len(records))
	copy(byContribution, records)
	sort.SliceStable(byContribution, func(i, j int) bool {
		return byContribution[i].Contribution > byContribution[j].Contribution
	})

	top := byContribution[0]
	kd.Highlighted = top
	for _, r := range byContribution[1:] {
		kd.RestCombined += r.Contribution
	}

	for _, r := range byContribution {
		if r.Contribution > 0 && len(kd.TopPositive) < 2 {
			kd.TopPositive = append(kd.TopPositive, r)
		}
	}
	for i := len(byContribution) - 1; i >= 0; i-- {
		if r := byContribution[i]; r.Contribution < 0 && len(kd.TopNegative) < 2 {
			kd.TopNegative = append(kd.TopNegative, r)
		}
	}

	switch {
	case top.Contribution > math.Abs(total)+classifyEpsilon:
		kd.Classification = SingleDominantDriver
		kd.Combined = top.Contribution
	case top.Contribution < 0:
		kd.Classification = BroadBasedDecline
		kd.Combined = top.Contribution
	default:
		kd.Classification = NormalMixed
		for _, r := range kd.TopPositive {
			kd.Combined += r.Contribution
		}
		for _, r := range kd.TopNegative {
			kd.Combined += r.Contribution
		}
	}
	kd.CombinedPP = kd.Combined * 100

	return kd
}
