package domain

// WarningCode categorizes non-fatal conditions surfaced with a result.
type WarningCode string

const (
	WarnDataUnavailable WarningCode = "data_unavailable"  // symbol excluded, no price history
	WarnWeightSumDrift  WarningCode = "weight_sum_drift"  // weights do not sum to 1.0 within tolerance
	WarnForwardFilled   WarningCode = "forward_filled"    // missing bars filled with the prior price
	WarnShortWindow     WarningCode = "short_window"      // too few observations for stable statistics
	WarnSubScoreClamped WarningCode = "sub_score_clamped" // health sub-score outside [0,25]
	WarnUndefinedMetric WarningCode = "undefined_metric"  // a statistic was not computable
)

// Warning represents a non-fatal issue encountered during computation.
type Warning struct {
	Code    WarningCode `json:"code"`
	Message string      `json:"message"`
	Symbols []string    `json:"symbols,omitempty"`
}
