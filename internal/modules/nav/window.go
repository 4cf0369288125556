package nav

import (
	"fmt"
	"strings"
	"time"

	"github.com/aristath/folio/internal/domain"
)

// Window presets
const (
	Window30D    = "30D"
	Window90D    = "90D"
	WindowYTD    = "YTD"
	Window1Y     = "1Y"
	WindowAll    = "ALL"
	WindowCustom = "CUSTOM"
)

// Window selects a span of a series, either by preset or by explicit dates.
type Window struct {
	Preset string
	From   time.Time
	To     time.Time
}

// ParseWindow builds a window from request parameters. Explicit dates take
// precedence over the preset; an empty preset falls back to defaultPreset.
func ParseWindow(preset, from, to, defaultPreset string) (Window, error) {
	var w Window
	var err error

	if strings.TrimSpace(from) != "" {
		if w.From, err = domain.ParseDate(from); err != nil {
			return Window{}, &domain.ValidationError{Field: "from", Reason: err.Error()}
		}
	}
	if strings.TrimSpace(to) != "" {
		if w.To, err = domain.ParseDate(to); err != nil {
			return Window{}, &domain.ValidationError{Field: "to", Reason: err.Error()}
		}
	}
	if !w.From.IsZero() && !w.To.IsZero() && w.To.Before(w.From) {
		return Window{}, &domain.ValidationError{Field: "to", Reason: "must not be before from"}
	}
	if !w.From.IsZero() || !w.To.IsZero() {
		w.Preset = WindowCustom
		return w, nil
	}

	p := strings.ToUpper(strings.TrimSpace(preset))
	if p == "" {
		p = strings.ToUpper(defaultPreset)
	}
	switch p {
	case Window30D, Window90D, WindowYTD, Window1Y, WindowAll:
		w.Preset = p
		return w, nil
	}
	return Window{}, &domain.ValidationError{Field: "window", Reason: fmt.Sprintf("unknown window %q (30D, 90D, YTD, 1Y, ALL)", preset)}
}

// Range is a window resolved against a concrete series.
type Range struct {
	Preset   string    `json:"preset"`
	First    int       `json:"-"`
	Last     int       `json:"-"`
	Start    time.Time `json:"-"`
	End      time.Time `json:"-"`
	Sessions int       `json:"sessions"` // daily returns inside the range
	Label    string    `json:"label"`
}

// Resolve clamps w to the series. Trailing windows are anchored on the last
// close on or before the cutoff, so "30D" compares today with the close 30
// calendar days earlier. A cutoff before the series start clamps to the first point.
func (s *Series) Resolve(w Window) (Range, error) {
	if len(s.Points) == 0 {
		return Range{}, fmt.Errorf("%w: empty NAV series", domain.ErrUndefinedMetric)
	}

	last := len(s.Points) - 1
	if !w.To.IsZero() {
		_, l, ok := s.IndexRange(time.Time{}, w.To)
		if !ok {
			return Range{}, fmt.Errorf("%w: window ends %s, before the series starts %s",
				domain.ErrUndefinedMetric, domain.FormatDate(w.To), domain.FormatDate(s.Start()))
		}
		last = l
	}
	end := s.Points[last].Date

	var cutoff time.Time
	switch w.Preset {
	case Window30D:
		cutoff = end.AddDate(0, 0, -30)
	case Window90D:
		cutoff = end.AddDate(0, 0, -90)
	case Window1Y:
		cutoff = end.AddDate(-1, 0, 0)
	case WindowYTD:
		cutoff = time.Date(end.Year()-1, 12, 31, 0, 0, 0, 0, time.UTC)
	case WindowCustom:
		cutoff = w.From
	}

	first := 0
	if !cutoff.IsZero() {
		for i := 0; i <= last; i++ {
			if s.Points[i].Date.After(cutoff) {
				break
			}
			first = i
		}
	}

	preset := w.Preset
	if preset == "" {
		preset = WindowAll
	}

	r := Range{
		Preset:   preset,
		First:    first,
		Last:     last,
		Start:    s.Points[first].Date,
		End:      end,
		Sessions: last - first,
	}
	r.Label = fmt.Sprintf("%s: %s → %s (%d sessions)", preset, domain.FormatDate(r.Start), domain.FormatDate(r.End), r.Sessions)
	return r, nil
}

// Slice returns the NAV points inside r.
func (s *Series) Slice(r Range) []domain.NAVPoint {
	return s.Points[r.First : r.Last+1]
}
