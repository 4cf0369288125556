package nav

import (
	"testing"
	"time"

	"github.com/aristath/folio/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dailySeries has one point per calendar day from start for n days.
func dailySeries(start time.Time, n int) *Series {
	s := &Series{}
	for i := 0; i < n; i++ {
		s.Points = append(s.Points, domain.NAVPoint{Date: start.AddDate(0, 0, i), Value: 100 + float64(i)})
	}
	return s
}

func TestParseWindow(t *testing.T) {
	tests := []struct {
		name    string
		preset  string
		from    string
		to      string
		want    string
		wantErr bool
	}{
		{"default", "", "", "", Window90D, false},
		{"lowercase preset", "ytd", "", "", WindowYTD, false},
		{"explicit dates", "30D", "2024-01-01", "2024-02-01", WindowCustom, false},
		{"from only", "", "2024-01-01", "", WindowCustom, false},
		{"unknown", "2W", "", "", "", true},
		{"bad date", "", "2024/01/01", "", "", true},
		{"inverted", "", "2024-02-01", "2024-01-01", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := ParseWindow(tt.preset, tt.from, tt.to, "90D")
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, w.Preset)
		})
	}
}

func TestResolve_Presets(t *testing.T) {
	// 2023-06-01 .. 2024-05-30
	s := dailySeries(time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC), 365)
	end := s.End()

	tests := []struct {
		preset    string
		wantStart time.Time
	}{
		{Window30D, end.AddDate(0, 0, -30)},
		{Window90D, end.AddDate(0, 0, -90)},
		{WindowYTD, time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)},
		{Window1Y, s.Start()}, // clamped: series is shorter than a year
		{WindowAll, s.Start()},
	}
	for _, tt := range tests {
		t.Run(tt.preset, func(t *testing.T) {
			r, err := s.Resolve(Window{Preset: tt.preset})
			require.NoError(t, err)
			assert.Equal(t, tt.wantStart, r.Start)
			assert.Equal(t, end, r.End)
			assert.Equal(t, r.Last-r.First, r.Sessions)
			assert.Contains(t, r.Label, tt.preset+": "+domain.FormatDate(r.Start))
			assert.Contains(t, r.Label, domain.FormatDate(end))
		})
	}
}

func TestResolve_Custom(t *testing.T) {
	s := dailySeries(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 10)

	r, err := s.Resolve(Window{Preset: WindowCustom, From: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), To: time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	assert.Equal(t, 2, r.First)
	assert.Equal(t, 5, r.Last)
	assert.Equal(t, 3, r.Sessions)
	assert.Len(t, s.Slice(r), 4)
	assert.Equal(t, "CUSTOM: 2024-01-03 → 2024-01-06 (3 sessions)", r.Label)

	_, err = s.Resolve(Window{Preset: WindowCustom, To: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)})
	assert.ErrorIs(t, err, domain.ErrUndefinedMetric)

	_, err = (&Series{}).Resolve(Window{Preset: WindowAll})
	assert.ErrorIs(t, err, domain.ErrUndefinedMetric)
}
