package nav

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/pkg/formulas"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePrices serves bars from memory with the same range semantics as the store.
type fakePrices struct {
	bars map[string][]domain.PriceBar
	err  error
}

func (f *fakePrices) GetBars(ctx context.Context, symbol string, from, to time.Time) ([]domain.PriceBar, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.PriceBar
	for _, b := range f.bars[symbol] {
		if b.Date.Before(from) || b.Date.After(to) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func closes(startDay int, prices ...float64) []domain.PriceBar {
	bars := make([]domain.PriceBar, len(prices))
	for i, p := range prices {
		bars[i] = domain.PriceBar{Date: day(startDay + i), Close: p}
	}
	return bars
}

func weightVersion(positions ...domain.Position) domain.PortfolioVersion {
	return domain.PortfolioVersion{
		PortfolioID: "p1",
		Version:     1,
		EffectiveAt: day(1),
		Mode:        domain.AllocationWeight,
		Positions:   positions,
	}
}

func TestBuild_WeightMode(t *testing.T) {
	src := &fakePrices{bars: map[string][]domain.PriceBar{
		"A": closes(1, 10, 11, 12),
		"B": closes(1, 20, 20, 18),
	}}
	b := NewBuilder(src, 100, 0.01, zerolog.Nop())

	s, err := b.Build(context.Background(), weightVersion(
		domain.Position{Symbol: "A", Value: 0.5},
		domain.Position{Symbol: "B", Value: 0.5},
	), day(31))
	require.NoError(t, err)

	require.Equal(t, 3, s.Len())
	assert.InDelta(t, 100.0, s.Points[0].Value, 1e-9)
	assert.InDelta(t, 105.0, s.Points[1].Value, 1e-9)
	assert.InDelta(t, 100*(0.5*1.2+0.5*0.9), s.Points[2].Value, 1e-9)
	assert.Empty(t, s.Warnings)
	assert.Equal(t, []string{"A", "B"}, s.Symbols)
}

func TestBuild_QuantityMode(t *testing.T) {
	src := &fakePrices{bars: map[string][]domain.PriceBar{
		"A": closes(1, 10, 11),
		"B": closes(1, 20, 19),
	}}
	b := NewBuilder(src, 100, 0.01, zerolog.Nop())

	v := weightVersion(domain.Position{Symbol: "A", Value: 3}, domain.Position{Symbol: "B", Value: 2})
	v.Mode = domain.AllocationQuantity

	s, err := b.Build(context.Background(), v, day(31))
	require.NoError(t, err)
	assert.Equal(t, []float64{70, 71}, s.Values())
}

func TestBuild_StartsWhenEverySymbolHasData(t *testing.T) {
	src := &fakePrices{bars: map[string][]domain.PriceBar{
		"A": closes(1, 10, 10, 10, 10, 10, 11, 12),
		"B": closes(5, 50, 55, 60),
	}}
	b := NewBuilder(src, 100, 0.01, zerolog.Nop())

	s, err := b.Build(context.Background(), weightVersion(
		domain.Position{Symbol: "A", Value: 0.5},
		domain.Position{Symbol: "B", Value: 0.5},
	), day(31))
	require.NoError(t, err)

	assert.Equal(t, day(5), s.Start(), "series must not start before the late symbol's first bar")
	assert.InDelta(t, 100.0, s.Points[0].Value, 1e-9)
	for _, r := range s.Returns() {
		assert.Less(t, r, 0.2, "no partial-data artifact return")
	}
}

func TestBuild_ExcludesSymbolWithoutData(t *testing.T) {
	src := &fakePrices{bars: map[string][]domain.PriceBar{
		"A": closes(1, 10, 11),
	}}
	b := NewBuilder(src, 100, 0.01, zerolog.Nop())

	s, err := b.Build(context.Background(), weightVersion(
		domain.Position{Symbol: "A", Value: 0.6},
		domain.Position{Symbol: "GONE", Value: 0.4},
	), day(31))
	require.NoError(t, err)

	assert.Equal(t, []string{"GONE"}, s.Excluded)
	require.Len(t, s.Warnings, 2)
	assert.Equal(t, domain.WarnDataUnavailable, s.Warnings[0].Code)
	assert.Equal(t, []string{"GONE"}, s.Warnings[0].Symbols)
	assert.Equal(t, domain.WarnWeightSumDrift, s.Warnings[1].Code)
	// NAV rescales over the included weight so NAV(t0) stays at base
	assert.InDelta(t, 100.0, s.Points[0].Value, 1e-9)
	assert.InDelta(t, 110.0, s.Points[1].Value, 1e-9)
}

func TestBuild_WeightSumDrift(t *testing.T) {
	src := &fakePrices{bars: map[string][]domain.PriceBar{
		"A": closes(1, 10, 12),
		"B": closes(1, 20, 20),
	}}

	tests := []struct {
		name      string
		a, b      float64
		tolerance float64
		wantDrift bool
	}{
		{"sums to one", 0.6, 0.4, 0.01, false},
		{"within tolerance", 0.6, 0.395, 0.01, false},
		{"under-allocated", 0.6, 0.3, 0.01, true},
		{"over-allocated", 0.7, 0.4, 0.01, true},
		{"zero tolerance", 0.6, 0.399, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder(src, 100, tt.tolerance, zerolog.Nop())
			s, err := b.Build(context.Background(), weightVersion(
				domain.Position{Symbol: "A", Value: tt.a},
				domain.Position{Symbol: "B", Value: tt.b},
			), day(31))
			require.NoError(t, err)

			if !tt.wantDrift {
				assert.Empty(t, s.Warnings)
				return
			}
			require.Len(t, s.Warnings, 1)
			assert.Equal(t, domain.WarnWeightSumDrift, s.Warnings[0].Code)
			assert.Equal(t, []string{"A", "B"}, s.Warnings[0].Symbols)
			assert.Contains(t, s.Warnings[0].Message, fmt.Sprintf("%.4f", tt.a+tt.b))
			assert.InDelta(t, 100.0, s.Points[0].Value, 1e-9)
		})
	}
}

func TestBuild_QuantityModeNeverWarnsDrift(t *testing.T) {
	src := &fakePrices{bars: map[string][]domain.PriceBar{
		"A": closes(1, 10, 11),
	}}
	b := NewBuilder(src, 100, 0.01, zerolog.Nop())

	v := weightVersion(domain.Position{Symbol: "A", Value: 25})
	v.Mode = domain.AllocationQuantity

	s, err := b.Build(context.Background(), v, day(31))
	require.NoError(t, err)
	assert.Empty(t, s.Warnings)
}

func TestBuild_AllSymbolsMissing(t *testing.T) {
	b := NewBuilder(&fakePrices{}, 100, 0.01, zerolog.Nop())

	_, err := b.Build(context.Background(), weightVersion(domain.Position{Symbol: "A", Value: 1}), day(31))
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)
}

func TestBuild_PriceSourceError(t *testing.T) {
	boom := errors.New("db down")
	b := NewBuilder(&fakePrices{err: boom}, 100, 0.01, zerolog.Nop())

	_, err := b.Build(context.Background(), weightVersion(domain.Position{Symbol: "A", Value: 1}), day(31))
	assert.ErrorIs(t, err, boom)
}

func TestBuild_EndBeforeEffective(t *testing.T) {
	b := NewBuilder(&fakePrices{}, 100, 0.01, zerolog.Nop())
	v := weightVersion(domain.Position{Symbol: "A", Value: 1})
	v.EffectiveAt = day(10)

	_, err := b.Build(context.Background(), v, day(2))
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)
}

func TestBuild_ForwardFillsGaps(t *testing.T) {
	src := &fakePrices{bars: map[string][]domain.PriceBar{
		"A": closes(1, 10, 11, 12),
		"B": {{Date: day(1), Close: 20}, {Date: day(3), Close: 22}},
	}}
	b := NewBuilder(src, 100, 0.01, zerolog.Nop())

	s, err := b.Build(context.Background(), weightVersion(
		domain.Position{Symbol: "A", Value: 0.5},
		domain.Position{Symbol: "B", Value: 0.5},
	), day(31))
	require.NoError(t, err)

	assert.Equal(t, []float64{20, 20, 22}, s.Prices["B"])
	require.Len(t, s.Warnings, 1)
	assert.Equal(t, domain.WarnForwardFilled, s.Warnings[0].Code)
	assert.Equal(t, []string{"B"}, s.Warnings[0].Symbols)
}

func TestBuild_UsesAdjustedClose(t *testing.T) {
	src := &fakePrices{bars: map[string][]domain.PriceBar{
		"A": {
			{Date: day(1), Close: 100, AdjustedClose: 50},
			{Date: day(2), Close: 110, AdjustedClose: 55},
		},
	}}
	b := NewBuilder(src, 100, 0.01, zerolog.Nop())

	s, err := b.Build(context.Background(), weightVersion(domain.Position{Symbol: "A", Value: 1}), day(31))
	require.NoError(t, err)
	assert.Equal(t, []float64{50, 55}, s.Prices["A"])
}

func TestBuild_SkipsZeroPositions(t *testing.T) {
	src := &fakePrices{bars: map[string][]domain.PriceBar{
		"A": closes(3, 10, 11),
		"Z": closes(1, 1, 1, 1, 1),
	}}
	b := NewBuilder(src, 100, 0.01, zerolog.Nop())

	s, err := b.Build(context.Background(), weightVersion(
		domain.Position{Symbol: "A", Value: 1},
		domain.Position{Symbol: "Z", Value: 0},
	), day(31))
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, s.Symbols)
	assert.Empty(t, s.Excluded)
}

func TestBuild_DrawdownNeverPositive(t *testing.T) {
	src := &fakePrices{bars: map[string][]domain.PriceBar{
		"A": closes(1, 10, 12, 9, 11, 8, 13),
		"B": closes(1, 5, 5.5, 5.2, 4.9, 5.1, 5.3),
	}}
	b := NewBuilder(src, 100, 0.01, zerolog.Nop())

	s, err := b.Build(context.Background(), weightVersion(
		domain.Position{Symbol: "A", Value: 0.7},
		domain.Position{Symbol: "B", Value: 0.3},
	), day(31))
	require.NoError(t, err)

	assert.Greater(t, s.Points[0].Value, 0.0)
	assert.LessOrEqual(t, formulas.MaxDrawdown(s.Values()), 0.0)
}
