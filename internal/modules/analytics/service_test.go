package analytics

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/modules/attribution"
	"github.com/aristath/folio/internal/modules/concentration"
	"github.com/aristath/folio/internal/modules/metrics"
	"github.com/aristath/folio/internal/modules/nav"
	"github.com/aristath/folio/internal/modules/scenario"
	"github.com/aristath/folio/internal/modules/scoring"
	"github.com/aristath/folio/internal/modules/scoring/scorers"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	portfolios []domain.Portfolio
	listErr    error
}

func (f *fakeStore) Get(ctx context.Context, id string) (*domain.Portfolio, error) {
	for i := range f.portfolios {
		if f.portfolios[i].ID == id {
			p := f.portfolios[i]
			return &p, nil
		}
	}
	return nil, fmt.Errorf("%w: portfolio %s", domain.ErrNotFound, id)
}

func (f *fakeStore) List(ctx context.Context) ([]domain.Portfolio, error) {
	return f.portfolios, f.listErr
}

type fakePrices struct {
	bars map[string][]domain.PriceBar
}

func (f *fakePrices) GetBars(ctx context.Context, symbol string, from, to time.Time) ([]domain.PriceBar, error) {
	var out []domain.PriceBar
	for _, b := range f.bars[symbol] {
		if b.Date.Before(from) || b.Date.After(to) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

type fakeSectors map[string]string

func (f fakeSectors) GetSectors(ctx context.Context, symbols []string) (map[string]string, error) {
	out := make(map[string]string)
	for _, s := range symbols {
		if sector, ok := f[s]; ok {
			out[s] = sector
		}
	}
	return out, nil
}

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func series(prices ...float64) []domain.PriceBar {
	bars := make([]domain.PriceBar, len(prices))
	for i, p := range prices {
		bars[i] = domain.PriceBar{Date: day(1 + i), Close: p}
	}
	return bars
}

func flat(price float64, n int) []domain.PriceBar {
	prices := make([]float64, n)
	for i := range prices {
		prices[i] = price
	}
	return series(prices...)
}

func wiggle(base, drift float64, n int) []domain.PriceBar {
	prices := make([]float64, n)
	for i := range prices {
		prices[i] = base + drift*float64(i) + []float64{0, 0.4, -0.3}[i%3]
	}
	return series(prices...)
}

func weightPortfolio(id string, effective time.Time, positions ...domain.Position) domain.Portfolio {
	return domain.Portfolio{
		ID:           id,
		Name:         "Portfolio " + id,
		BaseCurrency: "USD",
		Mode:         domain.AllocationWeight,
		Versions: []domain.PortfolioVersion{{
			PortfolioID: id,
			Version:     1,
			EffectiveAt: effective,
			Mode:        domain.AllocationWeight,
			Positions:   positions,
		}},
	}
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	log := zerolog.Nop()

	store := &fakeStore{portfolios: []domain.Portfolio{
		weightPortfolio("concentrated", day(1),
			domain.Position{Symbol: "AAPL", Value: 0.15},
			domain.Position{Symbol: "MSFT", Value: 0.15},
			domain.Position{Symbol: "NVDA", Value: 0.12},
			domain.Position{Symbol: "XOM", Value: 0.18},
			domain.Position{Symbol: "JNJ", Value: 0.40},
		),
		weightPortfolio("balanced", day(1),
			domain.Position{Symbol: "A", Value: 0.2},
			domain.Position{Symbol: "B", Value: 0.5},
			domain.Position{Symbol: "C", Value: 0.3},
		),
		weightPortfolio("future", day(25), domain.Position{Symbol: "A", Value: 1}),
		weightPortfolio("unpriced", day(1), domain.Position{Symbol: "NOPE", Value: 1}),
	}}

	prices := &fakePrices{bars: map[string][]domain.PriceBar{
		"AAPL": flat(190, 20),
		"MSFT": flat(370, 20),
		"NVDA": flat(480, 20),
		"XOM":  flat(100, 20),
		"JNJ":  flat(160, 20),
		"A":    wiggle(10, 0.3, 20),
		"B":    wiggle(50, -0.2, 20),
		"C":    wiggle(20, 0.05, 20),
	}}
	sectors := fakeSectors{"AAPL": "Technology", "MSFT": "Technology", "NVDA": "Technology", "XOM": "Energy", "JNJ": "Healthcare"}

	aggregator, err := scoring.NewAggregator(scoring.EqualWeights(), log)
	require.NoError(t, err)

	svc := NewService(store, prices, sectors, Components{
		Builder:         nav.NewBuilder(prices, 100, 0.01, log),
		Metrics:         metrics.NewCalculator(0.045, log),
		Attribution:     attribution.NewCalculator(log),
		Detector:        concentration.NewDetector(concentration.Thresholds{SectorOverlap: 0.30, PositionSize: 0.20}, log),
		Simulator:       scenario.NewSimulator(scenario.LinearEstimator{}, log),
		Aggregator:      aggregator,
		PriceTrend:      scorers.NewPriceTrendScorer(),
		PortfolioImpact: scorers.NewPortfolioImpactScorer(0.20),
	}, NewWorkerPool(2), nav.Window90D, log)
	svc.now = func() time.Time { return day(20) }
	return svc
}

func TestAlerts_ConcentratedPortfolio(t *testing.T) {
	svc := newTestService(t)

	res, err := svc.Alerts(context.Background(), "concentrated", time.Time{})
	require.NoError(t, err)

	require.Len(t, res.Alerts, 2)
	assert.Equal(t, concentration.AlertSectorOverlap, res.Alerts[0].Type)
	assert.ElementsMatch(t, []string{"AAPL", "MSFT", "NVDA"}, res.Alerts[0].Symbols)
	assert.InDelta(t, 0.42, res.Alerts[0].CombinedWeight, 1e-9)
	assert.Equal(t, concentration.AlertPositionSize, res.Alerts[1].Type)
	assert.Equal(t, []string{"JNJ"}, res.Alerts[1].Symbols)
	assert.Equal(t, "2024-01-20", res.AsOf)
}

func TestMetrics_WholeSeries(t *testing.T) {
	svc := newTestService(t)

	res, err := svc.Metrics(context.Background(), "balanced", nav.Window{Preset: nav.WindowAll})
	require.NoError(t, err)

	assert.Equal(t, "balanced", res.PortfolioID)
	assert.Equal(t, 1, res.Version)
	assert.Equal(t, 19, res.Observations)
	assert.True(t, res.ShortWindow)
	assert.Greater(t, res.Volatility, 0.0)
	assert.LessOrEqual(t, res.MaxDrawdown, 0.0)
	assert.Contains(t, res.Window, "ALL: 2024-01-01 → 2024-01-20")
}

func TestMetrics_FlatSeriesHasNoSharpe(t *testing.T) {
	svc := newTestService(t)

	res, err := svc.Metrics(context.Background(), "concentrated", nav.Window{Preset: nav.WindowAll})
	require.NoError(t, err)
	assert.Nil(t, res.Sharpe)
	assert.Contains(t, res.Undefined, "sharpe")
	assert.Equal(t, 0.0, res.Return)
}

func TestAttribution_Reconciles(t *testing.T) {
	svc := newTestService(t)

	res, err := svc.Attribution(context.Background(), "balanced", nav.Window{Preset: nav.WindowCustom, From: day(5)})
	require.NoError(t, err)

	var sum float64
	for _, r := range res.Records {
		sum += r.Contribution
	}
	assert.InDelta(t, res.TotalReturn, sum, 1e-6*math.Max(math.Abs(res.TotalReturn), 1e-3))
	assert.Equal(t, "CUSTOM", res.Preset)
	assert.Equal(t, "2024-01-05", res.Start)
	assert.NotEmpty(t, res.Narrative)
}

func TestScenario(t *testing.T) {
	svc := newTestService(t)

	res, err := svc.Scenario(context.Background(), "balanced", "a", "exit")
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.NewWeights["A"])

	var total float64
	for _, w := range res.NewWeights {
		total += w
	}
	assert.InDelta(t, 1.0, total, 1e-12)

	_, err = svc.Scenario(context.Background(), "balanced", "A", "sell_all")
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)

	_, err = svc.Scenario(context.Background(), "balanced", "ZZZ", "trim_25")
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestHealth(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	t.Run("all sub-scores supplied", func(t *testing.T) {
		trend, impact := 10.0, 25.0
		hs, err := svc.Health(ctx, "balanced", "a", HealthInput{Fundamentals: 20, Sentiment: 15, PriceTrend: &trend, PortfolioImpact: &impact})
		require.NoError(t, err)
		assert.Equal(t, "A", hs.Symbol)
		assert.InDelta(t, 70.0, hs.Total, 1e-9)
		assert.Equal(t, 20.0, hs.Fundamentals)
		assert.Equal(t, 10.0, hs.PriceTrend)
		assert.Equal(t, 15.0, hs.Sentiment)
		assert.Equal(t, 25.0, hs.PortfolioImpact)
	})

	t.Run("price trend neutral without history", func(t *testing.T) {
		impact := 25.0
		hs, err := svc.Health(ctx, "balanced", "ZZZ", HealthInput{Fundamentals: 25, Sentiment: 25, PortfolioImpact: &impact})
		require.NoError(t, err)
		assert.Equal(t, 12.5, hs.PriceTrend)
		require.NotEmpty(t, hs.Warnings)
		assert.Equal(t, domain.WarnDataUnavailable, hs.Warnings[0].Code)
	})

	t.Run("portfolio impact computed", func(t *testing.T) {
		trend := 12.5
		hs, err := svc.Health(ctx, "balanced", "B", HealthInput{PriceTrend: &trend})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, hs.PortfolioImpact, 0.0)
		assert.LessOrEqual(t, hs.PortfolioImpact, 25.0)
	})

	t.Run("unknown portfolio", func(t *testing.T) {
		impact := 1.0
		_, err := svc.Health(ctx, "missing", "A", HealthInput{PriceTrend: &impact, PortfolioImpact: &impact})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestNAV(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	res, err := svc.NAV(ctx, "balanced", 0, day(10))
	require.NoError(t, err)
	require.Len(t, res.Points, 10)
	assert.Equal(t, "2024-01-01", res.Points[0].Date)
	assert.InDelta(t, 100.0, res.Points[0].Value, 1e-9)
	assert.Equal(t, "weight", res.AllocationType)

	_, err = svc.NAV(ctx, "balanced", 7, time.Time{})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.NAV(ctx, "future", 0, time.Time{})
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)

	_, err = svc.NAV(ctx, "unpriced", 0, time.Time{})
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)
}

func TestEffectiveVersion(t *testing.T) {
	p := &domain.Portfolio{Versions: []domain.PortfolioVersion{
		{Version: 1, EffectiveAt: day(1)},
		{Version: 2, EffectiveAt: day(10)},
		{Version: 3, EffectiveAt: day(10)},
		{Version: 4, EffectiveAt: day(20)},
	}}

	tests := []struct {
		asOf time.Time
		want int
		ok   bool
	}{
		{day(1), 1, true},
		{day(15), 3, true},
		{day(25), 4, true},
		{time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), 0, false},
	}
	for _, tt := range tests {
		v, ok := effectiveVersion(p, tt.asOf)
		assert.Equal(t, tt.ok, ok)
		assert.Equal(t, tt.want, v.Version)
	}
}

func TestReport(t *testing.T) {
	svc := newTestService(t)

	rep, err := svc.Report(context.Background(), "concentrated", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "Portfolio concentrated", rep.Name)
	require.NotNil(t, rep.Metrics)
	require.NotNil(t, rep.Attribution)
	assert.Equal(t, "90D", rep.Attribution.Preset)
	assert.Len(t, rep.Alerts, 2)
	assert.Empty(t, rep.Undefined)
}

func TestRunBatch(t *testing.T) {
	svc := newTestService(t)

	t.Run("named portfolios keep input order", func(t *testing.T) {
		batch, err := svc.RunBatch(context.Background(), []string{"balanced", "missing", "concentrated", "unpriced"})
		require.NoError(t, err)

		require.Len(t, batch.Items, 4)
		assert.Equal(t, "balanced", batch.Items[0].PortfolioID)
		assert.NotNil(t, batch.Items[0].Report)
		assert.Equal(t, "missing", batch.Items[1].PortfolioID)
		assert.Nil(t, batch.Items[1].Report)
		assert.Contains(t, batch.Items[1].Error, "not found")
		assert.Equal(t, "concentrated", batch.Items[2].PortfolioID)
		assert.NotEmpty(t, batch.Items[3].Error)

		assert.Equal(t, 2, batch.Succeeded)
		assert.Equal(t, 2, batch.Failed)
		assert.Equal(t, len(batch.Items[0].Report.Alerts)+len(batch.Items[2].Report.Alerts), batch.AlertCount())
	})

	t.Run("empty list means every portfolio", func(t *testing.T) {
		batch, err := svc.RunBatch(context.Background(), nil)
		require.NoError(t, err)
		assert.Len(t, batch.Items, 4)
	})

	t.Run("list failure", func(t *testing.T) {
		svc.portfolios = &fakeStore{listErr: errors.New("disk gone")}
		_, err := svc.RunBatch(context.Background(), nil)
		assert.Error(t, err)
	})
}

func TestWorkerPool(t *testing.T) {
	assert.Equal(t, 4, NewWorkerPool(0).Size())
	assert.Equal(t, 3, NewWorkerPool(3).Size())
	assert.Empty(t, NewWorkerPool(2).Run(context.Background(), nil, nil))

	ids := []string{"a", "b", "c", "d", "e", "f", "g"}
	items := NewWorkerPool(3).Run(context.Background(), ids, func(ctx context.Context, id string) BatchItem {
		return BatchItem{PortfolioID: id}
	})
	for i, item := range items {
		assert.Equal(t, ids[i], item.PortfolioID)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var calls int32
	items = NewWorkerPool(2).Run(ctx, []string{"x", "y"}, func(ctx context.Context, id string) BatchItem {
		atomic.AddInt32(&calls, 1)
		return BatchItem{}
	})
	assert.Zero(t, atomic.LoadInt32(&calls))
	for i, item := range items {
		assert.Equal(t, []string{"x", "y"}[i], item.PortfolioID)
		assert.Equal(t, context.Canceled.Error(), item.Error)
	}
}
