// Package analytics composes the NAV builder and the calculators into the
// per-portfolio operations served over HTTP and run by the nightly sweep.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/modules/attribution"
	"github.com/aristath/folio/internal/modules/concentration"
	"github.com/aristath/folio/internal/modules/metrics"
	"github.com/aristath/folio/internal/modules/nav"
	"github.com/aristath/folio/internal/modules/scenario"
	"github.com/aristath/folio/internal/modules/scoring"
	"github.com/aristath/folio/internal/modules/scoring/scorers"
	"github.com/aristath/folio/internal/utils"
	"github.com/rs/zerolog"
)

// NAVBuilder builds the NAV series of one portfolio version.
type NAVBuilder interface {
	Build(ctx context.Context, v domain.PortfolioVersion, end time.Time) (*nav.Series, error)
}

// Components are the calculators the service delegates to.
type Components struct {
	Builder         NAVBuilder
	Metrics         *metrics.Calculator
	Attribution     *attribution.Calculator
	Detector        *concentration.Detector
	Simulator       *scenario.Simulator
	Aggregator      *scoring.Aggregator
	PriceTrend      *scorers.PriceTrendScorer
	PortfolioImpact *scorers.PortfolioImpactScorer
}

// Service answers analytics questions about stored portfolios. It never
// writes: every result is recomputed from the stores on each call.
type Service struct {
	portfolios    domain.PortfolioReader
	prices        domain.PriceSource
	sectors       domain.SectorSource
	c             Components
	pool          *WorkerPool
	defaultWindow string
	now           func() time.Time
	log           zerolog.Logger
}

// NewService creates the analytics service
func NewService(
	portfolios domain.PortfolioReader,
	prices domain.PriceSource,
	sectors domain.SectorSource,
	c Components,
	pool *WorkerPool,
	defaultWindow string,
	log zerolog.Logger,
) *Service {
	return &Service{
		portfolios:    portfolios,
		prices:        prices,
		sectors:       sectors,
		c:             c,
		pool:          pool,
		defaultWindow: defaultWindow,
		now:           time.Now,
		log:           log.With().Str("service", "analytics").Logger(),
	}
}

// DefaultWindow is the attribution window used when a request names none.
func (s *Service) DefaultWindow() string {
	return s.defaultWindow
}

// NAVPoint is a NAV value keyed by calendar date.
type NAVPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// NAVResult is the NAV series of one version.
type NAVResult struct {
	PortfolioID    string           `json:"portfolio_id"`
	Version        int              `json:"version"`
	AllocationType string           `json:"allocation_type"`
	Start          string           `json:"start"`
	End            string           `json:"end"`
	Symbols        []string         `json:"symbols"`
	Excluded       []string         `json:"excluded,omitempty"`
	Points         []NAVPoint       `json:"points"`
	Warnings       []domain.Warning `json:"warnings,omitempty"`
}

// MetricsReport is a metrics result tagged with the version it describes.
type MetricsReport struct {
	PortfolioID string   `json:"portfolio_id"`
	Version     int      `json:"version"`
	Excluded    []string `json:"excluded,omitempty"`
	*metrics.Result
}

// AlertsReport lists the concentration alerts for the current weights.
type AlertsReport struct {
	PortfolioID string                `json:"portfolio_id"`
	Version     int                   `json:"version"`
	AsOf        string                `json:"as_of"`
	Weights     map[string]float64    `json:"weights"`
	Sectors     map[string]string     `json:"sectors"`
	Alerts      []concentration.Alert `json:"alerts"`
	Warnings    []domain.Warning      `json:"warnings,omitempty"`
}

// HealthInput carries the caller-supplied sub-scores. Nil sub-scores are
// computed from stored prices and the portfolio's risk model.
type HealthInput struct {
	Fundamentals    float64  `json:"fundamentals"`
	Sentiment       float64  `json:"sentiment"`
	PriceTrend      *float64 `json:"price_trend,omitempty"`
	PortfolioImpact *float64 `json:"portfolio_impact,omitempty"`
}

// Report bundles metrics, attribution and alerts for one portfolio.
type Report struct {
	PortfolioID string                `json:"portfolio_id"`
	Name        string                `json:"name"`
	Version     int                   `json:"version"`
	AsOf        string                `json:"as_of"`
	Metrics     *MetricsReport        `json:"metrics"`
	Attribution *attribution.Result   `json:"attribution"`
	Alerts      []concentration.Alert `json:"alerts"`
	Undefined   []string              `json:"undefined,omitempty"`
	Warnings    []domain.Warning      `json:"warnings,omitempty"`
}

type loaded struct {
	portfolio *domain.Portfolio
	series    *nav.Series
}

// load builds the series for version n, or for the newest version already
// effective at asOf when n is 0.
func (s *Service) load(ctx context.Context, id string, n int, asOf time.Time) (*loaded, error) {
	p, err := s.portfolios.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if asOf.IsZero() {
		asOf = s.now()
	}
	asOf = domain.NormalizeDate(asOf)

	var v domain.PortfolioVersion
	if n > 0 {
		var ok bool
		if v, ok = p.Version(n); !ok {
			return nil, fmt.Errorf("%w: portfolio %s has no version %d", domain.ErrNotFound, id, n)
		}
	} else {
		var ok bool
		if v, ok = effectiveVersion(p, asOf); !ok {
			return nil, &domain.ValidationError{
				Field:  "as_of",
				Reason: fmt.Sprintf("portfolio %s has no version effective on %s", id, domain.FormatDate(asOf)),
			}
		}
	}

	series, err := s.c.Builder.Build(ctx, v, asOf)
	if err != nil {
		return nil, err
	}
	return &loaded{portfolio: p, series: series}, nil
}

// effectiveVersion is the latest version whose effective date is not after asOf.
func effectiveVersion(p *domain.Portfolio, asOf time.Time) (domain.PortfolioVersion, bool) {
	var best domain.PortfolioVersion
	found := false
	for _, v := range p.Versions {
		if v.EffectiveAt.After(asOf) {
			continue
		}
		if !found || v.EffectiveAt.After(best.EffectiveAt) ||
			(v.EffectiveAt.Equal(best.EffectiveAt) && v.Version > best.Version) {
			best = v
			found = true
		}
	}
	return best, found
}

// NAV returns the NAV series for a version (0 selects the one effective at asOf).
func (s *Service) NAV(ctx context.Context, id string, version int, asOf time.Time) (*NAVResult, error) {
	l, err := s.load(ctx, id, version, asOf)
	if err != nil {
		return nil, err
	}

	series := l.series
	res := &NAVResult{
		PortfolioID:    id,
		Version:        series.Version,
		AllocationType: string(series.Mode),
		Start:          domain.FormatDate(series.Start()),
		End:            domain.FormatDate(series.End()),
		Symbols:        series.Symbols,
		Excluded:       series.Excluded,
		Points:         make([]NAVPoint, 0, series.Len()),
		Warnings:       series.Warnings,
	}
	for _, p := range series.Points {
		res.Points = append(res.Points, NAVPoint{Date: domain.FormatDate(p.Date), Value: p.Value})
	}
	return res, nil
}

// Metrics computes performance statistics over a window of the current version.
func (s *Service) Metrics(ctx context.Context, id string, w nav.Window) (*MetricsReport, error) {
	l, err := s.load(ctx, id, 0, w.To)
	if err != nil {
		return nil, err
	}
	return s.metrics(l.series, w)
}

func (s *Service) metrics(series *nav.Series, w nav.Window) (*MetricsReport, error) {
	r, err := series.Resolve(w)
	if err != nil {
		return nil, err
	}
	res, err := s.c.Metrics.Calculate(series.Slice(r), r.Label)
	if err != nil {
		return nil, err
	}
	res.Warnings = append(append([]domain.Warning(nil), series.Warnings...), res.Warnings...)

	return &MetricsReport{
		PortfolioID: series.PortfolioID,
		Version:     series.Version,
		Excluded:    series.Excluded,
		Result:      res,
	}, nil
}

// Attribution decomposes the window's return into per-holding contributions.
func (s *Service) Attribution(ctx context.Context, id string, w nav.Window) (*attribution.Result, error) {
	l, err := s.load(ctx, id, 0, w.To)
	if err != nil {
		return nil, err
	}
	return s.attribution(l.series, w)
}

func (s *Service) attribution(series *nav.Series, w nav.Window) (*attribution.Result, error) {
	r, err := series.Resolve(w)
	if err != nil {
		return nil, err
	}
	return s.c.Attribution.Calculate(series, r)
}

// Alerts evaluates the concentration rules on the current value weights.
func (s *Service) Alerts(ctx context.Context, id string, asOf time.Time) (*AlertsReport, error) {
	l, err := s.load(ctx, id, 0, asOf)
	if err != nil {
		return nil, err
	}
	return s.alerts(ctx, l.series)
}

func (s *Service) alerts(ctx context.Context, series *nav.Series) (*AlertsReport, error) {
	sectors, err := s.sectors.GetSectors(ctx, series.Symbols)
	if err != nil {
		return nil, fmt.Errorf("failed to load sectors: %w", err)
	}

	weights := series.Weights(series.Len() - 1)
	alerts := s.c.Detector.Detect(weights, sectors)
	if alerts == nil {
		alerts = []concentration.Alert{}
	}

	return &AlertsReport{
		PortfolioID: series.PortfolioID,
		Version:     series.Version,
		AsOf:        domain.FormatDate(series.End()),
		Weights:     weights,
		Sectors:     sectors,
		Alerts:      alerts,
		Warnings:    series.Warnings,
	}, nil
}

// Scenario simulates action on symbol against the current version's history.
func (s *Service) Scenario(ctx context.Context, id, symbol, action string) (*scenario.Result, error) {
	a, err := scenario.ParseAction(action)
	if err != nil {
		return nil, err
	}
	if domain.NormalizeSymbol(symbol) == "" {
		return nil, &domain.ValidationError{Field: "symbol", Reason: "required"}
	}

	l, err := s.load(ctx, id, 0, time.Time{})
	if err != nil {
		return nil, err
	}
	return s.c.Simulator.Simulate(l.series, symbol, a)
}

// Health scores one symbol in the context of a portfolio.
func (s *Service) Health(ctx context.Context, id, symbol string, in HealthInput) (*scoring.HealthScore, error) {
	symbol = domain.NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, &domain.ValidationError{Field: "symbol", Reason: "required"}
	}

	var warnings []domain.Warning
	sub := scoring.SubScores{Fundamentals: in.Fundamentals, Sentiment: in.Sentiment}

	if in.PriceTrend != nil {
		sub.PriceTrend = *in.PriceTrend
	} else {
		score, w, err := s.priceTrend(ctx, symbol)
		if err != nil {
			return nil, err
		}
		sub.PriceTrend = score
		warnings = append(warnings, w...)
	}

	if in.PortfolioImpact != nil {
		if _, err := s.portfolios.Get(ctx, id); err != nil {
			return nil, err
		}
		sub.PortfolioImpact = *in.PortfolioImpact
	} else {
		l, err := s.load(ctx, id, 0, time.Time{})
		if err != nil {
			return nil, err
		}
		sub.PortfolioImpact = s.portfolioImpact(l.series, symbol)
	}

	hs := s.c.Aggregator.Aggregate(symbol, sub)
	hs.Warnings = append(warnings, hs.Warnings...)
	return &hs, nil
}

func (s *Service) priceTrend(ctx context.Context, symbol string) (float64, []domain.Warning, error) {
	bars, err := s.prices.GetBars(ctx, symbol, time.Time{}, s.now())
	if err != nil {
		return 0, nil, fmt.Errorf("failed to load bars for %s: %w", symbol, err)
	}

	closes := make([]float64, 0, len(bars))
	for _, b := range bars {
		if p := b.Price(); p > 0 {
			closes = append(closes, p)
		}
	}

	var warnings []domain.Warning
	if len(closes) < scorers.MinBars {
		warnings = append(warnings, domain.Warning{
			Code:    domain.WarnDataUnavailable,
			Message: fmt.Sprintf("%d bars for %s; price trend scored neutral", len(closes), symbol),
			Symbols: []string{symbol},
		})
	}
	return s.c.PriceTrend.Score(closes), warnings, nil
}

// portfolioImpact scores symbol from its current weight and risk share. A
// history too short for a risk model counts risk share equal to weight.
func (s *Service) portfolioImpact(series *nav.Series, symbol string) float64 {
	weights := series.Weights(series.Len() - 1)
	weight := weights[symbol]
	share := weight

	if model, err := scenario.NewRiskModel(series); err == nil {
		for _, rc := range model.Contributions(weights) {
			if rc.Symbol == symbol {
				share = rc.Share
			}
		}
	}
	return s.c.PortfolioImpact.Score(weight, share)
}

// Report computes metrics over the whole version, attribution over the
// default window and the current alerts. Metrics that cannot be computed are
// left nil and named in Undefined.
func (s *Service) Report(ctx context.Context, id string, asOf time.Time) (*Report, error) {
	defer utils.OperationTimer("report", s.log.With().Str("portfolio_id", id).Logger())()

	l, err := s.load(ctx, id, 0, asOf)
	if err != nil {
		return nil, err
	}
	series := l.series

	rep := &Report{
		PortfolioID: id,
		Name:        l.portfolio.Name,
		Version:     series.Version,
		AsOf:        domain.FormatDate(series.End()),
		Warnings:    series.Warnings,
	}

	rep.Metrics, err = s.metrics(series, nav.Window{Preset: nav.WindowAll})
	if err != nil {
		if !errors.Is(err, domain.ErrUndefinedMetric) {
			return nil, err
		}
		rep.Undefined = append(rep.Undefined, "metrics")
	}

	rep.Attribution, err = s.attribution(series, nav.Window{Preset: s.defaultWindow})
	if err != nil {
		if !errors.Is(err, domain.ErrUndefinedMetric) {
			return nil, err
		}
		rep.Undefined = append(rep.Undefined, "attribution")
	}

	alerts, err := s.alerts(ctx, series)
	if err != nil {
		return nil, err
	}
	rep.Alerts = alerts.Alerts

	return rep, nil
}

// BatchItem is one portfolio's outcome in a batch run.
type BatchItem struct {
	PortfolioID string  `json:"portfolio_id"`
	Report      *Report `json:"report,omitempty"`
	Error       string  `json:"error,omitempty"`
}

// BatchReport is the outcome of RunBatch.
type BatchReport struct {
	GeneratedAt time.Time   `json:"generated_at"`
	Succeeded   int         `json:"succeeded"`
	Failed      int         `json:"failed"`
	Items       []BatchItem `json:"items"`
}

// AlertCount totals alerts across successful reports.
func (b *BatchReport) AlertCount() int {
	var n int
	for _, item := range b.Items {
		if item.Report != nil {
			n += len(item.Report.Alerts)
		}
	}
	return n
}

// RunBatch builds reports for ids (all portfolios when empty) on the worker
// pool. A failing portfolio is recorded in its item and does not stop the rest.
func (s *Service) RunBatch(ctx context.Context, ids []string) (*BatchReport, error) {
	if len(ids) == 0 {
		all, err := s.portfolios.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list portfolios: %w", err)
		}
		for _, p := range all {
			ids = append(ids, p.ID)
		}
	}

	timer := utils.NewTimer("analytics_batch", s.log)
	asOf := s.now()

	items := s.pool.Run(ctx, ids, func(ctx context.Context, id string) BatchItem {
		rep, err := s.Report(ctx, id, asOf)
		if err != nil {
			s.log.Warn().Err(err).Str("portfolio_id", id).Msg("Portfolio report failed")
			return BatchItem{PortfolioID: id, Error: err.Error()}
		}
		return BatchItem{PortfolioID: id, Report: rep}
	})

	batch := &BatchReport{GeneratedAt: asOf.UTC(), Items: items}
	for _, item := range items {
		if item.Error != "" {
			batch.Failed++
		} else {
			batch.Succeeded++
		}
	}

	timer.StopWithFields(map[string]interface{}{
		"portfolios": len(ids),
		"failed":     batch.Failed,
		"workers":    s.pool.Size(),
	})
	return batch, nil
}
