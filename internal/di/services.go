// Package di provides dependency injection for service implementations.
package di

import (
	"context"
	"fmt"

	"github.com/aristath/folio/internal/config"
	"github.com/aristath/folio/internal/modules/analytics"
	"github.com/aristath/folio/internal/modules/attribution"
	"github.com/aristath/folio/internal/modules/concentration"
	"github.com/aristath/folio/internal/modules/metrics"
	"github.com/aristath/folio/internal/modules/nav"
	"github.com/aristath/folio/internal/modules/portfolio"
	"github.com/aristath/folio/internal/modules/scenario"
	"github.com/aristath/folio/internal/modules/scoring"
	"github.com/aristath/folio/internal/modules/scoring/scorers"
	"github.com/aristath/folio/internal/reliability"
	"github.com/aristath/folio/internal/reports"
	"github.com/rs/zerolog"
)

// InitializeServices creates the portfolio service, the analytics
// calculators and the optional report exporter
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil || container.PortfolioRepo == nil || container.PriceStore == nil {
		return fmt.Errorf("repositories must be initialized first")
	}
	a := cfg.Analytics

	container.PortfolioService = portfolio.NewService(container.PortfolioRepo, a.WeightSumTolerance, log)
	container.NAVBuilder = nav.NewBuilder(container.PriceStore, a.BaseNAV, a.WeightSumTolerance, log)

	estimator, err := scenario.NewEstimator(a.ScenarioEstimator)
	if err != nil {
		return fmt.Errorf("failed to create scenario estimator: %w", err)
	}

	aggregator, err := scoring.NewAggregator(scoring.WeightsFrom(a.HealthWeights), log)
	if err != nil {
		return fmt.Errorf("failed to create health aggregator: %w", err)
	}

	components := analytics.Components{
		Builder:     container.NAVBuilder,
		Metrics:     metrics.NewCalculator(a.RiskFreeRate, log),
		Attribution: attribution.NewCalculator(log),
		Detector: concentration.NewDetector(concentration.Thresholds{
			SectorOverlap: a.SectorOverlapThreshold,
			PositionSize:  a.PositionSizeThreshold,
		}, log),
		Simulator:       scenario.NewSimulator(estimator, log),
		Aggregator:      aggregator,
		PriceTrend:      scorers.NewPriceTrendScorer(),
		PortfolioImpact: scorers.NewPortfolioImpactScorer(a.PositionSizeThreshold),
	}

	container.WorkerPool = analytics.NewWorkerPool(a.BatchWorkers)
	container.AnalyticsService = analytics.NewService(
		container.PortfolioService,
		container.PriceStore,
		container.PriceStore,
		components,
		container.WorkerPool,
		a.AttributionWindow,
		log,
	)

	if cfg.Reports.Enabled() {
		sink, err := reports.NewS3Sink(ctx, reports.S3Config{
			Bucket:    cfg.Reports.Bucket,
			Region:    cfg.Reports.Region,
			Endpoint:  cfg.Reports.Endpoint,
			AccessKey: cfg.Reports.AccessKey,
			SecretKey: cfg.Reports.SecretKey,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to create report sink: %w", err)
		}
		container.ReportExporter = reports.NewExporter(sink, cfg.Reports.Prefix, log)
		container.BackupService = reliability.NewBackupService(container.Databases(), sink, cfg.Reports.Prefix, cfg.DataDir, log)
	}

	log.Info().
		Str("estimator", estimator.Name()).
		Int("batch_workers", container.WorkerPool.Size()).
		Bool("report_export", container.ReportExporter != nil).
		Msg("Services initialized")
	return nil
}
