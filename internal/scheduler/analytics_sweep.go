package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/folio/internal/modules/analytics"
	"github.com/rs/zerolog"
)

// BatchRunner computes reports for many portfolios
type BatchRunner interface {
	RunBatch(ctx context.Context, ids []string) (*analytics.BatchReport, error)
}

// ReportExporter stores a finished batch report
type ReportExporter interface {
	Export(ctx context.Context, report interface{}, at time.Time) (string, error)
}

// AnalyticsSweepJob recomputes every portfolio's report, logs the alerts and
// optionally exports the batch.
type AnalyticsSweepJob struct {
	runner   BatchRunner
	exporter ReportExporter
	timeout  time.Duration
	log      zerolog.Logger
}

// NewAnalyticsSweepJob creates the sweep job. exporter may be nil.
func NewAnalyticsSweepJob(runner BatchRunner, exporter ReportExporter, log zerolog.Logger) *AnalyticsSweepJob {
	return &AnalyticsSweepJob{
		runner:   runner,
		exporter: exporter,
		timeout:  15 * time.Minute,
		log:      log.With().Str("job", "analytics_sweep").Logger(),
	}
}

// Name returns the job name
func (j *AnalyticsSweepJob) Name() string {
	return "analytics_sweep"
}

// Run executes the sweep
func (j *AnalyticsSweepJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	batch, err := j.runner.RunBatch(ctx, nil)
	if err != nil {
		return fmt.Errorf("analytics sweep failed: %w", err)
	}

	for _, item := range batch.Items {
		if item.Report == nil {
			j.log.Warn().
				Str("portfolio_id", item.PortfolioID).
				Str("error", item.Error).
				Msg("Portfolio skipped")
			continue
		}

		rep := item.Report
		j.log.Info().
			Str("portfolio_id", rep.PortfolioID).
			Int("version", rep.Version).
			Int("alerts", len(rep.Alerts)).
			Strs("undefined", rep.Undefined).
			Int("warnings", len(rep.Warnings)).
			Msg("Portfolio analysed")

		for _, a := range rep.Alerts {
			j.log.Warn().
				Str("portfolio_id", rep.PortfolioID).
				Str("alert_type", string(a.Type)).
				Strs("symbols", a.Symbols).
				Float64("combined_weight", a.CombinedWeight).
				Msg(a.Message)
		}
	}

	j.log.Info().
		Int("succeeded", batch.Succeeded).
		Int("failed", batch.Failed).
		Int("alerts", batch.AlertCount()).
		Msg("Analytics sweep completed")

	if j.exporter == nil {
		return nil
	}
	if _, err := j.exporter.Export(ctx, batch, batch.GeneratedAt); err != nil {
		return fmt.Errorf("analytics sweep export failed: %w", err)
	}
	return nil
}
