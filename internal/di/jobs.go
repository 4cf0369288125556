// Package di provides dependency injection for scheduler jobs.
package di

import (
	"fmt"

	"github.com/aristath/folio/internal/reliability"
	"github.com/aristath/folio/internal/scheduler"
	"github.com/rs/zerolog"
)

// RegisterJobs creates the job instances. Scheduling them is left to the
// caller so the API can also trigger them on demand.
func RegisterJobs(container *Container, log zerolog.Logger) (*JobInstances, error) {
	if container == nil || container.AnalyticsService == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}

	// A nil *Exporter must not reach the job as a non-nil interface.
	var exporter scheduler.ReportExporter
	if container.ReportExporter != nil {
		exporter = container.ReportExporter
	}

	instances := &JobInstances{
		AnalyticsSweep: scheduler.NewAnalyticsSweepJob(container.AnalyticsService, exporter, log),
		WALCheckpoint:  scheduler.NewWALCheckpointJob(log, container.Databases()...),
		Maintenance:    reliability.NewMaintenanceJob(log, container.Databases()...),
	}
	if container.BackupService != nil {
		instances.Backup = reliability.NewBackupJob(container.BackupService, log)
	}

	log.Info().Msg("Jobs registered")
	return instances, nil
}
