/**
 * Package di provides dependency injection type definitions.
 *
 * The Container holds every long-lived dependency of the server. It is built
 * once by Wire and handed to the HTTP server and the scheduler.
 */
package di

import (
	"github.com/aristath/folio/internal/database"
	"github.com/aristath/folio/internal/modules/analytics"
	"github.com/aristath/folio/internal/modules/nav"
	"github.com/aristath/folio/internal/modules/portfolio"
	"github.com/aristath/folio/internal/modules/prices"
	"github.com/aristath/folio/internal/reliability"
	"github.com/aristath/folio/internal/reports"
	"github.com/aristath/folio/internal/scheduler"
)

// Container holds all application dependencies
type Container struct {
	// Databases
	PortfolioDB *database.DB // portfolio definitions and versions (ledger profile)
	HistoryDB   *database.DB // daily bars and sector tags

	// Repositories
	PortfolioRepo *portfolio.Repository
	PriceStore    *prices.HistoryDB

	// Services
	PortfolioService *portfolio.Service
	NAVBuilder       *nav.Builder
	WorkerPool       *analytics.WorkerPool
	AnalyticsService *analytics.Service

	// ReportExporter and BackupService are nil when no report bucket is configured
	ReportExporter *reports.Exporter
	BackupService  *reliability.BackupService
}

// JobInstances holds the scheduled jobs so the API can trigger them manually
type JobInstances struct {
	AnalyticsSweep *scheduler.AnalyticsSweepJob
	WALCheckpoint  *scheduler.WALCheckpointJob
	Maintenance    *reliability.MaintenanceJob
	Backup         *reliability.BackupJob // nil without a report bucket
}

// Databases returns the open databases in a stable order
func (c *Container) Databases() []*database.DB {
	var dbs []*database.DB
	for _, db := range []*database.DB{c.PortfolioDB, c.HistoryDB} {
		if db != nil {
			dbs = append(dbs, db)
		}
	}
	return dbs
}

// Close closes every open database
func (c *Container) Close() {
	for _, db := range c.Databases() {
		db.Close()
	}
}
