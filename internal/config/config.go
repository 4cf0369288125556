// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aristath/folio/internal/utils"
	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for all databases (always absolute)
	LogLevel string
	Port     int
	DevMode  bool
	// LogPretty enables zerolog's console writer
	LogPretty bool

	Analytics AnalyticsConfig
	Sweep     SweepConfig
	Reports   ReportsConfig
}

// AnalyticsConfig holds the policy constants used by the analytics engine
type AnalyticsConfig struct {
	RiskFreeRate           float64 // annualized, e.g. 0.045
	BaseNAV                float64 // NAV(t0) for weight-mode portfolios
	WeightSumTolerance     float64 // allowed |Σw - 1| before a drift warning
	SectorOverlapThreshold float64
	PositionSizeThreshold  float64
	HealthWeights          [4]float64 // fundamentals, price trend, sentiment, portfolio impact
	ScenarioEstimator      string     // "linear" or "covariance"
	AttributionWindow      string     // default window preset
	BatchWorkers           int
}

// SweepConfig controls the scheduled analytics sweep
type SweepConfig struct {
	Schedule            string // cron expression with seconds; empty disables the sweep
	MaintenanceSchedule string // integrity check + VACUUM; empty disables
}

// ReportsConfig holds the S3-compatible export target. Export is off when Bucket is empty.
type ReportsConfig struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string // custom endpoint for R2 / MinIO
	AccessKey string
	SecretKey string
	// BackupSchedule uploads database snapshots next to the reports; empty disables
	BackupSchedule string
}

// Enabled reports whether sweep results should be uploaded
func (r ReportsConfig) Enabled() bool {
	return r.Bucket != ""
}

var validWindows = map[string]bool{"30D": true, "90D": true, "YTD": true, "1Y": true, "ALL": true}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("FOLIO_DATA_DIR", "./data")

	// Always resolve to absolute path
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	healthWeights, err := parseHealthWeights(getEnv("HEALTH_WEIGHTS", "0.25,0.25,0.25,0.25"))
	if err != nil {
		return nil, err
	}

	sweepSchedule, set := os.LookupEnv("SWEEP_SCHEDULE")
	if !set {
		// Weekdays after the US close
		sweepSchedule = "0 30 22 * * MON-FRI"
	}

	cfg := &Config{
		DataDir:   absDataDir,
		Port:      getEnvAsInt("GO_PORT", 8001),
		DevMode:   getEnvAsBool("DEV_MODE", false),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPretty: getEnvAsBool("LOG_PRETTY", true),
		Analytics: AnalyticsConfig{
			RiskFreeRate:           getEnvAsFloat("RISK_FREE_RATE", 0.045),
			BaseNAV:                getEnvAsFloat("BASE_NAV", 100),
			WeightSumTolerance:     getEnvAsFloat("WEIGHT_SUM_TOLERANCE", 0.01),
			SectorOverlapThreshold: getEnvAsFloat("SECTOR_OVERLAP_THRESHOLD", 0.30),
			PositionSizeThreshold:  getEnvAsFloat("POSITION_SIZE_THRESHOLD", 0.20),
			HealthWeights:          healthWeights,
			ScenarioEstimator:      strings.ToLower(getEnv("SCENARIO_ESTIMATOR", "linear")),
			AttributionWindow:      strings.ToUpper(getEnv("ATTRIBUTION_WINDOW", "90D")),
			BatchWorkers:           getEnvAsInt("BATCH_WORKERS", 4),
		},
		Sweep: SweepConfig{
			Schedule:            sweepSchedule,
			MaintenanceSchedule: getEnv("MAINTENANCE_SCHEDULE", "0 0 4 * * SUN"),
		},
		Reports: ReportsConfig{
			Bucket:         getEnv("REPORT_BUCKET", ""),
			Prefix:         getEnv("REPORT_PREFIX", "folio/reports"),
			Region:         getEnv("REPORT_REGION", "us-east-1"),
			Endpoint:       getEnv("REPORT_ENDPOINT", ""),
			AccessKey:      getEnv("REPORT_ACCESS_KEY", ""),
			SecretKey:      getEnv("REPORT_SECRET_KEY", ""),
			BackupSchedule: getEnv("BACKUP_SCHEDULE", "0 0 3 * * *"),
		},
	}
	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	a := c.Analytics

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid GO_PORT %d", c.Port)
	}
	if a.BaseNAV <= 0 {
		return fmt.Errorf("BASE_NAV must be positive, got %v", a.BaseNAV)
	}
	if a.WeightSumTolerance < 0 || a.WeightSumTolerance >= 0.5 {
		return fmt.Errorf("WEIGHT_SUM_TOLERANCE must be in [0, 0.5), got %v", a.WeightSumTolerance)
	}
	if a.SectorOverlapThreshold <= 0 || a.SectorOverlapThreshold > 1 {
		return fmt.Errorf("SECTOR_OVERLAP_THRESHOLD must be in (0, 1], got %v", a.SectorOverlapThreshold)
	}
	if a.PositionSizeThreshold <= 0 || a.PositionSizeThreshold > 1 {
		return fmt.Errorf("POSITION_SIZE_THRESHOLD must be in (0, 1], got %v", a.PositionSizeThreshold)
	}

	var sum float64
	for _, w := range a.HealthWeights {
		if w < 0 {
			return fmt.Errorf("HEALTH_WEIGHTS must be non-negative, got %v", a.HealthWeights)
		}
		sum += w
	}
	if math.Abs(sum-1) > 1e-6 {
		return fmt.Errorf("HEALTH_WEIGHTS must sum to 1.0, got %v", sum)
	}

	switch a.ScenarioEstimator {
	case "linear", "covariance":
	default:
		return fmt.Errorf("unknown SCENARIO_ESTIMATOR %q (want linear or covariance)", a.ScenarioEstimator)
	}

	if !validWindows[a.AttributionWindow] {
		return fmt.Errorf("unknown ATTRIBUTION_WINDOW %q", a.AttributionWindow)
	}
	if a.BatchWorkers <= 0 {
		return fmt.Errorf("BATCH_WORKERS must be positive, got %d", a.BatchWorkers)
	}

	if c.Reports.Enabled() && (c.Reports.AccessKey == "") != (c.Reports.SecretKey == "") {
		return fmt.Errorf("REPORT_ACCESS_KEY and REPORT_SECRET_KEY must be set together")
	}

	return nil
}

func parseHealthWeights(raw string) ([4]float64, error) {
	var weights [4]float64
	parts := utils.ParseCSV(raw)
	if len(parts) != 4 {
		return weights, fmt.Errorf("HEALTH_WEIGHTS needs four comma-separated values, got %q", raw)
	}
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return weights, fmt.Errorf("HEALTH_WEIGHTS value %q: %w", p, err)
		}
		weights[i] = v
	}
	return weights, nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
