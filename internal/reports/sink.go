// Package reports exports analytics batch reports to object storage.
package reports

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aristath/folio/internal/domain"
	"github.com/rs/zerolog"
)

// ReportSink stores one serialized report under key.
type ReportSink interface {
	Put(ctx context.Context, key string, body []byte) error
}

// ReportKey is "<prefix>/<YYYY-MM-DD>.json" for the UTC date of at.
func ReportKey(prefix string, at time.Time) string {
	name := domain.FormatDate(at.UTC()) + ".json"
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

// Exporter writes reports as indented JSON to a sink.
type Exporter struct {
	sink   ReportSink
	prefix string
	log    zerolog.Logger
}

// NewExporter creates a report exporter
func NewExporter(sink ReportSink, prefix string, log zerolog.Logger) *Exporter {
	return &Exporter{
		sink:   sink,
		prefix: prefix,
		log:    log.With().Str("component", "report_exporter").Logger(),
	}
}

// Export uploads report under the key for at and returns the key. A later
// export on the same day replaces the earlier one.
func (e *Exporter) Export(ctx context.Context, report interface{}, at time.Time) (string, error) {
	body, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}

	key := ReportKey(e.prefix, at)
	if err := e.sink.Put(ctx, key, body); err != nil {
		return "", fmt.Errorf("failed to upload report %s: %w", key, err)
	}

	e.log.Info().
		Str("key", key).
		Int("size_bytes", len(body)).
		Msg("Report exported")
	return key, nil
}
