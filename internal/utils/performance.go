// Package utils holds small helpers shared by the analytics packages.
package utils

import (
	"time"

	"github.com/rs/zerolog"
)

// Slow-operation thresholds. A batch over many portfolios is expected to run
// for seconds; a single request should not.
const (
	SlowOperation     = 10 * time.Second
	VerySlowOperation = 30 * time.Second
)

// Timer measures how long an analytics computation takes
type Timer struct {
	start time.Time
	name  string
	log   zerolog.Logger
	now   func() time.Time
}

// NewTimer starts a timer with the given operation name
func NewTimer(name string, log zerolog.Logger) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
		log:   log,
		now:   time.Now,
	}
}

// Stop logs the elapsed time and returns it.
func (t *Timer) Stop() time.Duration {
	return t.StopWithFields(nil)
}

// StopWithFields is Stop with extra structured fields on the log line.
func (t *Timer) StopWithFields(fields map[string]interface{}) time.Duration {
	duration := t.now().Sub(t.start)

	t.log.Debug().
		Str("operation", t.name).
		Fields(fields).
		Dur("duration_ms", duration).
		Msg("Performance measurement")

	switch {
	case duration > VerySlowOperation:
		t.log.Warn().
			Str("operation", t.name).
			Dur("duration", duration).
			Msg("Slow operation detected (>30s)")
	case duration > SlowOperation:
		t.log.Info().
			Str("operation", t.name).
			Dur("duration", duration).
			Msg("Operation took longer than expected (>10s)")
	}

	return duration
}

// OperationTimer provides a defer-friendly way to measure operation duration
//
// Usage:
//
//	func (s *Service) Report(...) {
//	    defer utils.OperationTimer("report", s.log)()
//	}
func OperationTimer(operation string, log zerolog.Logger) func() {
	t := NewTimer(operation, log)
	return func() { t.Stop() }
}
