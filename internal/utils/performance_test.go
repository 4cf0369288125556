package utils

import (
	"bytes"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestTimer_LevelFollowsDuration(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		want    string
	}{
		{"fast", time.Millisecond, ""},
		{"slow", 12 * time.Second, `"level":"info"`},
		{"very slow", 31 * time.Second, `"level":"warn"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := zerolog.New(&buf).Level(zerolog.InfoLevel)

			timer := NewTimer("batch", log)
			timer.now = func() time.Time { return timer.start.Add(tt.elapsed) }

			assert.Equal(t, tt.elapsed, timer.Stop())
			if tt.want == "" {
				assert.Empty(t, buf.String())
			} else {
				assert.Contains(t, buf.String(), tt.want)
				assert.Contains(t, buf.String(), `"operation":"batch"`)
			}
		})
	}
}

func TestTimer_StopWithFields(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)

	timer := NewTimer("report", log)
	timer.StopWithFields(map[string]interface{}{"portfolio_id": "p1"})

	assert.Contains(t, buf.String(), `"portfolio_id":"p1"`)
	assert.Contains(t, buf.String(), "Performance measurement")
}

func TestOperationTimer(t *testing.T) {
	var buf bytes.Buffer
	done := OperationTimer("nav", zerolog.New(&buf).Level(zerolog.DebugLevel))
	done()
	assert.Contains(t, buf.String(), `"operation":"nav"`)
}
