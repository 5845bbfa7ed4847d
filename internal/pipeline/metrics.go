package pipeline

import (
	"time"

	"go.uber.org/zap"
)

// MetricsSink receives per-stage observations from the pipeline. The sink is
// caller-owned and passed in explicitly; the pipeline keeps no ambient
// metrics state.
type MetricsSink interface {
	// StageCompleted reports a finished stage with its input and output
	// candidate counts and wall duration.
	StageCompleted(stage string, in, out int, elapsed time.Duration)
}

// NopMetrics discards all observations.
type NopMetrics struct{}

// StageCompleted implements MetricsSink.
func (NopMetrics) StageCompleted(string, int, int, time.Duration) {}

// ZapMetrics logs stage observations through the global zap logger.
type ZapMetrics struct{}

// StageCompleted implements MetricsSink.
func (ZapMetrics) StageCompleted(stage string, in, out int, elapsed time.Duration) {
	zap.L().Info("pipeline stage complete",
		zap.String("stage", stage),
		zap.Int("in", in),
		zap.Int("out", out),
		zap.Duration("elapsed", elapsed),
	)
}
