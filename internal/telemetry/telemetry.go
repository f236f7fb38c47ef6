// Package telemetry publishes the summary of a finished run to metrics
// sinks. Publishing is best effort: failures are logged by the caller and
// never change the outcome of the run.
package telemetry

import (
	"context"
	"errors"
	"log/slog"

	"shadowroads/internal/types"
)

// Publisher sends one run report to a metrics sink.
type Publisher interface {
	PublishRun(ctx context.Context, report *types.RunReport) error
}

// Noop discards reports.
type Noop struct{}

// PublishRun does nothing.
func (Noop) PublishRun(context.Context, *types.RunReport) error { return nil }

// Multi fans a report out to several publishers. Every publisher is called
// even if an earlier one fails; the errors are joined.
type Multi []Publisher

// PublishRun implements Publisher.
func (m Multi) PublishRun(ctx context.Context, report *types.RunReport) error {
	var errs []error
	for _, p := range m {
		if err := p.PublishRun(ctx, report); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Publish sends report through p and logs a failure instead of returning it.
func Publish(ctx context.Context, p Publisher, report *types.RunReport, logger *slog.Logger) {
	if p == nil || report == nil {
		return
	}
	if err := p.PublishRun(ctx, report); err != nil {
		logger.Warn("failed to publish run metrics", "error", err.Error(), "run_id", report.RunID)
	}
}

func skippedTotal(m map[types.SkipReason]int) int {
	n := 0
	for _, v := range m {
		n += v
	}
	return n
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
