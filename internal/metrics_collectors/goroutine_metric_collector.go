package metrics_collectors

import (
	"context"
	"runtime"
)

// GoroutineMetricCollector reports the number of live goroutines. A steady
// climb points at stuck movement cycles.
type GoroutineMetricCollector struct{}

func (g *GoroutineMetricCollector) Name() string {
	return "goroutines"
}

func (g *GoroutineMetricCollector) Collect(context.Context) (any, error) {
	return runtime.NumGoroutine(), nil
}
