package metrics_collectors

import (
	"context"

	"github.com/shirou/gopsutil/mem"
)

// MemoryMetricCollector reports the percentage of used virtual memory.
type MemoryMetricCollector struct{}

func (m *MemoryMetricCollector) Name() string {
	return "memory_percent"
}

func (m *MemoryMetricCollector) Collect(ctx context.Context) (any, error) {
	memStats, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, err
	}
	return memStats.UsedPercent, nil
}
