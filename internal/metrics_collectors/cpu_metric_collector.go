package metrics_collectors

import (
	"context"
	"errors"

	"github.com/shirou/gopsutil/cpu"
)

// CPUMetricCollector reports host CPU utilization in percent.
type CPUMetricCollector struct{}

func (c *CPUMetricCollector) Name() string {
	return "cpu_percent"
}

func (c *CPUMetricCollector) Collect(ctx context.Context) (any, error) {
	cpuPercentages, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return nil, err
	}
	if len(cpuPercentages) == 0 {
		return nil, errors.New("cpu usage data is empty")
	}
	return cpuPercentages[0], nil
}
