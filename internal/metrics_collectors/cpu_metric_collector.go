package metrics_collectors

import (
	"context"
	"errors"

	"github.com/shirou/gopsutil/cpu"
)

// CPUMetricCollector collects CPU usage across all cores.
type CPUMetricCollector struct{}

func (c *CPUMetricCollector) Name() string {
	return "cpu_used_percent"
}

func (c *CPUMetricCollector) Collect(ctx context.Context) (float64, error) {
	cpuPercentages, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return 0, err
	}
	if len(cpuPercentages) == 0 {
		return 0, errors.New("cpu usage data is empty")
	}
	return cpuPercentages[0], nil
}

func (c *CPUMetricCollector) Description() string {
	return "Percentage of CPU utilization across all cores of the agent host."
}
