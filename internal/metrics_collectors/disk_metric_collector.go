package metrics_collectors

import (
	"context"

	"github.com/shirou/gopsutil/disk"
)

// DiskMetricCollector collects disk usage of the filesystem holding Path.
type DiskMetricCollector struct {
	Path string
}

func (d *DiskMetricCollector) Name() string {
	return "disk_used_percent"
}

func (d *DiskMetricCollector) Collect(ctx context.Context) (float64, error) {
	diskStats, err := disk.UsageWithContext(ctx, d.Path)
	if err != nil {
		return 0, err
	}
	return diskStats.UsedPercent, nil
}

func (d *DiskMetricCollector) Description() string {
	return "Percentage of disk space used on " + d.Path + "."
}
