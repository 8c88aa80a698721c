package metrics_collectors

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/process"
)

// ProcessUsage summarizes the running instances of one executable.
type ProcessUsage struct {
	Count int    `json:"count"`
	RSS   string `json:"rss"`
}

// ProcessMetricCollector counts running frame grabber processes and their
// resident memory. Grabs are short lived, so anything beyond one process is
// a leak.
type ProcessMetricCollector struct {
	processName string
}

// NewProcessMetricCollector watches processes named like the binary at path.
func NewProcessMetricCollector(path string) *ProcessMetricCollector {
	name := strings.ToLower(filepath.Base(path))
	if name == "" || name == "." {
		name = "ffmpeg"
	}
	return &ProcessMetricCollector{processName: name}
}

func (p *ProcessMetricCollector) Name() string {
	return p.processName + "_processes"
}

func (p *ProcessMetricCollector) Collect(ctx context.Context) (any, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	var usage ProcessUsage
	var rss uint64
	for _, proc := range procs {
		name, err := proc.NameWithContext(ctx)
		if err != nil || strings.ToLower(name) != p.processName {
			continue
		}
		usage.Count++
		if memInfo, err := proc.MemoryInfoWithContext(ctx); err == nil {
			rss += memInfo.RSS
		}
	}
	usage.RSS = humanize.Bytes(rss)
	return usage, nil
}
