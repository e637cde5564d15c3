package system

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Stats is a snapshot of host load for the CLI performance report.
type Stats struct {
	CPUPercent  float64
	MemUsedPct  float64
	MemTotalMB  uint64
	ProcessRSS  uint64 // bytes
	CollectedAt time.Time
}

// CollectStats samples CPU over a short window plus memory figures.
func CollectStats(ctx context.Context) (Stats, error) {
	s := Stats{CollectedAt: time.Now()}

	percents, err := cpu.PercentWithContext(ctx, 200*time.Millisecond, false)
	if err != nil {
		return s, fmt.Errorf("cpu percent: %w", err)
	}
	if len(percents) > 0 {
		s.CPUPercent = percents[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return s, fmt.Errorf("virtual memory: %w", err)
	}
	s.MemUsedPct = vm.UsedPercent
	s.MemTotalMB = vm.Total / 1024 / 1024

	proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err == nil {
		if info, err := proc.MemoryInfoWithContext(ctx); err == nil {
			s.ProcessRSS = info.RSS
		}
	}

	return s, nil
}

// Report renders the stats block printed after an export.
func (s Stats) Report(build string, elapsed time.Duration) string {
	return fmt.Sprintf(
		"--- [PERFORMANCE REPORT] ---\n"+
			"Build: %s\n"+
			"Total Time: %.2fs\n"+
			"CPU: %.1f%%\n"+
			"Memory: %.1f%% of %d MB\n"+
			"Process RSS: %.1f MB\n"+
			"----------------------------\n",
		build, elapsed.Seconds(), s.CPUPercent, s.MemUsedPct, s.MemTotalMB, float64(s.ProcessRSS)/1024/1024,
	)
}
