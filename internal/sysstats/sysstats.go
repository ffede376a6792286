// ABOUTME: Host CPU and memory snapshots for the stats tool and health prompt
// ABOUTME: Backed by gopsutil; callers depend only on the Provider interface

package sysstats

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// Snapshot is a point-in-time view of host resource usage.
type Snapshot struct {
	CPUPercent       float64
	UsedMemoryBytes  uint64
	TotalMemoryBytes uint64
}

// MemoryPercent returns used memory as a percentage of total.
func (s Snapshot) MemoryPercent() float64 {
	if s.TotalMemoryBytes == 0 {
		return 0
	}
	return float64(s.UsedMemoryBytes) / float64(s.TotalMemoryBytes) * 100
}

// Summary renders the snapshot the way the stats tool and health prompt present it.
func (s Snapshot) Summary() string {
	return fmt.Sprintf("CPU Usage: %.2f%%\nMemory Usage: %.2f%% (Used: %d MB / Total: %d MB)",
		s.CPUPercent,
		s.MemoryPercent(),
		s.UsedMemoryBytes/1024/1024,
		s.TotalMemoryBytes/1024/1024,
	)
}

type Provider interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

// Host samples the local machine.
type Host struct {
	// SampleInterval is how long CPU usage is measured over. Zero compares
	// against the previous call.
	SampleInterval time.Duration
}

func NewHost(sampleInterval time.Duration) *Host {
	return &Host{SampleInterval: sampleInterval}
}

func (h *Host) Snapshot(ctx context.Context) (Snapshot, error) {
	percents, err := cpu.PercentWithContext(ctx, h.SampleInterval, false)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read cpu usage: %w", err)
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read memory usage: %w", err)
	}

	var cpuPercent float64
	if len(percents) > 0 {
		cpuPercent = percents[0]
	}

	return Snapshot{
		CPUPercent:       cpuPercent,
		UsedMemoryBytes:  vm.Used,
		TotalMemoryBytes: vm.Total,
	}, nil
}
