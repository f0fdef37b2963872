package pulse

import (
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemSnapshot reports process and host load alongside engine occupancy,
// for status surfaces.
type SystemSnapshot struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryUsedGB  float64 `json:"memory_used_gb"`
	MemoryTotalGB float64 `json:"memory_total_gb"`
	MemoryPercent float64 `json:"memory_percent"`
	NumCPU        int     `json:"num_cpu"`
	Goroutines    int     `json:"goroutines"`
	JobsTracked   int     `json:"jobs_tracked"`
}

// SystemSnapshot samples current system load. Sampling errors degrade to
// zero values rather than failing a status read.
func (e *Engine) SystemSnapshot() SystemSnapshot {
	snap := SystemSnapshot{
		NumCPU:      runtime.NumCPU(),
		Goroutines:  runtime.NumGoroutine(),
		JobsTracked: e.registry.Len(),
	}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		snap.CPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil && vm.Total > 0 {
		snap.MemoryTotalGB = float64(vm.Total) / 1024 / 1024 / 1024
		snap.MemoryUsedGB = float64(vm.Used) / 1024 / 1024 / 1024
		snap.MemoryPercent = vm.UsedPercent
	}
	return snap
}
