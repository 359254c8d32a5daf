package utils

import (
	"log/slog"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// GetCPUUsage samples CPU usage over interval, as a percentage.
func GetCPUUsage(interval time.Duration) float64 {
	percentage, err := cpu.Percent(interval, false)
	if err != nil {
		slog.Warn("cpu usage unavailable", slog.Any("error", err))
		return 0
	}
	if len(percentage) > 0 {
		return percentage[0]
	}
	return 0
}

// GetMemoryUsage returns used memory as a percentage of total.
func GetMemoryUsage() float64 {
	vm, err := mem.VirtualMemory()
	if err != nil {
		slog.Warn("memory usage unavailable", slog.Any("error", err))
		return 0
	}
	return vm.UsedPercent
}
