// Hasher: Neural Inference Engine Powered by SHA-256 ASICs
// Copyright (C) 2026  Guillermo Perry
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package hoststat snapshots host CPU/memory usage for the monitor
// subcommand and status dashboard.
package hoststat

import (
	"fmt"
	"runtime"

	psutilcpu "github.com/shirou/gopsutil/v3/cpu"
	psutilmem "github.com/shirou/gopsutil/v3/mem"
)

// Snapshot is a one-shot reading of host resource usage.
type Snapshot struct {
	CPUPercent float64
	MemPercent float64
	GoVersion  string
}

// Read takes a one-shot snapshot of host CPU and memory usage.
func Read() (Snapshot, error) {
	cpuPercent, err := psutilcpu.Percent(0, false)
	if err != nil {
		return Snapshot{}, fmt.Errorf("hoststat: cpu percent: %w", err)
	}
	memInfo, err := psutilmem.VirtualMemory()
	if err != nil {
		return Snapshot{}, fmt.Errorf("hoststat: virtual memory: %w", err)
	}

	var cpu float64
	if len(cpuPercent) > 0 {
		cpu = cpuPercent[0]
	}
	return Snapshot{
		CPUPercent: cpu,
		MemPercent: memInfo.UsedPercent,
		GoVersion:  runtime.Version(),
	}, nil
}

// String renders the snapshot the way the dashboard's status line does.
func (s Snapshot) String() string {
	return fmt.Sprintf("CPU: %.1f%% | RAM: %.1f%% | Go: %s", s.CPUPercent, s.MemPercent, s.GoVersion)
}
