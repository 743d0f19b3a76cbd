package web

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	defaultProcRoot = "/proc"
	defaultSysRoot  = "/sys"
)

// SystemStats reports host health for the dashboard. Fields stay zero
// when their source file is unreadable, which happens off-appliance.
type SystemStats struct {
	CPUTempC       float64 `json:"cpu_temp_c,omitempty"`
	Load1          float64 `json:"load_1,omitempty"`
	Load5          float64 `json:"load_5,omitempty"`
	Load15         float64 `json:"load_15,omitempty"`
	MemTotalKB     uint64  `json:"mem_total_kb,omitempty"`
	MemAvailableKB uint64  `json:"mem_available_kb,omitempty"`
	UptimeS        float64 `json:"uptime_s,omitempty"`
}

// ReadSystemStats samples the host counters. Best effort; each field
// is read independently.
func ReadSystemStats() SystemStats {
	return readSystemStats(defaultProcRoot, defaultSysRoot)
}

func readSystemStats(procRoot, sysRoot string) SystemStats {
	var stats SystemStats

	if temp, ok := readCPUTemp(sysRoot); ok {
		stats.CPUTempC = temp
	}
	if l1, l5, l15, ok := readLoadAvg(procRoot); ok {
		stats.Load1, stats.Load5, stats.Load15 = l1, l5, l15
	}
	if total, avail, ok := readMemInfo(procRoot); ok {
		stats.MemTotalKB, stats.MemAvailableKB = total, avail
	}
	if up, ok := readUptime(procRoot); ok {
		stats.UptimeS = up
	}
	return stats
}

// readCPUTemp reads thermal zone 0, reported in millidegrees Celsius.
func readCPUTemp(sysRoot string) (float64, bool) {
	raw, err := os.ReadFile(filepath.Join(sysRoot, "class", "thermal", "thermal_zone0", "temp"))
	if err != nil {
		return 0, false
	}
	milli, err := strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
	if err != nil {
		return 0, false
	}
	return milli / 1000, true
}

func readLoadAvg(procRoot string) (float64, float64, float64, bool) {
	raw, err := os.ReadFile(filepath.Join(procRoot, "loadavg"))
	if err != nil {
		return 0, 0, 0, false
	}
	fields := strings.Fields(string(raw))
	if len(fields) < 3 {
		return 0, 0, 0, false
	}
	l1, err1 := strconv.ParseFloat(fields[0], 64)
	l5, err2 := strconv.ParseFloat(fields[1], 64)
	l15, err3 := strconv.ParseFloat(fields[2], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, 0, 0, false
	}
	return l1, l5, l15, true
}

func readMemInfo(procRoot string) (uint64, uint64, bool) {
	raw, err := os.ReadFile(filepath.Join(procRoot, "meminfo"))
	if err != nil {
		return 0, 0, false
	}

	var total, avail uint64
	for _, line := range strings.Split(string(raw), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		switch fields[0] {
		case "MemTotal:":
			total, _ = strconv.ParseUint(fields[1], 10, 64)
		case "MemAvailable:":
			avail, _ = strconv.ParseUint(fields[1], 10, 64)
		}
	}
	if total == 0 {
		return 0, 0, false
	}
	return total, avail, true
}

func readUptime(procRoot string) (float64, bool) {
	raw, err := os.ReadFile(filepath.Join(procRoot, "uptime"))
	if err != nil {
		return 0, false
	}
	fields := strings.Fields(string(raw))
	if len(fields) < 1 {
		return 0, false
	}
	up, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, false
	}
	return up, true
}
