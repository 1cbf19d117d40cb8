package httpapi

import (
	"net/http"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

type systemInfo struct {
	Hostname       string  `json:"hostname"`
	Platform       string  `json:"platform"`
	UptimeSec      uint64  `json:"uptime_sec"`
	CPUCount       int     `json:"cpu_count"`
	CPUPercent     float64 `json:"cpu_percent"`
	MemTotalBytes  uint64  `json:"mem_total_bytes"`
	MemUsedBytes   uint64  `json:"mem_used_bytes"`
	MemUsedPercent float64 `json:"mem_used_percent"`
	GoVersion      string  `json:"go_version"`
	Goroutines     int     `json:"goroutines"`
	Time           string  `json:"time"`
}

// system reports host and process health for operator dashboards.
func (h *handler) system(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.claims(w, r); !ok {
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	info := systemInfo{
		CPUCount:   runtime.NumCPU(),
		GoVersion:  runtime.Version(),
		Goroutines: runtime.NumGoroutine(),
		Time:       time.Now().UTC().Format(time.RFC3339),
	}

	if hi, err := host.InfoWithContext(r.Context()); err == nil {
		info.Hostname = hi.Hostname
		info.Platform = hi.Platform
		info.UptimeSec = hi.Uptime
	}
	if vm, err := mem.VirtualMemoryWithContext(r.Context()); err == nil {
		info.MemTotalBytes = vm.Total
		info.MemUsedBytes = vm.Used
		info.MemUsedPercent = vm.UsedPercent
	}
	if pct, err := cpu.PercentWithContext(r.Context(), 0, false); err == nil && len(pct) > 0 {
		info.CPUPercent = pct[0]
	}

	writeJSON(w, http.StatusOK, info)
}
