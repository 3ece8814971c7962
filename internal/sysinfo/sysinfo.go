// Package sysinfo records the host a sweep ran on.
package sysinfo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/i5heu/GoQueueSweep/pkg/config"
)

// SystemInfo holds system information.
type SystemInfo struct {
	NumCPU      int     `json:"num_cpu"`
	GOMAXPROCS  int     `json:"gomaxprocs"`
	CPUModel    string  `json:"cpu_model,omitempty"`
	CPUSpeedMHz float64 `json:"cpu_speed_mhz,omitempty"`
	GOARCH      string  `json:"go_arch"`
	GoVersion   string  `json:"go_version"`
	TotalMemory uint64  `json:"total_memory_bytes,omitempty"`
}

// SessionInfo describes one sweep: when it ran, on what, with which axes and
// where its records went.
type SessionInfo struct {
	SessionTime string      `json:"session_time"`
	SystemInfo  SystemInfo  `json:"system_info"`
	Axes        config.Axes `json:"axes"`
	Cells       int         `json:"cells"`
	ResultsFile string      `json:"results_file"`
	SQLiteFile  string      `json:"sqlite_file,omitempty"`
}

// Gather collects basic CPU and memory details. Fields gopsutil cannot
// determine are left empty.
func Gather(ctx context.Context) SystemInfo {
	info := SystemInfo{
		NumCPU:     runtime.NumCPU(),
		GOMAXPROCS: runtime.GOMAXPROCS(0),
		GOARCH:     runtime.GOARCH,
		GoVersion:  runtime.Version(),
	}
	if infos, err := cpu.InfoWithContext(ctx); err == nil && len(infos) > 0 {
		info.CPUModel = infos[0].ModelName
		info.CPUSpeedMHz = infos[0].Mhz
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		info.TotalMemory = vm.Total
	}
	return info
}

// NewSession stamps a session with the current time.
func NewSession(sys SystemInfo, axes config.Axes, cells int, resultsFile string) SessionInfo {
	return SessionInfo{
		SessionTime: time.Now().Format(time.RFC3339),
		SystemInfo:  sys,
		Axes:        axes,
		Cells:       cells,
		ResultsFile: resultsFile,
	}
}

// AppendSession adds s to the JSON array of sessions at path, creating the
// file if it does not exist.
func AppendSession(path string, s SessionInfo) error {
	sessions, err := ReadSessions(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	sessions = append(sessions, s)

	data, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sessions: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write sessions to %s: %w", path, err)
	}
	return nil
}

// ReadSessions loads the sessions recorded at path.
func ReadSessions(path string) ([]SessionInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sessions: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var sessions []SessionInfo
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, fmt.Errorf("parse sessions in %s: %w", path, err)
	}
	return sessions, nil
}
