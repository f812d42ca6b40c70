package sampler

import (
	"errors"
	"fmt"
	"time"

	gopsproc "github.com/shirou/gopsutil/v4/process"
)

// ErrProbeFailed is returned when the process disappeared or OS accounting
// was refused between the caller's liveness check and the sample. It is a
// normal race, not a fault in the caller.
var ErrProbeFailed = errors.New("unable to sample process")

// Usage is one observation of a live child's resource consumption.
//
// CPUPercent is the lifetime average: total accumulated CPU time divided by
// wall time since the process started. gopsutil computes this when
// CPUPercent is called without an interval. The alternative, two spaced
// samples, reads near-zero on the first call; the lifetime average is stable
// from the first read, which suits an on-demand query.
type Usage struct {
	PID        int           `json:"pid"`
	CPUPercent float64       `json:"cpu_percent"`
	MemoryRSS  uint64        `json:"memory_rss"`
	StartedAt  time.Time     `json:"started_at"`
	Uptime     time.Duration `json:"uptime"`
}

// Sample queries OS process accounting for pid.
func Sample(pid int) (Usage, error) {
	if pid <= 0 {
		return Usage{}, fmt.Errorf("%w: pid %d", ErrProbeFailed, pid)
	}
	p, err := gopsproc.NewProcess(int32(pid))
	if err != nil {
		return Usage{}, fmt.Errorf("%w: %v", ErrProbeFailed, err)
	}
	mem, err := p.MemoryInfo()
	if err != nil {
		return Usage{}, fmt.Errorf("%w: %v", ErrProbeFailed, err)
	}
	cpu, err := p.CPUPercent()
	if err != nil {
		cpu = 0
	}

	started := startTime(p, pid)
	u := Usage{
		PID:        pid,
		CPUPercent: cpu,
		MemoryRSS:  mem.RSS,
		StartedAt:  started,
	}
	if !started.IsZero() {
		u.Uptime = time.Since(started)
	}
	return u, nil
}

// startTime resolves the process start time, preferring the platform-native
// path and falling back to gopsutil's CreateTime.
func startTime(p *gopsproc.Process, pid int) time.Time {
	if unix := procStartUnix(pid); unix > 0 {
		return time.Unix(unix, 0)
	}
	if ms, err := p.CreateTime(); err == nil && ms > 0 {
		return time.UnixMilli(ms)
	}
	return time.Time{}
}

// FormatUptime renders a duration as whole hours and minutes, e.g. "3h 12m".
func FormatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh %dm", h, m)
}

// String renders the usage the way the status surfaces present it.
func (u Usage) String() string {
	return fmt.Sprintf("CPU: %.1f%%\nMemory: %.1f MB\nUptime: %s",
		u.CPUPercent, float64(u.MemoryRSS)/1024/1024, FormatUptime(u.Uptime))
}
