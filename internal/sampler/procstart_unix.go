//go:build !windows

package sampler

import (
	"bufio"
	"os"
	"runtime"
	"strconv"
	"strings"

	sysconf "github.com/tklauser/go-sysconf"
)

// procStartUnix returns the process start time as Unix seconds using
// platform-native accounting, or 0 when unavailable. On Linux this reads
// /proc directly instead of spawning external tools.
func procStartUnix(pid int) int64 {
	if pid <= 0 || runtime.GOOS != "linux" {
		return 0
	}

	// /proc/[pid]/stat field 22 is starttime in clock ticks since boot. The
	// comm field can contain spaces, so parse from the final ") ".
	b, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/stat")
	if err != nil {
		return 0
	}
	line := string(b)
	end := strings.LastIndex(line, ") ")
	if end == -1 {
		return 0
	}
	parts := strings.Fields(strings.TrimSpace(line[end+2:]))
	// parts[0] is field 3 (state), so starttime is parts[19].
	if len(parts) < 20 {
		return 0
	}
	startTicks, err := strconv.ParseInt(parts[19], 10, 64)
	if err != nil || startTicks <= 0 {
		return 0
	}

	btime := bootTimeLinux()
	if btime == 0 {
		return 0
	}

	clk, err := sysconf.Sysconf(sysconf.SC_CLK_TCK)
	if err != nil || clk <= 0 {
		clk = 100
	}
	return btime + (startTicks / clk)
}

// bootTimeLinux reads btime from /proc/stat.
func bootTimeLinux() int64 {
	f, err := os.Open("/proc/stat")
	if err != nil {
		return 0
	}
	defer func() { _ = f.Close() }()
	s := bufio.NewScanner(f)
	for s.Scan() {
		if v, ok := strings.CutPrefix(s.Text(), "btime "); ok {
			if bt, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
				return bt
			}
		}
	}
	return 0
}
