//go:build windows

package sampler

// procStartUnix has no native path on Windows; gopsutil's CreateTime covers it.
func procStartUnix(_ int) int64 { return 0 }
